package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// NegotiationResponse — переговорный кейс из API.
type NegotiationResponse struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Status    string `json:"status"`
	MaxRounds int    `json:"max_rounds"`
	CreatedAt string `json:"created_at"`
}

// ProductResponse — товар кейса из API.
type ProductResponse struct {
	ID            string  `json:"id"`
	NegotiationID string  `json:"negotiation_id"`
	Name          string  `json:"name"`
	TargetPrice   float64 `json:"target_price"`
	MinPrice      float64 `json:"min_price"`
	MaxPrice      float64 `json:"max_price"`
	Volume        int     `json:"volume"`
	CreatedAt     string  `json:"created_at"`
}

// QueueResponse — очередь симуляций из API.
type QueueResponse struct {
	ID               string  `json:"id"`
	NegotiationID    string  `json:"negotiation_id"`
	TotalSimulations int     `json:"total_simulations"`
	Status           string  `json:"status"`
	EstimatedCost    float64 `json:"estimated_cost"`
	ActualCost       float64 `json:"actual_cost"`
	StartedAt        string  `json:"started_at,omitempty"`
	PausedAt         string  `json:"paused_at,omitempty"`
	CompletedAt      string  `json:"completed_at,omitempty"`
	CreatedAt        string  `json:"created_at"`
}

// QueueStatusResponse — агрегированный статус очереди из API.
type QueueStatusResponse struct {
	Queue      QueueResponse  `json:"queue"`
	Counts     map[string]int `json:"counts"`
	Percent    float64        `json:"percent"`
	ETASeconds int64          `json:"eta_seconds"`
	ActualCost float64        `json:"actual_cost"`
	CurrentRun *RunResponse   `json:"current_run,omitempty"`
}

// RunResponse — симуляция из API (без тяжёлых полей).
type RunResponse struct {
	ID             string              `json:"id"`
	QueueID        string              `json:"queue_id"`
	NegotiationID  string              `json:"negotiation_id"`
	ExecutionOrder int                 `json:"execution_order"`
	TechniqueID    string              `json:"technique_id"`
	TacticID       string              `json:"tactic_id"`
	PersonalityID  string              `json:"personality_id,omitempty"`
	Distance       string              `json:"distance"`
	Status         string              `json:"status"`
	RetryCount     int                 `json:"retry_count"`
	MaxRetries     int                 `json:"max_retries"`
	StartedAt      string              `json:"started_at,omitempty"`
	CompletedAt    string              `json:"completed_at,omitempty"`
	Outcome        string              `json:"outcome,omitempty"`
	TotalRounds    int                 `json:"total_rounds"`
	DealValue      string              `json:"deal_value,omitempty"`
	ActualCost     float64             `json:"actual_cost"`
	Error          string              `json:"error,omitempty"`
	Evaluation     *EvaluationResponse `json:"evaluation,omitempty"`
	CreatedAt      string              `json:"created_at"`
}

// EvaluationResponse — вердикт оценки из API.
type EvaluationResponse struct {
	Score       float64 `json:"score"`
	Verdict     string  `json:"verdict"`
	Summary     string  `json:"summary,omitempty"`
	EvaluatedAt string  `json:"evaluated_at"`
}

// RunDetailResponse — симуляция с логом переговоров и разбивкой сделки.
type RunDetailResponse struct {
	RunResponse
	ConversationLog []RoundResponse      `json:"conversation_log,omitempty"`
	FinalOffer      map[string]any       `json:"final_offer,omitempty"`
	ProductRows     []ProductRowResponse `json:"product_rows,omitempty"`
	OtherDimensions map[string]string    `json:"other_dimensions,omitempty"`
}

// RoundResponse — раунд переговоров из API.
type RoundResponse struct {
	Number  int    `json:"number"`
	Speaker string `json:"speaker"`
	Message string `json:"message"`
}

// ProductRowResponse — строка сделки по товару из API.
type ProductRowResponse struct {
	ProductName string  `json:"product_name"`
	MatchedKey  string  `json:"matched_key"`
	Price       float64 `json:"price"`
	Volume      int     `json:"volume"`
	Subtotal    float64 `json:"subtotal"`
}

// CatalogItemResponse — элемент справочника из API.
type CatalogItemResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// RestartResponse — результат перезапуска неуспешных симуляций.
type RestartResponse struct {
	Restarted int64 `json:"restarted"`
}

// QueueCheckpointResponse — чекпоинт очереди в отчёте восстановления.
type QueueCheckpointResponse struct {
	Queue        QueueResponse  `json:"queue"`
	Counts       map[string]int `json:"counts"`
	OrphanedRuns []RunResponse  `json:"orphaned_runs,omitempty"`
}

// RecoveryReportResponse — отчёт восстановления из API.
type RecoveryReportResponse struct {
	NegotiationID string                    `json:"negotiation_id"`
	Checkpoints   []QueueCheckpointResponse `json:"checkpoints"`
	OrphanedIDs   []string                  `json:"orphaned_ids,omitempty"`
}

// RecoverResponse — результат восстановления сирот.
type RecoverResponse struct {
	Recovered int `json:"recovered"`
}

// --- Request types ---

// CreateNegotiationRequest — создание переговорного кейса.
type CreateNegotiationRequest struct {
	Title     string `json:"title"`
	MaxRounds int    `json:"max_rounds,omitempty"`
}

// CreateProductRequest — добавление товара к кейсу.
type CreateProductRequest struct {
	Name        string  `json:"name"`
	TargetPrice float64 `json:"target_price"`
	MinPrice    float64 `json:"min_price"`
	MaxPrice    float64 `json:"max_price"`
	Volume      int     `json:"volume"`
}

// SelectorRequest — селектор оси справочника: либо весь справочник,
// либо явный список идентификаторов.
type SelectorRequest struct {
	All bool     `json:"all"`
	IDs []string `json:"ids,omitempty"`
}

// DistanceSelectorRequest — селектор категорий дистанции.
type DistanceSelectorRequest struct {
	All        bool     `json:"all"`
	Categories []string `json:"categories,omitempty"`
}

// CreateQueueRequest — создание очереди симуляций.
type CreateQueueRequest struct {
	TechniqueIDs  []string                `json:"technique_ids"`
	TacticIDs     []string                `json:"tactic_ids"`
	Personalities SelectorRequest         `json:"personalities"`
	Distances     DistanceSelectorRequest `json:"distances"`
	MaxRetries    int                     `json:"max_retries,omitempty"`
}

// RecoverRequest — восстановление осиротевших симуляций.
type RecoverRequest struct {
	RunIDs []string `json:"run_ids"`
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для Negotium API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Negotiations ---

// ListNegotiations возвращает список переговорных кейсов.
func (c *Client) ListNegotiations() ([]NegotiationResponse, error) {
	var negotiations []NegotiationResponse
	err := c.list("/api/v1/negotiations", nil, &negotiations)
	return negotiations, err
}

// CreateNegotiation создаёт новый переговорный кейс.
func (c *Client) CreateNegotiation(req CreateNegotiationRequest) (*NegotiationResponse, error) {
	var negotiation NegotiationResponse
	err := c.post("/api/v1/negotiations", req, &negotiation)
	return &negotiation, err
}

// GetNegotiation возвращает переговорный кейс по ID.
func (c *Client) GetNegotiation(id string) (*NegotiationResponse, error) {
	var negotiation NegotiationResponse
	err := c.get("/api/v1/negotiations/"+id, &negotiation)
	return &negotiation, err
}

// CreateProduct добавляет товар к кейсу.
func (c *Client) CreateProduct(negotiationID string, req CreateProductRequest) (*ProductResponse, error) {
	var product ProductResponse
	err := c.post("/api/v1/negotiations/"+negotiationID+"/products", req, &product)
	return &product, err
}

// ListProducts возвращает товары кейса.
func (c *Client) ListProducts(negotiationID string) ([]ProductResponse, error) {
	var products []ProductResponse
	err := c.list("/api/v1/negotiations/"+negotiationID+"/products", nil, &products)
	return products, err
}

// --- Queues ---

// CreateQueue создаёт очередь симуляций для кейса.
func (c *Client) CreateQueue(negotiationID string, req CreateQueueRequest) (*QueueResponse, error) {
	var queue QueueResponse
	err := c.post("/api/v1/negotiations/"+negotiationID+"/queue", req, &queue)
	return &queue, err
}

// GetQueueStatus возвращает агрегированный статус очереди.
func (c *Client) GetQueueStatus(id string) (*QueueStatusResponse, error) {
	var status QueueStatusResponse
	err := c.get("/api/v1/queues/"+id, &status)
	return &status, err
}

// StartQueue запускает диспетчеризацию очереди.
func (c *Client) StartQueue(id string) (*QueueStatusResponse, error) {
	return c.queueLifecycle(id, "start")
}

// PauseQueue приостанавливает очередь.
func (c *Client) PauseQueue(id string) (*QueueStatusResponse, error) {
	return c.queueLifecycle(id, "pause")
}

// ResumeQueue возобновляет приостановленную очередь.
func (c *Client) ResumeQueue(id string) (*QueueStatusResponse, error) {
	return c.queueLifecycle(id, "resume")
}

// StopQueue терминально останавливает очередь.
func (c *Client) StopQueue(id string) (*QueueStatusResponse, error) {
	return c.queueLifecycle(id, "stop")
}

func (c *Client) queueLifecycle(id, action string) (*QueueStatusResponse, error) {
	var status QueueStatusResponse
	err := c.post("/api/v1/queues/"+id+"/"+action, nil, &status)
	return &status, err
}

// RestartFailed возвращает неуспешные симуляции очереди в PENDING.
func (c *Client) RestartFailed(id string) (*RestartResponse, error) {
	var restart RestartResponse
	err := c.post("/api/v1/queues/"+id+"/restart-failed", nil, &restart)
	return &restart, err
}

// ListQueueRuns возвращает симуляции очереди. Если status не пустой —
// фильтрует по статусу.
func (c *Client) ListQueueRuns(queueID, status string) ([]RunResponse, error) {
	params := url.Values{}
	if status != "" {
		params.Set("status", status)
	}

	var runs []RunResponse
	err := c.list("/api/v1/queues/"+queueID+"/runs", params, &runs)
	return runs, err
}

// --- Runs ---

// GetRun возвращает симуляцию со всеми деталями.
func (c *Client) GetRun(id string) (*RunDetailResponse, error) {
	var run RunDetailResponse
	err := c.get("/api/v1/runs/"+id, &run)
	return &run, err
}

// --- Catalogs ---

// ListTechniques возвращает справочник техник.
func (c *Client) ListTechniques() ([]CatalogItemResponse, error) {
	var items []CatalogItemResponse
	err := c.list("/api/v1/catalog/techniques", nil, &items)
	return items, err
}

// ListTactics возвращает справочник тактик.
func (c *Client) ListTactics() ([]CatalogItemResponse, error) {
	var items []CatalogItemResponse
	err := c.list("/api/v1/catalog/tactics", nil, &items)
	return items, err
}

// ListPersonalities возвращает справочник личностей.
func (c *Client) ListPersonalities() ([]CatalogItemResponse, error) {
	var items []CatalogItemResponse
	err := c.list("/api/v1/catalog/personalities", nil, &items)
	return items, err
}

// ListDistances возвращает категории дистанции.
func (c *Client) ListDistances() ([]string, error) {
	var distances []string
	err := c.list("/api/v1/catalog/distances", nil, &distances)
	return distances, err
}

// --- Recovery ---

// FindRecovery возвращает отчёт о возможностях восстановления кейса.
func (c *Client) FindRecovery(negotiationID string) (*RecoveryReportResponse, error) {
	var report RecoveryReportResponse
	err := c.get("/api/v1/negotiations/"+negotiationID+"/recovery", &report)
	return &report, err
}

// RecoverOrphaned возвращает осиротевшие симуляции в PENDING.
func (c *Client) RecoverOrphaned(runIDs []string) (*RecoverResponse, error) {
	var recovered RecoverResponse
	err := c.post("/api/v1/recovery/recover", RecoverRequest{RunIDs: runIDs}, &recovered)
	return &recovered, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
