package engine

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Negotium/internal/domain"
)

const (
	// defaultTimeout — верхняя граница одной симуляции. Держим выше
	// порога Reaper, чтобы зависший вызов добивал сам движок, а не клиент.
	defaultTimeout = 15 * time.Minute

	// maxEventSize — предел одной строки потока (раунды несут текст реплик).
	maxEventSize = 1 * 1024 * 1024
)

// Типы событий NDJSON-потока движка.
const (
	eventRound  = "round"
	eventResult = "result"
	eventError  = "error"
)

// Config — настройки HTTP клиента движка.
type Config struct {
	// BaseURL — адрес движка, например http://localhost:58011.
	BaseURL string

	// APIKey — необязательный bearer-токен.
	APIKey string

	// Timeout — лимит одного вызова. 0 — значение по умолчанию.
	Timeout time.Duration
}

// HTTPEngine — клиент движка переговоров поверх HTTP.
//
// Движок стримит ход симуляции построчно (NDJSON):
//
//	{"type":"round","round":{"number":1,"speaker":"user","message":"...","offer":{...}}}
//	{"type":"result","result":{"outcome":"AGREEMENT","totalRounds":5,"finalOffer":{...}}}
//	{"type":"error","error":"..."}
//
// Каждое событие проверяется на границе: неизвестный тип, пропущенные
// обязательные поля или нарушение порядка раундов — ошибка клиента,
// а не доверие полезной нагрузке.
type HTTPEngine struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPEngine создаёт клиента движка.
func NewHTTPEngine(cfg Config) *HTTPEngine {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &HTTPEngine{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// ExecuteSimulation запускает симуляцию и читает поток до финального события.
func (e *HTTPEngine) ExecuteSimulation(ctx context.Context, req Request, onRound RoundCallback) (*Result, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal simulation request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/v1/simulations", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build simulation request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/x-ndjson")
	httpReq.Header.Set("X-Run-ID", req.RunID.String())
	httpReq.Header.Set("X-Queue-ID", req.QueueID.String())
	e.authorize(httpReq)

	resp, err := e.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, bodyPreview(resp.Body))
	}

	return readStream(resp.Body, onRound)
}

// CancelSimulation просит движок прервать симуляцию. Ответ 404 не ошибка:
// симуляция могла уже завершиться.
func (e *HTTPEngine) CancelSimulation(ctx context.Context, runID uuid.UUID) error {
	url := fmt.Sprintf("%s/v1/simulations/%s/cancel", e.baseURL, runID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return fmt.Errorf("build cancel request: %w", err)
	}
	e.authorize(httpReq)

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("%w: cancel status %d", ErrUnavailable, resp.StatusCode)
	}
	return nil
}

// Evaluate запрашивает у движка оценку завершённых переговоров.
func (e *HTTPEngine) Evaluate(ctx context.Context, req EvaluationRequest) (*domain.Evaluation, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal evaluation request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/v1/evaluations", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build evaluation request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	e.authorize(httpReq)

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, bodyPreview(resp.Body))
	}

	var wire struct {
		Score   float64 `json:"score"`
		Verdict string  `json:"verdict"`
		Summary string  `json:"summary"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if wire.Verdict == "" {
		return nil, fmt.Errorf("%w: evaluation without verdict", ErrMalformedEvent)
	}

	return &domain.Evaluation{
		Score:       wire.Score,
		Verdict:     wire.Verdict,
		Summary:     wire.Summary,
		EvaluatedAt: time.Now().UTC(),
	}, nil
}

func (e *HTTPEngine) authorize(req *http.Request) {
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}
}

// wireEvent — одна строка NDJSON-потока.
type wireEvent struct {
	Type   string      `json:"type"`
	Round  *wireRound  `json:"round,omitempty"`
	Result *wireResult `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`
}

type wireRound struct {
	Number  int            `json:"number"`
	Speaker string         `json:"speaker"`
	Message string         `json:"message"`
	Offer   map[string]any `json:"offer,omitempty"`
}

type wireResult struct {
	Outcome     string         `json:"outcome"`
	TotalRounds int            `json:"totalRounds"`
	FinalOffer  map[string]any `json:"finalOffer,omitempty"`
}

// readStream собирает результат из потока событий.
// Лог переговоров накапливается из round-событий; доставка
// at-least-once, поэтому повтор уже виденного раунда отбрасывается.
func readStream(r io.Reader, onRound RoundCallback) (*Result, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventSize)

	var log []domain.Round
	lastRound := 0

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var ev wireEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}

		switch ev.Type {
		case eventRound:
			round, err := ev.validRound()
			if err != nil {
				return nil, err
			}
			if round.Number <= lastRound {
				continue
			}
			lastRound = round.Number
			log = append(log, round)
			if onRound != nil {
				onRound(round)
			}

		case eventResult:
			result, err := ev.validResult(log)
			if err != nil {
				return nil, err
			}
			return result, nil

		case eventError:
			msg := ev.Error
			if msg == "" {
				msg = "unspecified"
			}
			return nil, fmt.Errorf("%w: %s", ErrRemoteFault, msg)

		default:
			return nil, fmt.Errorf("%w: unknown event type %q", ErrMalformedEvent, ev.Type)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIncompleteStream, err)
	}
	return nil, ErrIncompleteStream
}

func (ev *wireEvent) validRound() (domain.Round, error) {
	if ev.Round == nil {
		return domain.Round{}, fmt.Errorf("%w: round event without payload", ErrMalformedEvent)
	}
	if ev.Round.Number < 1 {
		return domain.Round{}, fmt.Errorf("%w: round number %d", ErrMalformedEvent, ev.Round.Number)
	}
	if ev.Round.Speaker == "" {
		return domain.Round{}, fmt.Errorf("%w: round %d without speaker", ErrMalformedEvent, ev.Round.Number)
	}
	return domain.Round{
		Number:  ev.Round.Number,
		Speaker: ev.Round.Speaker,
		Message: ev.Round.Message,
		Offer:   ev.Round.Offer,
	}, nil
}

func (ev *wireEvent) validResult(log []domain.Round) (*Result, error) {
	if ev.Result == nil {
		return nil, fmt.Errorf("%w: result event without payload", ErrMalformedEvent)
	}
	if ev.Result.Outcome == "" {
		return nil, fmt.Errorf("%w: result without outcome", ErrMalformedEvent)
	}
	if ev.Result.TotalRounds < 0 {
		return nil, fmt.Errorf("%w: negative totalRounds", ErrMalformedEvent)
	}

	totalRounds := ev.Result.TotalRounds
	if totalRounds == 0 {
		totalRounds = len(log)
	}

	return &Result{
		Outcome:         ev.Result.Outcome,
		TotalRounds:     totalRounds,
		ConversationLog: log,
		FinalOffer:      ev.Result.FinalOffer,
	}, nil
}

// bodyPreview читает начало тела ответа для сообщения об ошибке.
func bodyPreview(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 512))
	return strings.TrimSpace(string(b))
}
