package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shaiso/Negotium/internal/matrix"
	"github.com/shaiso/Negotium/internal/orchestrator"
	"github.com/shaiso/Negotium/internal/repo"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSuccess_Envelope(t *testing.T) {
	rec := httptest.NewRecorder()

	Success(rec, map[string]string{"hello": "world"})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var resp struct {
		Data map[string]string `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Data["hello"] != "world" {
		t.Errorf("data = %v, want hello=world", resp.Data)
	}
}

func TestList_Envelope(t *testing.T) {
	rec := httptest.NewRecorder()

	List(rec, []int{1, 2, 3}, 3)

	var resp struct {
		Data  []int `json:"data"`
		Total int   `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(resp.Data) != 3 || resp.Total != 3 {
		t.Errorf("data = %v total = %d, want 3 items total 3", resp.Data, resp.Total)
	}
}

func TestError_Envelope(t *testing.T) {
	rec := httptest.NewRecorder()

	BadRequest(rec, "title is required")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Error.Code != ErrCodeValidation {
		t.Errorf("code = %q, want %q", resp.Error.Code, ErrCodeValidation)
	}
	if resp.Error.Message != "title is required" {
		t.Errorf("message = %q", resp.Error.Message)
	}
}

func TestHandleDomainError_NilError(t *testing.T) {
	rec := httptest.NewRecorder()

	if HandleDomainError(rec, discardLogger(), nil, "") {
		t.Fatal("HandleDomainError(nil) = true, want false")
	}
	if rec.Body.Len() != 0 {
		t.Errorf("nil error wrote a body: %s", rec.Body.String())
	}
}

func TestHandleDomainError_Mapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   ErrorCode
	}{
		{
			name:       "matrix validation error maps to 400",
			err:        matrix.NewValidationError("technique_ids", "at least one technique is required", matrix.ErrEmptyTechniques),
			wantStatus: http.StatusBadRequest,
			wantCode:   ErrCodeValidation,
		},
		{
			name:       "wrapped validation error maps to 400",
			err:        fmt.Errorf("create queue: %w", matrix.NewValidationError("tactic_ids", "duplicate id", matrix.ErrDuplicateAxisValue)),
			wantStatus: http.StatusBadRequest,
			wantCode:   ErrCodeValidation,
		},
		{
			name:       "negotiation not found maps to 404",
			err:        orchestrator.ErrNegotiationNotFound,
			wantStatus: http.StatusNotFound,
			wantCode:   ErrCodeNotFound,
		},
		{
			name:       "queue not found maps to 404",
			err:        fmt.Errorf("queue lookup: %w", orchestrator.ErrQueueNotFound),
			wantStatus: http.StatusNotFound,
			wantCode:   ErrCodeNotFound,
		},
		{
			name:       "repo not found maps to 404",
			err:        repo.ErrNotFound,
			wantStatus: http.StatusNotFound,
			wantCode:   ErrCodeNotFound,
		},
		{
			name:       "already exists maps to 409",
			err:        repo.ErrAlreadyExists,
			wantStatus: http.StatusConflict,
			wantCode:   ErrCodeConflict,
		},
		{
			name:       "paused queue maps to 422",
			err:        orchestrator.ErrQueuePaused,
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   ErrCodeInvalidState,
		},
		{
			name:       "queue not active maps to 422",
			err:        orchestrator.ErrQueueNotActive,
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   ErrCodeInvalidState,
		},
		{
			name:       "nothing to restart maps to 422",
			err:        orchestrator.ErrNothingToRestart,
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   ErrCodeInvalidState,
		},
		{
			name:       "unknown error maps to 500",
			err:        errors.New("connection reset"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   ErrCodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()

			if !HandleDomainError(rec, discardLogger(), tt.err, "not found") {
				t.Fatal("HandleDomainError = false, want true")
			}
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			var resp ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("unmarshal response: %v", err)
			}
			if resp.Error.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", resp.Error.Code, tt.wantCode)
			}
		})
	}
}

func TestLogging_CapturesStatus(t *testing.T) {
	// The wrapper must report the handler's actual status, not the
	// default 200.
	var handler http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		NotFound(w, "nope")
	})
	handler = Logging(discardLogger())(handler)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/negotiations/x", nil)
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestRecovery_ConvertsPanicTo500(t *testing.T) {
	var handler http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
	handler = Recovery(discardLogger())(handler)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/queues/x", nil)
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Error.Code != ErrCodeInternal {
		t.Errorf("code = %q, want %q", resp.Error.Code, ErrCodeInternal)
	}
}
