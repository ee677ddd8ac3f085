package orchestrator

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Negotium/internal/domain"
	"github.com/shaiso/Negotium/internal/engine"
	"github.com/shaiso/Negotium/internal/events"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// --- ExecuteNext Tests ---

func TestExecuteNext_RunsQueueToCompletion(t *testing.T) {
	env := newTestEnv(t)
	negotiation := env.seedNegotiation()
	queue := env.seedQueue(negotiation.ID, 4)

	// 4 pending runs: exactly 4 dispatches, then the drained signal.
	for i := 0; i < 4; i++ {
		ok, err := env.orc.ExecuteNext(context.Background(), queue.ID)
		if err != nil {
			t.Fatalf("call %d: unexpected error: %v", i+1, err)
		}
		if !ok {
			t.Fatalf("call %d: expected ok=true", i+1)
		}
	}
	ok, err := env.orc.ExecuteNext(context.Background(), queue.ID)
	if err != nil {
		t.Fatalf("final call: unexpected error: %v", err)
	}
	if ok {
		t.Error("drained queue should report ok=false")
	}

	// Runs executed strictly in execution order.
	orderByRun := make(map[uuid.UUID]int)
	for _, run := range env.queueRuns(queue.ID) {
		orderByRun[run.ID] = run.ExecutionOrder
	}
	executed := env.eng.executedRuns()
	if len(executed) != 4 {
		t.Fatalf("expected 4 engine calls, got %d", len(executed))
	}
	for i, id := range executed {
		if orderByRun[id] != i+1 {
			t.Errorf("engine call %d executed run with order %d", i+1, orderByRun[id])
		}
	}

	for _, run := range env.queueRuns(queue.ID) {
		if run.Status != domain.SimulationStatusCompleted {
			t.Errorf("run %d: expected COMPLETED, got %s", run.ExecutionOrder, run.Status)
		}
		if run.Outcome != engine.OutcomeAgreement {
			t.Errorf("run %d: expected AGREEMENT outcome, got %q", run.ExecutionOrder, run.Outcome)
		}
		if !almostEqual(run.ActualCost, 2*domain.CostPerRound) {
			t.Errorf("run %d: expected cost for 2 rounds, got %f", run.ExecutionOrder, run.ActualCost)
		}
	}

	got := env.queue(queue.ID)
	if got.Status != domain.QueueStatusCompleted {
		t.Errorf("expected queue COMPLETED, got %s", got.Status)
	}
	if got.CompletedAt == nil {
		t.Error("completed queue should have completion stamp")
	}
	if !almostEqual(got.ActualCost, 4*2*domain.CostPerRound) {
		t.Errorf("expected queue cost summed from runs, got %f", got.ActualCost)
	}
	if env.negotiation(negotiation.ID).Status != domain.NegotiationStatusCompleted {
		t.Error("negotiation status should follow queue completion")
	}

	report, err := env.orc.QueueStatus(context.Background(), queue.ID)
	if err != nil {
		t.Fatalf("QueueStatus: %v", err)
	}
	if report.Counts.Completed() != 4 {
		t.Errorf("expected completed count 4, got %d", report.Counts.Completed())
	}
	if report.Counts.Failed() != 0 {
		t.Errorf("expected failed count 0, got %d", report.Counts.Failed())
	}

	// Engine requests carry the negotiation round limit.
	if env.eng.requests[0].MaxRounds != negotiation.MaxRounds {
		t.Errorf("expected max rounds %d, got %d", negotiation.MaxRounds, env.eng.requests[0].MaxRounds)
	}
	if env.eng.requests[0].QueueID != queue.ID {
		t.Error("engine request should carry queue id")
	}

	if n := env.bus.countOf(events.EventSimulationStarted); n != 4 {
		t.Errorf("expected 4 started events, got %d", n)
	}
	if n := env.bus.countOf(events.EventSimulationCompleted); n != 4 {
		t.Errorf("expected 4 completed events, got %d", n)
	}
	if n := env.bus.countOf(events.EventQueueCompleted); n != 1 {
		t.Errorf("expected 1 queue.completed event, got %d", n)
	}
	if n := env.bus.countOf(events.EventQueueProgress); n != 3 {
		t.Errorf("expected 3 progress events, got %d", n)
	}
}

func TestExecuteNext_EmptyQueueCompletes(t *testing.T) {
	env := newTestEnv(t)
	negotiation := env.seedNegotiation()
	queue := env.seedQueue(negotiation.ID, 2)

	// All runs already finished, queue status never advanced.
	for _, run := range env.queueRuns(queue.ID) {
		env.mutateRun(run.ID, func(r *domain.SimulationRun) {
			r.MarkCompleted(engine.OutcomeAgreement)
			r.ActualCost = 2 * domain.CostPerRound
		})
	}

	ok, err := env.orc.ExecuteNext(context.Background(), queue.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected ok=false for queue with no pending runs")
	}

	got := env.queue(queue.ID)
	if got.Status != domain.QueueStatusCompleted {
		t.Errorf("expected queue COMPLETED, got %s", got.Status)
	}
	if !almostEqual(got.ActualCost, 2*2*domain.CostPerRound) {
		t.Errorf("expected cost recomputed from runs, got %f", got.ActualCost)
	}
	if n := env.bus.countOf(events.EventQueueCompleted); n != 1 {
		t.Errorf("expected 1 queue.completed event, got %d", n)
	}
	if env.eng.callCount() != 0 {
		t.Error("no engine calls expected for drained queue")
	}
}

func TestExecuteNext_QueueNotFound(t *testing.T) {
	env := newTestEnv(t)

	ok, err := env.orc.ExecuteNext(context.Background(), uuid.New())
	if ok {
		t.Error("expected ok=false for unknown queue")
	}
	if !errors.Is(err, ErrQueueNotFound) {
		t.Errorf("expected ErrQueueNotFound, got %v", err)
	}
}

func TestExecuteNext_RetryAfterEngineFault(t *testing.T) {
	env := newTestEnv(t)
	negotiation := env.seedNegotiation()
	queue := env.seedQueue(negotiation.ID, 1)
	env.eng.faults = 1

	ok, err := env.orc.ExecuteNext(context.Background(), queue.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("faulted run should keep the drain loop going")
	}

	runs := env.queueRuns(queue.ID)
	run := runs[0]
	if run.Status != domain.SimulationStatusPending {
		t.Fatalf("expected run back in PENDING after fault, got %s", run.Status)
	}
	if run.RetryCount != 1 {
		t.Errorf("expected retry count 1, got %d", run.RetryCount)
	}
	if run.StartedAt != nil {
		t.Error("retry reset should clear the start stamp")
	}
	if run.Error != "" {
		t.Errorf("retry reset should clear the error, got %q", run.Error)
	}
	if run.RecoverySnapshot != nil {
		t.Error("retry reset should clear the recovery snapshot")
	}
	if n := env.bus.countOf(events.EventSimulationFailed); n != 0 {
		t.Errorf("retry is not a terminal failure, got %d failed events", n)
	}

	// Second attempt succeeds and closes the queue.
	ok, err = env.orc.ExecuteNext(context.Background(), queue.ID)
	if err != nil || !ok {
		t.Fatalf("second attempt: ok=%v err=%v", ok, err)
	}

	run = env.run(run.ID)
	if run.Status != domain.SimulationStatusCompleted {
		t.Errorf("expected COMPLETED after retry, got %s", run.Status)
	}
	if run.RetryCount != 1 {
		t.Errorf("retry count should survive the successful attempt, got %d", run.RetryCount)
	}
	if env.queue(queue.ID).Status != domain.QueueStatusCompleted {
		t.Error("queue should complete after the retried run finishes")
	}
	if env.eng.callCount() != 2 {
		t.Errorf("expected 2 engine calls, got %d", env.eng.callCount())
	}
}

func TestExecuteNext_FaultsExhaustRetries(t *testing.T) {
	env := newTestEnv(t)
	negotiation := env.seedNegotiation()
	queue := env.seedQueue(negotiation.ID, 1)
	env.eng.faults = 3 // maxRetries is 3: attempts 1..3 fault, no 4th attempt

	env.drainFully(queue.ID)

	run := env.queueRuns(queue.ID)[0]
	if run.Status != domain.SimulationStatusFailed {
		t.Fatalf("expected FAILED after exhausted retries, got %s", run.Status)
	}
	if run.RetryCount != 3 {
		t.Errorf("expected retry count 3, got %d", run.RetryCount)
	}
	if run.CompletedAt == nil {
		t.Error("terminal failure should carry a completion stamp")
	}
	if !strings.HasPrefix(run.Error, "executor fault after 3 attempts") {
		t.Errorf("unexpected error text: %q", run.Error)
	}
	if !strings.Contains(run.Error, "engine transport down") {
		t.Errorf("error should carry the engine cause, got %q", run.Error)
	}

	if env.eng.callCount() != 3 {
		t.Errorf("expected exactly 3 attempts, got %d", env.eng.callCount())
	}

	report, err := env.orc.QueueStatus(context.Background(), queue.ID)
	if err != nil {
		t.Fatalf("QueueStatus: %v", err)
	}
	if report.Queue.Status != domain.QueueStatusCompleted {
		t.Errorf("queue should complete even with failed runs, got %s", report.Queue.Status)
	}
	if report.Counts.Failed() != 1 {
		t.Errorf("expected failed count 1, got %d", report.Counts.Failed())
	}
	if n := env.bus.countOf(events.EventSimulationFailed); n != 1 {
		t.Errorf("expected exactly 1 failed event, got %d", n)
	}
	if n := env.bus.countOf(events.EventSimulationStarted); n != 3 {
		t.Errorf("each attempt announces itself, expected 3 started events, got %d", n)
	}
}

func TestExecuteNext_MaxRoundsBecomesTimeout(t *testing.T) {
	env := newTestEnv(t)
	negotiation := env.seedNegotiation()
	queue := env.seedQueue(negotiation.ID, 1)
	env.eng.setOutcome(engine.OutcomeMaxRounds)

	env.drainFully(queue.ID)

	run := env.queueRuns(queue.ID)[0]
	if run.Status != domain.SimulationStatusTimeout {
		t.Fatalf("expected TIMEOUT for MAX_ROUNDS outcome, got %s", run.Status)
	}
	if run.Outcome != engine.OutcomeMaxRounds {
		t.Errorf("engine outcome should be preserved, got %q", run.Outcome)
	}
	if run.Error != "max rounds exhausted without resolution" {
		t.Errorf("unexpected error text: %q", run.Error)
	}

	// TIMEOUT is terminal: no automatic second attempt.
	if env.eng.callCount() != 1 {
		t.Errorf("expected 1 engine call, got %d", env.eng.callCount())
	}
	if env.queue(queue.ID).Status != domain.QueueStatusCompleted {
		t.Error("queue should complete")
	}
	if n := env.bus.countOf(events.EventSimulationFailed); n != 1 {
		t.Errorf("timeout counts as failure event, got %d", n)
	}
}

func TestExecuteNext_UnknownOutcomeFails(t *testing.T) {
	env := newTestEnv(t)
	negotiation := env.seedNegotiation()
	queue := env.seedQueue(negotiation.ID, 1)
	env.eng.setOutcome("EXPLODED")

	env.drainFully(queue.ID)

	run := env.queueRuns(queue.ID)[0]
	if run.Status != domain.SimulationStatusFailed {
		t.Fatalf("expected FAILED for unknown outcome, got %s", run.Status)
	}
	if run.Outcome != "EXPLODED" {
		t.Errorf("raw outcome should be preserved for diagnostics, got %q", run.Outcome)
	}
	if run.Error != `unrecognized outcome "EXPLODED"` {
		t.Errorf("unexpected error text: %q", run.Error)
	}
	if env.eng.callCount() != 1 {
		t.Errorf("unknown outcome is not retried, got %d calls", env.eng.callCount())
	}
}

func TestExecuteNext_PausedOutcomeSuspendsQueue(t *testing.T) {
	env := newTestEnv(t)
	negotiation := env.seedNegotiation()
	queue := env.seedQueue(negotiation.ID, 2)
	env.eng.setOutcome(engine.OutcomePaused)

	ok, err := env.orc.ExecuteNext(context.Background(), queue.ID)
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	if ok {
		t.Error("pause outcome should halt the drain immediately")
	}

	run := env.queueRuns(queue.ID)[0]
	if run.Status != domain.SimulationStatusPaused {
		t.Fatalf("expected PAUSED run, got %s", run.Status)
	}
	if run.CompletedAt != nil {
		t.Error("PAUSED is not terminal, no completion stamp expected")
	}
	if env.queue(queue.ID).Status != domain.QueueStatusPaused {
		t.Error("queue should follow the paused simulation")
	}

	// Paused queue dispatches nothing.
	ok, err = env.orc.ExecuteNext(context.Background(), queue.ID)
	if err != nil {
		t.Fatalf("paused call: %v", err)
	}
	if ok {
		t.Error("paused queue should not dispatch")
	}
	if env.eng.callCount() != 1 {
		t.Errorf("expected engine untouched while paused, got %d calls", env.eng.callCount())
	}

	// Resume puts the paused run back in rotation.
	if err := env.orc.ResumeQueue(context.Background(), queue.ID); err != nil {
		t.Fatalf("ResumeQueue: %v", err)
	}
	resumed := env.run(run.ID)
	if resumed.Status != domain.SimulationStatusPending {
		t.Fatalf("expected PENDING after resume, got %s", resumed.Status)
	}
	if resumed.Outcome != "" {
		t.Errorf("resume should clear the pause outcome, got %q", resumed.Outcome)
	}
	if env.queue(queue.ID).Status != domain.QueueStatusRunning {
		t.Error("queue should be RUNNING after resume")
	}

	env.eng.setOutcome(engine.OutcomeAgreement)
	env.drainFully(queue.ID)

	got := env.queue(queue.ID)
	if got.Status != domain.QueueStatusCompleted {
		t.Errorf("expected COMPLETED after resume and drain, got %s", got.Status)
	}
	for _, run := range env.queueRuns(queue.ID) {
		if run.Status != domain.SimulationStatusCompleted {
			t.Errorf("run %d: expected COMPLETED, got %s", run.ExecutionOrder, run.Status)
		}
	}
}

func TestExecuteNext_ComputesDealValue(t *testing.T) {
	env := newTestEnv(t)
	negotiation := env.seedNegotiation()
	product := env.seedProduct(negotiation.ID, "WidgetA", 100)
	queue := env.seedQueue(negotiation.ID, 1)
	env.eng.finalOffer = map[string]any{
		"Preis_WidgetA": 12.5,
		"Lieferzeit":    "14 Tage",
	}

	env.drainFully(queue.ID)

	run := env.queueRuns(queue.ID)[0]
	if run.DealValue == nil {
		t.Fatal("expected deal value for matched product")
	}
	if *run.DealValue != "1250.00" {
		t.Errorf("expected deal value 1250.00, got %s", *run.DealValue)
	}
	if len(run.ProductRows) != 1 {
		t.Fatalf("expected 1 product row, got %d", len(run.ProductRows))
	}
	row := run.ProductRows[0]
	if row.ProductID != product.ID {
		t.Error("product row should reference the catalog product")
	}
	if row.MatchedKey != "Preis_WidgetA" {
		t.Errorf("expected matched key Preis_WidgetA, got %s", row.MatchedKey)
	}
	if !almostEqual(row.Subtotal, 1250) {
		t.Errorf("expected subtotal 1250, got %f", row.Subtotal)
	}
	if run.OtherDimensions["Lieferzeit"] != "14 Tage" {
		t.Errorf("unmatched dimension should be retained, got %v", run.OtherDimensions)
	}

	// The completed event carries the computed value.
	completed := env.bus.ofType(events.EventSimulationCompleted)
	if len(completed) != 1 {
		t.Fatalf("expected 1 completed event, got %d", len(completed))
	}
	payload, ok := completed[0].Payload.(runEventPayload)
	if !ok {
		t.Fatalf("unexpected payload type %T", completed[0].Payload)
	}
	if payload.DealValue == nil || *payload.DealValue != "1250.00" {
		t.Error("completed event should carry the deal value")
	}
}

func TestExecuteNext_StreamsRoundsAndSnapshot(t *testing.T) {
	env := newTestEnv(t)
	negotiation := env.seedNegotiation()
	queue := env.seedQueue(negotiation.ID, 1)
	env.eng.rounds = []domain.Round{
		{Number: 1, Speaker: "user", Message: "opening"},
		{Number: 2, Speaker: "counterpart", Message: "counter"},
		{Number: 3, Speaker: "user", Message: "accept", Offer: map[string]any{"Preis": 9.5}},
	}

	env.drainFully(queue.ID)

	rounds := env.bus.ofType(events.EventSimulationRound)
	if len(rounds) != 3 {
		t.Fatalf("expected 3 round events, got %d", len(rounds))
	}
	for i, ev := range rounds {
		payload, ok := ev.Payload.(roundEventPayload)
		if !ok {
			t.Fatalf("unexpected payload type %T", ev.Payload)
		}
		if payload.Number != i+1 {
			t.Errorf("round event %d: expected number %d, got %d", i, i+1, payload.Number)
		}
	}

	run := env.queueRuns(queue.ID)[0]
	if run.TotalRounds != 3 {
		t.Errorf("expected 3 rounds, got %d", run.TotalRounds)
	}
	if len(run.ConversationLog) != 3 {
		t.Errorf("expected conversation log of 3, got %d", len(run.ConversationLog))
	}
	if !almostEqual(run.ActualCost, 3*domain.CostPerRound) {
		t.Errorf("expected cost for 3 rounds, got %f", run.ActualCost)
	}
	if run.RecoverySnapshot == nil {
		t.Fatal("expected recovery snapshot on the run")
	}
	if run.RecoverySnapshot.Round != 3 {
		t.Errorf("snapshot should track the last round, got %d", run.RecoverySnapshot.Round)
	}
	if run.RecoverySnapshot.QueueID != queue.ID {
		t.Error("snapshot should reference the queue")
	}
}

func TestExecuteNext_CancellationKeepsRunRunning(t *testing.T) {
	env := newTestEnv(t)
	negotiation := env.seedNegotiation()
	queue := env.seedQueue(negotiation.ID, 1)
	env.eng.started = make(chan uuid.UUID, 4)
	env.eng.release = make(chan struct{}) // never closed: only ctx can end the call

	ctx, cancel := context.WithCancel(context.Background())
	type result struct {
		ok  bool
		err error
	}
	done := make(chan result, 1)
	go func() {
		ok, err := env.orc.ExecuteNext(ctx, queue.ID)
		done <- result{ok, err}
	}()

	runID := recvRun(t, env.eng.started)
	cancel()

	res := <-done
	if res.ok {
		t.Error("canceled dispatch should not ask for another run")
	}
	if !errors.Is(res.err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", res.err)
	}

	// The run is left RUNNING on purpose: reaper or recovery picks it up.
	run := env.run(runID)
	if run.Status != domain.SimulationStatusRunning {
		t.Errorf("expected run left RUNNING after shutdown, got %s", run.Status)
	}
	if run.RetryCount != 0 {
		t.Errorf("shutdown must not consume a retry, got count %d", run.RetryCount)
	}
	if n := env.bus.countOf(events.EventSimulationFailed); n != 0 {
		t.Errorf("shutdown is not a failure, got %d failed events", n)
	}
}

func TestExecuteNext_EvaluationOnlyOnAgreement(t *testing.T) {
	env := newTestEnv(t)
	negotiation := env.seedNegotiation()

	agreed := env.seedQueue(negotiation.ID, 1)
	env.drainFully(agreed.ID)

	select {
	case runID := <-env.pub.notify:
		want := env.queueRuns(agreed.ID)[0].ID
		if runID != want {
			t.Errorf("expected evaluation request for run %s, got %s", want, runID)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("expected evaluation request for AGREEMENT outcome")
	}

	// TERMINATED completes the run but is not worth evaluating.
	env.eng.setOutcome(engine.OutcomeTerminated)
	terminated := env.seedQueue(negotiation.ID, 1)
	env.drainFully(terminated.ID)

	run := env.queueRuns(terminated.ID)[0]
	if run.Status != domain.SimulationStatusCompleted {
		t.Fatalf("expected TERMINATED to classify as COMPLETED, got %s", run.Status)
	}
	if env.pub.publishedCount() != 1 {
		t.Errorf("expected no evaluation request for TERMINATED, got %d total", env.pub.publishedCount())
	}
}

func TestExecuteNext_DefaultMaxRoundsWithoutNegotiation(t *testing.T) {
	env := newTestEnv(t)
	// Queue references a negotiation that was never stored: the dispatch
	// still works, falling back to the default round limit.
	queue := env.seedQueue(uuid.New(), 1)

	env.drainFully(queue.ID)

	if env.eng.requests[0].MaxRounds != domain.DefaultMaxRounds {
		t.Errorf("expected default max rounds %d, got %d", domain.DefaultMaxRounds, env.eng.requests[0].MaxRounds)
	}
	if env.queue(queue.ID).Status != domain.QueueStatusCompleted {
		t.Error("queue should still complete")
	}
}
