package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/testsuite"
	"go.temporal.io/sdk/workflow"

	"github.com/oakmind/oakmind-backend/internal/dedup"
	"github.com/oakmind/oakmind-backend/internal/domain"
	"github.com/oakmind/oakmind-backend/internal/generation"
	"github.com/oakmind/oakmind-backend/internal/pkg/logger"
)

type fakeEligibility struct {
	allowed bool
	err     error
}

func (f *fakeEligibility) IsAllowed(context.Context, uuid.UUID) (bool, error) {
	return f.allowed, f.err
}

type fakeProcessor struct {
	calls int
	errs  []error // consumed per call; nil entry means success
}

func (f *fakeProcessor) Run(context.Context, domain.GenerationRequest) error {
	f.calls++
	if f.calls <= len(f.errs) {
		return f.errs[f.calls-1]
	}
	return nil
}

type fakeDedupStore struct {
	vals   map[string]string
	delErr error
}

func (f *fakeDedupStore) SetNX(_ context.Context, key string, value interface{}, _ time.Duration) *goredis.BoolCmd {
	if f.vals == nil {
		f.vals = map[string]string{}
	}
	if _, held := f.vals[key]; held {
		return goredis.NewBoolResult(false, nil)
	}
	f.vals[key] = fmt.Sprint(value)
	return goredis.NewBoolResult(true, nil)
}

func (f *fakeDedupStore) Get(_ context.Context, key string) *goredis.StringCmd {
	v, held := f.vals[key]
	if !held {
		return goredis.NewStringResult("", goredis.Nil)
	}
	return goredis.NewStringResult(v, nil)
}

func (f *fakeDedupStore) Del(_ context.Context, keys ...string) *goredis.IntCmd {
	if f.delErr != nil {
		return goredis.NewIntResult(0, f.delErr)
	}
	var n int64
	for _, k := range keys {
		if _, held := f.vals[k]; held {
			delete(f.vals, k)
			n++
		}
	}
	return goredis.NewIntResult(n, nil)
}

type fakeDLT struct {
	entries map[string][][]byte
}

func (f *fakeDLT) RPush(_ context.Context, key string, values ...interface{}) *goredis.IntCmd {
	if f.entries == nil {
		f.entries = map[string][][]byte{}
	}
	for _, v := range values {
		f.entries[key] = append(f.entries[key], v.([]byte))
	}
	return goredis.NewIntResult(int64(len(f.entries[key])), nil)
}

type fakeNotifier struct {
	calls int
	topic string
}

func (f *fakeNotifier) GenerationFailed(topic, _, _ string, _ time.Time, _ string) {
	f.calls++
	f.topic = topic
}

type brokerFixture struct {
	acts        *Activities
	eligibility *fakeEligibility
	processor   *fakeProcessor
	store       *fakeDedupStore
	dlt         *fakeDLT
	notifier    *fakeNotifier
}

func newBrokerFixture(t *testing.T) *brokerFixture {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}

	fx := &brokerFixture{
		eligibility: &fakeEligibility{allowed: true},
		processor:   &fakeProcessor{},
		store:       &fakeDedupStore{},
		dlt:         &fakeDLT{},
		notifier:    &fakeNotifier{},
	}
	fx.acts = &Activities{
		Log:         log,
		Eligibility: fx.eligibility,
		Gate:        dedup.NewGate(fx.store, log),
		Processor:   fx.processor,
		DLT:         fx.dlt,
		Notify:      fx.notifier,
	}
	return fx
}

func testEnvelope(t *testing.T) (Envelope, []byte) {
	t.Helper()
	req := domain.GenerationRequest{
		UseCase:     domain.UseCaseQuizGenerate,
		RequesterID: uuid.New(),
		ContextID:   3,
		Mode:        domain.ModeRandom,
		DedupeKey:   "req-1",
		RequestedAt: time.Now().UTC().Truncate(time.Second),
	}
	payload, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	return Envelope{Topic: TopicGenerationRequested, Payload: payload}, payload
}

func newWorkflowEnv(t *testing.T, fx *brokerFixture) *testsuite.TestWorkflowEnvironment {
	t.Helper()
	ts := &testsuite.WorkflowTestSuite{}
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflowWithOptions(GenerationWorkflow, workflow.RegisterOptions{Name: WorkflowGenerationRequest})
	env.RegisterActivityWithOptions(fx.acts.ProcessGenerationRequest, activity.RegisterOptions{Name: ActivityProcess})
	env.RegisterActivityWithOptions(fx.acts.DeadLetter, activity.RegisterOptions{Name: ActivityDeadLetter})
	return env
}

func TestWorkflowExhaustedRetriesDeadLetter(t *testing.T) {
	fx := newBrokerFixture(t)
	fx.processor.errs = []error{
		fmt.Errorf("%w: timeout", generation.ErrGenerationUnavailable),
		fmt.Errorf("%w: timeout", generation.ErrGenerationUnavailable),
		fmt.Errorf("%w: timeout", generation.ErrGenerationUnavailable),
		fmt.Errorf("%w: timeout", generation.ErrGenerationUnavailable),
		fmt.Errorf("%w: timeout", generation.ErrGenerationUnavailable),
	}

	env := newWorkflowEnv(t, fx)
	envlp, payload := testEnvelope(t)
	env.ExecuteWorkflow(WorkflowGenerationRequest, envlp)

	if !env.IsWorkflowCompleted() {
		t.Fatal("workflow did not complete")
	}
	if env.GetWorkflowError() == nil {
		t.Fatal("exhausted workflow must fail")
	}
	if fx.processor.calls != RetryMaximumAttempts {
		t.Fatalf("processor ran %d times, want exactly %d", fx.processor.calls, RetryMaximumAttempts)
	}

	channel := DeadLetterChannel(TopicGenerationRequested)
	entries := fx.dlt.entries[channel]
	if len(entries) != 1 {
		t.Fatalf("dead-letter channel has %d entries, want exactly 1", len(entries))
	}
	if !bytes.Equal(entries[0], payload) {
		t.Fatal("dead-lettered payload must match the original byte-for-byte")
	}
	if fx.notifier.calls != 1 || fx.notifier.topic != TopicGenerationRequested {
		t.Fatalf("notifier calls=%d topic=%q", fx.notifier.calls, fx.notifier.topic)
	}
}

func TestWorkflowSucceedsMidRetry(t *testing.T) {
	fx := newBrokerFixture(t)
	fx.processor.errs = []error{
		fmt.Errorf("%w: flaky", generation.ErrGenerationUnavailable),
		fmt.Errorf("%w: bad batch", generation.ErrContractViolation),
		// third attempt succeeds
	}

	env := newWorkflowEnv(t, fx)
	envlp, _ := testEnvelope(t)
	env.ExecuteWorkflow(WorkflowGenerationRequest, envlp)

	if err := env.GetWorkflowError(); err != nil {
		t.Fatalf("workflow failed: %v", err)
	}
	if fx.processor.calls != 3 {
		t.Fatalf("processor ran %d times, want 3", fx.processor.calls)
	}
	if len(fx.dlt.entries) != 0 {
		t.Fatal("successful request must not be dead-lettered")
	}
}

func TestWorkflowEligibilityDeniedDropsWithoutDeadLetter(t *testing.T) {
	fx := newBrokerFixture(t)
	fx.eligibility.allowed = false

	env := newWorkflowEnv(t, fx)
	envlp, _ := testEnvelope(t)
	env.ExecuteWorkflow(WorkflowGenerationRequest, envlp)

	if err := env.GetWorkflowError(); err != nil {
		t.Fatalf("denied request must complete cleanly, got %v", err)
	}
	if fx.processor.calls != 0 {
		t.Fatal("denied request must never reach the processor")
	}
	if len(fx.dlt.entries) != 0 {
		t.Fatal("denied request must not be dead-lettered")
	}
	if fx.notifier.calls != 0 {
		t.Fatal("denied request must not raise a failure alert")
	}
}

func TestWorkflowDedupSuppressedIsNoOpSuccess(t *testing.T) {
	fx := newBrokerFixture(t)
	envlp, _ := testEnvelope(t)

	var req domain.GenerationRequest
	if err := json.Unmarshal(envlp.Payload, &req); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	key := dedup.CoarseKey(req.UseCase, req.RequesterID, req.ContextID, req.DedupeKey)
	if ok, err := fx.acts.Gate.TryAcquire(context.Background(), key, dedup.CoarseTTL); err != nil || !ok {
		t.Fatalf("pre-hold lock: ok=%v err=%v", ok, err)
	}

	env := newWorkflowEnv(t, fx)
	env.ExecuteWorkflow(WorkflowGenerationRequest, envlp)

	if err := env.GetWorkflowError(); err != nil {
		t.Fatalf("suppressed duplicate must be a no-op success, got %v", err)
	}
	if fx.processor.calls != 0 {
		t.Fatal("suppressed duplicate must never reach the processor")
	}
}

func TestWorkflowUndecodablePayloadDeadLettersImmediately(t *testing.T) {
	fx := newBrokerFixture(t)
	envlp := Envelope{Topic: TopicReviewRequested, Payload: []byte("not json")}

	env := newWorkflowEnv(t, fx)
	env.ExecuteWorkflow(WorkflowGenerationRequest, envlp)

	if env.GetWorkflowError() == nil {
		t.Fatal("undecodable payload must fail the workflow")
	}
	entries := fx.dlt.entries[DeadLetterChannel(TopicReviewRequested)]
	if len(entries) != 1 {
		t.Fatalf("dead-letter entries = %d, want 1", len(entries))
	}
	if string(entries[0]) != "not json" {
		t.Fatal("payload must be preserved verbatim")
	}
}

func TestProcessReleasesLockOnFailure(t *testing.T) {
	fx := newBrokerFixture(t)
	fx.processor.errs = []error{errors.New("boom")}

	ts := &testsuite.WorkflowTestSuite{}
	env := ts.NewTestActivityEnvironment()
	env.RegisterActivityWithOptions(fx.acts.ProcessGenerationRequest, activity.RegisterOptions{Name: ActivityProcess})

	envlp, _ := testEnvelope(t)
	if _, err := env.ExecuteActivity(ActivityProcess, envlp); err == nil {
		t.Fatal("expected failure")
	}

	// A second delivery must not be suppressed by the failed attempt's lock.
	if _, err := env.ExecuteActivity(ActivityProcess, envlp); err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
	if fx.processor.calls != 2 {
		t.Fatalf("processor calls = %d, want 2", fx.processor.calls)
	}
}

func TestProcessReentersOwnLockWhenReleaseLost(t *testing.T) {
	fx := newBrokerFixture(t)
	fx.processor.errs = []error{errors.New("boom")}
	fx.store.delErr = errors.New("store unreachable")

	ts := &testsuite.WorkflowTestSuite{}
	env := ts.NewTestActivityEnvironment()
	env.RegisterActivityWithOptions(fx.acts.ProcessGenerationRequest, activity.RegisterOptions{Name: ActivityProcess})

	envlp, _ := testEnvelope(t)
	if _, err := env.ExecuteActivity(ActivityProcess, envlp); err == nil {
		t.Fatal("expected failure")
	}

	// The release was lost, so the lock still carries this run's id. The next
	// attempt must re-enter its own lock, not report a completed duplicate.
	if _, err := env.ExecuteActivity(ActivityProcess, envlp); err != nil {
		t.Fatalf("retry after lost release: %v", err)
	}
	if fx.processor.calls != 2 {
		t.Fatalf("processor calls = %d, want 2", fx.processor.calls)
	}
}
