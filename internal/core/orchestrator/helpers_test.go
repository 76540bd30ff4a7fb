package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ogurasousui/payroll-orchestrator/internal/core/payroll"
	"github.com/ogurasousui/payroll-orchestrator/internal/core/runstate"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const testPollInterval = 5 * time.Millisecond

type calcCall struct {
	payDate string
	flags   payroll.CalculationFlags
}

type fakeBackend struct {
	mu sync.Mutex

	calculateFn func(payDate string, flags payroll.CalculationFlags) (*payroll.CalculationResult, error)
	statusFn    func(runID string, call int) (*payroll.ApprovalWorkflow, error)
	discardFn   func(runID string) error
	summary     []payroll.EmployeeSnapshot
	summaryErr  error
	submitErr   error
	paymentErr  error
	discardErr  error

	calculateCalls []calcCall
	statusCalls    int
	submitCalls    []string
	paymentCalls   []string
	discardCalls   []string
}

func (f *fakeBackend) Calculate(_ context.Context, payDate string, flags payroll.CalculationFlags) (*payroll.CalculationResult, error) {
	f.mu.Lock()
	f.calculateCalls = append(f.calculateCalls, calcCall{payDate: payDate, flags: flags})
	fn := f.calculateFn
	f.mu.Unlock()
	if fn == nil {
		return &payroll.CalculationResult{RunID: "r1", EmployeeSnapshots: makeSnapshots(10, 0, 0)}, nil
	}
	return fn(payDate, flags)
}

func (f *fakeBackend) GetSummary(_ context.Context, _ string) ([]payroll.EmployeeSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.summary, f.summaryErr
}

func (f *fakeBackend) GetApprovalStatus(_ context.Context, runID string) (*payroll.ApprovalWorkflow, error) {
	f.mu.Lock()
	f.statusCalls++
	call := f.statusCalls
	fn := f.statusFn
	f.mu.Unlock()
	if fn == nil {
		return &payroll.ApprovalWorkflow{RunID: runID, Status: payroll.ApprovalStatusNotSubmitted}, nil
	}
	return fn(runID, call)
}

func (f *fakeBackend) SubmitForApproval(_ context.Context, runID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitCalls = append(f.submitCalls, runID)
	return f.submitErr
}

func (f *fakeBackend) CompletePayment(_ context.Context, runID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paymentCalls = append(f.paymentCalls, runID)
	return f.paymentErr
}

func (f *fakeBackend) DiscardRun(_ context.Context, runID string) error {
	f.mu.Lock()
	f.discardCalls = append(f.discardCalls, runID)
	fn, err := f.discardFn, f.discardErr
	f.mu.Unlock()
	if fn != nil {
		return fn(runID)
	}
	return err
}

func (f *fakeBackend) ListOffCycleElements(context.Context, string) ([]payroll.OffCyclePayElement, error) {
	return nil, nil
}

func (f *fakeBackend) CreateOffCycleElement(_ context.Context, e payroll.OffCyclePayElement) (*payroll.OffCyclePayElement, error) {
	return &e, nil
}

func (f *fakeBackend) DeleteOffCycleElement(context.Context, string) error {
	return nil
}

func (f *fakeBackend) discarded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.discardCalls...)
}

func (f *fakeBackend) counts() (status, submit, payment, discard int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statusCalls, len(f.submitCalls), len(f.paymentCalls), len(f.discardCalls)
}

// countingKV は書き込まれた値をキーごとに記録します。
type countingKV struct {
	*runstate.MemoryKV
	mu     sync.Mutex
	writes map[string][]string
}

func newCountingKV() *countingKV {
	return &countingKV{MemoryKV: runstate.NewMemoryKV(), writes: make(map[string][]string)}
}

func (k *countingKV) Set(ctx context.Context, key, value string) error {
	k.mu.Lock()
	k.writes[key] = append(k.writes[key], value)
	k.mu.Unlock()
	return k.MemoryKV.Set(ctx, key, value)
}

func (k *countingKV) writesOf(key string) []string {
	k.mu.Lock()
	defer k.mu.Unlock()
	out := make([]string, len(k.writes[key]))
	copy(out, k.writes[key])
	return out
}

func makeSnapshots(continuing, starters, leavers int) []payroll.EmployeeSnapshot {
	var out []payroll.EmployeeSnapshot
	for i := 0; i < continuing; i++ {
		out = append(out, payroll.EmployeeSnapshot{EmployeeID: fmt.Sprintf("emp-%d", i), GrossSalary: 300000, Tax: 60000, NetSalary: 240000})
	}
	for i := 0; i < starters; i++ {
		out = append(out, payroll.EmployeeSnapshot{EmployeeID: fmt.Sprintf("starter-%d", i), IsStarter: true})
	}
	for i := 0; i < leavers; i++ {
		out = append(out, payroll.EmployeeSnapshot{EmployeeID: fmt.Sprintf("leaver-%d", i), IsLeaver: true})
	}
	return out
}

func testVariant(v Variant) Variant {
	v.PollInterval = testPollInterval
	return v
}

type harness struct {
	ctrl    *Controller
	backend *fakeBackend
	store   *runstate.Store
	kv      *countingKV
}

func newHarness(t *testing.T, variant Variant, backend *fakeBackend) *harness {
	t.Helper()
	kv := newCountingKV()
	return newHarnessWithKV(t, variant, backend, kv)
}

func newHarnessWithKV(t *testing.T, variant Variant, backend *fakeBackend, kv *countingKV) *harness {
	t.Helper()
	store := runstate.NewStore(kv, runstate.NewKeys(variant.KeyPrefix), nil, zerolog.Nop())
	ctrl, err := NewController(context.Background(), Options{
		Variant: testVariant(variant),
		Backend: backend,
		Store:   store,
		Logger:  zerolog.Nop(),
	})
	require.NoError(t, err)
	t.Cleanup(ctrl.Close)
	return &harness{ctrl: ctrl, backend: backend, store: store, kv: kv}
}

func pendingWorkflow(runID string) *payroll.ApprovalWorkflow {
	return &payroll.ApprovalWorkflow{
		RunID:  runID,
		Status: payroll.ApprovalStatusPending,
		Steps: []payroll.ApprovalStep{
			{ID: "s1", Sequence: 1, Role: "manager", Status: payroll.StepStatusApproved},
			{ID: "s2", Sequence: 2, Role: "finance", Status: payroll.StepStatusPending},
		},
	}
}

func approvedWorkflow(runID string) *payroll.ApprovalWorkflow {
	return &payroll.ApprovalWorkflow{
		RunID:  runID,
		Status: payroll.ApprovalStatusApproved,
		Steps: []payroll.ApprovalStep{
			{ID: "s1", Sequence: 1, Role: "manager", Status: payroll.StepStatusApproved},
			{ID: "s2", Sequence: 2, Role: "finance", Status: payroll.StepStatusApproved},
		},
	}
}

func (h *harness) step() Step {
	return h.ctrl.View().Step
}

func (h *harness) moveToApproval(t *testing.T) {
	t.Helper()
	require.NoError(t, h.ctrl.Calculate(context.Background(), "2025-07-01", payroll.CalculationFlags{}))
	require.NoError(t, h.ctrl.Advance(context.Background()))
	// 承認済みの応答を返すバックエンドでは即座にステップ 3 へ進むことがある
	require.GreaterOrEqual(t, int(h.step()), int(StepApproval))
}
