package runstate

import (
	"context"
	"errors"
	"testing"

	"github.com/ogurasousui/payroll-orchestrator/internal/core/payroll"
	"github.com/rs/zerolog"
)

func newTestStore() (*Store, *MemoryKV) {
	kv := NewMemoryKV()
	return NewStore(kv, NewKeys("payroll"), nil, zerolog.Nop()), kv
}

type failingKV struct {
	*MemoryKV
	getErr error
	setErr error
}

func (f *failingKV) Get(ctx context.Context, key string) (string, bool, error) {
	if f.getErr != nil {
		return "", false, f.getErr
	}
	return f.MemoryKV.Get(ctx, key)
}

func (f *failingKV) Set(ctx context.Context, key, value string) error {
	if f.setErr != nil {
		return f.setErr
	}
	return f.MemoryKV.Set(ctx, key, value)
}

type recordingTx struct {
	calls int
}

func (r *recordingTx) WithinReadOnly(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func (r *recordingTx) WithinReadWrite(ctx context.Context, fn func(context.Context) error) error {
	r.calls++
	return fn(ctx)
}

func TestKeys_Layout(t *testing.T) {
	t.Parallel()

	keys := NewKeys("payroll")
	if keys.RunID() != "payrollRunId" || keys.ActiveStep() != "payrollActiveStep" {
		t.Fatalf("unexpected singleton keys %s %s", keys.RunID(), keys.ActiveStep())
	}
	if keys.Sent("r1") != "payrollSent:r1" {
		t.Fatalf("unexpected sent key %s", keys.Sent("r1"))
	}
	if keys.Approved("r1") != "payrollApproved:r1" {
		t.Fatalf("unexpected approved key %s", keys.Approved("r1"))
	}
	if keys.Summary("r1") != "payrollSummary:r1" {
		t.Fatalf("unexpected summary key %s", keys.Summary("r1"))
	}
}

func TestStore_LoadEmpty(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore()
	st := store.Load(context.Background())
	if st != (State{}) {
		t.Fatalf("expected zero state, got %+v", st)
	}
}

func TestStore_SaveRunAndLoad(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, _ := newTestStore()

	if err := store.SaveRun(ctx, "r1", "2025-07-01", 1); err != nil {
		t.Fatalf("SaveRun returned error: %v", err)
	}
	if err := store.MarkSent(ctx, "r1"); err != nil {
		t.Fatalf("MarkSent returned error: %v", err)
	}

	st := store.Load(ctx)
	if st.RunID != "r1" || st.PayDate != "2025-07-01" || !st.HasStepHint || st.StepHint != 1 || !st.Sent {
		t.Fatalf("unexpected state %+v", st)
	}
}

func TestStore_LoadApprovedMarker(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, kv := newTestStore()

	_ = store.SaveRun(ctx, "r1", "2025-07-01", 3)
	if err := store.MarkApproved(ctx, "r1"); err != nil {
		t.Fatalf("MarkApproved returned error: %v", err)
	}

	st := store.Load(ctx)
	if !st.Approved || st.Sent || st.StepHint != 3 {
		t.Fatalf("unexpected state %+v", st)
	}

	_ = kv.Set(ctx, "payrollApproved:r1", "yes")
	if store.Load(ctx).Approved {
		t.Fatal("malformed approval marker must be treated as absent")
	}
	if store.IsApproved(ctx, "") {
		t.Fatal("empty run id is never approved")
	}
}

func TestStore_LoadMalformedValues(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cases := []struct {
		name   string
		values map[string]string
		want   State
	}{
		{
			name:   "run id not json",
			values: map[string]string{"payrollRunId": "{broken", "payrollActiveStep": "2"},
			want:   State{},
		},
		{
			name:   "run id wrong type",
			values: map[string]string{"payrollRunId": "42"},
			want:   State{},
		},
		{
			name:   "step out of range",
			values: map[string]string{"payrollRunId": `"r1"`, "payrollActiveStep": "9"},
			want:   State{RunID: "r1"},
		},
		{
			name:   "step not a number",
			values: map[string]string{"payrollRunId": `"r1"`, "payrollActiveStep": `"two"`},
			want:   State{RunID: "r1"},
		},
		{
			name:   "sent flag malformed",
			values: map[string]string{"payrollRunId": `"r1"`, "payrollSent:r1": "yes"},
			want:   State{RunID: "r1"},
		},
		{
			name:   "step without run id",
			values: map[string]string{"payrollActiveStep": "3"},
			want:   State{},
		},
	}

	for _, tc := range cases {
		store, kv := newTestStore()
		for k, v := range tc.values {
			_ = kv.Set(ctx, k, v)
		}
		if got := store.Load(ctx); got != tc.want {
			t.Fatalf("%s: expected %+v, got %+v", tc.name, tc.want, got)
		}
	}
}

func TestStore_LoadReadFailureIsAbsent(t *testing.T) {
	t.Parallel()

	kv := &failingKV{MemoryKV: NewMemoryKV(), getErr: errors.New("db down")}
	store := NewStore(kv, NewKeys("payroll"), nil, zerolog.Nop())
	if st := store.Load(context.Background()); st != (State{}) {
		t.Fatalf("expected zero state on read failure, got %+v", st)
	}
}

func TestStore_WriteFailureIsReturned(t *testing.T) {
	t.Parallel()

	writeErr := errors.New("disk full")
	kv := &failingKV{MemoryKV: NewMemoryKV(), setErr: writeErr}
	store := NewStore(kv, NewKeys("payroll"), nil, zerolog.Nop())
	if err := store.SaveStep(context.Background(), 2); !errors.Is(err, writeErr) {
		t.Fatalf("expected write error, got %v", err)
	}
}

func TestStore_SummaryRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, kv := newTestStore()
	snapshots := []payroll.EmployeeSnapshot{{EmployeeID: "emp-1", NetSalary: 100}}

	if err := store.SaveSummary(ctx, "r1", snapshots); err != nil {
		t.Fatalf("SaveSummary returned error: %v", err)
	}
	got, ok := store.Summary(ctx, "r1")
	if !ok || len(got) != 1 || got[0].EmployeeID != "emp-1" {
		t.Fatalf("unexpected summary %+v (ok=%v)", got, ok)
	}

	_ = kv.Set(ctx, "payrollSummary:r1", "[{")
	if _, ok := store.Summary(ctx, "r1"); ok {
		t.Fatal("expected malformed summary to be treated as absent")
	}
}

func TestStore_RotateDropsOldKeys(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tx := &recordingTx{}
	kv := NewMemoryKV()
	store := NewStore(kv, NewKeys("payroll"), tx, zerolog.Nop())

	_ = store.SaveRun(ctx, "r1", "2025-07-01", 1)
	_ = store.MarkSent(ctx, "r1")
	_ = store.MarkApproved(ctx, "r1")
	_ = store.SaveSummary(ctx, "r1", []payroll.EmployeeSnapshot{{EmployeeID: "a"}})

	if err := store.Rotate(ctx, "r1", "r2", []payroll.EmployeeSnapshot{{EmployeeID: "a"}, {EmployeeID: "b", IsLeaver: true}}); err != nil {
		t.Fatalf("Rotate returned error: %v", err)
	}

	if store.IsSent(ctx, "r1") {
		t.Fatal("expected sent flag for old run to be removed")
	}
	if store.IsSent(ctx, "r2") {
		t.Fatal("sent flag must not be carried to the new run")
	}
	if store.IsApproved(ctx, "r1") || store.IsApproved(ctx, "r2") {
		t.Fatal("approval marker must be dropped on rotation")
	}
	if _, ok := store.Summary(ctx, "r1"); ok {
		t.Fatal("expected old summary to be invalidated")
	}
	if got, ok := store.Summary(ctx, "r2"); !ok || len(got) != 2 {
		t.Fatalf("expected new summary to be stored, got %+v", got)
	}
	if st := store.Load(ctx); st.RunID != "r2" {
		t.Fatalf("expected run id r2, got %s", st.RunID)
	}
	if tx.calls != 2 {
		t.Fatalf("expected SaveRun and Rotate to use transactions, got %d calls", tx.calls)
	}
}

func TestStore_Forget(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, _ := newTestStore()

	_ = store.SaveRun(ctx, "r2", "2025-07-01", 1)
	_ = store.MarkSent(ctx, "r1")
	_ = store.SaveSummary(ctx, "r1", nil)

	if err := store.Forget(ctx, "r1"); err != nil {
		t.Fatalf("Forget returned error: %v", err)
	}
	if store.IsSent(ctx, "r1") {
		t.Fatal("expected sent flag to be removed")
	}
	if st := store.Load(ctx); st.RunID != "r2" {
		t.Fatalf("Forget must not touch the current run, got %+v", st)
	}
}

func TestStore_Purge(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, kv := newTestStore()

	_ = store.SaveRun(ctx, "r1", "2025-07-01", 3)
	_ = store.MarkSent(ctx, "r1")
	_ = store.MarkApproved(ctx, "r1")
	_ = store.SaveSummary(ctx, "r1", nil)
	_ = kv.Set(ctx, "offCycleRunId", `"o1"`)

	if err := store.Purge(ctx, "r1"); err != nil {
		t.Fatalf("Purge returned error: %v", err)
	}

	keys := kv.Keys()
	if len(keys) != 1 || keys[0] != "offCycleRunId" {
		t.Fatalf("expected only other namespace to survive, got %v", keys)
	}
}
