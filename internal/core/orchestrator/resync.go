package orchestrator

import (
	"context"
	"fmt"

	"github.com/ogurasousui/payroll-orchestrator/internal/core/payroll"
	"github.com/ogurasousui/payroll-orchestrator/internal/core/runstate"
	"github.com/rs/zerolog"
)

// ResyncRequest は再計算の入力です。
type ResyncRequest struct {
	CurrentRunID string
	PayDate      string
	Flags        payroll.CalculationFlags
	// StillCurrent は結果を保存する直前にラン ID がまだ有効かを確認します。
	StillCurrent func(runID string) bool
}

// ResyncResult は再計算の結果です。
type ResyncResult struct {
	RunID         string
	PreviousRunID string
	Snapshots     []payroll.EmployeeSnapshot
	Rotated       bool
}

// Resyncer はステップを変えずにランの数値を再計算します。
type Resyncer struct {
	gateway payroll.Gateway
	store   *runstate.Store
	log     zerolog.Logger
}

// NewResyncer は Resyncer を生成します。
func NewResyncer(gateway payroll.Gateway, store *runstate.Store, log zerolog.Logger) *Resyncer {
	return &Resyncer{gateway: gateway, store: store, log: log}
}

// Resync は同じ支給日で再計算し、ラン ID が変わった場合は永続状態を付け替えます。
// 失敗時は既存の明細とラン ID をそのまま残します。
func (r *Resyncer) Resync(ctx context.Context, req ResyncRequest) (*ResyncResult, error) {
	if req.CurrentRunID == "" {
		return nil, ErrNoActiveRun
	}
	payDate, err := payroll.NormalizePayDate(req.PayDate)
	if err != nil {
		return nil, err
	}

	res, err := r.gateway.Calculate(ctx, payDate, req.Flags)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: resync %s: %w", req.CurrentRunID, err)
	}
	if res == nil || res.RunID == "" {
		return nil, ErrEmptyRunID
	}

	if req.StillCurrent != nil && !req.StillCurrent(req.CurrentRunID) {
		return nil, ErrStaleIdentity
	}

	out := &ResyncResult{
		RunID:         res.RunID,
		PreviousRunID: req.CurrentRunID,
		Snapshots:     res.EmployeeSnapshots,
	}

	if res.RunID == req.CurrentRunID {
		if err := r.store.SaveSummary(ctx, res.RunID, res.EmployeeSnapshots); err != nil {
			return nil, err
		}
		return out, nil
	}

	if err := r.store.Rotate(ctx, req.CurrentRunID, res.RunID, res.EmployeeSnapshots); err != nil {
		return nil, err
	}
	out.Rotated = true

	r.log.Info().
		Str("previous_run_id", req.CurrentRunID).
		Str("run_id", res.RunID).
		Int("employees", len(res.EmployeeSnapshots)).
		Msg("payroll run identity rotated by resync")

	return out, nil
}
