package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ogurasousui/payroll-orchestrator/internal/core/payroll"
	"github.com/ogurasousui/payroll-orchestrator/internal/core/runstate"
	"github.com/rs/zerolog"
)

const (
	opCalculate = "calculate"
	opPayment   = "complete_payment"
	opDiscard   = "discard"
	opSubmit    = "submit_for_approval"
	opResync    = "resync"
)

// ElementConsumer は臨時ランの計算後にステージング要素を取り込み済みにします。
type ElementConsumer interface {
	Consume(ctx context.Context, payDate, runID string) error
}

// Options は Controller の構成要素です。
type Options struct {
	Variant  Variant
	Backend  payroll.Backend
	Store    *runstate.Store
	Consumer ElementConsumer
	Logger   zerolog.Logger
}

// Controller は給与計算ランのステートマシンです。activeStep の遷移はこの型だけが行います。
type Controller struct {
	variant  Variant
	backend  payroll.Backend
	store    *runstate.Store
	consumer ElementConsumer
	poller   *Poller
	resyncer *Resyncer
	log      zerolog.Logger

	// lifecycle はポーラーの開始・停止を伴う遷移を直列化します。ポーラーのコールバックは取得しません。
	lifecycle sync.Mutex

	mu          sync.RWMutex
	step        Step
	runID       string
	payDate     string
	snapshots   []payroll.EmployeeSnapshot
	sent        bool
	workflow    *payroll.ApprovalWorkflow
	busy        string
	lastErr     error
	purgeFailed string
	closed      bool
}

// NewController は永続状態から Controller を復元します。
// 保存済みのステップはヒントとして扱い、ステップ 1/2 は送信済みフラグから決定します。
func NewController(ctx context.Context, opts Options) (*Controller, error) {
	if err := opts.Variant.validate(); err != nil {
		return nil, err
	}
	if opts.Backend == nil {
		return nil, errors.New("orchestrator: backend is required")
	}
	if opts.Store == nil {
		return nil, errors.New("orchestrator: run state store is required")
	}

	log := opts.Logger.With().Str("variant", opts.Variant.Name).Logger()

	c := &Controller{
		variant:  opts.Variant,
		backend:  opts.Backend,
		store:    opts.Store,
		consumer: opts.Consumer,
		log:      log,
	}
	c.poller = NewPoller(opts.Backend.GetApprovalStatus, log)
	c.resyncer = NewResyncer(opts.Backend, opts.Store, log)

	c.hydrate(ctx)

	if c.step == StepApproval {
		c.poller.Start(c.runID, c.variant.PollInterval, c.onApprovalUpdate)
	}

	return c, nil
}

func (c *Controller) hydrate(ctx context.Context) {
	st := c.store.Load(ctx)
	if st.RunID == "" {
		c.step = StepStart
		return
	}

	c.runID = st.RunID
	c.payDate = st.PayDate
	c.sent = st.Sent
	c.step = StepReview
	switch {
	case (st.Sent || st.Approved) && st.HasStepHint && st.StepHint == int(StepPayment):
		c.step = StepPayment
	case st.Sent:
		c.step = StepApproval
	}
	if snapshots, ok := c.store.Summary(ctx, st.RunID); ok {
		c.snapshots = snapshots
	}

	c.log.Info().
		Str("run_id", c.runID).
		Stringer("step", c.step).
		Bool("sent", c.sent).
		Msg("payroll run state restored")
}

// Variant は Controller のバリアント設定を返します。
func (c *Controller) Variant() Variant {
	return c.variant
}

// Calculate はステップ 0 から計算を実行し、成功すればステップ 1 へ進みます。
// 同じラン ID に対する再実行は安全です。
func (c *Controller) Calculate(ctx context.Context, payDate string, flags payroll.CalculationFlags) error {
	date, err := payroll.NormalizePayDate(payDate)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if err := canCalculate(c.guardStateLocked()); err != nil {
		c.mu.Unlock()
		return err
	}
	c.busy = opCalculate
	previousRunID := c.runID
	c.mu.Unlock()

	if c.variant.OffCycle {
		flags.OffCycle = true
	}

	res, err := c.backend.Calculate(ctx, date, flags)

	c.mu.Lock()
	c.busy = ""
	if err != nil {
		c.lastErr = err
		c.mu.Unlock()
		c.log.Error().Err(err).Str("pay_date", date).Msg("payroll calculation failed")
		return fmt.Errorf("orchestrator: calculate %s: %w", date, err)
	}
	if res == nil || res.RunID == "" {
		c.lastErr = ErrEmptyRunID
		c.mu.Unlock()
		return ErrEmptyRunID
	}
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}

	if previousRunID != "" && previousRunID != res.RunID {
		if err := c.store.Forget(ctx, previousRunID); err != nil {
			c.log.Warn().Err(err).Str("run_id", previousRunID).Msg("failed to drop state of abandoned run")
		}
	}
	if err := c.store.SaveRun(ctx, res.RunID, date, int(StepReview)); err != nil {
		c.lastErr = err
		c.mu.Unlock()
		return err
	}
	if err := c.store.SaveSummary(ctx, res.RunID, res.EmployeeSnapshots); err != nil {
		c.log.Warn().Err(err).Str("run_id", res.RunID).Msg("failed to cache run summary")
	}

	c.runID = res.RunID
	c.payDate = date
	c.snapshots = res.EmployeeSnapshots
	c.sent = c.store.IsSent(ctx, res.RunID)
	c.workflow = nil
	c.lastErr = nil
	c.transitionLocked(StepReview)
	c.mu.Unlock()

	if c.variant.OffCycle && c.consumer != nil {
		if err := c.consumer.Consume(ctx, date, res.RunID); err != nil {
			c.log.Warn().Err(err).Str("run_id", res.RunID).Msg("failed to mark off-cycle elements as consumed")
		}
	}

	return nil
}

// Advance はステップ 1 から承認ステップへ進むか、ステップ 3 で支払いを実行します。
func (c *Controller) Advance(ctx context.Context) error {
	c.mu.RLock()
	step := c.step
	c.mu.RUnlock()
	if step == StepPayment {
		return c.completePayment(ctx)
	}

	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mu.Lock()
	if err := canAdvance(c.guardStateLocked()); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.step != StepReview {
		c.mu.Unlock()
		return ErrInvalidTransition
	}

	if err := c.store.SaveStep(ctx, int(StepApproval)); err != nil {
		c.mu.Unlock()
		return err
	}
	c.transitionLocked(StepApproval)
	runID := c.runID
	c.mu.Unlock()

	c.poller.Start(runID, c.variant.PollInterval, c.onApprovalUpdate)
	return nil
}

func (c *Controller) completePayment(ctx context.Context) error {
	c.mu.Lock()
	if err := canAdvance(c.guardStateLocked()); err != nil || c.step != StepPayment {
		c.mu.Unlock()
		if err == nil {
			err = ErrInvalidTransition
		}
		return err
	}
	c.busy = opPayment
	runID := c.runID
	c.mu.Unlock()

	err := c.backend.CompletePayment(ctx, runID)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy = ""
	if err != nil {
		c.lastErr = err
		c.log.Error().Err(err).Str("run_id", runID).Msg("payment completion failed")
		return fmt.Errorf("orchestrator: complete payment %s: %w", runID, err)
	}

	c.sent = false
	c.lastErr = nil
	c.transitionLocked(StepConfirm)

	if err := c.store.Purge(ctx, runID); err != nil {
		c.purgeFailed = runID
		c.log.Error().Err(err).Str("run_id", runID).Msg("failed to purge run state after payment")
		return fmt.Errorf("%w: %v", ErrStateNotPurged, err)
	}
	return nil
}

// Back は 1 つ前のステップへ戻ります。ステップ 0 に戻った場合はメモリ上の明細を破棄します。
func (c *Controller) Back(ctx context.Context) error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mu.Lock()
	if err := canBack(c.guardStateLocked(), c.variant); err != nil {
		c.mu.Unlock()
		return err
	}

	from := c.step
	to := from - 1
	if to < StepStart {
		to = StepStart
	}
	if err := c.store.SaveStep(ctx, int(to)); err != nil {
		c.mu.Unlock()
		return err
	}
	if to == StepStart {
		c.snapshots = nil
		c.workflow = nil
	}
	c.transitionLocked(to)
	c.mu.Unlock()

	if from == StepApproval {
		c.poller.Stop()
	}
	return nil
}

// Discard はランを破棄し、永続状態を削除してステップ 0 に戻ります。
func (c *Controller) Discard(ctx context.Context) error {
	c.mu.Lock()
	if err := canDiscard(c.guardStateLocked()); err != nil {
		c.mu.Unlock()
		return err
	}
	c.busy = opDiscard
	runID := c.runID
	c.mu.Unlock()

	err := c.backend.DiscardRun(ctx, runID)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy = ""
	if err != nil {
		c.lastErr = err
		c.log.Error().Err(err).Str("run_id", runID).Msg("payroll run discard failed")
		return fmt.Errorf("orchestrator: discard %s: %w", runID, err)
	}

	c.resetLocked()
	c.log.Info().Str("run_id", runID).Msg("payroll run discarded")

	if err := c.store.Purge(ctx, runID); err != nil {
		c.log.Error().Err(err).Str("run_id", runID).Msg("failed to purge run state after discard")
		return fmt.Errorf("%w: %v", ErrStateNotPurged, err)
	}
	return nil
}

// ResyncInput は Resync の入力です。PayDate は現在のランの支給日が不明な場合にのみ使います。
type ResyncInput struct {
	PayDate string
	Flags   payroll.CalculationFlags
}

// Resync はステップを変えずにランを再計算します。ラン ID が変わった場合は送信済みフラグを引き継ぎません。
func (c *Controller) Resync(ctx context.Context, in ResyncInput) error {
	c.mu.Lock()
	if err := canResync(c.guardStateLocked()); err != nil {
		c.mu.Unlock()
		return err
	}
	c.busy = opResync
	current := c.runID
	payDate := c.payDate
	c.mu.Unlock()
	defer c.clearBusy()

	if payDate == "" {
		payDate = strings.TrimSpace(in.PayDate)
	}
	flags := in.Flags
	if c.variant.OffCycle {
		flags.OffCycle = true
	}

	res, err := c.resyncer.Resync(ctx, ResyncRequest{
		CurrentRunID: current,
		PayDate:      payDate,
		Flags:        flags,
		StillCurrent: c.isCurrent,
	})
	if errors.Is(err, ErrStaleIdentity) {
		c.log.Debug().Str("run_id", current).Msg("stale resync result dropped")
		return nil
	}
	if err != nil {
		c.mu.Lock()
		c.lastErr = err
		c.mu.Unlock()
		return err
	}

	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mu.Lock()
	if c.closed || c.runID != current {
		c.mu.Unlock()
		c.log.Debug().Str("run_id", current).Msg("stale resync result dropped")
		return nil
	}
	c.snapshots = res.Snapshots
	c.lastErr = nil
	if c.payDate == "" {
		c.payDate, _ = payroll.NormalizePayDate(payDate)
	}
	restart := false
	if res.Rotated {
		c.runID = res.RunID
		c.sent = false
		c.workflow = nil
		restart = c.step == StepApproval
	}
	newRunID := c.runID
	c.mu.Unlock()

	if restart {
		c.poller.Stop()
		c.poller.Start(newRunID, c.variant.PollInterval, c.onApprovalUpdate)
	}
	return nil
}

// SendForApproval は承認ワークフローを送信します。単一ステップが承認済みの場合は送信しません。
func (c *Controller) SendForApproval(ctx context.Context) error {
	c.mu.Lock()
	if err := canSend(c.guardStateLocked()); err != nil {
		c.mu.Unlock()
		return err
	}
	c.busy = opSubmit
	runID := c.runID
	c.mu.Unlock()

	wf, err := c.backend.GetApprovalStatus(ctx, runID)
	if err != nil {
		c.clearBusy()
		return fmt.Errorf("orchestrator: approval status %s: %w", runID, err)
	}

	c.mu.Lock()
	if c.runID != runID {
		c.busy = ""
		c.mu.Unlock()
		return ErrStaleIdentity
	}
	if wf != nil {
		copied := *wf
		c.workflow = &copied
		if copied.AutoApproved(c.sent) {
			c.busy = ""
			c.mu.Unlock()
			c.log.Info().Str("run_id", runID).Msg("single approval step already approved, submission skipped")
			return ErrAutoApproved
		}
	}
	c.mu.Unlock()

	if err := c.backend.SubmitForApproval(ctx, runID); err != nil {
		c.mu.Lock()
		c.busy = ""
		c.lastErr = err
		c.mu.Unlock()
		c.log.Error().Err(err).Str("run_id", runID).Msg("submit for approval failed")
		return fmt.Errorf("orchestrator: submit for approval %s: %w", runID, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy = ""
	if c.runID != runID {
		return nil
	}
	c.sent = true
	c.lastErr = nil
	if err := c.store.MarkSent(ctx, runID); err != nil {
		return err
	}
	c.log.Info().Str("run_id", runID).Msg("payroll run sent for approval")
	return nil
}

// LoadSummary はバックエンドから明細を取り直します。
func (c *Controller) LoadSummary(ctx context.Context) error {
	c.mu.RLock()
	runID, step, closed := c.runID, c.step, c.closed
	c.mu.RUnlock()

	switch {
	case closed:
		return ErrClosed
	case runID == "":
		return ErrNoActiveRun
	case step == StepStart:
		return ErrInvalidTransition
	}

	snapshots, err := c.backend.GetSummary(ctx, runID)
	if err != nil {
		return fmt.Errorf("orchestrator: summary %s: %w", runID, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.runID != runID {
		return nil
	}
	c.snapshots = snapshots
	if c.step != StepConfirm {
		if err := c.store.SaveSummary(ctx, runID, snapshots); err != nil {
			c.log.Warn().Err(err).Str("run_id", runID).Msg("failed to cache run summary")
		}
	}
	return nil
}

// Finish は完了済みのランを閉じ、次のランを開始できる状態に戻します。
func (c *Controller) Finish(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := canFinish(c.guardStateLocked()); err != nil {
		return err
	}
	if c.purgeFailed != "" {
		if err := c.store.Purge(ctx, c.purgeFailed); err != nil {
			return fmt.Errorf("%w: %v", ErrStateNotPurged, err)
		}
		c.purgeFailed = ""
	}
	c.resetLocked()
	return nil
}

// Close はポーラーを停止し、以降の操作を拒否します。
func (c *Controller) Close() {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.poller.Stop()
}

// onApprovalUpdate はポーラーから呼ばれます。現在のラン ID と一致しない応答は破棄します。
func (c *Controller) onApprovalUpdate(runID string, wf payroll.ApprovalWorkflow) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || runID != c.runID || c.step != StepApproval {
		c.log.Debug().Str("run_id", runID).Msg("stale approval status dropped")
		return true
	}

	copied := wf
	c.workflow = &copied
	if !wf.Consistent() {
		c.log.Warn().Str("run_id", runID).Msg("approval steps reported out of order")
	}

	// 再計算中はラン ID が変わり得るので次回のポーリングで判定する
	if c.busy == opResync {
		return false
	}

	if wf.Status != payroll.ApprovalStatusApproved && !wf.AutoApproved(c.sent) {
		return false
	}

	if err := c.store.MarkApproved(context.Background(), runID); err != nil {
		c.log.Error().Err(err).Str("run_id", runID).Msg("failed to persist approval, will retry on next poll")
		return false
	}
	if err := c.store.SaveStep(context.Background(), int(StepPayment)); err != nil {
		c.log.Error().Err(err).Str("run_id", runID).Msg("failed to persist approval step, will retry on next poll")
		return false
	}
	c.transitionLocked(StepPayment)
	return true
}

func (c *Controller) isCurrent(runID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.closed && c.runID == runID
}

func (c *Controller) clearBusy() {
	c.mu.Lock()
	c.busy = ""
	c.mu.Unlock()
}

func (c *Controller) transitionLocked(to Step) {
	from := c.step
	c.step = to
	c.log.Info().
		Str("run_id", c.runID).
		Stringer("from", from).
		Stringer("to", to).
		Msg("payroll run transition")
}

func (c *Controller) resetLocked() {
	c.transitionLocked(StepStart)
	c.runID = ""
	c.payDate = ""
	c.snapshots = nil
	c.sent = false
	c.workflow = nil
	c.lastErr = nil
}
