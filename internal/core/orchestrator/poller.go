package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/ogurasousui/payroll-orchestrator/internal/core/payroll"
	"github.com/rs/zerolog"
)

// StatusFunc は承認状態を問い合わせる関数です。
type StatusFunc func(ctx context.Context, runID string) (*payroll.ApprovalWorkflow, error)

// UpdateFunc はポーリング結果の通知先です。true を返すとポーリングを終了します。
type UpdateFunc func(runID string, wf payroll.ApprovalWorkflow) bool

// Poller は承認待ちのランの状態を一定間隔で問い合わせます。同時に動くループは常に 1 つです。
type Poller struct {
	query StatusFunc
	log   zerolog.Logger

	// lifecycle は Start と Stop を直列化します。ループ側は取得しません。
	lifecycle sync.Mutex

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	runID  string
}

// NewPoller は Poller を生成します。
func NewPoller(query StatusFunc, log zerolog.Logger) *Poller {
	return &Poller{query: query, log: log}
}

// Start は既存のループを停止してから runID のポーリングを開始します。
// 最初の問い合わせは即時に行います。onUpdate からは Start/Stop を呼ばないでください。
func (p *Poller) Start(runID string, interval time.Duration, onUpdate UpdateFunc) {
	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()

	p.stopLocked()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	p.mu.Lock()
	p.cancel = cancel
	p.done = done
	p.runID = runID
	p.mu.Unlock()

	p.log.Debug().Str("run_id", runID).Dur("interval", interval).Msg("approval poller started")

	go p.loop(ctx, done, runID, interval, onUpdate)
}

// Stop は動作中のループを停止し、終了を待ちます。
func (p *Poller) Stop() {
	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()
	p.stopLocked()
}

// Active はポーリング中のラン ID を返します。
func (p *Poller) Active() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.runID, p.done != nil
}

func (p *Poller) stopLocked() {
	p.mu.Lock()
	cancel, done, runID := p.cancel, p.done, p.runID
	p.cancel, p.done, p.runID = nil, nil, ""
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	p.log.Debug().Str("run_id", runID).Msg("approval poller stopped")
}

func (p *Poller) loop(ctx context.Context, done chan struct{}, runID string, interval time.Duration, onUpdate UpdateFunc) {
	defer func() {
		p.mu.Lock()
		if p.done == done {
			p.cancel, p.done, p.runID = nil, nil, ""
		}
		p.mu.Unlock()
		close(done)
	}()

	if p.poll(ctx, runID, onUpdate) {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if p.poll(ctx, runID, onUpdate) {
				return
			}
		}
	}
}

// poll は 1 回問い合わせ、ループを終了すべきなら true を返します。
func (p *Poller) poll(ctx context.Context, runID string, onUpdate UpdateFunc) bool {
	wf, err := p.query(ctx, runID)
	if ctx.Err() != nil {
		return true
	}
	if err != nil {
		p.log.Warn().Err(err).Str("run_id", runID).Msg("approval status query failed, will retry")
		return false
	}
	if wf == nil {
		return false
	}
	if onUpdate(runID, *wf) {
		return true
	}
	return wf.Status.IsTerminal()
}
