package runstate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ogurasousui/payroll-orchestrator/internal/core/payroll"
	"github.com/rs/zerolog"
)

// MaxStep は永続化されるステップ番号の上限です。
const MaxStep = 4

// State は起動時に読み込む永続状態です。
type State struct {
	RunID   string
	PayDate string
	// StepHint は保存されていたステップです。HasStepHint が false の場合は意味を持ちません。
	StepHint    int
	HasStepHint bool
	Sent        bool
	// Approved は承認完了を観測済みであることを表します。単一ステップの自動承認では Sent は立ちません。
	Approved bool
}

// Store はラン ID ごとに名前空間化された状態ストアです。
// 壊れた値や読み込み失敗は常に未保存として扱います。
type Store struct {
	kv   KV
	keys Keys
	tx   TransactionManager
	log  zerolog.Logger
}

// NewStore は Store を生成します。
func NewStore(kv KV, keys Keys, tx TransactionManager, log zerolog.Logger) *Store {
	if tx == nil {
		tx = noopTransactionManager{}
	}
	return &Store{kv: kv, keys: keys, tx: tx, log: log}
}

// Keys は Store が使う名前空間を返します。
func (s *Store) Keys() Keys {
	return s.keys
}

// Load は永続状態を 1 つの読み取りスナップショットで読み込みます。
func (s *Store) Load(ctx context.Context) State {
	var st State
	err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		st = s.load(txCtx)
		return nil
	})
	if err != nil {
		s.log.Warn().Err(err).Str("prefix", s.keys.Prefix()).Msg("read-only snapshot unavailable, loading without it")
		st = s.load(ctx)
	}
	return st
}

func (s *Store) load(ctx context.Context) State {
	var st State

	var runID string
	if s.getJSON(ctx, s.keys.RunID(), &runID) {
		st.RunID = strings.TrimSpace(runID)
	}
	if st.RunID == "" {
		return State{}
	}

	var payDate string
	if s.getJSON(ctx, s.keys.PayDate(), &payDate) {
		st.PayDate = payDate
	}

	var step int
	if s.getJSON(ctx, s.keys.ActiveStep(), &step) && step >= 0 && step <= MaxStep {
		st.StepHint = step
		st.HasStepHint = true
	}

	st.Sent = s.IsSent(ctx, st.RunID)
	st.Approved = s.IsApproved(ctx, st.RunID)
	return st
}

// SaveRun はラン ID・支給日・ステップを保存します。
func (s *Store) SaveRun(ctx context.Context, runID, payDate string, step int) error {
	return s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		if err := s.setJSON(txCtx, s.keys.RunID(), runID); err != nil {
			return err
		}
		if err := s.setJSON(txCtx, s.keys.PayDate(), payDate); err != nil {
			return err
		}
		return s.setJSON(txCtx, s.keys.ActiveStep(), step)
	})
}

// SaveStep はステップのみを保存します。
func (s *Store) SaveStep(ctx context.Context, step int) error {
	return s.setJSON(ctx, s.keys.ActiveStep(), step)
}

// MarkSent は承認送信済みフラグを保存します。
func (s *Store) MarkSent(ctx context.Context, runID string) error {
	return s.setJSON(ctx, s.keys.Sent(runID), true)
}

// IsSent は承認送信済みフラグを返します。
func (s *Store) IsSent(ctx context.Context, runID string) bool {
	if runID == "" {
		return false
	}
	var sent bool
	if !s.getJSON(ctx, s.keys.Sent(runID), &sent) {
		return false
	}
	return sent
}

// MarkApproved は承認完了の観測を保存します。
func (s *Store) MarkApproved(ctx context.Context, runID string) error {
	return s.setJSON(ctx, s.keys.Approved(runID), true)
}

// IsApproved は承認完了を観測済みかを返します。
func (s *Store) IsApproved(ctx context.Context, runID string) bool {
	if runID == "" {
		return false
	}
	var approved bool
	if !s.getJSON(ctx, s.keys.Approved(runID), &approved) {
		return false
	}
	return approved
}

// SaveSummary は明細キャッシュを保存します。
func (s *Store) SaveSummary(ctx context.Context, runID string, snapshots []payroll.EmployeeSnapshot) error {
	return s.setJSON(ctx, s.keys.Summary(runID), snapshots)
}

// Summary は明細キャッシュを返します。
func (s *Store) Summary(ctx context.Context, runID string) ([]payroll.EmployeeSnapshot, bool) {
	if runID == "" {
		return nil, false
	}
	var snapshots []payroll.EmployeeSnapshot
	if !s.getJSON(ctx, s.keys.Summary(runID), &snapshots) {
		return nil, false
	}
	return snapshots, true
}

// Rotate は再計算でラン ID が変わった場合の付け替えを行います。
// 旧 ID の送信済みフラグと明細キャッシュは引き継がずに削除します。
func (s *Store) Rotate(ctx context.Context, oldRunID, newRunID string, snapshots []payroll.EmployeeSnapshot) error {
	return s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		if err := s.setJSON(txCtx, s.keys.RunID(), newRunID); err != nil {
			return err
		}
		if err := s.kv.Delete(txCtx, s.runKeys(oldRunID)...); err != nil {
			return fmt.Errorf("runstate: delete %s keys: %w", oldRunID, err)
		}
		return s.setJSON(txCtx, s.keys.Summary(newRunID), snapshots)
	})
}

// Forget は現在のランではなくなった ID の送信済みフラグと明細キャッシュを削除します。
func (s *Store) Forget(ctx context.Context, runID string) error {
	if runID == "" {
		return nil
	}
	if err := s.kv.Delete(ctx, s.runKeys(runID)...); err != nil {
		return fmt.Errorf("runstate: forget %s: %w", runID, err)
	}
	return nil
}

// Purge はランに関するすべてのキーを削除します。
func (s *Store) Purge(ctx context.Context, runID string) error {
	keys := []string{s.keys.RunID(), s.keys.PayDate(), s.keys.ActiveStep()}
	if runID != "" {
		keys = append(keys, s.runKeys(runID)...)
	}
	return s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		if err := s.kv.Delete(txCtx, keys...); err != nil {
			return fmt.Errorf("runstate: purge %s: %w", runID, err)
		}
		return nil
	})
}

// runKeys はラン ID に紐づくキーの一覧です。
func (s *Store) runKeys(runID string) []string {
	return []string{s.keys.Sent(runID), s.keys.Approved(runID), s.keys.Summary(runID)}
}

func (s *Store) getJSON(ctx context.Context, key string, dest any) bool {
	raw, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("run state read failed, treating as absent")
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		s.log.Debug().Err(err).Str("key", key).Msg("malformed run state value ignored")
		return false
	}
	return true
}

func (s *Store) setJSON(ctx context.Context, key string, value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("runstate: encode %s: %w", key, err)
	}
	if err := s.kv.Set(ctx, key, string(b)); err != nil {
		return fmt.Errorf("runstate: write %s: %w", key, err)
	}
	return nil
}
