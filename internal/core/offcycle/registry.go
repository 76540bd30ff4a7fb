package offcycle

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/ogurasousui/payroll-orchestrator/internal/core/payroll"
	"github.com/ogurasousui/payroll-orchestrator/internal/core/runstate"
	"github.com/rs/zerolog"
)

// DefaultKeyPrefix は支給日ごとのステージングキーの prefix です。
const DefaultKeyPrefix = "offCycleEmployees:"

// Registry はラン作成前の臨時支給要素を支給日ごとに保持するステージング領域です。
type Registry struct {
	api    payroll.OffCycleAPI
	kv     runstate.KV
	prefix string
	log    zerolog.Logger
	newID  func() string

	mu sync.Mutex
}

// Option は Registry の任意設定です。
type Option func(*Registry)

// WithKeyPrefix はステージングキーの prefix を変更します。
func WithKeyPrefix(prefix string) Option {
	return func(r *Registry) {
		if prefix != "" {
			r.prefix = prefix
		}
	}
}

// WithIDGenerator は要素 ID の採番関数を差し替えます。
func WithIDGenerator(fn func() string) Option {
	return func(r *Registry) {
		if fn != nil {
			r.newID = fn
		}
	}
}

// NewRegistry は Registry を生成します。
func NewRegistry(api payroll.OffCycleAPI, kv runstate.KV, log zerolog.Logger, opts ...Option) *Registry {
	r := &Registry{
		api:    api,
		kv:     kv,
		prefix: DefaultKeyPrefix,
		log:    log,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Add は要素をバックエンドに登録し、サーバーが返す一覧でその支給日のステージングを置き換えます。
func (r *Registry) Add(ctx context.Context, element payroll.OffCyclePayElement) ([]payroll.OffCyclePayElement, error) {
	normalized, err := element.Validate()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(normalized.ID) == "" {
		normalized.ID = r.newID()
	}
	normalized.PayrollRunID = ""

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.api.CreateOffCycleElement(ctx, normalized); err != nil {
		return nil, fmt.Errorf("offcycle: create element: %w", err)
	}

	list, err := r.api.ListOffCycleElements(ctx, normalized.PayrollDate)
	if err != nil {
		return nil, fmt.Errorf("offcycle: list elements for %s: %w", normalized.PayrollDate, err)
	}

	if err := r.write(ctx, normalized.PayrollDate, list); err != nil {
		return nil, err
	}

	r.log.Info().
		Str("element_id", normalized.ID).
		Str("employee_id", normalized.EmployeeID).
		Str("payroll_date", normalized.PayrollDate).
		Int("staged", len(list)).
		Msg("off-cycle element staged")

	return cloneElements(list), nil
}

// Remove はステージング中の要素を削除します。支給日の最後の要素であればキー自体を削除します。
func (r *Registry) Remove(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrInvalidID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	staged, err := r.readAll(ctx)
	if err != nil {
		return err
	}

	var (
		date  string
		found bool
	)
	for d, list := range staged {
		for _, e := range list {
			if e.ID != id {
				continue
			}
			if e.Consumed() {
				return ErrElementConsumed
			}
			date = d
			found = true
		}
	}
	if !found {
		return payroll.ErrElementNotFound
	}

	if err := r.api.DeleteOffCycleElement(ctx, id); err != nil {
		return fmt.Errorf("offcycle: delete element %s: %w", id, err)
	}

	remaining := make([]payroll.OffCyclePayElement, 0, len(staged[date]))
	for _, e := range staged[date] {
		if e.ID != id {
			remaining = append(remaining, e)
		}
	}

	return r.write(ctx, date, remaining)
}

// ListAll はステージング中の全要素を支給日・社員順に返します。
func (r *Registry) ListAll(ctx context.Context) ([]payroll.OffCyclePayElement, error) {
	r.mu.Lock()
	staged, err := r.readAll(ctx)
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}

	var out []payroll.OffCyclePayElement
	for _, list := range staged {
		out = append(out, list...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].PayrollDate != out[j].PayrollDate {
			return out[i].PayrollDate < out[j].PayrollDate
		}
		if out[i].EmployeeID != out[j].EmployeeID {
			return out[i].EmployeeID < out[j].EmployeeID
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// ByEmployee はステージング中の要素を社員ごとにまとめます。
func (r *Registry) ByEmployee(ctx context.Context) (map[string][]payroll.OffCyclePayElement, error) {
	all, err := r.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	grouped := make(map[string][]payroll.OffCyclePayElement)
	for _, e := range all {
		grouped[e.EmployeeID] = append(grouped[e.EmployeeID], e)
	}
	return grouped, nil
}

// Refresh は支給日の一覧をバックエンドから取り直します。
func (r *Registry) Refresh(ctx context.Context, payDate string) ([]payroll.OffCyclePayElement, error) {
	date, err := payroll.NormalizePayDate(payDate)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	list, err := r.api.ListOffCycleElements(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("offcycle: list elements for %s: %w", date, err)
	}
	if err := r.write(ctx, date, list); err != nil {
		return nil, err
	}
	return cloneElements(list), nil
}

// Consume は支給日のステージング要素をランに取り込み済みとして記録します。
func (r *Registry) Consume(ctx context.Context, payDate, runID string) error {
	if runID == "" {
		return payroll.ErrInvalidRunID
	}
	date, err := payroll.NormalizePayDate(payDate)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	list, ok := r.read(ctx, date)
	if !ok || len(list) == 0 {
		return nil
	}
	for i := range list {
		if list[i].PayrollRunID == "" {
			list[i].PayrollRunID = runID
		}
	}
	return r.write(ctx, date, list)
}

func (r *Registry) key(date string) string {
	return r.prefix + date
}

func (r *Registry) read(ctx context.Context, date string) ([]payroll.OffCyclePayElement, bool) {
	raw, ok, err := r.kv.Get(ctx, r.key(date))
	if err != nil {
		r.log.Warn().Err(err).Str("payroll_date", date).Msg("off-cycle staging read failed")
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var list []payroll.OffCyclePayElement
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		r.log.Debug().Err(err).Str("payroll_date", date).Msg("malformed off-cycle staging ignored")
		return nil, false
	}
	return list, true
}

func (r *Registry) readAll(ctx context.Context) (map[string][]payroll.OffCyclePayElement, error) {
	raw, err := r.kv.List(ctx, r.prefix)
	if err != nil {
		return nil, fmt.Errorf("offcycle: list staging: %w", err)
	}
	out := make(map[string][]payroll.OffCyclePayElement, len(raw))
	for key, value := range raw {
		var list []payroll.OffCyclePayElement
		if err := json.Unmarshal([]byte(value), &list); err != nil {
			r.log.Debug().Err(err).Str("key", key).Msg("malformed off-cycle staging ignored")
			continue
		}
		out[strings.TrimPrefix(key, r.prefix)] = list
	}
	return out, nil
}

func (r *Registry) write(ctx context.Context, date string, list []payroll.OffCyclePayElement) error {
	if len(list) == 0 {
		if err := r.kv.Delete(ctx, r.key(date)); err != nil {
			return fmt.Errorf("offcycle: delete staging for %s: %w", date, err)
		}
		return nil
	}
	b, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("offcycle: encode staging: %w", err)
	}
	if err := r.kv.Set(ctx, r.key(date), string(b)); err != nil {
		return fmt.Errorf("offcycle: write staging for %s: %w", date, err)
	}
	return nil
}

func cloneElements(in []payroll.OffCyclePayElement) []payroll.OffCyclePayElement {
	if in == nil {
		return nil
	}
	out := make([]payroll.OffCyclePayElement, len(in))
	copy(out, in)
	return out
}
