package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/ogurasousui/payroll-orchestrator/internal/core/runstate"
	pgdb "github.com/ogurasousui/payroll-orchestrator/internal/platform/db/postgres"
)

// StateRepository は orchestration_state テーブルを利用した runstate.KV の実装です。
// 値は検証せずにテキストとして保存します。
type StateRepository struct {
	pool pgdb.Queryer
	now  func() time.Time
}

var _ runstate.KV = (*StateRepository)(nil)

// NewStateRepository は StateRepository を生成します。
func NewStateRepository(pool pgdb.Queryer) *StateRepository {
	return &StateRepository{pool: pool, now: func() time.Time { return time.Now().UTC() }}
}

// Get はキーの値を返します。存在しない場合は ok=false です。
func (r *StateRepository) Get(ctx context.Context, key string) (string, bool, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	var value string
	err := exec.QueryRow(ctx, `
        SELECT value
          FROM orchestration_state
         WHERE key = $1
    `, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("postgres: get state %s: %w", key, err)
	}
	return value, true, nil
}

// Set はキーの値を上書きします。
func (r *StateRepository) Set(ctx context.Context, key, value string) error {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	if _, err := exec.Exec(ctx, `
        INSERT INTO orchestration_state (key, value, updated_at)
        VALUES ($1, $2, $3)
        ON CONFLICT (key) DO UPDATE
           SET value = EXCLUDED.value,
               updated_at = EXCLUDED.updated_at
    `, key, value, r.now()); err != nil {
		return fmt.Errorf("postgres: set state %s: %w", key, err)
	}
	return nil
}

// Delete は指定したキーを削除します。存在しないキーは無視します。
func (r *StateRepository) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	if _, err := exec.Exec(ctx, `DELETE FROM orchestration_state WHERE key = ANY($1)`, keys); err != nil {
		return fmt.Errorf("postgres: delete state: %w", err)
	}
	return nil
}

// List は prefix で始まるキーと値を返します。
func (r *StateRepository) List(ctx context.Context, prefix string) (map[string]string, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, `
        SELECT key, value
          FROM orchestration_state
         WHERE key LIKE $1 ESCAPE '\'
         ORDER BY key
    `, escapeLike(prefix)+"%")
	if err != nil {
		return nil, fmt.Errorf("postgres: list state %s: %w", prefix, err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("postgres: scan state: %w", err)
		}
		out[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list state %s: %w", prefix, err)
	}
	return out, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
