package main

import (
	"errors"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeMigrator struct {
	calls   []string
	upErr   error
	steps   int
	forced  int
	version uint
	verErr  error
}

func (f *fakeMigrator) Up() error {
	f.calls = append(f.calls, "up")
	return f.upErr
}

func (f *fakeMigrator) Down() error {
	f.calls = append(f.calls, "down")
	return nil
}

func (f *fakeMigrator) Drop() error {
	f.calls = append(f.calls, "drop")
	return nil
}

func (f *fakeMigrator) Steps(n int) error {
	f.calls = append(f.calls, "steps")
	f.steps = n
	return nil
}

func (f *fakeMigrator) Force(v int) error {
	f.calls = append(f.calls, "force")
	f.forced = v
	return nil
}

func (f *fakeMigrator) Version() (uint, bool, error) {
	f.calls = append(f.calls, "version")
	return f.version, false, f.verErr
}

func TestRunMigration(t *testing.T) {
	t.Parallel()

	t.Run("up ignores no change", func(t *testing.T) {
		t.Parallel()
		m := &fakeMigrator{upErr: migrate.ErrNoChange}
		require.NoError(t, runMigration(m, "up", nil, zerolog.Nop()))
		require.Equal(t, []string{"up"}, m.calls)
	})

	t.Run("up propagates failures", func(t *testing.T) {
		t.Parallel()
		m := &fakeMigrator{upErr: errors.New("dirty database")}
		require.ErrorContains(t, runMigration(m, "up", nil, zerolog.Nop()), "dirty database")
	})

	t.Run("steps and force take a number", func(t *testing.T) {
		t.Parallel()
		m := &fakeMigrator{}
		require.NoError(t, runMigration(m, "steps", []string{"-1"}, zerolog.Nop()))
		require.NoError(t, runMigration(m, "force", []string{"1"}, zerolog.Nop()))
		require.Equal(t, -1, m.steps)
		require.Equal(t, 1, m.forced)

		require.Error(t, runMigration(m, "force", nil, zerolog.Nop()))
		require.Error(t, runMigration(m, "steps", []string{"two"}, zerolog.Nop()))
	})

	t.Run("version without migrations", func(t *testing.T) {
		t.Parallel()
		m := &fakeMigrator{verErr: migrate.ErrNilVersion}
		require.NoError(t, runMigration(m, "version", nil, zerolog.Nop()))
	})

	t.Run("unknown action", func(t *testing.T) {
		t.Parallel()
		require.ErrorContains(t, runMigration(&fakeMigrator{}, "redo", nil, zerolog.Nop()), "unsupported action")
	})
}

func TestEffectiveConfigPath(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	require.Equal(t, "assets/local.yaml", effectiveConfigPath(""))
	require.Equal(t, "custom.yaml", effectiveConfigPath("custom.yaml"))

	t.Setenv("CONFIG_PATH", "/etc/payroll.yaml")
	require.Equal(t, "/etc/payroll.yaml", effectiveConfigPath(""))
}
