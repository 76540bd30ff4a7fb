package orchestrator

import (
	"fmt"
	"sync"
)

// Manager はバリアントごとの Controller を保持します。
type Manager struct {
	mu          sync.RWMutex
	controllers map[string]*Controller
	order       []string
}

// NewManager は Manager を生成します。
func NewManager(controllers ...*Controller) *Manager {
	m := &Manager{controllers: make(map[string]*Controller, len(controllers))}
	for _, c := range controllers {
		name := c.Variant().Name
		if _, exists := m.controllers[name]; !exists {
			m.order = append(m.order, name)
		}
		m.controllers[name] = c
	}
	return m
}

// Controller はバリアント名に対応する Controller を返します。
func (m *Manager) Controller(variant string) (*Controller, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.controllers[variant]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownVariant, variant)
	}
	return c, nil
}

// Variants は登録順のバリアント名を返します。
func (m *Manager) Variants() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Close はすべての Controller を停止します。
func (m *Manager) Close() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, name := range m.order {
		m.controllers[name].Close()
	}
}
