package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/ogurasousui/payroll-orchestrator/internal/core/payroll"
)

var (
	// ErrNotFound はバックエンドが 404 を返したことを表します。
	ErrNotFound = errors.New("httpapi: resource not found")
	// ErrInvalidBaseURL はベース URL が不正な場合に返されます。
	ErrInvalidBaseURL = errors.New("httpapi: invalid base url")
)

// APIError は 2xx 以外の応答です。
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("httpapi: backend responded %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("httpapi: backend responded %d: %s", e.StatusCode, e.Message)
}

// Is は 404 を ErrNotFound および payroll.ErrRunNotFound として扱えるようにします。
func (e *APIError) Is(target error) bool {
	if e.StatusCode != http.StatusNotFound {
		return false
	}
	return target == ErrNotFound || target == payroll.ErrRunNotFound
}

// Temporary はリトライで回復し得る応答かを返します。
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}
