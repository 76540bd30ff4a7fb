package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ogurasousui/payroll-orchestrator/internal/core/payroll"
	"github.com/rs/zerolog"
)

const (
	defaultTimeout = 15 * time.Second
	maxErrorBody   = 4 << 10
)

// Client は計算・承認バックエンドの HTTP/JSON クライアントです。
type Client struct {
	baseURL *url.URL
	http    *http.Client
	log     zerolog.Logger
}

var _ payroll.Backend = (*Client)(nil)

// Option は Client の任意設定です。
type Option func(*Client)

// WithHTTPClient は利用する http.Client を差し替えます。
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout はリクエスト全体のタイムアウトを設定します。
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithLogger はリクエストログの出力先を設定します。
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// New は baseURL に対するクライアントを生成します。
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, baseURL)
	}

	c := &Client{
		baseURL: u,
		http:    &http.Client{Timeout: defaultTimeout},
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type calculateRequest struct {
	PayDate        string `json:"payDate"`
	IncludeLeavers bool   `json:"includeLeavers,omitempty"`
	OffCycle       bool   `json:"offCycle,omitempty"`
}

type summaryResponse struct {
	RunID             string                     `json:"runId"`
	EmployeeSnapshots []payroll.EmployeeSnapshot `json:"employeeSnapshots"`
}

type offCycleListResponse struct {
	Elements []payroll.OffCyclePayElement `json:"elements"`
}

// Calculate は POST /payroll/runs/calculate を呼び出します。
func (c *Client) Calculate(ctx context.Context, payDate string, flags payroll.CalculationFlags) (*payroll.CalculationResult, error) {
	body := calculateRequest{PayDate: payDate, IncludeLeavers: flags.IncludeLeavers, OffCycle: flags.OffCycle}
	var res payroll.CalculationResult
	if err := c.do(ctx, http.MethodPost, "/payroll/runs/calculate", nil, body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// GetSummary は GET /payroll/runs/{id}/summary を呼び出します。
func (c *Client) GetSummary(ctx context.Context, runID string) ([]payroll.EmployeeSnapshot, error) {
	var res summaryResponse
	if err := c.do(ctx, http.MethodGet, runPath(runID, "summary"), nil, nil, &res); err != nil {
		return nil, err
	}
	return res.EmployeeSnapshots, nil
}

// GetApprovalStatus は GET /payroll/runs/{id}/approval を呼び出します。
func (c *Client) GetApprovalStatus(ctx context.Context, runID string) (*payroll.ApprovalWorkflow, error) {
	var wf payroll.ApprovalWorkflow
	if err := c.do(ctx, http.MethodGet, runPath(runID, "approval"), nil, nil, &wf); err != nil {
		return nil, err
	}
	if wf.RunID == "" {
		wf.RunID = runID
	}
	return &wf, nil
}

func (c *Client) SubmitForApproval(ctx context.Context, runID string) error {
	return c.do(ctx, http.MethodPost, runPath(runID, "approval", "submit"), nil, nil, nil)
}

func (c *Client) CompletePayment(ctx context.Context, runID string) error {
	return c.do(ctx, http.MethodPost, runPath(runID, "payment", "complete"), nil, nil, nil)
}

func (c *Client) DiscardRun(ctx context.Context, runID string) error {
	return c.do(ctx, http.MethodPost, runPath(runID, "discard"), nil, nil, nil)
}

// ListOffCycleElements は支給日のステージング要素を返します。payDate が空なら全件です。
func (c *Client) ListOffCycleElements(ctx context.Context, payDate string) ([]payroll.OffCyclePayElement, error) {
	query := url.Values{}
	if payDate != "" {
		query.Set("payDate", payDate)
	}
	var res offCycleListResponse
	if err := c.do(ctx, http.MethodGet, "/payroll/off-cycle-elements", query, nil, &res); err != nil {
		return nil, err
	}
	return res.Elements, nil
}

func (c *Client) CreateOffCycleElement(ctx context.Context, element payroll.OffCyclePayElement) (*payroll.OffCyclePayElement, error) {
	var created payroll.OffCyclePayElement
	if err := c.do(ctx, http.MethodPost, "/payroll/off-cycle-elements", nil, element, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// DeleteOffCycleElement は要素を削除します。404 は payroll.ErrElementNotFound として返します。
func (c *Client) DeleteOffCycleElement(ctx context.Context, id string) error {
	err := c.do(ctx, http.MethodDelete, "/payroll/off-cycle-elements/"+url.PathEscape(id), nil, nil, nil)
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%w: %s: %v", payroll.ErrElementNotFound, id, err)
	}
	return err
}

func runPath(runID string, segments ...string) string {
	return "/payroll/runs/" + url.PathEscape(runID) + "/" + strings.Join(segments, "/")
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	endpoint := c.baseURL.JoinPath(path)
	if len(query) > 0 {
		endpoint.RawQuery = query.Encode()
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("httpapi: encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return fmt.Errorf("httpapi: build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("httpapi: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(started)).
		Msg("backend request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("httpapi: decode %s %s: %w", method, path, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(raw, &payload) == nil {
		apiErr.Message = payload.Message
		if apiErr.Message == "" {
			apiErr.Message = payload.Error
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	return apiErr
}
