// Package workflow talks to the remote resume workflow engine and keeps an
// in-memory mirror of its state.
package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"resumeflow/internal/config"
	"resumeflow/internal/errors"
	"resumeflow/internal/types"

	"github.com/sony/gobreaker/v2"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"
)

// maxResponseBytes caps a response body. Larger bodies are rejected rather
// than truncated.
var maxResponseBytes int64 = 32 << 20

// Recorder receives client-side request telemetry. Implementations must be
// safe for concurrent use.
type Recorder interface {
	RecordRequest(ctx context.Context, endpoint string, status int, duration time.Duration, err error)
	RecordRateLimit(ctx context.Context, endpoint string)
}

// Identity carries the per-installation headers sent with every request.
type Identity struct {
	AnonymousID string
	AdminToken  string
}

// Client calls the workflow engine's REST API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*response]
	limiter    *rate.Limiter

	anonHeader string
	identity   Identity

	logger   *errors.Logger
	recorder Recorder
}

// response is a fully read HTTP response.
type response struct {
	status int
	header http.Header
	body   []byte
}

// errServerStatus marks a 5xx response so the breaker counts it as a failure.
var errServerStatus = stderrors.New("server error status")

// NewClient builds a client from the workflow configuration.
func NewClient(cfg config.WorkflowConfig, identity Identity, logger *errors.Logger, recorder Recorder) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Host == "" {
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig, "invalid workflow base URL", err).
			WithContext("base_url", cfg.BaseURL)
	}
	if logger == nil {
		logger = errors.NewNopLogger()
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, errors.NewInternalError(errors.ErrCodeInvalidConfig, "failed to create cookie jar", err)
	}

	if identity.AdminToken == "" {
		identity.AdminToken = cfg.AdminToken
	}
	anonHeader := cfg.AnonymousHeader
	if anonHeader == "" {
		anonHeader = "X-Anonymous-ID"
	}

	c := &Client{
		baseURL: base,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Jar:       jar,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		anonHeader: anonHeader,
		identity:   identity,
		logger:     logger,
		recorder:   recorder,
	}

	if cfg.RateLimit.Enabled && cfg.RateLimit.RequestsPerMin > 0 {
		burst := max(cfg.RateLimit.BurstCapacity, 1)
		c.limiter = rate.NewLimiter(rate.Limit(float64(cfg.RateLimit.RequestsPerMin)/60.0), burst)
	}

	if cfg.CircuitBreaker.Enabled {
		cb := cfg.CircuitBreaker
		c.breaker = gobreaker.NewCircuitBreaker[*response](gobreaker.Settings{
			Name:        "workflow-engine",
			MaxRequests: cb.MaxRequests,
			Interval:    cb.Interval,
			Timeout:     cb.Timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= cb.MinRequests && failureRatio >= cb.FailureThreshold
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				logger.Info("Circuit breaker state changed",
					"name", name,
					"from", from.String(),
					"to", to.String())
			},
		})
	}

	return c, nil
}

// BreakerStats mirrors the breaker state for status output.
func (c *Client) BreakerStats() map[string]any {
	if c.breaker == nil {
		return map[string]any{"enabled": false}
	}
	return map[string]any{
		"name":    c.breaker.Name(),
		"state":   c.breaker.State().String(),
		"counts":  c.breaker.Counts(),
		"enabled": true,
	}
}

func threadPath(threadID string, parts ...string) string {
	p := "/api/optimize/" + url.PathEscape(threadID)
	for _, part := range parts {
		p += "/" + part
	}
	return p
}

// Start begins a new workflow run.
func (c *Client) Start(ctx context.Context, in types.StartInput) (*types.StartResult, error) {
	req := startRequest{
		LinkedInURL: in.ProfileURL,
		ResumeText:  in.ProfileText,
		JobURL:      in.JobURL,
		JobText:     in.JobText,
	}
	var out startResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/optimize/start", nil, req, &out); err != nil {
		return nil, err
	}
	return &types.StartResult{
		ThreadID:    out.ThreadID,
		CurrentStep: out.CurrentStep,
		Status:      out.Status,
		Progress:    out.Progress,
	}, nil
}

// Status fetches the full snapshot of a thread.
func (c *Client) Status(ctx context.Context, threadID string) (*types.WorkflowState, error) {
	var out statusResponse
	q := url.Values{"include_data": {"true"}}
	if err := c.doJSON(ctx, http.MethodGet, "/api/optimize/status/"+url.PathEscape(threadID), q, nil, &out); err != nil {
		return nil, err
	}
	st := toState(out)
	if st.ThreadID == "" {
		st.ThreadID = threadID
	}
	return &st, nil
}

func (c *Client) SubmitAnswer(ctx context.Context, threadID, text string) error {
	return c.doJSON(ctx, http.MethodPost, threadPath(threadID, "answer"), nil, answerRequest{Text: text}, nil)
}

func (c *Client) ConfirmDiscovery(ctx context.Context, threadID string) error {
	return c.doJSON(ctx, http.MethodPost, threadPath(threadID, "discovery", "confirm"), nil, confirmRequest{Confirmed: true}, nil)
}

func (c *Client) SkipDiscovery(ctx context.Context, threadID string) error {
	return c.doJSON(ctx, http.MethodPost, threadPath(threadID, "discovery", "skip"), nil, nil, nil)
}

// RerunGapAnalysis asks the engine to redo gap analysis, optionally with
// edited markdown for either side.
func (c *Client) RerunGapAnalysis(ctx context.Context, threadID, profileMarkdown, jobMarkdown string) error {
	body := rerunRequest{ProfileMarkdown: profileMarkdown, JobMarkdown: jobMarkdown}
	return c.doJSON(ctx, http.MethodPost, threadPath(threadID, "gap-analysis", "rerun"), nil, body, nil)
}

func (c *Client) UpdateEditor(ctx context.Context, threadID, html string) error {
	return c.doJSON(ctx, http.MethodPost, threadPath(threadID, "editor", "update"), nil, htmlRequest{HTMLContent: html}, nil)
}

func (c *Client) StartExport(ctx context.Context, threadID string) error {
	return c.doJSON(ctx, http.MethodPost, threadPath(threadID, "export", "start"), nil, nil, nil)
}

// Download fetches a rendered resume.
func (c *Client) Download(ctx context.Context, threadID string, format types.ExportFormat) (*types.Download, error) {
	resp, err := c.do(ctx, http.MethodGet, threadPath(threadID, "export", "download", string(format)), nil, nil)
	if err != nil {
		return nil, err
	}
	return toDownload(resp, "resume."+string(format)), nil
}

func (c *Client) CopyText(ctx context.Context, threadID string) (string, error) {
	var out copyTextResponse
	if err := c.doJSON(ctx, http.MethodPost, threadPath(threadID, "export", "copy-text"), nil, nil, &out); err != nil {
		return "", err
	}
	return out.Text, nil
}

func (c *Client) ApproveDraft(ctx context.Context, threadID string) error {
	return c.doJSON(ctx, http.MethodPost, threadPath(threadID, "drafting", "approve"), nil, nil, nil)
}

func (c *Client) DraftingState(ctx context.Context, threadID string) (*types.DraftingState, error) {
	var out draftingStateResponse
	if err := c.doJSON(ctx, http.MethodGet, threadPath(threadID, "drafting", "state"), nil, nil, &out); err != nil {
		return nil, err
	}
	st := toDraftingState(out)
	if st.ThreadID == "" {
		st.ThreadID = threadID
	}
	return &st, nil
}

// PreviewPDF renders the current draft without approving it.
func (c *Client) PreviewPDF(ctx context.Context, threadID string) (*types.Download, error) {
	resp, err := c.do(ctx, http.MethodPost, threadPath(threadID, "drafting", "preview-pdf"), nil, nil)
	if err != nil {
		return nil, err
	}
	return toDownload(resp, "preview.pdf"), nil
}

func (c *Client) AcceptSuggestion(ctx context.Context, threadID, suggestionID string) error {
	return c.doJSON(ctx, http.MethodPost,
		threadPath(threadID, "drafting", "suggestion", url.PathEscape(suggestionID), "accept"), nil, nil, nil)
}

func (c *Client) DeclineSuggestion(ctx context.Context, threadID, suggestionID string) error {
	return c.doJSON(ctx, http.MethodPost,
		threadPath(threadID, "drafting", "suggestion", url.PathEscape(suggestionID), "decline"), nil, nil, nil)
}

func (c *Client) SaveDraft(ctx context.Context, threadID, html string) error {
	return c.doJSON(ctx, http.MethodPost, threadPath(threadID, "drafting", "save"), nil, htmlRequest{HTMLContent: html}, nil)
}

func (c *Client) RestoreVersion(ctx context.Context, threadID, version string) error {
	return c.doJSON(ctx, http.MethodPost, threadPath(threadID, "drafting", "restore"), nil, restoreRequest{Version: version}, nil)
}

func (c *Client) ATSReport(ctx context.Context, threadID string) (*types.ATSReport, error) {
	var out wireATS
	if err := c.doJSON(ctx, http.MethodGet, threadPath(threadID, "export", "ats-report"), nil, nil, &out); err != nil {
		return nil, err
	}
	return toATS(&out), nil
}

func (c *Client) LinkedIn(ctx context.Context, threadID string) (*types.LinkedInSuggestions, error) {
	var out wireLinkedIn
	if err := c.doJSON(ctx, http.MethodGet, threadPath(threadID, "export", "linkedin"), nil, nil, &out); err != nil {
		return nil, err
	}
	return toLinkedIn(&out), nil
}

// doJSON sends body as JSON and decodes a 2xx response into out when out is
// non-nil.
func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, body, out any) error {
	resp, err := c.do(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(resp.body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.body, out); err != nil {
		return errors.NewNetworkError(errors.ErrCodeDecodeFailed, "failed to decode workflow response", err).
			WithContext("endpoint", path)
	}
	return nil
}

// do performs one request and turns every non-2xx outcome into an error.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) (*response, error) {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return nil, errors.NewInternalError(errors.ErrCodeInvalidRequest, "failed to encode request body", err)
		}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, errors.NewNetworkError(errors.ErrCodeRequestFailed, "request cancelled while rate limited", err).
				WithContext("endpoint", path)
		}
	}

	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	start := time.Now()
	resp, err := c.execute(func() (*response, error) {
		return c.roundTrip(ctx, method, u.String(), payload)
	})
	status := 0
	if resp != nil {
		status = resp.status
	}
	c.record(ctx, path, status, time.Since(start), err)

	switch {
	case stderrors.Is(err, gobreaker.ErrOpenState), stderrors.Is(err, gobreaker.ErrTooManyRequests):
		return nil, errors.NewNetworkError(errors.ErrCodeCircuitOpen, "workflow engine unavailable", err).
			WithContext("endpoint", path)
	case err != nil && !stderrors.Is(err, errServerStatus):
		c.logger.Debug("Workflow request failed", "endpoint", path, "error", err)
		return nil, errors.NewNetworkError(errors.ErrCodeRequestFailed, "workflow request failed", err).
			WithContext("endpoint", path)
	}

	if resp.status == http.StatusTooManyRequests {
		if c.recorder != nil {
			c.recorder.RecordRateLimit(ctx, path)
		}
		return nil, &errors.RateLimitError{
			Endpoint:   path,
			RetryAfter: parseRetryAfter(resp.header.Get("Retry-After"), time.Now()),
		}
	}
	if resp.status < 200 || resp.status > 299 {
		return nil, errors.NewNetworkError(errors.ErrCodeBadStatus, statusMessage(resp), nil).
			WithContext("endpoint", path).
			WithContext("status_code", resp.status)
	}
	return resp, nil
}

func (c *Client) execute(fn func() (*response, error)) (*response, error) {
	if c.breaker == nil {
		return fn()
	}
	return c.breaker.Execute(fn)
}

func (c *Client) roundTrip(ctx context.Context, method, target string, payload []byte) (*response, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.identity.AnonymousID != "" {
		req.Header.Set(c.anonHeader, c.identity.AnonymousID)
	}
	if c.identity.AdminToken != "" {
		req.Header.Set("X-Admin-Token", c.identity.AdminToken)
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = httpResp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if int64(len(body)) > maxResponseBytes {
		return nil, fmt.Errorf("response body exceeds %d bytes", maxResponseBytes)
	}

	resp := &response{status: httpResp.StatusCode, header: httpResp.Header, body: body}
	if resp.status >= 500 {
		return resp, errServerStatus
	}
	return resp, nil
}

func (c *Client) record(ctx context.Context, endpoint string, status int, d time.Duration, err error) {
	if c.recorder == nil {
		return
	}
	if stderrors.Is(err, errServerStatus) {
		err = nil
	}
	c.recorder.RecordRequest(ctx, endpoint, status, d, err)
}

// statusMessage extracts the engine's error text from common JSON error
// shapes, falling back to the HTTP status text.
func statusMessage(resp *response) string {
	base := fmt.Sprintf("workflow engine returned %d %s", resp.status, http.StatusText(resp.status))
	if !gjson.ValidBytes(resp.body) {
		return base
	}
	for _, path := range []string{"detail", "error", "message", "detail.0.msg"} {
		if v := gjson.GetBytes(resp.body, path); v.Exists() && v.Type == gjson.String && v.String() != "" {
			return base + ": " + v.String()
		}
	}
	return base
}

// parseRetryAfter reads a Retry-After header given in seconds or as an HTTP
// date. Unparseable or past values yield zero.
func parseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(value); err == nil {
		if d := t.Sub(now); d > 0 {
			return d.Round(time.Second)
		}
	}
	return 0
}

func toDownload(resp *response, fallbackName string) *types.Download {
	name := fallbackName
	if cd := resp.header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil && params["filename"] != "" {
			name = params["filename"]
		}
	}
	return &types.Download{
		Filename:    sanitizeFilename(name, fallbackName),
		ContentType: resp.header.Get("Content-Type"),
		Data:        resp.body,
	}
}

// sanitizeFilename strips any directory components a server might send.
func sanitizeFilename(name, fallbackName string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	if name == "" || name == "." || name == ".." {
		return fallbackName
	}
	return name
}
