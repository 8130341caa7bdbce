// Package enginetest provides an in-process fake of the workflow engine's
// REST API for tests.
package enginetest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

// Request is a request received by the engine.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// JSON decodes the request body into a generic map. It returns nil for an
// empty or non-object body.
func (r Request) JSON() map[string]any {
	var out map[string]any
	if err := json.Unmarshal(r.Body, &out); err != nil {
		return nil
	}
	return out
}

// Override replaces the response of one method and path.
type Override struct {
	Status int
	Body   string
	Header map[string]string
}

type thread struct {
	status   map[string]any
	drafting map[string]any
	ats      map[string]any
	linkedIn map[string]any
}

func (th *thread) data() map[string]any {
	d, ok := th.status["data"].(map[string]any)
	if !ok {
		d = map[string]any{}
		th.status["data"] = d
	}
	return d
}

// Engine is a stateful fake engine. Discovery answers are appended to the
// thread's status as user messages and counted as exchanges.
type Engine struct {
	*httptest.Server

	mu        sync.Mutex
	requests  []Request
	threads   map[string]*thread
	overrides map[string]Override
	nextID    int
}

// New starts an engine that is closed when the test ends.
func New(t testing.TB) *Engine {
	t.Helper()
	e := &Engine{
		threads:   make(map[string]*thread),
		overrides: make(map[string]Override),
	}
	e.Server = httptest.NewServer(e.routes())
	t.Cleanup(e.Close)
	return e
}

func (e *Engine) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(e.record, e.override)

	r.Post("/api/optimize/start", e.handleStart)
	r.Get("/api/optimize/status/{threadID}", e.handleStatus)

	r.Route("/api/optimize/{threadID}", func(r chi.Router) {
		r.Post("/answer", e.handleAnswer)
		r.Post("/discovery/confirm", e.handleAdvance("drafting", "discovery_confirmed"))
		r.Post("/discovery/skip", e.handleAdvance("drafting", "discovery_confirmed"))
		r.Post("/gap-analysis/rerun", e.handleAccepted)
		r.Post("/editor/update", e.handleEditorUpdate)

		r.Post("/drafting/approve", e.handleApprove)
		r.Get("/drafting/state", e.handleDraftingState)
		r.Post("/drafting/preview-pdf", e.handleFile("preview.pdf", "application/pdf"))
		r.Post("/drafting/suggestion/{suggestionID}/{action}", e.handleSuggestion)
		r.Post("/drafting/save", e.handleSave)
		r.Post("/drafting/restore", e.handleRestore)

		r.Post("/export/start", e.handleExportStart)
		r.Get("/export/download/{format}", e.handleDownload)
		r.Post("/export/copy-text", e.handleCopyText)
		r.Get("/export/ats-report", e.handleReport(func(th *thread) map[string]any { return th.ats }))
		r.Get("/export/linkedin", e.handleReport(func(th *thread) map[string]any { return th.linkedIn }))
	})
	return r
}

// Requests returns every request received so far.
func (e *Engine) Requests() []Request {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Request(nil), e.requests...)
}

// LastRequest returns the most recent request, or a zero Request.
func (e *Engine) LastRequest() Request {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.requests) == 0 {
		return Request{}
	}
	return e.requests[len(e.requests)-1]
}

// Count returns how many requests hit method and path.
func (e *Engine) Count(method, path string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, r := range e.requests {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

// SetStatus installs the status snapshot of a thread, in engine (snake_case)
// form. The value is copied through JSON.
func (e *Engine) SetStatus(threadID string, snapshot map[string]any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	th := e.thread(threadID)
	th.status = normalize(snapshot)
	th.status["thread_id"] = threadID
}

// UpdateStatus edits a thread's snapshot in place.
func (e *Engine) UpdateStatus(threadID string, fn func(status, data map[string]any)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	th := e.thread(threadID)
	fn(th.status, th.data())
}

// SetDrafting installs the drafting state of a thread.
func (e *Engine) SetDrafting(threadID string, state map[string]any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.thread(threadID).drafting = normalize(state)
}

// SetReports installs the ATS report and LinkedIn suggestions of a thread.
func (e *Engine) SetReports(threadID string, ats, linkedIn map[string]any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	th := e.thread(threadID)
	th.ats = normalize(ats)
	th.linkedIn = normalize(linkedIn)
}

// Override makes method and path answer with o until cleared with a zero
// Override.
func (e *Engine) Override(method, path string, o Override) {
	e.mu.Lock()
	defer e.mu.Unlock()
	key := method + " " + path
	if o.Status == 0 {
		delete(e.overrides, key)
		return
	}
	e.overrides[key] = o
}

// thread must be called with mu held.
func (e *Engine) thread(id string) *thread {
	th, ok := e.threads[id]
	if !ok {
		th = &thread{
			status:   map[string]any{"thread_id": id, "current_step": "ingest", "status": "running", "data": map[string]any{}},
			drafting: map[string]any{"thread_id": id},
		}
		e.threads[id] = th
	}
	return th
}

func (e *Engine) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(body))
		e.mu.Lock()
		e.requests = append(e.requests, Request{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.Query(),
			Header: r.Header.Clone(),
			Body:   body,
		})
		e.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (e *Engine) override(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		e.mu.Lock()
		o, ok := e.overrides[r.Method+" "+r.URL.Path]
		e.mu.Unlock()
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		for k, v := range o.Header {
			w.Header().Set(k, v)
		}
		w.WriteHeader(o.Status)
		_, _ = io.WriteString(w, o.Body)
	})
}

// withThread runs fn with the lock held on an existing thread.
func (e *Engine) withThread(w http.ResponseWriter, r *http.Request, fn func(th *thread)) {
	id := chi.URLParam(r, "threadID")
	e.mu.Lock()
	defer e.mu.Unlock()
	th, ok := e.threads[id]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Thread not found"})
		return
	}
	fn(th)
}

func (e *Engine) handleStart(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": "invalid body"})
		return
	}
	e.mu.Lock()
	e.nextID++
	id := fmt.Sprintf("thread-%d", e.nextID)
	th := e.thread(id)
	resp := map[string]any{
		"thread_id":    id,
		"current_step": th.status["current_step"],
		"status":       th.status["status"],
		"progress":     0,
	}
	e.mu.Unlock()

	writeJSON(w, http.StatusOK, resp)
}

func (e *Engine) handleStatus(w http.ResponseWriter, r *http.Request) {
	e.withThread(w, r, func(th *thread) {
		writeJSON(w, http.StatusOK, th.status)
	})
}

func (e *Engine) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text string `json:"text"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	e.withThread(w, r, func(th *thread) {
		d := th.data()
		msgs, _ := d["discovery_messages"].([]any)
		d["discovery_messages"] = append(msgs, map[string]any{
			"role":      "user",
			"content":   body.Text,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		d["discovery_exchanges"] = toInt(d["discovery_exchanges"]) + 1
		writeJSON(w, http.StatusOK, map[string]any{"status": "accepted"})
	})
}

func (e *Engine) handleAdvance(step, flag string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e.withThread(w, r, func(th *thread) {
			th.data()[flag] = true
			th.status["current_step"] = step
			writeJSON(w, http.StatusOK, map[string]any{"status": "accepted"})
		})
	}
}

func (e *Engine) handleAccepted(w http.ResponseWriter, r *http.Request) {
	e.withThread(w, r, func(*thread) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "accepted"})
	})
}

func (e *Engine) handleEditorUpdate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		HTML string `json:"html_content"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	e.withThread(w, r, func(th *thread) {
		th.data()["resume_html"] = body.HTML
		th.drafting["html_content"] = body.HTML
		writeJSON(w, http.StatusOK, map[string]any{"status": "updated"})
	})
}

func (e *Engine) handleApprove(w http.ResponseWriter, r *http.Request) {
	e.withThread(w, r, func(th *thread) {
		th.drafting["approved"] = true
		th.data()["draft_approved"] = true
		th.status["current_step"] = "export"
		writeJSON(w, http.StatusOK, map[string]any{"status": "approved"})
	})
}

func (e *Engine) handleDraftingState(w http.ResponseWriter, r *http.Request) {
	e.withThread(w, r, func(th *thread) {
		writeJSON(w, http.StatusOK, th.drafting)
	})
}

func (e *Engine) handleSuggestion(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "suggestionID")
	var status string
	switch chi.URLParam(r, "action") {
	case "accept":
		status = "accepted"
	case "decline":
		status = "declined"
	default:
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "unknown action"})
		return
	}
	e.withThread(w, r, func(th *thread) {
		list, _ := th.drafting["suggestions"].([]any)
		for _, item := range list {
			if s, ok := item.(map[string]any); ok && s["id"] == id {
				s["status"] = status
				s["resolved_at"] = time.Now().UTC().Format(time.RFC3339)
				writeJSON(w, http.StatusOK, map[string]any{"status": status})
				return
			}
		}
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Suggestion not found"})
	})
}

func (e *Engine) handleSave(w http.ResponseWriter, r *http.Request) {
	var body struct {
		HTML string `json:"html_content"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	e.withThread(w, r, func(th *thread) {
		versions, _ := th.drafting["versions"].([]any)
		v := fmt.Sprintf("1.%d", len(versions))
		th.drafting["versions"] = append(versions, map[string]any{
			"version":      v,
			"html_content": body.HTML,
			"trigger":      "manual_save",
			"description":  "Manual save",
			"created_at":   time.Now().UTC().Format(time.RFC3339),
		})
		th.drafting["html_content"] = body.HTML
		th.drafting["current_version"] = v
		writeJSON(w, http.StatusOK, map[string]any{"version": v})
	})
}

func (e *Engine) handleRestore(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Version string `json:"version"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	e.withThread(w, r, func(th *thread) {
		versions, _ := th.drafting["versions"].([]any)
		for _, item := range versions {
			if v, ok := item.(map[string]any); ok && v["version"] == body.Version {
				th.drafting["current_version"] = body.Version
				th.drafting["html_content"] = v["html_content"]
				writeJSON(w, http.StatusOK, map[string]any{"version": body.Version})
				return
			}
		}
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Version not found"})
	})
}

func (e *Engine) handleExportStart(w http.ResponseWriter, r *http.Request) {
	e.withThread(w, r, func(th *thread) {
		th.status["current_step"] = "export"
		th.status["status"] = "completed"
		th.status["progress"] = 100
		th.data()["export_completed"] = true
		writeJSON(w, http.StatusOK, map[string]any{"status": "started"})
	})
}

var contentTypes = map[string]string{
	"pdf":  "application/pdf",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"txt":  "text/plain; charset=utf-8",
	"json": "application/json",
}

func (e *Engine) handleDownload(w http.ResponseWriter, r *http.Request) {
	format := chi.URLParam(r, "format")
	ct, ok := contentTypes[format]
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]any{"detail": "Unsupported format: " + format})
		return
	}
	e.handleFile("optimized_resume."+format, ct)(w, r)
}

func (e *Engine) handleFile(name, contentType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e.withThread(w, r, func(th *thread) {
			html, _ := th.data()["resume_html"].(string)
			w.Header().Set("Content-Type", contentType)
			w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
			w.WriteHeader(http.StatusOK)
			_, _ = io.WriteString(w, "resume:"+html)
		})
	}
}

func (e *Engine) handleCopyText(w http.ResponseWriter, r *http.Request) {
	e.withThread(w, r, func(th *thread) {
		html, _ := th.data()["resume_html"].(string)
		writeJSON(w, http.StatusOK, map[string]any{"text": "plain:" + html})
	})
}

func (e *Engine) handleReport(pick func(*thread) map[string]any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e.withThread(w, r, func(th *thread) {
			rep := pick(th)
			if rep == nil {
				writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Report not ready"})
				return
			}
			writeJSON(w, http.StatusOK, rep)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// normalize copies v through JSON so nested values have the decoded types
// ([]any, map[string]any, float64).
func normalize(v map[string]any) map[string]any {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		panic(err)
	}
	return out
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}
