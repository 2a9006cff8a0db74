package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/transcenda-leads/internal/followup"
	httpmiddleware "github.com/wolfman30/transcenda-leads/internal/http/middleware"
	"github.com/wolfman30/transcenda-leads/internal/leads"
	"github.com/wolfman30/transcenda-leads/internal/voice"
	"github.com/wolfman30/transcenda-leads/pkg/logging"
)

type stubProcessor struct{}

func (stubProcessor) Process(_ context.Context, sub *leads.Submission) leads.Result {
	if err := sub.Validate(); err != nil {
		return leads.Result{FailedStage: leads.StageValidation, Error: err.Error(), Err: err}
	}
	return leads.Result{Success: true, ContactID: "contact-1", Score: 20, Tier: leads.TierCold}
}

type stubSink struct{ calls int }

func (s *stubSink) SendWebhook(context.Context, string, map[string]any) error {
	s.calls++
	return nil
}

type stubCalls struct{}

func (stubCalls) InitiateCall(_ context.Context, phone string, _ voice.CallDetails) (*voice.Call, error) {
	return &voice.Call{ID: "call-1", Raw: json.RawMessage(`{"id":"call-1"}`)}, nil
}

func newTestRouter(t *testing.T, limiter *httpmiddleware.RateLimiter) (http.Handler, *followup.MemoryJobStore) {
	t.Helper()

	logger := logging.Default()
	jobs := followup.NewMemoryJobStore()
	reg := prometheus.NewRegistry()

	cfg := &Config{
		Logger:             logger,
		LeadsHandler:       leads.NewHandler(stubProcessor{}, logger),
		VoiceWebhook:       voice.NewWebhookHandler(&stubSink{}, "https://hooks.example/ghl", logger),
		VoiceActions:       voice.NewActionHandler(stubCalls{}, logger),
		VoiceWidget:        voice.WidgetConfigHandler(voice.WidgetConfig{PublicKey: "pk", AssistantID: "asst"}),
		FollowUpJobs:       followup.NewJobHandler(jobs, logger),
		MetricsHandler:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		CORSAllowedOrigins: []string{"https://transcenda.ae"},
		RateLimiter:        limiter,
	}
	return New(cfg), jobs
}

func TestRouterHealthEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", resp["status"])
	}
}

func TestRouterSubmitLead(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	body := `{"firstName":"Layla","email":"layla@example.com","phone":"+971501234567"}`
	req := httptest.NewRequest(http.MethodPost, "/submit-lead", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}
	var resp map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["contactId"] != "contact-1" {
		t.Errorf("expected contactId contact-1, got %v", resp["contactId"])
	}
}

func TestRouterSubmitLeadValidation(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/submit-lead", strings.NewReader(`{"email":"layla@example.com"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rr.Code)
	}
}

func TestRouterSubmitLeadRejectsGet(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/submit-lead", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status %d, got %d", http.StatusMethodNotAllowed, rr.Code)
	}
}

func TestRouterPreflight(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/submit-lead", nil)
	req.Header.Set("Origin", "https://transcenda.ae")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://transcenda.ae" {
		t.Fatalf("unexpected allow origin %q", got)
	}
}

func TestRouterRateLimitsIntake(t *testing.T) {
	router, _ := newTestRouter(t, httpmiddleware.NewRateLimiter(0.001, 1))

	send := func(path string) int {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{}`))
		req.RemoteAddr = "198.51.100.4:4000"
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr.Code
	}

	if code := send("/submit-lead"); code == http.StatusTooManyRequests {
		t.Fatal("first request should not be limited")
	}
	if code := send("/submit-lead"); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", code)
	}
	// Vendor webhooks are not behind the intake limit.
	if code := send("/vapi-webhook"); code == http.StatusTooManyRequests {
		t.Fatal("voice webhook should not be rate limited")
	}
}

func TestRouterVoiceRoutes(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/vapi", strings.NewReader(`{"action":"start-call","data":{"customerPhone":"+971501234567"}}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("/vapi: expected 200, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/vapi-webhook", strings.NewReader(`{"type":"status-update"}`))
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("/vapi-webhook: expected 200, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/voice/widget-config", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("/voice/widget-config: expected 200, got %d", rr.Code)
	}
}

func TestRouterFollowUpJob(t *testing.T) {
	router, jobs := newTestRouter(t, nil)

	job := &followup.JobRecord{
		JobID:   "job-1",
		Request: followup.CallRequest{ContactID: "contact-1", Phone: "+971501234567"},
		DueAt:   time.Now().Add(5 * time.Minute).UTC().Format(time.RFC3339Nano),
	}
	if err := jobs.PutPending(context.Background(), job); err != nil {
		t.Fatalf("put job: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/followups/job-1", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/followups/missing", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestRouterMetricsEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestRouterOmitsUnconfiguredRoutes(t *testing.T) {
	r := New(&Config{Logger: logging.Default()})

	req := httptest.NewRequest(http.MethodPost, "/vapi-webhook", strings.NewReader("{}"))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound && rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 404/405 without a voice webhook handler, got %d", rr.Code)
	}
}

type deadlineProcessor struct{ hasDeadline bool }

func (p *deadlineProcessor) Process(ctx context.Context, _ *leads.Submission) leads.Result {
	_, p.hasDeadline = ctx.Deadline()
	return leads.Result{Success: true, ContactID: "contact-1", Tier: leads.TierCold}
}

func TestRouterAppliesRequestTimeout(t *testing.T) {
	for _, timeout := range []time.Duration{0, 5 * time.Second} {
		proc := &deadlineProcessor{}
		r := New(&Config{
			Logger:         logging.Default(),
			LeadsHandler:   leads.NewHandler(proc, logging.Default()),
			RequestTimeout: timeout,
		})

		body := `{"firstName":"Layla","email":"layla@example.com","phone":"+971501234567"}`
		req := httptest.NewRequest(http.MethodPost, "/submit-lead", strings.NewReader(body))
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("timeout %s: expected 200, got %d", timeout, rr.Code)
		}
		if want := timeout > 0; proc.hasDeadline != want {
			t.Fatalf("timeout %s: deadline present = %v, want %v", timeout, proc.hasDeadline, want)
		}
	}
}
