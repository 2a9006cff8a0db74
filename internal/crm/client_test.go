package crm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/wolfman30/transcenda-leads/internal/config"
	"github.com/wolfman30/transcenda-leads/internal/remote"
	"github.com/wolfman30/transcenda-leads/pkg/logging"
)

var fixedNow = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	client, err := NewClient(config.CRMConfig{
		APIKey:         "ghl-key",
		LocationID:     "loc-1",
		BaseURL:        ts.URL,
		FormWebhookURL: ts.URL + "/form-hook",
	}, WithLogger(logging.Default()), WithClock(func() time.Time { return fixedNow }))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client, ts
}

func TestNewClient_MissingConfig(t *testing.T) {
	_, err := NewClient(config.CRMConfig{LocationID: "loc"})
	if !errors.Is(err, config.ErrMissingConfig) {
		t.Fatalf("expected missing config error, got %v", err)
	}
}

func TestCreateContact_Success(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/contacts/" {
			t.Fatalf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer ghl-key" {
			t.Fatalf("authorization = %q", got)
		}
		var body Contact
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.FirstName != "Layla" || body.Email != "layla@example.com" {
			t.Fatalf("unexpected body %+v", body)
		}
		if body.CustomFields["lead_source"] != "Landing Page" {
			t.Fatalf("lead_source = %v", body.CustomFields["lead_source"])
		}
		if body.CustomFields["qualification_stage"] != "New" {
			t.Fatalf("qualification_stage = %v", body.CustomFields["qualification_stage"])
		}
		if body.CustomFields["industry"] != "Real Estate" {
			t.Fatalf("industry = %v", body.CustomFields["industry"])
		}
		if len(body.Tags) != 1 || body.Tags[0] != "Transcenda Lead" {
			t.Fatalf("tags = %v", body.Tags)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"contact":{"id":"ct-42","email":"layla@example.com"}}`))
	})

	resp, err := client.CreateContact(context.Background(), Contact{
		FirstName:    "Layla",
		Email:        "layla@example.com",
		Phone:        "+971501234567",
		Source:       "Landing Page",
		CustomFields: map[string]any{"industry": "Real Estate"},
	})
	if err != nil {
		t.Fatalf("CreateContact() error = %v", err)
	}
	if resp.Contact.ID != "ct-42" {
		t.Fatalf("contact id = %s, want ct-42", resp.Contact.ID)
	}
}

func TestCreateContact_CallerCustomFieldsOverrideDefaults(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body Contact
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.CustomFields["qualification_stage"] != "Qualified" {
			t.Fatalf("qualification_stage = %v", body.CustomFields["qualification_stage"])
		}
		_, _ = w.Write([]byte(`{"contact":{"id":"ct-1"}}`))
	})

	_, err := client.CreateContact(context.Background(), Contact{
		FirstName:    "Omar",
		CustomFields: map[string]any{"qualification_stage": "Qualified"},
	})
	if err != nil {
		t.Fatalf("CreateContact() error = %v", err)
	}
}

func TestCreateContact_HTTPError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	})

	_, err := client.CreateContact(context.Background(), Contact{FirstName: "Omar"})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var rse *remote.RemoteServiceError
	if !errors.As(err, &rse) {
		t.Fatalf("expected RemoteServiceError, got %T %v", err, err)
	}
	if rse.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rse.StatusCode)
	}
}

func TestCreateContact_MissingID(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"contact":{}}`))
	})

	_, err := client.CreateContact(context.Background(), Contact{FirstName: "Omar"})
	if !errors.Is(err, ErrMissingContactID) {
		t.Fatalf("expected ErrMissingContactID, got %v", err)
	}
}

func TestAddToWorkflow(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("method = %s", r.Method)
		}
		if r.URL.Path != "/contacts/ct-42/workflow/wf-hot" {
			t.Fatalf("path = %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{}`))
	})

	if err := client.AddToWorkflow(context.Background(), "ct-42", "wf-hot"); err != nil {
		t.Fatalf("AddToWorkflow() error = %v", err)
	}
}

func TestAddToWorkflow_HTTPError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such workflow", http.StatusNotFound)
	})

	err := client.AddToWorkflow(context.Background(), "ct-42", "wf-missing")
	if remote.StatusCode(err) != http.StatusNotFound {
		t.Fatalf("expected 404 remote error, got %v", err)
	}
}

func TestAddToWorkflow_RequiresIDs(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})
	if err := client.AddToWorkflow(context.Background(), "", "wf"); err == nil {
		t.Fatal("expected error for empty contact id")
	}
	if err := client.AddToWorkflow(context.Background(), "ct", " "); err == nil {
		t.Fatal("expected error for empty workflow id")
	}
}

func TestSendWebhook_InjectsTimestampAndSource(t *testing.T) {
	client, ts := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/hooks/call" {
			t.Fatalf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "" {
			t.Fatal("webhook must not carry the API key")
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body["event"] != "vapi_call_completed" {
			t.Fatalf("event = %v", body["event"])
		}
		if body["source"] != WebhookSource {
			t.Fatalf("source = %v", body["source"])
		}
		if body["timestamp"] != "2026-03-01T09:30:00Z" {
			t.Fatalf("timestamp = %v", body["timestamp"])
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	err := client.SendWebhook(context.Background(), ts.URL+"/hooks/call", map[string]any{
		"event": "vapi_call_completed",
		"phone": "+971501234567",
	})
	if err != nil {
		t.Fatalf("SendWebhook() error = %v", err)
	}
}

func TestSendWebhook_MissingURL(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	err := client.SendWebhook(context.Background(), "", map[string]any{})
	if !errors.Is(err, config.ErrMissingConfig) {
		t.Fatalf("expected missing config error, got %v", err)
	}
}

func TestCreateOpportunity(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/opportunities" {
			t.Fatalf("path = %s", r.URL.Path)
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["locationId"] != "loc-1" || body["contactId"] != "ct-42" {
			t.Fatalf("unexpected body %v", body)
		}
		if body["status"] != "open" || body["source"] != "Landing Page" {
			t.Fatalf("defaults not applied: %v", body)
		}
		_, _ = w.Write([]byte(`{"id":"opp-1","status":"open"}`))
	})

	resp, err := client.CreateOpportunity(context.Background(), Opportunity{
		ContactID:     "ct-42",
		Name:          "Strategy Session - Transcenda",
		MonetaryValue: 25000,
		PipelineID:    "pipe-1",
		StageID:       "stage-1",
	})
	if err != nil {
		t.Fatalf("CreateOpportunity() error = %v", err)
	}
	if resp.ID != "opp-1" {
		t.Fatalf("opportunity id = %s", resp.ID)
	}
}

func TestSubmitForm(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/form-hook" {
			t.Fatalf("path = %s", r.URL.Path)
		}
		var body struct {
			LocationID string `json:"locationId"`
			Contact    struct {
				FirstName    string         `json:"firstName"`
				Tags         []string       `json:"tags"`
				CustomFields map[string]any `json:"customFields"`
			} `json:"contact"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.LocationID != "loc-1" {
			t.Fatalf("locationId = %s", body.LocationID)
		}
		if body.Contact.FirstName != "Acme Realty" {
			t.Fatalf("firstName = %s", body.Contact.FirstName)
		}
		if body.Contact.CustomFields["revenue_range"] != "1M - 5M" {
			t.Fatalf("revenue_range = %v", body.Contact.CustomFields["revenue_range"])
		}
		_, _ = w.Write([]byte(`{"contact":{"id":"ct-7"}}`))
	})

	resp, err := client.SubmitForm(context.Background(), FormSubmission{
		CompanyName: "Acme Realty",
		Revenue:     "1M - 5M",
		Email:       "ops@acme.ae",
		Phone:       "+971501234567",
		Source:      "Landing Page Form",
		Tags:        []string{"Hot Lead", "Strategy Session Request"},
	})
	if err != nil {
		t.Fatalf("SubmitForm() error = %v", err)
	}
	if resp.Contact.ID != "ct-7" {
		t.Fatalf("contact id = %s", resp.Contact.ID)
	}
}
