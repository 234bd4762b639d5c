package templates

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestListTemplates_OK(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Fatalf("method = %s, want GET", r.Method)
		}
		if r.URL.Path != "/api/templates" {
			t.Fatalf("path = %s, want /api/templates", r.URL.Path)
		}

		resp := []Template{
			{
				TemplateID: "sapphire-preferred",
				CardName:   "Sapphire Preferred",
				Issuer:     "Chase",
				AnnualFee:  ptrInt64(95),
			},
			{
				TemplateID: "freedom-flex",
				CardName:   "Freedom Flex",
				Issuer:     "Chase",
			},
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	res, code, retry, err := client.ListTemplates(ctx)
	if err != nil {
		t.Fatalf("ListTemplates error: %v", err)
	}
	if code != http.StatusOK {
		t.Fatalf("status code = %d, want %d", code, http.StatusOK)
	}
	if retry != 0 {
		t.Fatalf("retryAfter = %v, want 0", retry)
	}
	if len(res) != 2 {
		t.Fatalf("len(res) = %d, want 2", len(res))
	}
	if res[0].TemplateID != "sapphire-preferred" || res[0].Issuer != "Chase" {
		t.Fatalf("unexpected first template: %+v", res[0])
	}
	if res[0].AnnualFee == nil || *res[0].AnnualFee != 95 {
		t.Fatalf("unexpected annual fee: %v", res[0].AnnualFee)
	}
	if res[1].AnnualFee != nil {
		t.Fatalf("expected nil annual fee, got %v", *res[1].AnnualFee)
	}
}

func TestListTemplates_TooManyRequests(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "5")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	res, code, retry, err := client.ListTemplates(ctx)
	if err != nil {
		t.Fatalf("ListTemplates error: %v", err)
	}
	if res != nil {
		t.Fatalf("expected nil response for 429, got %+v", res)
	}
	if code != http.StatusTooManyRequests {
		t.Fatalf("status code = %d, want %d", code, http.StatusTooManyRequests)
	}
	if retry < 5*time.Second {
		t.Fatalf("retryAfter = %v, want at least 5s", retry)
	}
}

func TestListTemplates_NoContent(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	res, code, retry, err := client.ListTemplates(ctx)
	if err != nil {
		t.Fatalf("ListTemplates error: %v", err)
	}
	if res != nil {
		t.Fatalf("expected nil response for 204, got %+v", res)
	}
	if code != http.StatusNoContent {
		t.Fatalf("status code = %d, want %d", code, http.StatusNoContent)
	}
	if retry != 0 {
		t.Fatalf("retryAfter = %v, want 0", retry)
	}
}

func ptrInt64(v int64) *int64 {
	return &v
}
