package hub

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/pithecene-io/stencil/iox"
	"github.com/pithecene-io/stencil/types"
)

func testClient(t *testing.T, host string) *Client {
	t.Helper()
	c, err := New(Config{Host: host, User: "publisher", Password: "secret"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	t.Cleanup(iox.CloseFunc(c))
	return c
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Config{User: "u", Password: "p"}); err == nil {
		t.Error("expected error for missing host")
	}
	if _, err := New(Config{Host: "https://hub.example.com"}); err == nil {
		t.Error("expected error for missing credentials")
	}
	if _, err := New(Config{Host: "h", User: "u", Password: "p", StatusRetries: -1}); err == nil {
		t.Error("expected error for negative retries")
	}
}

func TestPublish_Success(t *testing.T) {
	var gotPath, gotURL, gotUser, gotPass string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		gotPath = r.URL.Path
		gotUser, gotPass, _ = r.BasicAuth()
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		gotURL = r.PostFormValue("url")

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"uuid":"abc-123","_links":{"activator/templates/status":{"href":"%s/status/abc-123"}}}`, "https://hub.example.com")
	}))
	defer ts.Close()

	c := testClient(t, ts.URL)
	handle, err := c.Publish(t.Context(), "https://downloads.example.com/templates/hello.zip")
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	if gotPath != "/activator/template/publish" {
		t.Errorf("expected publish path, got %s", gotPath)
	}
	if gotURL != "https://downloads.example.com/templates/hello.zip" {
		t.Errorf("unexpected url form field: %s", gotURL)
	}
	if gotUser != "publisher" || gotPass != "secret" {
		t.Errorf("unexpected basic auth: %s/%s", gotUser, gotPass)
	}
	if handle.ID != "abc-123" {
		t.Errorf("expected abc-123, got %s", handle.ID)
	}
	if handle.StatusURL != "https://hub.example.com/status/abc-123" {
		t.Errorf("expected hub-provided status link, got %s", handle.StatusURL)
	}
}

func TestPublish_MissingStatusLink(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"uuid":"abc-123"}`)
	}))
	defer ts.Close()

	c := testClient(t, ts.URL)
	handle, err := c.Publish(t.Context(), "https://downloads.example.com/templates/hello.zip")
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	want := ts.URL + "/activator/template/status/abc-123"
	if handle.StatusURL != want {
		t.Errorf("expected synthesized status URL %s, got %s", want, handle.StatusURL)
	}
}

func TestPublish_RejectedFailsFast(t *testing.T) {
	var requests atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, "upstream broke")
	}))
	defer ts.Close()

	c := testClient(t, ts.URL)
	_, err := c.Publish(t.Context(), "https://downloads.example.com/templates/hello.zip")

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", statusErr.Code)
	}
	if statusErr.Body != "upstream broke" {
		t.Errorf("expected response body in error, got %q", statusErr.Body)
	}
	if n := requests.Load(); n != 1 {
		t.Errorf("publish must not retry: got %d requests", n)
	}
}

func TestPublish_MalformedBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "not json")
	}))
	defer ts.Close()

	c := testClient(t, ts.URL)
	if _, err := c.Publish(t.Context(), "https://downloads.example.com/x.zip"); err == nil {
		t.Error("expected decode error")
	}
}

func TestStatus_JSON(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantState types.TemplateState
		wantErrs  []string
	}{
		{"pending", `{"status":"pending"}`, types.StatePending, nil},
		{"validated", `{"status":"validated"}`, types.StateValidated, nil},
		{"failed", `{"status":"failed","errors":["bad name","missing tag"]}`, types.StateFailed, []string{"bad name", "missing tag"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if accept := r.Header.Get("Accept"); accept == "" {
					t.Error("expected Accept header")
				}
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, tt.body)
			}))
			defer ts.Close()

			c := testClient(t, ts.URL)
			status, err := c.Status(t.Context(), types.TrackingHandle{ID: "abc-123", StatusURL: ts.URL + "/status"})
			if err != nil {
				t.Fatalf("status: %v", err)
			}
			if status.ID != "abc-123" {
				t.Errorf("expected abc-123, got %s", status.ID)
			}
			if status.State != tt.wantState {
				t.Errorf("expected %s, got %s", tt.wantState, status.State)
			}
			if len(status.Errors) != len(tt.wantErrs) {
				t.Fatalf("expected %d errors, got %v", len(tt.wantErrs), status.Errors)
			}
			for i, want := range tt.wantErrs {
				if status.Errors[i] != want {
					t.Errorf("errors[%d]: expected %q, got %q", i, want, status.Errors[i])
				}
			}
		})
	}
}

func TestStatus_JSONWithoutContentType(t *testing.T) {
	// Some hub deployments ignore Accept and reply with JSON under a
	// generic content type.
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, `{"status":"validated"}`)
	}))
	defer ts.Close()

	c := testClient(t, ts.URL)
	status, err := c.Status(t.Context(), types.TrackingHandle{ID: "x", StatusURL: ts.URL})
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.State != types.StateValidated {
		t.Errorf("expected validated, got %s", status.State)
	}
}

func TestStatus_UnknownJSONState(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status":"exploded"}`)
	}))
	defer ts.Close()

	c := testClient(t, ts.URL)
	if _, err := c.Status(t.Context(), types.TrackingHandle{ID: "x", StatusURL: ts.URL}); err == nil {
		t.Error("expected error for unknown state")
	}
}

func TestStatus_RetriesTransientFailure(t *testing.T) {
	var requests atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if requests.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status":"validated"}`)
	}))
	defer ts.Close()

	c, err := New(Config{Host: ts.URL, User: "u", Password: "p", StatusRetries: 1})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	t.Cleanup(iox.CloseFunc(c))

	status, err := c.Status(t.Context(), types.TrackingHandle{ID: "x", StatusURL: ts.URL})
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.State != types.StateValidated {
		t.Errorf("expected validated, got %s", status.State)
	}
	if n := requests.Load(); n != 2 {
		t.Errorf("expected 2 requests, got %d", n)
	}
}
