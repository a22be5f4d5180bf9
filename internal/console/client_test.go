package console

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
)

func newEmptyJar() (*cookiejar.Jar, error) { return cookiejar.New(nil) }

const testSessionCookie = "unigw_session"

// newAdminStub serves a minimal admin API: login sets the session cookie,
// admin paths require it.
func newAdminStub(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			MasterKey string `json:"master_key"`
		}
		if errDecode := json.NewDecoder(r.Body).Decode(&body); errDecode != nil || body.MasterKey != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid master key"})
			return
		}
		http.SetCookie(w, &http.Cookie{Name: testSessionCookie, Value: "token", Path: "/"})
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	mux.HandleFunc("/api/admin/providers", func(w http.ResponseWriter, r *http.Request) {
		if cookie, errCookie := r.Cookie(testSessionCookie); errCookie != nil || cookie.Value == "" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "missing session"})
			return
		}
		_ = json.NewEncoder(w).Encode([]map[string]any{{"id": 1, "name": "openai-main", "provider_type": "openai-compatible"}})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestNewClientRejectsBadURL(t *testing.T) {
	for _, raw := range []string{"", "   ", "not a url", "127.0.0.1:8000"} {
		if _, err := NewClient(raw); err == nil {
			t.Fatalf("NewClient(%q) accepted an invalid url", raw)
		}
	}
	client, err := NewClient("http://127.0.0.1:8000/")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if client.BaseURL() != "http://127.0.0.1:8000" {
		t.Fatalf("BaseURL = %q, want trailing slash trimmed", client.BaseURL())
	}
}

func TestCallCarriesSessionCookie(t *testing.T) {
	server := newAdminStub(t)
	client, errClient := NewClient(server.URL)
	if errClient != nil {
		t.Fatalf("NewClient: %v", errClient)
	}
	ctx := context.Background()

	if _, err := client.Call(ctx, http.MethodGet, "/api/admin/providers", nil); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("pre-login call error = %v, want ErrUnauthorized", err)
	}
	if err := client.Login(ctx, "secret"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	rows, errList := client.Providers(ctx)
	if errList != nil {
		t.Fatalf("Providers after login: %v", errList)
	}
	if len(rows) != 1 || rows[0].Name != "openai-main" {
		t.Fatalf("Providers = %+v, want the stub row", rows)
	}
}

func TestCallUnauthorizedFiresHook(t *testing.T) {
	server := newAdminStub(t)
	client, errClient := NewClient(server.URL)
	if errClient != nil {
		t.Fatalf("NewClient: %v", errClient)
	}

	fired := false
	client.OnUnauthorized(func() { fired = true })

	_, err := client.Call(context.Background(), http.MethodGet, "/api/admin/providers", nil)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("call error = %v, want ErrUnauthorized", err)
	}
	if !fired {
		t.Fatal("unauthorized hook did not fire")
	}
}

func TestCallCollapsesServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "provider already exists"})
	}))
	defer server.Close()

	client, errClient := NewClient(server.URL)
	if errClient != nil {
		t.Fatalf("NewClient: %v", errClient)
	}

	_, err := client.Call(context.Background(), http.MethodPost, "/api/admin/providers", map[string]string{"name": "dup"})
	if !errors.Is(err, ErrRequestFailed) {
		t.Fatalf("call error = %v, want ErrRequestFailed", err)
	}
	if !strings.Contains(err.Error(), "provider already exists") {
		t.Fatalf("error %q does not carry the server message", err.Error())
	}
}

func TestCallEmptyResponseBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client, errClient := NewClient(server.URL)
	if errClient != nil {
		t.Fatalf("NewClient: %v", errClient)
	}

	raw, err := client.Call(context.Background(), http.MethodDelete, "/api/admin/providers/x", nil)
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if raw != nil {
		t.Fatalf("payload = %q, want nil for an empty body", string(raw))
	}
}

func TestCallUnreachableServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client, errClient := NewClient(url)
	if errClient != nil {
		t.Fatalf("NewClient: %v", errClient)
	}

	_, err := client.Call(context.Background(), http.MethodGet, "/api/admin/stats", nil)
	if !errors.Is(err, ErrRequestFailed) {
		t.Fatalf("call error = %v, want ErrRequestFailed", err)
	}
}

func TestGateLocksOnUnauthorized(t *testing.T) {
	server := newAdminStub(t)
	client, errClient := NewClient(server.URL)
	if errClient != nil {
		t.Fatalf("NewClient: %v", errClient)
	}
	gate := NewGate(client)
	ctx := context.Background()

	if gate.Unlocked() {
		t.Fatal("fresh gate is unlocked")
	}
	if err := gate.Unlock(ctx, "secret"); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	if !gate.Unlocked() {
		t.Fatal("gate locked after a successful unlock")
	}

	// Simulate an expired session: the next call sees 401.
	client.http.Jar, _ = newEmptyJar()
	if _, err := client.Providers(ctx); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("call error = %v, want ErrUnauthorized", err)
	}
	if gate.Unlocked() {
		t.Fatal("gate stayed unlocked after a 401")
	}
}

func TestGateUnlockRejectsWrongKey(t *testing.T) {
	server := newAdminStub(t)
	client, errClient := NewClient(server.URL)
	if errClient != nil {
		t.Fatalf("NewClient: %v", errClient)
	}
	gate := NewGate(client)

	err := gate.Unlock(context.Background(), "wrong")
	if err == nil || !strings.Contains(err.Error(), "invalid master key") {
		t.Fatalf("Unlock error = %v, want invalid master key", err)
	}
	if gate.Unlocked() {
		t.Fatal("gate unlocked after a rejected key")
	}

	if err := gate.Unlock(context.Background(), "   "); err == nil {
		t.Fatal("Unlock accepted a blank key")
	}
}
