package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/felixgeelhaar/timecard/internal/domain"
	"github.com/felixgeelhaar/timecard/internal/session"
)

// mockAuth is a test implementation of Authenticator
type mockAuth struct {
	mu      sync.Mutex
	token   string
	expired []string
}

func (m *mockAuth) Credential() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

func (m *mockAuth) Expire(_ context.Context, used string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expired = append(m.expired, used)
	m.token = ""
}

func testConfig(url string) Config {
	cfg := DefaultConfig()
	cfg.BaseURL = url
	cfg.Timeout = 2 * time.Second
	cfg.InitialDelay = time.Millisecond
	return cfg
}

func TestClient_Do_SendsHeaders(t *testing.T) {
	var got http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Write([]byte(`{"id": 3, "name": "Renovatie"}`))
	}))
	defer server.Close()

	client := NewClient(&mockAuth{token: "tok"}, testConfig(server.URL))

	var p domain.Project
	if err := client.Get(context.Background(), "/projects/3", &p); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if p.ID != 3 || p.Name != "Renovatie" {
		t.Errorf("decoded = %+v", p)
	}

	if auth := got.Get("Authorization"); auth != "Bearer tok" {
		t.Errorf("Authorization = %q, want %q", auth, "Bearer tok")
	}
	if ct := got.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	if _, err := uuid.Parse(got.Get("X-Request-ID")); err != nil {
		t.Errorf("X-Request-ID %q is not a valid UUID: %v", got.Get("X-Request-ID"), err)
	}
}

func TestClient_Do_Unauthenticated(t *testing.T) {
	var header string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header = r.Header.Get("Authorization")
		w.Write([]byte(`{"token": "abc"}`))
	}))
	defer server.Close()

	for name, auth := range map[string]Authenticator{"nil": nil, "empty": &mockAuth{}} {
		t.Run(name, func(t *testing.T) {
			header = "unset"
			client := NewClient(auth, testConfig(server.URL))
			var out struct {
				Token string `json:"token"`
			}
			if err := client.Post(context.Background(), "/auth/login", map[string]string{"email": "a"}, &out); err != nil {
				t.Fatalf("Post() error = %v", err)
			}
			if header != "" {
				t.Errorf("Authorization = %q, want none", header)
			}
			if out.Token != "abc" {
				t.Errorf("token = %q", out.Token)
			}
		})
	}
}

func TestClient_Do_SendsBody(t *testing.T) {
	var body map[string]any
	var method string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewClient(nil, testConfig(server.URL))
	if err := client.Put(context.Background(), "/projects/1", map[string]bool{"isActive": false}, nil); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if method != http.MethodPut {
		t.Errorf("method = %s, want PUT", method)
	}
	if v, ok := body["isActive"].(bool); !ok || v {
		t.Errorf("body = %v", body)
	}
}

func TestClient_Do_Unauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	auth := &mockAuth{token: "stale"}
	client := NewClient(auth, testConfig(server.URL))

	err := client.Get(context.Background(), "/projects", nil)
	if !errors.Is(err, domain.ErrSessionExpired) {
		t.Fatalf("Get() error = %v, want ErrSessionExpired", err)
	}
	if errors.Is(err, domain.ErrRequestFailed) || errors.Is(err, domain.ErrNetworkUnavailable) {
		t.Error("401 must not be reported as another error kind")
	}
	if len(auth.expired) != 1 || auth.expired[0] != "stale" {
		t.Errorf("Expire() calls = %v, want [stale]", auth.expired)
	}
}

func TestClient_Do_UnauthorizedWithoutCredential(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"Ongeldige inloggegevens"}`))
	}))
	defer server.Close()

	auth := &mockAuth{}
	client := NewClient(auth, testConfig(server.URL))

	err := client.Post(context.Background(), "/auth/login", map[string]string{"email": "x"}, nil)
	var rf *RequestFailedError
	if !errors.As(err, &rf) || rf.Status != http.StatusUnauthorized || rf.Message != "Ongeldige inloggegevens" {
		t.Fatalf("Post() error = %v, want RequestFailed 401", err)
	}
	if errors.Is(err, domain.ErrSessionExpired) {
		t.Error("a failed login is not a session expiry")
	}
	if len(auth.expired) != 0 {
		t.Errorf("Expire() calls = %v, want none", auth.expired)
	}
}

// recordingNavigator counts navigations to the login surface
type recordingNavigator struct {
	mu    sync.Mutex
	count int
}

func (n *recordingNavigator) ToLogin(context.Context, string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.count++
}

func TestClient_Do_UnauthorizedExpiresSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	store, err := session.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	nav := &recordingNavigator{}
	sessions := session.NewService(store, store, nav, session.Config{})

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "1"}).SignedString([]byte("k"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if err := sessions.Login(context.Background(), token); err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	client := NewClient(sessions, testConfig(server.URL))

	// several endpoints rejected at once still navigate a single time
	var wg sync.WaitGroup
	for _, path := range []string{"/projects", "/tijdregistraties/lopend", "/tijdregistraties"} {
		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			if err := client.Get(context.Background(), path, nil); !errors.Is(err, domain.ErrSessionExpired) {
				t.Errorf("Get(%s) error = %v, want ErrSessionExpired", path, err)
			}
		}(path)
	}
	wg.Wait()

	if sessions.IsAuthenticated() {
		t.Error("session still authenticated after 401")
	}
	if stored, _ := store.LoadCredential(); stored != "" {
		t.Error("credential not cleared after 401")
	}
	if _, err := store.Cookie(session.DefaultCookieName); !errors.Is(err, session.ErrCookieNotFound) {
		t.Error("cookie mirror not cleared after 401")
	}
	if nav.count != 1 {
		t.Errorf("navigations = %d, want 1", nav.count)
	}
}

func TestClient_Do_RequestFailed(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantMessage string
	}{
		{"message field", http.StatusBadRequest, `{"message": "Project name is required"}`, "Project name is required"},
		{"nested error", http.StatusConflict, `{"error": {"code": "CONFLICT", "message": "Timer already running"}}`, "Timer already running"},
		{"plain error", http.StatusNotFound, `{"error": "not found"}`, "not found"},
		{"no body", http.StatusInternalServerError, ``, "HTTP Error 500: Internal Server Error"},
		{"html body", http.StatusForbidden, `<html>nope</html>`, "HTTP Error 403: Forbidden"},
		{"blank message", http.StatusBadRequest, `{"message": "  "}`, "HTTP Error 400: Bad Request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			auth := &mockAuth{token: "tok"}
			client := NewClient(auth, testConfig(server.URL))

			err := client.Post(context.Background(), "/projects", map[string]string{}, nil)
			var rf *RequestFailedError
			if !errors.As(err, &rf) {
				t.Fatalf("Post() error = %v, want *RequestFailedError", err)
			}
			if rf.Status != tt.status {
				t.Errorf("Status = %d, want %d", rf.Status, tt.status)
			}
			if rf.Message != tt.wantMessage {
				t.Errorf("Message = %q, want %q", rf.Message, tt.wantMessage)
			}
			if !errors.Is(err, domain.ErrRequestFailed) {
				t.Error("errors.Is(err, ErrRequestFailed) = false")
			}
			if errors.Is(err, domain.ErrNetworkUnavailable) {
				t.Error("request failure reported as network failure")
			}
			if len(auth.expired) != 0 || auth.Credential() != "tok" {
				t.Error("non-401 failure touched the session")
			}
		})
	}
}

func TestClient_Do_NetworkUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	auth := &mockAuth{token: "tok"}
	client := NewClient(auth, testConfig(url))

	err := client.Get(context.Background(), "/projects", nil)
	if !errors.Is(err, domain.ErrNetworkUnavailable) {
		t.Fatalf("Get() error = %v, want ErrNetworkUnavailable", err)
	}
	if errors.Is(err, domain.ErrRequestFailed) {
		t.Error("network failure reported as request failure")
	}
	if auth.Credential() != "tok" {
		t.Error("network failure touched the session")
	}
}

func TestClient_Do_RetriesIdempotentReads(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`[{"id": 1}]`))
	}))
	defer server.Close()

	client := NewClient(nil, testConfig(server.URL))

	var projects []domain.Project
	if err := client.Get(context.Background(), "/projects", &projects); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if hits.Load() != 3 {
		t.Errorf("hits = %d, want 3", hits.Load())
	}
	if len(projects) != 1 {
		t.Errorf("projects = %+v", projects)
	}
}

func TestClient_Do_NeverRetriesWrites(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(nil, testConfig(server.URL))

	err := client.Post(context.Background(), "/tijdregistraties/start", map[string]int{"projectId": 5}, nil)
	var rf *RequestFailedError
	if !errors.As(err, &rf) || rf.Status != http.StatusBadGateway {
		t.Fatalf("Post() error = %v, want 502 RequestFailedError", err)
	}
	if hits.Load() != 1 {
		t.Errorf("hits = %d, want exactly 1", hits.Load())
	}
}

func TestClient_Do_CircuitOpensAfterTransportFailures(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		// drop the connection without a response
		hj, ok := w.(http.Hijacker)
		if !ok {
			t.Error("response writer does not support hijacking")
			return
		}
		conn, _, err := hj.Hijack()
		if err == nil {
			conn.Close()
		}
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.EnableRetry = false
	cfg.BreakerTimeout = time.Minute
	client := NewClient(nil, cfg)

	for i := 0; i < 5; i++ {
		err := client.Post(context.Background(), "/tijdregistraties/start", nil, nil)
		if !errors.Is(err, domain.ErrNetworkUnavailable) {
			t.Fatalf("call %d error = %v, want ErrNetworkUnavailable", i, err)
		}
	}
	if hits.Load() != 3 {
		t.Errorf("hits = %d, want 3 before the circuit opened", hits.Load())
	}
}

func TestClient_Do_NullBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`null`))
	}))
	defer server.Close()

	client := NewClient(nil, testConfig(server.URL))

	timer := &domain.ActiveTimer{ID: 9}
	if err := client.Get(context.Background(), "/tijdregistraties/lopend", &timer); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if timer != nil {
		t.Errorf("timer = %+v, want nil for null body", timer)
	}
}

func TestClient_Do_MalformedBaseURL(t *testing.T) {
	client := NewClient(&mockAuth{token: "tok"}, testConfig("http://bad host:5123/api"))

	for i := 0; i < 5; i++ {
		err := client.Get(context.Background(), "/tijdregistraties/lopend", nil)
		if err == nil {
			t.Fatal("Get() error = nil, want create request error")
		}
		if errors.Is(err, domain.ErrNetworkUnavailable) {
			t.Fatalf("call %d: configuration error reported as network failure: %v", i, err)
		}
	}
}

func TestClient_Do_CallerCancelled(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := NewClient(nil, testConfig(server.URL))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := client.Get(ctx, "/tijdregistraties/lopend", nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Get() error = %v, want context.Canceled", err)
	}
	if errors.Is(err, domain.ErrNetworkUnavailable) {
		t.Error("cancellation reported as network failure")
	}
}

func TestClient_Do_RetryResendsBody(t *testing.T) {
	var bodies []string
	var mu sync.Mutex
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var in map[string]string
		json.NewDecoder(r.Body).Decode(&in)
		mu.Lock()
		bodies = append(bodies, in["q"])
		n := len(bodies)
		mu.Unlock()
		if n == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewClient(nil, testConfig(server.URL))

	if err := client.Do(context.Background(), http.MethodGet, "/overview", map[string]string{"q": "week"}, nil); err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(bodies) != 2 || bodies[0] != "week" || bodies[1] != "week" {
		t.Errorf("bodies = %q, want the same body on both attempts", bodies)
	}
}
