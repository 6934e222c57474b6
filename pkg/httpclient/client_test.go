package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"
)

// redirectChain redirects /hop/N to /hop/N-1 until /hop/0, which answers 200.
func redirectChain() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n, err := strconv.Atoi(strings.TrimPrefix(r.URL.Path, "/hop/"))
		if err != nil {
			http.NotFound(w, r)
			return
		}
		if n > 0 {
			http.Redirect(w, r, "/hop/"+strconv.Itoa(n-1), http.StatusFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
}

func TestClient_Redirects(t *testing.T) {
	ts := redirectChain()
	defer ts.Close()

	tests := []struct {
		name         string
		maxRedirects int
		hops         int
		wantStatus   int
		wantErr      bool
	}{
		{name: "within limit", maxRedirects: 3, hops: 2, wantStatus: http.StatusOK},
		{name: "at limit", maxRedirects: 2, hops: 2, wantStatus: http.StatusOK},
		{name: "over limit", maxRedirects: 1, hops: 2, wantErr: true},
		{name: "zero refuses any hop", maxRedirects: 0, hops: 1, wantErr: true},
		{name: "negative returns the redirect", maxRedirects: -1, hops: 2, wantStatus: http.StatusFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(Config{MaxRedirects: tt.maxRedirects})
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			req, _ := http.NewRequest(http.MethodGet, ts.URL+"/hop/"+strconv.Itoa(tt.hops), nil)
			resp, err := client.Do(context.Background(), req)
			if tt.wantErr {
				if err == nil {
					resp.Body.Close()
					t.Fatal("expected redirect limit error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("expected %d, got %d", tt.wantStatus, resp.StatusCode)
			}
		})
	}
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer ts.Close()
	defer close(release)

	client, err := New(Config{Timeout: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	req, _ := http.NewRequest(http.MethodGet, ts.URL, nil)
	if _, err := client.Do(context.Background(), req); err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestClient_ContextCancel(t *testing.T) {
	client, _ := New(Config{})

	req, _ := http.NewRequest(http.MethodGet, "http://example.com", nil)
	if _, err := client.Do(nil, req); err == nil || err.Error() != "httpclient: context cannot be nil" {
		t.Errorf("expected nil context error, got %v", err)
	}

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req2, _ := http.NewRequest(http.MethodGet, ts.URL, nil)
	_, err := client.Do(ctx, req2)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestClient_CookieJarCarriesSessionCookie(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/search":
			http.SetCookie(w, &http.Cookie{Name: "NID", Value: "abc", Path: "/"})
		case "/next":
			if c, err := r.Cookie("NID"); err != nil || c.Value != "abc" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	for _, jar := range []bool{true, false} {
		client, err := New(Config{UseCookieJar: jar})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		for _, path := range []string{"/search", "/next"} {
			req, _ := http.NewRequest(http.MethodGet, ts.URL+path, nil)
			resp, err := client.Do(context.Background(), req)
			if err != nil {
				t.Fatalf("%s: unexpected error: %v", path, err)
			}
			resp.Body.Close()
			if path != "/next" {
				continue
			}
			want := http.StatusUnauthorized
			if jar {
				want = http.StatusOK
			}
			if resp.StatusCode != want {
				t.Errorf("jar=%v: expected %d from /next, got %d", jar, want, resp.StatusCode)
			}
		}
	}
}

func TestClient_DefaultHeadersAndCookies(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Accept"); got != "*/*" {
			t.Errorf("expected default Accept header, got %q", got)
		}
		if got := r.Header.Get("User-Agent"); got != "explicit/1.0" {
			t.Errorf("expected request header to win over defaults, got %q", got)
		}
		if c, err := r.Cookie("CONSENT"); err != nil || c.Value != "PENDING+987" {
			t.Errorf("expected CONSENT cookie, got %v (%v)", c, err)
		}
		if c, err := r.Cookie("SOCS"); err != nil || c.Value != "override" {
			t.Errorf("expected request cookie to win over default, got %v (%v)", c, err)
		}
		if len(r.Cookies()) != 2 {
			t.Errorf("expected 2 cookies, got %d", len(r.Cookies()))
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	headers := http.Header{}
	headers.Set("Accept", "*/*")
	headers.Set("User-Agent", "default/1.0")

	client, err := New(Config{
		Headers: headers,
		Cookies: []*http.Cookie{
			{Name: "CONSENT", Value: "PENDING+987"},
			{Name: "SOCS", Value: "CAESHAgBEhIaAB"},
		},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	// Later changes to the caller's header map must not leak into the client.
	headers.Set("Accept", "text/html")

	req, _ := http.NewRequest(http.MethodGet, ts.URL, nil)
	req.Header.Set("User-Agent", "explicit/1.0")
	req.AddCookie(&http.Cookie{Name: "SOCS", Value: "override"})
	resp, err := client.Do(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()

	if req.Header.Get("Cookie") != "SOCS=override" {
		t.Errorf("Do must not mutate the caller's request, got Cookie %q", req.Header.Get("Cookie"))
	}
}
