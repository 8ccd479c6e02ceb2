package httputil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNewClientTimeout(t *testing.T) {
	c := NewClient(5 * time.Second)
	if c.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", c.Timeout)
	}
	if c.Transport != sharedTransport {
		t.Error("client should use the shared transport")
	}

	fallback := NewClient(0)
	if fallback.Timeout != 30*time.Second {
		t.Errorf("default Timeout = %v, want 30s", fallback.Timeout)
	}
}

func TestReadResponseBodyLimit(t *testing.T) {
	big := strings.Repeat("x", 100)
	body, err := ReadResponseBody(strings.NewReader(big), 10)
	if err != nil {
		t.Fatalf("ReadResponseBody: %v", err)
	}
	if len(body) != 10 {
		t.Errorf("read %d bytes, want 10", len(body))
	}

	body, err = ReadResponseBody(strings.NewReader("short"), 0)
	if err != nil {
		t.Fatalf("ReadResponseBody with default limit: %v", err)
	}
	if string(body) != "short" {
		t.Errorf("body = %q, want %q", body, "short")
	}
}

func TestDrainAndClose(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("payload"))
	}))
	defer server.Close()

	client := NewClient(time.Second)
	for i := 0; i < 5; i++ {
		resp, err := client.Get(server.URL)
		if err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
		DrainAndClose(resp.Body)
	}
	DrainAndClose(nil) // must not panic
}
