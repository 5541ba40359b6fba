package transport

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNew_DefaultTransport(t *testing.T) {
	rt := New(Options{})
	if _, ok := rt.(*http.Transport); !ok {
		t.Errorf("New() = %T, want *http.Transport", rt)
	}
}

func TestNew_ChromeTransport(t *testing.T) {
	rt := New(Options{ChromeTLS: true, DialTimeout: time.Second})
	if _, ok := rt.(*chromeTransport); !ok {
		t.Errorf("New() = %T, want *chromeTransport", rt)
	}
}

func TestChromeTransport_PlainHTTPUsesHTTP1(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, r.Proto)
	}))
	defer srv.Close()

	client := &http.Client{Transport: NewChromeTransport(time.Second)}
	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET error: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if string(body) != "HTTP/1.1" {
		t.Errorf("proto = %s, want HTTP/1.1", body)
	}
}
