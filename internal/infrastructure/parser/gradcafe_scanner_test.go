package parser

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/be-green/grab-cafe/internal/domain"
)

func TestBuildPageURL(t *testing.T) {
	t.Parallel()

	base := "https://www.example.org/survey/?institution=&program=economics"

	first, err := buildPageURL(base, 1)
	if err != nil {
		t.Fatalf("buildPageURL returned error: %v", err)
	}
	if first != base {
		t.Fatalf("page 1 must be the bare listing url, got %s", first)
	}

	third, err := buildPageURL(base, 3)
	if err != nil {
		t.Fatalf("buildPageURL returned error: %v", err)
	}

	parsed, err := url.Parse(third)
	if err != nil {
		t.Fatalf("parse result: %v", err)
	}
	if parsed.Query().Get("page") != "3" {
		t.Fatalf("expected page=3, got %s", parsed.Query().Get("page"))
	}
	if parsed.Query().Get("program") != "economics" {
		t.Fatalf("filter parameters must survive, got %s", parsed.RawQuery)
	}
}

func TestFetchPage(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`
		<table><tbody>
		  <tr>
		    <td>Alpha U</td><td>Economics PhD</td><td>Jan 15, 2024</td><td>Accepted</td>
		    <td><a href="/result/555/">link</a></td>
		  </tr>
		</tbody></table>`))
	}))
	defer server.Close()

	sc := NewGradCafeScanner(server.Client(), server.URL, "", nil)

	candidates, err := sc.FetchPage(context.Background(), 1)
	if err != nil {
		t.Fatalf("FetchPage error: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}
	if candidates[0].GradCafeID != "555" {
		t.Fatalf("unexpected id: %s", candidates[0].GradCafeID)
	}
}

func TestFetchPageNonSuccessStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer server.Close()

	sc := NewGradCafeScanner(server.Client(), server.URL, "", nil)

	_, err := sc.FetchPage(context.Background(), 1)
	if err == nil {
		t.Fatal("expected an error")
	}
	if !errors.Is(err, domain.ErrFetchFailed) {
		t.Fatalf("expected ErrFetchFailed, got %v", err)
	}
}

func TestFetchPageTransportFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	sc := NewGradCafeScanner(nil, server.URL, "", nil)

	_, err := sc.FetchPage(context.Background(), 1)
	if !errors.Is(err, domain.ErrFetchFailed) {
		t.Fatalf("expected ErrFetchFailed, got %v", err)
	}
}
