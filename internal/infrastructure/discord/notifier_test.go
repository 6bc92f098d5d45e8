package discord

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/be-green/grab-cafe/internal/domain"
)

func samplePosting() domain.Posting {
	date := time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC)
	gpa := 3.9
	quant := 168.0
	aw := 5.5
	return domain.Posting{
		ID:           1,
		GradCafeID:   "555",
		School:       "Alpha U",
		Program:      "Economics",
		Degree:       domain.DegreePhD,
		Decision:     "Accepted",
		DateAdded:    "Jan 15, 2024",
		DecisionDate: &date,
		Season:       "Fall 2024",
		Status:       "American",
		Comment:      "Great news",
		GPA:          &gpa,
		GREQuant:     &quant,
		GREAW:        &aw,
	}
}

func TestRenderPosting(t *testing.T) {
	t.Parallel()

	message := RenderPosting(samplePosting())
	lines := strings.Split(message, "\n")

	want := []string{
		"**Alpha U**",
		"Economics (PhD)",
		"_Accepted_",
		"Fall 2024 | American | GPA: 3.9 | GRE: Q:168 AW:5.5",
		`"Great news"`,
		"Added: Jan 15, 2024",
	}
	if len(lines) != len(want) {
		t.Fatalf("expected %d lines, got %d: %q", len(want), len(lines), message)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("line %d: expected %q, got %q", i, want[i], lines[i])
		}
	}
}

func TestRenderPostingSparseFields(t *testing.T) {
	t.Parallel()

	posting := domain.Posting{
		School:    "Beta College",
		Program:   "Finance",
		Decision:  "Rejected",
		DateAdded: "Feb 1, 2024",
	}

	message := RenderPosting(posting)
	if strings.Contains(message, "GPA") || strings.Contains(message, "GRE") {
		t.Fatalf("absent numerics must not render: %q", message)
	}
	if strings.Contains(message, "()") {
		t.Fatalf("empty degree must not render parentheses: %q", message)
	}
	if !strings.HasSuffix(message, "Added: Feb 1, 2024") {
		t.Fatalf("date line must close the message: %q", message)
	}
}

func TestDeliverPostsWebhook(t *testing.T) {
	t.Parallel()

	var got struct {
		Content string `json:"content"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	notifier := NewNotifier(server.URL)
	if err := notifier.Deliver(context.Background(), samplePosting()); err != nil {
		t.Fatalf("Deliver error: %v", err)
	}
	if !strings.Contains(got.Content, "**Alpha U**") {
		t.Fatalf("webhook payload must carry the rendered posting: %q", got.Content)
	}
}

func TestDeliverReportsFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	notifier := NewNotifier(server.URL)
	err := notifier.Deliver(context.Background(), samplePosting())
	if !errors.Is(err, domain.ErrDeliveryFailed) {
		t.Fatalf("expected ErrDeliveryFailed, got %v", err)
	}
}

func TestDeliverMisconfigured(t *testing.T) {
	t.Parallel()

	notifier := NewNotifier("")
	err := notifier.Deliver(context.Background(), samplePosting())
	if !errors.Is(err, domain.ErrDeliveryFailed) {
		t.Fatalf("expected ErrDeliveryFailed, got %v", err)
	}
}
