package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/be-green/grab-cafe/internal/domain"
	"github.com/be-green/grab-cafe/internal/ports"
)

// Notifier posts admissions results to a Discord channel via webhook.
type Notifier struct {
	webhookURL string
	client     *http.Client
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier registers the webhook endpoint.
func NewNotifier(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// Deliver renders the posting and sends it as one webhook message.
func (n *Notifier) Deliver(ctx context.Context, posting domain.Posting) error {
	if n.webhookURL == "" {
		return fmt.Errorf("%w: discord notifier misconfigured", domain.ErrDeliveryFailed)
	}

	body, err := json.Marshal(map[string]string{
		"content": RenderPosting(posting),
	})
	if err != nil {
		return fmt.Errorf("%w: marshal payload: %w", domain.ErrDeliveryFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: new request: %w", domain.ErrDeliveryFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: do request: %w", domain.ErrDeliveryFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("%w: discord returned %s", domain.ErrDeliveryFailed, resp.Status)
	}

	return nil
}

// RenderPosting formats one posting as a Discord message: school in
// bold, program with degree, decision in italics, a detail line, the
// quoted comment and the listing date.
func RenderPosting(posting domain.Posting) string {
	var lines []string

	lines = append(lines, fmt.Sprintf("**%s**", posting.School))

	programLine := posting.Program
	if posting.Degree != "" {
		programLine += fmt.Sprintf(" (%s)", posting.Degree)
	}
	lines = append(lines, programLine)

	lines = append(lines, fmt.Sprintf("_%s_", posting.Decision))

	var details []string
	if posting.Season != "" {
		details = append(details, posting.Season)
	}
	if posting.Status != "" {
		details = append(details, posting.Status)
	}
	if posting.GPA != nil {
		details = append(details, fmt.Sprintf("GPA: %s", formatScore(*posting.GPA)))
	}

	var greParts []string
	if posting.GREQuant != nil {
		greParts = append(greParts, fmt.Sprintf("Q:%s", formatScore(*posting.GREQuant)))
	}
	if posting.GREVerbal != nil {
		greParts = append(greParts, fmt.Sprintf("V:%s", formatScore(*posting.GREVerbal)))
	}
	if posting.GREAW != nil {
		greParts = append(greParts, fmt.Sprintf("AW:%s", formatScore(*posting.GREAW)))
	}
	if len(greParts) > 0 {
		details = append(details, fmt.Sprintf("GRE: %s", strings.Join(greParts, " ")))
	}

	if len(details) > 0 {
		lines = append(lines, strings.Join(details, " | "))
	}

	if posting.Comment != "" {
		lines = append(lines, fmt.Sprintf("%q", posting.Comment))
	}

	lines = append(lines, fmt.Sprintf("Added: %s", posting.DateAdded))

	return strings.Join(lines, "\n")
}

// formatScore trims trailing zeros so whole-number scores print as
// integers (168, not 168.00) while GPAs keep their decimals.
func formatScore(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
