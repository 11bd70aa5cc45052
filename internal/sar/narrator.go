// Package sar generates Suspicious Activity Report narratives through an
// external OpenAI-compatible text-generation service.
package sar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// ErrNotConfigured is returned when no narrator endpoint is configured.
var ErrNotConfigured = errors.New("sar narrator is not configured")

// sessionTTL is how long a generated narrative stays in the session cache.
const sessionTTL = time.Hour

// Narrator is the client for the external narrative service.
// Failures here never disturb screening results: the caller receives an
// error it can render as a message, nothing more.
type Narrator struct {
	cfg    domain.NarratorConfig
	client *http.Client
	cache  domain.Cache
}

// NewNarrator creates a narrator client. cache may be nil, in which case
// every request regenerates the narrative.
func NewNarrator(cfg domain.NarratorConfig, cache domain.Cache) *Narrator {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Narrator{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		cache:  cache,
	}
}

// Configured reports whether a narrator endpoint is set.
func (n *Narrator) Configured() bool {
	return n.cfg.BaseURL != ""
}

// Generate returns the SAR narrative for a customer, serving the session
// cache when possible. violations is the customer's violated rule names;
// txs are the customer's transaction records included in the prompt.
func (n *Narrator) Generate(ctx context.Context, datasetID, customerID string, violations []string, txs []domain.Transaction) (string, error) {
	if !n.Configured() {
		return "", ErrNotConfigured
	}

	cacheKey := "sar:" + datasetID + ":" + customerID
	if n.cache != nil {
		if cached, err := n.cache.Get(ctx, cacheKey); err == nil && cached != nil {
			return string(cached), nil
		}
	}

	prompt, err := buildPrompt(customerID, violations, txs)
	if err != nil {
		return "", err
	}

	narrative, err := n.complete(ctx, prompt)
	if err != nil {
		return "", err
	}

	if n.cache != nil {
		if err := n.cache.Set(ctx, cacheKey, []byte(narrative), sessionTTL); err != nil {
			slog.Warn("failed to cache sar narrative",
				"customer_id", customerID,
				"error", err,
			)
		}
	}

	return narrative, nil
}

// Invalidate drops a cached narrative, forcing regeneration.
func (n *Narrator) Invalidate(ctx context.Context, datasetID, customerID string) {
	if n.cache == nil {
		return
	}
	_ = n.cache.Delete(ctx, "sar:"+datasetID+":"+customerID)
}

// chat-completions wire types (OpenAI-compatible).
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// complete performs one synchronous chat-completions call.
func (n *Narrator) complete(ctx context.Context, prompt string) (string, error) {
	reqBody := chatRequest{
		Model: n.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: "You are a compliance officer expert in writing and generating SAR narratives."},
			{Role: "user", Content: prompt},
		},
		Temperature: n.cfg.Temperature,
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal narrator request: %w", err)
	}

	url := strings.TrimSuffix(n.cfg.BaseURL, "/") + "/v1/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build narrator request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if n.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+n.cfg.APIKey)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("narrator request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read narrator response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("narrator returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse narrator response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("narrator error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("narrator returned an empty narrative")
	}

	return parsed.Choices[0].Message.Content, nil
}

// buildPrompt assembles the SAR narrative prompt from the customer's
// violations and transaction records.
func buildPrompt(customerID string, violations []string, txs []domain.Transaction) (string, error) {
	records, err := json.MarshalIndent(txs, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal transaction records: %w", err)
	}

	var b strings.Builder
	b.WriteString("You are a compliance officer tasked with generating a Suspicious Activity Report (SAR) narrative.\n\n")
	fmt.Fprintf(&b, "Customer ID: %s\n\n", customerID)
	fmt.Fprintf(&b, "The customer has violated the following red flag rules: %s.\n\n", strings.Join(violations, ", "))
	b.WriteString("Below are the transaction details:\n\n")
	b.Write(records)
	b.WriteString("\n\nPlease generate a comprehensive SAR narrative that includes:\n")
	b.WriteString("1. A clear description of each suspicious activity and why it is considered suspicious (who conducted the activity, what types of transactions were involved).\n")
	b.WriteString("2. Specific transaction details that highlight the suspicious behavior (when the transactions occurred, where the activity took place).\n")
	b.WriteString("3. Any patterns or connections between the transactions.\n")
	b.WriteString("4. The potential implications of these activities and why they raise red flags.\n")
	b.WriteString("5. An introductory paragraph covering the financial institution, the subject of the SAR, the accounts involved, the date range, the nature of the activity, and the total amount involved.\n")
	b.WriteString("6. A conclusion paragraph indicating any follow-up planned by the institution.\n\n")
	b.WriteString("Ensure the narrative is clear, concise, suitable for submission to regulatory authorities, and compliant with the Bank Secrecy Act (BSA) and other relevant regulations.\n")

	return b.String(), nil
}
