package signal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"contrabot/internal/domain"
	"contrabot/internal/util"
)

// Extractor produces a trade signal from a post. A (nil, nil) return means
// the post contains no actionable signal.
type Extractor interface {
	Extract(ctx context.Context, post *domain.Post) (*domain.TradeSignal, error)
}

const (
	anthropicEndpoint = "https://api.anthropic.com/v1/messages"
	anthropicVersion  = "2023-06-01"

	maxResponseTokens = 512
	maxBodyChars      = 4000

	llmMaxAttempts = 3
	llmBaseDelay   = 2 * time.Second
)

const systemPrompt = `You are a financial signal extraction AI. Your job is to read a Reddit post and decide
whether it contains a clear, actionable trade signal.

Respond ONLY with valid JSON — no markdown fences, no extra text.

Schema:
{
  "ticker":        "<symbol>",         // e.g. "AAPL", "BTC", "GME"
  "asset_type":    "stock"|"crypto"|"option",
  "direction":     "long"|"short",     // what the POST AUTHOR is doing
  "confidence":    0.0-1.0,            // how confident you are this is a real signal
  "reasoning":     "<brief explanation>",
  "option_details": {                  // ONLY when asset_type is "option", else null
    "expiry":         "YYYY-MM-DD",
    "strike":         0.0,
    "contract_type":  "call"|"put"
  }
}

Rules:
1. "direction" = what the POST AUTHOR is doing, NOT your recommendation.
   long/buy/bull/calls → "long".   short/put/bear/sell → "short".
2. confidence thresholds:
   - 0.9+  : post explicitly states a position with a specific ticker
   - 0.7-0.9: strong implication of a directional trade with clear ticker
   - 0.5-0.7: ticker present but direction or intent is ambiguous
   - <0.5  : meme, vague, no ticker, or unrelated
3. Use the most widely-accepted ticker symbol (e.g. "BTC" not "BITCOIN").
4. For stocks, use the exchange ticker (e.g. "NVDA" not "NVIDIA").
5. If multiple tickers are mentioned, pick the PRIMARY one the author is trading.
6. If you cannot identify a real trade signal, set confidence to 0.0 and
   ticker to "UNKNOWN".
7. Never invent a ticker that is not in the post.`

// AnthropicExtractor calls the Anthropic Messages API.
type AnthropicExtractor struct {
	apiKey      string
	model       string
	endpoint    string
	client      *http.Client
	maxAttempts int
	baseDelay   time.Duration
	log         *slog.Logger
}

var _ Extractor = (*AnthropicExtractor)(nil)

// NewAnthropicExtractor creates an extractor using the given model.
func NewAnthropicExtractor(apiKey, model string) *AnthropicExtractor {
	return &AnthropicExtractor{
		apiKey:      apiKey,
		model:       model,
		endpoint:    anthropicEndpoint,
		client:      &http.Client{Timeout: 60 * time.Second},
		maxAttempts: llmMaxAttempts,
		baseDelay:   llmBaseDelay,
		log:         slog.Default().With("component", "signal"),
	}
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Extract sends the post to the model and parses the JSON reply. Rate
// limits and server errors are retried with backoff; any other API error
// fails immediately.
func (e *AnthropicExtractor) Extract(ctx context.Context, post *domain.Post) (*domain.TradeSignal, error) {
	body := post.Body
	if len(body) > maxBodyChars {
		body = body[:maxBodyChars]
	}
	userContent := fmt.Sprintf("Subreddit: r/%s\nTitle: %s\n\nBody:\n%s", post.Subreddit, post.Title, body)

	payload, err := json.Marshal(messagesRequest{
		Model:     e.model,
		MaxTokens: maxResponseTokens,
		System:    systemPrompt,
		Messages:  []message{{Role: "user", Content: userContent}},
	})
	if err != nil {
		return nil, err
	}

	var raw string
	err = util.Retry(ctx, e.maxAttempts, e.baseDelay, func() error {
		text, err := e.call(ctx, payload)
		if err != nil {
			return err
		}
		raw = text
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("extracting signal for post %s: %w", post.ID, err)
	}

	return e.parseResponse(raw, post.ID), nil
}

func (e *AnthropicExtractor) call(ctx context.Context, payload []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", e.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := e.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		e.log.Warn("llm api error, will retry", "status", resp.StatusCode)
		return "", fmt.Errorf("llm api status %d", resp.StatusCode)
	default:
		return "", util.Permanent(fmt.Errorf("llm api status %d: %s", resp.StatusCode, truncate(string(data), 200)))
	}

	var mr messagesResponse
	if err := json.Unmarshal(data, &mr); err != nil {
		return "", fmt.Errorf("decoding llm response: %w", err)
	}
	for _, block := range mr.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", util.Permanent(fmt.Errorf("llm response has no text content"))
}

type optionDetailsJSON struct {
	Expiry       string  `json:"expiry"`
	Strike       float64 `json:"strike"`
	ContractType string  `json:"contract_type"`
}

type signalJSON struct {
	Ticker        string             `json:"ticker"`
	AssetType     string             `json:"asset_type"`
	Direction     string             `json:"direction"`
	Confidence    float64            `json:"confidence"`
	Reasoning     string             `json:"reasoning"`
	OptionDetails *optionDetailsJSON `json:"option_details"`
}

// parseResponse turns the model's JSON reply into a signal, clamping and
// defaulting malformed fields. Unparseable replies and UNKNOWN tickers
// yield nil.
func (e *AnthropicExtractor) parseResponse(raw, postID string) *domain.TradeSignal {
	var data signalJSON
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &data); err != nil {
		e.log.Warn("could not parse llm reply", "err", err, "raw", truncate(raw, 200))
		return nil
	}

	ticker := strings.ToUpper(strings.TrimSpace(data.Ticker))
	switch ticker {
	case "", "UNKNOWN", "N/A", "NULL":
		return nil
	}

	class := domain.AssetClass(strings.ToLower(data.AssetType))
	switch class {
	case domain.AssetStock, domain.AssetCrypto, domain.AssetOption:
	default:
		class = domain.AssetStock
	}

	dir := domain.Direction(strings.ToLower(data.Direction))
	if dir != domain.DirectionLong && dir != domain.DirectionShort {
		dir = domain.DirectionLong
	}

	confidence := data.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	var leg *domain.OptionLeg
	if class == domain.AssetOption && data.OptionDetails != nil {
		ct := domain.ContractType(strings.ToLower(data.OptionDetails.ContractType))
		if ct != domain.ContractCall && ct != domain.ContractPut {
			ct = domain.ContractCall
		}
		leg = &domain.OptionLeg{
			Expiry:       data.OptionDetails.Expiry,
			Strike:       data.OptionDetails.Strike,
			ContractType: ct,
		}
	}

	return &domain.TradeSignal{
		PostID:       postID,
		Ticker:       ticker,
		AssetClass:   class,
		Direction:    dir,
		RawDirection: dir,
		Confidence:   confidence,
		Reasoning:    data.Reasoning,
		Option:       leg,
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
