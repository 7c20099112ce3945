package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/lshmam/neucler-inbox-sub002/internal/config"
	"github.com/lshmam/neucler-inbox-sub002/pkg/utils"
)

// instruction is the fixed system prompt sent with every request. The service
// must answer with a single strict-JSON object; anything else degrades.
const instruction = `You classify one inbound customer message for a business operations console.
Respond with a single JSON object and nothing else:
{"intent":"sales_opportunity"|"support_issue"|"simple_inquiry"|"unclassifiable","confidence":0.0-1.0,"auto_reply":"optional reply text for simple inquiries"}
Pick sales_opportunity for buying interest, support_issue for problems or complaints,
simple_inquiry for questions answerable from general business facts, unclassifiable otherwise.`

// Classifier calls a hosted chat-completion style service and maps the reply
// to a fixed intent set.
//
// Failure policy: every failure path returns a degraded Result. Classify
// never returns an error and never panics across the component boundary.
type Classifier struct {
	cfg    config.ClassifierConfig
	log    *slog.Logger
	client *http.Client
	rdb    *redis.Client

	// wrapperMarkers are the known response-wrapper prefixes stripped before
	// parsing. Best-effort normalization, not a protocol: the set is
	// configuration, and unknown wrappers simply degrade.
	wrapperMarkers []string
}

type Option func(*Classifier)

// WithRedis enables the per-workspace concurrency cap.
func WithRedis(rdb *redis.Client) Option {
	return func(c *Classifier) { c.rdb = rdb }
}

func WithHTTPClient(client *http.Client) Option {
	return func(c *Classifier) { c.client = client }
}

func WithWrapperMarkers(markers []string) Option {
	return func(c *Classifier) { c.wrapperMarkers = markers }
}

func New(cfg config.ClassifierConfig, log *slog.Logger, opts ...Option) *Classifier {
	c := &Classifier{
		cfg:            cfg,
		log:            log,
		client:         &http.Client{},
		wrapperMarkers: []string{"```json", "```"},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	return c
}

// Classify maps rawText to a Result. Text below the configured minimum length
// is rejected locally, synchronously, without an external call; that guard is
// about cost and latency, not correctness.
func (c *Classifier) Classify(ctx context.Context, workspaceID, rawText string) Result {
	text := strings.TrimSpace(rawText)
	if len([]rune(text)) < c.cfg.MinTextChars {
		return Degraded()
	}

	if c.rdb != nil && c.cfg.MaxConcurrent > 0 {
		key := "classify:inflight:" + workspaceID
		ok, err := utils.AcquireConcurrencyCap(ctx, c.rdb, key, c.cfg.MaxConcurrent, c.cfg.Timeout*2)
		if err != nil || !ok {
			if err != nil {
				c.log.Warn("classifier concurrency cap unavailable", "err", err)
			}
			return Degraded()
		}
		defer func() {
			if err := utils.ReleaseConcurrencyCap(context.WithoutCancel(ctx), c.rdb, key); err != nil {
				c.log.Warn("classifier cap release failed", "err", err)
			}
		}()
	}

	body, err := c.call(ctx, truncate(text, c.cfg.MaxPromptChars))
	if err != nil {
		c.log.Warn("classification degraded", "workspace_id", workspaceID, "err", err)
		return Degraded()
	}

	res, err := c.parse(body)
	if err != nil {
		c.log.Warn("classification response unparseable", "workspace_id", workspaceID, "err", err)
		return Degraded()
	}
	return res
}

// truncate hard-caps the text copied into the request, independent of the
// source length, to bound request cost.
func truncate(s string, maxChars int) string {
	r := []rune(s)
	if len(r) <= maxChars {
		return s
	}
	return string(r[:maxChars])
}

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
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *Classifier) call(ctx context.Context, text string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	payload, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: instruction},
			{Role: "user", Content: text},
		},
	})
	if err != nil {
		return "", fmt.Errorf("classify: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(c.cfg.BaseURL, "/")+"/v1/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("classify: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("classify: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("classify: service returned status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("classify: read response: %w", err)
	}

	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("classify: decode envelope: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("classify: empty completion")
	}
	return out.Choices[0].Message.Content, nil
}

// serviceResult is the strict-JSON shape the service is instructed to return.
type serviceResult struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
	AutoReply  string  `json:"auto_reply"`
}

func (c *Classifier) parse(body string) (Result, error) {
	cleaned := StripWrappers(body, c.wrapperMarkers)

	var sr serviceResult
	if err := json.Unmarshal([]byte(cleaned), &sr); err != nil {
		return Result{}, fmt.Errorf("classify: parse result JSON: %w", err)
	}

	intent := Intent(sr.Intent)
	if !ValidIntent(intent) {
		return Result{}, fmt.Errorf("classify: unknown intent %q", sr.Intent)
	}

	conf := sr.Confidence
	if conf < 0 {
		conf = 0
	}
	if conf > 1 {
		conf = 1
	}

	res := Result{Intent: intent, Confidence: conf}
	if intent == IntentSimpleInquiry {
		res.AutoReply = strings.TrimSpace(sr.AutoReply)
	}
	return res, nil
}

// StripWrappers removes known fenced/prefixed wrapper markers so that a
// fence-wrapped response and raw JSON parse identically.
func StripWrappers(s string, markers []string) string {
	out := strings.TrimSpace(s)
	for _, m := range markers {
		out = strings.TrimPrefix(out, m)
	}
	out = strings.TrimSuffix(out, "```")
	return strings.TrimSpace(out)
}
