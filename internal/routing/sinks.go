package routing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// handoffPayload is the JSON body delivered to downstream webhook sinks.
type handoffPayload struct {
	WorkspaceID string  `json:"workspace_id"`
	Contact     Contact `json:"contact"`
	Message     string  `json:"message"`
	Kind        string  `json:"kind"`
}

// WebhookSink delivers handoffs to a downstream system over HTTP. The same
// type backs both the pipeline (CRM) and support (helpdesk) destinations;
// only the URL differs.
type WebhookSink struct {
	URL    string
	Client *http.Client
}

func NewWebhookSink(url string) *WebhookSink {
	return &WebhookSink{
		URL:    url,
		Client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *WebhookSink) AddOpportunity(ctx context.Context, workspaceID string, contact Contact, note string) error {
	return s.post(ctx, handoffPayload{WorkspaceID: workspaceID, Contact: contact, Message: note, Kind: "opportunity"})
}

func (s *WebhookSink) OpenTicket(ctx context.Context, workspaceID string, contact Contact, message string) error {
	return s.post(ctx, handoffPayload{WorkspaceID: workspaceID, Contact: contact, Message: message, Kind: "ticket"})
}

func (s *WebhookSink) post(ctx context.Context, p handoffPayload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("routing: encode handoff: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("routing: build handoff request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("routing: deliver handoff: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("routing: downstream returned status %d", resp.StatusCode)
	}
	return nil
}

// MessageSender sends one outbound text. Implemented by the telephony bridge.
type MessageSender interface {
	SendMessage(ctx context.Context, to, body string) error
}

// SMSReply delivers auto-replies back to the contact's phone number.
type SMSReply struct {
	Sender MessageSender
}

func (s SMSReply) SendReply(ctx context.Context, workspaceID string, contact Contact, text string) error {
	if contact.Phone == "" {
		return fmt.Errorf("routing: contact has no phone number for reply")
	}
	return s.Sender.SendMessage(ctx, contact.Phone, text)
}
