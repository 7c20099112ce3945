package telephony

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/lshmam/neucler-inbox-sub002/internal/config"
)

// TwilioBridge implements Bridge against a Twilio-style voice provider.
//
// Credential issuance is local: the capability token is a JWT signed with the
// API key secret, scoped to one identity and one application endpoint, exactly
// as the provider's client SDKs expect. Outbound calls go through the
// provider's REST API.
type TwilioBridge struct {
	cfg    config.TelephonyConfig
	log    *slog.Logger
	clock  func() time.Time
	client *http.Client

	// BaseURL is overridable for tests; defaults to the provider API.
	baseURL string

	events chan CallEvent
}

const defaultTwilioBaseURL = "https://api.twilio.com"

// Event channel sizing: webhook ingestion blocks once the consumer falls this
// far behind, preserving per-session arrival order.
const eventBuffer = 64

type TwilioOption func(*TwilioBridge)

func WithBaseURL(u string) TwilioOption {
	return func(b *TwilioBridge) { b.baseURL = u }
}

func WithClock(now func() time.Time) TwilioOption {
	return func(b *TwilioBridge) { b.clock = now }
}

func WithHTTPClient(c *http.Client) TwilioOption {
	return func(b *TwilioBridge) { b.client = c }
}

func NewTwilioBridge(cfg config.TelephonyConfig, log *slog.Logger, opts ...TwilioOption) *TwilioBridge {
	b := &TwilioBridge{
		cfg:     cfg,
		log:     log,
		clock:   time.Now,
		client:  &http.Client{Timeout: 10 * time.Second},
		baseURL: defaultTwilioBaseURL,
		events:  make(chan CallEvent, eventBuffer),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.log == nil {
		b.log = slog.Default()
	}
	return b
}

func (b *TwilioBridge) Name() string { return "twilio" }

// capabilityClaims is the provider's access-token claim shape.
type capabilityClaims struct {
	jwt.RegisteredClaims

	Grants capabilityGrants `json:"grants"`
}

type capabilityGrants struct {
	Identity string     `json:"identity"`
	Voice    voiceGrant `json:"voice"`
}

type voiceGrant struct {
	Incoming incomingGrant `json:"incoming"`
	Outgoing outgoingGrant `json:"outgoing"`
}

type incomingGrant struct {
	Allow bool `json:"allow"`
}

type outgoingGrant struct {
	ApplicationSID string `json:"application_sid"`
}

func (b *TwilioBridge) IssueCredential(ctx context.Context, identity string) (Credential, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return Credential{}, ErrAuthFailure
	}

	now := b.clock().UTC()
	exp := now.Add(b.cfg.CredentialTTL)

	claims := capabilityClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    b.cfg.APIKeySID,
			Subject:   b.cfg.AccountSID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
		Grants: capabilityGrants{
			Identity: identity,
			Voice: voiceGrant{
				Incoming: incomingGrant{Allow: true},
				Outgoing: outgoingGrant{ApplicationSID: b.cfg.AppEndpoint},
			},
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString([]byte(b.cfg.APIKeySecret))
	if err != nil {
		return Credential{}, fmt.Errorf("telephony: sign capability token: %w", err)
	}

	// Audit trail for token issuance; identity is redacted.
	b.log.InfoContext(ctx, "voice credential issued",
		"identity", RedactIdentity(identity),
		"expires_at", exp,
	)

	return Credential{Identity: identity, Token: signed, ExpiresAt: exp}, nil
}

func (b *TwilioBridge) PlaceOutboundCall(ctx context.Context, destination string) (SessionHandle, error) {
	if !ValidDestination(destination) {
		return SessionHandle{}, fmt.Errorf("%w: %q", ErrInvalidDestination, destination)
	}

	form := url.Values{}
	form.Set("To", destination)
	form.Set("ApplicationSid", b.cfg.AppEndpoint)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Calls.json", b.baseURL, b.cfg.AccountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return SessionHandle{}, fmt.Errorf("telephony: build call request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(b.cfg.APIKeySID, b.cfg.APIKeySecret)

	resp, err := b.client.Do(req)
	if err != nil {
		return SessionHandle{}, fmt.Errorf("telephony: place call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return SessionHandle{}, fmt.Errorf("telephony: provider returned status %d", resp.StatusCode)
	}

	// The provider's call SID keys every later status callback; the session
	// id must be exactly this value.
	var created struct {
		Sid string `json:"sid"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&created); err != nil {
		return SessionHandle{}, fmt.Errorf("telephony: decode call response: %w", err)
	}
	if created.Sid == "" {
		return SessionHandle{}, fmt.Errorf("telephony: provider response missing call sid")
	}

	h := SessionHandle{
		ID:          created.Sid,
		Direction:   DirectionOutbound,
		Destination: destination,
	}
	b.log.InfoContext(ctx, "outbound call placed", "session_id", h.ID)
	return h, nil
}

// SendMessage delivers one outbound text from the configured messaging number.
// Used by the auto-reply sink.
func (b *TwilioBridge) SendMessage(ctx context.Context, to, body string) error {
	if b.cfg.MessagingFrom == "" {
		return fmt.Errorf("telephony: messaging number not configured")
	}
	if !ValidDestination(to) {
		return fmt.Errorf("%w: %q", ErrInvalidDestination, to)
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", b.cfg.MessagingFrom)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", b.baseURL, b.cfg.AccountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("telephony: build message request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(b.cfg.APIKeySID, b.cfg.APIKeySecret)

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("telephony: send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telephony: provider returned status %d", resp.StatusCode)
	}
	return nil
}

func (b *TwilioBridge) Events() <-chan CallEvent { return b.events }

// Ingest forwards one provider event to the stream. Called by the webhook
// handler; blocks when the consumer is more than eventBuffer events behind so
// that per-session ordering holds.
func (b *TwilioBridge) Ingest(ev CallEvent) {
	b.events <- ev
}

// Close releases the event stream. No Ingest may follow.
func (b *TwilioBridge) Close() { close(b.events) }
