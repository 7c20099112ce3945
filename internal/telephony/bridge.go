package telephony

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"
)

// Bridge is the provider-agnostic voice adapter contract.
//
// Rules:
//   - No provider SDK calls outside telephony adapters.
//   - No business logic here: every provider event is forwarded unmodified on
//     the Events channel, and routing/disposition decisions live elsewhere.
type Bridge interface {
	Name() string

	// IssueCredential mints a short-lived media-session token for one operator
	// identity. Fails with ErrAuthFailure when the identity cannot be resolved.
	IssueCredential(ctx context.Context, identity string) (Credential, error)

	// PlaceOutboundCall establishes a media session toward destination, which
	// must be a dialable phone number or a named client endpoint.
	PlaceOutboundCall(ctx context.Context, destination string) (SessionHandle, error)

	// Events delivers provider lifecycle events, ordered per session handle.
	Events() <-chan CallEvent
}

// ErrAuthFailure means the operator identity could not be resolved.
// It is one of the few hard errors surfaced to the caller.
var ErrAuthFailure = errors.New("telephony: identity could not be resolved")

// ErrInvalidDestination means the dial target is neither a phone number nor a
// named client endpoint.
var ErrInvalidDestination = errors.New("telephony: invalid destination")

// Credential is a short-lived, identity-scoped media token.
type Credential struct {
	Identity  string    `json:"identity"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

const clientPrefix = "client:"

// Permissive on purpose: providers vary in how they format numbers, so we
// accept digits plus common separators and reject everything else.
var phonePattern = regexp.MustCompile(`^\+?[0-9][0-9\-\(\)\. ]{2,19}$`)

// ValidDestination reports whether destination resolves to a dialable phone
// number or a named client endpoint.
func ValidDestination(destination string) bool {
	d := strings.TrimSpace(destination)
	if d == "" {
		return false
	}
	if strings.HasPrefix(d, clientPrefix) {
		return strings.TrimSpace(strings.TrimPrefix(d, clientPrefix)) != ""
	}
	return phonePattern.MatchString(d)
}

// IsClientEndpoint reports whether destination names a registered client
// rather than a PSTN number.
func IsClientEndpoint(destination string) bool {
	return strings.HasPrefix(strings.TrimSpace(destination), clientPrefix)
}

// ClientName extracts the endpoint name from a client destination.
func ClientName(destination string) string {
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(destination), clientPrefix))
}

// RedactIdentity masks an identity for audit logs. Token issuance is logged,
// but the raw identity must never appear in log output.
func RedactIdentity(identity string) string {
	id := strings.TrimSpace(identity)
	if len(id) <= 3 {
		return "***"
	}
	return id[:3] + strings.Repeat("*", len(id)-3)
}
