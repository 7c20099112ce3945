package telephony

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lshmam/neucler-inbox-sub002/internal/config"
)

func testTelephonyConfig() config.TelephonyConfig {
	return config.TelephonyConfig{
		AccountSID:    "AC000",
		APIKeySID:     "SK000",
		APIKeySecret:  "sekrit",
		AppEndpoint:   "AP000",
		CredentialTTL: time.Hour,
	}
}

func TestIssueCredential_SignsScopedToken(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	b := NewTwilioBridge(testTelephonyConfig(), slog.Default(), WithClock(func() time.Time { return now }))

	cred, err := b.IssueCredential(context.Background(), "operator-1")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if cred.Identity != "operator-1" {
		t.Fatalf("expected identity operator-1, got %q", cred.Identity)
	}
	if !cred.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Fatalf("expected expiry %s, got %s", now.Add(time.Hour), cred.ExpiresAt)
	}

	var claims capabilityClaims
	_, err = jwt.ParseWithClaims(cred.Token, &claims, func(token *jwt.Token) (any, error) {
		return []byte("sekrit"), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("token did not verify: %v", err)
	}
	if claims.Issuer != "SK000" || claims.Subject != "AC000" {
		t.Fatalf("unexpected issuer/subject: %q / %q", claims.Issuer, claims.Subject)
	}
	if claims.Grants.Identity != "operator-1" {
		t.Fatalf("expected grant identity operator-1, got %q", claims.Grants.Identity)
	}
	if !claims.Grants.Voice.Incoming.Allow {
		t.Fatalf("expected incoming allow")
	}
	if claims.Grants.Voice.Outgoing.ApplicationSID != "AP000" {
		t.Fatalf("expected outgoing app AP000, got %q", claims.Grants.Voice.Outgoing.ApplicationSID)
	}
}

func TestIssueCredential_EmptyIdentityIsAuthFailure(t *testing.T) {
	b := NewTwilioBridge(testTelephonyConfig(), slog.Default())
	_, err := b.IssueCredential(context.Background(), "   ")
	if !errors.Is(err, ErrAuthFailure) {
		t.Fatalf("expected ErrAuthFailure, got %v", err)
	}
}

func TestPlaceOutboundCall_PostsToProvider(t *testing.T) {
	var gotTo, gotApp string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if !strings.Contains(r.URL.Path, "/Accounts/AC000/Calls.json") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = r.ParseForm()
		gotTo = r.PostFormValue("To")
		gotApp = r.PostFormValue("ApplicationSid")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"CA12345"}`))
	}))
	defer srv.Close()

	b := NewTwilioBridge(testTelephonyConfig(), slog.Default(), WithBaseURL(srv.URL))
	h, err := b.PlaceOutboundCall(context.Background(), "+15551234567")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if h.ID != "CA12345" || h.Direction != DirectionOutbound || h.Destination != "+15551234567" {
		t.Fatalf("unexpected handle: %+v", h)
	}
	if gotTo != "+15551234567" || gotApp != "AP000" {
		t.Fatalf("unexpected provider form: to=%q app=%q", gotTo, gotApp)
	}
}

func TestPlaceOutboundCall_RejectsInvalidDestination(t *testing.T) {
	b := NewTwilioBridge(testTelephonyConfig(), slog.Default())
	_, err := b.PlaceOutboundCall(context.Background(), "not a number")
	if !errors.Is(err, ErrInvalidDestination) {
		t.Fatalf("expected ErrInvalidDestination, got %v", err)
	}
}

func TestPlaceOutboundCall_ProviderErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	b := NewTwilioBridge(testTelephonyConfig(), slog.Default(), WithBaseURL(srv.URL))
	if _, err := b.PlaceOutboundCall(context.Background(), "+15551234567"); err == nil {
		t.Fatalf("expected error on provider 5xx")
	}
}

func TestIngest_PreservesArrivalOrder(t *testing.T) {
	b := NewTwilioBridge(testTelephonyConfig(), slog.Default())
	b.Ingest(CallEvent{SessionID: "CA1", Type: EventRinging})
	b.Ingest(CallEvent{SessionID: "CA1", Type: EventConnected})
	b.Close()

	var got []CallEventType
	for ev := range b.Events() {
		got = append(got, ev.Type)
	}
	if len(got) != 2 || got[0] != EventRinging || got[1] != EventConnected {
		t.Fatalf("unexpected event order: %v", got)
	}
}

func TestSendMessage_PostsToProvider(t *testing.T) {
	var gotTo, gotFrom, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/Accounts/AC000/Messages.json") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = r.ParseForm()
		gotTo = r.PostFormValue("To")
		gotFrom = r.PostFormValue("From")
		gotBody = r.PostFormValue("Body")
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	cfg := testTelephonyConfig()
	cfg.MessagingFrom = "+15550001111"
	b := NewTwilioBridge(cfg, slog.Default(), WithBaseURL(srv.URL))

	if err := b.SendMessage(context.Background(), "+15551234567", "We open at 9am."); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if gotTo != "+15551234567" || gotFrom != "+15550001111" || gotBody != "We open at 9am." {
		t.Fatalf("unexpected form: to=%q from=%q body=%q", gotTo, gotFrom, gotBody)
	}
}

func TestSendMessage_RequiresMessagingNumber(t *testing.T) {
	b := NewTwilioBridge(testTelephonyConfig(), slog.Default())
	if err := b.SendMessage(context.Background(), "+15551234567", "hi"); err == nil {
		t.Fatalf("expected error without messaging number")
	}
}
