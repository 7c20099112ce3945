package routing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWebhookSinkDeliversHandoff(t *testing.T) {
	var got handoffPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("bad body: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	sink := NewWebhookSink(srv.URL)
	err := sink.AddOpportunity(context.Background(), "ws-1", Contact{ID: "p-1", Phone: "+15551230001"}, "kitchen remodel quote")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got.WorkspaceID != "ws-1" || got.Kind != "opportunity" || got.Contact.ID != "p-1" {
		t.Fatalf("payload = %+v", got)
	}

	if err := sink.OpenTicket(context.Background(), "ws-1", Contact{ID: "p-1"}, "broken login"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got.Kind != "ticket" {
		t.Fatalf("kind = %q", got.Kind)
	}
}

func TestWebhookSinkSurfacesDownstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	sink := NewWebhookSink(srv.URL)
	if err := sink.OpenTicket(context.Background(), "ws-1", Contact{}, "x"); err == nil {
		t.Fatalf("expected error on downstream 5xx")
	}
}

type fakeSender struct {
	to, body string
}

func (f *fakeSender) SendMessage(ctx context.Context, to, body string) error {
	f.to, f.body = to, body
	return nil
}

func TestSMSReply(t *testing.T) {
	sender := &fakeSender{}
	sink := SMSReply{Sender: sender}

	if err := sink.SendReply(context.Background(), "ws-1", Contact{Phone: "+15551230001"}, "We open at 9am."); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if sender.to != "+15551230001" || sender.body != "We open at 9am." {
		t.Fatalf("sent to=%q body=%q", sender.to, sender.body)
	}

	if err := sink.SendReply(context.Background(), "ws-1", Contact{}, "hi"); err == nil {
		t.Fatalf("expected error without phone")
	}
}
