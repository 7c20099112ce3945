package telephony

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/lshmam/neucler-inbox-sub002/pkg/logger"
	"github.com/lshmam/neucler-inbox-sub002/pkg/utils"
)

// StatusCallbackForm captures the subset of voice status-callback fields we
// care about. The provider sends application/x-www-form-urlencoded.
//
// Keep it minimal and provider-adapter-only. Business logic (session state,
// dispositions) is not made here.
type StatusCallbackForm struct {
	CallSid    string
	AccountSid string
	From       string
	To         string
	CallStatus string
	ErrorCode  string
	Timestamp  string
}

func ParseStatusCallback(r *http.Request) (StatusCallbackForm, error) {
	if err := r.ParseForm(); err != nil {
		return StatusCallbackForm{}, err
	}
	f := StatusCallbackForm{
		CallSid:    r.PostFormValue("CallSid"),
		AccountSid: r.PostFormValue("AccountSid"),
		From:       strings.TrimSpace(r.PostFormValue("From")),
		To:         strings.TrimSpace(r.PostFormValue("To")),
		CallStatus: r.PostFormValue("CallStatus"),
		ErrorCode:  r.PostFormValue("ErrorCode"),
		Timestamp:  r.PostFormValue("Timestamp"),
	}
	return f, nil
}

// ToCallEvent normalizes the provider status vocabulary into ours.
// Unknown statuses map to (CallEvent{}, false) and are dropped by the caller
// with a log line; the session machine never sees them.
func (f StatusCallbackForm) ToCallEvent(occurredAt time.Time) (CallEvent, bool) {
	ev := CallEvent{
		SessionID:  f.CallSid,
		From:       f.From,
		To:         f.To,
		OccurredAt: occurredAt,
	}
	switch f.CallStatus {
	case "initiated", "queued", "ringing":
		ev.Type = EventRinging
	case "in-progress", "answered":
		ev.Type = EventConnected
	case "completed":
		ev.Type = EventDisconnected
	case "busy", "no-answer", "canceled", "failed":
		ev.Type = EventFailed
		ev.Cause = f.CallStatus
		if f.ErrorCode != "" {
			ev.Cause = f.CallStatus + ":" + f.ErrorCode
		}
	default:
		return CallEvent{}, false
	}
	return ev, true
}

// IdempotencyClaimer claims a callback key exactly once within a ttl.
// Returns false when the key was already claimed.
type IdempotencyClaimer interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// RedisClaimer backs callback idempotency with a shared Redis SETNX claim, so
// replays are dropped across all API instances.
type RedisClaimer struct {
	Client *redis.Client
}

func (r RedisClaimer) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return utils.ClaimIdempotencyKey(ctx, r.Client, key, ttl)
}

// StatusWebhookHandler converts provider status callbacks into CallEvents and
// forwards them to the bridge event stream.
//
// Idempotency: providers retry callbacks. Each (call, status) pair is claimed
// once; replays are acknowledged and dropped.
type StatusWebhookHandler struct {
	Bridge *TwilioBridge
	Claims IdempotencyClaimer

	Now func() time.Time
}

const webhookClaimTTL = 15 * time.Minute

func (h StatusWebhookHandler) HandleStatusCallback(c *gin.Context) {
	log := logger.FromGin(c)

	if h.Now == nil {
		h.Now = time.Now
	}
	if h.Bridge == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "telephony bridge not configured"})
		return
	}

	form, err := ParseStatusCallback(c.Request)
	if err != nil {
		log.Warn("status callback parse failed", "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid form"})
		return
	}
	if form.CallSid == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "CallSid required"})
		return
	}

	ev, ok := form.ToCallEvent(h.Now().UTC())
	if !ok {
		log.Debug("ignoring unknown call status", "status", form.CallStatus)
		c.Status(http.StatusNoContent)
		return
	}

	if h.Claims != nil {
		key := "voice:cb:" + form.CallSid + ":" + form.CallStatus
		fresh, err := h.Claims.Claim(c.Request.Context(), key, webhookClaimTTL)
		if err != nil {
			// Redis being down must not drop call events; we accept the
			// duplicate risk and let the session machine reject replays.
			log.Warn("webhook idempotency claim failed", "err", err)
		} else if !fresh {
			c.Status(http.StatusNoContent)
			return
		}
	}

	h.Bridge.Ingest(ev)
	c.Status(http.StatusNoContent)
}
