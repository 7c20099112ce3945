package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lshmam/neucler-inbox-sub002/internal/actions"
	"github.com/lshmam/neucler-inbox-sub002/internal/auth"
	"github.com/lshmam/neucler-inbox-sub002/internal/classify"
	"github.com/lshmam/neucler-inbox-sub002/internal/history"
	"github.com/lshmam/neucler-inbox-sub002/internal/rbac"
	"github.com/lshmam/neucler-inbox-sub002/internal/reporting"
	"github.com/lshmam/neucler-inbox-sub002/internal/routing"
	"github.com/lshmam/neucler-inbox-sub002/internal/session"
	"github.com/lshmam/neucler-inbox-sub002/internal/telephony"
	"github.com/lshmam/neucler-inbox-sub002/pkg/logger"
)

// MessageClassifier categorizes raw inbound text. It never fails; degraded
// input comes back as an unclassifiable result.
type MessageClassifier interface {
	Classify(ctx context.Context, workspaceID, rawText string) classify.Result
}

// ContactResolver matches a raw phone number to a known contact.
type ContactResolver interface {
	ResolveByPhone(ctx context.Context, workspaceID, phone string) (routing.Contact, bool, error)
}

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Auth       *auth.Manager
	Bridge     telephony.Bridge
	Sessions   *session.Manager
	Classifier MessageClassifier
	Router     *routing.Router
	Contacts   ContactResolver
	History    *history.Service
	Actions    *actions.Engine
	Reports    *reporting.Service
}

// --- Auth ---

type loginRequest struct {
	OperatorID  string `json:"operator_id"`
	WorkspaceID string `json:"workspace_id"`
	Role        string `json:"role"`
}

// Login issues a JWT token pair.
//
// NOTE: This is a skeleton-only endpoint. Real systems must validate credentials.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.OperatorID == "" || req.WorkspaceID == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "operator_id, workspace_id, role required"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.OperatorID, req.WorkspaceID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// --- Telephony ---

// IssueVoiceToken mints a short-lived media credential for the authenticated
// operator's softphone.
func (h Handlers) IssueVoiceToken(c *gin.Context) {
	if h.Bridge == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "telephony not configured"})
		return
	}
	operatorID, err := auth.OperatorID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "operator_id required"})
		return
	}

	cred, err := h.Bridge.IssueCredential(c.Request.Context(), operatorID)
	if err != nil {
		if errors.Is(err, telephony.ErrAuthFailure) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "credential refused"})
			return
		}
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "credential issuance failed"})
		return
	}
	c.JSON(http.StatusOK, cred)
}

// --- Calls ---

type startCallRequest struct {
	Destination string                  `json:"destination"`
	Checklist   []session.ChecklistItem `json:"checklist,omitempty"`
}

func (h Handlers) StartCall(c *gin.Context) {
	if h.Sessions == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "sessions not configured"})
		return
	}
	operatorID, workspaceID, ok := identity(c)
	if !ok {
		return
	}

	var req startCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	snap, err := h.Sessions.StartOutbound(c.Request.Context(), operatorID, workspaceID, req.Destination, req.Checklist)
	if err != nil {
		switch {
		case errors.Is(err, telephony.ErrInvalidDestination):
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "destination is not dialable"})
		case errors.Is(err, session.ErrSessionExists):
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "a call is already in progress"})
		default:
			c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "call placement failed"})
		}
		return
	}
	c.JSON(http.StatusCreated, snap)
}

func (h Handlers) CurrentCall(c *gin.Context) {
	operatorID, _, ok := identity(c)
	if !ok {
		return
	}
	snap, err := h.Sessions.Current(operatorID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "no live call"})
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h Handlers) Hangup(c *gin.Context) {
	operatorID, _, ok := identity(c)
	if !ok {
		return
	}
	if err := h.Sessions.Hangup(c.Request.Context(), operatorID); err != nil {
		abortSessionErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type toggleChecklistRequest struct {
	Index int `json:"index"`
}

func (h Handlers) ToggleChecklist(c *gin.Context) {
	operatorID, _, ok := identity(c)
	if !ok {
		return
	}
	var req toggleChecklistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if err := h.Sessions.ToggleChecklist(operatorID, req.Index); err != nil {
		abortSessionErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type muteRequest struct {
	Muted bool `json:"muted"`
}

func (h Handlers) SetMute(c *gin.Context) {
	operatorID, _, ok := identity(c)
	if !ok {
		return
	}
	var req muteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if err := h.Sessions.SetMute(operatorID, req.Muted); err != nil {
		abortSessionErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type holdRequest struct {
	OnHold bool `json:"on_hold"`
}

func (h Handlers) SetHold(c *gin.Context) {
	operatorID, _, ok := identity(c)
	if !ok {
		return
	}
	var req holdRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if err := h.Sessions.SetHold(operatorID, req.OnHold); err != nil {
		abortSessionErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type dispositionRequest struct {
	Outcome string `json:"outcome"`
	Reason  string `json:"reason,omitempty"`
}

// SubmitDisposition completes the wrap-up phase. The emitted record feeds the
// interaction history and the action engine through the manager's sinks.
func (h Handlers) SubmitDisposition(c *gin.Context) {
	operatorID, _, ok := identity(c)
	if !ok {
		return
	}
	var req dispositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	rec, err := h.Sessions.SubmitDisposition(c.Request.Context(), operatorID, session.Disposition(req.Outcome), req.Reason)
	if err != nil {
		abortSessionErr(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func abortSessionErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, session.ErrNoSession):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "no live call"})
	case errors.Is(err, session.ErrNotActive), errors.Is(err, session.ErrInvalidTransition):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call control failed"})
	}
}

// HandleInboundVoice answers the provider's inbound-call webhook with dial
// markup. The webhook URL carries the workspace and the operator endpoint the
// number is assigned to; a busy operator gets the call rejected so the
// provider can fall through to voicemail.
func (h Handlers) HandleInboundVoice(c *gin.Context) {
	log := logger.FromGin(c)
	workspaceID := c.Param("workspace_id")
	operatorID := c.Query("operator")
	if workspaceID == "" || operatorID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "workspace_id and operator required"})
		return
	}

	form, err := telephony.ParseStatusCallback(c.Request)
	if err != nil || form.CallSid == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid form"})
		return
	}

	_, err = h.Sessions.AcceptInbound(c.Request.Context(), operatorID, workspaceID, form.CallSid, form.From, nil)
	if err != nil {
		if !errors.Is(err, session.ErrSessionExists) {
			log.Warn("inbound call not accepted", "err", err)
		}
		markup, rerr := telephony.RenderReject()
		if rerr != nil {
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		c.Data(http.StatusOK, "application/xml", []byte(markup))
		return
	}

	markup, err := telephony.RenderDial("client:" + operatorID)
	if err != nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	c.Data(http.StatusOK, "application/xml", []byte(markup))
}

// --- Inbound messages ---

type inboundMessageForm struct {
	From string `form:"From" json:"from"`
	Body string `form:"Body" json:"body"`
}

// HandleInboundMessage runs the full intake pipeline for one message:
// classify, route, dispatch to the destination system, record history and
// derive follow-up actions. The webhook URL carries the workspace, one per
// provisioned number.
//
// Dispatch failures are logged, not retried; the provider must not replay a
// business failure. History and action writes are best-effort as well.
func (h Handlers) HandleInboundMessage(c *gin.Context) {
	log := logger.FromGin(c)
	workspaceID := c.Param("workspace_id")
	if workspaceID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "workspace_id required"})
		return
	}

	var form inboundMessageForm
	if err := c.ShouldBind(&form); err != nil || form.Body == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "message body required"})
		return
	}

	ctx := routing.WithClientIP(c.Request.Context(), c.ClientIP())

	contact := routing.Contact{Phone: form.From}
	if h.Contacts != nil && form.From != "" {
		if known, ok, err := h.Contacts.ResolveByPhone(ctx, workspaceID, form.From); err != nil {
			log.Warn("contact lookup failed", "err", err)
		} else if ok {
			contact = known
		}
	}

	res := h.Classifier.Classify(ctx, workspaceID, form.Body)
	decision := h.Router.Route(workspaceID, res, contact)

	delivered := true
	if err := h.Router.Dispatch(ctx, decision, contact, form.Body); err != nil {
		delivered = false
		log.Error("routed dispatch failed", "destination", decision.Destination, "err", err)
	}

	if h.History != nil {
		if err := h.History.RecordMessage(ctx, decision, contact, form.Body); err != nil {
			log.Warn("history record failed", "err", err)
		}
	}

	if h.Actions != nil {
		personID := contact.ID
		if personID == "" {
			personID = "phone:" + form.From
		}
		_, err := h.Actions.Ingest(ctx, actions.Event{
			WorkspaceID: workspaceID,
			Person: actions.Person{
				ID:    personID,
				Name:  contact.Name,
				Phone: contact.Phone,
				Tags:  contact.Tags,
			},
			Kind:        actions.EventRoutedMessage,
			Destination: string(decision.Destination),
			AutoReplied: decision.AutoReply != "",
			Note:        form.Body,
		})
		if err != nil {
			log.Warn("action ingestion failed", "err", err)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"intent":      decision.Intent,
		"destination": decision.Destination,
		"auto_reply":  decision.AutoReply,
		"delivered":   delivered,
	})
}

// --- Actions ---

func (h Handlers) ListActions(c *gin.Context) {
	if h.Actions == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "actions not configured"})
		return
	}
	_, workspaceID, ok := identity(c)
	if !ok {
		return
	}

	f := actions.Filter{
		Status:   actions.Status(c.Query("status")),
		Type:     actions.ActionType(c.Query("type")),
		PersonID: c.Query("person_id"),
	}
	rows, err := h.Actions.List(c.Request.Context(), workspaceID, f)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "listing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"actions": rows})
}

type transitionRequest struct {
	Status string `json:"status"`
}

func (h Handlers) TransitionAction(c *gin.Context) {
	if h.Actions == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "actions not configured"})
		return
	}
	_, workspaceID, ok := identity(c)
	if !ok {
		return
	}
	actionID := c.Param("action_id")
	if actionID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "action_id required"})
		return
	}

	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	a, err := h.Actions.Transition(c.Request.Context(), workspaceID, actionID, actions.Status(req.Status))
	if err != nil {
		switch {
		case errors.Is(err, actions.ErrNotFound):
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "action not found"})
		case errors.Is(err, actions.ErrInvalidTransition):
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "transition failed"})
		}
		return
	}
	c.JSON(http.StatusOK, a)
}

// EscalateStaleLeads runs the lead staleness sweep for the caller's
// workspace. Exposed for scheduled invocation by ops tooling.
func (h Handlers) EscalateStaleLeads(c *gin.Context) {
	if h.Actions == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "actions not configured"})
		return
	}
	_, workspaceID, ok := identity(c)
	if !ok {
		return
	}
	n, err := h.Actions.EscalateStaleLeads(c.Request.Context(), workspaceID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "sweep failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"escalated": n})
}

// --- History ---

func (h Handlers) ListHistory(c *gin.Context) {
	if h.History == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "history not configured"})
		return
	}
	_, workspaceID, ok := identity(c)
	if !ok {
		return
	}

	q := history.Query{
		PersonID: c.Query("person_id"),
		Kind:     history.EntryKind(c.Query("kind")),
	}
	if limit := c.Query("limit"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil && n > 0 {
			q.Limit = min(n, 1000)
		}
	}

	rows, err := h.History.List(c.Request.Context(), workspaceID, q)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "listing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": rows})
}

// --- Reports ---

func (h Handlers) CallsReport(c *gin.Context) {
	if h.Reports == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reporting not configured"})
		return
	}
	_, workspaceID, ok := identity(c)
	if !ok {
		return
	}
	rng, err := parseRange(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	out, err := h.Reports.CallsSummary(c.Request.Context(), reporting.CallsSummaryRequest{
		WorkspaceID: workspaceID,
		Range:       rng,
		OperatorID:  c.Query("operator_id"),
	})
	if err != nil {
		if errors.Is(err, reporting.ErrInvalidRequest) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid range"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "report failed"})
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) MessagesReport(c *gin.Context) {
	if h.Reports == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reporting not configured"})
		return
	}
	_, workspaceID, ok := identity(c)
	if !ok {
		return
	}
	rng, err := parseRange(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	out, err := h.Reports.MessagesSummary(c.Request.Context(), reporting.MessagesSummaryRequest{
		WorkspaceID: workspaceID,
		Range:       rng,
	})
	if err != nil {
		if errors.Is(err, reporting.ErrInvalidRequest) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid range"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "report failed"})
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) ActionsReport(c *gin.Context) {
	if h.Reports == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reporting not configured"})
		return
	}
	_, workspaceID, ok := identity(c)
	if !ok {
		return
	}
	out, err := h.Reports.ActionsSummary(c.Request.Context(), workspaceID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "report failed"})
		return
	}
	c.JSON(http.StatusOK, out)
}

// --- helpers ---

func identity(c *gin.Context) (operatorID, workspaceID string, ok bool) {
	operatorID, err := auth.OperatorID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "operator_id required"})
		return "", "", false
	}
	workspaceID, err = auth.WorkspaceID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "workspace_id required"})
		return "", "", false
	}
	return operatorID, workspaceID, true
}

func parseRange(c *gin.Context) (reporting.TimeRange, error) {
	from, err := time.Parse(time.RFC3339, c.Query("from"))
	if err != nil {
		return reporting.TimeRange{}, errors.New("from must be RFC3339")
	}
	to, err := time.Parse(time.RFC3339, c.Query("to"))
	if err != nil {
		return reporting.TimeRange{}, errors.New("to must be RFC3339")
	}
	return reporting.TimeRange{From: from, To: to}, nil
}

// Convenience middleware bundles.

func RequireWorkspaceAndAnyRole(roles ...string) []gin.HandlerFunc {
	return []gin.HandlerFunc{rbac.RequireWorkspace(), rbac.RequireAnyRole(roles...)}
}
