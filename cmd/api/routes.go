package main

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lshmam/neucler-inbox-sub002/internal/httpapi"
	"github.com/lshmam/neucler-inbox-sub002/internal/rbac"
	"github.com/lshmam/neucler-inbox-sub002/internal/telephony"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers delegate to internal modules.
func registerRoutes(r *gin.Engine, authMW gin.HandlerFunc, h httpapi.Handlers, status telephony.StatusWebhookHandler) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Provider webhooks (public).
	// NOTE: these should be protected by provider signature validation at the
	// edge in production.
	webhooks := r.Group("/webhooks")
	{
		webhooks.POST("/voice/status", status.HandleStatusCallback)
		webhooks.POST("/voice/inbound/:workspace_id", h.HandleInboundVoice)
		webhooks.POST("/messages/:workspace_id", h.HandleInboundMessage)
	}

	v1 := r.Group("/v1")

	// Token issuance is the only unauthenticated API route.
	v1.POST("/auth/login", h.Login)

	v1.Use(authMW)
	{
		v1.GET("/me", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"operator_id":  c.GetString("operator_id"),
				"workspace_id": c.GetString("workspace_id"),
				"role":         c.GetString("role"),
			})
		})

		operator := []string{rbac.RoleOwner, rbac.RoleOperator, rbac.RoleDispatcher}

		tel := v1.Group("/telephony")
		tel.Use(httpapi.RequireWorkspaceAndAnyRole(operator...)...)
		{
			tel.POST("/token", h.IssueVoiceToken)
		}

		calls := v1.Group("/calls")
		calls.Use(httpapi.RequireWorkspaceAndAnyRole(operator...)...)
		{
			calls.POST("", h.StartCall)
			calls.GET("/current", h.CurrentCall)
			calls.POST("/current/hangup", h.Hangup)
			calls.POST("/current/checklist", h.ToggleChecklist)
			calls.POST("/current/mute", h.SetMute)
			calls.POST("/current/hold", h.SetHold)
			calls.POST("/current/disposition", h.SubmitDisposition)
		}

		acts := v1.Group("/actions")
		acts.Use(httpapi.RequireWorkspaceAndAnyRole(operator...)...)
		{
			acts.GET("", h.ListActions)
			acts.POST("/:action_id/transition", h.TransitionAction)
		}

		hist := v1.Group("/history")
		hist.Use(httpapi.RequireWorkspaceAndAnyRole(operator...)...)
		{
			hist.GET("", h.ListHistory)
		}

		reports := v1.Group("/reports")
		reports.Use(httpapi.RequireWorkspaceAndAnyRole(rbac.RoleOwner, rbac.RoleDispatcher)...)
		{
			reports.GET("/calls", h.CallsReport)
			reports.GET("/messages", h.MessagesReport)
			reports.GET("/actions", h.ActionsReport)
		}

		admin := v1.Group("/admin")
		admin.Use(httpapi.RequireWorkspaceAndAnyRole(rbac.RoleOwner)...)
		{
			admin.GET("/ping", func(c *gin.Context) {
				c.JSON(http.StatusOK, gin.H{"status": "ok"})
			})
			admin.POST("/actions/escalate-stale", h.EscalateStaleLeads)
		}
	}
}
