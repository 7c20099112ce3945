package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/lshmam/neucler-inbox-sub002/internal/auth"
)

func route(identityRole, workspaceID string, allowed ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/x", func(c *gin.Context) {
		ctx := auth.WithIdentity(c.Request.Context(), "op", workspaceID, identityRole)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}, RequireWorkspace(), RequireAnyRole(allowed...), func(c *gin.Context) {
		c.Status(200)
	})
	return r
}

func get(r *gin.Engine) int {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	return w.Code
}

func TestRequireAnyRole_SuperAdminBypasses(t *testing.T) {
	if code := get(route(RoleSuperAdmin, "w", RoleOwner)); code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
}

func TestRequireAnyRole_OperatorAllowed(t *testing.T) {
	if code := get(route(RoleOperator, "w", RoleOperator, RoleDispatcher)); code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
}

func TestRequireAnyRole_DispatcherDeniedOperatorRoute(t *testing.T) {
	if code := get(route(RoleDispatcher, "w", RoleOperator)); code != 403 {
		t.Fatalf("expected 403, got %d", code)
	}
}

func TestRequireAnyRole_HiddenRoleDeniedUnlessAllowed(t *testing.T) {
	if code := get(route(RolePlatformOp, "w", RoleOwner)); code != 403 {
		t.Fatalf("expected 403, got %d", code)
	}
	if code := get(route(RolePlatformOp, "w", RolePlatformOp)); code != 200 {
		t.Fatalf("expected 200 when explicitly allowed, got %d", code)
	}
}

func TestRequireAnyRole_WorkspaceRequired(t *testing.T) {
	if code := get(route(RoleOwner, "")); code != 401 {
		t.Fatalf("expected 401, got %d", code)
	}
}
