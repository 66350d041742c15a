package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"purposepay/internal/core/domain"
	"purposepay/internal/core/ports"
	"purposepay/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AuditLog creates an audit middleware that logs successful write operations.
// Actions are resolved from the matched route template, not the raw path.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only audit successful write operations (status 2xx)
		if c.Writer.Status() < 200 || c.Writer.Status() >= 300 {
			return
		}
		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead || c.Request.Method == http.MethodOptions {
			return
		}

		action, resourceType := mapRouteToAction(c.FullPath(), c.Request.Method)
		if action == "" {
			return
		}

		var actorID *uuid.UUID
		if p, ok := PrincipalFrom(c); ok {
			id := p.UserID
			actorID = &id
		}

		details, _ := json.Marshal(map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"request_id": c.GetString(response.RequestIDKey),
		})

		auditSvc.Log(c.Request.Context(), &domain.AuditLog{
			ID:           uuid.New(),
			ActorID:      actorID,
			Action:       action,
			ResourceType: resourceType,
			ResourceID:   c.Param("id"),
			IPAddress:    c.ClientIP(),
			Details:      string(details),
			CreatedAt:    time.Now().UTC(),
		})
	}
}

func mapRouteToAction(route, method string) (domain.AuditAction, string) {
	if method != http.MethodPost {
		return "", ""
	}
	switch route {
	case "/api/v1/wallet/deposit":
		return domain.AuditActionDeposit, "wallet"
	case "/api/v1/vouchers":
		return domain.AuditActionVoucherCreate, "voucher"
	case "/api/v1/vouchers/:id/activate":
		return domain.AuditActionVoucherActivate, "voucher"
	case "/api/v1/vendor/redemptions":
		return domain.AuditActionRedemptionRequest, "redemption"
	case "/api/v1/redemptions/:id/confirm":
		return domain.AuditActionRedemptionConfirm, "redemption"
	case "/api/v1/redemptions/:id/cancel":
		return domain.AuditActionRedemptionCancel, "redemption"
	case "/api/v1/vendor/payouts":
		return domain.AuditActionPayout, "vendor_finance"
	}
	return "", ""
}
