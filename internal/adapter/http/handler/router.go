package handler

import (
	"purposepay/internal/adapter/http/middleware"
	redisStore "purposepay/internal/adapter/storage/redis"
	"purposepay/internal/core/domain"
	"purposepay/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 20 // 1 MB

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	WalletSvc      ports.WalletService
	VoucherSvc     ports.VoucherService
	RedemptionSvc  ports.RedemptionService
	VendorSvc      ports.VendorService
	TokenSvc       ports.TokenService
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	AuditSvc       ports.AuditService // nil = audit logging disabled
	APISpec        []byte             // nil = /docs/spec returns 404
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(maxBodyBytes))

	// Audit logging (after response)
	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	docs := NewAPIDocs(deps.APISpec)
	r.GET("/docs", docs.UI)
	r.GET("/docs/spec", docs.Spec)

	rules := middleware.DefaultRateLimitRules()
	rl := func(group string) gin.HandlerFunc {
		rule, ok := rules[group]
		if deps.RateLimitStore == nil || !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	customer := middleware.RequireRole(domain.RoleCustomer)
	vendor := middleware.RequireRole(domain.RoleVendor)

	v1 := r.Group("/api/v1", middleware.JWTAuth(deps.TokenSvc, deps.Logger))

	walletHandler := NewWalletHandler(deps.WalletSvc)
	wallet := v1.Group("/wallet", customer)
	{
		wallet.GET("", rl("reads"), walletHandler.GetWallet)
		wallet.POST("/deposit", rl("wallet_deposit"), walletHandler.Deposit)
	}

	voucherHandler := NewVoucherHandler(deps.VoucherSvc)
	vouchers := v1.Group("/vouchers", customer)
	{
		vouchers.POST("", rl("vouchers_create"), voucherHandler.Create)
		vouchers.GET("", rl("reads"), voucherHandler.List)
		vouchers.GET("/:id", rl("reads"), voucherHandler.Get)
		vouchers.POST("/:id/activate", rl("vouchers_activate"), voucherHandler.Activate)
	}

	redemptionHandler := NewRedemptionHandler(deps.RedemptionSvc, deps.VendorSvc)
	redemptions := v1.Group("/redemptions")
	{
		redemptions.GET("/pending", customer, rl("reads"), redemptionHandler.ListPending)
		redemptions.POST("/:id/confirm", customer, rl("redemptions_decide"), redemptionHandler.Confirm)
		redemptions.POST("/:id/cancel", customer, rl("redemptions_decide"), redemptionHandler.Cancel)
		redemptions.GET("/:id", middleware.RequireRole(domain.RoleCustomer, domain.RoleVendor), rl("reads"), redemptionHandler.Get)
	}

	vendorHandler := NewVendorHandler(deps.VendorSvc)
	vendorGroup := v1.Group("/vendor", vendor)
	{
		vendorGroup.POST("/redemptions", rl("vendor_redemptions"), redemptionHandler.Request)
		vendorGroup.GET("/redemptions", rl("reads"), redemptionHandler.History)
		vendorGroup.GET("/balance", rl("reads"), vendorHandler.Balance)
		vendorGroup.POST("/payouts", rl("vendor_payouts"), vendorHandler.Payout)
	}

	v1.GET("/vendors/approved/:category", rl("reads"), vendorHandler.ListApproved)

	return r
}
