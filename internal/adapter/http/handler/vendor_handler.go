package handler

import (
	"purposepay/internal/adapter/http/dto"
	"purposepay/internal/core/domain"
	"purposepay/internal/core/ports"
	"purposepay/pkg/apperror"
	"purposepay/pkg/response"

	"github.com/gin-gonic/gin"
)

// VendorHandler handles vendor finance and the approved-vendor directory.
type VendorHandler struct {
	vendorSvc ports.VendorService
}

// NewVendorHandler creates a new VendorHandler.
func NewVendorHandler(vendorSvc ports.VendorService) *VendorHandler {
	return &VendorHandler{vendorSvc: vendorSvc}
}

// Balance handles GET /api/v1/vendor/balance.
func (h *VendorHandler) Balance(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	finance, err := h.vendorSvc.Balance(c.Request.Context(), p)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toVendorBalanceResponse(finance))
}

// Payout handles POST /api/v1/vendor/payouts.
func (h *VendorHandler) Payout(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req dto.PayoutRequest
	if !bindJSON(c, &req) {
		return
	}

	finance, err := h.vendorSvc.Payout(c.Request.Context(), p, req.Amount)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toVendorBalanceResponse(finance))
}

// ListApproved handles GET /api/v1/vendors/approved/:category?city=.
func (h *VendorHandler) ListApproved(c *gin.Context) {
	category, ok := domain.ParseCategory(c.Param("category"))
	if !ok {
		response.Error(c, apperror.ErrInvalidCategory())
		return
	}
	var q dto.ApprovedVendorsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	vendors, err := h.vendorSvc.ListApproved(c.Request.Context(), category, q.City)
	if err != nil {
		response.Error(c, err)
		return
	}

	out := make([]dto.VendorResponse, 0, len(vendors))
	for _, v := range vendors {
		out = append(out, dto.VendorResponse{
			ID:           v.ID.String(),
			BusinessName: v.BusinessName,
			Category:     string(v.Category),
			City:         v.City,
			GPSCode:      v.GPSCode,
			PhoneNumber:  v.PhoneNumber,
		})
	}
	response.List(c, out)
}
