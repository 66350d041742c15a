package handler

import (
	"purposepay/internal/adapter/http/dto"
	"purposepay/internal/core/domain"
	"purposepay/internal/core/ports"
	"purposepay/pkg/apperror"
	"purposepay/pkg/response"

	"github.com/gin-gonic/gin"
)

// VoucherHandler handles the customer side of the voucher lifecycle.
type VoucherHandler struct {
	voucherSvc ports.VoucherService
}

// NewVoucherHandler creates a new VoucherHandler.
func NewVoucherHandler(voucherSvc ports.VoucherService) *VoucherHandler {
	return &VoucherHandler{voucherSvc: voucherSvc}
}

// Create handles POST /api/v1/vouchers.
func (h *VoucherHandler) Create(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	key, ok := idempotencyKey(c)
	if !ok {
		return
	}

	var req dto.CreateVoucherRequest
	if !bindJSON(c, &req) {
		return
	}
	category, valid := domain.ParseCategory(req.Category)
	if !valid {
		response.Error(c, apperror.ErrInvalidCategory())
		return
	}

	voucher, err := h.voucherSvc.Create(c.Request.Context(), ports.CreateVoucherRequest{
		Principal:      p,
		Category:       category,
		Amount:         req.Amount,
		IdempotencyKey: key,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toVoucherResponse(voucher))
}

// List handles GET /api/v1/vouchers?status=&category=&code=.
func (h *VoucherHandler) List(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var q dto.VoucherListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	filter := ports.VoucherFilter{Code: dto.NormalizeCode(q.Code)}
	if q.Status != "" {
		status := domain.VoucherStatus(q.Status)
		filter.Status = &status
	}
	if q.Category != "" {
		category, _ := domain.ParseCategory(q.Category)
		filter.Category = &category
	}

	vouchers, err := h.voucherSvc.List(c.Request.Context(), p, filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.List(c, toVoucherResponses(vouchers))
}

// Get handles GET /api/v1/vouchers/:id.
func (h *VoucherHandler) Get(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	detail, err := h.voucherSvc.Get(c.Request.Context(), p, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.VoucherDetailResponse{
		Voucher:     toVoucherResponse(&detail.Voucher),
		Redemptions: toRedemptionResponses(detail.Redemptions),
	})
}

// Activate handles POST /api/v1/vouchers/:id/activate.
func (h *VoucherHandler) Activate(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	voucher, err := h.voucherSvc.Activate(c.Request.Context(), p, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toVoucherResponse(voucher))
}
