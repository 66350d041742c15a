package handler

import (
	"context"

	"purposepay/internal/adapter/http/dto"
	"purposepay/internal/core/domain"
	"purposepay/internal/core/ports"
	"purposepay/pkg/apperror"
	"purposepay/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RedemptionHandler handles vendor claims and the customer's decision on them.
type RedemptionHandler struct {
	redemptionSvc ports.RedemptionService
	vendorSvc     ports.VendorService
}

// NewRedemptionHandler creates a new RedemptionHandler.
func NewRedemptionHandler(redemptionSvc ports.RedemptionService, vendorSvc ports.VendorService) *RedemptionHandler {
	return &RedemptionHandler{redemptionSvc: redemptionSvc, vendorSvc: vendorSvc}
}

// Request handles POST /api/v1/vendor/redemptions.
func (h *RedemptionHandler) Request(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req dto.RedemptionRequest
	if !bindJSON(c, &req) {
		return
	}

	redemption, err := h.redemptionSvc.Request(c.Request.Context(), ports.RedemptionRequest{
		Principal:   p,
		VoucherCode: dto.NormalizeCode(req.VoucherCode),
		Amount:      req.Amount,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toRedemptionResponse(redemption))
}

// History handles GET /api/v1/vendor/redemptions?status=&code=.
func (h *RedemptionHandler) History(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var q dto.RedemptionHistoryQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	filter := ports.RedemptionFilter{Code: dto.NormalizeCode(q.Code)}
	if q.Status != "" {
		s := domain.RedemptionStatus(q.Status)
		filter.Status = &s
	}

	redemptions, err := h.vendorSvc.History(c.Request.Context(), p, filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.List(c, toRedemptionResponses(redemptions))
}

// ListPending handles GET /api/v1/redemptions/pending.
func (h *RedemptionHandler) ListPending(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	redemptions, err := h.redemptionSvc.ListPending(c.Request.Context(), p)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.List(c, toRedemptionResponses(redemptions))
}

// Get handles GET /api/v1/redemptions/:id.
func (h *RedemptionHandler) Get(c *gin.Context) {
	h.byID(c, h.redemptionSvc.Get)
}

// Confirm handles POST /api/v1/redemptions/:id/confirm.
func (h *RedemptionHandler) Confirm(c *gin.Context) {
	h.byID(c, h.redemptionSvc.Confirm)
}

// Cancel handles POST /api/v1/redemptions/:id/cancel.
func (h *RedemptionHandler) Cancel(c *gin.Context) {
	h.byID(c, h.redemptionSvc.Cancel)
}

type redemptionOp func(ctx context.Context, principal domain.Principal, id uuid.UUID) (*domain.Redemption, error)

func (h *RedemptionHandler) byID(c *gin.Context, op redemptionOp) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	redemption, err := op(c.Request.Context(), p, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toRedemptionResponse(redemption))
}
