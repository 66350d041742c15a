package handler

import (
	"errors"
	"net/http"
	"time"

	"purposepay/internal/adapter/http/dto"
	"purposepay/internal/adapter/http/middleware"
	"purposepay/internal/core/domain"
	"purposepay/pkg/apperror"
	"purposepay/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const maxIdempotencyKeyLen = 128

// principal returns the authenticated caller or writes AUTH_001.
func principal(c *gin.Context) (domain.Principal, bool) {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
	}
	return p, ok
}

// bindJSON decodes and sanitizes the request body into req.
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, apperror.ErrBodyTooLarge())
			return false
		}
		response.Error(c, apperror.Validation(err.Error()))
		return false
	}
	dto.SanitizeStruct(req)
	return true
}

// pathID parses the :id path parameter.
func pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("id must be a UUID"))
		return uuid.Nil, false
	}
	return id, true
}

// idempotencyKey reads the optional Idempotency-Key header.
func idempotencyKey(c *gin.Context) (string, bool) {
	key := c.GetHeader(middleware.HeaderIdempotencyKey)
	if len(key) > maxIdempotencyKeyLen {
		response.Error(c, apperror.Validation("Idempotency-Key is too long"))
		return "", false
	}
	return key, true
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func toWalletResponse(w *domain.Wallet) dto.WalletResponse {
	resp := dto.WalletResponse{
		CustomerID: w.CustomerID.String(),
		Balance:    domain.FormatMoney(w.Balance),
	}
	if !w.UpdatedAt.IsZero() {
		resp.UpdatedAt = formatTime(w.UpdatedAt)
	}
	return resp
}

func toVoucherResponse(v *domain.Voucher) dto.VoucherResponse {
	return dto.VoucherResponse{
		ID:               v.ID.String(),
		Code:             v.Code,
		Category:         string(v.Category),
		InitialAmount:    domain.FormatMoney(v.InitialAmount),
		RemainingBalance: domain.FormatMoney(v.RemainingBalance),
		EscrowBalance:    domain.FormatMoney(v.EscrowBalance),
		AvailableBalance: domain.FormatMoney(v.Available()),
		Status:           string(v.Status),
		ExpiresAt:        formatTime(v.ExpiresAt),
		CreatedAt:        formatTime(v.CreatedAt),
	}
}

func toVoucherResponses(vs []domain.Voucher) []dto.VoucherResponse {
	out := make([]dto.VoucherResponse, 0, len(vs))
	for i := range vs {
		out = append(out, toVoucherResponse(&vs[i]))
	}
	return out
}

func toRedemptionResponse(r *domain.Redemption) dto.RedemptionResponse {
	resp := dto.RedemptionResponse{
		ID:          r.ID.String(),
		VoucherID:   r.VoucherID.String(),
		VoucherCode: r.VoucherCode,
		VendorID:    r.VendorID.String(),
		Amount:      domain.FormatMoney(r.Amount),
		Status:      string(r.Status),
		CreatedAt:   formatTime(r.CreatedAt),
	}
	if r.CancelReason != nil {
		reason := string(*r.CancelReason)
		resp.CancelReason = &reason
	}
	if r.ResolvedAt != nil {
		s := formatTime(*r.ResolvedAt)
		resp.ResolvedAt = &s
	}
	return resp
}

func toRedemptionResponses(rs []domain.Redemption) []dto.RedemptionResponse {
	out := make([]dto.RedemptionResponse, 0, len(rs))
	for i := range rs {
		out = append(out, toRedemptionResponse(&rs[i]))
	}
	return out
}

func toVendorBalanceResponse(f *domain.VendorFinance) dto.VendorBalanceResponse {
	return dto.VendorBalanceResponse{
		VendorID:  f.VendorID.String(),
		Balance:   domain.FormatMoney(f.Balance),
		UpdatedAt: formatTime(f.UpdatedAt),
	}
}
