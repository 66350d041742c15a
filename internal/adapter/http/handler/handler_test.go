package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"purposepay/internal/core/domain"
	"purposepay/internal/core/ports"
	"purposepay/internal/core/ports/mocks"
	"purposepay/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var (
	customerID = uuid.New()
	vendorUser = uuid.New()
	adminID    = uuid.New()
)

type testServer struct {
	router      *gin.Engine
	wallets     *mocks.MockWalletService
	vouchers    *mocks.MockVoucherService
	redemptions *mocks.MockRedemptionService
	vendors     *mocks.MockVendorService
}

func newTestServer(t *testing.T, extra ...func(*RouterDeps)) *testServer {
	t.Helper()
	ctrl := gomock.NewController(t)

	tokens := mocks.NewMockTokenService(ctrl)
	tokens.EXPECT().Validate(gomock.Any()).DoAndReturn(func(token string) (*ports.TokenClaims, error) {
		switch token {
		case "customer":
			return &ports.TokenClaims{UserID: customerID, Role: domain.RoleCustomer}, nil
		case "vendor":
			return &ports.TokenClaims{UserID: vendorUser, Role: domain.RoleVendor}, nil
		case "admin":
			return &ports.TokenClaims{UserID: adminID, Role: domain.RoleAdmin}, nil
		}
		return nil, errors.New("bad token")
	}).AnyTimes()

	s := &testServer{
		wallets:     mocks.NewMockWalletService(ctrl),
		vouchers:    mocks.NewMockVoucherService(ctrl),
		redemptions: mocks.NewMockRedemptionService(ctrl),
		vendors:     mocks.NewMockVendorService(ctrl),
	}
	deps := RouterDeps{
		WalletSvc:     s.wallets,
		VoucherSvc:    s.vouchers,
		RedemptionSvc: s.redemptions,
		VendorSvc:     s.vendors,
		TokenSvc:      tokens,
		Logger:        zerolog.Nop(),
	}
	for _, fn := range extra {
		fn(&deps)
	}
	s.router = SetupRouter(deps)
	return s
}

func (s *testServer) do(method, path, token, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func dataOf(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data, ok := resp["data"].(map[string]interface{})
	require.True(t, ok, "body: %s", w.Body.String())
	return data
}

func listOf(t *testing.T, w *httptest.ResponseRecorder) []interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data, ok := resp["data"].([]interface{})
	require.True(t, ok, "body: %s", w.Body.String())
	return data
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	code, _ := resp["error_code"].(string)
	return code
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testVoucher(status domain.VoucherStatus) *domain.Voucher {
	now := time.Now().UTC()
	return &domain.Voucher{
		ID:               uuid.New(),
		CustomerID:       customerID,
		Code:             "PP-ABCDEFGHIJK",
		Category:         domain.CategoryPharmacy,
		InitialAmount:    dec("500"),
		RemainingBalance: dec("300"),
		EscrowBalance:    dec("150"),
		Status:           status,
		ExpiresAt:        now.Add(720 * time.Hour),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func testRedemption(status domain.RedemptionStatus) *domain.Redemption {
	return &domain.Redemption{
		ID:          uuid.New(),
		VoucherID:   uuid.New(),
		VendorID:    uuid.New(),
		VoucherCode: "PP-ABCDEFGHIJK",
		Amount:      dec("150"),
		Status:      status,
		CreatedAt:   time.Now().UTC(),
	}
}

// --- Auth & roles ---

func TestRoutes_RequireToken(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/api/v1/wallet", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "AUTH_001", errorCode(t, w))

	w = s.do(http.MethodGet, "/api/v1/wallet", "forged", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRoutes_RoleGuards(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		method, path, token string
	}{
		{http.MethodPost, "/api/v1/wallet/deposit", "vendor"},
		{http.MethodPost, "/api/v1/vouchers", "vendor"},
		{http.MethodPost, "/api/v1/redemptions/" + uuid.NewString() + "/confirm", "vendor"},
		{http.MethodPost, "/api/v1/vendor/redemptions", "customer"},
		{http.MethodPost, "/api/v1/vendor/payouts", "admin"},
		{http.MethodGet, "/api/v1/redemptions/" + uuid.NewString(), "admin"},
	}
	for _, tt := range tests {
		w := s.do(tt.method, tt.path, tt.token, `{}`)
		assert.Equal(t, http.StatusForbidden, w.Code, "%s %s as %s", tt.method, tt.path, tt.token)
		assert.Equal(t, "AUTH_002", errorCode(t, w))
	}
}

// --- Wallet ---

func TestGetWallet(t *testing.T) {
	s := newTestServer(t)
	s.wallets.EXPECT().GetWallet(gomock.Any(), domain.Principal{UserID: customerID, Role: domain.RoleCustomer}).
		Return(&domain.Wallet{CustomerID: customerID, Balance: dec("150.5")}, nil)

	w := s.do(http.MethodGet, "/api/v1/wallet", "customer", "")

	assert.Equal(t, http.StatusOK, w.Code)
	data := dataOf(t, w)
	assert.Equal(t, "150.50", data["balance"])
	assert.Equal(t, customerID.String(), data["customer_id"])
	_, hasUpdated := data["updated_at"]
	assert.False(t, hasUpdated, "a never-funded wallet has no timestamp")
}

func TestDeposit_PassesIdempotencyKey(t *testing.T) {
	s := newTestServer(t)
	s.wallets.EXPECT().Deposit(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req ports.DepositRequest) (*domain.Wallet, error) {
			assert.Equal(t, customerID, req.Principal.UserID)
			assert.True(t, req.Amount.Equal(dec("1000")))
			assert.Equal(t, "dep-001", req.IdempotencyKey)
			return &domain.Wallet{CustomerID: customerID, Balance: dec("1000"), UpdatedAt: time.Now()}, nil
		})

	w := s.do(http.MethodPost, "/api/v1/wallet/deposit", "customer", `{"amount":"1000.00"}`, "Idempotency-Key", "dep-001")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1000.00", dataOf(t, w)["balance"])
}

func TestDeposit_MalformedBody(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/api/v1/wallet/deposit", "customer", `{"amount":`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VAL_000", errorCode(t, w))
}

func TestDeposit_ServiceValidationError(t *testing.T) {
	s := newTestServer(t)
	s.wallets.EXPECT().Deposit(gomock.Any(), gomock.Any()).Return(nil, apperror.ErrInvalidAmount())

	w := s.do(http.MethodPost, "/api/v1/wallet/deposit", "customer", `{"amount":"10.001"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VAL_001", errorCode(t, w))
}

func TestDeposit_IdempotencyKeyTooLong(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/api/v1/wallet/deposit", "customer", `{"amount":"10"}`, "Idempotency-Key", strings.Repeat("k", 200))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeposit_BodyTooLarge(t *testing.T) {
	s := newTestServer(t)
	body := `{"amount":"10","pad":"` + strings.Repeat("x", maxBodyBytes) + `"}`

	w := s.do(http.MethodPost, "/api/v1/wallet/deposit", "customer", body)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, "VAL_005", errorCode(t, w))
}

func TestDeposit_LockTimeout(t *testing.T) {
	s := newTestServer(t)
	s.wallets.EXPECT().Deposit(gomock.Any(), gomock.Any()).Return(nil, apperror.ErrLockTimeout(errors.New("55P03")))

	w := s.do(http.MethodPost, "/api/v1/wallet/deposit", "customer", `{"amount":"10"}`)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "SYS_002", errorCode(t, w))
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}

// --- Vouchers ---

func TestCreateVoucher(t *testing.T) {
	s := newTestServer(t)
	v := testVoucher(domain.VoucherStatusPendingPayment)
	s.vouchers.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req ports.CreateVoucherRequest) (*domain.Voucher, error) {
			assert.Equal(t, domain.CategoryPharmacy, req.Category)
			assert.True(t, req.Amount.Equal(dec("500")))
			return v, nil
		})

	w := s.do(http.MethodPost, "/api/v1/vouchers", "customer", `{"category":"pharmacy","amount":500}`)

	assert.Equal(t, http.StatusCreated, w.Code)
	data := dataOf(t, w)
	assert.Equal(t, "PP-ABCDEFGHIJK", data["code"])
	assert.Equal(t, "500.00", data["initial_amount"])
	assert.Equal(t, "300.00", data["remaining_balance"])
	assert.Equal(t, "150.00", data["escrow_balance"])
	assert.Equal(t, "150.00", data["available_balance"])
	assert.Equal(t, "PENDING_PAYMENT", data["status"])
}

func TestCreateVoucher_UnknownCategory(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/api/v1/vouchers", "customer", `{"category":"grocery","amount":"500"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListVouchers_Filters(t *testing.T) {
	s := newTestServer(t)
	s.vouchers.EXPECT().List(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, _ domain.Principal, f ports.VoucherFilter) ([]domain.Voucher, error) {
			require.NotNil(t, f.Status)
			require.NotNil(t, f.Category)
			assert.Equal(t, domain.VoucherStatusActive, *f.Status)
			assert.Equal(t, domain.CategorySchool, *f.Category)
			return []domain.Voucher{*testVoucher(domain.VoucherStatusActive)}, nil
		})

	w := s.do(http.MethodGet, "/api/v1/vouchers?status=ACTIVE&category=school", "customer", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, listOf(t, w), 1)
	assert.Contains(t, w.Body.String(), `"meta":{"count":1}`)
}

func TestListVouchers_CodeSearch(t *testing.T) {
	s := newTestServer(t)
	s.vouchers.EXPECT().List(gomock.Any(), gomock.Any(), ports.VoucherFilter{Code: "PP-AB12"}).
		Return([]domain.Voucher{*testVoucher(domain.VoucherStatusActive)}, nil)

	w := s.do(http.MethodGet, "/api/v1/vouchers?code=pp-ab12", "customer", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, listOf(t, w), 1)

	w = s.do(http.MethodGet, "/api/v1/vouchers?code=PP%25", "customer", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VAL_000", errorCode(t, w))
}

func TestListVouchers_EmptyIsArray(t *testing.T) {
	s := newTestServer(t)
	s.vouchers.EXPECT().List(gomock.Any(), gomock.Any(), ports.VoucherFilter{}).Return(nil, nil)

	w := s.do(http.MethodGet, "/api/v1/vouchers", "customer", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, listOf(t, w))
}

func TestListVouchers_BadStatus(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/api/v1/vouchers?status=SPENT", "customer", "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetVoucher_Detail(t *testing.T) {
	s := newTestServer(t)
	v := testVoucher(domain.VoucherStatusActive)
	r := testRedemption(domain.RedemptionStatusPending)
	s.vouchers.EXPECT().Get(gomock.Any(), gomock.Any(), v.ID).
		Return(&ports.VoucherDetail{Voucher: *v, Redemptions: []domain.Redemption{*r}}, nil)

	w := s.do(http.MethodGet, "/api/v1/vouchers/"+v.ID.String(), "customer", "")

	assert.Equal(t, http.StatusOK, w.Code)
	data := dataOf(t, w)
	assert.Equal(t, v.ID.String(), data["voucher"].(map[string]interface{})["id"])
	redemptions := data["redemptions"].([]interface{})
	require.Len(t, redemptions, 1)
	assert.Equal(t, "150.00", redemptions[0].(map[string]interface{})["amount"])
}

func TestGetVoucher_InvalidID(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/api/v1/vouchers/not-a-uuid", "customer", "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VAL_000", errorCode(t, w))
}

func TestActivateVoucher_Expired(t *testing.T) {
	s := newTestServer(t)
	id := uuid.New()
	s.vouchers.EXPECT().Activate(gomock.Any(), gomock.Any(), id).Return(nil, apperror.ErrVoucherExpired())

	w := s.do(http.MethodPost, "/api/v1/vouchers/"+id.String()+"/activate", "customer", "")

	assert.Equal(t, http.StatusGone, w.Code)
	assert.Equal(t, "EXP_001", errorCode(t, w))
}

// --- Redemptions ---

func TestRequestRedemption_NormalizesCode(t *testing.T) {
	s := newTestServer(t)
	s.redemptions.EXPECT().Request(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req ports.RedemptionRequest) (*domain.Redemption, error) {
			assert.Equal(t, "PP-ABCDEFGHIJK", req.VoucherCode)
			assert.Equal(t, vendorUser, req.Principal.UserID)
			assert.True(t, req.Amount.Equal(dec("150")))
			return testRedemption(domain.RedemptionStatusPending), nil
		})

	w := s.do(http.MethodPost, "/api/v1/vendor/redemptions", "vendor", `{"voucher_code":" pp-abcdefghijk ","amount":"150.00"}`)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "PENDING", dataOf(t, w)["status"])
}

func TestRequestRedemption_BadCode(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/api/v1/vendor/redemptions", "vendor", `{"voucher_code":"PP-SHORT","amount":"150"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRequestRedemption_ExceedsAvailable(t *testing.T) {
	s := newTestServer(t)
	s.redemptions.EXPECT().Request(gomock.Any(), gomock.Any()).Return(nil, apperror.ErrAmountExceedsBalance())

	w := s.do(http.MethodPost, "/api/v1/vendor/redemptions", "vendor", `{"voucher_code":"PP-ABCDEFGHIJK","amount":"80"}`)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "FUNDS_002", errorCode(t, w))
}

func TestConfirmRedemption(t *testing.T) {
	s := newTestServer(t)
	r := testRedemption(domain.RedemptionStatusRedeemed)
	resolved := time.Now().UTC()
	r.ResolvedAt = &resolved
	s.redemptions.EXPECT().Confirm(gomock.Any(), domain.Principal{UserID: customerID, Role: domain.RoleCustomer}, r.ID).Return(r, nil)

	w := s.do(http.MethodPost, "/api/v1/redemptions/"+r.ID.String()+"/confirm", "customer", "")

	assert.Equal(t, http.StatusOK, w.Code)
	data := dataOf(t, w)
	assert.Equal(t, "REDEEMED", data["status"])
	assert.NotEmpty(t, data["resolved_at"])
}

func TestConfirmRedemption_AlreadyTerminal(t *testing.T) {
	s := newTestServer(t)
	id := uuid.New()
	s.redemptions.EXPECT().Confirm(gomock.Any(), gomock.Any(), id).Return(nil, apperror.ErrAlreadyTerminal())

	w := s.do(http.MethodPost, "/api/v1/redemptions/"+id.String()+"/confirm", "customer", "")

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "STATE_003", errorCode(t, w))
}

func TestCancelRedemption(t *testing.T) {
	s := newTestServer(t)
	r := testRedemption(domain.RedemptionStatusCancelled)
	reason := domain.CancelReasonCustomer
	r.CancelReason = &reason
	s.redemptions.EXPECT().Cancel(gomock.Any(), gomock.Any(), r.ID).Return(r, nil)

	w := s.do(http.MethodPost, "/api/v1/redemptions/"+r.ID.String()+"/cancel", "customer", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "CUSTOMER", dataOf(t, w)["cancel_reason"])
}

func TestGetRedemption_VendorAllowed(t *testing.T) {
	s := newTestServer(t)
	r := testRedemption(domain.RedemptionStatusPending)
	s.redemptions.EXPECT().Get(gomock.Any(), domain.Principal{UserID: vendorUser, Role: domain.RoleVendor}, r.ID).Return(r, nil)

	w := s.do(http.MethodGet, "/api/v1/redemptions/"+r.ID.String(), "vendor", "")

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestListPending(t *testing.T) {
	s := newTestServer(t)
	s.redemptions.EXPECT().ListPending(gomock.Any(), gomock.Any()).
		Return([]domain.Redemption{*testRedemption(domain.RedemptionStatusPending), *testRedemption(domain.RedemptionStatusPending)}, nil)

	w := s.do(http.MethodGet, "/api/v1/redemptions/pending", "customer", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, listOf(t, w), 2)
}

// --- Vendor ---

func TestVendorHistory_StatusFilter(t *testing.T) {
	s := newTestServer(t)
	s.vendors.EXPECT().History(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, _ domain.Principal, f ports.RedemptionFilter) ([]domain.Redemption, error) {
			require.NotNil(t, f.Status)
			assert.Equal(t, domain.RedemptionStatusRedeemed, *f.Status)
			assert.Empty(t, f.Code)
			return []domain.Redemption{*testRedemption(domain.RedemptionStatusRedeemed)}, nil
		})

	w := s.do(http.MethodGet, "/api/v1/vendor/redemptions?status=REDEEMED", "vendor", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, listOf(t, w), 1)
}

func TestVendorHistory_CodeFilter(t *testing.T) {
	s := newTestServer(t)
	s.vendors.EXPECT().History(gomock.Any(), gomock.Any(), ports.RedemptionFilter{Code: "XYZ9"}).
		Return([]domain.Redemption{}, nil)

	w := s.do(http.MethodGet, "/api/v1/vendor/redemptions?code=+xyz9+", "vendor", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, listOf(t, w))
}

func TestVendorHistory_NotApproved(t *testing.T) {
	s := newTestServer(t)
	s.vendors.EXPECT().History(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, apperror.ErrVendorNotApproved())

	w := s.do(http.MethodGet, "/api/v1/vendor/redemptions", "vendor", "")

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "AUTH_003", errorCode(t, w))
}

func TestVendorBalanceAndPayout(t *testing.T) {
	s := newTestServer(t)
	vendorID := uuid.New()
	s.vendors.EXPECT().Balance(gomock.Any(), gomock.Any()).
		Return(&domain.VendorFinance{VendorID: vendorID, Balance: dec("350"), UpdatedAt: time.Now()}, nil)
	s.vendors.EXPECT().Payout(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, _ domain.Principal, amount decimal.Decimal) (*domain.VendorFinance, error) {
			assert.True(t, amount.Equal(dec("100")))
			return &domain.VendorFinance{VendorID: vendorID, Balance: dec("250"), UpdatedAt: time.Now()}, nil
		})

	w := s.do(http.MethodGet, "/api/v1/vendor/balance", "vendor", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "350.00", dataOf(t, w)["balance"])

	w = s.do(http.MethodPost, "/api/v1/vendor/payouts", "vendor", `{"amount":"100"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "250.00", dataOf(t, w)["balance"])
}

func TestPayout_InsufficientFunds(t *testing.T) {
	s := newTestServer(t)
	s.vendors.EXPECT().Payout(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, apperror.ErrInsufficientFunds())

	w := s.do(http.MethodPost, "/api/v1/vendor/payouts", "vendor", `{"amount":"10000"}`)

	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Equal(t, "FUNDS_001", errorCode(t, w))
}

func TestListApprovedVendors(t *testing.T) {
	s := newTestServer(t)
	s.vendors.EXPECT().ListApproved(gomock.Any(), domain.CategoryHardware, "").Return([]domain.Vendor{
		{ID: uuid.New(), BusinessName: "Bolt & Nut", Category: domain.CategoryHardware, City: "Tamale",
			GPSCode: "NT-0012-3456", PhoneNumber: "+233241112222", Status: domain.VendorStatusApproved},
	}, nil)
	s.vendors.EXPECT().ListApproved(gomock.Any(), domain.CategoryHardware, "tamale").Return([]domain.Vendor{}, nil)

	w := s.do(http.MethodGet, "/api/v1/vendors/approved/hardware", "customer", "")
	assert.Equal(t, http.StatusOK, w.Code)
	vendors := listOf(t, w)
	require.Len(t, vendors, 1)
	vendor := vendors[0].(map[string]interface{})
	assert.Equal(t, "Bolt & Nut", vendor["business_name"])
	assert.Equal(t, "Tamale", vendor["city"])
	assert.Equal(t, "NT-0012-3456", vendor["gps_code"])
	assert.Equal(t, "+233241112222", vendor["phone_number"])

	w = s.do(http.MethodGet, "/api/v1/vendors/approved/hardware?city=tamale", "customer", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, listOf(t, w))

	w = s.do(http.MethodGet, "/api/v1/vendors/approved/grocery", "vendor", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VAL_004", errorCode(t, w))
}

// --- Health, docs, audit ---

func TestHealthCheck(t *testing.T) {
	ctrl := gomock.NewController(t)
	healthy := mocks.NewMockHealthChecker(ctrl)
	healthy.EXPECT().Ping(gomock.Any()).Return(nil).AnyTimes()
	healthy.EXPECT().Name().Return("postgresql").AnyTimes()
	broken := mocks.NewMockHealthChecker(ctrl)
	broken.EXPECT().Ping(gomock.Any()).Return(errors.New("connection refused")).AnyTimes()
	broken.EXPECT().Name().Return("redis").AnyTimes()

	s := newTestServer(t, func(d *RouterDeps) { d.HealthCheckers = []ports.HealthChecker{healthy} })
	w := s.do(http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"healthy"`)

	s = newTestServer(t, func(d *RouterDeps) { d.HealthCheckers = []ports.HealthChecker{healthy, broken} })
	w = s.do(http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "degraded")
	assert.Contains(t, w.Body.String(), "connection refused")
}

func TestAPIDocs(t *testing.T) {
	s := newTestServer(t)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/docs/spec", "", "").Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/docs", "", "").Code)

	s = newTestServer(t, func(d *RouterDeps) { d.APISpec = []byte("openapi: 3.0.3\n") })
	w := s.do(http.MethodGet, "/docs/spec", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "openapi: 3.0.3\n", w.Body.String())
}

func TestRouter_AuditsSuccessfulWrites(t *testing.T) {
	ctrl := gomock.NewController(t)
	audit := mocks.NewMockAuditService(ctrl)
	s := newTestServer(t, func(d *RouterDeps) { d.AuditSvc = audit })

	r := testRedemption(domain.RedemptionStatusCancelled)
	s.redemptions.EXPECT().Cancel(gomock.Any(), gomock.Any(), r.ID).Return(r, nil)
	audit.EXPECT().Log(gomock.Any(), gomock.Any()).Do(func(_ context.Context, entry *domain.AuditLog) {
		assert.Equal(t, domain.AuditActionRedemptionCancel, entry.Action)
		assert.Equal(t, r.ID.String(), entry.ResourceID)
		require.NotNil(t, entry.ActorID)
		assert.Equal(t, customerID, *entry.ActorID)
	})

	w := s.do(http.MethodPost, "/api/v1/redemptions/"+r.ID.String()+"/cancel", "customer", "")
	assert.Equal(t, http.StatusOK, w.Code)
}
