package postgres

import (
	"context"
	"testing"
	"time"

	"purposepay/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vendorColumnNames() []string {
	return []string{"id", "user_id", "business_name", "category", "city", "gps_code", "phone_number", "status", "created_at"}
}

func newTestVendor(status domain.VendorStatus) *domain.Vendor {
	return &domain.Vendor{
		ID:           uuid.New(),
		UserID:       uuid.New(),
		BusinessName: "Corner Pharmacy",
		Category:     domain.CategoryPharmacy,
		City:         "Kumasi",
		GPSCode:      "AK-039-5028",
		PhoneNumber:  "+233201234567",
		Status:       status,
		CreatedAt:    time.Now().UTC().Truncate(time.Microsecond),
	}
}

func vendorRow(v *domain.Vendor) []any {
	return []any{v.ID, v.UserID, v.BusinessName, v.Category, v.City, v.GPSCode, v.PhoneNumber, v.Status, v.CreatedAt}
}

func TestVendorRepo_GetByUserID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewVendorRepo(mock)
	v := newTestVendor(domain.VendorStatusApproved)

	mock.ExpectQuery("SELECT .+ FROM vendors WHERE user_id").
		WithArgs(v.UserID).
		WillReturnRows(pgxmock.NewRows(vendorColumnNames()).
			AddRow(vendorRow(v)...))

	result, err := repo.GetByUserID(context.Background(), v.UserID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.IsApproved())
	assert.Equal(t, domain.CategoryPharmacy, result.Category)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVendorRepo_GetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewVendorRepo(mock)
	id := uuid.New()

	mock.ExpectQuery("SELECT .+ FROM vendors WHERE id").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(vendorColumnNames()))

	result, err := repo.GetByID(context.Background(), id)
	assert.NoError(t, err)
	assert.Nil(t, result)
}

func TestVendorRepo_ListApproved(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewVendorRepo(mock)
	v := newTestVendor(domain.VendorStatusApproved)

	mock.ExpectQuery("SELECT .+ FROM vendors WHERE category = .+ AND status = .+ ORDER BY business_name").
		WithArgs(domain.CategoryPharmacy, domain.VendorStatusApproved).
		WillReturnRows(pgxmock.NewRows(vendorColumnNames()).
			AddRow(vendorRow(v)...))

	result, err := repo.ListApproved(context.Background(), domain.CategoryPharmacy, "")
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, "Corner Pharmacy", result[0].BusinessName)
	assert.Equal(t, "AK-039-5028", result[0].GPSCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVendorRepo_ListApproved_ByCity(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewVendorRepo(mock)
	v := newTestVendor(domain.VendorStatusApproved)

	mock.ExpectQuery("SELECT .+ FROM vendors WHERE category = .+ AND status = .+ AND lower\\(city\\) = lower\\(\\$3\\) ORDER BY business_name").
		WithArgs(domain.CategoryPharmacy, domain.VendorStatusApproved, "KUMASI").
		WillReturnRows(pgxmock.NewRows(vendorColumnNames()).
			AddRow(vendorRow(v)...))

	result, err := repo.ListApproved(context.Background(), domain.CategoryPharmacy, "KUMASI")
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, "Kumasi", result[0].City)
	assert.Equal(t, "+233201234567", result[0].PhoneNumber)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVendorFinanceRepo_Provision(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewVendorFinanceRepo(mock)
	vendorID := uuid.New()

	mock.ExpectExec("INSERT INTO vendor_finances .+ ON CONFLICT \\(vendor_id\\) DO NOTHING").
		WithArgs(vendorID).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	assert.NoError(t, repo.Provision(context.Background(), vendorID))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVendorFinanceRepo_GetByVendorIDForUpdate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewVendorFinanceRepo(mock)
	vendorID := uuid.New()
	now := time.Now().UTC().Truncate(time.Microsecond)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM vendor_finances WHERE vendor_id .+ FOR UPDATE").
		WithArgs(vendorID).
		WillReturnRows(pgxmock.NewRows([]string{"vendor_id", "balance", "updated_at"}).
			AddRow(vendorID, decimal.RequireFromString("150.00"), now))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	f, err := repo.GetByVendorIDForUpdate(context.Background(), tx, vendorID)
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, "150.00", f.Balance.StringFixed(2))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVendorFinanceRepo_GetByVendorID_Missing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewVendorFinanceRepo(mock)
	vendorID := uuid.New()

	mock.ExpectQuery("SELECT .+ FROM vendor_finances WHERE vendor_id").
		WithArgs(vendorID).
		WillReturnRows(pgxmock.NewRows([]string{"vendor_id", "balance", "updated_at"}))

	f, err := repo.GetByVendorID(context.Background(), vendorID)
	assert.NoError(t, err)
	assert.Nil(t, f)
}

func TestVendorFinanceRepo_UpdateBalance(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewVendorFinanceRepo(mock)
	vendorID := uuid.New()
	balance := decimal.RequireFromString("300.00")

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE vendor_finances SET balance").
		WithArgs(balance, vendorID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	assert.NoError(t, repo.UpdateBalance(context.Background(), tx, vendorID, balance))
	assert.NoError(t, mock.ExpectationsWereMet())
}
