package service

import (
	"context"

	"purposepay/internal/core/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// SimulatedGateway implements ports.PaymentGateway by approving every call
// instantly. It stands in for a real processor.
type SimulatedGateway struct {
	log zerolog.Logger
}

// NewSimulatedGateway creates a SimulatedGateway.
func NewSimulatedGateway(log zerolog.Logger) *SimulatedGateway {
	return &SimulatedGateway{log: log}
}

func (g *SimulatedGateway) Charge(ctx context.Context, customerID uuid.UUID, amount decimal.Decimal, reference string) (string, error) {
	return g.approve("charge", customerID, amount, reference), nil
}

func (g *SimulatedGateway) Authorize(ctx context.Context, customerID uuid.UUID, amount decimal.Decimal, reference string) (string, error) {
	return g.approve("authorize", customerID, amount, reference), nil
}

func (g *SimulatedGateway) Disburse(ctx context.Context, vendorID uuid.UUID, amount decimal.Decimal, reference string) (string, error) {
	return g.approve("disburse", vendorID, amount, reference), nil
}

func (g *SimulatedGateway) Refund(ctx context.Context, customerID uuid.UUID, amount decimal.Decimal, chargeRef string) (string, error) {
	return g.approve("refund", customerID, amount, chargeRef), nil
}

func (g *SimulatedGateway) approve(op string, party uuid.UUID, amount decimal.Decimal, reference string) string {
	ref := "sim_" + uuid.NewString()
	g.log.Debug().
		Str("op", op).
		Str("party", party.String()).
		Str("amount", domain.FormatMoney(amount)).
		Str("reference", reference).
		Str("gateway_ref", ref).
		Msg("simulated gateway approved")
	return ref
}
