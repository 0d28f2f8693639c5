package billing

import "context"

// ParametersRepository reads the per-client billing configuration.
type ParametersRepository interface {
	// ListActive returns every active parameter set effective at the given
	// reference period.
	ListActive(ctx context.Context, period string) ([]*ClientParameters, error)

	// PricesForClient returns the client's full price table.
	PricesForClient(ctx context.Context, clientName string) ([]*PriceEntry, error)
}

// DemonstrativoRepository persists computed statements.
type DemonstrativoRepository interface {
	Create(ctx context.Context, d *Demonstrativo) error

	// GetByClientPeriod returns the persisted statement, or
	// ErrDemonstrativoNotFound.
	GetByClientPeriod(ctx context.Context, clientName, period string) (*Demonstrativo, error)

	ListByPeriod(ctx context.Context, period string) ([]*Demonstrativo, error)

	// DeleteByClientPeriod removes a superseded statement before recompute.
	DeleteByClientPeriod(ctx context.Context, clientName, period string) error
}
