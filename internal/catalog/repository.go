package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrServiceNotFound    = errors.New("service not found")
	ErrServiceNotAssigned = errors.New("service not offered by provider")
)

type Repository interface {
	// CreateService stores the service and its product links together; a
	// failed link leaves nothing behind.
	CreateService(ctx context.Context, s Service, productIDs []string) (*Service, error)
	GetService(ctx context.Context, id uuid.UUID) (*Service, error)
	ListServices(ctx context.Context) ([]Service, error)

	ServicesForProduct(ctx context.Context, productID string) ([]Service, error)

	// ProviderOfferings lists a provider's assigned services by name.
	ProviderOfferings(ctx context.Context, providerID uuid.UUID) ([]Offering, error)
	// ProviderOffering returns ErrServiceNotAssigned when the provider does
	// not offer the service.
	ProviderOffering(ctx context.Context, providerID, serviceID uuid.UUID) (*Offering, error)
	// ReplaceProviderServices swaps the provider's whole assignment set.
	ReplaceProviderServices(ctx context.Context, providerID uuid.UUID, assignments []ProviderService) error
}
