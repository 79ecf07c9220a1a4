package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/hackgods/service-provider-scheduling/internal/booking"
)

var (
	ErrInvalidQuantity   = errors.New("quantity must be at least 1")
	ErrInvalidAssignment = errors.New("invalid service assignment")
)

// ProviderLookup resolves providers. *booking.Service implements it.
type ProviderLookup interface {
	GetProvider(ctx context.Context, id uuid.UUID) (*booking.Provider, error)
}

type Catalog struct {
	repo      Repository
	providers ProviderLookup
	logger    *zap.Logger
}

func NewCatalog(repo Repository, providers ProviderLookup, logger *zap.Logger) *Catalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Catalog{repo: repo, providers: providers, logger: logger}
}

type NewService struct {
	Name            string
	Description     string
	BasePrice       decimal.Decimal
	DurationMinutes int
	ProductIDs      []string
}

func (c *Catalog) CreateService(ctx context.Context, in NewService) (*Service, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidAssignment)
	}
	if in.BasePrice.IsNegative() {
		return nil, fmt.Errorf("%w: base price must not be negative", ErrInvalidAssignment)
	}

	products := make([]string, 0, len(in.ProductIDs))
	for _, pid := range in.ProductIDs {
		pid = strings.TrimSpace(pid)
		if pid == "" {
			return nil, fmt.Errorf("%w: product id must not be blank", ErrInvalidAssignment)
		}
		products = append(products, pid)
	}

	created, err := c.repo.CreateService(ctx, Service{
		Name:            strings.TrimSpace(in.Name),
		Description:     strings.TrimSpace(in.Description),
		BasePrice:       in.BasePrice,
		DurationMinutes: in.DurationMinutes,
	}, products)
	if err != nil {
		return nil, fmt.Errorf("create service: %w", err)
	}
	return created, nil
}

func (c *Catalog) ListServices(ctx context.Context) ([]Service, error) {
	return c.repo.ListServices(ctx)
}

// ServicesForProduct lists what can be booked together with a product.
func (c *Catalog) ServicesForProduct(ctx context.Context, productID string) ([]Service, error) {
	services, err := c.repo.ServicesForProduct(ctx, strings.TrimSpace(productID))
	if err != nil {
		return nil, fmt.Errorf("services for product: %w", err)
	}
	return services, nil
}

func (c *Catalog) ProviderOfferings(ctx context.Context, providerID uuid.UUID) ([]Offering, error) {
	offerings, err := c.repo.ProviderOfferings(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("provider offerings: %w", err)
	}
	return offerings, nil
}

type Assignment struct {
	ServiceID       uuid.UUID
	CustomPrice     *decimal.Decimal
	ExperienceLevel ExperienceLevel
}

// AssignServices replaces the provider's service list.
func (c *Catalog) AssignServices(ctx context.Context, providerID uuid.UUID, in []Assignment) ([]Offering, error) {
	if _, err := c.providers.GetProvider(ctx, providerID); err != nil {
		return nil, err
	}

	seen := make(map[uuid.UUID]bool, len(in))
	assignments := make([]ProviderService, 0, len(in))
	for i, a := range in {
		if seen[a.ServiceID] {
			return nil, fmt.Errorf("%w: services[%d] is listed twice", ErrInvalidAssignment, i)
		}
		seen[a.ServiceID] = true

		level := a.ExperienceLevel
		if level == "" {
			level = LevelIntermediate
		}
		if !level.Valid() {
			return nil, fmt.Errorf("%w: services[%d] has unknown experience level %q", ErrInvalidAssignment, i, level)
		}
		if a.CustomPrice != nil && a.CustomPrice.IsNegative() {
			return nil, fmt.Errorf("%w: services[%d] custom price must not be negative", ErrInvalidAssignment, i)
		}
		assignments = append(assignments, ProviderService{
			ProviderID:      providerID,
			ServiceID:       a.ServiceID,
			CustomPrice:     a.CustomPrice,
			ExperienceLevel: level,
		})
	}

	if err := c.repo.ReplaceProviderServices(ctx, providerID, assignments); err != nil {
		return nil, fmt.Errorf("replace provider services: %w", err)
	}
	c.logger.Info("provider services replaced",
		zap.String("provider_id", providerID.String()),
		zap.Int("count", len(assignments)),
	)
	return c.repo.ProviderOfferings(ctx, providerID)
}

type CostRequest struct {
	ProviderID uuid.UUID
	ServiceID  uuid.UUID
	Quantity   int
}

type Cost struct {
	UnitPrice     decimal.Decimal
	Quantity      int
	Subtotal      decimal.Decimal
	ServiceCharge decimal.Decimal
	Total         decimal.Decimal
}

// CalculateCost prices quantity units of a service with one provider:
// unit price times quantity plus the provider's service charge.
func (c *Catalog) CalculateCost(ctx context.Context, req CostRequest) (*Cost, error) {
	if req.Quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	provider, err := c.providers.GetProvider(ctx, req.ProviderID)
	if err != nil {
		return nil, err
	}
	offering, err := c.repo.ProviderOffering(ctx, req.ProviderID, req.ServiceID)
	if err != nil {
		return nil, err
	}

	unit := offering.Price()
	subtotal := unit.Mul(decimal.NewFromInt(int64(req.Quantity)))
	return &Cost{
		UnitPrice:     unit,
		Quantity:      req.Quantity,
		Subtotal:      subtotal,
		ServiceCharge: provider.ServiceCharge,
		Total:         subtotal.Add(provider.ServiceCharge),
	}, nil
}
