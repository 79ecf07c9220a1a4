package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/hackgods/service-provider-scheduling/internal/db"
)

type PgRepository struct {
	pool db.Pool
}

func NewPgRepository(pool db.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const serviceColumns = `s.id, s.name, s.description, s.base_price::text, s.duration_minutes, s.created_at`

func scanService(row pgx.Row) (*Service, error) {
	var (
		s     Service
		price string
	)
	if err := row.Scan(&s.ID, &s.Name, &s.Description, &price, &s.DurationMinutes, &s.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrServiceNotFound
		}
		return nil, err
	}
	var err error
	if s.BasePrice, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("parse base_price %q: %w", price, err)
	}
	return &s, nil
}

func collectServices(rows pgx.Rows) ([]Service, error) {
	defer rows.Close()
	out := []Service{}
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (r *PgRepository) CreateService(ctx context.Context, s Service, productIDs []string) (*Service, error) {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin create service: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	created, err := scanService(tx.QueryRow(ctx, `
		INSERT INTO services AS s (id, name, description, base_price, duration_minutes, created_at)
		VALUES ($1, $2, $3, $4::numeric, $5, now())
		RETURNING `+serviceColumns,
		s.ID, s.Name, s.Description, s.BasePrice.String(), s.DurationMinutes,
	))
	if err != nil {
		return nil, fmt.Errorf("insert service: %w", err)
	}

	for _, pid := range productIDs {
		_, err := tx.Exec(ctx, `
			INSERT INTO product_services (product_id, service_id)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, pid, created.ID)
		if err != nil {
			return nil, fmt.Errorf("link product %s: %w", pid, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit create service: %w", err)
	}
	return created, nil
}

func (r *PgRepository) GetService(ctx context.Context, id uuid.UUID) (*Service, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+serviceColumns+` FROM services s WHERE s.id = $1`, id)
	return scanService(row)
}

func (r *PgRepository) ListServices(ctx context.Context) ([]Service, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+serviceColumns+` FROM services s ORDER BY s.name, s.id`)
	if err != nil {
		return nil, fmt.Errorf("query services: %w", err)
	}
	return collectServices(rows)
}

func (r *PgRepository) ServicesForProduct(ctx context.Context, productID string) ([]Service, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+serviceColumns+`
		FROM services s
		JOIN product_services ps ON ps.service_id = s.id
		WHERE ps.product_id = $1
		ORDER BY s.name, s.id
	`, productID)
	if err != nil {
		return nil, fmt.Errorf("query product services: %w", err)
	}
	return collectServices(rows)
}

const offeringQuery = `
	SELECT ` + serviceColumns + `, ps.custom_price::text, ps.experience_level
	FROM provider_services ps
	JOIN services s ON s.id = ps.service_id
	WHERE ps.provider_id = $1`

func scanOffering(row pgx.Row) (*Offering, error) {
	var (
		o      Offering
		price  string
		custom *string
		level  string
	)
	err := row.Scan(
		&o.Service.ID, &o.Service.Name, &o.Service.Description, &price,
		&o.Service.DurationMinutes, &o.Service.CreatedAt, &custom, &level,
	)
	if err != nil {
		return nil, err
	}
	if o.Service.BasePrice, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("parse base_price %q: %w", price, err)
	}
	if custom != nil {
		d, err := decimal.NewFromString(*custom)
		if err != nil {
			return nil, fmt.Errorf("parse custom_price %q: %w", *custom, err)
		}
		o.CustomPrice = &d
	}
	o.ExperienceLevel = ExperienceLevel(level)
	return &o, nil
}

func (r *PgRepository) ProviderOfferings(ctx context.Context, providerID uuid.UUID) ([]Offering, error) {
	rows, err := r.pool.Query(ctx, offeringQuery+` ORDER BY s.name, s.id`, providerID)
	if err != nil {
		return nil, fmt.Errorf("query provider services: %w", err)
	}
	defer rows.Close()

	out := []Offering{}
	for rows.Next() {
		o, err := scanOffering(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func (r *PgRepository) ProviderOffering(ctx context.Context, providerID, serviceID uuid.UUID) (*Offering, error) {
	o, err := scanOffering(r.pool.QueryRow(ctx, offeringQuery+` AND ps.service_id = $2`, providerID, serviceID))
	if err == nil {
		return o, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get provider service: %w", err)
	}
	if _, err := r.GetService(ctx, serviceID); err != nil {
		return nil, err
	}
	return nil, ErrServiceNotAssigned
}

func (r *PgRepository) ReplaceProviderServices(ctx context.Context, providerID uuid.UUID, assignments []ProviderService) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace services: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM provider_services WHERE provider_id = $1`, providerID); err != nil {
		return fmt.Errorf("clear provider services: %w", err)
	}

	for _, a := range assignments {
		var custom *string
		if a.CustomPrice != nil {
			s := a.CustomPrice.String()
			custom = &s
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO provider_services (provider_id, service_id, custom_price, experience_level)
			VALUES ($1, $2, $3::numeric, $4)
		`, providerID, a.ServiceID, custom, string(a.ExperienceLevel))
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23503" {
				return ErrServiceNotFound
			}
			return fmt.Errorf("insert provider service: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit replace services: %w", err)
	}
	return nil
}
