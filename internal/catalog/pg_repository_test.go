package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPgServicesForProduct(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	repo := NewPgRepository(mock)

	id := uuid.New()
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("JOIN product_services").
		WithArgs("combi-boiler-30kw").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "description", "base_price", "duration_minutes", "created_at"}).
			AddRow(id, "Boiler installation", "Remove old unit and fit new", "450.00", 240, created))

	services, err := repo.ServicesForProduct(context.Background(), "combi-boiler-30kw")
	require.NoError(t, err)
	require.Len(t, services, 1)
	assert.Equal(t, id, services[0].ID)
	assert.True(t, services[0].BasePrice.Equal(decimal.NewFromInt(450)))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgGetServiceNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	repo := NewPgRepository(mock)

	mock.ExpectQuery("FROM services s").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "description", "base_price", "duration_minutes", "created_at"}))

	_, err = repo.GetService(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrServiceNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgReplaceProviderServicesUnknownService(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	repo := NewPgRepository(mock)

	providerID := uuid.New()
	serviceID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM provider_services").
		WithArgs(providerID).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectExec("INSERT INTO provider_services").
		WillReturnError(&pgconn.PgError{Code: "23503"})
	mock.ExpectRollback()

	err = repo.ReplaceProviderServices(context.Background(), providerID, []ProviderService{
		{ProviderID: providerID, ServiceID: serviceID, ExperienceLevel: LevelExpert},
	})
	assert.ErrorIs(t, err, ErrServiceNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgReplaceProviderServicesCommits(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	repo := NewPgRepository(mock)

	providerID := uuid.New()
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM provider_services").
		WithArgs(providerID).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec("INSERT INTO provider_services").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO provider_services").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	price := decimal.RequireFromString("99.50")
	err = repo.ReplaceProviderServices(context.Background(), providerID, []ProviderService{
		{ServiceID: uuid.New(), CustomPrice: &price, ExperienceLevel: LevelExpert},
		{ServiceID: uuid.New(), ExperienceLevel: LevelBeginner},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgCreateServiceLinksProductsInOneTx(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	repo := NewPgRepository(mock)

	id := uuid.New()
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO services").
		WithArgs(id, "Boiler installation", "", "450", 240).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "description", "base_price", "duration_minutes", "created_at"}).
			AddRow(id, "Boiler installation", "", "450.00", 240, created))
	mock.ExpectExec("INSERT INTO product_services").
		WithArgs("combi-boiler-30kw", id).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO product_services").
		WithArgs("system-boiler-18kw", id).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	svc, err := repo.CreateService(context.Background(), Service{
		ID:              id,
		Name:            "Boiler installation",
		BasePrice:       decimal.NewFromInt(450),
		DurationMinutes: 240,
	}, []string{"combi-boiler-30kw", "system-boiler-18kw"})
	require.NoError(t, err)
	assert.Equal(t, id, svc.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgCreateServiceRollsBackOnLinkFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	repo := NewPgRepository(mock)

	id := uuid.New()
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO services").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "description", "base_price", "duration_minutes", "created_at"}).
			AddRow(id, "Annual service", "", "89.99", 60, created))
	mock.ExpectExec("INSERT INTO product_services").
		WithArgs("combi-boiler-30kw", id).
		WillReturnError(&pgconn.PgError{Code: "40P01"})
	mock.ExpectRollback()

	_, err = repo.CreateService(context.Background(), Service{
		ID:              id,
		Name:            "Annual service",
		BasePrice:       decimal.RequireFromString("89.99"),
		DurationMinutes: 60,
	}, []string{"combi-boiler-30kw"})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
