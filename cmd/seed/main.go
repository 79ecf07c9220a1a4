package main

import (
	"context"
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/hackgods/service-provider-scheduling/internal/booking"
	"github.com/hackgods/service-provider-scheduling/internal/catalog"
	"github.com/hackgods/service-provider-scheduling/internal/config"
	"github.com/hackgods/service-provider-scheduling/internal/db"
	"github.com/hackgods/service-provider-scheduling/pkg/logger"
)

const (
	providerCount       = 100
	servicesPerProvider = 3
	productsPerService  = 2
)

var categories = []string{
	"boiler-installation",
	"boiler-repair",
	"annual-service",
	"radiator-fitting",
	"gas-safety",
}

var cities = []string{"London", "Leeds", "Manchester", "Bristol", "Glasgow", "Cardiff"}

var serviceNames = []string{
	"Combi boiler installation",
	"System boiler installation",
	"Boiler annual service",
	"Gas safety certificate",
	"Power flush",
	"Radiator replacement",
	"Thermostat fitting",
	"Pressure relief valve swap",
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("config load error: " + err.Error())
	}
	log := logger.Must(cfg.Env, cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	if cfg.StoreDriver != config.StorePostgres {
		log.Fatal("seed needs STORE_DRIVER=postgres")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	scheduling := booking.NewService(booking.NewPgRepository(pool), nil, cfg, booking.WithLogger(log.Named("booking")))
	cat := catalog.NewCatalog(catalog.NewPgRepository(pool), scheduling, log.Named("catalog"))

	seedCtx := context.Background()
	services, err := seedServices(seedCtx, log, cat)
	if err != nil {
		log.Fatal("seed services", zap.Error(err))
	}
	if err := seedProviders(seedCtx, log, scheduling, cat, services, providerCount); err != nil {
		log.Fatal("seed providers", zap.Error(err))
	}

	log.Info("seed complete")
}

func seedServices(ctx context.Context, log *zap.Logger, cat *catalog.Catalog) ([]catalog.Service, error) {
	log.Info("seeding services", zap.Int("count", len(serviceNames)))

	out := make([]catalog.Service, 0, len(serviceNames))
	for _, name := range serviceNames {
		products := make([]string, 0, productsPerService)
		for range productsPerService {
			products = append(products, fmt.Sprintf("SKU-%06d", gofakeit.Number(1, 999999)))
		}

		svc, err := cat.CreateService(ctx, catalog.NewService{
			Name:            name,
			Description:     gofakeit.Sentence(10),
			BasePrice:       decimal.NewFromFloat(gofakeit.Price(60, 2500)).Round(2),
			DurationMinutes: 30 * gofakeit.Number(1, 8),
			ProductIDs:      products,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, *svc)
	}
	return out, nil
}

func seedProviders(ctx context.Context, log *zap.Logger, scheduling *booking.Service, cat *catalog.Catalog, services []catalog.Service, count int) error {
	log.Info("seeding providers", zap.Int("count", count))

	levels := []catalog.ExperienceLevel{catalog.LevelBeginner, catalog.LevelIntermediate, catalog.LevelExpert}

	for i := range count {
		provider, err := scheduling.CreateProvider(ctx, booking.NewProvider{
			Name:                   gofakeit.Company(),
			Category:               categories[gofakeit.Number(0, len(categories)-1)],
			City:                   cities[gofakeit.Number(0, len(cities)-1)],
			Area:                   gofakeit.Street(),
			ServiceCharge:          decimal.NewFromInt(int64(5 * gofakeit.Number(0, 10))),
			MaxDailyOrders:         gofakeit.Number(3, 8),
			Timezone:               "Europe/London",
			WorkingHours:           randomWeek(),
			AvgServiceDuration:     30 * gofakeit.Number(1, 4),
			MinAdvanceBookingHours: gofakeit.Number(2, 48),
		})
		if err != nil {
			return err
		}

		assignments := make([]catalog.Assignment, 0, servicesPerProvider)
		seen := map[int]bool{}
		for len(assignments) < servicesPerProvider && len(assignments) < len(services) {
			idx := gofakeit.Number(0, len(services)-1)
			if seen[idx] {
				continue
			}
			seen[idx] = true

			a := catalog.Assignment{
				ServiceID:       services[idx].ID,
				ExperienceLevel: levels[gofakeit.Number(0, len(levels)-1)],
			}
			if gofakeit.Bool() {
				price := services[idx].BasePrice.Mul(decimal.NewFromFloat(gofakeit.Float64Range(0.85, 1.2))).Round(2)
				a.CustomPrice = &price
			}
			assignments = append(assignments, a)
		}
		if _, err := cat.AssignServices(ctx, provider.ID, assignments); err != nil {
			return err
		}

		if (i+1)%25 == 0 {
			log.Info("providers seeded", zap.Int("done", i+1), zap.Int("total", count))
		}
	}
	return nil
}

// randomWeek opens Monday to Friday with a random start and finish, and
// Saturday mornings for some providers.
func randomWeek() []booking.DayEntry {
	startHour := gofakeit.Number(7, 9)
	endHour := gofakeit.Number(16, 19)

	week := make([]booking.DayEntry, 0, 7)
	for _, day := range []string{"monday", "tuesday", "wednesday", "thursday", "friday"} {
		week = append(week, booking.DayEntry{
			Day:       day,
			Available: true,
			Start:     fmt.Sprintf("%02d:00", startHour),
			End:       fmt.Sprintf("%02d:00", endHour),
		})
	}
	saturday := booking.DayEntry{Day: "saturday"}
	if gofakeit.Bool() {
		saturday = booking.DayEntry{Day: "saturday", Available: true, Start: "08:00", End: "12:00"}
	}
	return append(week, saturday, booking.DayEntry{Day: "sunday"})
}
