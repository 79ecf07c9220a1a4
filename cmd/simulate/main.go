package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hackgods/service-provider-scheduling/pkg/logger"
)

type SimConfig struct {
	APIBaseURL     string
	AdminToken     string
	Duration       time.Duration
	Workers        int
	ClaimRatio     float64
	CancelRatio    float64
	ReadRatio      float64
	ProviderLimit  int
	DaysAhead      int
	StampedeSize   int
	StampedeRounds int
}

type slotRef struct {
	ProviderID uuid.UUID
	Date       string
	StartTime  string
	EndTime    string
}

type DataPool struct {
	Providers []uuid.UUID
	Slots     []slotRef
	mu        sync.RWMutex
	bookings  []uuid.UUID
}

func (dp *DataPool) AddBooking(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.bookings = append(dp.bookings, id)
}

func (dp *DataPool) TakeRandomBooking(rng *rand.Rand) (uuid.UUID, bool) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	if len(dp.bookings) == 0 {
		return uuid.Nil, false
	}
	idx := rng.Intn(len(dp.bookings))
	id := dp.bookings[idx]
	dp.bookings = slices.Delete(dp.bookings, idx, idx+1)
	return id, true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case success:
		atomic.AddInt64(&om.Success, 1)
	case conflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, minL, maxL, p50, p95, p99 time.Duration) {
	om.mu.Lock()
	latencies := slices.Clone(om.Latencies)
	om.mu.Unlock()

	if len(latencies) == 0 {
		return 0, 0, 0, 0, 0, 0
	}
	slices.Sort(latencies)

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	pct := func(p int) time.Duration {
		idx := len(latencies) * p / 100
		if idx >= len(latencies) {
			idx = len(latencies) - 1
		}
		return latencies[idx]
	}

	return sum / time.Duration(len(latencies)), latencies[0], latencies[len(latencies)-1], pct(50), pct(95), pct(99)
}

type Metrics struct {
	Claim     OperationMetrics
	Cancel    OperationMetrics
	FreeSlots OperationMetrics
	Stampede  OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	log     *zap.Logger
	metrics Metrics

	// stampede rounds with more than one winner
	doubleBooked atomic.Int64
}

func main() {
	_ = godotenv.Load()

	log := logger.Must(getEnv("APP_ENV", "dev"), getEnv("LOG_LEVEL", "info"))
	defer func() { _ = log.Sync() }()

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		log.Fatal("invalid config", zap.Error(err))
	}

	log.Info("simulator starting",
		zap.String("api", cfg.APIBaseURL),
		zap.Duration("duration", cfg.Duration),
		zap.Int("workers", cfg.Workers),
		zap.Float64("claim", cfg.ClaimRatio),
		zap.Float64("cancel", cfg.CancelRatio),
		zap.Float64("read", cfg.ReadRatio),
	)

	sim := &Simulator{
		config: cfg,
		pool:   &DataPool{},
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	err := sim.loadDataPool(ctx)
	cancel()
	if err != nil {
		log.Fatal("load data pool", zap.Error(err))
	}
	log.Info("data pool loaded",
		zap.Int("providers", len(sim.pool.Providers)),
		zap.Int("slots", len(sim.pool.Slots)),
	)

	sim.RunStampede()
	sim.Run()
	sim.PrintReport()

	if sim.doubleBooked.Load() > 0 {
		os.Exit(1)
	}
}

func loadConfig() SimConfig {
	cfg := SimConfig{
		APIBaseURL:     strings.TrimRight(getEnv("SIM_API_BASE_URL", "http://localhost:8080"), "/"),
		AdminToken:     os.Getenv("SIM_ADMIN_TOKEN"),
		Duration:       getDuration("SIM_DURATION", 30*time.Second),
		Workers:        getInt("SIM_WORKERS", 10),
		ClaimRatio:     getFloat("SIM_CLAIM_RATIO", 0.5),
		CancelRatio:    getFloat("SIM_CANCEL_RATIO", 0.1),
		ReadRatio:      getFloat("SIM_READ_RATIO", 0.4),
		ProviderLimit:  getInt("SIM_PROVIDER_LIMIT", 50),
		DaysAhead:      getInt("SIM_DAYS_AHEAD", 14),
		StampedeSize:   getInt("SIM_STAMPEDE_SIZE", 50),
		StampedeRounds: getInt("SIM_STAMPEDE_ROUNDS", 10),
	}

	// Normalize ratios
	total := cfg.ClaimRatio + cfg.CancelRatio + cfg.ReadRatio
	if total > 0 {
		cfg.ClaimRatio /= total
		cfg.CancelRatio /= total
		cfg.ReadRatio /= total
	}
	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.DaysAhead <= 0 || cfg.DaysAhead > 31 {
		return fmt.Errorf("SIM_DAYS_AHEAD must be between 1 and 31")
	}
	return nil
}

// loadDataPool lists providers through the admin API and collects their free
// slots for the next DaysAhead days.
func (s *Simulator) loadDataPool(ctx context.Context) error {
	var list struct {
		Providers []struct {
			ID uuid.UUID `json:"id"`
		} `json:"providers"`
	}
	path := fmt.Sprintf("/admin/service-management?limit=%d", s.config.ProviderLimit)
	if err := s.getJSON(ctx, path, true, &list); err != nil {
		return fmt.Errorf("list providers: %w", err)
	}

	from := time.Now().UTC()
	to := from.AddDate(0, 0, s.config.DaysAhead-1)
	for _, p := range list.Providers {
		s.pool.Providers = append(s.pool.Providers, p.ID)

		var free struct {
			Slots []struct {
				Date      string `json:"date"`
				StartTime string `json:"start_time"`
				EndTime   string `json:"end_time"`
			} `json:"slots"`
		}
		q := url.Values{}
		q.Set("provider_id", p.ID.String())
		q.Set("from_date", from.Format("2006-01-02"))
		q.Set("to_date", to.Format("2006-01-02"))
		if err := s.getJSON(ctx, "/api/services/available-slots?"+q.Encode(), false, &free); err != nil {
			s.log.Warn("skipping provider", zap.String("provider_id", p.ID.String()), zap.Error(err))
			continue
		}
		for _, sl := range free.Slots {
			s.pool.Slots = append(s.pool.Slots, slotRef{ProviderID: p.ID, Date: sl.Date, StartTime: sl.StartTime, EndTime: sl.EndTime})
		}
	}

	if len(s.pool.Providers) == 0 {
		return fmt.Errorf("no providers loaded")
	}
	if len(s.pool.Slots) == 0 {
		return fmt.Errorf("no free slots loaded")
	}
	return nil
}

// RunStampede fires StampedeSize simultaneous claims at one slot per round.
// More than one winner in a round is a double booking.
func (s *Simulator) RunStampede() {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	rounds := min(s.config.StampedeRounds, len(s.pool.Slots))

	for round := range rounds {
		idx := rng.Intn(len(s.pool.Slots))
		slot := s.pool.Slots[idx]
		s.pool.Slots = slices.Delete(s.pool.Slots, idx, idx+1)

		var (
			wg      sync.WaitGroup
			winners atomic.Int64
			gate    = make(chan struct{})
		)
		for range s.config.StampedeSize {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-gate
				id, latency, status := s.claim(context.Background(), slot)
				s.metrics.Stampede.Record(latency, status == http.StatusCreated, status == http.StatusConflict)
				if status == http.StatusCreated {
					winners.Add(1)
					s.pool.AddBooking(id)
				}
			}()
		}
		close(gate)
		wg.Wait()

		switch n := winners.Load(); {
		case n > 1:
			s.doubleBooked.Add(1)
			s.log.Error("slot booked more than once",
				zap.Int("round", round),
				zap.String("provider_id", slot.ProviderID.String()),
				zap.String("slot", slot.Date+" "+slot.StartTime),
				zap.Int64("winners", n),
			)
		case n == 0:
			s.log.Warn("stampede round produced no booking",
				zap.Int("round", round),
				zap.String("provider_id", slot.ProviderID.String()),
				zap.String("slot", slot.Date+" "+slot.StartTime),
			)
		}
	}
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.log.Info("starting mixed load", zap.Duration("duration", s.config.Duration), zap.Int("workers", s.config.Workers))

	var wg sync.WaitGroup
	for i := range s.config.Workers {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.log.Info("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			switch {
			case r < s.config.ClaimRatio:
				s.doClaim(ctx, rng)
			case r < s.config.ClaimRatio+s.config.CancelRatio:
				s.doCancel(ctx, rng)
			default:
				s.doFreeSlots(ctx, rng)
			}
		}
	}
}

func (s *Simulator) doClaim(ctx context.Context, rng *rand.Rand) {
	if len(s.pool.Slots) == 0 {
		return
	}
	slot := s.pool.Slots[rng.Intn(len(s.pool.Slots))]
	id, latency, status := s.claim(ctx, slot)
	if ctx.Err() != nil {
		return
	}
	if status == http.StatusCreated {
		s.pool.AddBooking(id)
	}
	s.metrics.Claim.Record(latency, status == http.StatusCreated, status == http.StatusConflict)
}

func (s *Simulator) claim(ctx context.Context, slot slotRef) (uuid.UUID, time.Duration, int) {
	body, _ := json.Marshal(map[string]string{
		"provider_id": slot.ProviderID.String(),
		"date":        slot.Date,
		"start_time":  slot.StartTime,
		"end_time":    slot.EndTime,
		"order_ref":   "SIM-" + uuid.NewString()[:8],
	})

	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIBaseURL+"/api/services/bookings", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return uuid.Nil, latency, 0
	}
	defer resp.Body.Close()

	var created struct {
		ID uuid.UUID `json:"id"`
	}
	if resp.StatusCode == http.StatusCreated {
		_ = json.NewDecoder(resp.Body).Decode(&created)
	} else {
		_, _ = io.Copy(io.Discard, resp.Body)
	}
	return created.ID, latency, resp.StatusCode
}

func (s *Simulator) doCancel(ctx context.Context, rng *rand.Rand) {
	id, ok := s.pool.TakeRandomBooking(rng)
	if !ok {
		return
	}

	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/admin/service-management/bookings/%s/cancel", s.config.APIBaseURL, id), nil)
	s.authorize(req)

	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if ctx.Err() != nil {
		return
	}

	success, conflict := false, false
	if err == nil {
		defer resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
		conflict = resp.StatusCode == http.StatusConflict
	}
	s.metrics.Cancel.Record(latency, success, conflict)
}

func (s *Simulator) doFreeSlots(ctx context.Context, rng *rand.Rand) {
	providerID := s.pool.Providers[rng.Intn(len(s.pool.Providers))]
	day := time.Now().UTC().AddDate(0, 0, rng.Intn(s.config.DaysAhead)).Format("2006-01-02")

	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/api/services/available-slots?provider_id=%s&from_date=%s", s.config.APIBaseURL, providerID, day), nil)

	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if ctx.Err() != nil {
		return
	}

	success := false
	if err == nil {
		defer resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
	}
	s.metrics.FreeSlots.Record(latency, success, false)
}

func (s *Simulator) getJSON(ctx context.Context, path string, admin bool, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.APIBaseURL+path, nil)
	if err != nil {
		return err
	}
	if admin {
		s.authorize(req)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}

func (s *Simulator) authorize(req *http.Request) {
	if s.config.AdminToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.config.AdminToken)
	}
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Printf("Stampede: %d claims per slot, %d rounds, %d double bookings\n",
		s.config.StampedeSize, s.config.StampedeRounds, s.doubleBooked.Load())
	fmt.Println()

	printOperationReport("Stampede claim", &s.metrics.Stampede)
	printOperationReport("Claim", &s.metrics.Claim)
	printOperationReport("Cancel", &s.metrics.Cancel)
	printOperationReport("Free slots", &s.metrics.FreeSlots)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, minL, maxL, p50, p95, p99 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s p99=%s\n",
		avg.Round(time.Millisecond), minL.Round(time.Millisecond), maxL.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond), p99.Round(time.Millisecond))
	fmt.Println()
}

// Helper functions

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
