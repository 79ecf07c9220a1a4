package booking

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository keeps providers and bookings in process. Each provider
// has its own mutex so claims on different providers never contend.
type MemoryRepository struct {
	mu        sync.RWMutex
	providers map[uuid.UUID]*memProvider
	owners    map[uuid.UUID]uuid.UUID // booking id -> provider id
	events    []EventLog
}

type memProvider struct {
	mu       sync.Mutex
	provider Provider
	deleted  bool
	bookings []*Booking
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		providers: make(map[uuid.UUID]*memProvider),
		owners:    make(map[uuid.UUID]uuid.UUID),
	}
}

func (r *MemoryRepository) entry(id uuid.UUID) (*memProvider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.providers[id]
	return e, ok
}

func cloneProvider(p Provider) *Provider {
	p.WorkingHours = p.WorkingHours.Clone()
	return &p
}

func cloneBooking(b *Booking) *Booking {
	c := *b
	return &c
}

func (r *MemoryRepository) GetProvider(_ context.Context, id uuid.UUID) (*Provider, error) {
	e, ok := r.entry(id)
	if !ok {
		return nil, ErrProviderNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return nil, ErrProviderNotFound
	}
	return cloneProvider(e.provider), nil
}

func (r *MemoryRepository) ListProviders(_ context.Context, filter ProviderFilter) ([]Provider, error) {
	r.mu.RLock()
	entries := make([]*memProvider, 0, len(r.providers))
	for _, e := range r.providers {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	out := make([]Provider, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		p, deleted := e.provider, e.deleted
		e.mu.Unlock()
		if deleted {
			continue
		}
		if filter.City != "" && !strings.EqualFold(p.City, filter.City) {
			continue
		}
		if filter.Category != "" && !strings.EqualFold(p.Category, filter.Category) {
			continue
		}
		out = append(out, *cloneProvider(p))
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})

	if filter.Offset >= len(out) {
		return []Provider{}, nil
	}
	out = out[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *MemoryRepository) CreateProvider(_ context.Context, p Provider) (*Provider, error) {
	now := time.Now().UTC()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.AvailabilityStatus == "" {
		p.AvailabilityStatus = ProviderAvailable
	}
	p.DailyOrdersDate = DateOf(now, p.Location())
	p.CreatedAt = now
	p.UpdatedAt = now

	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.ID] = &memProvider{provider: *cloneProvider(p)}
	return cloneProvider(p), nil
}

func (r *MemoryRepository) DeleteProvider(_ context.Context, id uuid.UUID) error {
	e, ok := r.entry(id)
	if !ok {
		return ErrProviderNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return ErrProviderNotFound
	}
	e.deleted = true
	return nil
}

func (r *MemoryRepository) mutateProvider(id uuid.UUID, fn func(p *Provider)) (*Provider, error) {
	e, ok := r.entry(id)
	if !ok {
		return nil, ErrProviderNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return nil, ErrProviderNotFound
	}
	fn(&e.provider)
	e.provider.UpdatedAt = time.Now().UTC()
	return cloneProvider(e.provider), nil
}

func (r *MemoryRepository) UpdateSchedule(_ context.Context, id uuid.UUID, upd ScheduleUpdate) (*Provider, error) {
	return r.mutateProvider(id, func(p *Provider) {
		p.WorkingHours = upd.WorkingHours.Clone()
		p.AvgServiceDuration = upd.AvgServiceDuration
		p.MinAdvanceBookingHours = upd.MinAdvanceBookingHours
	})
}

func (r *MemoryRepository) UpdateAvailabilityStatus(_ context.Context, id uuid.UUID, status AvailabilityStatus) (*Provider, error) {
	return r.mutateProvider(id, func(p *Provider) {
		p.AvailabilityStatus = status
	})
}

func (r *MemoryRepository) GetBooking(_ context.Context, id uuid.UUID) (*Booking, error) {
	_, b, unlock, err := r.lockBooking(id)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return cloneBooking(b), nil
}

// lockBooking returns the booking with its provider locked.
func (r *MemoryRepository) lockBooking(id uuid.UUID) (*memProvider, *Booking, func(), error) {
	r.mu.RLock()
	providerID, ok := r.owners[id]
	r.mu.RUnlock()
	if !ok {
		return nil, nil, nil, ErrBookingNotFound
	}
	e, ok := r.entry(providerID)
	if !ok {
		return nil, nil, nil, ErrBookingNotFound
	}
	e.mu.Lock()
	for _, b := range e.bookings {
		if b.ID == id {
			return e, b, e.mu.Unlock, nil
		}
	}
	e.mu.Unlock()
	return nil, nil, nil, ErrBookingNotFound
}

func (r *MemoryRepository) ListBookings(_ context.Context, providerID uuid.UUID, from, to time.Time) ([]Booking, error) {
	e, ok := r.entry(providerID)
	if !ok {
		return nil, ErrProviderNotFound
	}
	lo, hi := dateKey(from), dateKey(to)

	e.mu.Lock()
	out := make([]Booking, 0, len(e.bookings))
	for _, b := range e.bookings {
		if k := dateKey(b.ServiceDate); k >= lo && k <= hi {
			out = append(out, *b)
		}
	}
	e.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (r *MemoryRepository) ClaimBooking(_ context.Context, p ClaimParams) (*Booking, error) {
	e, ok := r.entry(p.ProviderID)
	if !ok {
		return nil, ErrProviderNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return nil, ErrProviderNotFound
	}

	day := dateKey(p.ServiceDate)
	count := 0
	occupied := make([]Interval, 0, len(e.bookings))
	for _, b := range e.bookings {
		if b.Status != StatusCancelled && dateKey(b.ServiceDate) == day {
			count++
		}
		if b.Status.Active() {
			occupied = append(occupied, b.Interval())
		}
	}

	if e.provider.MaxDailyOrders > 0 && count >= e.provider.MaxDailyOrders {
		return nil, &CapacityError{Date: p.ServiceDate, MaxDailyOrders: e.provider.MaxDailyOrders}
	}
	if OverlapsAny(Interval{Start: p.Start, End: p.End}, occupied) {
		return nil, slotUnavailable("overlaps an existing booking")
	}

	now := time.Now().UTC()
	b := &Booking{
		ID:          uuid.New(),
		ProviderID:  p.ProviderID,
		ServiceID:   p.ServiceID,
		OrderRef:    p.OrderRef,
		ServiceDate: p.ServiceDate,
		StartTime:   p.Start,
		EndTime:     p.End,
		TimeSlot:    p.TimeSlot,
		Status:      StatusScheduled,
		Notes:       p.Notes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if p.CountOn != nil {
		countOn := *p.CountOn
		if sameDate(e.provider.DailyOrdersDate, countOn) {
			e.provider.DailyOrdersCount++
		} else {
			e.provider.DailyOrdersCount = 1
			e.provider.DailyOrdersDate = countOn
		}
		b.CountedOn = &countOn
	}

	e.bookings = append(e.bookings, b)

	r.mu.Lock()
	r.owners[b.ID] = p.ProviderID
	r.mu.Unlock()

	return cloneBooking(b), nil
}

func (r *MemoryRepository) TransitionBooking(_ context.Context, p TransitionParams) (*Booking, error) {
	e, b, unlock, err := r.lockBooking(p.BookingID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if b.Status != p.From {
		return nil, &TransitionError{From: b.Status, To: p.To}
	}
	if err := Transition(p.From, p.To); err != nil {
		return nil, err
	}

	at := p.At
	b.Status = p.To
	b.UpdatedAt = at

	prov := &e.provider
	switch p.To {
	case StatusInProgress:
		b.StartedAt = &at
	case StatusCompleted:
		b.CompletedAt = &at
		prov.TotalOrdersCompleted++
		if p.Rating != nil {
			score := *p.Rating
			b.Rating = &score
			prov.Rating = RunningRating(prov.Rating, prov.RatedOrders, score)
			prov.RatedOrders++
		}
	case StatusCancelled:
		b.CancelledAt = &at
		b.CancelReason = p.Reason
		if b.CountedOn != nil && sameDate(*b.CountedOn, prov.DailyOrdersDate) && prov.DailyOrdersCount > 0 {
			prov.DailyOrdersCount--
		}
	}
	prov.UpdatedAt = at

	return cloneBooking(b), nil
}

func (r *MemoryRepository) ResetDailyCounters(_ context.Context, now time.Time) (int64, error) {
	r.mu.RLock()
	entries := make([]*memProvider, 0, len(r.providers))
	for _, e := range r.providers {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	var n int64
	for _, e := range entries {
		e.mu.Lock()
		today := DateOf(now, e.provider.Location())
		if !e.deleted && dateKey(e.provider.DailyOrdersDate) < dateKey(today) {
			e.provider.DailyOrdersCount = 0
			e.provider.DailyOrdersDate = today
			n++
		}
		e.mu.Unlock()
	}
	return n, nil
}

func (r *MemoryRepository) InsertEvent(_ context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev.ID = int64(len(r.events) + 1)
	r.events = append(r.events, ev)
	return nil
}

// Events returns a copy of the event log.
func (r *MemoryRepository) Events() []EventLog {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]EventLog(nil), r.events...)
}
