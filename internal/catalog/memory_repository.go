package catalog

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type MemoryRepository struct {
	mu          sync.RWMutex
	services    map[uuid.UUID]Service
	products    map[string][]uuid.UUID
	assignments map[uuid.UUID][]ProviderService
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		services:    make(map[uuid.UUID]Service),
		products:    make(map[string][]uuid.UUID),
		assignments: make(map[uuid.UUID][]ProviderService),
	}
}

func (r *MemoryRepository) CreateService(_ context.Context, s Service, productIDs []string) (*Service, error) {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	s.CreatedAt = time.Now().UTC()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.services[s.ID] = s
	for _, pid := range productIDs {
		if !slices.Contains(r.products[pid], s.ID) {
			r.products[pid] = append(r.products[pid], s.ID)
		}
	}
	return &s, nil
}

func (r *MemoryRepository) GetService(_ context.Context, id uuid.UUID) (*Service, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.services[id]
	if !ok {
		return nil, ErrServiceNotFound
	}
	return &s, nil
}

func (r *MemoryRepository) ListServices(_ context.Context) ([]Service, error) {
	r.mu.RLock()
	out := make([]Service, 0, len(r.services))
	for _, s := range r.services {
		out = append(out, s)
	}
	r.mu.RUnlock()

	sortServices(out)
	return out, nil
}

func (r *MemoryRepository) ServicesForProduct(_ context.Context, productID string) ([]Service, error) {
	r.mu.RLock()
	out := []Service{}
	for _, id := range r.products[productID] {
		if s, ok := r.services[id]; ok {
			out = append(out, s)
		}
	}
	r.mu.RUnlock()

	sortServices(out)
	return out, nil
}

func (r *MemoryRepository) ProviderOfferings(_ context.Context, providerID uuid.UUID) ([]Offering, error) {
	r.mu.RLock()
	out := []Offering{}
	for _, a := range r.assignments[providerID] {
		if s, ok := r.services[a.ServiceID]; ok {
			out = append(out, Offering{Service: s, CustomPrice: a.CustomPrice, ExperienceLevel: a.ExperienceLevel})
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Service.Name < out[j].Service.Name })
	return out, nil
}

func (r *MemoryRepository) ProviderOffering(_ context.Context, providerID, serviceID uuid.UUID) (*Offering, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.services[serviceID]
	if !ok {
		return nil, ErrServiceNotFound
	}
	for _, a := range r.assignments[providerID] {
		if a.ServiceID == serviceID {
			return &Offering{Service: s, CustomPrice: a.CustomPrice, ExperienceLevel: a.ExperienceLevel}, nil
		}
	}
	return nil, ErrServiceNotAssigned
}

func (r *MemoryRepository) ReplaceProviderServices(_ context.Context, providerID uuid.UUID, assignments []ProviderService) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range assignments {
		if _, ok := r.services[a.ServiceID]; !ok {
			return ErrServiceNotFound
		}
	}
	r.assignments[providerID] = append([]ProviderService(nil), assignments...)
	return nil
}

func sortServices(s []Service) {
	sort.Slice(s, func(i, j int) bool {
		if s[i].Name == s[j].Name {
			return s[i].ID.String() < s[j].ID.String()
		}
		return s[i].Name < s[j].Name
	})
}
