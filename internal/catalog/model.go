package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ExperienceLevel string

const (
	LevelBeginner     ExperienceLevel = "beginner"
	LevelIntermediate ExperienceLevel = "intermediate"
	LevelExpert       ExperienceLevel = "expert"
)

func (l ExperienceLevel) Valid() bool {
	switch l {
	case LevelBeginner, LevelIntermediate, LevelExpert:
		return true
	}
	return false
}

// Service is an installable or repair service sold alongside parts.
type Service struct {
	ID              uuid.UUID
	Name            string
	Description     string
	BasePrice       decimal.Decimal
	DurationMinutes int
	CreatedAt       time.Time
}

// ProviderService assigns a service to a provider.
type ProviderService struct {
	ProviderID      uuid.UUID
	ServiceID       uuid.UUID
	CustomPrice     *decimal.Decimal
	ExperienceLevel ExperienceLevel
}

// Offering is a provider assignment joined with its service.
type Offering struct {
	Service         Service
	CustomPrice     *decimal.Decimal
	ExperienceLevel ExperienceLevel
}

// Price is the custom price when set, the base price otherwise.
func (o Offering) Price() decimal.Decimal {
	if o.CustomPrice != nil {
		return *o.CustomPrice
	}
	return o.Service.BasePrice
}
