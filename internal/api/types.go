package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/service-provider-scheduling/internal/booking"
	"github.com/hackgods/service-provider-scheduling/internal/catalog"
)

// Requests

type SlotRequestBody struct {
	ProviderID string `json:"provider_id" validate:"required,uuid"`
	Date       string `json:"date" validate:"required"`
	StartTime  string `json:"start_time" validate:"required"`
	EndTime    string `json:"end_time" validate:"required"`
}

type ClaimSlotRequest struct {
	ProviderID string  `json:"provider_id" validate:"required,uuid"`
	Date       string  `json:"date" validate:"required"`
	StartTime  string  `json:"start_time" validate:"required"`
	EndTime    string  `json:"end_time" validate:"required"`
	OrderRef   *string `json:"order_ref"`
	ServiceID  *string `json:"service_id" validate:"omitempty,uuid"`
	Notes      *string `json:"notes"`
}

func (r ClaimSlotRequest) slot() SlotRequestBody {
	return SlotRequestBody{ProviderID: r.ProviderID, Date: r.Date, StartTime: r.StartTime, EndTime: r.EndTime}
}

type AvailableSlotsRequest struct {
	ProviderID string `json:"provider_id" validate:"required,uuid"`
	FromDate   string `json:"from_date" validate:"required"`
	ToDate     string `json:"to_date"`
}

type CalculateCostRequest struct {
	ProviderID string `json:"provider_id" validate:"required,uuid"`
	ServiceID  string `json:"service_id" validate:"required,uuid"`
	Quantity   int    `json:"quantity" validate:"omitempty,gte=1"`
}

type DayEntryRequest struct {
	Day       string `json:"day" validate:"required"`
	Available bool   `json:"available"`
	Start     string `json:"start"`
	End       string `json:"end"`
}

type CreateProviderRequest struct {
	Name                   string            `json:"name" validate:"required"`
	Category               string            `json:"category"`
	City                   string            `json:"city"`
	Area                   string            `json:"area"`
	ServiceCharge          string            `json:"service_charge" validate:"omitempty,numeric"`
	MaxDailyOrders         int               `json:"max_daily_orders"`
	Timezone               string            `json:"timezone"`
	WorkingHours           []DayEntryRequest `json:"working_hours" validate:"required,dive"`
	AvgServiceDuration     int               `json:"avg_service_duration"`
	MinAdvanceBookingHours int               `json:"min_advance_booking_hours"`
}

type WorkingHoursRequest struct {
	WorkingHours           []DayEntryRequest `json:"working_hours" validate:"required,dive"`
	WorkingDays            []string          `json:"working_days"`
	AvgServiceDuration     int               `json:"avg_service_duration"`
	MinAdvanceBookingHours int               `json:"min_advance_booking_hours"`
}

type AvailabilityStatusRequest struct {
	AvailabilityStatus string `json:"availability_status" validate:"required,oneof=available busy offline"`
}

type AssignmentRequest struct {
	ServiceID       string  `json:"service_id" validate:"required,uuid"`
	CustomPrice     *string `json:"custom_price" validate:"omitempty,numeric"`
	ExperienceLevel string  `json:"experience_level" validate:"omitempty,oneof=beginner intermediate expert"`
}

type AssignServicesRequest struct {
	Services []AssignmentRequest `json:"services" validate:"dive"`
}

type CreateServiceRequest struct {
	Name            string   `json:"name" validate:"required"`
	Description     string   `json:"description"`
	BasePrice       string   `json:"base_price" validate:"required,numeric"`
	DurationMinutes int      `json:"duration_minutes" validate:"gte=0"`
	ProductIDs      []string `json:"product_ids" validate:"dive,required"`
}

type CompleteBookingRequest struct {
	Rating *int `json:"rating" validate:"omitempty,gte=1,lte=5"`
}

type CancelBookingRequest struct {
	Reason *string `json:"reason"`
}

func toDayEntries(in []DayEntryRequest) []booking.DayEntry {
	out := make([]booking.DayEntry, 0, len(in))
	for _, e := range in {
		out = append(out, booking.DayEntry{Day: e.Day, Available: e.Available, Start: e.Start, End: e.End})
	}
	return out
}

// Responses

type CheckAvailabilityResponse struct {
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
	Details   string `json:"details,omitempty"`
}

type SlotResponse struct {
	Date      string    `json:"date"`
	StartTime string    `json:"start_time"`
	EndTime   string    `json:"end_time"`
	TimeSlot  string    `json:"time_slot"`
	StartsAt  time.Time `json:"starts_at"`
	EndsAt    time.Time `json:"ends_at"`
}

type AvailableSlotsResponse struct {
	ProviderID uuid.UUID      `json:"provider_id"`
	FromDate   string         `json:"from_date"`
	ToDate     string         `json:"to_date"`
	Timezone   string         `json:"timezone"`
	Slots      []SlotResponse `json:"slots"`
}

func toSlotResponse(s booking.Slot) SlotResponse {
	return SlotResponse{
		Date:      s.Date.Format("2006-01-02"),
		StartTime: s.Window.Start.String(),
		EndTime:   s.Window.End.String(),
		TimeSlot:  s.Label(),
		StartsAt:  s.Start,
		EndsAt:    s.End,
	}
}

type BookingResponse struct {
	ID           uuid.UUID  `json:"id"`
	ProviderID   uuid.UUID  `json:"provider_id"`
	ServiceID    *uuid.UUID `json:"service_id,omitempty"`
	OrderRef     *string    `json:"order_ref,omitempty"`
	ServiceDate  string     `json:"service_date"`
	TimeSlot     string     `json:"time_slot"`
	StartsAt     time.Time  `json:"starts_at"`
	EndsAt       time.Time  `json:"ends_at"`
	Status       string     `json:"status"`
	Notes        *string    `json:"notes,omitempty"`
	Rating       *int       `json:"rating,omitempty"`
	CancelReason *string    `json:"cancel_reason,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

func toBookingResponse(b *booking.Booking) BookingResponse {
	return BookingResponse{
		ID:           b.ID,
		ProviderID:   b.ProviderID,
		ServiceID:    b.ServiceID,
		OrderRef:     b.OrderRef,
		ServiceDate:  b.ServiceDate.Format("2006-01-02"),
		TimeSlot:     b.TimeSlot,
		StartsAt:     b.StartTime,
		EndsAt:       b.EndTime,
		Status:       string(b.Status),
		Notes:        b.Notes,
		Rating:       b.Rating,
		CancelReason: b.CancelReason,
		StartedAt:    b.StartedAt,
		CompletedAt:  b.CompletedAt,
		CancelledAt:  b.CancelledAt,
		CreatedAt:    b.CreatedAt,
	}
}

type ServiceResponse struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description,omitempty"`
	BasePrice       string    `json:"base_price"`
	DurationMinutes int       `json:"duration_minutes"`
}

func toServiceResponse(s catalog.Service) ServiceResponse {
	return ServiceResponse{
		ID:              s.ID,
		Name:            s.Name,
		Description:     s.Description,
		BasePrice:       s.BasePrice.StringFixed(2),
		DurationMinutes: s.DurationMinutes,
	}
}

type OfferingResponse struct {
	ServiceResponse
	Price           string `json:"price"`
	CustomPrice     string `json:"custom_price,omitempty"`
	ExperienceLevel string `json:"experience_level"`
}

func toOfferingResponse(o catalog.Offering) OfferingResponse {
	resp := OfferingResponse{
		ServiceResponse: toServiceResponse(o.Service),
		Price:           o.Price().StringFixed(2),
		ExperienceLevel: string(o.ExperienceLevel),
	}
	if o.CustomPrice != nil {
		resp.CustomPrice = o.CustomPrice.StringFixed(2)
	}
	return resp
}

type ProviderResponse struct {
	ID                     uuid.UUID            `json:"id"`
	Name                   string               `json:"name"`
	Category               string               `json:"category"`
	City                   string               `json:"city"`
	Area                   string               `json:"area"`
	ServiceCharge          string               `json:"service_charge"`
	MaxDailyOrders         int                  `json:"max_daily_orders"`
	DailyOrdersCount       int                  `json:"daily_orders_count"`
	TotalOrdersCompleted   int                  `json:"total_orders_completed"`
	Rating                 string               `json:"rating"`
	AvailabilityStatus     string               `json:"availability_status"`
	WorkingHours           booking.WorkingHours `json:"working_hours"`
	WorkingDays            []string             `json:"working_days"`
	AvgServiceDuration     int                  `json:"avg_service_duration"`
	MinAdvanceBookingHours int                  `json:"min_advance_booking_hours"`
	Timezone               string               `json:"timezone"`
	Services               []OfferingResponse   `json:"services,omitempty"`
}

func toProviderResponse(p *booking.Provider) ProviderResponse {
	return ProviderResponse{
		ID:                     p.ID,
		Name:                   p.Name,
		Category:               p.Category,
		City:                   p.City,
		Area:                   p.Area,
		ServiceCharge:          p.ServiceCharge.StringFixed(2),
		MaxDailyOrders:         p.MaxDailyOrders,
		DailyOrdersCount:       p.DailyOrdersCount,
		TotalOrdersCompleted:   p.TotalOrdersCompleted,
		Rating:                 p.Rating.StringFixed(2),
		AvailabilityStatus:     string(p.AvailabilityStatus),
		WorkingHours:           p.WorkingHours,
		WorkingDays:            p.WorkingDays(),
		AvgServiceDuration:     p.AvgServiceDuration,
		MinAdvanceBookingHours: p.MinAdvanceBookingHours,
		Timezone:               p.Timezone,
	}
}

type CostResponse struct {
	ProviderID    uuid.UUID `json:"provider_id"`
	ServiceID     uuid.UUID `json:"service_id"`
	Quantity      int       `json:"quantity"`
	UnitPrice     string    `json:"unit_price"`
	Subtotal      string    `json:"subtotal"`
	ServiceCharge string    `json:"service_charge"`
	Total         string    `json:"total"`
}
