package api

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/hackgods/service-provider-scheduling/internal/booking"
	"github.com/hackgods/service-provider-scheduling/internal/catalog"
)

// writeServiceError maps scheduling and catalog errors to HTTP responses.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	var (
		scheduleErr *booking.ScheduleError
		leadErr     *booking.LeadTimeError
	)

	switch {
	case errors.As(err, &scheduleErr):
		writeFieldErrors(w, http.StatusUnprocessableEntity, "invalid_schedule", scheduleErr.Fields)
	case errors.As(err, &leadErr):
		hours := leadErr.MinAdvanceBookingHours
		earliest := leadErr.EarliestStart
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:                  "lead_time_violation",
			Details:                leadErr.Error(),
			MinAdvanceBookingHours: &hours,
			EarliestStart:          &earliest,
		})
	case errors.Is(err, booking.ErrCapacityExceeded):
		writeError(w, http.StatusConflict, "capacity_exceeded", err.Error())
	case errors.Is(err, booking.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, "slot_unavailable", err.Error())
	case errors.Is(err, booking.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, booking.ErrProviderNotFound):
		writeError(w, http.StatusNotFound, "provider_not_found", err.Error())
	case errors.Is(err, booking.ErrBookingNotFound):
		writeError(w, http.StatusNotFound, "booking_not_found", err.Error())
	case errors.Is(err, catalog.ErrServiceNotFound):
		writeError(w, http.StatusNotFound, "service_not_found", err.Error())
	case errors.Is(err, catalog.ErrServiceNotAssigned):
		writeError(w, http.StatusNotFound, "service_not_offered", err.Error())
	case errors.Is(err, booking.ErrInvalidRange),
		errors.Is(err, booking.ErrInvalidRating),
		errors.Is(err, catalog.ErrInvalidQuantity),
		errors.Is(err, catalog.ErrInvalidAssignment):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", GetRequestID(r.Context())),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected error, please retry")
	}
}

// rejectionCode names a claim rejection that check-availability reports as
// a negative answer rather than an error.
func rejectionCode(err error) (string, bool) {
	switch {
	case errors.Is(err, booking.ErrSlotUnavailable):
		return "slot_unavailable", true
	case errors.Is(err, booking.ErrCapacityExceeded):
		return "capacity_exceeded", true
	case errors.Is(err, booking.ErrLeadTimeViolation):
		return "lead_time_violation", true
	}
	return "", false
}
