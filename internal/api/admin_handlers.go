package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/hackgods/service-provider-scheduling/internal/booking"
	"github.com/hackgods/service-provider-scheduling/internal/catalog"
)

// adminSubject names the caller for audit logs; empty when the guard is off.
func adminSubject(r *http.Request) string {
	claims, ok := AdminClaimsFromContext(r.Context())
	if !ok {
		return ""
	}
	return claims.Subject
}

func listProvidersHandler(d handlerDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := booking.ProviderFilter{City: q.Get("city"), Category: q.Get("category")}

		for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
			raw := q.Get(name)
			if raw == "" {
				continue
			}
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				writeError(w, http.StatusBadRequest, "invalid_request", name+" must be a non-negative integer")
				return
			}
			*dst = n
		}

		providers, err := d.scheduling.ListProviders(r.Context(), filter)
		if err != nil {
			writeServiceError(w, r, d.logger, err)
			return
		}
		out := make([]ProviderResponse, 0, len(providers))
		for i := range providers {
			out = append(out, toProviderResponse(&providers[i]))
		}
		writeJSON(w, http.StatusOK, map[string]any{"providers": out})
	}
}

func createProviderHandler(d handlerDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body CreateProviderRequest
		if !d.decodeBody(w, r, &body, false) {
			return
		}

		charge := decimal.Zero
		if body.ServiceCharge != "" {
			parsed, err := decimal.NewFromString(body.ServiceCharge)
			if err != nil {
				writeFieldErrors(w, http.StatusBadRequest, "invalid_request", map[string]string{"service_charge": "service_charge must be a number"})
				return
			}
			charge = parsed
		}

		created, err := d.scheduling.CreateProvider(r.Context(), booking.NewProvider{
			Name:                   body.Name,
			Category:               body.Category,
			City:                   body.City,
			Area:                   body.Area,
			ServiceCharge:          charge,
			MaxDailyOrders:         body.MaxDailyOrders,
			Timezone:               body.Timezone,
			WorkingHours:           toDayEntries(body.WorkingHours),
			AvgServiceDuration:     body.AvgServiceDuration,
			MinAdvanceBookingHours: body.MinAdvanceBookingHours,
		})
		if err != nil {
			writeServiceError(w, r, d.logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, toProviderResponse(created))
	}
}

func deleteProviderHandler(d handlerDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}
		if err := d.scheduling.DeleteProvider(r.Context(), id); err != nil {
			writeServiceError(w, r, d.logger, err)
			return
		}
		d.logger.Info("provider deleted",
			zap.String("provider_id", id.String()),
			zap.String("admin", adminSubject(r)),
		)
		w.WriteHeader(http.StatusNoContent)
	}
}

func updateWorkingHoursHandler(d handlerDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}
		var body WorkingHoursRequest
		if !d.decodeBody(w, r, &body, false) {
			return
		}

		updated, err := d.scheduling.UpdateWorkingHours(r.Context(), id, booking.WorkingHoursInput{
			WorkingHours:           toDayEntries(body.WorkingHours),
			WorkingDays:            body.WorkingDays,
			AvgServiceDuration:     body.AvgServiceDuration,
			MinAdvanceBookingHours: body.MinAdvanceBookingHours,
		})
		if err != nil {
			writeServiceError(w, r, d.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, toProviderResponse(updated))
	}
}

func updateAvailabilityStatusHandler(d handlerDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}
		var body AvailabilityStatusRequest
		if !d.decodeBody(w, r, &body, false) {
			return
		}

		updated, err := d.scheduling.SetAvailabilityStatus(r.Context(), id, booking.AvailabilityStatus(body.AvailabilityStatus))
		if err != nil {
			writeServiceError(w, r, d.logger, err)
			return
		}
		d.logger.Info("provider availability changed",
			zap.String("provider_id", id.String()),
			zap.String("status", body.AvailabilityStatus),
			zap.String("admin", adminSubject(r)),
		)
		writeJSON(w, http.StatusOK, toProviderResponse(updated))
	}
}

func scheduleHandler(d handlerDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		q := r.URL.Query()
		startRaw, endRaw := q.Get("start_date"), q.Get("end_date")
		if startRaw == "" {
			writeFieldErrors(w, http.StatusBadRequest, "invalid_request", map[string]string{"start_date": "start_date is required"})
			return
		}
		if endRaw == "" {
			endRaw = startRaw
		}
		start, err := booking.ParseDate(startRaw, time.UTC)
		if err != nil {
			writeFieldErrors(w, http.StatusBadRequest, "invalid_request", map[string]string{"start_date": err.Error()})
			return
		}
		end, err := booking.ParseDate(endRaw, time.UTC)
		if err != nil {
			writeFieldErrors(w, http.StatusBadRequest, "invalid_request", map[string]string{"end_date": err.Error()})
			return
		}

		bookings, err := d.scheduling.Schedule(r.Context(), id, start, end)
		if err != nil {
			writeServiceError(w, r, d.logger, err)
			return
		}
		out := make([]BookingResponse, 0, len(bookings))
		for i := range bookings {
			out = append(out, toBookingResponse(&bookings[i]))
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"provider_id": id,
			"start_date":  startRaw,
			"end_date":    endRaw,
			"bookings":    out,
		})
	}
}

func assignServicesHandler(d handlerDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}
		var body AssignServicesRequest
		if !d.decodeBody(w, r, &body, false) {
			return
		}

		assignments := make([]catalog.Assignment, 0, len(body.Services))
		for _, s := range body.Services {
			a := catalog.Assignment{
				ServiceID:       uuid.MustParse(s.ServiceID),
				ExperienceLevel: catalog.ExperienceLevel(s.ExperienceLevel),
			}
			if s.CustomPrice != nil {
				price, err := decimal.NewFromString(*s.CustomPrice)
				if err != nil {
					writeError(w, http.StatusBadRequest, "invalid_request", "custom_price must be a number")
					return
				}
				a.CustomPrice = &price
			}
			assignments = append(assignments, a)
		}

		offerings, err := d.catalog.AssignServices(r.Context(), id, assignments)
		if err != nil {
			writeServiceError(w, r, d.logger, err)
			return
		}
		out := make([]OfferingResponse, 0, len(offerings))
		for _, o := range offerings {
			out = append(out, toOfferingResponse(o))
		}
		writeJSON(w, http.StatusOK, map[string]any{"services": out})
	}
}

func startBookingHandler(d handlerDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}
		b, err := d.scheduling.StartBooking(r.Context(), id)
		if err != nil {
			writeServiceError(w, r, d.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, toBookingResponse(b))
	}
}

func completeBookingHandler(d handlerDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}
		var body CompleteBookingRequest
		if !d.decodeBody(w, r, &body, true) {
			return
		}
		b, err := d.scheduling.CompleteBooking(r.Context(), id, body.Rating)
		if err != nil {
			writeServiceError(w, r, d.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, toBookingResponse(b))
	}
}

func cancelBookingHandler(d handlerDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}
		var body CancelBookingRequest
		if !d.decodeBody(w, r, &body, true) {
			return
		}
		b, err := d.scheduling.CancelBooking(r.Context(), id, body.Reason)
		if err != nil {
			writeServiceError(w, r, d.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, toBookingResponse(b))
	}
}

func listServicesHandler(d handlerDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		services, err := d.catalog.ListServices(r.Context())
		if err != nil {
			writeServiceError(w, r, d.logger, err)
			return
		}
		out := make([]ServiceResponse, 0, len(services))
		for _, s := range services {
			out = append(out, toServiceResponse(s))
		}
		writeJSON(w, http.StatusOK, map[string]any{"services": out})
	}
}

func createServiceHandler(d handlerDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body CreateServiceRequest
		if !d.decodeBody(w, r, &body, false) {
			return
		}
		price, err := decimal.NewFromString(body.BasePrice)
		if err != nil {
			writeFieldErrors(w, http.StatusBadRequest, "invalid_request", map[string]string{"base_price": "base_price must be a number"})
			return
		}

		created, err := d.catalog.CreateService(r.Context(), catalog.NewService{
			Name:            body.Name,
			Description:     body.Description,
			BasePrice:       price,
			DurationMinutes: body.DurationMinutes,
			ProductIDs:      body.ProductIDs,
		})
		if err != nil {
			writeServiceError(w, r, d.logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, toServiceResponse(*created))
	}
}
