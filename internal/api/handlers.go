package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/service-provider-scheduling/internal/booking"
	"github.com/hackgods/service-provider-scheduling/internal/catalog"
)

type handlerDeps struct {
	scheduling *booking.Service
	catalog    *catalog.Catalog
	logger     *zap.Logger
	validate   *requestValidator
}

// decodeBody reads and validates a JSON body, writing the 400 itself on
// failure. An empty body is accepted when optional is set.
func (d handlerDeps) decodeBody(w http.ResponseWriter, r *http.Request, dst any, optional bool) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if !(optional && errors.Is(err, io.EOF)) {
			writeError(w, http.StatusBadRequest, "invalid_request", "could not parse JSON body")
			return false
		}
	}
	if fields := d.validate.Struct(dst); fields != nil {
		writeFieldErrors(w, http.StatusBadRequest, "invalid_request", fields)
		return false
	}
	return true
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", name+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

// parseSlot turns the wire form of a slot into a service request. Dates are
// calendar dates; the service places them in the provider's time zone.
func parseSlot(body SlotRequestBody) (booking.SlotRequest, map[string]string) {
	fields := map[string]string{}
	var req booking.SlotRequest
	var err error

	if req.ProviderID, err = uuid.Parse(body.ProviderID); err != nil {
		fields["provider_id"] = "provider_id must be a valid UUID"
	}
	if req.Date, err = booking.ParseDate(body.Date, time.UTC); err != nil {
		fields["date"] = err.Error()
	}
	if req.Start, err = booking.ParseTimeOfDay(body.StartTime); err != nil {
		fields["start_time"] = err.Error()
	}
	if req.End, err = booking.ParseTimeOfDay(body.EndTime); err != nil {
		fields["end_time"] = err.Error()
	}
	if len(fields) > 0 {
		return req, fields
	}
	return req, nil
}

func servicesForProductHandler(d handlerDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		product := chi.URLParam(r, "product")
		services, err := d.catalog.ServicesForProduct(r.Context(), product)
		if err != nil {
			writeServiceError(w, r, d.logger, err)
			return
		}

		out := make([]ServiceResponse, 0, len(services))
		for _, s := range services {
			out = append(out, toServiceResponse(s))
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"product_id": product,
			"services":   out,
		})
	}
}

func checkAvailabilityHandler(d handlerDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body SlotRequestBody
		if !d.decodeBody(w, r, &body, false) {
			return
		}
		req, fields := parseSlot(body)
		if fields != nil {
			writeFieldErrors(w, http.StatusBadRequest, "invalid_request", fields)
			return
		}

		err := d.scheduling.CheckAvailability(r.Context(), req)
		if err == nil {
			writeJSON(w, http.StatusOK, CheckAvailabilityResponse{Available: true})
			return
		}
		if code, ok := rejectionCode(err); ok {
			writeJSON(w, http.StatusOK, CheckAvailabilityResponse{Available: false, Reason: code, Details: err.Error()})
			return
		}
		writeServiceError(w, r, d.logger, err)
	}
}

func availableSlotsHandler(d handlerDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body AvailableSlotsRequest
		if r.Method == http.MethodGet {
			q := r.URL.Query()
			body = AvailableSlotsRequest{
				ProviderID: q.Get("provider_id"),
				FromDate:   q.Get("from_date"),
				ToDate:     q.Get("to_date"),
			}
			if fields := d.validate.Struct(body); fields != nil {
				writeFieldErrors(w, http.StatusBadRequest, "invalid_request", fields)
				return
			}
		} else if !d.decodeBody(w, r, &body, false) {
			return
		}
		if body.ToDate == "" {
			body.ToDate = body.FromDate
		}

		providerID, _ := uuid.Parse(body.ProviderID)
		from, err := booking.ParseDate(body.FromDate, time.UTC)
		if err != nil {
			writeFieldErrors(w, http.StatusBadRequest, "invalid_request", map[string]string{"from_date": err.Error()})
			return
		}
		to, err := booking.ParseDate(body.ToDate, time.UTC)
		if err != nil {
			writeFieldErrors(w, http.StatusBadRequest, "invalid_request", map[string]string{"to_date": err.Error()})
			return
		}

		provider, err := d.scheduling.GetProvider(r.Context(), providerID)
		if err != nil {
			writeServiceError(w, r, d.logger, err)
			return
		}
		slots, err := d.scheduling.FreeSlots(r.Context(), providerID, from, to)
		if err != nil {
			writeServiceError(w, r, d.logger, err)
			return
		}

		resp := AvailableSlotsResponse{
			ProviderID: providerID,
			FromDate:   body.FromDate,
			ToDate:     body.ToDate,
			Timezone:   provider.Location().String(),
			Slots:      make([]SlotResponse, 0, len(slots)),
		}
		for _, s := range slots {
			resp.Slots = append(resp.Slots, toSlotResponse(s))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func providerDetailHandler(d handlerDeps, param string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, param)
		if !ok {
			return
		}
		provider, err := d.scheduling.GetProvider(r.Context(), id)
		if err != nil {
			writeServiceError(w, r, d.logger, err)
			return
		}
		offerings, err := d.catalog.ProviderOfferings(r.Context(), id)
		if err != nil {
			writeServiceError(w, r, d.logger, err)
			return
		}

		resp := toProviderResponse(provider)
		for _, o := range offerings {
			resp.Services = append(resp.Services, toOfferingResponse(o))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func calculateCostHandler(d handlerDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body CalculateCostRequest
		if !d.decodeBody(w, r, &body, false) {
			return
		}
		if body.Quantity == 0 {
			body.Quantity = 1
		}
		providerID, _ := uuid.Parse(body.ProviderID)
		serviceID, _ := uuid.Parse(body.ServiceID)

		cost, err := d.catalog.CalculateCost(r.Context(), catalog.CostRequest{
			ProviderID: providerID,
			ServiceID:  serviceID,
			Quantity:   body.Quantity,
		})
		if err != nil {
			writeServiceError(w, r, d.logger, err)
			return
		}

		writeJSON(w, http.StatusOK, CostResponse{
			ProviderID:    providerID,
			ServiceID:     serviceID,
			Quantity:      cost.Quantity,
			UnitPrice:     cost.UnitPrice.StringFixed(2),
			Subtotal:      cost.Subtotal.StringFixed(2),
			ServiceCharge: cost.ServiceCharge.StringFixed(2),
			Total:         cost.Total.StringFixed(2),
		})
	}
}

func claimSlotHandler(d handlerDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body ClaimSlotRequest
		if !d.decodeBody(w, r, &body, false) {
			return
		}
		slot, fields := parseSlot(body.slot())
		if fields != nil {
			writeFieldErrors(w, http.StatusBadRequest, "invalid_request", fields)
			return
		}

		req := booking.ClaimRequest{SlotRequest: slot, OrderRef: body.OrderRef, Notes: body.Notes}
		if body.ServiceID != nil {
			id, _ := uuid.Parse(*body.ServiceID)
			req.ServiceID = &id
		}

		created, err := d.scheduling.ClaimSlot(r.Context(), req)
		if err != nil {
			writeServiceError(w, r, d.logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, toBookingResponse(created))
	}
}

func getBookingHandler(d handlerDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}
		b, err := d.scheduling.GetBooking(r.Context(), id)
		if err != nil {
			writeServiceError(w, r, d.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, toBookingResponse(b))
	}
}
