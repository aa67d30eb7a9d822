package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/vedran77/partsmarket/internal/domain"
	"github.com/vedran77/partsmarket/internal/service"
	"github.com/vedran77/partsmarket/internal/transport/http/middleware"
	"github.com/vedran77/partsmarket/pkg/validator"
)

type ListingHandler struct {
	listings *service.ListingService
}

func NewListingHandler(listings *service.ListingService) *ListingHandler {
	return &ListingHandler{listings: listings}
}

type createdResponse struct {
	Listing any                    `json:"listing"`
	Uploads []service.UploadTarget `json:"uploads"`
}

// --- Vehicles ---

func (h *ListingHandler) CreateVehicle(w http.ResponseWriter, r *http.Request) {
	var v domain.Vehicle
	if !decodeJSON(w, r, &v) {
		return
	}
	if errs := validator.ValidateVehicle(&v); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	uploads, err := h.listings.CreateVehicle(r.Context(), middleware.GetUserID(r.Context()), &v)
	if err != nil {
		writeServiceError(w, "create vehicle", err)
		return
	}
	writeJSON(w, http.StatusCreated, createdResponse{Listing: v, Uploads: uploads})
}

func (h *ListingHandler) ListVehicles(w http.ResponseWriter, r *http.Request) {
	q := queryParams{r: r}
	f := domain.VehicleFilter{
		Type:         q.str("type"),
		Brand:        q.str("brand"),
		Model:        q.str("model"),
		Year:         q.optInt("year"),
		MaxMileageKm: q.optInt("max_mileage_km"),
		FuelType:     q.str("fuel_type"),
		DriveType:    q.str("drive_type"),
		Transmission: q.str("transmission"),
		Seats:        q.optInt("seats"),
		Doors:        q.optInt("doors"),
		Creator:      q.optUUID("creator"),
	}
	if q.bad != "" {
		writeError(w, http.StatusBadRequest, "INVALID_FILTER", "Invalid value for "+q.bad)
		return
	}

	vehicles, err := h.listings.ListVehicles(r.Context(), f)
	if err != nil {
		writeServiceError(w, "list vehicles", err)
		return
	}
	writeJSON(w, http.StatusOK, vehicles)
}

func (h *ListingHandler) GetVehicle(w http.ResponseWriter, r *http.Request) {
	id, ok := listingID(w, r)
	if !ok {
		return
	}
	v, err := h.listings.GetVehicle(r.Context(), id)
	if err != nil {
		writeServiceError(w, "get vehicle", err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *ListingHandler) UpdateVehicle(w http.ResponseWriter, r *http.Request) {
	id, ok := listingID(w, r)
	if !ok {
		return
	}
	var v domain.Vehicle
	if !decodeJSON(w, r, &v) {
		return
	}
	if errs := validator.ValidateVehicle(&v); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	updated, err := h.listings.UpdateVehicle(r.Context(), middleware.GetUserID(r.Context()), id, &v)
	if err != nil {
		writeServiceError(w, "update vehicle", err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *ListingHandler) DeleteVehicle(w http.ResponseWriter, r *http.Request) {
	id, ok := listingID(w, r)
	if !ok {
		return
	}
	if err := h.listings.DeleteVehicle(r.Context(), middleware.GetUserID(r.Context()), id); err != nil {
		writeServiceError(w, "delete vehicle", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Parts ---

func (h *ListingHandler) CreatePart(w http.ResponseWriter, r *http.Request) {
	var p domain.Part
	if !decodeJSON(w, r, &p) {
		return
	}
	if errs := validator.ValidatePart(&p); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	uploads, err := h.listings.CreatePart(r.Context(), middleware.GetUserID(r.Context()), &p)
	if err != nil {
		writeServiceError(w, "create part", err)
		return
	}
	writeJSON(w, http.StatusCreated, createdResponse{Listing: p, Uploads: uploads})
}

func (h *ListingHandler) ListParts(w http.ResponseWriter, r *http.Request) {
	q := queryParams{r: r}
	f := domain.PartFilter{
		Name:      q.str("name"),
		Number:    q.str("number"),
		OwnerID:   q.optUUID("owner_id"),
		VehicleID: q.optID("vehicle_id"),
	}
	if q.bad != "" {
		writeError(w, http.StatusBadRequest, "INVALID_FILTER", "Invalid value for "+q.bad)
		return
	}

	parts, err := h.listings.ListParts(r.Context(), f)
	if err != nil {
		writeServiceError(w, "list parts", err)
		return
	}
	writeJSON(w, http.StatusOK, parts)
}

func (h *ListingHandler) GetPart(w http.ResponseWriter, r *http.Request) {
	id, ok := listingID(w, r)
	if !ok {
		return
	}
	p, err := h.listings.GetPart(r.Context(), id)
	if err != nil {
		writeServiceError(w, "get part", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ListingHandler) SimilarParts(w http.ResponseWriter, r *http.Request) {
	id, ok := listingID(w, r)
	if !ok {
		return
	}
	parts, err := h.listings.SimilarParts(r.Context(), id)
	if err != nil {
		writeServiceError(w, "similar parts", err)
		return
	}
	writeJSON(w, http.StatusOK, parts)
}

func (h *ListingHandler) UpdatePart(w http.ResponseWriter, r *http.Request) {
	id, ok := listingID(w, r)
	if !ok {
		return
	}
	var p domain.Part
	if !decodeJSON(w, r, &p) {
		return
	}
	if errs := validator.ValidatePart(&p); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	updated, err := h.listings.UpdatePart(r.Context(), middleware.GetUserID(r.Context()), id, &p)
	if err != nil {
		writeServiceError(w, "update part", err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *ListingHandler) DeletePart(w http.ResponseWriter, r *http.Request) {
	id, ok := listingID(w, r)
	if !ok {
		return
	}
	if err := h.listings.DeletePart(r.Context(), middleware.GetUserID(r.Context()), id); err != nil {
		writeServiceError(w, "delete part", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Wheels ---

func (h *ListingHandler) CreateWheel(w http.ResponseWriter, r *http.Request) {
	var wh domain.Wheel
	if !decodeJSON(w, r, &wh) {
		return
	}
	if errs := validator.ValidateWheel(&wh); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	uploads, err := h.listings.CreateWheel(r.Context(), middleware.GetUserID(r.Context()), &wh)
	if err != nil {
		writeServiceError(w, "create wheel", err)
		return
	}
	writeJSON(w, http.StatusCreated, createdResponse{Listing: wh, Uploads: uploads})
}

func (h *ListingHandler) ListWheels(w http.ResponseWriter, r *http.Request) {
	q := queryParams{r: r}
	f := domain.WheelFilter{
		RimBoltPattern: q.str("rim_bolt_pattern"),
		RimSize:        q.str("rim_size"),
		TireWidth:      q.optInt("tire_width"),
		TireProfile:    q.optInt("tire_profile"),
		TireSize:       q.optInt("tire_size"),
		OwnerID:        q.optUUID("owner_id"),
		VehicleID:      q.optID("vehicle_id"),
	}
	if q.bad != "" {
		writeError(w, http.StatusBadRequest, "INVALID_FILTER", "Invalid value for "+q.bad)
		return
	}

	wheels, err := h.listings.ListWheels(r.Context(), f)
	if err != nil {
		writeServiceError(w, "list wheels", err)
		return
	}
	writeJSON(w, http.StatusOK, wheels)
}

func (h *ListingHandler) GetWheel(w http.ResponseWriter, r *http.Request) {
	id, ok := listingID(w, r)
	if !ok {
		return
	}
	wh, err := h.listings.GetWheel(r.Context(), id)
	if err != nil {
		writeServiceError(w, "get wheel", err)
		return
	}
	writeJSON(w, http.StatusOK, wh)
}

func (h *ListingHandler) SimilarWheels(w http.ResponseWriter, r *http.Request) {
	id, ok := listingID(w, r)
	if !ok {
		return
	}
	wheels, err := h.listings.SimilarWheels(r.Context(), id)
	if err != nil {
		writeServiceError(w, "similar wheels", err)
		return
	}
	writeJSON(w, http.StatusOK, wheels)
}

func (h *ListingHandler) UpdateWheel(w http.ResponseWriter, r *http.Request) {
	id, ok := listingID(w, r)
	if !ok {
		return
	}
	var wh domain.Wheel
	if !decodeJSON(w, r, &wh) {
		return
	}
	if errs := validator.ValidateWheel(&wh); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	updated, err := h.listings.UpdateWheel(r.Context(), middleware.GetUserID(r.Context()), id, &wh)
	if err != nil {
		writeServiceError(w, "update wheel", err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *ListingHandler) DeleteWheel(w http.ResponseWriter, r *http.Request) {
	id, ok := listingID(w, r)
	if !ok {
		return
	}
	if err := h.listings.DeleteWheel(r.Context(), middleware.GetUserID(r.Context()), id); err != nil {
		writeServiceError(w, "delete wheel", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Abandon handles POST /api/v1/{kind}s/{id}/abandon after a failed image upload.
func (h *ListingHandler) Abandon(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := listingID(w, r)
		if !ok {
			return
		}
		if err := h.listings.AbandonImages(r.Context(), middleware.GetUserID(r.Context()), kind, id); err != nil {
			writeServiceError(w, "abandon "+kind, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func listingID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid listing ID")
		return 0, false
	}
	return id, true
}

// queryParams reads optional filter values. The first malformed key is kept
// in bad.
type queryParams struct {
	r   *http.Request
	bad string
}

func (q *queryParams) str(key string) string {
	return q.r.URL.Query().Get(key)
}

func (q *queryParams) optInt(key string) *int {
	s := q.str(key)
	if s == "" || s == domain.FilterAll {
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		q.fail(key)
		return nil
	}
	return &v
}

func (q *queryParams) optID(key string) *int64 {
	s := q.str(key)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v <= 0 {
		q.fail(key)
		return nil
	}
	return &v
}

func (q *queryParams) optUUID(key string) *uuid.UUID {
	s := q.str(key)
	if s == "" {
		return nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		q.fail(key)
		return nil
	}
	return &id
}

func (q *queryParams) fail(key string) {
	if q.bad == "" {
		q.bad = key
	}
}
