package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"lodgic/internal/reservations/service"
	apperrors "lodgic/pkg/errors"
	httputil "lodgic/pkg/http"
	"lodgic/pkg/logger"
	"lodgic/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type ReservationHandler struct {
	service service.ReservationService
	log     *logger.Logger
}

func NewReservationHandler(service service.ReservationService, log *logger.Logger) *ReservationHandler {
	return &ReservationHandler{
		service: service,
		log:     log,
	}
}

// createRequest is the wire shape of a reservation request. Dates arrive as
// YYYY-MM-DD strings.
type createRequest struct {
	UnitID     string          `json:"unit_id"`
	CheckIn    string          `json:"check_in"`
	CheckOut   string          `json:"check_out"`
	GuestCount int             `json:"guest_count"`
	Guest      model.GuestInfo `json:"guest"`
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

type availabilityResponse struct {
	UnitID   string `json:"unit_id"`
	CheckIn  string `json:"check_in"`
	CheckOut string `json:"check_out"`
	Free     bool   `json:"free"`
	Reason   string `json:"reason,omitempty"`
}

func (h *ReservationHandler) CheckAvailability(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	unitID := r.URL.Query().Get("unit_id")
	if unitID == "" {
		h.writeError(w, "CheckAvailability", apperrors.InvalidInput("unit_id query parameter is required"))
		return
	}

	checkIn, err := httputil.ExtractDateParam(r, "check_in")
	if err != nil {
		h.writeError(w, "CheckAvailability", err)
		return
	}
	checkOut, err := httputil.ExtractDateParam(r, "check_out")
	if err != nil {
		h.writeError(w, "CheckAvailability", err)
		return
	}

	free, reason, err := h.service.CheckAvailability(r.Context(), unitID, checkIn, checkOut)
	if err != nil {
		h.writeError(w, "CheckAvailability", err)
		return
	}

	if err := httputil.WriteSuccess(w, availabilityResponse{
		UnitID:   unitID,
		CheckIn:  checkIn.Format(model.DateLayout),
		CheckOut: checkOut.Format(model.DateLayout),
		Free:     free,
		Reason:   reason,
	}); err != nil {
		h.log.Error("failed to write success response", "handler", "CheckAvailability", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReservationHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	actorID, err := httputil.ExtractActorID(r)
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Create", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	checkIn, err := model.ParseDate(req.CheckIn)
	if err != nil {
		h.writeError(w, "Create", apperrors.InvalidInput("invalid check_in, expected YYYY-MM-DD"))
		return
	}
	checkOut, err := model.ParseDate(req.CheckOut)
	if err != nil {
		h.writeError(w, "Create", apperrors.InvalidInput("invalid check_out, expected YYYY-MM-DD"))
		return
	}

	reservation := model.Reservation{
		UnitID:      req.UnitID,
		RequesterID: actorID,
		CheckIn:     checkIn,
		CheckOut:    checkOut,
		GuestCount:  req.GuestCount,
		Guest:       req.Guest,
	}

	if err := h.service.Create(r.Context(), &reservation); err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, reservation); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *ReservationHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	reservation, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, reservation); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReservationHandler) GetAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	status, err := extractStatusParam(r)
	if err != nil {
		h.writeError(w, "GetAll", err)
		return
	}

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "GetAll", err)
		return
	}

	reservations, total, err := h.service.GetAll(r.Context(), status, limit, offset)
	if err != nil {
		h.writeError(w, "GetAll", err)
		return
	}

	if err := httputil.WritePaginated(w, reservations, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "GetAll", "operation", "WritePaginated", "error", err)
	}
}

func (h *ReservationHandler) Search(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	unitID := r.URL.Query().Get("unit_id")
	if unitID == "" {
		h.writeError(w, "Search", apperrors.InvalidInput("unit_id query parameter is required"))
		return
	}

	from, err := httputil.ExtractOptionalDateParam(r, "from")
	if err != nil {
		h.writeError(w, "Search", err)
		return
	}
	to, err := httputil.ExtractOptionalDateParam(r, "to")
	if err != nil {
		h.writeError(w, "Search", err)
		return
	}

	status, err := extractStatusParam(r)
	if err != nil {
		h.writeError(w, "Search", err)
		return
	}

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "Search", err)
		return
	}

	reservations, total, err := h.service.SearchByUnit(r.Context(), unitID, from, to, status, limit, offset)
	if err != nil {
		h.writeError(w, "Search", err)
		return
	}

	if err := httputil.WritePaginated(w, reservations, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "Search", "operation", "WritePaginated", "error", err)
	}
}

func (h *ReservationHandler) Confirm(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actorID, err := httputil.ExtractActorID(r)
	if err != nil {
		h.writeError(w, "Confirm", err)
		return
	}

	reservation, err := h.service.Confirm(r.Context(), ps.ByName("id"), actorID)
	if err != nil {
		h.writeError(w, "Confirm", err)
		return
	}

	if err := httputil.WriteSuccess(w, reservation); err != nil {
		h.log.Error("failed to write success response", "handler", "Confirm", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReservationHandler) Reject(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.transitionWithReason(w, r, ps, "Reject", h.service.Reject)
}

func (h *ReservationHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.transitionWithReason(w, r, ps, "Cancel", h.service.Cancel)
}

func (h *ReservationHandler) Complete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	reservation, err := h.service.Complete(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "Complete", err)
		return
	}

	if err := httputil.WriteSuccess(w, reservation); err != nil {
		h.log.Error("failed to write success response", "handler", "Complete", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReservationHandler) transitionWithReason(
	w http.ResponseWriter,
	r *http.Request,
	ps httprouter.Params,
	handlerName string,
	op func(ctx context.Context, id string, actorID string, reason string) (*model.Reservation, error),
) {
	actorID, err := httputil.ExtractActorID(r)
	if err != nil {
		h.writeError(w, handlerName, err)
		return
	}

	// The reason body is optional.
	var req reasonRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	reservation, err := op(r.Context(), ps.ByName("id"), actorID, req.Reason)
	if err != nil {
		h.writeError(w, handlerName, err)
		return
	}

	if err := httputil.WriteSuccess(w, reservation); err != nil {
		h.log.Error("failed to write success response", "handler", handlerName, "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReservationHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func extractStatusParam(r *http.Request) (model.ReservationStatus, error) {
	raw := r.URL.Query().Get("status")
	if raw == "" {
		return "", nil
	}

	status := model.ReservationStatus(raw)
	switch status {
	case model.StatusPending, model.StatusConfirmed, model.StatusActive,
		model.StatusCancelled, model.StatusCompleted, model.StatusRejected:
		return status, nil
	}
	return "", apperrors.InvalidInput("invalid status parameter: " + raw)
}

func (h *ReservationHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/availability", h.CheckAvailability)
	router.POST("/api/v1/reservations", h.Create)
	router.GET("/api/v1/reservations", h.GetAll)
	router.GET("/api/v1/reservations/id/:id", h.GetByID)
	router.GET("/api/v1/reservations/search", h.Search)
	router.POST("/api/v1/reservations/id/:id/confirm", h.Confirm)
	router.POST("/api/v1/reservations/id/:id/reject", h.Reject)
	router.POST("/api/v1/reservations/id/:id/cancel", h.Cancel)
	router.POST("/api/v1/reservations/id/:id/complete", h.Complete)
}
