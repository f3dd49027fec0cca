package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"lodgic/internal/calendar/service"
	apperrors "lodgic/pkg/errors"
	httputil "lodgic/pkg/http"
	"lodgic/pkg/logger"
	"lodgic/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type CalendarHandler struct {
	service service.CalendarService
	log     *logger.Logger
}

func NewCalendarHandler(service service.CalendarService, log *logger.Logger) *CalendarHandler {
	return &CalendarHandler{
		service: service,
		log:     log,
	}
}

type rangeRequest struct {
	UnitID   string `json:"unit_id"`
	CheckIn  string `json:"check_in"`
	CheckOut string `json:"check_out"`
}

func (h *CalendarHandler) ListDays(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	unitID := r.URL.Query().Get("unit_id")
	if unitID == "" {
		h.writeError(w, "ListDays", apperrors.InvalidInput("unit_id query parameter is required"))
		return
	}

	from, err := httputil.ExtractOptionalDateParam(r, "from")
	if err != nil {
		h.writeError(w, "ListDays", err)
		return
	}
	to, err := httputil.ExtractOptionalDateParam(r, "to")
	if err != nil {
		h.writeError(w, "ListDays", err)
		return
	}

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "ListDays", err)
		return
	}

	days, total, err := h.service.ListDays(r.Context(), unitID, from, to, limit, offset)
	if err != nil {
		h.writeError(w, "ListDays", err)
		return
	}

	if err := httputil.WritePaginated(w, days, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "ListDays", "operation", "WritePaginated", "error", err)
	}
}

func (h *CalendarHandler) Block(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	h.mutateRange(w, r, "Block", h.service.BlockRange)
}

func (h *CalendarHandler) Free(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	h.mutateRange(w, r, "Free", h.service.FreeRange)
}

func (h *CalendarHandler) mutateRange(
	w http.ResponseWriter,
	r *http.Request,
	handlerName string,
	op func(ctx context.Context, unitID string, actorID string, dr model.DateRange) error,
) {
	actorID, err := httputil.ExtractActorID(r)
	if err != nil {
		h.writeError(w, handlerName, err)
		return
	}

	unitID, dr, err := decodeRangeRequest(r)
	if err != nil {
		h.writeError(w, handlerName, err)
		return
	}

	if err := op(r.Context(), unitID, actorID, dr); err != nil {
		h.writeError(w, handlerName, err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *CalendarHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *CalendarHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/calendar", h.ListDays)
	router.POST("/api/v1/calendar/block", h.Block)
	router.POST("/api/v1/calendar/free", h.Free)
}

func decodeRangeRequest(r *http.Request) (string, model.DateRange, error) {
	var req rangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return "", model.DateRange{}, apperrors.InvalidInput("Invalid request body")
	}
	if req.UnitID == "" {
		return "", model.DateRange{}, apperrors.InvalidInput("unit_id is required")
	}

	checkIn, err := model.ParseDate(req.CheckIn)
	if err != nil {
		return "", model.DateRange{}, apperrors.InvalidInput("invalid check_in, expected YYYY-MM-DD")
	}
	checkOut, err := model.ParseDate(req.CheckOut)
	if err != nil {
		return "", model.DateRange{}, apperrors.InvalidInput("invalid check_out, expected YYYY-MM-DD")
	}

	return req.UnitID, model.NewDateRange(checkIn, checkOut), nil
}
