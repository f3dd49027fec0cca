package handler

import (
	"encoding/json"
	"net/http"

	"lodgic/internal/units/service"
	httputil "lodgic/pkg/http"
	"lodgic/pkg/logger"
	"lodgic/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type UnitHandler struct {
	service service.UnitService
	log     *logger.Logger
}

func NewUnitHandler(service service.UnitService, log *logger.Logger) *UnitHandler {
	return &UnitHandler{
		service: service,
		log:     log,
	}
}

func (h *UnitHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	actorID, err := httputil.ExtractActorID(r)
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	var unit model.Unit
	if err := json.NewDecoder(r.Body).Decode(&unit); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Create", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}
	unit.LessorID = actorID

	if err := h.service.Create(r.Context(), &unit); err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, unit); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *UnitHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	unit, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, unit); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *UnitHandler) GetAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "GetAll", err)
		return
	}

	units, total, err := h.service.GetAll(r.Context(), limit, offset)
	if err != nil {
		h.writeError(w, "GetAll", err)
		return
	}

	if err := httputil.WritePaginated(w, units, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "GetAll", "operation", "WritePaginated", "error", err)
	}
}

func (h *UnitHandler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actorID, err := httputil.ExtractActorID(r)
	if err != nil {
		h.writeError(w, "Update", err)
		return
	}

	var updates model.UnitUpdate
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Update", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	if err := h.service.Update(r.Context(), ps.ByName("id"), actorID, &updates); err != nil {
		h.writeError(w, "Update", err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *UnitHandler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actorID, err := httputil.ExtractActorID(r)
	if err != nil {
		h.writeError(w, "Delete", err)
		return
	}

	if err := h.service.Delete(r.Context(), ps.ByName("id"), actorID); err != nil {
		h.writeError(w, "Delete", err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *UnitHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *UnitHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/units", h.Create)
	router.GET("/api/v1/units", h.GetAll)
	router.GET("/api/v1/units/id/:id", h.GetByID)
	router.PATCH("/api/v1/units/id/:id", h.Update)
	router.DELETE("/api/v1/units/id/:id", h.Delete)
}
