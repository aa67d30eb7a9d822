package handlers

import (
	"net/http"

	"github.com/vedran77/partsmarket/internal/service"
	"github.com/vedran77/partsmarket/internal/transport/http/middleware"
)

type UserHandler struct {
	namer *service.Namer
}

func NewUserHandler(namer *service.Namer) *UserHandler {
	return &UserHandler{namer: namer}
}

// Name returns the display label of a user as the caller should see it.
func (h *UserHandler) Name(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id", "user")
	if !ok {
		return
	}

	name := h.namer.NameFor(r.Context(), middleware.GetUserID(r.Context()), id)
	writeJSON(w, http.StatusOK, map[string]string{
		"id":   id.String(),
		"name": name,
	})
}
