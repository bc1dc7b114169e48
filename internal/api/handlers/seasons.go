package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"farmadvisory/internal/advisory"
	"farmadvisory/internal/core"
	"farmadvisory/internal/types"
)

// SeasonResponse is returned by GET /v1/seasons/current.
type SeasonResponse struct {
	Month  int          `json:"month"`
	Season types.Season `json:"season"`
}

// SeasonHandler reports the agricultural season.
type SeasonHandler struct {
	clock types.Clock
}

// NewSeasonHandler creates a SeasonHandler.
func NewSeasonHandler(clock types.Clock) *SeasonHandler {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &SeasonHandler{clock: clock}
}

// RegisterRoutes mounts the season routes. Call inside r.Route("/seasons", ...).
func (h *SeasonHandler) RegisterRoutes(r chi.Router) {
	r.Get("/current", h.HandleGetCurrent)
}

// HandleGetCurrent handles GET /v1/seasons/current. An optional month query
// parameter (1-12) overrides the current month.
func (h *SeasonHandler) HandleGetCurrent(w http.ResponseWriter, r *http.Request) {
	month := int(h.clock.Now().Month())
	if raw := r.URL.Query().Get("month"); raw != "" {
		m, err := strconv.Atoi(raw)
		if err != nil || m < 1 || m > 12 {
			core.Error(w, r, types.NewInvalidInputError("month must be an integer between 1 and 12",
				map[string]any{"month": raw}))
			return
		}
		month = m
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{
		Data: SeasonResponse{Month: month, Season: advisory.ClassifySeason(month)},
	})
}
