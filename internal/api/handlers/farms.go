package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"farmadvisory/internal/advisory"
	"farmadvisory/internal/core"
	"farmadvisory/internal/farms"
	"farmadvisory/internal/types"
)

// FarmRegistry is implemented by *farms.Registry.
type FarmRegistry interface {
	Register(ctx context.Context, req types.RegisterFarmRequest) (*types.Farm, error)
	Get(ctx context.Context, id string) (*types.Farm, error)
	List(ctx context.Context) []types.Farm
	Nearest(ctx context.Context, lat, lon float64) (*types.NearestFarm, error)
	Region() *farms.Region
}

// SiteAdvisor computes a live advisory for a location. *AdvisoryHandler
// implements it.
type SiteAdvisor interface {
	AdviseSite(ctx context.Context, loc types.Location, site advisory.Site) (*SiteAdvisory, error)
}

// FarmAdvisoryResponse is returned by GET /v1/farms/{id}/advisory.
type FarmAdvisoryResponse struct {
	Farm *types.Farm `json:"farm"`
	*SiteAdvisory
}

// FarmHandler serves farm registration and lookup.
type FarmHandler struct {
	registry FarmRegistry
	advisor  SiteAdvisor
	logger   *slog.Logger
}

// NewFarmHandler creates a FarmHandler.
func NewFarmHandler(registry FarmRegistry, advisor SiteAdvisor, logger *slog.Logger) *FarmHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &FarmHandler{registry: registry, advisor: advisor, logger: logger}
}

// RegisterRoutes mounts the farm routes. Call inside r.Route("/farms", ...).
// /nearest is registered before /{id} so it is not captured as an ID.
func (h *FarmHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/nearest", h.Nearest)
	r.Get("/{id}", h.Get)
	r.Get("/{id}/advisory", h.GetAdvisory)
}

// Create handles POST /v1/farms.
func (h *FarmHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req types.RegisterFarmRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	farm, err := h.registry.Register(r.Context(), req)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	w.Header().Set("Location", "/v1/farms/"+farm.ID)
	resp := core.APIResponse{Data: farm}
	if !farm.InsideRegion {
		resp.Meta = &core.ResponseMeta{Warnings: []string{"outside_region"}}
	}
	core.JSON(w, r, http.StatusCreated, resp)
}

// List handles GET /v1/farms.
func (h *FarmHandler) List(w http.ResponseWriter, r *http.Request) {
	list := h.registry.List(r.Context())
	count := len(list)
	core.JSON(w, r, http.StatusOK, core.APIResponse{
		Data: list,
		Meta: &core.ResponseMeta{Count: &count},
	})
}

// Get handles GET /v1/farms/{id}.
func (h *FarmHandler) Get(w http.ResponseWriter, r *http.Request) {
	farm, err := h.registry.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: farm})
}

// Nearest handles GET /v1/farms/nearest?lat=&lon=.
func (h *FarmHandler) Nearest(w http.ResponseWriter, r *http.Request) {
	loc, err := parseLatLon(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	nearest, err := h.registry.Nearest(r.Context(), loc.Lat, loc.Lon)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: nearest})
}

// GetAdvisory handles GET /v1/farms/{id}/advisory. The farm's terrain factor
// and the regional soil profile (when inside the region) feed the engine.
func (h *FarmHandler) GetAdvisory(w http.ResponseWriter, r *http.Request) {
	farm, err := h.registry.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		core.Error(w, r, err)
		return
	}

	site := h.registry.Region().SiteFor(farm)
	result, err := h.advisor.AdviseSite(r.Context(), farm.Location, site)
	if err != nil {
		h.logger.WarnContext(r.Context(), "farm advisory failed",
			"farm_id", farm.ID,
			"error", err,
		)
		core.Error(w, r, err)
		return
	}

	w.Header().Set("Cache-Control", "private, max-age=300")
	core.JSON(w, r, http.StatusOK, core.APIResponse{
		Data: FarmAdvisoryResponse{Farm: farm, SiteAdvisory: result},
		Meta: &core.ResponseMeta{Source: result.Source, Warnings: result.Warnings},
	})
}
