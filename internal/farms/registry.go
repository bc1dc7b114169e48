// Package farms keeps the in-memory register of farms and the region
// geofence used to tag them.
package farms

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"

	"github.com/google/uuid"

	"farmadvisory/internal/types"
)

// StructValidator validates tagged request structs. core.Validator
// satisfies it.
type StructValidator interface {
	ValidateStruct(s any) error
}

// Registry holds registered farms in memory. It is safe for concurrent use.
// Farms are lost on restart.
type Registry struct {
	mu      sync.RWMutex
	farms   map[string]*types.Farm
	byEmail map[string]string
	order   []string

	region    *Region
	validator StructValidator
	clock     types.Clock
	logger    *slog.Logger
	newID     func() string
}

// NewRegistry creates an empty registry. region may be nil, in which case
// no farm is tagged as inside the region.
func NewRegistry(region *Region, v StructValidator, clock types.Clock, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	return &Registry{
		farms:     make(map[string]*types.Farm),
		byEmail:   make(map[string]string),
		region:    region,
		validator: v,
		clock:     clock,
		logger:    logger,
		newID:     func() string { return "farm_" + uuid.NewString() },
	}
}

// Register validates the form and stores a new farm. An email may own only
// one farm.
func (r *Registry) Register(ctx context.Context, req types.RegisterFarmRequest) (*types.Farm, error) {
	req.OwnerName = strings.TrimSpace(req.OwnerName)
	req.FarmLocation = strings.TrimSpace(req.FarmLocation)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	if r.validator != nil {
		if err := r.validator.ValidateStruct(req); err != nil {
			return nil, err
		}
	}
	if err := types.ValidateCoordinates(req.Lat, req.Lon); err != nil {
		return nil, err
	}

	irrigation := req.IrrigationSystem
	if irrigation == "" {
		irrigation = types.IrrigationRainFed
	}

	farm := &types.Farm{
		ID:               r.newID(),
		OwnerName:        req.OwnerName,
		Email:            req.Email,
		FarmLocation:     req.FarmLocation,
		Location:         types.Location{Lat: req.Lat, Lon: req.Lon, DisplayName: req.FarmLocation},
		SizeAcres:        req.SizeAcres,
		SoilType:         req.SoilType,
		PrimaryCrops:     append([]string(nil), req.PrimaryCrops...),
		IrrigationSystem: irrigation,
		TerrainFactor:    req.TerrainFactor,
		InsideRegion:     r.region.Contains(req.Lat, req.Lon),
		CreatedAt:        r.clock.Now(),
	}
	if farm.PrimaryCrops == nil {
		farm.PrimaryCrops = []string{}
	}

	r.mu.Lock()
	if existing, ok := r.byEmail[farm.Email]; ok {
		r.mu.Unlock()
		return nil, types.NewAppErrorWithDetails(
			types.ErrCodeConflictFarmExists,
			"a farm is already registered for this email",
			nil,
			map[string]any{"farm_id": existing},
		)
	}
	r.farms[farm.ID] = farm
	r.byEmail[farm.Email] = farm.ID
	r.order = append(r.order, farm.ID)
	r.mu.Unlock()

	r.logger.InfoContext(ctx, "farm registered",
		"farm_id", farm.ID,
		"inside_region", farm.InsideRegion,
		"size_acres", farm.SizeAcres,
	)

	return cloneFarm(farm), nil
}

// Get returns a copy of the farm with the given ID.
func (r *Registry) Get(_ context.Context, id string) (*types.Farm, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.farms[id]
	if !ok {
		return nil, types.NewAppError(types.ErrCodeNotFoundFarm, fmt.Sprintf("farm %q not found", id), nil)
	}
	return cloneFarm(f), nil
}

// List returns copies of all farms in registration order.
func (r *Registry) List(_ context.Context) []types.Farm {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]types.Farm, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *cloneFarm(r.farms[id]))
	}
	return out
}

// Len returns the number of registered farms.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Nearest returns the registered farm closest to the point. Ties go to the
// earlier registration.
func (r *Registry) Nearest(_ context.Context, lat, lon float64) (*types.NearestFarm, error) {
	if err := types.ValidateCoordinates(lat, lon); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var (
		best     *types.Farm
		bestDist = math.Inf(1)
	)
	for _, id := range r.order {
		f := r.farms[id]
		d := HaversineKm(lat, lon, f.Location.Lat, f.Location.Lon)
		if d < bestDist {
			best, bestDist = f, d
		}
	}
	if best == nil {
		return nil, types.NewAppError(types.ErrCodeNotFoundFarm, "no farms registered", nil)
	}
	return &types.NearestFarm{Farm: *cloneFarm(best), DistanceKm: math.Round(bestDist*100) / 100}, nil
}

// Region returns the region the registry tags farms against.
func (r *Registry) Region() *Region {
	return r.region
}

func cloneFarm(f *types.Farm) *types.Farm {
	out := *f
	out.PrimaryCrops = append([]string{}, f.PrimaryCrops...)
	return &out
}
