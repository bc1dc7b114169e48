package farms

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/xy"

	"farmadvisory/internal/advisory"
	"farmadvisory/internal/types"
)

// kerichoBoundary is an approximate outline of Kericho County, used when no
// boundary file is configured. Coordinates are lon/lat (GeoJSON order).
const kerichoBoundary = `{
  "type": "Polygon",
  "coordinates": [[
    [35.02, -0.10], [35.20, -0.02], [35.45, -0.05], [35.62, -0.20],
    [35.60, -0.48], [35.45, -0.70], [35.20, -0.72], [35.05, -0.55],
    [35.02, -0.10]
  ]]
}`

// Region is the service area: a reference point used when no farm is
// given, a default terrain factor, the regional soil profile and a boundary
// polygon for the geofence.
type Region struct {
	Name          string
	Center        types.Location
	TerrainFactor float64
	Soil          *types.SoilProfile

	boundary []*geom.Polygon
}

// RegionOptions configures NewRegion.
type RegionOptions struct {
	Name          string
	Lat, Lon      float64
	TerrainFactor float64
	// BoundaryGeoJSON is a path to a Polygon, MultiPolygon, Feature or
	// FeatureCollection file. Empty selects the built-in Kericho outline.
	BoundaryGeoJSON string
}

// NewRegion loads the boundary and assembles a Region.
func NewRegion(opts RegionOptions) (*Region, error) {
	if err := types.ValidateCoordinates(opts.Lat, opts.Lon); err != nil {
		return nil, fmt.Errorf("region center: %w", err)
	}

	data := []byte(kerichoBoundary)
	if opts.BoundaryGeoJSON != "" {
		var err error
		data, err = os.ReadFile(opts.BoundaryGeoJSON)
		if err != nil {
			return nil, fmt.Errorf("reading region boundary: %w", err)
		}
	}

	polys, err := ParseBoundary(data)
	if err != nil {
		return nil, err
	}

	tf := opts.TerrainFactor
	if tf <= 0 {
		tf = advisory.DefaultTerrainFactor
	}

	return &Region{
		Name:          opts.Name,
		Center:        types.Location{Lat: opts.Lat, Lon: opts.Lon, DisplayName: opts.Name},
		TerrainFactor: tf,
		Soil:          advisory.KerichoSoilProfile(),
		boundary:      polys,
	}, nil
}

// ParseBoundary extracts the polygons from a GeoJSON document.
func ParseBoundary(data []byte) ([]*geom.Polygon, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("parsing boundary GeoJSON: %w", err)
	}

	var geometries []geom.T
	switch head.Type {
	case "FeatureCollection":
		var fc geojson.FeatureCollection
		if err := json.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("parsing boundary feature collection: %w", err)
		}
		for _, f := range fc.Features {
			geometries = append(geometries, f.Geometry)
		}
	case "Feature":
		var f geojson.Feature
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parsing boundary feature: %w", err)
		}
		geometries = append(geometries, f.Geometry)
	default:
		var g geom.T
		if err := geojson.Unmarshal(data, &g); err != nil {
			return nil, fmt.Errorf("parsing boundary geometry: %w", err)
		}
		geometries = append(geometries, g)
	}

	var polys []*geom.Polygon
	for _, g := range geometries {
		switch t := g.(type) {
		case *geom.Polygon:
			polys = append(polys, t)
		case *geom.MultiPolygon:
			for i := 0; i < t.NumPolygons(); i++ {
				polys = append(polys, t.Polygon(i))
			}
		}
	}
	if len(polys) == 0 {
		return nil, fmt.Errorf("boundary GeoJSON contains no polygons")
	}
	return polys, nil
}

// Contains reports whether the point lies inside the boundary (holes
// excluded). Points on an edge count as inside.
func (r *Region) Contains(lat, lon float64) bool {
	if r == nil {
		return false
	}
	p := geom.Coord{lon, lat}
	for _, poly := range r.boundary {
		if poly.NumLinearRings() == 0 {
			continue
		}
		if !xy.IsPointInRing(poly.Layout(), p, poly.LinearRing(0).FlatCoords()) {
			continue
		}
		inHole := false
		for i := 1; i < poly.NumLinearRings(); i++ {
			if xy.IsPointInRing(poly.Layout(), p, poly.LinearRing(i).FlatCoords()) {
				inHole = true
				break
			}
		}
		if !inHole {
			return true
		}
	}
	return false
}

// SiteAt returns the advisory site for a bare coordinate: the region's
// terrain factor, plus the regional soil profile when the point lies inside
// the boundary.
func (r *Region) SiteAt(lat, lon float64) advisory.Site {
	site := advisory.DefaultSite()
	if r == nil {
		return site
	}
	site.TerrainFactor = r.TerrainFactor
	if r.Contains(lat, lon) {
		site.Soil = r.Soil
	}
	return site
}

// SiteFor is SiteAt for a registered farm, with the farm's own terrain
// factor taking precedence when set.
func (r *Region) SiteFor(f *types.Farm) advisory.Site {
	site := r.SiteAt(f.Location.Lat, f.Location.Lon)
	if f.TerrainFactor > 0 {
		site.TerrainFactor = f.TerrainFactor
	}
	return site
}
