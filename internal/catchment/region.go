package catchment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dbourene/consumerseek/internal/db"
)

// ErrRegionNotFound is returned when the installation point lies outside
// every known commune. Callers surface it; nothing retries automatically.
var ErrRegionNotFound = errors.New("no commune contains the installation point")

// Region is the interpreted result of the spatial query around an
// installation: the commune containing the point and every commune whose
// geometry intersects the broad search circle. The circle radius is the
// RPC's concern and is always at least the largest regulatory radius (20 km),
// so no potentially eligible commune is missed.
type Region struct {
	InstallationCommune *Commune  `json:"commune_installation"`
	RayonMetres         *float64  `json:"rayon"`
	CommunesDansRayon   []Commune `json:"communes_dans_rayon"`
}

// CommuneCodes returns the installation commune's code (if any) followed by
// the codes of all communes in the search radius.
func (r *Region) CommuneCodes() []string {
	codes := make([]string, 0, len(r.CommunesDansRayon)+1)
	if r.InstallationCommune != nil {
		codes = append(codes, r.InstallationCommune.CodGeo)
	}
	for _, c := range r.CommunesDansRayon {
		codes = append(codes, c.CodGeo)
	}
	return codes
}

// InstallationDensity returns the dens7 code of the installation's commune,
// falling back to DefaultDensity when the point resolved to no commune or the
// commune has no density record.
func (r *Region) InstallationDensity() int {
	if r.InstallationCommune == nil || r.InstallationCommune.Dens7 == 0 {
		return DefaultDensity
	}
	return r.InstallationCommune.Dens7
}

// RegionResolver locates the communes around an installation point.
type RegionResolver interface {
	ResolveRegion(ctx context.Context, lat, lon float64) (*Region, error)
}

// SpatialRegionResolver resolves regions through the PostGIS RPC
// rpc_communes_autour_installation owned by the database.
type SpatialRegionResolver struct{}

// ResolveRegion runs the spatial RPC and interprets its JSON payload.
// Returns ErrRegionNotFound when the payload carries no containing commune.
func (SpatialRegionResolver) ResolveRegion(ctx context.Context, lat, lon float64) (*Region, error) {
	var payload []byte
	row := db.DB.WithContext(ctx).
		Raw(`SELECT rpc_communes_autour_installation(?, ?)`, lat, lon).
		Row()
	if err := row.Scan(&payload); err != nil {
		return nil, fmt.Errorf("spatial rpc failed: %w", err)
	}

	region, err := decodeRegionPayload(payload)
	if err != nil {
		return nil, err
	}
	if region.InstallationCommune == nil {
		return nil, ErrRegionNotFound
	}
	return region, nil
}

// decodeRegionPayload tolerates the shapes the RPC has been observed to
// produce: a bare object, a one-element array around it, or either of those
// wrapped in a single-key object named after the function.
func decodeRegionPayload(payload []byte) (*Region, error) {
	if len(payload) == 0 {
		return nil, ErrRegionNotFound
	}

	raw := json.RawMessage(payload)
	for depth := 0; depth < 3; depth++ {
		var arr []json.RawMessage
		if err := json.Unmarshal(raw, &arr); err == nil {
			if len(arr) == 0 {
				return nil, ErrRegionNotFound
			}
			raw = arr[0]
			continue
		}

		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, fmt.Errorf("decode spatial rpc payload: %w", err)
		}
		if _, ok := obj["communes_dans_rayon"]; ok {
			break
		}
		if _, ok := obj["commune_installation"]; ok {
			break
		}
		// Single-key wrapper, e.g. {"rpc_communes_autour_installation": {...}}
		if len(obj) == 1 {
			for _, v := range obj {
				raw = v
			}
			continue
		}
		return nil, fmt.Errorf("unrecognized spatial rpc payload shape")
	}

	var region Region
	if err := json.Unmarshal(raw, &region); err != nil {
		return nil, fmt.Errorf("decode region: %w", err)
	}
	return &region, nil
}
