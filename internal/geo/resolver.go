package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/clapserv/backend/internal/cache"
	"github.com/clapserv/backend/internal/database"
	"github.com/clapserv/backend/internal/logger"
	"github.com/clapserv/backend/internal/metrics"
	"github.com/clapserv/backend/internal/models"
	"go.uber.org/zap"
)

// Resolver resolves a Location to Coordinates. Implementations return
// ok=false when the location cannot be resolved; callers decide policy
// (the matcher is deliberately permissive on misses).
type Resolver interface {
	Resolve(ctx context.Context, loc Location) (Coordinates, bool)
}

const geocodeCacheTTL = 24 * time.Hour

// DBResolver resolves locations in three steps: stored coordinates,
// the service_regions gazetteer (Redis-cached), then an IP-geolocation
// fallback for the caller's own position.
type DBResolver struct {
	ipClient *IPLocateClient
}

// NewResolver creates the default resolver chain.
func NewResolver(ipClient *IPLocateClient) *DBResolver {
	return &DBResolver{ipClient: ipClient}
}

// Resolve implements Resolver.
func (r *DBResolver) Resolve(ctx context.Context, loc Location) (Coordinates, bool) {
	m := metrics.Get()

	if loc.HasCoordinates() {
		coords := Coordinates{Lat: *loc.Lat, Lng: *loc.Lng}
		if coords.Valid() {
			m.GeocodeLookupsTotal.WithLabelValues("stored").Inc()
			return coords, true
		}
	}

	if loc.Zip != "" || loc.City != "" {
		if coords, ok := r.lookupRegion(ctx, loc); ok {
			return coords, true
		}
	}

	// Last resort: the caller's own position via IP geolocation. Only
	// meaningful for "where am I" locations, which is exactly the case
	// where the client sent nothing at all.
	if loc.IsEmpty() && r.ipClient != nil {
		if coords, err := r.ipClient.Locate(ctx); err == nil {
			m.GeocodeLookupsTotal.WithLabelValues("ip").Inc()
			return coords, true
		} else {
			logger.WarnWithErr("IP geolocation fallback failed", err)
		}
	}

	m.GeocodeLookupsTotal.WithLabelValues("miss").Inc()
	return Coordinates{}, false
}

// lookupRegion geocodes a city/zip via the service_regions table,
// caching hits in Redis.
func (r *DBResolver) lookupRegion(ctx context.Context, loc Location) (Coordinates, bool) {
	m := metrics.Get()
	key := geocodeCacheKey(loc)

	if rc := cache.GetRedisClient(); rc != nil {
		if raw, err := rc.Get(ctx, key); err == nil {
			var coords Coordinates
			if json.Unmarshal([]byte(raw), &coords) == nil {
				m.GeocodeLookupsTotal.WithLabelValues("cache").Inc()
				return coords, true
			}
		}
	}

	var region models.ServiceRegion
	q := database.DB.WithContext(ctx).Where("is_active = true")
	switch {
	case loc.Zip != "":
		q = q.Where("zip = ?", loc.Zip)
	case loc.City != "":
		q = q.Where("LOWER(city) = LOWER(?)", strings.TrimSpace(loc.City))
		if loc.State != "" {
			q = q.Where("LOWER(state) = LOWER(?)", strings.TrimSpace(loc.State))
		}
	default:
		return Coordinates{}, false
	}

	if err := q.First(&region).Error; err != nil {
		logger.Log.Debug("region gazetteer miss",
			zap.String("city", loc.City),
			zap.String("zip", loc.Zip),
		)
		return Coordinates{}, false
	}

	coords := Coordinates{Lat: region.Lat, Lng: region.Lng}

	if rc := cache.GetRedisClient(); rc != nil {
		if raw, err := json.Marshal(coords); err == nil {
			if err := rc.SetEx(ctx, key, string(raw), geocodeCacheTTL); err != nil {
				logger.WarnWithErr("failed to cache geocode result", err)
			}
		}
	}

	m.GeocodeLookupsTotal.WithLabelValues("region").Inc()
	return coords, true
}

func geocodeCacheKey(loc Location) string {
	if loc.Zip != "" {
		return fmt.Sprintf("geocode:zip:%s", loc.Zip)
	}
	return fmt.Sprintf("geocode:city:%s:%s",
		strings.ToLower(strings.TrimSpace(loc.City)),
		strings.ToLower(strings.TrimSpace(loc.State)))
}
