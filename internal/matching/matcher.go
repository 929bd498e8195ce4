package matching

import (
	"context"
	"fmt"
	"time"

	"github.com/clapserv/backend/internal/database"
	"github.com/clapserv/backend/internal/geo"
	"github.com/clapserv/backend/internal/logger"
	"github.com/clapserv/backend/internal/metrics"
	"github.com/clapserv/backend/internal/models"
	"go.uber.org/zap"
)

// Matcher selects the providers that qualify for a service request:
// skill membership first, then the category's distance policy.
type Matcher struct {
	resolver geo.Resolver
}

// NewMatcher creates a matcher using the given location resolver.
func NewMatcher(resolver geo.Resolver) *Matcher {
	return &Matcher{resolver: resolver}
}

// Match loads active providers with the category in their skill list and
// applies the distance filter against the request location.
func (m *Matcher) Match(ctx context.Context, category *models.ServiceCategory, requestLoc geo.Location) ([]models.ProviderProfile, error) {
	start := time.Now()

	var candidates []models.ProviderProfile
	err := database.DB.WithContext(ctx).
		Where("is_active = true").
		Where("? = ANY(skills)", category.ID).
		Find(&candidates).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load provider candidates: %w", err)
	}

	matched := m.Filter(ctx, category, requestLoc, candidates)

	metrics.Get().MatchDuration.WithLabelValues(category.Slug).Observe(time.Since(start).Seconds())
	logger.Log.Info("provider matching completed",
		zap.String("category", category.Slug),
		zap.Int("candidates", len(candidates)),
		zap.Int("matched", len(matched)),
	)

	return matched, nil
}

// Filter applies the distance policy to an already-loaded candidate set.
// Split out from Match so the policy is testable without a database.
//
// Rules:
//   - a candidate whose skill list does not contain the category is
//     never included;
//   - a nil MaxDistanceKM means no distance filter at all;
//   - when the request location or a candidate's location cannot be
//     resolved, the candidate is INCLUDED. Distance filtering degrades
//     to skill-only matching rather than dropping providers on geocode
//     failures.
func (m *Matcher) Filter(ctx context.Context, category *models.ServiceCategory, requestLoc geo.Location, candidates []models.ProviderProfile) []models.ProviderProfile {
	mtr := metrics.Get()
	matched := make([]models.ProviderProfile, 0, len(candidates))

	skilled := candidates[:0:0]
	for _, p := range candidates {
		if p.Skills.Contains(category.ID) {
			skilled = append(skilled, p)
		}
	}

	if category.MaxDistanceKM == nil {
		for range skilled {
			mtr.MatchesEvaluatedTotal.WithLabelValues("matched").Inc()
		}
		return append(matched, skilled...)
	}

	origin, originOK := m.resolver.Resolve(ctx, requestLoc)
	if !originOK {
		logger.Log.Warn("request location unresolved, skipping distance filter",
			zap.String("category", category.Slug),
		)
		for range skilled {
			mtr.MatchesEvaluatedTotal.WithLabelValues("unresolved").Inc()
		}
		return append(matched, skilled...)
	}

	maxKM := *category.MaxDistanceKM
	for _, p := range skilled {
		coords, ok := m.resolver.Resolve(ctx, providerLocation(p))
		if !ok {
			mtr.MatchesEvaluatedTotal.WithLabelValues("unresolved").Inc()
			matched = append(matched, p)
			continue
		}

		d := geo.DistanceBetween(origin, coords)
		if d <= maxKM {
			mtr.MatchesEvaluatedTotal.WithLabelValues("matched").Inc()
			matched = append(matched, p)
		} else {
			mtr.MatchesEvaluatedTotal.WithLabelValues("filtered").Inc()
			logger.Log.Debug("provider filtered by distance",
				zap.String("provider_profile_id", p.ID),
				zap.Float64("distance_km", d),
				zap.Float64("max_km", maxKM),
			)
		}
	}

	return matched
}

// providerLocation builds the resolvable location for a provider profile.
func providerLocation(p models.ProviderProfile) geo.Location {
	return geo.Location{
		Lat:   p.Lat,
		Lng:   p.Lng,
		City:  p.City,
		State: p.State,
		Zip:   p.Zip,
	}
}

// RequestLocation builds the resolvable location for a service request.
func RequestLocation(r *models.ServiceRequest) geo.Location {
	return geo.Location{
		Lat:   r.Lat,
		Lng:   r.Lng,
		City:  r.City,
		State: r.State,
		Zip:   r.Zip,
	}
}
