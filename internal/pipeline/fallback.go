package pipeline

import (
	"fmt"

	"github.com/ternarybob/trendreel/internal/models"
)

// FallbackPolicy is what the orchestrator does when a stage's data source is
// unavailable.
type FallbackPolicy string

const (
	// FallbackNone propagates the failure and halts the run.
	FallbackNone FallbackPolicy = "none"
	// FallbackSubstituteMock replaces the unavailable data with a fixed mock
	// dataset and continues.
	FallbackSubstituteMock FallbackPolicy = "substitute_mock"
)

// FallbackPolicies maps each stage to its fallback policy. Stages missing from
// the table use FallbackNone.
type FallbackPolicies map[models.StageName]FallbackPolicy

// DefaultFallbackPolicies sanctions mock substitution for trend acquisition
// only. Downstream stages do not depend on trend data being live, whereas a
// faked video or publish result would mislead everything after it.
func DefaultFallbackPolicies() FallbackPolicies {
	return FallbackPolicies{
		models.StageTrendSignals: FallbackSubstituteMock,
		models.StageCandidates:   FallbackNone,
		models.StageWeighting:    FallbackNone,
		models.StageComposition:  FallbackNone,
		models.StageRender:       FallbackNone,
		models.StagePublish:      FallbackNone,
	}
}

// For returns the policy of a stage.
func (p FallbackPolicies) For(stage models.StageName) FallbackPolicy {
	if policy, ok := p[stage]; ok {
		return policy
	}
	return FallbackNone
}

// PoliciesFromConfig overlays configured policies (stage name -> policy) on
// the defaults.
func PoliciesFromConfig(configured map[string]string) (FallbackPolicies, error) {
	policies := DefaultFallbackPolicies()
	for stage, policy := range configured {
		name := models.StageName(stage)
		if name.Index() < 0 {
			return nil, fmt.Errorf("unknown stage %q in fallback policies", stage)
		}
		switch FallbackPolicy(policy) {
		case FallbackNone, FallbackSubstituteMock:
			policies[name] = FallbackPolicy(policy)
		default:
			return nil, fmt.Errorf("unknown fallback policy %q for stage %s", policy, stage)
		}
	}
	return policies, nil
}
