package handlers

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func hasSignal(signals []Signal, name string) bool {
	for _, s := range signals {
		if s.Name == name {
			return true
		}
	}
	return false
}

// spec.md §8 invariant 9, literal examples.
func TestDetectCompanySignals_LiteralExamples(t *testing.T) {
	atCapacity := DetectCompanySignals(CompanySnapshot{Members: 25, SeatLimit: 25})
	assert.True(t, hasSignal(atCapacity, "team_at_capacity"))
	for _, s := range atCapacity {
		if s.Name == "team_at_capacity" {
			assert.Equal(t, PriorityCritical, s.Priority)
		}
	}

	approaching := DetectCompanySignals(CompanySnapshot{Members: 20, SeatLimit: 25})
	assert.True(t, hasSignal(approaching, "team_approaching_capacity"))
	assert.False(t, hasSignal(approaching, "team_at_capacity"))

	belowThreshold := DetectCompanySignals(CompanySnapshot{Members: 16, SeatLimit: 25})
	assert.False(t, hasSignal(belowThreshold, "team_at_capacity"))
	assert.False(t, hasSignal(belowThreshold, "team_approaching_capacity"))

	powerUser := DetectCompanySignals(CompanySnapshot{ActiveProjects: 110, ProjectLimit: 1000})
	assert.True(t, hasSignal(powerUser, "power_user"))
	assert.False(t, hasSignal(powerUser, "approaching_project_limit"))
}

func TestDetectCompanySignals_SeatAndProjectSignalsAreIndependent(t *testing.T) {
	both := DetectCompanySignals(CompanySnapshot{Members: 25, SeatLimit: 25, ActiveProjects: 900, ProjectLimit: 1000})
	assert.True(t, hasSignal(both, "team_at_capacity"))
	assert.True(t, hasSignal(both, "approaching_project_limit"))

	neither := DetectCompanySignals(CompanySnapshot{Members: 5, SeatLimit: 25, ActiveProjects: 10, ProjectLimit: 1000})
	assert.Empty(t, neither)
}

// spec.md §8 invariant 9, as a property: seat-capacity classification is
// a strict function of the members/limit ratio, regardless of the
// absolute scale of members and limit.
func TestProperty_DetectCompanySignals_SeatRatioThresholds(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("seat signal matches the ratio bucket", prop.ForAll(
		func(members, limit int) bool {
			if limit <= 0 {
				return true
			}
			signals := DetectCompanySignals(CompanySnapshot{Members: members, SeatLimit: limit})
			ratio := float64(members) / float64(limit)

			atCapacity := hasSignal(signals, "team_at_capacity")
			approaching := hasSignal(signals, "team_approaching_capacity")

			switch {
			case ratio >= 1.0:
				return atCapacity && !approaching
			case ratio >= 0.8:
				return approaching && !atCapacity
			default:
				return !atCapacity && !approaching
			}
		},
		gen.IntRange(0, 200),
		gen.IntRange(1, 200),
	))

	properties.TestingRun(t)
}
