package handlers

// Company-signal thresholds (spec.md §8 invariant 9). Kept as static
// application constants per the "CRM plan-limit table" open-question
// decision recorded in DESIGN.md: the thresholds are a deployment
// concern, not derived from the webhook payload.
const (
	teamAtCapacityRatio          = 1.0
	teamApproachingCapacityRatio = 0.8
	approachingProjectLimitRatio = 0.8
	powerUserActiveProjects      = 100
)

// SignalPriority is the urgency the Notifier/CRM task attaches to a
// detected company signal.
type SignalPriority string

const (
	PriorityCritical SignalPriority = "critical"
	PriorityWarning  SignalPriority = "warning"
	PriorityInfo     SignalPriority = "info"
)

// Signal is one detected company-health condition.
type Signal struct {
	Name     string
	Priority SignalPriority
}

// CompanySnapshot is the minimal shape DetectCompanySignals needs from a
// support_company.company_updated payload.
type CompanySnapshot struct {
	Members        int
	SeatLimit      int
	ActiveProjects int
	ProjectLimit   int
}

// DetectCompanySignals is the pure signal-detection function required by
// spec.md §8 invariant 9. Seat-capacity and project-limit signals are
// independent: a company can trip both, either, or neither.
func DetectCompanySignals(c CompanySnapshot) []Signal {
	var signals []Signal

	if c.SeatLimit > 0 {
		ratio := float64(c.Members) / float64(c.SeatLimit)
		switch {
		case ratio >= teamAtCapacityRatio:
			signals = append(signals, Signal{Name: "team_at_capacity", Priority: PriorityCritical})
		case ratio >= teamApproachingCapacityRatio:
			signals = append(signals, Signal{Name: "team_approaching_capacity", Priority: PriorityWarning})
		}
	}

	if c.ActiveProjects > powerUserActiveProjects {
		signals = append(signals, Signal{Name: "power_user", Priority: PriorityInfo})
	}
	if c.ProjectLimit > 0 {
		ratio := float64(c.ActiveProjects) / float64(c.ProjectLimit)
		if ratio >= approachingProjectLimitRatio {
			signals = append(signals, Signal{Name: "approaching_project_limit", Priority: PriorityWarning})
		}
	}

	return signals
}
