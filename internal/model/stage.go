package model

// Stage is a phase of the session, derived from the answered-question count.
type Stage string

// Stages in session order.
const (
	StageIntro      Stage = "intro"
	StageFoundation Stage = "foundation"
	StageDeepDive   Stage = "deep-dive"
	StageReflection Stage = "reflection"
	StageComplete   Stage = "complete"
)

// StageFor maps an answered-question count onto a stage. With the default
// 5/15 layout: 0 → intro, 1–5 → foundation, 6–10 → deep-dive, 11–14 →
// reflection, 15 → complete. The mapping is total and monotonic for any
// structured ≥ 1 and total > structured.
func StageFor(count, structured, total int) Stage {
	switch {
	case count <= 0:
		return StageIntro
	case count >= total:
		return StageComplete
	case count <= structured:
		return StageFoundation
	case count <= 2*structured:
		return StageDeepDive
	default:
		return StageReflection
	}
}

// Rank orders stages for monotonicity checks.
func (s Stage) Rank() int {
	switch s {
	case StageIntro:
		return 0
	case StageFoundation:
		return 1
	case StageDeepDive:
		return 2
	case StageReflection:
		return 3
	case StageComplete:
		return 4
	}
	return -1
}
