package router

// Stage is a step of the per-order routing state machine.
//
//	RECEIVED -> RISK_CHECKED -> LIMIT_CHECKED -> ROUTED -> LOGGED
//
// with REJECTED_RISK, REJECTED_LIMIT and ROUTING_FAILED as terminal failures.
type Stage string

const (
	StageReceived      Stage = "RECEIVED"
	StageRiskChecked   Stage = "RISK_CHECKED"
	StageLimitChecked  Stage = "LIMIT_CHECKED"
	StageRouted        Stage = "ROUTED"
	StageLogged        Stage = "LOGGED"
	StageRejectedRisk  Stage = "REJECTED_RISK"
	StageRejectedLimit Stage = "REJECTED_LIMIT"
	StageRoutingFailed Stage = "ROUTING_FAILED"
)

// Failed reports whether s is a terminal failure.
func (s Stage) Failed() bool {
	return s == StageRejectedRisk || s == StageRejectedLimit || s == StageRoutingFailed
}

var transitions = map[Stage][]Stage{
	StageReceived:     {StageRiskChecked, StageRejectedRisk},
	StageRiskChecked:  {StageLimitChecked, StageRejectedLimit},
	StageLimitChecked: {StageRouted, StageRoutingFailed},
	StageRouted:       {StageLogged},
}

// CanTransition reports whether next may follow s.
func (s Stage) CanTransition(next Stage) bool {
	for _, n := range transitions[s] {
		if n == next {
			return true
		}
	}
	return false
}
