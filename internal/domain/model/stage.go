package model

// Stage is the pipeline position of an application as seen through its log.
type Stage int

const (
	StageCreated Stage = iota
	StageScored
	StageFormAnalyzed
	StageFilled
	StageSubmitted
)

func (s Stage) String() string {
	switch s {
	case StageCreated:
		return "created"
	case StageScored:
		return "scored"
	case StageFormAnalyzed:
		return "form_analyzed"
	case StageFilled:
		return "filled"
	case StageSubmitted:
		return "submitted"
	default:
		return "unknown"
	}
}

// StageOf maps a log action to the stage it proves was reached.
// The error action carries no stage of its own.
func StageOf(a LogAction) (Stage, bool) {
	switch a {
	case LogActionStart, LogActionNavigate:
		return StageCreated, true
	case LogActionAnalyze:
		return StageScored, true
	case LogActionFormAnalysis:
		return StageFormAnalyzed, true
	case LogActionFill:
		return StageFilled, true
	case LogActionSubmit:
		return StageSubmitted, true
	default:
		return StageCreated, false
	}
}

// FurthestStage is the latest stage any entry of logs proves was reached.
func FurthestStage(logs []*ApplicationLog) Stage {
	furthest := StageCreated
	for _, l := range logs {
		if st, ok := StageOf(l.Action); ok && st > furthest {
			furthest = st
		}
	}
	return furthest
}
