package model

import "time"

type LogAction string

const (
	LogActionStart        LogAction = "start"
	LogActionNavigate     LogAction = "navigate"
	LogActionAnalyze      LogAction = "analyze"
	LogActionFormAnalysis LogAction = "form_analysis"
	LogActionFill         LogAction = "fill"
	LogActionSubmit       LogAction = "submit"
	LogActionError        LogAction = "error"
)

type LogStatus string

const (
	LogStatusSuccess LogStatus = "success"
	LogStatusFailed  LogStatus = "failed"
)

// ApplicationLog is an append-only audit entry for a pipeline step.
type ApplicationLog struct {
	ID            string
	ApplicationID string
	Action        LogAction
	Status        LogStatus
	Message       string
	ScreenshotRef *string
	Details       map[string]any
	CreatedAt     time.Time
}
