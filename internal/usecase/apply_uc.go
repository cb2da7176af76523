// File: internal/usecase/apply_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"autoapply-agent/internal/domain"
	"autoapply-agent/internal/domain/model"
	"autoapply-agent/internal/domain/ports/adapter"
	"autoapply-agent/internal/infra/logging"
	"autoapply-agent/internal/infra/metrics"
)

// Compile-time check
var _ ApplyUseCase = (*applyUC)(nil)

const (
	DefaultMatchThreshold = 70

	ReasonFormNotAnalyzed = "Could not analyze application form"
	lowScoreReasonFormat  = "Low match score: %d"
)

// ApplyUseCase runs the per-candidate pipeline:
// create, navigate, score, analyze form, fill, submit.
type ApplyUseCase interface {
	// Apply returns the application in its final state. The error is non-nil
	// only when the application could not be created at all.
	Apply(ctx context.Context, profile *model.Profile, jobURL string) (*model.Application, error)
}

type ApplyConfig struct {
	MatchThreshold int
	SubmitForms    bool
}

type applyUC struct {
	tracker   ApplicationTracker
	browser   adapter.BrowserDriver
	scorer    adapter.MatchScorer
	analyzer  adapter.FormAnalyzer
	extractor adapter.JobMetadataExtractor // optional
	shots     adapter.ScreenshotStore      // optional
	cfg       ApplyConfig
	log       *zerolog.Logger
	now       func() time.Time
}

func NewApplyUseCase(
	tracker ApplicationTracker,
	browser adapter.BrowserDriver,
	scorer adapter.MatchScorer,
	analyzer adapter.FormAnalyzer,
	extractor adapter.JobMetadataExtractor,
	shots adapter.ScreenshotStore,
	cfg ApplyConfig,
	logger *zerolog.Logger,
) *applyUC {
	if cfg.MatchThreshold <= 0 {
		cfg.MatchThreshold = DefaultMatchThreshold
	}
	l := logger.With().Str("component", "ApplyUseCase").Logger()
	return &applyUC{
		tracker:   tracker,
		browser:   browser,
		scorer:    scorer,
		analyzer:  analyzer,
		extractor: extractor,
		shots:     shots,
		cfg:       cfg,
		log:       &l,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (uc *applyUC) Apply(ctx context.Context, profile *model.Profile, jobURL string) (*model.Application, error) {
	if profile == nil {
		return nil, domain.ErrInvalidArgument
	}
	app, err := model.NewApplication(profile.UserID, jobURL)
	if err != nil {
		return nil, fmt.Errorf("new application for %q: %w", jobURL, err)
	}
	if _, err := uc.tracker.Create(ctx, app); err != nil {
		return nil, err
	}

	ctx = logging.WithApplicationID(ctx, app.ID)
	log := logging.With(ctx, uc.log)
	defer logging.TraceDuration(log, "ApplyUseCase.Apply")()

	uc.attempt(ctx, app, profile, log)

	log.Info().
		Str("status", string(app.Status)).
		Str("job_board", app.JobBoard).
		Msg("application finished")
	return app, nil
}

// attempt owns the browser session. The deferred recover is registered after
// the deferred Close, so a panic is recorded as a failure before the session
// is released.
func (uc *applyUC) attempt(ctx context.Context, app *model.Application, profile *model.Profile, log *zerolog.Logger) {
	sess, err := uc.browser.Open(ctx)
	if err != nil {
		uc.fail(ctx, app, fmt.Errorf("open browser session: %w", err), "", log)
		return
	}
	defer func() {
		if err := sess.Close(); err != nil {
			log.Warn().Err(err).Msg("close browser session")
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("apply pipeline panicked")
			uc.fail(ctx, app, fmt.Errorf("internal error: %v", r), "", log)
		}
	}()

	if shotRef, err := uc.run(ctx, sess, app, profile, log); err != nil {
		uc.fail(ctx, app, err, shotRef, log)
	}
}

// run returns an error only for failures not already recorded as a terminal state.
func (uc *applyUC) run(ctx context.Context, sess adapter.BrowserSession, app *model.Application, profile *model.Profile, log *zerolog.Logger) (string, error) {
	if err := sess.Navigate(ctx, app.JobURL); err != nil {
		return "", err
	}
	shot, err := sess.Screenshot(ctx)
	if err != nil {
		return "", fmt.Errorf("screenshot: %w", err)
	}
	markup, err := sess.Content(ctx)
	if err != nil {
		return "", fmt.Errorf("read page content: %w", err)
	}
	shotRef := uc.saveScreenshot(ctx, app.ID, "navigate", shot, log)
	uc.appendLog(ctx, app, LogEntry{
		Action:        model.LogActionNavigate,
		Status:        model.LogStatusSuccess,
		Message:       "Opened job page",
		ScreenshotRef: shotRef,
	}, log)

	uc.fillMetadata(ctx, app, markup, log)

	match := uc.score(ctx, markup, profile, log)
	score := match.MatchScore
	if !match.IsMatch || score < uc.cfg.MatchThreshold {
		reason := fmt.Sprintf(lowScoreReasonFormat, score)
		patch := model.FailedPatch(reason)
		patch.MatchScore = &score
		uc.record(ctx, app, patch, LogEntry{
			Action:  model.LogActionAnalyze,
			Status:  model.LogStatusFailed,
			Message: reason,
			Details: map[string]any{"match_score": score, "is_match": match.IsMatch, "reasoning": match.Reasoning},
		}, log)
		return shotRef, nil
	}
	uc.record(ctx, app, model.ApplicationPatch{MatchScore: &score}, LogEntry{
		Action:  model.LogActionAnalyze,
		Status:  model.LogStatusSuccess,
		Message: fmt.Sprintf("Job match score: %d", score),
		Details: map[string]any{"match_score": score, "reasoning": match.Reasoning},
	}, log)

	form := uc.analyze(ctx, shot, markup, log)
	if !form.Success {
		uc.record(ctx, app, model.FailedPatch(ReasonFormNotAnalyzed), LogEntry{
			Action:        model.LogActionFormAnalysis,
			Status:        model.LogStatusFailed,
			Message:       ReasonFormNotAnalyzed,
			ScreenshotRef: shotRef,
		}, log)
		return shotRef, nil
	}
	uc.appendLog(ctx, app, LogEntry{
		Action:  model.LogActionFormAnalysis,
		Status:  model.LogStatusSuccess,
		Message: fmt.Sprintf("Identified %d form fields", len(form.Fields)),
		Details: map[string]any{"fields": form.Fields},
	}, log)

	filled, attempted, submitSelector := uc.fill(ctx, sess, app, profile, form.Fields, log)
	uc.appendLog(ctx, app, LogEntry{
		Action:  model.LogActionFill,
		Status:  model.LogStatusSuccess,
		Message: fmt.Sprintf("Filled %d of %d fields", filled, attempted),
		Details: map[string]any{"filled": filled, "attempted": attempted},
	}, log)

	if submitSelector != "" && uc.cfg.SubmitForms {
		if err := sess.Click(ctx, submitSelector); err != nil {
			return shotRef, fmt.Errorf("submit form: %w", err)
		}
	}

	uc.record(ctx, app, model.AppliedPatch(uc.now()), LogEntry{
		Action:  model.LogActionSubmit,
		Status:  model.LogStatusSuccess,
		Message: "Application submitted successfully",
		Details: map[string]any{"submit_clicked": submitSelector != "" && uc.cfg.SubmitForms},
	}, log)
	return shotRef, nil
}

// fill types profile values into known fields in selector order.
// A field that cannot be filled is logged and skipped.
func (uc *applyUC) fill(ctx context.Context, sess adapter.BrowserSession, app *model.Application, profile *model.Profile, fields map[string]string, log *zerolog.Logger) (filled, attempted int, submitSelector string) {
	selectors := make([]string, 0, len(fields))
	for sel := range fields {
		selectors = append(selectors, sel)
	}
	sort.Strings(selectors)

	for _, sel := range selectors {
		fieldType := strings.ToLower(strings.TrimSpace(fields[sel]))
		if fieldType == model.FieldSubmitButton {
			if submitSelector == "" {
				submitSelector = sel
			}
			continue
		}
		value, ok := profile.ValueFor(fieldType)
		if !ok || value == "" {
			continue
		}
		attempted++
		if err := sess.Type(ctx, sel, value); err != nil {
			log.Debug().Err(err).Str("selector", sel).Msg("fill field failed")
			uc.appendLog(ctx, app, LogEntry{
				Action:  model.LogActionFill,
				Status:  model.LogStatusFailed,
				Message: fmt.Sprintf("Could not fill field %s", sel),
				Details: map[string]any{"selector": sel, "field_type": fieldType, "error": err.Error(), "kind": errorKind(err)},
			}, log)
			continue
		}
		log.Trace().Str("selector", sel).Str("value", logging.Redact(value, false)).Msg("field filled")
		filled++
	}
	return filled, attempted, submitSelector
}

func (uc *applyUC) score(ctx context.Context, markup string, profile *model.Profile, log *zerolog.Logger) adapter.MatchResult {
	res, err := uc.scorer.Score(ctx, markup, profile)
	if err != nil {
		log.Warn().Err(err).Msg("match scoring failed, treating as no match")
		metrics.IncAnalysisFallback("match")
		return adapter.MatchResult{IsMatch: false, MatchScore: 0, Reasoning: "Error in analysis"}
	}
	if res.MatchScore < 0 {
		res.MatchScore = 0
	} else if res.MatchScore > 100 {
		res.MatchScore = 100
	}
	return res
}

func (uc *applyUC) analyze(ctx context.Context, shot []byte, markup string, log *zerolog.Logger) adapter.FormAnalysis {
	res, err := uc.analyzer.Analyze(ctx, shot, markup)
	if err != nil {
		log.Warn().Err(err).Msg("form analysis failed")
		metrics.IncAnalysisFallback("form")
		return adapter.FormAnalysis{Success: false, Fields: map[string]string{}}
	}
	if res.Fields == nil {
		res.Fields = map[string]string{}
	}
	return res
}

func (uc *applyUC) fillMetadata(ctx context.Context, app *model.Application, markup string, log *zerolog.Logger) {
	if uc.extractor == nil {
		return
	}
	meta := uc.extractor.Extract(markup, app.JobURL)
	var patch model.ApplicationPatch
	if meta.Title != "" {
		patch.JobTitle = &meta.Title
	}
	if meta.Company != "" {
		patch.CompanyName = &meta.Company
	}
	if err := uc.tracker.Update(ctx, app, patch); err != nil {
		log.Error().Err(err).Msg("persist job metadata")
	}
}

func (uc *applyUC) saveScreenshot(ctx context.Context, appID, step string, png []byte, log *zerolog.Logger) string {
	if uc.shots == nil || len(png) == 0 {
		return ""
	}
	ref, err := uc.shots.Save(ctx, appID, step, png)
	if err != nil {
		log.Warn().Err(err).Msg("save screenshot")
		return ""
	}
	return ref
}

// fail records a terminal failure unless one is already recorded.
func (uc *applyUC) fail(ctx context.Context, app *model.Application, cause error, shotRef string, log *zerolog.Logger) {
	if app.Status.IsTerminal() {
		log.Warn().Err(cause).Msg("failure after terminal state, not recorded")
		return
	}
	msg := cause.Error()
	uc.record(ctx, app, model.FailedPatch(msg), LogEntry{
		Action:        model.LogActionError,
		Status:        model.LogStatusFailed,
		Message:       msg,
		ScreenshotRef: shotRef,
		Details:       map[string]any{"error": msg, "kind": errorKind(cause)},
	}, log)
}

func (uc *applyUC) record(ctx context.Context, app *model.Application, patch model.ApplicationPatch, entry LogEntry, log *zerolog.Logger) {
	if err := uc.tracker.Record(ctx, app, patch, entry); err != nil {
		log.Error().Err(err).Str("action", string(entry.Action)).Msg("persist application step")
	}
}

func (uc *applyUC) appendLog(ctx context.Context, app *model.Application, entry LogEntry, log *zerolog.Logger) {
	if err := uc.tracker.AppendLog(ctx, app.ID, entry); err != nil {
		log.Error().Err(err).Str("action", string(entry.Action)).Msg("persist application log")
	}
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrBrowserTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, domain.ErrFieldNotFound):
		return "field_not_found"
	case errors.Is(err, domain.ErrNavigation):
		return "navigation"
	case errors.Is(err, domain.ErrSessionClosed):
		return "session_closed"
	default:
		return "internal"
	}
}
