package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/activity-scheduler/internal/recurrence"
)

// defaultPreviewLimit is how many upcoming occurrences a preview shows when
// the caller does not ask for a specific count.
const defaultPreviewLimit = 5

// PreviewService computes the first occurrences a series input would
// produce, without persisting anything. It runs the same expansion engine as
// series creation so the preview always matches what would be saved.
type PreviewService struct {
	engine *recurrence.Engine
	now    func() time.Time
	logger *slog.Logger
}

// NewPreviewService wires dependencies for previews.
func NewPreviewService(engine *recurrence.Engine, now func() time.Time) *PreviewService {
	return NewPreviewServiceWithLogger(engine, now, nil)
}

// NewPreviewServiceWithLogger constructs a PreviewService with a specified logger.
func NewPreviewServiceWithLogger(engine *recurrence.Engine, now func() time.Time, logger *slog.Logger) *PreviewService {
	if engine == nil {
		engine = recurrence.NewEngine(nil)
	}
	if now == nil {
		now = time.Now
	}
	return &PreviewService{engine: engine, now: now, logger: defaultLogger(logger)}
}

// Preview returns up to limit projected occurrences for the given input.
// Incomplete or inconsistent input yields an empty list rather than an
// error; a preview renders while the user is still typing.
func (s *PreviewService) Preview(ctx context.Context, input SeriesInput, limit int) ([]Occurrence, error) {
	if s == nil {
		return nil, fmt.Errorf("PreviewService is nil")
	}
	if limit <= 0 {
		limit = defaultPreviewLimit
	}

	if !previewReady(input) {
		return []Occurrence{}, nil
	}

	spans, err := s.engine.GenerateOccurrences(input.Rule, input.Start, input.End, recurrence.GenerateOptions{
		MaxCount: limit,
	})
	if err != nil {
		logger := serviceLogger(ctx, s.logger, "PreviewService", "Preview", "rule_kind", input.Rule.Kind.String())
		logger.DebugContext(ctx, "preview suppressed", "error", err)
		return []Occurrence{}, nil
	}

	occurrences := make([]Occurrence, 0, len(spans))
	for _, span := range spans {
		occurrences = append(occurrences, Occurrence{
			Title:        strings.TrimSpace(input.Title),
			ActivityType: input.ActivityType,
			Modality:     input.Modality,
			Location:     input.Location,
			JoinInfo:     input.JoinInfo,
			Start:        span.Start,
			End:          span.End,
		})
	}
	return occurrences, nil
}

// previewReady reports whether enough of the input is filled in for a
// meaningful projection.
func previewReady(input SeriesInput) bool {
	if input.Start.IsZero() || input.End.IsZero() || !input.Start.Before(input.End) {
		return false
	}
	switch input.Modality {
	case ModalityOffline:
		if strings.TrimSpace(input.Location) == "" {
			return false
		}
	case ModalityOnline:
		if strings.TrimSpace(input.JoinInfo) == "" {
			return false
		}
	default:
		return false
	}
	if input.Rule.Kind == recurrence.KindWeekly && len(input.Rule.Weekdays) == 0 {
		return false
	}
	return true
}
