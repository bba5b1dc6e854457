package pipeline

import "log/slog"

// ProgressCallback reports grading progress during a run.
type ProgressCallback interface {
	// OnStart is called when the run begins with the total page count.
	OnStart(totalPages int)

	// OnPage is called after each page has been graded.
	OnPage(page, totalPages int)

	// OnPaperClosed is called when a student paper is finalized.
	OnPaperClosed(paperID string, totalScore float64)

	// OnComplete is called when the run is finished.
	OnComplete()
}

// NoOpProgressCallback implements ProgressCallback but does nothing.
// Useful as a default when no progress reporting is needed.
type NoOpProgressCallback struct{}

func (NoOpProgressCallback) OnStart(totalPages int)                      {}
func (NoOpProgressCallback) OnPage(page, totalPages int)                 {}
func (NoOpProgressCallback) OnPaperClosed(paperID string, score float64) {}
func (NoOpProgressCallback) OnComplete()                                 {}

// LogProgressCallback reports progress through slog.
type LogProgressCallback struct{}

func (LogProgressCallback) OnStart(totalPages int) {
	slog.Info("grading run started", "pages", totalPages)
}

func (LogProgressCallback) OnPage(page, totalPages int) {
	slog.Info("page graded", "page", page, "total", totalPages)
}

func (LogProgressCallback) OnPaperClosed(paperID string, score float64) {
	slog.Info("paper closed", "paper", paperID, "score", score)
}

func (LogProgressCallback) OnComplete() {
	slog.Info("grading run complete")
}
