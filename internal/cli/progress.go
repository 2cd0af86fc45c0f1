package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/Veraticus/the-books-must-balance/internal/service"
	"github.com/schollz/progressbar/v3"
)

// BarReporter renders batch progress as a terminal progress bar. The bar is
// created on the first report, once the batch size is known.
type BarReporter struct {
	writer   io.Writer
	bar      *progressbar.ProgressBar
	label    string
	last     service.Progress
	mu       sync.Mutex
	reported bool
	finished bool
}

var _ service.ProgressReporter = (*BarReporter)(nil)

// NewBarReporter creates a reporter writing to w, or stderr when w is nil.
func NewBarReporter(w io.Writer, label string) *BarReporter {
	if w == nil {
		w = os.Stderr
	}
	return &BarReporter{writer: w, label: label}
}

// Report implements service.ProgressReporter.
func (r *BarReporter) Report(p service.Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.finished {
		return
	}
	if r.bar == nil {
		r.bar = r.newBar(p.Total)
	}
	r.last = p
	r.reported = true

	r.bar.Describe(fmt.Sprintf("[cyan][bold]%s[reset] matched %d, modified %d", r.label, p.Matched, p.Modified))
	if err := r.bar.Set(p.Processed); err != nil {
		slog.Warn("Failed to update progress bar", "error", err)
	}
}

// Done implements service.ProgressReporter.
func (r *BarReporter) Done() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.finished || r.bar == nil {
		r.finished = true
		return
	}
	r.finished = true
	if err := r.bar.Finish(); err != nil {
		slog.Warn("Failed to finish progress bar", "error", err)
	}
}

// Last returns the most recent snapshot and whether any was reported.
func (r *BarReporter) Last() (service.Progress, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last, r.reported
}

func (r *BarReporter) newBar(total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(r.writer),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription(fmt.Sprintf("[cyan][bold]%s[reset]", r.label)),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			if _, err := fmt.Fprintln(r.writer); err != nil {
				slog.Warn("Failed to write newline after progress bar", "error", err)
			}
		}),
	)
}
