package output

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/cheggaaa/pb/v3"
	"golang.org/x/term"

	"github.com/sdejongh/treesync/pkg/models"
)

const progressTemplate = `{{string . "prefix"}}{{counters . }} {{bar . }} {{percent . }} {{string . "transferred"}} {{string . "current"}}`

// refreshRate returns the bar redraw interval. Windows terminals have
// higher latency with ANSI sequences.
func refreshRate() time.Duration {
	if runtime.GOOS == "windows" {
		return 300 * time.Millisecond
	}
	return 100 * time.Millisecond
}

// ProgressFormatter renders a progress bar over the planned actions and
// the human summary once the run completes
type ProgressFormatter struct {
	writer io.Writer

	mu          sync.Mutex
	bar         *pb.ProgressBar
	totalBytes  int64
	transferred int64
}

// NewProgressFormatter creates a new progress bar formatter
func NewProgressFormatter() *ProgressFormatter {
	return &ProgressFormatter{writer: os.Stdout}
}

// Start creates the bar for the planned actions
func (f *ProgressFormatter) Start(writer io.Writer, totalActions int, totalBytes int64, maxWorkers int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if writer != nil {
		f.writer = writer
	}
	f.totalBytes = totalBytes
	f.transferred = 0

	if totalActions == 0 {
		return nil
	}

	bar := pb.ProgressBarTemplate(progressTemplate).New(totalActions)
	bar.SetWriter(f.writer)
	bar.SetRefreshRate(refreshRate())
	bar.Set("prefix", fmt.Sprintf("%d workers ", maxWorkers))
	bar.Set("transferred", f.transferLabel())
	if width := terminalWidth(f.writer); width > 0 {
		bar.SetWidth(width)
	}
	f.bar = bar.Start()

	return nil
}

// Progress advances the bar when an action finishes
func (f *ProgressFormatter) Progress(update ProgressUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.bar == nil {
		return nil
	}

	switch update.Type {
	case EventActionStart:
		f.bar.Set("current", update.Path)

	case EventActionComplete:
		f.transferred += update.Bytes
		f.bar.Set("transferred", f.transferLabel())
		f.bar.Increment()

	case EventActionError:
		f.bar.Increment()
	}

	return nil
}

// Complete stops the bar and displays the summary
func (f *ProgressFormatter) Complete(report *models.SyncReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.bar != nil {
		f.bar.Set("current", "")
		f.bar.Finish()
		f.bar = nil
	}

	return writeSummary(f.writer, report)
}

// Error reports an error below the bar
func (f *ProgressFormatter) Error(err error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	fmt.Fprintf(f.writer, "\nError: %v\n", err)
	return nil
}

// Name returns the formatter name
func (f *ProgressFormatter) Name() string {
	return "progress"
}

func (f *ProgressFormatter) transferLabel() string {
	return formatBytes(f.transferred) + "/" + formatBytes(f.totalBytes)
}

// terminalWidth returns the width of the terminal behind writer, or 0 when
// writer is not a terminal
func terminalWidth(writer io.Writer) int {
	file, ok := writer.(*os.File)
	if !ok || !term.IsTerminal(int(file.Fd())) {
		return 0
	}
	width, _, err := term.GetSize(int(file.Fd()))
	if err != nil {
		return 0
	}
	return width
}

// IsTerminal reports whether writer is an interactive terminal
func IsTerminal(writer io.Writer) bool {
	return terminalWidth(writer) > 0
}
