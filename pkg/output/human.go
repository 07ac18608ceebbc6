package output

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/sdejongh/treesync/pkg/models"
)

// HumanFormatter formats output in human-readable format. Progress is
// called from every executor worker, so all writes go through mu.
type HumanFormatter struct {
	mu     sync.Mutex
	writer io.Writer
}

// NewHumanFormatter creates a new human-readable formatter
func NewHumanFormatter() *HumanFormatter {
	return &HumanFormatter{writer: os.Stdout}
}

// Start initializes the formatter
func (f *HumanFormatter) Start(writer io.Writer, totalActions int, totalBytes int64, maxWorkers int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if writer != nil {
		f.writer = writer
	}
	if totalActions == 0 {
		return nil
	}
	fmt.Fprintf(f.writer, "Applying %d actions, %s to transfer (%d workers)\n",
		totalActions, formatBytes(totalBytes), maxWorkers)
	return nil
}

// Progress reports progress as one line per finished action
func (f *HumanFormatter) Progress(update ProgressUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch update.Type {
	case EventActionComplete:
		fmt.Fprintf(f.writer, "[%d/%d] ✓ %s %s (%s)\n",
			update.CurrentAction, update.TotalActions,
			describeAction(update.Action, update.From, update.To), update.Path,
			formatBytes(update.Bytes))

	case EventActionError:
		fmt.Fprintf(f.writer, "[%d/%d] ✗ %s %s: %v\n",
			update.CurrentAction, update.TotalActions,
			describeAction(update.Action, update.From, update.To), update.Path,
			update.Error)

	case EventConflict:
		fmt.Fprintf(f.writer, "! conflict %s\n", update.Path)
	}

	return nil
}

// Complete displays the run summary
func (f *HumanFormatter) Complete(report *models.SyncReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return writeSummary(f.writer, report)
}

// Error reports an error
func (f *HumanFormatter) Error(err error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	fmt.Fprintf(f.writer, "Error: %v\n", err)
	return nil
}

// Name returns the formatter name
func (f *HumanFormatter) Name() string {
	return "human"
}

// writeSummary renders the statistics, conflicts and errors of a report
func writeSummary(w io.Writer, report *models.SyncReport) error {
	title := "Sync"
	if report.DryRun {
		title = "Dry run"
	}
	fmt.Fprintf(w, "\n%s of %s and %s (%s) completed in %s\n\n",
		title, report.RootA, report.RootB, report.Mode, report.Duration.Round(time.Millisecond))

	stats := &report.Stats
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Metric", "Count"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT})
	table.AppendBulk([][]string{
		{"Files scanned (A)", count(stats.FilesScannedA.Load())},
		{"Files scanned (B)", count(stats.FilesScannedB.Load())},
		{"Paths considered", count(stats.PathsTotal.Load())},
		{"Unchanged", count(stats.FilesUnchanged.Load())},
		{"Copied", count(stats.FilesCopied.Load())},
		{"Deleted", count(stats.FilesDeleted.Load())},
		{"Already in agreement", count(stats.FilesAgreed.Load())},
		{"Not propagated", count(stats.FilesIgnored.Load())},
		{"Conflicts", count(stats.Conflicts.Load())},
		{"Errors", count(stats.FilesErrored.Load())},
	})
	table.SetFooter([]string{"Transferred", formatBytes(stats.BytesTransferred.Load())})
	table.Render()

	if report.DryRun {
		if planned := plannedResults(report); len(planned) > 0 {
			fmt.Fprintf(w, "\nPlanned actions:\n")
			writeResultsTable(w, planned)
		}
	}

	if unresolved := report.UnresolvedConflicts(); len(unresolved) > 0 {
		fmt.Fprintf(w, "\nUnresolved conflicts:\n")
		writeConflictsTable(w, unresolved)
	}

	if len(report.Errors) > 0 {
		fmt.Fprintf(w, "\nErrors:\n")
		for _, e := range report.Errors {
			if e.FilePath == "" {
				fmt.Fprintf(w, "  %s\n", e.Error)
				continue
			}
			fmt.Fprintf(w, "  %s: %s\n", e.FilePath, e.Error)
		}
	}

	fmt.Fprintf(w, "\nStatus: %s\n", report.Status)
	return nil
}

func writeResultsTable(w io.Writer, results []models.PathResult) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Path", "Action", "Direction", "Outcome", "Reason"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetAutoWrapText(false)
	for _, r := range results {
		table.Append([]string{r.Path, string(r.Action), direction(r.From, r.To), string(r.Outcome), r.Reason})
	}
	table.Render()
}

func writeConflictsTable(w io.Writer, conflicts []models.Conflict) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Path", "Type", "Side A", "Side B"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetAutoWrapText(false)
	for _, c := range conflicts {
		table.Append([]string{c.Path, string(c.Type), describeSide(c.StatusA, c.A), describeSide(c.StatusB, c.B)})
	}
	table.Render()
}

func plannedResults(report *models.SyncReport) []models.PathResult {
	var out []models.PathResult
	for _, r := range report.Results {
		if r.Outcome == models.OutcomePlanned {
			out = append(out, r)
		}
	}
	return out
}

func describeAction(action models.Action, from, to models.Side) string {
	if from == "" {
		return string(action)
	}
	return fmt.Sprintf("%s %s", action, direction(from, to))
}

func direction(from, to models.Side) string {
	switch {
	case from == "":
		return ""
	case to == "":
		return from.Label()
	}
	return from.Label() + "->" + to.Label()
}

func describeSide(status models.ChangeStatus, fp *models.Fingerprint) string {
	if fp == nil {
		return string(status)
	}
	return fmt.Sprintf("%s (%s)", status, fp)
}

func count(n int32) string {
	return strconv.Itoa(int(n))
}

// formatBytes formats bytes in human-readable format
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
