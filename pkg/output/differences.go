package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sdejongh/treesync/pkg/models"
)

// WriteDifferencesReport writes the paths that needed attention during a
// run to a file. Format can be "human" or "json". Nothing is written when
// every path was already unchanged.
func WriteDifferencesReport(report *models.SyncReport, path string, format string) error {
	if len(report.Results) == 0 && len(report.Conflicts) == 0 {
		return nil
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create differences file: %w", err)
	}
	defer file.Close()

	switch format {
	case "json":
		err = writeDifferencesJSON(report, file)
	default:
		err = writeDifferencesHuman(report, file)
	}
	if err != nil {
		return fmt.Errorf("failed to write differences file: %w", err)
	}
	return file.Close()
}

// writeDifferencesHuman groups results by action
func writeDifferencesHuman(report *models.SyncReport, w io.Writer) error {
	fmt.Fprintf(w, "Differences Report\n")
	fmt.Fprintf(w, "==================\n\n")
	fmt.Fprintf(w, "Generated: %s\n", report.EndTime.Format(time.RFC3339))
	fmt.Fprintf(w, "Side A: %s\n", report.RootA)
	fmt.Fprintf(w, "Side B: %s\n", report.RootB)
	fmt.Fprintf(w, "Mode: %s\n", report.Mode)
	fmt.Fprintf(w, "Dry Run: %v\n", report.DryRun)
	fmt.Fprintf(w, "Status: %s\n\n", report.Status)

	byAction := make(map[models.Action][]models.PathResult)
	for _, r := range report.Results {
		byAction[r.Action] = append(byAction[r.Action], r)
	}

	sections := []struct {
		action models.Action
		label  string
	}{
		{models.ActionCopy, "Copied"},
		{models.ActionDelete, "Deleted"},
		{models.ActionAgree, "Already in agreement"},
		{models.ActionIgnore, "Not propagated"},
	}

	for _, section := range sections {
		results := byAction[section.action]
		if len(results) == 0 {
			continue
		}

		label := fmt.Sprintf("%s (%d files)", section.label, len(results))
		fmt.Fprintf(w, "%s\n%s\n", label, strings.Repeat("-", len(label)))
		for _, r := range results {
			line := "  " + r.Path
			if dir := direction(r.From, r.To); dir != "" {
				line += " [" + dir + "]"
			}
			if r.Outcome != models.OutcomeApplied {
				line += " " + string(r.Outcome)
			}
			fmt.Fprintln(w, line)
			if r.Reason != "" {
				fmt.Fprintf(w, "    Reason: %s\n", r.Reason)
			}
			if r.Error != "" {
				fmt.Fprintf(w, "    Error: %s\n", r.Error)
			}
		}
		fmt.Fprintln(w)
	}

	if len(report.Conflicts) > 0 {
		label := fmt.Sprintf("Conflicts (%d files)", len(report.Conflicts))
		fmt.Fprintf(w, "%s\n%s\n", label, strings.Repeat("-", len(label)))
		for _, c := range report.Conflicts {
			fmt.Fprintf(w, "  %s (%s)\n", c.Path, c.Type)
			fmt.Fprintf(w, "    Side A: %s\n", describeSide(c.StatusA, c.A))
			fmt.Fprintf(w, "    Side B: %s\n", describeSide(c.StatusB, c.B))
			if c.IsResolved() {
				fmt.Fprintf(w, "    Resolved: %s\n", c.Decision)
			}
		}
		fmt.Fprintln(w)
	}

	return nil
}

// writeDifferencesJSON writes results and conflicts as one JSON document
func writeDifferencesJSON(report *models.SyncReport, w io.Writer) error {
	doc := NewJSONReport(report)
	output := struct {
		Generated string              `json:"generated"`
		RootA     string              `json:"root_a"`
		RootB     string              `json:"root_b"`
		Mode      string              `json:"mode"`
		DryRun    bool                `json:"dry_run"`
		Results   []models.PathResult `json:"results"`
		Conflicts []models.Conflict   `json:"conflicts"`
	}{
		Generated: report.EndTime.Format(time.RFC3339),
		RootA:     doc.RootA,
		RootB:     doc.RootB,
		Mode:      doc.Mode,
		DryRun:    doc.DryRun,
		Results:   doc.Results,
		Conflicts: doc.Conflicts,
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}
