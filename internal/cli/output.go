package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/fendi147258369-dot/omnisafe-web/backend/internal/entities"
	"github.com/fendi147258369-dot/omnisafe-web/backend/internal/models"
)

var stdout io.Writer = os.Stdout

func printJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(header ...string) *tabwriter.Writer {
	w := tabwriter.NewWriter(stdout, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(w, strings.Join(header, "\t"))
	return w
}

func row(w io.Writer, cols ...any) {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = fmt.Sprint(c)
	}
	_, _ = fmt.Fprintln(w, strings.Join(parts, "\t"))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func floatOrDash(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}

func stringOrDash(v *string) string {
	if v == nil {
		return "-"
	}
	return orDash(*v)
}

var stageMarks = map[entities.StageState]string{
	entities.StagePending:  "[ ]",
	entities.StageActive:   "[~]",
	entities.StageComplete: "[x]",
	entities.StageFailed:   "[!]",
}

// printState renders a scan the way the status modal shows it.
func printState(state entities.ScanState) error {
	resp := models.NewScanResponse(state)
	if jsonOutput {
		return printJSON(resp)
	}

	if !state.HasJob() {
		_, _ = fmt.Fprintln(stdout, "No scan in progress.")
		return nil
	}

	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	row(w, "Job:", state.JobID)
	row(w, "Target:", fmt.Sprintf("%s on %s", state.SubmittedAddress, state.SubmittedChain.Label()))
	row(w, "Status:", state.Status)
	if !state.ExpiresAt.IsZero() {
		row(w, "Cached until:", state.ExpiresAt.Local().Format("15:04:05"))
	}
	if state.Error != "" {
		row(w, "Error:", state.Error)
	}
	_ = w.Flush()

	for _, stage := range state.Stages {
		_, _ = fmt.Fprintf(stdout, "  %s %s\n", stageMarks[stage.State], stage.Key)
	}

	if resp.Report != nil {
		printReport(resp.Report)
	}
	if state.AISummary != "" {
		_, _ = fmt.Fprintf(stdout, "\nAI summary (%s):\n%s\n", state.AILang, state.AISummary)
	}
	return nil
}

func printReport(report *entities.Report) {
	if len(report.Modules) == 0 && len(report.Groups) == 0 {
		return
	}

	_, _ = fmt.Fprintln(stdout, "\nModules:")
	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	for _, m := range report.Modules {
		row(w, "  "+m.Name, orDash(m.Status), fmt.Sprintf("%d findings", len(m.Recommendations)))
	}
	_ = w.Flush()

	groups := maps.Keys(report.Groups)
	slices.Sort(groups)
	for _, group := range groups {
		recs := report.Groups[group]
		if len(recs) == 0 {
			continue
		}
		_, _ = fmt.Fprintf(stdout, "\n%s:\n", group)
		for _, rec := range recs {
			_, _ = fmt.Fprintf(stdout, "  - %s\n", recommendationText(rec))
		}
	}
}

// recommendationText prints plain strings as is and objects by their
// title or message field.
func recommendationText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err == nil {
		for _, key := range []string{"title", "message", "description", "name"} {
			if v, ok := obj[key].(string); ok && v != "" {
				return v
			}
		}
	}
	return string(raw)
}
