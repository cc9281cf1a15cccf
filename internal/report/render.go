package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
)

// RenderSummaryText renders a job summary as a human-readable report.
func RenderSummaryText(s *JobSummary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Job %s\n", s.JobID)
	fmt.Fprintf(&b, "  %s\n", s.Description)
	fmt.Fprintf(&b, "  status: %s (extraction: %s, validation: %s)\n",
		s.Status, s.ExtractionStatus, s.ValidationStatus)
	if s.DocumentRef != "" {
		fmt.Fprintf(&b, "  document: %s\n", s.DocumentRef)
	}
	if s.ErrorMessage != "" {
		fmt.Fprintf(&b, "  error: %s\n", s.ErrorMessage)
	}
	fmt.Fprintf(&b, "  created: %s\n", s.CreatedAt.Format(time.RFC3339))
	if s.CompletedAt != nil {
		fmt.Fprintf(&b, "  completed: %s\n", s.CompletedAt.Format(time.RFC3339))
	}
	fmt.Fprintf(&b, "  progress: %.1f%%\n\n", s.ProgressPercent)

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Items", "Count"})
	tw.AppendRows([]table.Row{
		{"pending", s.Counts.Pending},
		{"in_progress", s.Counts.InProgress},
		{"integrated", s.Counts.Integrated},
		{"rejected", s.Counts.Rejected},
		{"failed", s.Counts.Failed},
	})
	tw.AppendFooter(table.Row{"total", s.Counts.Total()})
	b.WriteString(tw.Render())
	b.WriteString("\n\n")

	pw := table.NewWriter()
	pw.SetStyle(table.StyleRounded)
	pw.AppendHeader(table.Row{"Priority", "Count"})
	for _, priority := range []string{"high", "medium", "low"} {
		if n, ok := s.ByPriority[priority]; ok {
			pw.AppendRow(table.Row{priority, n})
		}
	}
	b.WriteString(pw.Render())
	b.WriteString("\n")

	fmt.Fprintf(&b, "\nrelevant: %d/%d", s.RelevantCount, s.Counts.Total())
	fmt.Fprintf(&b, "  avg confidence: %.2f", s.AvgConfidence)
	fmt.Fprintf(&b, "  integration rate: %.1f%%\n", s.IntegrationRate*100)

	return b.String()
}

// RenderDailyStatsText renders the trailing-window statistics as a table.
func RenderDailyStatsText(stats []DailyStat) string {
	if len(stats) == 0 {
		return "No activity in the selected window.\n"
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Date", "Jobs", "Completed", "Failed", "Integrated", "Rejected"})
	for _, s := range stats {
		tw.AppendRow(table.Row{
			s.Date, s.JobsCreated, s.JobsCompleted, s.JobsFailed,
			s.ItemsIntegrated, s.ItemsRejected,
		})
	}

	return tw.Render() + "\n"
}
