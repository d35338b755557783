package analytics

import (
	"encoding/csv"
	"fmt"
	"io"

	"formbuilder-service/internal/domain"
)

var exportHeader = []string{"Respondent", "Email", "Score", "Percentage", "Completion Time", "Submitted At", "Status"}

// FormatDuration renders seconds as "Xm Ys".
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%dm %ds", seconds/60, seconds%60)
}

// ExportCSV writes one row per response.
func ExportCSV(w io.Writer, responses []domain.Response) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	for _, r := range responses {
		name := r.RespondentName
		if name == "" {
			name = "Anonymous"
		}
		status := "Incomplete"
		if r.IsCompleted {
			status = "Completed"
		}
		row := []string{
			name,
			r.RespondentEmail,
			fmt.Sprintf("%g/%g", r.TotalScore, r.MaxScore),
			fmt.Sprintf("%.1f%%", Percentage(r)),
			FormatDuration(r.CompletionTime),
			r.SubmittedAt.UTC().Format("2006-01-02"),
			status,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
