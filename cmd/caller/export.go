package main

import (
	"fmt"
	"net/http"
	"time"

	"frontdesk/internal/models"

	"github.com/spf13/cobra"
	"github.com/xuri/excelize/v2"
)

const (
	helpRequestsSheet = "Help Requests"
	learnedSheet      = "Learned Answers"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the escalation history and learned answers to an .xlsx workbook",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var reqs []models.HelpRequest
		if err := doJSON(http.MethodGet, "/api/help-requests/history", nil, &reqs); err != nil {
			return err
		}
		var entries []models.KnowledgeEntry
		if err := doJSON(http.MethodGet, "/api/learned-answers", nil, &entries); err != nil {
			return err
		}

		if err := writeReport(exportOut, reqs, entries); err != nil {
			return err
		}
		fmt.Printf("📄 Wrote %d help requests and %d answers to %s\n", len(reqs), len(entries), exportOut)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "frontdesk-report.xlsx", "output file")
}

// writeReport saves one sheet per list. Times are written in UTC.
func writeReport(path string, reqs []models.HelpRequest, entries []models.KnowledgeEntry) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", helpRequestsSheet); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	if _, err := f.NewSheet(learnedSheet); err != nil {
		return fmt.Errorf("failed to add sheet: %w", err)
	}

	reqRows := [][]any{{"ID", "Caller", "Status", "Question", "Answer", "Created", "Resolved"}}
	for _, r := range reqs {
		resolved := ""
		if r.ResolvedAt != nil {
			resolved = formatTime(*r.ResolvedAt)
		}
		reqRows = append(reqRows, []any{
			r.ID, r.CallerID, string(r.Status), r.Question, r.SupervisorAnswer, formatTime(r.CreatedAt), resolved,
		})
	}
	if err := writeRows(f, helpRequestsSheet, reqRows); err != nil {
		return err
	}

	learnedRows := [][]any{{"Pattern", "Answer", "Learned"}}
	for _, e := range entries {
		learnedRows = append(learnedRows, []any{e.QuestionPattern, e.Answer, formatTime(e.LearnedAt)})
	}
	if err := writeRows(f, learnedSheet, learnedRows); err != nil {
		return err
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &rows[i]); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.DateTime)
}
