package main

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"text/tabwriter"
	"time"

	"frontdesk/internal/models"

	"github.com/spf13/cobra"
)

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List help requests waiting for a supervisor",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return listHelpRequests("/api/help-requests/pending")
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List every help request, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return listHelpRequests("/api/help-requests/history")
	},
}

var resolveCmd = &cobra.Command{
	Use:   "resolve ID ANSWER",
	Short: "Answer a pending help request and teach it to the agent",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var resolved models.HelpRequest
		body := models.ResolveHelpRequestRequest{SupervisorAnswer: args[1]}
		if err := doJSON(http.MethodPost, "/api/help-requests/"+url.PathEscape(args[0])+"/resolve", body, &resolved); err != nil {
			return err
		}
		fmt.Printf("✅ Resolved %s for %s\n", resolved.ID, resolved.CallerID)
		return nil
	},
}

var learnedCmd = &cobra.Command{
	Use:   "learned",
	Short: "List knowledge base entries, most recently learned first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var entries []models.KnowledgeEntry
		if err := doJSON(http.MethodGet, "/api/learned-answers", nil, &entries); err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "LEARNED\tPATTERN\tANSWER")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\n", e.LearnedAt.Local().Format(time.DateTime), e.QuestionPattern, e.Answer)
		}
		return w.Flush()
	},
}

func listHelpRequests(path string) error {
	var reqs []models.HelpRequest
	if err := doJSON(http.MethodGet, path, nil, &reqs); err != nil {
		return err
	}
	if len(reqs) == 0 {
		fmt.Println("No help requests.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCALLER\tSTATUS\tCREATED\tQUESTION\tANSWER")
	for _, r := range reqs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.CallerID, r.Status, r.CreatedAt.Local().Format(time.DateTime), r.Question, r.SupervisorAnswer)
	}
	return w.Flush()
}
