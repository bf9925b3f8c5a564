package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"feedac/internal/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect past runs",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List retained runs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := history.Open(dataDir)
		if err != nil {
			return err
		}
		defer store.Close()

		runs, err := store.ListRuns()
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded.")
			return nil
		}
		for _, r := range runs {
			fmt.Printf("%s  %s  %-9s  %d comment(s)%s\n",
				r.ID, r.StartedAt.Format(time.DateTime), r.Status, r.CommentCount,
				formatRunError(r.Error))
		}
		return nil
	},
}

func formatRunError(msg string) string {
	if msg == "" {
		return ""
	}
	return "  (" + msg + ")"
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one run and its per-video records",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := history.Open(dataDir)
		if err != nil {
			return err
		}
		defer store.Close()

		run, records, err := store.GetRun(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Run %s\n", run.ID)
		fmt.Printf("  started:  %s\n", run.StartedAt.Format(time.DateTime))
		if !run.EndedAt.IsZero() {
			fmt.Printf("  ended:    %s\n", run.EndedAt.Format(time.DateTime))
		}
		fmt.Printf("  status:   %s\n", run.Status)
		fmt.Printf("  comments: %d\n", run.CommentCount)
		if run.Error != "" {
			fmt.Printf("  error:    %s\n", run.Error)
		}
		if len(records) == 0 {
			return nil
		}
		fmt.Println("\nVideos:")
		for _, rec := range records {
			desc := rec.Description
			if len(desc) > 48 {
				desc = desc[:48] + "..."
			}
			line := fmt.Sprintf("  %s  %-9s  %s", rec.At.Format("15:04:05"), rec.Action, rec.AwemeID)
			if rec.Action == history.ActionCommented {
				line += fmt.Sprintf("  %q (group %s)", rec.CommentText, rec.MatchedGroup)
			} else if rec.Detail != "" {
				line += "  " + rec.Detail
			}
			if desc != "" {
				line += "  | " + strings.ReplaceAll(desc, "\n", " ")
			}
			fmt.Println(line)
		}
		return nil
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <run-id>",
	Short: "Delete one run and its records",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := history.Open(dataDir)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.DeleteRun(args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted run %s\n", args[0])
		return nil
	},
}

func init() {
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyDeleteCmd)
	rootCmd.AddCommand(historyCmd)
}
