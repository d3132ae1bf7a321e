package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/dmbot/internal/journal"
)

func historyCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print recent dispatches from the journal",
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := loadConfig()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			path := cfg.JournalPath()
			if path == "" {
				fmt.Println("Journal is disabled. Set DMBOT_JOURNAL_PATH or journal.path in config.")
				return
			}
			j, err := journal.Open(path)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			defer j.Close()

			entries, err := j.Recent(context.Background(), limit)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			if len(entries) == 0 {
				fmt.Println("No dispatches recorded.")
				return
			}
			fmt.Printf("%-20s %-16s %-8s %-12s %-16s %s\n", "TIME", "SENDER", "COMMAND", "UID", "OUTCOME", "DETAIL")
			for _, e := range entries {
				cmdName := e.Command
				if cmdName == "" {
					cmdName = "-"
				}
				fmt.Printf("%-20s %-16s %-8s %-12s %-16s %s\n",
					e.CreatedAt.Format(time.DateTime), e.SenderID, cmdName, e.UID, e.Outcome, e.Detail)
			}
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries to show")
	return cmd
}
