package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/dmbot/internal/command"
	"github.com/nextlevelbuilder/dmbot/internal/format"
	"github.com/nextlevelbuilder/dmbot/internal/lookup"
)

func lookupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lookup",
		Short: "Run a lookup locally and print the reply the bot would send",
	}
	cmd.AddCommand(lookupSubcmd("info", "Fetch account info for a uid", command.Info))
	cmd.AddCommand(lookupSubcmd("vists", "Fetch visit stats for a uid", command.Vists))
	return cmd
}

func lookupSubcmd(name, short string, kind command.Kind) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <uid>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			// same grammar as the chat command
			parsed := command.Parse("/" + name + " " + args[0])
			if parsed.Kind != kind {
				fmt.Fprintf(os.Stderr, "Error: uid must be at least %d digits\n", command.MinUIDDigits)
				os.Exit(1)
			}

			cfg, err := loadConfig()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			loc, err := cfg.Location()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			gw := newLookupGateway(cfg)
			f := format.New(loc)

			var res lookup.Result
			var out string
			switch kind {
			case command.Info:
				res = gw.FetchAccountInfo(context.Background(), parsed.UID)
				out = f.Info(res)
			case command.Vists:
				res = gw.FetchVisitStats(context.Background(), parsed.UID)
				out = f.Vists(res)
			}
			fmt.Println(out)
			if res.Kind != lookup.Success {
				os.Exit(1)
			}
		},
	}
}
