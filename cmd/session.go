package cmd

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/dmbot/internal/config"
	"github.com/nextlevelbuilder/dmbot/internal/session"
)

func sessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect or remove the persisted login session",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the saved session (secrets masked)",
		Run: func(cmd *cobra.Command, args []string) {
			store, err := sessionStore()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			sess, err := store.Load()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			if sess == nil {
				fmt.Printf("No saved session at %s\n", store.Path())
				return
			}
			fmt.Printf("Session %s\n", store.Path())
			fmt.Printf("  %-16s %s\n", "User ID:", sess.UserID)
			if t := sess.LastLoginTime(); !t.IsZero() {
				fmt.Printf("  %-16s %s\n", "Last login:", t.Format(time.RFC3339))
			}
			fmt.Printf("  %-16s %s\n", "Authorization:", config.Mask(sess.Authorization))
			fmt.Printf("  %-16s %s\n", "User agent:", sess.UserAgent)
			fmt.Printf("  %-16s %s\n", "Device ID:", sess.Device.DeviceID)
			fmt.Printf("  %-16s %s\n", "UUID:", sess.Device.UUID)
			if len(sess.Cookies) > 0 {
				names := make([]string, 0, len(sess.Cookies))
				for k := range sess.Cookies {
					names = append(names, k)
				}
				sort.Strings(names)
				fmt.Printf("  %-16s %v\n", "Cookies:", names)
			}
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete the saved session; the next run performs a fresh login",
		Run: func(cmd *cobra.Command, args []string) {
			store, err := sessionStore()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			if err := store.Clear(); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("Session cleared: %s\n", store.Path())
		},
	})
	return cmd
}

func sessionStore() (*session.FileStore, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return session.NewFileStore(cfg.SessionPath()), nil
}
