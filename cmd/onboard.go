package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/dmbot/internal/config"
)

func onboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "onboard",
		Short: "Interactively store platform credentials in the env file",
		Run: func(cmd *cobra.Command, args []string) {
			if err := runOnboard(); err != nil {
				if errors.Is(err, huh.ErrUserAborted) {
					fmt.Println("Aborted.")
					return
				}
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		},
	}
}

func runOnboard() error {
	username := os.Getenv("DMBOT_USERNAME")
	var password string
	bridgeURL := os.Getenv("DMBOT_BRIDGE_URL")
	if bridgeURL == "" {
		bridgeURL = config.DefaultBridgeURL
	}
	confirm := true

	required := func(field string) func(string) error {
		return func(s string) error {
			if strings.TrimSpace(s) == "" {
				return fmt.Errorf("%s is required", field)
			}
			return nil
		}
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Platform username").
				Value(&username).
				Validate(required("username")),
			huh.NewInput().
				Title("Platform password").
				Description("Stored only in the env file, never in config.json").
				EchoMode(huh.EchoModePassword).
				Value(&password).
				Validate(required("password")),
			huh.NewInput().
				Title("Bridge URL").
				Value(&bridgeURL).
				Validate(required("bridge url")),
			huh.NewConfirm().
				Title(fmt.Sprintf("Write credentials to %s?", envFile)).
				Value(&confirm),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}
	if !confirm {
		return huh.ErrUserAborted
	}

	if err := config.WriteEnvFile(envFile, map[string]string{
		"DMBOT_USERNAME":   strings.TrimSpace(username),
		"DMBOT_PASSWORD":   password,
		"DMBOT_BRIDGE_URL": strings.TrimSpace(bridgeURL),
	}); err != nil {
		return err
	}
	fmt.Printf("Credentials written to %s (mode 0600).\n", envFile)
	fmt.Println("Next: dmbot doctor, then dmbot run")
	return nil
}
