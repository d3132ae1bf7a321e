package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/dmbot/internal/config"
)

// Version is set at build time via -ldflags "-X github.com/nextlevelbuilder/dmbot/cmd.Version=v1.0.0"
var Version = "dev"

var (
	cfgFile   string
	envFile   string
	logFormat string
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "dmbot",
	Short: "dmbot: direct-message lookup bot",
	Long:  "dmbot logs into a messaging account through a bridge, polls its direct-message inbox and answers /info and /vists lookup commands in-thread.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
	},
	Run: func(cmd *cobra.Command, args []string) {
		if err := runBot(false); err != nil {
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: config.json or $DMBOT_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "env file loaded before the environment overlay")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format: text or json")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(doctorCmd())
	rootCmd.AddCommand(sessionCmd())
	rootCmd.AddCommand(lookupCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(onboardCmd())
	rootCmd.AddCommand(versionCmd())
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dmbot %s (%s/%s)\n", Version, runtime.GOOS, runtime.GOARCH)
		},
	}
}

func setupLogging() {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: logLevel}
	var handler slog.Handler = slog.NewTextHandler(os.Stdout, opts)
	if logFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func resolveConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if v := os.Getenv("DMBOT_CONFIG"); v != "" {
		return v
	}
	return "config.json"
}

// loadConfig loads the env file, then the config file with the env overlay.
func loadConfig() (*config.Config, error) {
	found, err := config.LoadEnvFile(envFile)
	if err != nil {
		return nil, err
	}
	if !found {
		slog.Debug("env file not found, using process environment", "path", envFile)
	}
	return config.Load(resolveConfigPath())
}

// Execute runs the root cobra command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
