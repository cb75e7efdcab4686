package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mocapstream/mocapstream"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	flagServer  string
	flagPort    uint16
	flagVerbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "mocapstream",
		Short: "Motion-capture DataStream client",
		Long: `mocapstream streams live motion-capture frames from a DataStream
tracking server.

Commands:

  listen    Print segment poses as frames arrive
  subjects  List subjects and segments on the stream
  bridge    Re-serve the stream over WebSocket with metrics
  version   Print version information`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if flagVerbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: level,
			})))
		},
	}

	rootCmd.PersistentFlags().StringVarP(&flagServer, "server", "s", "localhost", "Tracking server host or IP")
	rootCmd.PersistentFlags().Uint16Var(&flagPort, "port", mocapstream.DefaultPort, "Tracking server port")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(
		listenCmd(),
		subjectsCmd(),
		bridgeCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		os.Exit(1)
	}
}

// clientConfig builds a Config from the persistent flags.
func clientConfig(mode string) (mocapstream.Config, error) {
	cfg := mocapstream.DefaultConfig(flagServer)
	cfg.Port = flagPort

	switch mode {
	case "pull":
		cfg.StreamMode = mocapstream.ClientPull
	case "push":
		cfg.StreamMode = mocapstream.ServerPush
	default:
		return cfg, fmt.Errorf("invalid stream mode %q (want pull or push)", mode)
	}
	return cfg, nil
}
