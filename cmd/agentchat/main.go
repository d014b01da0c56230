package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/RafaelZelak/agentchat"
	"github.com/RafaelZelak/agentchat/internal/logger"
)

type rootFlags struct {
	envFile  string
	addr     string
	logLevel string
	logJSON  bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		logger.Error("agentchat failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	f := &rootFlags{}
	root := &cobra.Command{
		Use:           "agentchat",
		Short:         "Conversational agent served over HTTP and WebSocket",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			logger.Init(logger.Config{Level: f.logLevel, JSON: f.logJSON})
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), f)
		},
	}

	root.PersistentFlags().StringVar(&f.envFile, "env-file", ".env", "Path to the .env file")
	root.PersistentFlags().StringVar(&f.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&f.logJSON, "log-json", false, "Emit logs as JSON")
	root.Flags().StringVar(&f.addr, "addr", "", "Listen address (overrides LISTEN_ADDR)")

	root.AddCommand(askCmd(f))
	return root
}

func askCmd(f *rootFlags) *cobra.Command {
	var sessionID string
	cmd := &cobra.Command{
		Use:   "ask [message]",
		Short: "Send a single message to the agent and print the answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ag, err := newAgent(cmd.Context(), f)
			if err != nil {
				return err
			}
			defer ag.Close()

			out, err := ag.Run(cmd.Context(), sessionID, strings.Join(args, " "))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
			return err
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "cli", "Session id")
	return cmd
}

func serve(ctx context.Context, f *rootFlags) error {
	ag, err := newAgent(ctx, f)
	if err != nil {
		return err
	}
	defer ag.Close()
	return ag.Serve(ctx, f.addr)
}

func newAgent(ctx context.Context, f *rootFlags) (*agentchat.Agent, error) {
	cfg, err := agentchat.NewConfigFromEnv(f.envFile)
	if err != nil {
		return nil, err
	}
	return agentchat.NewAgent(ctx, cfg)
}
