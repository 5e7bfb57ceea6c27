// RoomFleet - Multi-agent chat room fleet
// License: MIT
// Copyright (c) 2026 RoomFleet contributors

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func executeCLI() error {
	return buildRootCommand().Execute()
}

func buildRootCommand() *cobra.Command {
	var showVersion bool

	root := &cobra.Command{
		Use:   "roomfleet",
		Short: "Fleet of autonomous chat room agents with tools and remote tool servers",
		Long: strings.TrimSpace(`roomfleet runs a fleet of autonomous agents inside a shared chat room.

Agents wake on mentions, reactions, and summary requests, assemble the room
conversation into model context, and may call built-in or remote tools before
posting. Use CLI commands to onboard, chat with one agent locally, run the
fleet against a room server, and check readiness.`),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				printVersion()
				return nil
			}
			_ = cmd.Help()
			return fmt.Errorf("a subcommand is required")
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.Flags().BoolVarP(&showVersion, "version", "v", false, "Show build/version metadata")

	root.AddCommand(newOnboardCommand())
	root.AddCommand(newRunCommand())
	root.AddCommand(newAskCommand())
	root.AddCommand(newStatusCommand())
	root.AddCommand(newVersionCommand())

	return root
}

func newOnboardCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "onboard",
		Short:   "Initialize ~/.roomfleet config with a starter agent",
		Example: "  roomfleet onboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			return onboard()
		},
	}
}

func newRunCommand() *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run the agent fleet against the configured room server",
		Long:    "Start one supervised worker per active agent profile. Profile edits in the config file apply without a restart.",
		Example: "  roomfleet run --debug",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFleet(debug)
		},
	}

	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	return cmd
}

func newAskCommand() *cobra.Command {
	var (
		agentID string
		message string
		debug   bool
	)

	cmd := &cobra.Command{
		Use:   "ask",
		Short: "Chat with one agent locally, without a room server",
		Long:  "Run an interactive local session or send a one-shot message to a single agent. Triggering is bypassed; every input is treated as a direct mention.",
		Example: strings.Join([]string{
			"  roomfleet ask",
			"  roomfleet ask --agent helper-1",
			"  roomfleet ask --message \"what's 2+2?\"",
		}, "\n"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return askCmd(agentID, message, debug)
		},
	}

	cmd.Flags().StringVarP(&agentID, "agent", "a", "", "Agent profile id (default: first active profile)")
	cmd.Flags().StringVarP(&message, "message", "m", "", "One-shot prompt to send to the agent")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")

	return cmd
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		Short:   "Show configuration, provider, and fleet readiness",
		Example: "  roomfleet status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return statusCmd()
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "version",
		Short:   "Show build/version metadata",
		Example: "  roomfleet version",
		RunE: func(cmd *cobra.Command, args []string) error {
			printVersion()
			return nil
		},
	}
}
