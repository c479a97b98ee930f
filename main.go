package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"SourceAcademyGame/internal/checkpoint"
	"SourceAcademyGame/internal/console"
	"SourceAcademyGame/internal/dialogue"
	"SourceAcademyGame/internal/game"
	"SourceAcademyGame/internal/logging"
	"SourceAcademyGame/internal/server"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	logLevel string
	dev      bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:          "sagame",
		Short:        "Source Academy game dialogue server",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().BoolVar(&opts.dev, "dev", false, "human-readable development logging")

	cmd.AddCommand(newServeCmd(opts), newPlayCmd(opts), newCheckCmd())
	return cmd
}

func newServeCmd(root *rootOptions) *cobra.Command {
	var (
		addr, checkpointPath, dbPath, policy string
		watch                                bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dialogue player over HTTP and WebSocket",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := server.LoadConfig()
			if err != nil {
				return err
			}

			// Flags only override the environment when given explicitly.
			var overrides server.ConfigOverrides
			flags := cmd.Flags()
			if flags.Changed("addr") {
				overrides.Addr = &addr
			}
			if flags.Changed("checkpoint") {
				overrides.CheckpointPath = &checkpointPath
			}
			if flags.Changed("db") {
				overrides.DBPath = &dbPath
			}
			if flags.Changed("policy") {
				overrides.Policy = &policy
			}
			if flags.Changed("watch") {
				overrides.Watch = &watch
			}
			if flags.Changed("log-level") {
				overrides.LogLevel = &root.logLevel
			}
			if flags.Changed("dev") {
				overrides.Dev = &root.dev
			}
			cfg = overrides.Apply(cfg)

			logger, err := logging.New(cfg.LogLevel, cfg.Dev)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			return server.StartApp(cmd.Context(), cfg, logger)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "address to listen on (e.g., 127.0.0.1:8080)")
	cmd.Flags().StringVar(&checkpointPath, "checkpoint", "configs/checkpoint.yaml", "checkpoint YAML file")
	cmd.Flags().StringVar(&dbPath, "db", "data/game.db", "SQLite database path; empty disables persistence")
	cmd.Flags().StringVar(&policy, "policy", "reject", "what a new dialogue does while one is playing (reject, replace, queue)")
	cmd.Flags().BoolVar(&watch, "watch", true, "reload the checkpoint when the file changes")
	return cmd
}

func newPlayCmd(root *rootOptions) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "play <checkpoint> <dialogue-id>",
		Short: "Play a dialogue in the terminal; press Enter to advance",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			level := root.logLevel
			if level == "" {
				level = "warn"
			}
			logger, err := logging.New(level, true)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			cp, err := checkpoint.Load(args[0])
			if err != nil {
				return err
			}
			id := dialogue.ID(args[1])
			if _, ok := cp.Dialogues().Get(id); !ok {
				return fmt.Errorf("checkpoint %s has no dialogue %q", cp.ID, id)
			}
			return playInConsole(cmd, cp, id, name, logger)
		},
	}
	cmd.Flags().StringVar(&name, "name", game.DefaultPlayerName, "name substituted for {name}")
	return cmd
}

func playInConsole(cmd *cobra.Command, cp *checkpoint.Checkpoint, id dialogue.ID, name string, logger *zap.Logger) error {
	out := cmd.OutOrStdout()
	stage := console.NewStage(out)
	events := game.EmitterFunc(func(msg game.OutboundMessage) {
		logger.Debug("event", zap.String("type", msg.Type), zap.Any("payload", msg.Payload))
	})

	player := game.NewPlayer("console", name)
	layers := game.NewLayerManager(events)
	sound := game.NewSoundManager(events, logger)
	actions, err := game.NewPlayerExecutor(cp.Actions(), game.PlayerActions{
		Player: player,
		Sound:  sound,
		Layers: layers,
		Emit:   events,
		Logger: logger.Named("actions"),
	})
	if err != nil {
		return err
	}

	seq := dialogue.NewSequencer(dialogue.Options{
		Stage:   stage,
		Layers:  layers,
		Actions: actions,
		Sound:   sound,
		Logger:  logger.Named("dialogue"),
	})
	seq.Initialise(cp.Dialogues(), name)

	ctx, cancel := context.WithCancelCause(cmd.Context())
	defer cancel(nil)
	session, err := seq.Start(ctx, id)
	if err != nil || session == nil {
		return err
	}

	// Running out of input ends playback with the pump's error. Stdin cannot
	// be interrupted, so a reader blocked on it is left behind.
	go func() {
		if err := stage.Pump(ctx, cmd.InOrStdin(), session); err != nil {
			cancel(err)
		}
	}()

	if err := session.Wait(); err != nil {
		return err
	}
	if flags := player.Flags(); len(flags) > 0 {
		fmt.Fprintf(out, "flags set: %v\n", flags)
	}
	return nil
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <checkpoint>",
		Short: "Validate a checkpoint file and list its dialogues",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cp, err := checkpoint.Load(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "checkpoint %s: %d dialogues, %d actions\n", cp.ID, cp.Dialogues().Len(), len(cp.Actions()))
			for _, id := range cp.Dialogues().IDs() {
				d, _ := cp.Dialogues().Get(id)
				fmt.Fprintf(out, "  %-20s %3d lines  %s\n", d.ID, d.LineCount(), d.Title)
			}
			return nil
		},
	}
}
