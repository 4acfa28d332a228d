package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/klchiu/waops/action"
	"github.com/klchiu/waops/command"
	"github.com/klchiu/waops/config"
	"github.com/klchiu/waops/dispatch"
	"github.com/klchiu/waops/errors"
	"github.com/klchiu/waops/logger"
	"github.com/klchiu/waops/mailer"
	"github.com/klchiu/waops/sched"
	"github.com/klchiu/waops/server"
	"github.com/klchiu/waops/store"
	"github.com/klchiu/waops/task"
	"github.com/klchiu/waops/wa"
)

// ruleTimeout bounds one automated reply, command run included.
const ruleTimeout = 60 * time.Second

var (
	configPath string
	jsonLogs   bool
)

var rootCmd = &cobra.Command{
	Use:   "waops",
	Short: "waops - scheduled messaging and automated replies over a WhatsApp session",
	Long: `waops drives a paired WhatsApp account: it fires scheduled message and
command tasks, answers inbound messages through reply rules, and exposes
a dashboard HTTP API for managing both.

Examples:
  waops serve                      # Start with ./waops.toml
  waops serve --config /etc/waops.toml
  waops serve --json-logs -v`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbosity, _ := cmd.Flags().GetCount("verbose")
		if err := logger.InitializeWithLevel(jsonLogs, logger.VerbosityToLevel(verbosity)); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the scheduler, reply engine, and dashboard HTTP server",
	RunE:  runServe,
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (-v for debug)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "waops.toml", "Path to the configuration file")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "Emit JSON structured logs")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.Logger
	defer logger.Sync()

	cfg, v, err := config.Load(configPath)
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}

	st, err := store.New(cfg.DataDir, log)
	if err != nil {
		return errors.Wrap(err, "failed to open data directory")
	}
	loadedTasks, err := st.LoadTasks()
	if err != nil {
		return errors.Wrap(err, "failed to load task snapshot")
	}
	loadedRules, err := st.LoadRules()
	if err != nil {
		return errors.Wrap(err, "failed to load reply-rule snapshot")
	}
	log.Infow("Snapshots loaded", "tasks", len(loadedTasks), "rules", len(loadedRules))

	tasks := task.NewCollection(loadedTasks)
	rules := action.NewCollection(loadedRules)

	bridge := wa.NewBridge(cfg.Session.BridgeURL, log)
	runner := command.NewRunner(log)
	disp := dispatch.New(bridge, runner, log)
	scheduler := sched.New(tasks, bridge, disp, st, cfg.Location(), log)
	alerter := mailer.New(cfg.Email, log)

	srv := server.New(server.Deps{
		Config:    cfg,
		Viper:     v,
		Tasks:     tasks,
		Rules:     rules,
		Store:     st,
		Scheduler: scheduler,
		Dispatch:  disp,
		Gateway:   bridge,
		Mailer:    alerter,
		Logger:    log,
	})

	bridge.OnStatusChange(func(connected bool, reason string) {
		srv.BroadcastStatus()
		if connected {
			scheduler.Reconcile(tasks.Snapshot())
			return
		}
		log.Warnw("Session disconnected", "reason", reason)
		alerter.AlertDisconnect(reason)
	})

	bridge.OnMessage(func(senderJID, body string) {
		for _, rule := range action.Match(rules.List(), senderJID, body) {
			r := rule
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), ruleTimeout)
				defer cancel()
				if err := disp.RunRule(ctx, r, senderJID); err != nil {
					log.Errorw("Reply rule failed", "rule", r.ID, "error", err)
				}
			}()
		}
	})

	scheduler.Start()
	scheduler.Reconcile(tasks.Snapshot())
	bridge.Start()

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Serve()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Infow("Shutting down", "signal", sig.String())
	case err := <-errChan:
		if err != nil {
			return errors.Wrap(err, "HTTP server failed")
		}
		return nil
	}

	scheduler.Stop()
	bridge.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("HTTP shutdown failed", "error", err)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
