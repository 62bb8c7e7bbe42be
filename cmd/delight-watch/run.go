package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/bhandras/delight/watch/internal/bridge"
	"github.com/bhandras/delight/watch/internal/config"
	"github.com/bhandras/delight/watch/internal/derive"
	"github.com/bhandras/delight/watch/internal/notify"
	"github.com/bhandras/delight/watch/pkg/logger"
	"pkt.systems/pslog"
)

const disconnectTimeout = 5 * time.Second

func newRunCmd(flags *rootFlags) *cobra.Command {
	var host string
	var detach bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Connect to the bridge and follow the active session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flags.configPath)
			if err != nil {
				return err
			}
			level := cfg.LogLevel
			if cmd.Flags().Changed("log-level") {
				level = flags.logLevel
			}
			if err := applyLogLevel(level, cmd.Flags().Changed("log-level")); err != nil {
				return err
			}
			if host != "" {
				cfg.Host, _ = cfg.LookupHost(host)
			}
			return runWatch(cmd, cfg, detach)
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "bridge host or preset label (overrides config)")
	cmd.Flags().BoolVar(&detach, "detach", false, "no console; only log state and post notifications")
	return cmd
}

// applyLogLevel sets the threshold. An explicit flag also replaces the
// environment-configured backend so its filtering matches.
func applyLogLevel(raw string, explicit bool) error {
	lvl, err := logger.ParseLevel(raw)
	if err != nil {
		return err
	}
	if explicit {
		logger.SetOutput(os.Stderr)
	}
	logger.SetLevel(lvl)
	return nil
}

func runWatch(cmd *cobra.Command, cfg config.Config, detach bool) error {
	ctx := cmd.Context()
	log := logger.Logger()

	client, err := bridge.New(bridge.Config{
		Host:           cfg.Host,
		Port:           cfg.Port,
		TailnetSuffix:  cfg.TailnetSuffix,
		ReconnectDelay: cfg.ReconnectDelay(),
		Logger:         log,
		OnChange:       logCues(log),
	})
	if err != nil {
		return err
	}

	sinks := []notify.Sink{notify.LogSink{Log: log}}
	if po := cfg.Notify.Pushover; po.Enabled() {
		sink, err := notify.NewPushover(notify.PushoverConfig{
			Token:    po.Token,
			UserKey:  po.UserKey,
			Priority: po.Priority,
			Cooldown: po.Cooldown(),
		})
		if err != nil {
			return fmt.Errorf("pushover: %w", err)
		}
		sinks = append(sinks, sink)
	}
	watcher := notify.NewWatcher(log, sinks...)
	watcher.SetForeground(!detach && cfg.Notify.Background)

	label := cfg.Host
	if p, ok := cfg.PresetFor(cfg.Host); ok {
		label = p.Label
	}
	log.Info("delight-watch starting", "host", cfg.Host, "preset", label, "client", client.ID())

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	client.Start()
	watchStates, stopWatch := client.Subscribe()
	defer stopWatch()
	go watcher.Run(runCtx, watchStates)

	viewStates, stopView := client.Subscribe()
	defer stopView()
	go logStates(runCtx, log, viewStates)

	client.Connect()

	var runErr error
	if detach {
		<-runCtx.Done()
	} else {
		runErr = console(runCtx, cmd, client, cfg)
	}

	dctx, dcancel := context.WithTimeout(context.Background(), disconnectTimeout)
	defer dcancel()
	if err := client.Disconnect(dctx); err != nil {
		log.Warn("disconnect", "err", err)
	}
	log.Info("delight-watch stopped", "status", watcher.StatusLine())
	return runErr
}

func console(ctx context.Context, cmd *cobra.Command, c controller, cfg config.Config) error {
	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintln(out, replHelp)

	lookup := func(h string) string {
		host, _ := cfg.LookupHost(h)
		return host
	}
	lines := readLines(ctx, cmd.InOrStdin())
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if strings.TrimSpace(line) == "help" {
				_, _ = fmt.Fprintln(out, replHelp)
				continue
			}
			err := dispatch(line, c, lookup)
			if errors.Is(err, errQuit) {
				return nil
			}
			if err != nil {
				_, _ = fmt.Fprintln(out, err)
			}
		}
	}
}

// logStates writes one log line per observed change of the projected view.
func logStates(ctx context.Context, log pslog.Logger, states <-chan bridge.State) {
	var (
		prev     bridge.State
		prevView derive.View
		seen     bool
	)
	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-states:
			if !ok {
				return
			}
			view := derive.Project(st)
			if !seen || st.Conn != prev.Conn || st.ActiveSession != prev.ActiveSession || !sameView(view, prevView) {
				log.Info("state",
					"conn", st.Conn.String(),
					"session", st.ActiveSession,
					"screen", string(view.Screen),
					"activity", string(view.Activity),
					"pill", view.Pill,
					"command", view.CommandLine,
					"prompt", view.PromptBar,
				)
			}
			if seen {
				if len(st.Sessions) > 0 && !slices.Equal(st.Sessions, prev.Sessions) {
					log.Info("sessions", "names", strings.Join(st.Sessions, ", "))
				}
				if view.Screen == derive.ScreenQuestion && prevView.Screen != derive.ScreenQuestion {
					log.Info("question", "text", view.Question, "options", strings.Join(view.Options, " | "))
				}
			}
			prev, prevView, seen = st, view, true
		}
	}
}

// logCues logs one-shot cues. It runs on every transition, so a Ready
// squeezed between two working snapshots still raises finished.
func logCues(log pslog.Logger) func(prev, next bridge.State) {
	return func(prev, next bridge.State) {
		for _, cue := range derive.Cues(prev, next) {
			log.Info("cue", "cue", string(cue), "session", next.ActiveSession)
		}
	}
}

func sameView(a, b derive.View) bool {
	return a.Screen == b.Screen && a.Activity == b.Activity && a.Pill == b.Pill &&
		a.CommandLine == b.CommandLine && a.PromptBar == b.PromptBar
}
