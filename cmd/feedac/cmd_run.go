package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"feedac/internal/ai"
	"feedac/internal/browser"
	"feedac/internal/feed"
	"feedac/internal/history"
	"feedac/internal/rules"
	"feedac/internal/task"
)

var browserPath string

// runCmd starts an engagement run.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the engagement loop until the comment target is reached",
	Long: `Launches the browser, restores the saved login, walks the feed and
comments on items matched by the configured rule tree. The run ends when
the configured number of comments has been posted, on Ctrl-C, or when an
unresolved verification challenge blocks further progress.`,
	RunE: runTask,
}

// loginCmd opens the site for an interactive login.
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in interactively and save the session for later runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openSettings()
		if err != nil {
			return err
		}
		return browser.Login(cmd.Context(), resolveBrowserPath(store), store)
	},
}

func resolveBrowserPath(store interface{ BrowserExecPath() string }) string {
	if browserPath != "" {
		return browserPath
	}
	return store.BrowserExecPath()
}

func runTask(cmd *cobra.Command, args []string) error {
	store, err := openSettings()
	if err != nil {
		return err
	}
	cfg, err := store.FeedSettings()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration invalid: %w", err)
	}

	var judge rules.Judge
	if cfg.HasAIGroups() {
		aiCfg, ok, err := store.AIConfig()
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("configuration has AI rule groups but no AI provider is configured")
		}
		client, err := ai.NewClient(cmd.Context(), ai.Config{
			Platform: aiCfg.Platform,
			APIKey:   aiCfg.APIKey,
			Model:    aiCfg.Model,
		})
		if err != nil {
			return err
		}
		judge = ai.NewJudge(client)
	}

	hist, err := history.Open(dataDir)
	if err != nil {
		return err
	}
	defer hist.Close()

	cache := feed.NewCache()
	driver := browser.NewSession(resolveBrowserPath(store), cache, store)

	runner, err := task.New(task.Options{
		Driver:   driver,
		Cache:    cache,
		Settings: cfg,
		Judge:    judge,
		Recorder: hist,
	})
	if err != nil {
		return err
	}

	// Ctrl-C stops gracefully; the deferred teardown still saves auth.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nstopping...")
		runner.Stop()
	}()

	g, gctx := errgroup.WithContext(cmd.Context())
	g.Go(func() error { return runner.Run(gctx) })
	g.Go(func() error {
		printEvents(runner.Events())
		return nil
	})

	err = g.Wait()
	switch {
	case err == nil:
		logger.Info("run completed", zap.Int("comments", runner.CommentCount()))
	case errors.Is(err, context.Canceled), errors.Is(err, task.ErrStopped):
		logger.Info("run stopped", zap.Int("comments", runner.CommentCount()))
		err = nil
	default:
		return err
	}
	printRunSummary(hist)
	return nil
}

// printRunSummary prints the just-finished run to stdout.
func printRunSummary(hist *history.Store) {
	runs, err := hist.ListRuns()
	if err != nil || len(runs) == 0 {
		return
	}
	run := runs[0]
	_, records, err := hist.GetRun(run.ID)
	if err != nil {
		return
	}
	skipped := 0
	for _, rec := range records {
		if rec.Action == history.ActionSkipped {
			skipped++
		}
	}
	fmt.Printf("\nrun %s  status=%s  commented=%d  skipped=%d  duration=%s\n",
		run.ID, run.Status, run.CommentCount, skipped,
		run.EndedAt.Sub(run.StartedAt).Round(time.Second))
}

func printEvents(events <-chan task.Event) {
	for ev := range events {
		switch ev.Level {
		case task.LevelDebug:
			logger.Debug(ev.Message)
		case task.LevelWarn:
			logger.Warn(ev.Message)
		case task.LevelError:
			logger.Error(ev.Message)
		default:
			logger.Info(ev.Message)
		}
	}
}

func init() {
	runCmd.Flags().StringVar(&browserPath, "browser", "", "browser executable path (overrides the stored one)")
	loginCmd.Flags().StringVar(&browserPath, "browser", "", "browser executable path (overrides the stored one)")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(loginCmd)
}
