package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"riptide/internal/daemonrun"
	"riptide/internal/logging"
	"riptide/internal/queue"
)

func newGetCommand(ctx *commandContext) *cobra.Command {
	var listFile string
	var verbose bool
	var noProgress bool

	cmd := &cobra.Command{
		Use:   "get [url...]",
		Short: "Download URLs in the foreground without a daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			urls, err := collectURLs(args, listFile)
			if err != nil {
				return err
			}
			if len(urls) == 0 {
				return fmt.Errorf("no URLs given")
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			level := "warn"
			if verbose {
				level = cfg.Logging.Level
			}
			logger, err := logging.New(logging.Options{
				Level:       level,
				Format:      "console",
				OutputPaths: []string{"stderr"},
			})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			tracker := newProgressTracker(cmd.ErrOrStderr(), !noProgress && isTerminal(cmd.ErrOrStderr()))
			components, err := daemonrun.Build(cfg, logger, tracker)
			if err != nil {
				return err
			}
			defer components.Close()

			manager := components.Manager
			if err := manager.RunPreflight(runCtx); err != nil {
				return err
			}
			if err := manager.Start(runCtx); err != nil {
				return fmt.Errorf("start workers: %w", err)
			}
			defer manager.Stop()

			out := cmd.OutOrStdout()
			accepted := 0
			for _, url := range urls {
				if err := manager.Submit(runCtx, url); err != nil {
					fmt.Fprintf(out, "Skipping %s: %v\n", url, err)
					continue
				}
				accepted++
			}
			if accepted == 0 {
				return fmt.Errorf("no URLs were accepted")
			}

			waitErr := manager.WaitIdle(runCtx)
			tracker.finish()

			status := manager.Status()
			failed := writeGetSummary(out, components.Store.Stats(), status.DownloadedBytes)
			if waitErr != nil {
				return waitErr
			}
			if failed > 0 {
				return fmt.Errorf("%d item(s) failed", failed)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&listFile, "file", "f", "", "Read URLs from a file, one per line")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log at the configured level instead of warnings only")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable the progress bar")
	return cmd
}

func writeGetSummary(out io.Writer, stats map[queue.Status]int, bytes int64) int {
	downloaded := stats[queue.StatusDownloaded]
	existing := stats[queue.StatusAlreadyExists]
	failed := stats[queue.StatusFailed] + stats[queue.StatusUnavailable]
	cancelled := stats[queue.StatusCancelled]
	fmt.Fprintf(out, "Downloaded %d item(s) (%s), %d already present, %d failed, %d cancelled\n",
		downloaded, formatBytes(bytes), existing, failed, cancelled)
	return failed
}

// progressTracker counts finished items on a single bar whose maximum grows
// as playlists and albums expand.
type progressTracker struct {
	mu       sync.Mutex
	bar      *progressbar.ProgressBar
	seen     map[string]bool
	finished map[string]bool
}

func newProgressTracker(w io.Writer, visible bool) *progressTracker {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("Resolving"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetVisibility(visible),
		progressbar.OptionClearOnFinish(),
	)
	return &progressTracker{
		bar:      bar,
		seen:     make(map[string]bool),
		finished: make(map[string]bool),
	}
}

func (p *progressTracker) Notify(item queue.Item, status queue.Status, percent int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.seen[item.LocalID] {
		p.seen[item.LocalID] = true
		p.bar.ChangeMax(len(p.seen))
	}
	name := item.Name
	if name == "" {
		name = item.ItemID
	}
	p.bar.Describe(fmt.Sprintf("%s: %s", status, name))
	if status.IsTerminal() && !p.finished[item.LocalID] {
		p.finished[item.LocalID] = true
		_ = p.bar.Add(1)
	}
}

func (p *progressTracker) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.bar.Finish()
}

