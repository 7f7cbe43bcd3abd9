package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"storyfeed/internal/blob"
	"storyfeed/internal/config"
	"storyfeed/internal/pipeline"
	"storyfeed/internal/server"
	"storyfeed/internal/store"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "storyfeed",
	Short:   "Summarized story notifications",
	Long:    "Storyfeed ingests top stories, extracts the linked articles, summarizes them with an LLM, and delivers the summaries to notification channels.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	for _, name := range []string{"fetch", "extract", "summarize", "notify"} {
		rootCmd.AddCommand(stageCmd(name))
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("storyfeed", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/storyfeed/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure the story source, LLM provider, and notification channels.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show item counts and stage run times",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		counts, err := st.CountByStatus()
		if err != nil {
			return fmt.Errorf("counting items: %w", err)
		}

		total := 0
		fmt.Println("Items:")
		for _, status := range store.AllStatuses {
			fmt.Printf("  %-16s %d\n", status, counts[status])
			total += counts[status]
		}
		fmt.Printf("  %-16s %d\n", "total", total)

		runs, err := st.AllWorkerRuns()
		if err != nil {
			return fmt.Errorf("reading run records: %w", err)
		}
		if len(runs) > 0 {
			fmt.Println("\nStages:")
			for _, run := range runs {
				fmt.Printf("  %-16s last run %s\n", run.TaskName, run.LastRunTime.Local().Format("2006-01-02 15:04:05"))
			}
		}
		return nil
	},
}

// --- run command ---

var forceRun bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one pipeline pass: fetch -> extract -> summarize -> notify",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, orch, err := openPipeline()
		if err != nil {
			return err
		}
		defer st.Close()

		ctx := cmd.Context()
		var results []pipeline.StageResult
		if forceRun {
			for _, name := range orch.StageNames() {
				result, err := orch.RunStage(ctx, name, true)
				if err != nil {
					return err
				}
				results = append(results, result)
			}
		} else {
			results = orch.Tick(ctx)
		}

		printResults(results)
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&forceRun, "force", false, "Run every stage regardless of its interval")
}

// --- per-stage commands ---

func stageCmd(name string) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   name,
		Short: fmt.Sprintf("Run the %s stage", name),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, orch, err := openPipeline()
			if err != nil {
				return err
			}
			defer st.Close()

			result, err := orch.RunStage(cmd.Context(), name, force)
			if err != nil {
				return err
			}
			printResults([]pipeline.StageResult{result})
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Run even if the stage's interval has not elapsed")
	return cmd
}

func printResults(results []pipeline.StageResult) {
	for _, r := range results {
		if !r.Ran {
			fmt.Printf("%-12s skipped (not due)\n", r.Name)
			continue
		}
		if r.Err != nil {
			fmt.Printf("%-12s error: %v\n", r.Name, r.Err)
			continue
		}
		c := r.Counts
		fmt.Printf("%-12s %d succeeded, %d failed, %d retried, %d skipped\n",
			r.Name, c.Succeeded, c.Failed, c.Retried, c.Skipped)
	}
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the pipeline on a timer and serve the control API",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, orch, err := openPipeline()
		if err != nil {
			return err
		}
		defer st.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf("127.0.0.1:%d", port),
			Handler: server.New(st, orch).Handler(),
		}
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()

		tick := time.Duration(cfg.Pipeline.TickIntervalMinutes) * time.Minute
		if tick <= 0 {
			tick = time.Minute
		}
		go func() {
			printResults(orch.Tick(ctx))
			ticker := time.NewTicker(tick)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					printResults(orch.Tick(ctx))
				}
			}
		}()

		fmt.Printf("Serving at http://%s (tick every %s)\n", srv.Addr, tick)
		fmt.Println("Press Ctrl+C to stop")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to serve on (overrides config)")
}

func openStore() (*store.Store, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return store.Open(filepath.Join(dataDir, "storyfeed.db"))
}

func openPipeline() (*store.Store, *pipeline.Orchestrator, error) {
	st, err := openStore()
	if err != nil {
		return nil, nil, err
	}

	blobs, err := blob.NewStore(filepath.Join(cfg.GetDataDir(), "blobs"))
	if err != nil {
		st.Close()
		return nil, nil, fmt.Errorf("opening blob store: %w", err)
	}

	orch, err := pipeline.New(cfg, st, blobs)
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	return st, orch, nil
}
