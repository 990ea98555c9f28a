package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/glimte/mmate-intercept/config"
	"github.com/glimte/mmate-intercept/interceptors"
	"github.com/glimte/mmate-intercept/internal/demo"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	// Version information
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "intercept-demo",
		Short: "Run a Calculator through a configured interceptor chain",
		Long: `intercept-demo decorates a small Calculator service with the interceptor chain
described by a YAML configuration and prints what the chain observed: trace lines,
structured logs, timing reports and collected metrics.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildTime),
	}

	// Global flags
	var (
		configPath string
		verbose    bool
	)

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	loadConfig := func() (*config.Config, error) {
		if configPath == "" {
			return config.Default(), nil
		}
		return config.Load(configPath)
	}

	newLogger := func() *slog.Logger {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	}

	// Run command
	var (
		rounds      int
		latency     time.Duration
		showMetrics bool
	)
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the Calculator workload",
		Long:  "Call every Calculator method for the given number of rounds, including failing calls, then flush the timer.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			// Handle signals
			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
			go func() {
				<-sigChan
				cancel()
			}()

			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			logger := newLogger()
			assembly, err := demo.Assemble(cfg, logger, demo.Streams{Out: os.Stdout, ErrOut: os.Stderr}, nil)
			if err != nil {
				return fmt.Errorf("failed to assemble chain: %w", err)
			}
			defer func() {
				if err := assembly.Close(context.Background()); err != nil {
					logger.Warn("failed to close chain resources", "error", err)
				}
			}()

			calc, err := demo.Intercept(demo.BasicCalculator{Latency: latency}, assembly.Chain)
			if err != nil {
				return fmt.Errorf("failed to decorate calculator: %w", err)
			}

			outcomes := demo.RunWorkload(ctx, calc, rounds)
			fmt.Println(strings.Repeat("-", 60))
			demo.WriteOutcomes(os.Stdout, outcomes)

			reports, err := assembly.FlushWithin(cfg.Timer.FlushTimeout)
			if err != nil {
				return fmt.Errorf("failed to flush timer: %w", err)
			}
			printReports(reports)

			if showMetrics {
				fmt.Println(strings.Repeat("-", 60))
				return assembly.WriteMetrics(context.Background(), os.Stdout)
			}
			return nil
		},
	}
	runCmd.Flags().IntVarP(&rounds, "rounds", "r", 8, "Number of workload rounds")
	runCmd.Flags().DurationVarP(&latency, "latency", "l", 0, "Simulated latency of each Calculator call")
	runCmd.Flags().BoolVarP(&showMetrics, "metrics", "m", false, "Print collected metrics as JSON")

	// Config command
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			out, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to encode config: %w", err)
			}
			fmt.Print(string(out))
			return nil
		},
	}

	rootCmd.AddCommand(runCmd, configCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func printReports(reports []interceptors.TimingReport) {
	if len(reports) == 0 {
		fmt.Println("No timing reports")
		return
	}

	fmt.Println(strings.Repeat("-", 60))
	fmt.Printf("%-20s %-6s %-8s %-10s %-10s %-10s %-10s\n", "Method", "Count", "Failed", "Avg(ms)", "StdDev", "P50(ms)", "P90(ms)")
	fmt.Println(strings.Repeat("-", 80))

	for _, r := range reports {
		fmt.Printf("%-20s %-6d %-8d %-10.3f %-10.3f %-10.3f %-10.3f\n",
			r.Key.String(),
			r.Summary.Count,
			r.Failures,
			r.Summary.Average,
			r.Summary.StdDev,
			r.Summary.P50,
			r.Summary.P90,
		)
	}
}
