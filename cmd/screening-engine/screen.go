// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/screening-engine/internal/backend"
	"github.com/pdiddy/screening-engine/internal/orchestrator"
	"github.com/pdiddy/screening-engine/internal/rules"
	"github.com/pdiddy/screening-engine/internal/screen"
	"github.com/pdiddy/screening-engine/pkg/types"
)

var screenCmd = &cobra.Command{
	Use:   "screen",
	Short: "Screen records against inclusion criteria",
	Long: `Screen sends every record to each configured model backend with the same
seed, applies the eligibility rules, aggregates the calibrated scores and routes
each record to INCLUDE, EXCLUDE or HUMAN_REVIEW. Decisions are written to
--output and every audit entry is recorded in the ledger.

Failed or unparseable backend calls never drop a record: they count as a
zero-confidence INCLUDE vote, and a record with no valid vote goes to human
review.`,
	RunE: runScreen,
}

func runScreen(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if seed, _ := cmd.Flags().GetInt64("seed"); cmd.Flags().Changed("seed") {
		cfg.Orchestrator.Seed = seed
	}
	if workers, _ := cmd.Flags().GetInt("workers"); workers > 0 {
		cfg.Workers = workers
	}

	recordsPath, _ := cmd.Flags().GetString("records")
	criteriaPath, _ := cmd.Flags().GetString("criteria")
	records, err := screen.LoadRecords(recordsPath)
	if err != nil {
		return err
	}
	criteria, err := screen.LoadCriteria(criteriaPath)
	if err != nil {
		return err
	}

	backends, err := backend.FromConfig(cfg.Backends, cfg.HTTP, loadedSecrets)
	if err != nil {
		return err
	}
	opts := orchestrator.FromConfig(cfg.Orchestrator)
	if cfg.Orchestrator.CacheBytes > 0 {
		cache, err := orchestrator.NewResponseCache(cfg.Orchestrator.CacheBytes)
		if err != nil {
			return err
		}
		defer cache.Close()
		opts = append(opts, orchestrator.WithCache(cache))
	}
	orch, err := orchestrator.New(backends, opts...)
	if err != nil {
		return err
	}

	engine, err := rules.FromConfig(cfg.Rules)
	if err != nil {
		return err
	}
	artifacts, err := screen.LoadArtifacts(cfg.Artifacts)
	if err != nil {
		return err
	}

	metrics := screen.NewMetrics()
	screenerOpts := []screen.Option{
		screen.WithRules(engine),
		screen.WithArtifacts(artifacts),
		screen.WithMetrics(metrics),
		screen.WithWorkers(cfg.Workers),
		screen.WithLogger(slog.Default()),
	}
	if noStore, _ := cmd.Flags().GetBool("no-store"); !noStore {
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()
		screenerOpts = append(screenerOpts, screen.WithSink(st))
	}
	screener, err := screen.New(orch, screenerOpts...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Fprintf(os.Stderr, "Run %s: %d records, %d backends, seed %d\n",
		screener.RunID(), len(records), len(backends), cfg.Orchestrator.Seed)
	decisions, summary, err := screener.ScreenBatch(ctx, records, criteria, os.Stdout)
	if err != nil {
		return err
	}

	if out, _ := cmd.Flags().GetString("output"); out != "" {
		if err := writeDecisions(out, decisions); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Decisions written to %s\n", out)
	}
	if mf, _ := cmd.Flags().GetString("metrics-file"); mf != "" {
		if err := metrics.WriteTextfile(mf); err != nil {
			return fmt.Errorf("writing metrics: %w", err)
		}
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d record(s) could not be screened", summary.Failed)
	}
	return nil
}

// writeDecisions writes decisions as JSON or YAML according to the extension.
func writeDecisions(path string, decisions []types.ScreeningDecision) error {
	var (
		data []byte
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err = json.MarshalIndent(decisions, "", "  ")
	} else {
		data, err = yaml.Marshal(decisions)
	}
	if err != nil {
		return fmt.Errorf("encoding decisions: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

func init() {
	screenCmd.Flags().String("records", "records.yaml", "YAML or JSON file of records to screen")
	screenCmd.Flags().String("criteria", "criteria.yaml", "YAML or JSON criteria file (canonical or legacy PICO layout)")
	screenCmd.Flags().String("output", "", "write decisions to this YAML or JSON file")
	screenCmd.Flags().Int64("seed", 0, "seed sent to every backend (overrides orchestrator.seed)")
	screenCmd.Flags().Int("workers", 0, "records screened concurrently (overrides workers)")
	screenCmd.Flags().Bool("no-store", false, "do not record audit entries in the ledger")
	screenCmd.Flags().String("metrics-file", "", "write prometheus metrics in textfile format to this path")

	rootCmd.AddCommand(screenCmd)
}
