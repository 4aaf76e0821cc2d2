// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/pdiddy/screening-engine/internal/calibrate"
	"github.com/pdiddy/screening-engine/internal/router"
	"github.com/pdiddy/screening-engine/internal/weights"
)

// --- calibrate ---

var calibrateCmd = &cobra.Command{
	Use:   "calibrate",
	Short: "Fit per-model score calibrators from labeled history",
	Long: `Calibrate fits one Platt or isotonic calibrator per model from the
labeled history in the ledger (or --history) and writes them to the
calibrators artifact. Models whose history holds a single class are left at
identity and reported.`,
	RunE: runCalibrate,
}

func runCalibrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	kind := calibrate.Kind(cfg.Optimizer.Calibrator)
	if k, _ := cmd.Flags().GetString("kind"); k != "" {
		kind = calibrate.Kind(k)
	}

	history, err := loadHistory(context.Background(), cmd, cfg)
	if err != nil {
		return err
	}
	set, err := calibrate.FitSet(history, kind, slog.Default())
	if err != nil {
		return err
	}
	if err := calibrate.Save(cfg.Artifacts.CalibratorsPath, set); err != nil {
		return err
	}

	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Printf("fitted:  %s (%s)\n", id, set[id].Kind())
	}
	fmt.Printf("\nCalibrators for %d model(s) from %d labeled records written to %s\n",
		len(set), len(history), cfg.Artifacts.CalibratorsPath)
	return nil
}

// --- fit-weights ---

var fitWeightsCmd = &cobra.Command{
	Use:   "fit-weights",
	Short: "Fit ensemble weights from labeled history",
	Long: `Fit-weights minimizes the cross-entropy of the weighted ensemble score
against the labels, with every weight kept at or above optimizer.weight_floor
and the weights summing to one. Scores are passed through the current
calibrators first. With labels of a single class, equal weights are written.`,
	RunE: runFitWeights,
}

func runFitWeights(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	history, err := loadHistory(context.Background(), cmd, cfg)
	if err != nil {
		return err
	}
	cals, err := calibrate.Load(cfg.Artifacts.CalibratorsPath)
	if err != nil {
		return err
	}

	opt := weights.Optimizer{
		Epsilon: cfg.Optimizer.WeightFloor,
		Seed:    cfg.Orchestrator.Seed,
		Logger:  slog.Default(),
	}
	w, err := opt.FitHistory(cals.Apply(history))
	if err != nil && !errors.Is(err, weights.ErrInsufficientLabels) {
		return err
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v; writing equal weights\n", err)
	}
	if err := weights.Save(cfg.Artifacts.WeightsPath, w); err != nil {
		return err
	}

	ids := make([]string, 0, len(w))
	for id := range w {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Printf("%-24s %.4f\n", id, w[id])
	}
	fmt.Printf("\nWeights written to %s\n", cfg.Artifacts.WeightsPath)
	return nil
}

// --- optimize-thresholds ---

var optimizeThresholdsCmd = &cobra.Command{
	Use:   "optimize-thresholds",
	Short: "Grid-search routing thresholds on a labeled validation set",
	Long: `Optimize-thresholds evaluates every (tau_high, tau_mid, tau_low) triple on
the optimizer grid and keeps the one with the highest automation rate whose
sensitivity meets optimizer.min_sensitivity. When no triple qualifies the
default thresholds are kept and the command reports the shortfall.`,
	RunE: runOptimizeThresholds,
}

func runOptimizeThresholds(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if v, _ := cmd.Flags().GetFloat64("min-sensitivity"); v > 0 {
		cfg.Optimizer.MinSensitivity = v
	}
	history, err := loadHistory(context.Background(), cmd, cfg)
	if err != nil {
		return err
	}

	res := router.OptimizerFromConfig(cfg.Optimizer).Optimize(history)
	fmt.Printf("Candidates:       %d\n", res.Candidates)
	fmt.Printf("Thresholds:       tau_high=%.2f tau_mid=%.2f tau_low=%.2f\n",
		res.Thresholds.TauHigh, res.Thresholds.TauMid, res.Thresholds.TauLow)
	fmt.Printf("Sensitivity:      %.3f\n", res.Sensitivity)
	fmt.Printf("Automation rate:  %.3f\n", res.AutomationRate)

	if !res.Feasible {
		fmt.Fprintf(os.Stderr, "warning: no threshold triple reaches sensitivity %.2f; keeping defaults\n",
			cfg.Optimizer.MinSensitivity)
	}
	if dry, _ := cmd.Flags().GetBool("dry-run"); dry {
		return nil
	}
	if err := router.SaveThresholds(cfg.Artifacts.ThresholdsPath, res.Thresholds); err != nil {
		return err
	}
	fmt.Printf("\nThresholds written to %s\n", cfg.Artifacts.ThresholdsPath)
	return nil
}

func init() {
	addHistoryFlags(calibrateCmd)
	calibrateCmd.Flags().String("kind", "", "calibrator kind: platt or isotonic (overrides optimizer.calibrator)")

	addHistoryFlags(fitWeightsCmd)

	addHistoryFlags(optimizeThresholdsCmd)
	optimizeThresholdsCmd.Flags().Float64("min-sensitivity", 0, "sensitivity floor (overrides optimizer.min_sensitivity)")
	optimizeThresholdsCmd.Flags().Bool("dry-run", false, "report the search result without writing thresholds")

	rootCmd.AddCommand(calibrateCmd, fitWeightsCmd, optimizeThresholdsCmd)
}
