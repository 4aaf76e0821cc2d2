// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/screening-engine/internal/screen"
	"github.com/pdiddy/screening-engine/internal/store"
	"github.com/pdiddy/screening-engine/pkg/types"
)

func setDefaults() {
	viper.SetDefault("http.timeout", 90*time.Second)
	viper.SetDefault("http.user_agent", "screening-engine/"+version)
	viper.SetDefault("orchestrator.seed", 42)
	viper.SetDefault("orchestrator.call_timeout", 60*time.Second)
	viper.SetDefault("orchestrator.max_in_flight", 8)
	viper.SetDefault("orchestrator.cache_bytes", 64<<20)
	viper.SetDefault("artifacts.thresholds_path", "artifacts/thresholds.json")
	viper.SetDefault("artifacts.weights_path", "artifacts/weights.json")
	viper.SetDefault("artifacts.calibrators_path", "artifacts/calibrators.json")
	viper.SetDefault("store.dir", "screening")
	viper.SetDefault("optimizer.min_sensitivity", 0.95)
	viper.SetDefault("optimizer.grid_step", 0.05)
	viper.SetDefault("optimizer.weight_floor", 0.01)
	viper.SetDefault("optimizer.calibrator", "platt")
	viper.SetDefault("workers", 4)
}

// loadConfig unmarshals the merged viper configuration.
func loadConfig() (types.PipelineConfig, error) {
	var cfg types.PipelineConfig
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("reading configuration: %w", err)
	}
	return cfg, nil
}

// openStore opens the audit ledger named by the configuration.
func openStore(cfg types.PipelineConfig) (*store.Store, error) {
	return store.Open(cfg.Store)
}

// loadHistory returns labeled history from --history when given, otherwise
// from the ledger (restricted to --run when set).
func loadHistory(ctx context.Context, cmd *cobra.Command, cfg types.PipelineConfig) ([]types.LabeledOutputs, error) {
	if path, _ := cmd.Flags().GetString("history"); path != "" {
		return screen.LoadHistory(path)
	}
	runID, _ := cmd.Flags().GetString("run")

	st, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	history, err := st.History(ctx, runID)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, fmt.Errorf("no labeled history in %s; import labels with 'audit label'", st.Dir())
	}
	return history, nil
}

// addHistoryFlags registers the flags read by loadHistory.
func addHistoryFlags(cmd *cobra.Command) {
	cmd.Flags().String("history", "", "YAML or JSON file of labeled model outputs (default: read the ledger)")
	cmd.Flags().String("run", "", "restrict ledger history to one run id")
}
