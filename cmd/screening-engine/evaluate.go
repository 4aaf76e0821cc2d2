// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/screening-engine/internal/evaluate"
	"github.com/pdiddy/screening-engine/internal/store"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Report screening performance against ground-truth labels",
	Long: `Evaluate joins the decisions in the ledger with the imported labels and
reports sensitivity (with a Clopper-Pearson interval), specificity, automation
rate, work saved over sampling and the Brier score of the final scores.
HUMAN_REVIEW counts as retained.`,
	RunE: runEvaluate,
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	runID, _ := cmd.Flags().GetString("run")

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	if runID == "" {
		runs, err := st.Runs(ctx)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			return fmt.Errorf("no runs in %s", st.Dir())
		}
		runID = runs[0].RunID
	}

	entries, err := st.Entries(ctx, store.QueryOptions{RunID: runID, MaxResults: 1 << 30})
	if err != nil {
		return err
	}
	labels, err := st.Labels(ctx)
	if err != nil {
		return err
	}
	outcomes := evaluate.Join(entries, labels)
	if len(outcomes) == 0 {
		return fmt.Errorf("run %s has no labeled records", runID)
	}

	report := evaluate.Evaluate(outcomes)
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}
	fmt.Fprintf(os.Stdout, "Run %s\n\n", runID)
	evaluate.Write(os.Stdout, report)
	return nil
}

func init() {
	evaluateCmd.Flags().String("run", "", "run id to evaluate (default: most recent run)")
	evaluateCmd.Flags().Bool("json", false, "output the report as JSON")

	rootCmd.AddCommand(evaluateCmd)
}
