// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/screening-engine/internal/screen"
	"github.com/pdiddy/screening-engine/internal/store"
	"github.com/pdiddy/screening-engine/pkg/types"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the audit ledger and manage ground-truth labels",
	Long: `Audit reads the SQLite ledger written by screen. Use subcommands to list
runs, show audit entries, export decisions, or import ground-truth labels for
the offline fitting commands.`,
}

// --- runs subcommand ---

var auditRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List screening runs with decision counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		runs, err := st.Runs(context.Background())
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded.")
			return nil
		}
		for _, r := range runs {
			fmt.Printf("%s  %s  criteria=%s@%s seed=%d records=%d include=%d exclude=%d review=%d\n",
				r.RunID, r.StartedAt.Format("2006-01-02 15:04:05"), r.CriteriaID, r.CriteriaVersion, r.Seed,
				r.Records, r.Decisions[types.DecisionInclude], r.Decisions[types.DecisionExclude],
				r.Decisions[types.DecisionHumanReview])
		}
		return nil
	},
}

// --- show subcommand ---

var auditShowCmd = &cobra.Command{
	Use:   "show [record-id]",
	Short: "Show audit entries, optionally filtered",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		opts, err := queryOptsFromFlags(cmd, args)
		if err != nil {
			return err
		}
		entries, err := st.Entries(context.Background(), opts)
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			data, err := json.MarshalIndent(entries, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}
		if len(entries) == 0 {
			fmt.Println("No entries found.")
			return nil
		}
		for _, e := range entries {
			fmt.Printf("%s [%s] %s tier %d  score %.3f  confidence %.3f\n",
				e.RecordID, e.RunID, e.Decision, e.Tier, e.FinalScore, e.EnsembleConfidence)
			for _, v := range e.Rules.Hard {
				fmt.Printf("  hard  %s: %s\n", v.Rule, v.Description)
			}
			for _, v := range e.Rules.Soft {
				fmt.Printf("  soft  %s (-%.2f): %s\n", v.Rule, v.Penalty, v.Description)
			}
			for _, o := range e.Outputs {
				if o.Failed() {
					fmt.Printf("  model %s: failed (%s)\n", o.ModelID, o.Error)
					continue
				}
				fmt.Printf("  model %s: %s score %.2f confidence %.2f\n", o.ModelID, o.Decision, o.Score, o.Confidence)
			}
		}
		return nil
	},
}

// --- export subcommand ---

var auditExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export decisions to YAML and JSON files in the store directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		opts, err := queryOptsFromFlags(cmd, args)
		if err != nil {
			return err
		}
		ctx := context.Background()
		yamlPath, err := st.ExportYAML(ctx, opts)
		if err != nil {
			return fmt.Errorf("YAML export: %w", err)
		}
		jsonPath, err := st.ExportJSON(ctx, opts)
		if err != nil {
			return fmt.Errorf("JSON export: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Exported to %s and %s\n", yamlPath, jsonPath)
		return nil
	},
}

// --- label subcommand ---

var auditLabelCmd = &cobra.Command{
	Use:   "label <labels-file>",
	Short: "Import ground-truth labels (YAML or JSON list of record_id/include)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		labels, err := screen.LoadLabels(args[0])
		if err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		n, err := st.SetLabels(context.Background(), labels)
		if err != nil {
			return err
		}
		fmt.Printf("Imported %d label(s) into %s\n", n, st.Dir())
		return nil
	},
}

func queryOptsFromFlags(cmd *cobra.Command, args []string) (store.QueryOptions, error) {
	runID, _ := cmd.Flags().GetString("run")
	decision, _ := cmd.Flags().GetString("decision")
	limit, _ := cmd.Flags().GetInt("limit")

	opts := store.QueryOptions{
		RunID:      runID,
		Decision:   types.Decision(strings.ToUpper(decision)),
		MaxResults: limit,
	}
	if len(args) > 0 {
		opts.RecordID = args[0]
	}
	if cmd.Flags().Changed("tier") {
		t, _ := cmd.Flags().GetInt("tier")
		if t < int(types.TierHardRule) || t > int(types.TierHumanReview) {
			return opts, fmt.Errorf("tier must be between 0 and 3, got %d", t)
		}
		tier := types.Tier(t)
		opts.Tier = &tier
	}
	return opts, nil
}

func addQueryFlags(cmd *cobra.Command) {
	cmd.Flags().String("run", "", "filter by run id")
	cmd.Flags().String("decision", "", "filter by decision: include, exclude, human_review")
	cmd.Flags().Int("tier", 0, "filter by router tier (0-3)")
	cmd.Flags().Int("limit", 0, "maximum number of entries (0 = store default)")
}

func init() {
	addQueryFlags(auditShowCmd)
	auditShowCmd.Flags().Bool("json", false, "output entries as JSON")
	addQueryFlags(auditExportCmd)

	auditCmd.AddCommand(auditRunsCmd, auditShowCmd, auditExportCmd, auditLabelCmd)
	rootCmd.AddCommand(auditCmd)
}
