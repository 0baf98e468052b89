package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/crisismatch/app"
	"github.com/kilianp07/crisismatch/config"
	"github.com/kilianp07/crisismatch/core/model"
	"github.com/kilianp07/crisismatch/pkg/export"
)

var (
	requestPath string
	allOnline   bool
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Run one match request from a JSON file against the configured roster",
	RunE:  runMatch,
}

func init() {
	matchCmd.Flags().StringVarP(&requestPath, "request", "r", "", "match request JSON file")
	matchCmd.Flags().BoolVar(&allOnline, "online", true, "treat every known responder as online")
	_ = matchCmd.MarkFlagRequired("request")
	rootCmd.AddCommand(matchCmd)
}

func runMatch(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(requestPath)
	if err != nil {
		return err
	}
	var req model.MatchRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("parse request: %w", err)
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	opts := []app.Option{app.Offline()}
	if allOnline {
		opts = append(opts, app.AllOnline())
	}
	svc, err := app.New(cmd.Context(), cfg, opts...)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	out, err := svc.Engine.FindMatch(cmd.Context(), req)
	if err != nil {
		return err
	}
	return printJSON(cmd, out)
}

var (
	planStart string
	planHours int
	planGran  int
	planFmt   string
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Print a staffing capacity plan",
	RunE:  runPlan,
}

func init() {
	planCmd.Flags().StringVar(&planStart, "start", "", "plan start (RFC3339), defaults to the current hour")
	planCmd.Flags().IntVar(&planHours, "hours", 24, "plan length in hours")
	planCmd.Flags().IntVar(&planGran, "granularity", 60, "slot length in minutes")
	planCmd.Flags().StringVar(&planFmt, "format", "json", "output format: json or csv")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	start := time.Now().UTC().Truncate(time.Hour)
	if planStart != "" {
		t, err := time.Parse(time.RFC3339, planStart)
		if err != nil {
			return fmt.Errorf("start: %w", err)
		}
		start = t
	}
	if planHours <= 0 || planGran <= 0 {
		return fmt.Errorf("hours and granularity must be positive")
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	svc, err := app.New(cmd.Context(), cfg, app.Offline(), app.AllOnline())
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	plan, err := svc.Assessor.GenerateCapacityPlan(cmd.Context(), start,
		start.Add(time.Duration(planHours)*time.Hour), time.Duration(planGran)*time.Minute)
	if err != nil {
		return err
	}
	return export.Write(cmd.OutOrStdout(), planFmt, plan)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
