// Package export writes capacity plans for staffing tools.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/kilianp07/crisismatch/core/workload"
)

// WriteJSON writes the full plan to w in JSON format.
func WriteJSON(w io.Writer, plan workload.CapacityPlan) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(plan)
}

// WriteCSV writes one row per slot. Slots inside a gap carry its severity.
func WriteCSV(w io.Writer, plan workload.CapacityPlan) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"slot_start", "slot_end", "forecast_demand", "projected_capacity", "responders", "coverage", "gap"}); err != nil {
		return err
	}
	for _, s := range plan.Slots {
		rec := []string{
			s.Start.Format(time.RFC3339),
			s.End.Format(time.RFC3339),
			strconv.FormatFloat(s.ForecastDemand, 'f', 2, 64),
			strconv.FormatFloat(s.ProjectedCapacity, 'f', 2, 64),
			strconv.Itoa(s.Responders),
			strconv.FormatFloat(s.Coverage, 'f', 3, 64),
			gapFor(plan.Gaps, s.Start),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func gapFor(gaps []workload.CapacityGap, at time.Time) string {
	for _, g := range gaps {
		if !at.Before(g.Start) && at.Before(g.End) {
			return g.Severity
		}
	}
	return ""
}

// Write dispatches on format, which is "json" or "csv".
func Write(w io.Writer, format string, plan workload.CapacityPlan) error {
	switch format {
	case "", "json":
		return WriteJSON(w, plan)
	case "csv":
		return WriteCSV(w, plan)
	}
	return fmt.Errorf("unknown export format %q", format)
}
