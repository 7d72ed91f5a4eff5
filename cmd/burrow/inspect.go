package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/cuemby/burrow/pkg/health"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func inspectCommands() []*cobra.Command {
	scheduleCmd := &cobra.Command{
		Use:   "schedule",
		Short: "Show the queue in rank order and the running tasks",
		RunE:  runSchedule,
	}

	capacityCmd := &cobra.Command{
		Use:   "capacity",
		Short: "Show live reservations against the configured limits",
		RunE:  runCapacity,
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show lifetime scheduler counters",
		RunE:  runStats,
	}

	accuracyCmd := &cobra.Command{
		Use:   "accuracy",
		Short: "Show prediction accuracy per resource",
		RunE:  runAccuracy,
	}

	retrainCmd := &cobra.Command{
		Use:   "retrain",
		Short: "Batch retrain every model from the outcome log",
		RunE:  runRetrain,
	}
	retrainCmd.Flags().Int("epochs", 10, "Training epochs")

	waitCmd := &cobra.Command{
		Use:   "wait",
		Short: "Wait until the server reports ready",
		RunE:  runWait,
	}
	waitCmd.Flags().Duration("timeout", 30*time.Second, "Maximum time to wait")
	waitCmd.Flags().Duration("interval", 500*time.Millisecond, "Polling interval")

	return []*cobra.Command{scheduleCmd, capacityCmd, statsCmd, accuracyCmd, retrainCmd, waitCmd}
}

func runSchedule(cmd *cobra.Command, args []string) error {
	c, err := newClient(cmd)
	if err != nil {
		return err
	}
	sched, err := c.GetSchedule(cmd.Context())
	if err != nil {
		return err
	}
	if done, err := printStructured(cmd, sched); done || err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Queued (%d):\n", len(sched.Queued))
	for _, q := range sched.Queued {
		blocked := ""
		if q.Blocked {
			blocked = "  [blocked]"
		}
		fmt.Fprintf(out, "  %3d  %-24s %-15s %s  %6.2f  waiting %s%s\n",
			q.Position, q.Task.ID, q.Task.Type, q.Task.Priority, q.Score,
			time.Since(q.EnqueuedAt).Round(time.Second), blocked)
	}
	fmt.Fprintf(out, "Running (%d):\n", len(sched.Running))
	for _, r := range sched.Running {
		fmt.Fprintf(out, "       %-24s %-15s %s  since %s\n",
			r.Task.ID, r.Task.Type, r.Task.Priority, r.StartedAt.Format(time.RFC3339))
	}
	return nil
}

func runCapacity(cmd *cobra.Command, args []string) error {
	c, err := newClient(cmd)
	if err != nil {
		return err
	}
	capacity, err := c.GetSystemCapacity(cmd.Context())
	if err != nil {
		return err
	}
	if done, err := printStructured(cmd, capacity); done || err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Memory:  %.0f / %.0f MB reserved (%.0f MB free)\n", capacity.ReservedMemoryMB, capacity.MaxMemoryMB, capacity.AvailableMemoryMB)
	fmt.Fprintf(out, "Slots:   %d / %d in use (%d free)\n", capacity.CurrentTasks, capacity.MaxConcurrentTasks, capacity.AvailableSlots)
	fmt.Fprintf(out, "Tokens:  %.0f reserved\n", capacity.ReservedTokens)
	fmt.Fprintf(out, "  hour:  %.0f used, %.0f remaining\n", capacity.HourlyTokensUsed, capacity.HourlyTokensRemaining)
	fmt.Fprintf(out, "  day:   %.0f used, %.0f remaining\n", capacity.DailyTokensUsed, capacity.DailyTokensRemaining)
	fmt.Fprintf(out, "Healthy: %t\n", capacity.Healthy)
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	c, err := newClient(cmd)
	if err != nil {
		return err
	}
	stats, err := c.GetStats(cmd.Context())
	if err != nil {
		return err
	}
	if done, err := printStructured(cmd, stats); done || err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Submitted: %d  Admitted: %d  Rejected: %d\n", stats.Submitted, stats.Admitted, stats.Rejected)
	fmt.Fprintf(out, "Started: %d  Completed: %d  Removed: %d  Expired: %d\n", stats.Started, stats.Completed, stats.Removed, stats.Expired)
	fmt.Fprintf(out, "Queue depth: %d  Average wait: %s\n", stats.QueueDepth, stats.AverageWait.Round(time.Second))
	fmt.Fprintf(out, "Prediction: %s  Uptime: %s\n", methodLabel(stats.MLActive), stats.Uptime.Round(time.Second))

	if len(stats.RejectionsByReason) > 0 {
		reasons := make([]string, 0, len(stats.RejectionsByReason))
		for r := range stats.RejectionsByReason {
			reasons = append(reasons, string(r))
		}
		sort.Strings(reasons)
		fmt.Fprintln(out, "Rejections:")
		for _, r := range reasons {
			fmt.Fprintf(out, "  %-22s %d\n", r, stats.RejectionsByReason[types.RejectionReason(r)])
		}
	}
	return nil
}

func runAccuracy(cmd *cobra.Command, args []string) error {
	c, err := newClient(cmd)
	if err != nil {
		return err
	}
	acc, err := c.GetAccuracyMetrics(cmd.Context())
	if err != nil {
		return err
	}
	if done, err := printStructured(cmd, acc); done || err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Prediction: %s  Outcomes: %d  Training records: %d\n", methodLabel(acc.MLActive), acc.TotalOutcomes, acc.TrainingRecords)
	for _, kind := range types.ResourceKinds {
		fmt.Fprintf(out, "  %-9s %5.1f%%  (window %d, model samples %d)\n",
			kind, acc.RollingAccuracy[kind]*100, acc.WindowSamples[kind], acc.ModelSamples[kind])
	}
	return nil
}

func runRetrain(cmd *cobra.Command, args []string) error {
	epochs, _ := cmd.Flags().GetInt("epochs")

	c, err := newClient(cmd)
	if err != nil {
		return err
	}
	report, err := c.RetrainModels(cmd.Context(), epochs)
	if err != nil {
		return err
	}
	if done, err := printStructured(cmd, report); done || err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Retrained %d epochs in %s\n", report.Epochs, report.Duration.Round(time.Millisecond))
	for _, kind := range types.ResourceKinds {
		r, ok := report.Resources[kind]
		if !ok {
			continue
		}
		fmt.Fprintf(out, "  %-9s samples %-6d regressor MAE %-10.2f tree MAE %-10.2f better: %s\n",
			kind, r.Samples, r.RegressorMAE, r.TreeMAE, r.Better)
	}
	return nil
}

func runWait(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	interval, _ := cmd.Flags().GetDuration("interval")

	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	checker := health.NewEndpointChecker(strings.TrimSuffix(addr, "/") + "/ready").WithTimeout(interval * 4)

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last health.Result
	for {
		last = checker.Check(ctx)
		if last.Healthy {
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Burrow is ready")
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("server not ready after %s: %s", timeout, last.Message)
		case <-ticker.C:
		}
	}
}

func methodLabel(mlActive bool) string {
	if mlActive {
		return string(types.MethodML)
	}
	return string(types.MethodHeuristic)
}

func formatUsage(u types.ResourceUsage) string {
	return fmt.Sprintf("%.0f MB, %.1f cpu-s, %.0f tokens, %s",
		u.MemoryMB, u.CPUSeconds, u.Tokens, (time.Duration(u.DurationMs) * time.Millisecond).Round(time.Second))
}

// printStructured writes v as JSON or YAML when --output asks for it and
// reports whether it did
func printStructured(cmd *cobra.Command, v any) (bool, error) {
	format, _ := cmd.Flags().GetString("output")
	switch format {
	case "", "text":
		return false, nil
	case "json":
		return true, writeJSON(cmd.OutOrStdout(), v)
	case "yaml":
		return true, writeYAML(cmd.OutOrStdout(), v)
	default:
		return true, fmt.Errorf("unknown output format %q", format)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeYAML goes through JSON so field names match the API
func writeYAML(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(generic)
}
