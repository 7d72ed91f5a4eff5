package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/cuemby/burrow/pkg/client"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func taskCommands() []*cobra.Command {
	submitCmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a task for admission",
		Long: `Submit a task to the scheduler.

The task is read from a YAML file with -f (use - for stdin) or built from
flags. A file may hold one task or a list of tasks.

Examples:
  # Submit a task from a file
  burrow submit -f task.yaml

  # Submit a task from flags
  burrow submit --id fix-42 --type fix --priority P1 --description "fix nil pointer"`,
		RunE: runSubmit,
	}
	addTaskFlags(submitCmd)

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Ask whether a task would be admitted now, without reserving anything",
		RunE:  runCheck,
	}
	addTaskFlags(checkCmd)

	startCmd := &cobra.Command{
		Use:   "start TASK_ID",
		Short: "Mark a scheduled task as running",
		Args:  cobra.ExactArgs(1),
		RunE:  runStart,
	}

	reportCmd := &cobra.Command{
		Use:   "report TASK_ID",
		Short: "Report the actual resource usage of a finished task",
		Args:  cobra.ExactArgs(1),
		RunE:  runReport,
	}
	reportCmd.Flags().Float64("memory", 0, "Peak memory in MB")
	reportCmd.Flags().Float64("cpu", 0, "CPU time in seconds")
	reportCmd.Flags().Float64("tokens", 0, "Tokens consumed")
	reportCmd.Flags().Duration("duration", 0, "Wall-clock duration (e.g. 3m20s)")

	cancelCmd := &cobra.Command{
		Use:     "cancel TASK_ID",
		Aliases: []string{"remove"},
		Short:   "Withdraw a scheduled task and release its reservation",
		Args:    cobra.ExactArgs(1),
		RunE:    runCancel,
	}

	nextCmd := &cobra.Command{
		Use:   "next",
		Short: "Show the highest ranked runnable task",
		RunE:  runNext,
	}

	return []*cobra.Command{submitCmd, checkCmd, startCmd, reportCmd, cancelCmd, nextCmd}
}

func addTaskFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("file", "f", "", "YAML task file (- for stdin)")
	cmd.Flags().String("id", "", "Task ID (generated when empty)")
	cmd.Flags().String("type", "", "Task type (implementation, security, fix, review, ...)")
	cmd.Flags().String("description", "", "Task description")
	cmd.Flags().String("priority", "P2", "Priority (P0-P3, critical, high, medium, low)")
	cmd.Flags().String("deadline", "", "Deadline (RFC 3339)")
	cmd.Flags().StringSlice("blocks", nil, "IDs of tasks this task blocks")
	cmd.Flags().Int("files", 0, "Estimated number of files touched")
}

// readTaskSpecs loads task specs from -f or from flags
func readTaskSpecs(cmd *cobra.Command) ([]*types.TaskSpec, error) {
	file, _ := cmd.Flags().GetString("file")
	if file != "" {
		return loadTaskFile(cmd.InOrStdin(), file)
	}

	spec := &types.TaskSpec{}
	spec.ID, _ = cmd.Flags().GetString("id")
	spec.Type, _ = cmd.Flags().GetString("type")
	spec.Description, _ = cmd.Flags().GetString("description")
	spec.Dependencies, _ = cmd.Flags().GetStringSlice("blocks")
	spec.EstimatedFiles, _ = cmd.Flags().GetInt("files")

	if raw, _ := cmd.Flags().GetString("priority"); raw != "" {
		p, err := types.ParsePriority(raw)
		if err != nil {
			return nil, err
		}
		spec.Priority = &p
	}
	if raw, _ := cmd.Flags().GetString("deadline"); raw != "" {
		d, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, fmt.Errorf("invalid deadline: %w", err)
		}
		spec.Deadline = &d
	}
	if spec.Type == "" && spec.Description == "" {
		return nil, errors.New("either --file or --type/--description is required")
	}
	return []*types.TaskSpec{spec}, nil
}

func loadTaskFile(stdin io.Reader, path string) ([]*types.TaskSpec, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	// A list of tasks or a single task
	var specs []*types.TaskSpec
	if err := yaml.Unmarshal(data, &specs); err == nil && len(specs) > 0 {
		return specs, nil
	}
	var spec types.TaskSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return []*types.TaskSpec{&spec}, nil
}

func runSubmit(cmd *cobra.Command, args []string) error {
	specs, err := readTaskSpecs(cmd)
	if err != nil {
		return err
	}
	c, err := newClient(cmd)
	if err != nil {
		return err
	}

	rejected := 0
	for _, spec := range specs {
		res, err := c.ScheduleTask(cmd.Context(), spec)
		if err != nil {
			return err
		}
		if !res.Scheduled {
			rejected++
		}
		if done, err := printStructured(cmd, res); done || err != nil {
			if err != nil {
				return err
			}
			continue
		}

		if res.Scheduled {
			fmt.Fprintf(cmd.OutOrStdout(), "✓ %s scheduled (priority %.2f, position %d)\n", res.TaskID, res.Priority, res.QueuePosition)
			fmt.Fprintf(cmd.OutOrStdout(), "  estimated: %s\n", formatUsage(res.EstimatedResources))
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "✗ %s rejected: %s", res.TaskID, res.Reason)
			if res.EstimatedWaitTime > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), " (retry in %s)", res.EstimatedWaitTime.Round(time.Second))
			}
			fmt.Fprintln(cmd.OutOrStdout())
		}
	}

	if rejected > 0 {
		return fmt.Errorf("%d of %d task(s) rejected", rejected, len(specs))
	}
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	specs, err := readTaskSpecs(cmd)
	if err != nil {
		return err
	}
	c, err := newClient(cmd)
	if err != nil {
		return err
	}

	for _, spec := range specs {
		check, err := c.CanAcceptTask(cmd.Context(), spec)
		if err != nil {
			return err
		}
		if done, err := printStructured(cmd, check); done || err != nil {
			if err != nil {
				return err
			}
			continue
		}

		if check.Feasible {
			fmt.Fprintf(cmd.OutOrStdout(), "✓ would be admitted (%s prediction)\n", check.PredictionMethod)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "✗ would be rejected: %s (retry in %s)\n", check.Reason, check.EstimatedWaitTime.Round(time.Second))
		}
		fmt.Fprintf(cmd.OutOrStdout(), "  estimated: %s\n", formatUsage(check.EstimatedResources))
	}
	return nil
}

func runStart(cmd *cobra.Command, args []string) error {
	c, err := newClient(cmd)
	if err != nil {
		return err
	}
	res, err := c.StartTask(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if done, err := printStructured(cmd, res); done || err != nil {
		return err
	}
	if !res.Started {
		return fmt.Errorf("task %s not started: %s", args[0], res.Reason)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ %s started at %s\n", args[0], res.StartedAt.Format(time.RFC3339))
	return nil
}

func runReport(cmd *cobra.Command, args []string) error {
	memory, _ := cmd.Flags().GetFloat64("memory")
	cpu, _ := cmd.Flags().GetFloat64("cpu")
	tokens, _ := cmd.Flags().GetFloat64("tokens")
	duration, _ := cmd.Flags().GetDuration("duration")

	c, err := newClient(cmd)
	if err != nil {
		return err
	}
	res, err := c.ReportOutcome(cmd.Context(), args[0], types.ResourceUsage{
		MemoryMB:   memory,
		CPUSeconds: cpu,
		Tokens:     tokens,
		DurationMs: float64(duration.Milliseconds()),
	})
	if err != nil {
		return err
	}
	if done, err := printStructured(cmd, res); done || err != nil {
		return err
	}
	if !res.Recorded {
		return fmt.Errorf("outcome for %s not recorded: %s", args[0], res.Reason)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ outcome for %s recorded\n", args[0])
	if res.Accuracy != nil {
		var parts []string
		for _, kind := range types.ResourceKinds {
			if a, ok := res.Accuracy.PerResource[kind]; ok {
				parts = append(parts, fmt.Sprintf("%s %.0f%%", kind, a*100))
			}
		}
		if len(parts) > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "  accuracy: %s\n", strings.Join(parts, ", "))
		}
	}
	return nil
}

func runCancel(cmd *cobra.Command, args []string) error {
	c, err := newClient(cmd)
	if err != nil {
		return err
	}
	res, err := c.RemoveTask(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if done, err := printStructured(cmd, res); done || err != nil {
		return err
	}
	if !res.Removed {
		return fmt.Errorf("task %s not removed: %s", args[0], res.Reason)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ %s removed\n", args[0])
	return nil
}

func runNext(cmd *cobra.Command, args []string) error {
	c, err := newClient(cmd)
	if err != nil {
		return err
	}
	next, err := c.GetNextTask(cmd.Context())
	if err != nil {
		return err
	}
	if done, err := printStructured(cmd, next); done || err != nil {
		return err
	}
	if next == nil {
		fmt.Fprintln(cmd.OutOrStdout(), "No runnable task")
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %s  priority %.2f\n", next.Task.ID, next.Task.Type, next.Task.Priority, next.Priority)
	fmt.Fprintf(cmd.OutOrStdout(), "  estimated: %s\n", formatUsage(next.EstimatedResources))
	return nil
}

func newClient(cmd *cobra.Command) (*client.Client, error) {
	addr, _ := cmd.Flags().GetString("addr")
	return client.NewClient(addr)
}
