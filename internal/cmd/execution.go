package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"esctl/internal/execution"
)

var executionCmd = &cobra.Command{
	Use:     "execution",
	Aliases: []string{"exec"},
	Short:   "Manage response plans applied to investigations",
}

var executionListCmd = &cobra.Command{
	Use:   "list <investigation-ref-id>",
	Short: "List response plans applied to an investigation",
	Args:  cobra.ExactArgs(1),
	RunE:  runExecutionList,
}

var executionApplyCmd = &cobra.Command{
	Use:   "apply <investigation-ref-id>",
	Short: "Apply a response plan template and drive task state",
	Long: `Apply a response plan template to an investigation. A template that is
already applied is left alone. With --phase and --task, the named task's
status and owner are updated; tasks already in the requested state are
reported unchanged.`,
	Args: cobra.ExactArgs(1),
	RunE: runExecutionApply,
}

var executionRemoveCmd = &cobra.Command{
	Use:   "remove <investigation-ref-id>",
	Short: "Remove an applied response plan from an investigation",
	Args:  cobra.ExactArgs(1),
	RunE:  runExecutionRemove,
}

var (
	execPlanName   string
	execPhaseName  string
	execTaskName   string
	execTaskStatus string
	execTaskOwner  string
)

func init() {
	for _, c := range []*cobra.Command{executionApplyCmd, executionRemoveCmd} {
		c.Flags().StringVar(&execPlanName, "plan", "", "response plan template name (required)")
		c.MarkFlagRequired("plan")
	}
	executionApplyCmd.Flags().StringVar(&execPhaseName, "phase", "", "phase name for a task update")
	executionApplyCmd.Flags().StringVar(&execTaskName, "task", "", "task name for a task update")
	executionApplyCmd.Flags().StringVar(&execTaskStatus, "status", "", "task status (pending, started, ended, reopened)")
	executionApplyCmd.Flags().StringVar(&execTaskOwner, "owner", "", "task owner")

	executionCmd.AddCommand(executionListCmd, executionApplyCmd, executionRemoveCmd)
	rootCmd.AddCommand(executionCmd)
}

func executionService(rt *runtime) *execution.Service {
	return execution.NewService(rt.client, rt.logger, execution.PathConfig{
		Namespace: rt.cfg.Namespace,
		User:      rt.cfg.User,
	})
}

func runExecutionList(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}

	plans, err := executionService(rt).ListApplied(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	if rt.out.JSONMode() {
		return rt.out.JSON(plans)
	}
	rows := make([][]string, 0, len(plans))
	for _, p := range plans {
		rows = append(rows, []string{p.ID, p.Name, p.SourceTemplateID, fmt.Sprintf("%d", len(p.Phases))})
	}
	rt.out.Table([]string{"ID", "NAME", "TEMPLATE", "PHASES"}, rows)
	return nil
}

func runExecutionApply(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}

	var tasks []execution.TaskUpdate
	if execPhaseName != "" || execTaskName != "" {
		tasks = append(tasks, execution.TaskUpdate{
			Phase:  execPhaseName,
			Task:   execTaskName,
			Status: execTaskStatus,
			Owner:  execTaskOwner,
		})
	}

	result, err := executionService(rt).Apply(cmd.Context(), args[0], execPlanName, tasks)
	if err != nil {
		return err
	}

	if rt.out.JSONMode() {
		return rt.out.JSON(result)
	}
	if result.PlanChanged {
		rt.out.Outcome(true, fmt.Sprintf("response plan %q applied to %s", execPlanName, args[0]))
	} else {
		rt.out.Outcome(false, fmt.Sprintf("response plan %q already applied", execPlanName))
	}
	for _, tr := range result.Tasks {
		rt.out.Outcome(tr.Changed, fmt.Sprintf("task %q in phase %q: status=%s owner=%s",
			tr.Task, tr.Phase, tr.Status, tr.Owner))
	}
	return nil
}

func runExecutionRemove(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}

	result, err := executionService(rt).Remove(cmd.Context(), args[0], execPlanName)
	if err != nil {
		return err
	}

	if rt.out.JSONMode() {
		return rt.out.JSON(result)
	}
	if result.Changed {
		rt.out.Outcome(true, fmt.Sprintf("response plan %q removed from %s", execPlanName, args[0]))
	} else {
		rt.out.Outcome(false, fmt.Sprintf("response plan %q not applied", execPlanName))
	}
	return nil
}
