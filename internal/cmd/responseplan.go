package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"esctl/internal/render"
	"esctl/internal/responseplan"
)

var responsePlanCmd = &cobra.Command{
	Use:     "response-plan",
	Aliases: []string{"rp"},
	Short:   "Manage response plan templates",
}

var responsePlanListCmd = &cobra.Command{
	Use:   "list",
	Short: "List response plan templates",
	Args:  cobra.NoArgs,
	RunE:  runResponsePlanList,
}

var responsePlanGetCmd = &cobra.Command{
	Use:   "get <name>",
	Short: "Fetch a response plan template by name",
	Args:  cobra.ExactArgs(1),
	RunE:  runResponsePlanGet,
}

var responsePlanSyncCmd = &cobra.Command{
	Use:   "sync -f <file>",
	Short: "Reconcile a response plan template with a YAML definition",
	Long: `Reconcile a response plan template with a YAML definition. Phases and
tasks are matched by name so server-assigned IDs survive edits; with
--check the computed operations are printed without being applied.`,
	Args: cobra.NoArgs,
	RunE: runResponsePlanSync,
}

var responsePlanDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a response plan template",
	Args:  cobra.ExactArgs(1),
	RunE:  runResponsePlanDelete,
}

var (
	responsePlanFile  string
	responsePlanCheck bool
)

func init() {
	responsePlanSyncCmd.Flags().StringVarP(&responsePlanFile, "file", "f", "", "YAML plan definition (required)")
	responsePlanSyncCmd.Flags().BoolVar(&responsePlanCheck, "check", false, "show operations without applying them")
	responsePlanSyncCmd.MarkFlagRequired("file")

	responsePlanCmd.AddCommand(responsePlanListCmd, responsePlanGetCmd,
		responsePlanSyncCmd, responsePlanDeleteCmd)
	rootCmd.AddCommand(responsePlanCmd)
}

func responsePlanManager(rt *runtime) *responseplan.Manager {
	return responseplan.NewManager(rt.client, rt.logger, responseplan.PathConfig{
		Namespace: rt.cfg.Namespace,
		User:      rt.cfg.User,
	})
}

func runResponsePlanList(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}

	plans, err := responsePlanManager(rt).List(cmd.Context())
	if err != nil {
		return err
	}

	if rt.out.JSONMode() {
		return rt.out.JSON(plans)
	}
	rows := make([][]string, 0, len(plans))
	for _, p := range plans {
		rows = append(rows, []string{p.ID, p.Name, p.TemplateStatus, fmt.Sprintf("%d", len(p.Phases))})
	}
	rt.out.Table([]string{"ID", "NAME", "STATUS", "PHASES"}, rows)
	return nil
}

func runResponsePlanGet(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}

	plan, err := responsePlanManager(rt).GetByName(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	if rt.out.JSONMode() {
		return rt.out.JSON(plan)
	}
	rt.out.Title(plan.Name)
	rt.out.Detail([]render.Row{
		{Label: "ID", Value: plan.ID},
		{Label: "Description", Value: plan.Description},
		{Label: "Status", Value: plan.TemplateStatus},
	})
	for _, phase := range plan.Phases {
		rt.out.Title("phase: " + phase.Name)
		rows := make([][]string, 0, len(phase.Tasks))
		for _, task := range phase.Tasks {
			rows = append(rows, []string{task.Name, task.Owner, fmt.Sprintf("%d", len(task.Searches))})
		}
		rt.out.Table([]string{"TASK", "OWNER", "SEARCHES"}, rows)
	}
	return nil
}

func runResponsePlanSync(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}

	desired, err := responseplan.LoadFile(responsePlanFile)
	if err != nil {
		return err
	}

	result, err := responsePlanManager(rt).Sync(cmd.Context(), desired, responsePlanCheck)
	if err != nil {
		return err
	}

	if rt.out.JSONMode() {
		return rt.out.JSON(result)
	}
	if !result.Changed {
		rt.out.Outcome(false, fmt.Sprintf("response plan %q already in desired state", desired.Name))
		return nil
	}

	creates, updates, deletes := result.Plan.Counts()
	summary := fmt.Sprintf("%d create, %d update, %d delete", creates, updates, deletes)
	if responsePlanCheck {
		rt.out.Outcome(true, fmt.Sprintf("response plan %q would change (%s)", desired.Name, summary))
	} else {
		rt.out.Outcome(true, fmt.Sprintf("response plan %q synced (%s)", desired.Name, summary))
	}
	for _, op := range result.Plan.Ops {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", op)
	}
	return nil
}

func runResponsePlanDelete(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}

	result, err := responsePlanManager(rt).Delete(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	if rt.out.JSONMode() {
		return rt.out.JSON(result)
	}
	if result.Changed {
		rt.out.Outcome(true, fmt.Sprintf("response plan %q deleted", args[0]))
	} else {
		rt.out.Outcome(false, fmt.Sprintf("response plan %q already absent", args[0]))
	}
	return nil
}
