package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"esctl/internal/investigationtype"
	"esctl/internal/render"
)

var investigationTypeCmd = &cobra.Command{
	Use:     "investigation-type",
	Aliases: []string{"invtype"},
	Short:   "Manage investigation types",
}

var investigationTypeGetCmd = &cobra.Command{
	Use:   "get <name>",
	Short: "Fetch an investigation type by name",
	Args:  cobra.ExactArgs(1),
	RunE:  runInvestigationTypeGet,
}

var investigationTypeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List investigation types",
	Args:  cobra.NoArgs,
	RunE:  runInvestigationTypeList,
}

var investigationTypeApplyCmd = &cobra.Command{
	Use:   "apply <name>",
	Short: "Create or update an investigation type",
	Long: `Create or update an investigation type. Response plan associations are
replaced when --response-plan-id is given; without the flag, existing
associations are kept.`,
	Args: cobra.ExactArgs(1),
	RunE: runInvestigationTypeApply,
}

var investigationTypeDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete an investigation type (not supported by the API)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd)
		if err != nil {
			return err
		}
		return investigationTypeService(rt).Delete(cmd.Context(), args[0])
	},
}

var (
	invTypeDescription string
	invTypePlanIDs     []string
	invTypeClearPlans  bool
)

func init() {
	investigationTypeApplyCmd.Flags().StringVar(&invTypeDescription, "description", "", "description")
	investigationTypeApplyCmd.Flags().StringSliceVar(&invTypePlanIDs, "response-plan-id", nil, "response plan template ID to associate (repeatable)")
	investigationTypeApplyCmd.Flags().BoolVar(&invTypeClearPlans, "clear-response-plans", false, "remove all response plan associations")

	investigationTypeCmd.AddCommand(investigationTypeGetCmd, investigationTypeListCmd,
		investigationTypeApplyCmd, investigationTypeDeleteCmd)
	rootCmd.AddCommand(investigationTypeCmd)
}

func investigationTypeService(rt *runtime) *investigationtype.Service {
	return investigationtype.NewService(rt.client, rt.logger, investigationtype.PathConfig{
		Namespace: rt.cfg.Namespace,
		User:      rt.cfg.User,
	})
}

func runInvestigationTypeGet(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}

	it, err := investigationTypeService(rt).Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	if rt.out.JSONMode() {
		return rt.out.JSON(it)
	}
	rt.out.Title(it.Name)
	rt.out.Detail([]render.Row{
		{Label: "Description", Value: it.Description},
		{Label: "Response Plans", Value: strings.Join(it.ResponsePlanIDs, ", ")},
	})
	return nil
}

func runInvestigationTypeList(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}

	types, err := investigationTypeService(rt).List(cmd.Context())
	if err != nil {
		return err
	}

	if rt.out.JSONMode() {
		return rt.out.JSON(types)
	}
	rows := make([][]string, 0, len(types))
	for _, it := range types {
		rows = append(rows, []string{it.Name, fmt.Sprintf("%d", len(it.ResponsePlanIDs)), it.Description})
	}
	rt.out.Table([]string{"NAME", "PLANS", "DESCRIPTION"}, rows)
	return nil
}

func runInvestigationTypeApply(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}

	desired := &investigationtype.InvestigationType{
		Name:        args[0],
		Description: invTypeDescription,
	}
	if invTypeClearPlans {
		desired.ResponsePlanIDs = []string{}
	} else if invTypePlanIDs != nil {
		desired.ResponsePlanIDs = invTypePlanIDs
	}

	result, err := investigationTypeService(rt).Apply(cmd.Context(), desired)
	if err != nil {
		return err
	}

	if rt.out.JSONMode() {
		return rt.out.JSON(result)
	}
	if result.Changed {
		rt.out.Outcome(true, fmt.Sprintf("investigation type %q applied", args[0]))
	} else {
		rt.out.Outcome(false, "investigation type already in desired state")
	}
	return nil
}
