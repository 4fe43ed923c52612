package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"esctl/internal/investigation"
	"esctl/internal/render"
	"esctl/internal/timefilter"
)

var investigationCmd = &cobra.Command{
	Use:     "investigation",
	Aliases: []string{"inv"},
	Short:   "Manage investigations",
}

var investigationGetCmd = &cobra.Command{
	Use:   "get <ref-id>",
	Short: "Fetch an investigation by reference ID",
	Args:  cobra.ExactArgs(1),
	RunE:  runInvestigationGet,
}

var investigationListCmd = &cobra.Command{
	Use:   "list",
	Short: "List investigations",
	Args:  cobra.NoArgs,
	RunE:  runInvestigationList,
}

var investigationCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an investigation",
	Args:  cobra.NoArgs,
	RunE:  runInvestigationCreate,
}

var investigationUpdateCmd = &cobra.Command{
	Use:   "update <ref-id>",
	Short: "Update an investigation and attach findings",
	Args:  cobra.ExactArgs(1),
	RunE:  runInvestigationUpdate,
}

var (
	invName        string
	invDescription string
	invStatus      string
	invDisposition string
	invOwner       string
	invUrgency     string
	invSensitivity string
	invFindingIDs  []string

	invListName     string
	invListEarliest string
	invListLatest   string
	invListLimit    int
)

func init() {
	investigationListCmd.Flags().StringVar(&invListName, "name", "", "filter by exact name")
	investigationListCmd.Flags().StringVar(&invListEarliest, "earliest", "", "window start (e.g. -24h)")
	investigationListCmd.Flags().StringVar(&invListLatest, "latest", "", "window end (e.g. now)")
	investigationListCmd.Flags().IntVar(&invListLimit, "limit", 0, "maximum results")

	for _, c := range []*cobra.Command{investigationCreateCmd, investigationUpdateCmd} {
		c.Flags().StringVar(&invDescription, "description", "", "description")
		c.Flags().StringVar(&invStatus, "status", "", "status (unassigned, new, in_progress, pending, resolved, closed)")
		c.Flags().StringVar(&invDisposition, "disposition", "", "disposition")
		c.Flags().StringVar(&invOwner, "owner", "", "assigned owner")
		c.Flags().StringVar(&invUrgency, "urgency", "", "urgency")
		c.Flags().StringVar(&invSensitivity, "sensitivity", "", "sensitivity (white, green, amber, red)")
		c.Flags().StringSliceVar(&invFindingIDs, "finding-id", nil, "finding reference ID to attach (repeatable)")
	}
	investigationCreateCmd.Flags().StringVar(&invName, "name", "", "investigation name (required)")

	investigationCmd.AddCommand(investigationGetCmd, investigationListCmd,
		investigationCreateCmd, investigationUpdateCmd)
	rootCmd.AddCommand(investigationCmd)
}

func investigationService(rt *runtime) *investigation.Service {
	return investigation.NewService(rt.client, rt.logger, investigation.PathConfig{
		Namespace: rt.cfg.Namespace,
		User:      rt.cfg.User,
	})
}

func runInvestigationGet(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}

	inv, err := investigationService(rt).Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	if rt.out.JSONMode() {
		return rt.out.JSON(inv)
	}
	rt.out.Title(inv.Name)
	rt.out.Detail(investigationRows(inv))
	return nil
}

func runInvestigationList(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}

	investigations, err := investigationService(rt).List(cmd.Context(), investigation.ListOptions{
		Name:   invListName,
		Window: timefilter.Window{Earliest: invListEarliest, Latest: invListLatest},
		Limit:  invListLimit,
	})
	if err != nil {
		return err
	}

	if rt.out.JSONMode() {
		return rt.out.JSON(investigations)
	}
	rows := make([][]string, 0, len(investigations))
	for _, inv := range investigations {
		rows = append(rows, []string{inv.RefID, inv.Name, inv.Status, inv.Urgency, inv.Owner})
	}
	rt.out.Table([]string{"REF ID", "NAME", "STATUS", "URGENCY", "OWNER"}, rows)
	return nil
}

func runInvestigationCreate(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}

	created, err := investigationService(rt).Create(cmd.Context(), &investigation.Investigation{
		Name:        invName,
		Description: invDescription,
		Status:      invStatus,
		Disposition: invDisposition,
		Owner:       invOwner,
		Urgency:     invUrgency,
		Sensitivity: invSensitivity,
		FindingIDs:  invFindingIDs,
	})
	if err != nil {
		return err
	}

	if rt.out.JSONMode() {
		return rt.out.JSON(created)
	}
	rt.out.Outcome(true, fmt.Sprintf("investigation %q created", created.Name))
	return nil
}

func runInvestigationUpdate(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}

	result, err := investigationService(rt).Update(cmd.Context(), args[0], investigation.UpdateParams{
		Description: invDescription,
		Status:      invStatus,
		Disposition: invDisposition,
		Owner:       invOwner,
		Urgency:     invUrgency,
		Sensitivity: invSensitivity,
		FindingIDs:  invFindingIDs,
	})
	if err != nil {
		return err
	}

	if rt.out.JSONMode() {
		return rt.out.JSON(result)
	}
	if result.Changed {
		rt.out.Outcome(true, fmt.Sprintf("investigation %s updated", args[0]))
	} else {
		rt.out.Outcome(false, "investigation already in desired state")
	}
	return nil
}

func investigationRows(inv *investigation.Investigation) []render.Row {
	return []render.Row{
		{Label: "Ref ID", Value: inv.RefID},
		{Label: "Description", Value: inv.Description},
		{Label: "Status", Value: inv.Status},
		{Label: "Disposition", Value: inv.Disposition},
		{Label: "Owner", Value: inv.Owner},
		{Label: "Urgency", Value: inv.Urgency},
		{Label: "Sensitivity", Value: inv.Sensitivity},
		{Label: "Findings", Value: strings.Join(inv.FindingIDs, ", ")},
	}
}
