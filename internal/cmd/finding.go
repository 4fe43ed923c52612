package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"esctl/internal/finding"
	"esctl/internal/render"
	"esctl/internal/timefilter"
)

var findingCmd = &cobra.Command{
	Use:   "finding",
	Short: "Manage security findings",
}

var findingGetCmd = &cobra.Command{
	Use:   "get <ref-id>",
	Short: "Fetch a finding by reference ID",
	Args:  cobra.ExactArgs(1),
	RunE:  runFindingGet,
}

var findingListCmd = &cobra.Command{
	Use:   "list",
	Short: "List findings",
	Args:  cobra.NoArgs,
	RunE:  runFindingList,
}

var findingCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a finding",
	Args:  cobra.NoArgs,
	RunE:  runFindingCreate,
}

var findingUpdateCmd = &cobra.Command{
	Use:   "update <ref-id>",
	Short: "Update a finding's owner, status, urgency, or disposition",
	Args:  cobra.ExactArgs(1),
	RunE:  runFindingUpdate,
}

var (
	findingTitle       string
	findingDescription string
	findingDomain      string
	findingEntity      string
	findingEntityType  string
	findingScore       int
	findingOwner       string
	findingStatus      string
	findingUrgency     string
	findingDisposition string
	findingFields      []string

	findingListTitle    string
	findingListEarliest string
	findingListLatest   string
	findingListLimit    int
)

func init() {
	findingListCmd.Flags().StringVar(&findingListTitle, "title", "", "filter by exact title")
	findingListCmd.Flags().StringVar(&findingListEarliest, "earliest", "", "window start (e.g. -24h, epoch, ISO 8601)")
	findingListCmd.Flags().StringVar(&findingListLatest, "latest", "", "window end (e.g. now)")
	findingListCmd.Flags().IntVar(&findingListLimit, "limit", 0, "maximum results")

	findingCreateCmd.Flags().StringVar(&findingTitle, "title", "", "finding title (required)")
	findingCreateCmd.Flags().StringVar(&findingDescription, "description", "", "finding description (required)")
	findingCreateCmd.Flags().StringVar(&findingDomain, "security-domain", "", "security domain (required)")
	findingCreateCmd.Flags().StringVar(&findingEntity, "entity", "", "affected entity (required)")
	findingCreateCmd.Flags().StringVar(&findingEntityType, "entity-type", "", "entity type (required)")
	findingCreateCmd.Flags().IntVar(&findingScore, "finding-score", 0, "risk score (required)")
	findingCreateCmd.Flags().StringVar(&findingOwner, "owner", "", "assigned owner")
	findingCreateCmd.Flags().StringVar(&findingStatus, "status", "", "status (unassigned, new, in_progress, pending, resolved, closed)")
	findingCreateCmd.Flags().StringVar(&findingUrgency, "urgency", "", "urgency (informational, low, medium, high, critical)")
	findingCreateCmd.Flags().StringVar(&findingDisposition, "disposition", "", "disposition (unknown, true_positive, ...)")
	findingCreateCmd.Flags().StringArrayVar(&findingFields, "field", nil, "extra field as name=value (repeatable)")

	findingUpdateCmd.Flags().StringVar(&findingOwner, "owner", "", "assigned owner")
	findingUpdateCmd.Flags().StringVar(&findingStatus, "status", "", "status")
	findingUpdateCmd.Flags().StringVar(&findingUrgency, "urgency", "", "urgency")
	findingUpdateCmd.Flags().StringVar(&findingDisposition, "disposition", "", "disposition")

	findingCmd.AddCommand(findingGetCmd, findingListCmd, findingCreateCmd, findingUpdateCmd)
	rootCmd.AddCommand(findingCmd)
}

func findingService(rt *runtime) *finding.Service {
	return finding.NewService(rt.client, rt.logger, finding.PathConfig{
		Namespace: rt.cfg.Namespace,
		User:      rt.cfg.User,
		App:       rt.cfg.App,
	})
}

func runFindingGet(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}

	f, err := findingService(rt).Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	if rt.out.JSONMode() {
		return rt.out.JSON(f)
	}
	rt.out.Title(f.Title)
	rt.out.Detail(findingRows(f))
	return nil
}

func runFindingList(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}

	findings, err := findingService(rt).List(cmd.Context(), finding.ListOptions{
		Title:  findingListTitle,
		Window: timefilter.Window{Earliest: findingListEarliest, Latest: findingListLatest},
		Limit:  findingListLimit,
	})
	if err != nil {
		return err
	}

	if rt.out.JSONMode() {
		return rt.out.JSON(findings)
	}
	rows := make([][]string, 0, len(findings))
	for _, f := range findings {
		rows = append(rows, []string{f.RefID, f.Title, f.Status, f.Urgency, f.Owner})
	}
	rt.out.Table([]string{"REF ID", "TITLE", "STATUS", "URGENCY", "OWNER"}, rows)
	return nil
}

func runFindingCreate(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}

	fields, err := parseFieldFlags(findingFields)
	if err != nil {
		return err
	}

	created, err := findingService(rt).Create(cmd.Context(), &finding.Finding{
		Title:          findingTitle,
		Description:    findingDescription,
		SecurityDomain: findingDomain,
		Entity:         findingEntity,
		EntityType:     findingEntityType,
		FindingScore:   findingScore,
		Owner:          findingOwner,
		Status:         findingStatus,
		Urgency:        findingUrgency,
		Disposition:    findingDisposition,
		Fields:         fields,
	})
	if err != nil {
		return err
	}

	if rt.out.JSONMode() {
		return rt.out.JSON(created)
	}
	rt.out.Outcome(true, fmt.Sprintf("finding %q created", created.Title))
	return nil
}

func runFindingUpdate(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}

	result, err := findingService(rt).Update(cmd.Context(), args[0], finding.UpdateParams{
		Owner:       findingOwner,
		Status:      findingStatus,
		Urgency:     findingUrgency,
		Disposition: findingDisposition,
	})
	if err != nil {
		return err
	}

	if rt.out.JSONMode() {
		return rt.out.JSON(result)
	}
	if result.Changed {
		rt.out.Outcome(true, fmt.Sprintf("finding %s updated", args[0]))
	} else {
		rt.out.Outcome(false, "finding already in desired state")
	}
	return nil
}

func findingRows(f *finding.Finding) []render.Row {
	return []render.Row{
		{Label: "Ref ID", Value: f.RefID},
		{Label: "Description", Value: f.Description},
		{Label: "Security Domain", Value: f.SecurityDomain},
		{Label: "Entity", Value: f.Entity},
		{Label: "Entity Type", Value: f.EntityType},
		{Label: "Score", Value: strconv.Itoa(f.FindingScore)},
		{Label: "Owner", Value: f.Owner},
		{Label: "Status", Value: f.Status},
		{Label: "Urgency", Value: f.Urgency},
		{Label: "Disposition", Value: f.Disposition},
	}
}

func parseFieldFlags(raw []string) ([]finding.CustomField, error) {
	var fields []finding.CustomField
	for _, entry := range raw {
		name, value, ok := strings.Cut(entry, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --field %q: expected name=value", entry)
		}
		fields = append(fields, finding.CustomField{Name: name, Value: value})
	}
	return fields, nil
}
