package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"esctl/internal/notes"
)

var noteCmd = &cobra.Command{
	Use:   "note",
	Short: "Manage notes on findings, investigations, and response plan tasks",
}

var noteListCmd = &cobra.Command{
	Use:   "list",
	Short: "List notes on a target",
	Args:  cobra.NoArgs,
	RunE:  runNoteList,
}

var noteGetCmd = &cobra.Command{
	Use:   "get <note-id>",
	Short: "Fetch a note by ID",
	Args:  cobra.ExactArgs(1),
	RunE:  runNoteGet,
}

var noteCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Add a note to a target",
	Args:  cobra.NoArgs,
	RunE:  runNoteCreate,
}

var noteUpdateCmd = &cobra.Command{
	Use:   "update <note-id>",
	Short: "Rewrite a note's content",
	Args:  cobra.ExactArgs(1),
	RunE:  runNoteUpdate,
}

var noteDeleteCmd = &cobra.Command{
	Use:   "delete <note-id>",
	Short: "Delete a note",
	Args:  cobra.ExactArgs(1),
	RunE:  runNoteDelete,
}

var (
	noteFindingID       string
	noteInvestigationID string
	notePlanID          string
	notePhaseID         string
	noteTaskID          string
	noteContent         string
)

func init() {
	for _, c := range []*cobra.Command{noteListCmd, noteGetCmd, noteCreateCmd, noteUpdateCmd, noteDeleteCmd} {
		c.Flags().StringVar(&noteFindingID, "finding-id", "", "finding reference ID target")
		c.Flags().StringVar(&noteInvestigationID, "investigation-id", "", "investigation reference ID target")
		c.Flags().StringVar(&notePlanID, "response-plan-id", "", "applied response plan ID (task notes)")
		c.Flags().StringVar(&notePhaseID, "phase-id", "", "phase ID (task notes)")
		c.Flags().StringVar(&noteTaskID, "task-id", "", "task ID (task notes)")
	}
	noteCreateCmd.Flags().StringVar(&noteContent, "content", "", "note content (required)")
	noteUpdateCmd.Flags().StringVar(&noteContent, "content", "", "note content (required)")

	noteCmd.AddCommand(noteListCmd, noteGetCmd, noteCreateCmd, noteUpdateCmd, noteDeleteCmd)
	rootCmd.AddCommand(noteCmd)
}

func noteService(rt *runtime) *notes.Service {
	return notes.NewService(rt.client, rt.logger, notes.PathConfig{
		Namespace: rt.cfg.Namespace,
		User:      rt.cfg.User,
	})
}

// noteTarget builds the note target from the flag combination: a task
// target when task flags are set, a finding target when --finding-id is
// set, an investigation target otherwise.
func noteTarget() notes.Target {
	switch {
	case noteTaskID != "" || notePhaseID != "" || notePlanID != "":
		return notes.Target{
			Type:               notes.TargetResponsePlanTask,
			InvestigationRefID: noteInvestigationID,
			ResponsePlanID:     notePlanID,
			PhaseID:            notePhaseID,
			TaskID:             noteTaskID,
		}
	case noteFindingID != "":
		return notes.Target{
			Type:         notes.TargetFinding,
			FindingRefID: noteFindingID,
		}
	default:
		return notes.Target{
			Type:               notes.TargetInvestigation,
			InvestigationRefID: noteInvestigationID,
		}
	}
}

func runNoteList(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}

	list, err := noteService(rt).List(cmd.Context(), noteTarget())
	if err != nil {
		return err
	}

	if rt.out.JSONMode() {
		return rt.out.JSON(list)
	}
	rows := make([][]string, 0, len(list))
	for _, n := range list {
		rows = append(rows, []string{n.ID, n.Content})
	}
	rt.out.Table([]string{"ID", "CONTENT"}, rows)
	return nil
}

func runNoteGet(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}

	note, err := noteService(rt).Get(cmd.Context(), noteTarget(), args[0])
	if err != nil {
		return err
	}

	if rt.out.JSONMode() {
		return rt.out.JSON(note)
	}
	fmt.Fprintln(cmd.OutOrStdout(), note.Content)
	return nil
}

func runNoteCreate(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}

	result, err := noteService(rt).Create(cmd.Context(), noteTarget(), noteContent)
	if err != nil {
		return err
	}

	if rt.out.JSONMode() {
		return rt.out.JSON(result)
	}
	rt.out.Outcome(true, "note created")
	return nil
}

func runNoteUpdate(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}

	result, err := noteService(rt).Update(cmd.Context(), noteTarget(), args[0], noteContent)
	if err != nil {
		return err
	}

	if rt.out.JSONMode() {
		return rt.out.JSON(result)
	}
	if result.Changed {
		rt.out.Outcome(true, fmt.Sprintf("note %s updated", args[0]))
	} else {
		rt.out.Outcome(false, "note already has that content")
	}
	return nil
}

func runNoteDelete(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}

	if err := noteService(rt).Delete(cmd.Context(), noteTarget(), args[0]); err != nil {
		return err
	}

	if rt.out.JSONMode() {
		return rt.out.JSON(map[string]any{"deleted": args[0], "changed": true})
	}
	rt.out.Outcome(true, fmt.Sprintf("note %s deleted", args[0]))
	return nil
}
