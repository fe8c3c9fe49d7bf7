package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewInstanceCmd создаёт группу команд для управления instances.
func NewInstanceCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "instance",
		Short: "Manage workflow instances",
	}

	cmd.AddCommand(
		newInstanceListCmd(clientFn, outputFn),
		newInstanceStartCmd(clientFn, outputFn),
		newInstanceShowCmd(clientFn, outputFn),
		newInstanceAdvanceCmd(clientFn, outputFn),
		newInstanceCancelCmd(clientFn, outputFn),
		newInstanceHistoryCmd(clientFn, outputFn),
	)

	return cmd
}

var instanceHeaders = []string{"ID", "ENTITY", "STATUS", "STEP", "VERSION", "STARTED"}

func instanceRow(i InstanceResponse) []string {
	return []string{
		i.ID,
		i.EntityType + "/" + i.EntityID,
		i.Status,
		i.CurrentStepID,
		strconv.Itoa(i.Version),
		i.StartedAt,
	}
}

func newInstanceListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var opts ListInstancesOpts

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List instances",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			instances, err := client.ListInstances(opts)
			if err != nil {
				return err
			}

			rows := make([][]string, len(instances))
			for i, inst := range instances {
				rows[i] = instanceRow(inst)
			}

			out.Print(instanceHeaders, rows, instances)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.TemplateID, "template", "", "Filter by template ID")
	cmd.Flags().StringVar(&opts.EntityType, "entity-type", "", "Filter by entity type")
	cmd.Flags().StringVar(&opts.EntityID, "entity-id", "", "Filter by entity ID")
	cmd.Flags().StringVar(&opts.Status, "status", "", "Filter by status")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "Max results")

	return cmd
}

func newInstanceStartCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var templateID, entityType, entityID, initiatedBy string

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a new instance",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			inst, err := client.StartInstance(StartInstanceRequest{
				TemplateID:  templateID,
				EntityType:  entityType,
				EntityID:    entityID,
				InitiatedBy: initiatedBy,
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Instance started: %s", inst.ID))
			out.Print(instanceHeaders, [][]string{instanceRow(*inst)}, inst)
			return nil
		},
	}

	cmd.Flags().StringVar(&templateID, "template", "", "Template ID (required)")
	cmd.Flags().StringVar(&entityType, "entity-type", "", "Entity type (required)")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "Entity ID (required)")
	cmd.Flags().StringVar(&initiatedBy, "initiated-by", "", "Initiating actor ID (required)")
	cmd.MarkFlagRequired("template")
	cmd.MarkFlagRequired("entity-type")
	cmd.MarkFlagRequired("entity-id")
	cmd.MarkFlagRequired("initiated-by")

	return cmd
}

func newInstanceShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show instance details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			inst, err := client.GetInstance(args[0])
			if err != nil {
				return err
			}

			out.Print(instanceHeaders, [][]string{instanceRow(*inst)}, inst)
			return nil
		},
	}
}

func newInstanceAdvanceCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var actorID, actorRole, action, comments string

	cmd := &cobra.Command{
		Use:   "advance ID",
		Short: "Apply an action to an instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			inst, err := client.AdvanceInstance(args[0], AdvanceRequest{
				ActorID:   actorID,
				ActorRole: actorRole,
				Action:    action,
				Comments:  comments,
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Instance advanced: status=%s version=%d", inst.Status, inst.Version))
			out.Print(instanceHeaders, [][]string{instanceRow(*inst)}, inst)
			return nil
		},
	}

	cmd.Flags().StringVar(&actorID, "actor", "", "Actor ID (required)")
	cmd.Flags().StringVar(&actorRole, "role", "", "Actor role (required)")
	cmd.Flags().StringVar(&action, "action", "", "Action label (required)")
	cmd.Flags().StringVar(&comments, "comments", "", "Optional comments")
	cmd.MarkFlagRequired("actor")
	cmd.MarkFlagRequired("role")
	cmd.MarkFlagRequired("action")

	return cmd
}

func newInstanceCancelCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var actorID, actorRole, comments string

	cmd := &cobra.Command{
		Use:   "cancel ID",
		Short: "Cancel an instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			inst, err := client.CancelInstance(args[0], CancelRequest{
				ActorID:   actorID,
				ActorRole: actorRole,
				Comments:  comments,
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Instance cancelled: %s", inst.ID))
			out.Print(instanceHeaders, [][]string{instanceRow(*inst)}, inst)
			return nil
		},
	}

	cmd.Flags().StringVar(&actorID, "actor", "", "Actor ID (required)")
	cmd.Flags().StringVar(&actorRole, "role", "", "Actor role")
	cmd.Flags().StringVar(&comments, "comments", "", "Optional comments")
	cmd.MarkFlagRequired("actor")

	return cmd
}

func newInstanceHistoryCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "history ID",
		Short: "Show instance execution history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			executions, err := client.InstanceHistory(args[0])
			if err != nil {
				return err
			}

			headers := []string{"CREATED", "STEP", "ACTOR", "ROLE", "ACTION", "COMMENTS"}
			rows := make([][]string, len(executions))
			for i, e := range executions {
				rows[i] = []string{e.CreatedAt, e.StepID, e.ActorID, e.ActorRole, e.Action, e.Comments}
			}

			out.Print(headers, rows, executions)
			return nil
		},
	}
}
