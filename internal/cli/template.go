package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// NewTemplateCmd создаёт группу команд для управления templates.
func NewTemplateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Manage workflow templates",
	}

	cmd.AddCommand(
		newTemplateListCmd(clientFn, outputFn),
		newTemplateCreateCmd(clientFn, outputFn),
		newTemplateShowCmd(clientFn, outputFn),
		newTemplateDeleteCmd(clientFn, outputFn),
		newTemplateActivateCmd(clientFn, outputFn),
		newTemplateDeactivateCmd(clientFn, outputFn),
		newTemplateAddStepCmd(clientFn, outputFn),
		newTemplateAddTransitionCmd(clientFn, outputFn),
		newTemplateValidateCmd(clientFn, outputFn),
	)

	return cmd
}

var templateHeaders = []string{"ID", "NAME", "ENTITY_TYPE", "ACTIVE", "CREATED"}

func templateRow(t TemplateResponse) []string {
	return []string{t.ID, t.Name, t.EntityType, strconv.FormatBool(t.IsActive), t.CreatedAt}
}

func newTemplateListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			templates, err := client.ListTemplates()
			if err != nil {
				return err
			}

			rows := make([][]string, len(templates))
			for i, t := range templates {
				rows[i] = templateRow(t)
			}

			out.Print(templateHeaders, rows, templates)
			return nil
		},
	}
}

func newTemplateCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var name, description, entityType string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new template",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			tpl, err := client.CreateTemplate(CreateTemplateRequest{
				Name:        name,
				Description: description,
				EntityType:  entityType,
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Template created: %s", tpl.ID))
			out.Print(templateHeaders, [][]string{templateRow(*tpl)}, tpl)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Template name (required)")
	cmd.Flags().StringVar(&description, "description", "", "Template description")
	cmd.Flags().StringVar(&entityType, "entity-type", "", "Managed entity type (required)")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("entity-type")

	return cmd
}

func newTemplateShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show template with steps and transitions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			tpl, err := client.GetTemplate(args[0])
			if err != nil {
				return err
			}

			out.Print(templateHeaders, [][]string{templateRow(*tpl)}, tpl)

			if len(tpl.Steps) > 0 && !out.jsonMode {
				out.Success("")
				rows := make([][]string, len(tpl.Steps))
				for i, s := range tpl.Steps {
					timeout := "-"
					if s.TimeoutHours != nil {
						timeout = strconv.Itoa(*s.TimeoutHours) + "h"
					}
					rows[i] = []string{
						strconv.Itoa(s.StepOrder), s.ID, s.Name, s.RequiredRole,
						strings.Join(s.Actions, ","), strconv.FormatBool(s.AutoAdvance), timeout,
					}
				}
				out.Table([]string{"ORDER", "ID", "NAME", "ROLE", "ACTIONS", "AUTO", "TIMEOUT"}, rows)
			}
			return nil
		},
	}
}

func newTemplateDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a template (refused when instances exist)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.DeleteTemplate(args[0]); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Template deleted: %s", args[0]))
			return nil
		},
	}
}

func newTemplateActivateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "activate ID",
		Short: "Activate a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			tpl, err := client.SetTemplateActive(args[0], true)
			if err != nil {
				return err
			}

			out.Success("Template activated")
			out.Print(templateHeaders, [][]string{templateRow(*tpl)}, tpl)
			return nil
		},
	}
}

func newTemplateDeactivateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate ID",
		Short: "Deactivate a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			tpl, err := client.SetTemplateActive(args[0], false)
			if err != nil {
				return err
			}

			out.Success("Template deactivated")
			out.Print(templateHeaders, [][]string{templateRow(*tpl)}, tpl)
			return nil
		},
	}
}

func newTemplateAddStepCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var name, role string
	var order, timeoutHours int
	var actions []string
	var autoAdvance bool

	cmd := &cobra.Command{
		Use:   "add-step TEMPLATE_ID",
		Short: "Add a step to a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			req := AddStepRequest{
				Name:         name,
				StepOrder:    order,
				RequiredRole: role,
				Actions:      actions,
				AutoAdvance:  autoAdvance,
			}
			if cmd.Flags().Changed("timeout-hours") {
				req.TimeoutHours = &timeoutHours
			}

			step, err := client.AddStep(args[0], req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Step created: %s", step.ID))
			out.Print(
				[]string{"ID", "ORDER", "NAME", "ROLE", "ACTIONS"},
				[][]string{{step.ID, strconv.Itoa(step.StepOrder), step.Name, step.RequiredRole, strings.Join(step.Actions, ",")}},
				step,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Step name (required)")
	cmd.Flags().IntVar(&order, "order", 0, "Step order, 1 is the initial step (required)")
	cmd.Flags().StringVar(&role, "role", "", "Required actor role (required)")
	cmd.Flags().StringSliceVar(&actions, "actions", nil, "Accepted actions, comma-separated (required)")
	cmd.Flags().BoolVar(&autoAdvance, "auto-advance", false, "Step advances automatically")
	cmd.Flags().IntVar(&timeoutHours, "timeout-hours", 0, "Step deadline in hours")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("order")
	cmd.MarkFlagRequired("role")
	cmd.MarkFlagRequired("actions")

	return cmd
}

func newTemplateAddTransitionCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var from, to, condition string
	var priority int

	cmd := &cobra.Command{
		Use:   "add-transition TEMPLATE_ID",
		Short: "Add a transition between steps",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			tr, err := client.AddTransition(args[0], AddTransitionRequest{
				FromStepID: from,
				ToStepID:   to,
				Condition:  condition,
				Priority:   priority,
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Transition created: %s", tr.ID))
			out.Print(
				[]string{"ID", "FROM", "TO", "CONDITION", "PRIORITY"},
				[][]string{{tr.ID, tr.FromStepID, tr.ToStepID, tr.Condition, strconv.Itoa(tr.Priority)}},
				tr,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "Source step ID (required)")
	cmd.Flags().StringVar(&to, "to", "", "Target step ID (required)")
	cmd.Flags().StringVar(&condition, "condition", "", "Triggering action (required)")
	cmd.Flags().IntVar(&priority, "priority", 0, "Transition priority, highest wins")
	cmd.MarkFlagRequired("from")
	cmd.MarkFlagRequired("to")
	cmd.MarkFlagRequired("condition")

	return cmd
}

func newTemplateValidateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "validate ID",
		Short: "Validate template structure",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			result, err := client.ValidateTemplate(args[0])
			if err != nil {
				return err
			}

			if result.IsValid {
				out.Success("Template is valid")
				if out.jsonMode {
					out.JSON(result)
				}
				return nil
			}

			rows := make([][]string, len(result.Issues))
			for i, issue := range result.Issues {
				ref := issue.StepID
				if ref == "" {
					ref = issue.TransitionID
				}
				rows[i] = []string{issue.Code, ref, issue.Message}
			}

			out.Print([]string{"CODE", "REF", "MESSAGE"}, rows, result)
			return fmt.Errorf("template has %d issue(s)", len(result.Issues))
		},
	}
}
