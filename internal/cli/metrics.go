package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

// NewMetricsCmd создаёт группу команд аналитики шаблонов.
func NewMetricsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Template analytics",
	}

	cmd.AddCommand(
		newMetricsShowCmd(clientFn, outputFn),
		newMetricsBottlenecksCmd(clientFn, outputFn),
	)

	return cmd
}

func newMetricsShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var from, to string

	cmd := &cobra.Command{
		Use:   "show TEMPLATE_ID",
		Short: "Show completion metrics for a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			metrics, err := client.TemplateMetrics(args[0], from, to)
			if err != nil {
				return err
			}

			out.Print(
				[]string{"TOTAL", "COMPLETION_RATE", "AVG_COMPLETION"},
				[][]string{{
					strconv.Itoa(metrics.TotalInstances),
					fmt.Sprintf("%.1f%%", metrics.CompletionRate*100),
					time.Duration(metrics.AvgCompletionTime).String(),
				}},
				metrics,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "Period start (RFC 3339, default: 30 days ago)")
	cmd.Flags().StringVar(&to, "to", "", "Period end (RFC 3339, default: now)")

	return cmd
}

func newMetricsBottlenecksCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "bottlenecks TEMPLATE_ID",
		Short: "Show slow steps of a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			report, err := client.TemplateBottlenecks(args[0])
			if err != nil {
				return err
			}

			if len(report.SlowSteps) == 0 {
				out.Success("No bottlenecks detected")
				if out.jsonMode {
					out.JSON(report)
				}
				return nil
			}

			rows := make([][]string, len(report.SlowSteps))
			for i, s := range report.SlowSteps {
				rows[i] = []string{
					s.StepID,
					time.Duration(s.AvgDwellTime).String(),
					strconv.Itoa(s.Visits),
				}
			}

			out.Success(fmt.Sprintf("Median dwell: %s", time.Duration(report.MedianDwell)))
			out.Print([]string{"STEP", "AVG_DWELL", "VISITS"}, rows, report)
			return nil
		},
	}
}
