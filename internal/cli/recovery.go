package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewRecoveryCmd создаёт группу команд для восстановления после краха.
func NewRecoveryCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recovery",
		Short: "Inspect and recover orphaned simulations",
	}

	cmd.AddCommand(
		newRecoveryFindCmd(clientFn, outputFn),
		newRecoveryRecoverCmd(clientFn, outputFn),
	)

	return cmd
}

func newRecoveryFindCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "find NEGOTIATION_ID",
		Short: "Report queue checkpoints and orphaned running simulations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			report, err := client.FindRecovery(args[0])
			if err != nil {
				return err
			}

			headers := []string{"QUEUE", "STATUS", "TOTAL", "ORPHANED"}
			rows := make([][]string, len(report.Checkpoints))
			for i, cp := range report.Checkpoints {
				rows[i] = []string{
					cp.Queue.ID,
					cp.Queue.Status,
					strconv.Itoa(cp.Queue.TotalSimulations),
					strconv.Itoa(len(cp.OrphanedRuns)),
				}
			}

			out.Print(headers, rows, report)

			if len(report.OrphanedIDs) > 0 {
				out.Success(fmt.Sprintf("%d orphaned simulations, recover with:", len(report.OrphanedIDs)))
				for _, id := range report.OrphanedIDs {
					out.Success("  --run-id " + id)
				}
			}
			return nil
		},
	}
}

func newRecoveryRecoverCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var runIDs []string

	cmd := &cobra.Command{
		Use:   "recover",
		Short: "Reset orphaned simulations to pending",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			recovered, err := client.RecoverOrphaned(runIDs)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Recovered %d simulations", recovered.Recovered))
			out.PrintKV([][2]string{
				{"Recovered", strconv.Itoa(recovered.Recovered)},
			}, recovered)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&runIDs, "run-id", nil, "Orphaned run ID (repeatable, required)")
	cmd.MarkFlagRequired("run-id")

	return cmd
}
