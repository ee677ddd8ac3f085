package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewRunCmd создаёт группу команд для просмотра симуляций.
func NewRunCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Inspect simulation runs",
	}

	cmd.AddCommand(
		newRunShowCmd(clientFn, outputFn),
	)

	return cmd
}

func newRunShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var transcript bool

	cmd := &cobra.Command{
		Use:   "show ID",
		Short: "Show simulation details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			run, err := client.GetRun(args[0])
			if err != nil {
				return err
			}

			out.PrintKV(runDetailKV(run), run)

			if transcript && len(run.ConversationLog) > 0 {
				out.Success("")
				for _, round := range run.ConversationLog {
					out.Success(fmt.Sprintf("[%d] %s: %s", round.Number, round.Speaker, round.Message))
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&transcript, "transcript", false, "Print the negotiation transcript")

	return cmd
}

// runDetailKV раскладывает детали симуляции в пары ключ-значение.
func runDetailKV(r *RunDetailResponse) [][2]string {
	pairs := [][2]string{
		{"ID", r.ID},
		{"Queue", r.QueueID},
		{"Order", strconv.Itoa(r.ExecutionOrder)},
		{"Technique", r.TechniqueID},
		{"Tactic", r.TacticID},
		{"Personality", r.PersonalityID},
		{"Distance", r.Distance},
		{"Status", r.Status},
		{"Outcome", r.Outcome},
		{"Rounds", strconv.Itoa(r.TotalRounds)},
		{"Retries", fmt.Sprintf("%d/%d", r.RetryCount, r.MaxRetries)},
		{"Cost", formatMoney(r.ActualCost)},
	}

	if r.DealValue != "" {
		pairs = append(pairs, [2]string{"Deal value", r.DealValue})
	}
	for _, row := range r.ProductRows {
		pairs = append(pairs, [2]string{
			"  " + row.ProductName,
			fmt.Sprintf("%s x %d = %s (key %q)",
				formatMoney(row.Price), row.Volume, formatMoney(row.Subtotal), row.MatchedKey),
		})
	}
	if r.Evaluation != nil {
		pairs = append(pairs, [2]string{
			"Evaluation",
			fmt.Sprintf("%.1f (%s)", r.Evaluation.Score, r.Evaluation.Verdict),
		})
	}
	if r.Error != "" {
		pairs = append(pairs, [2]string{"Error", r.Error})
	}
	return pairs
}
