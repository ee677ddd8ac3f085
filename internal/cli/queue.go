package cli

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// NewQueueCmd создаёт группу команд для управления очередями симуляций.
func NewQueueCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Manage simulation queues",
	}

	cmd.AddCommand(
		newQueueCreateCmd(clientFn, outputFn),
		newQueueStatusCmd(clientFn, outputFn),
		newQueueLifecycleCmd(clientFn, outputFn, "start", "Start dispatching a queue"),
		newQueueLifecycleCmd(clientFn, outputFn, "pause", "Pause a queue after the current simulation"),
		newQueueLifecycleCmd(clientFn, outputFn, "resume", "Resume a paused queue"),
		newQueueLifecycleCmd(clientFn, outputFn, "stop", "Terminally stop a queue"),
		newQueueRestartFailedCmd(clientFn, outputFn),
		newQueueRunsCmd(clientFn, outputFn),
	)

	return cmd
}

func newQueueCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var techniques, tactics, personalities, distances []string
	var allPersonalities, allDistances bool
	var maxRetries int

	cmd := &cobra.Command{
		Use:   "create NEGOTIATION_ID",
		Short: "Create a simulation queue from axis selectors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			req := CreateQueueRequest{
				TechniqueIDs: techniques,
				TacticIDs:    tactics,
				Personalities: SelectorRequest{
					All: allPersonalities,
					IDs: personalities,
				},
				Distances: DistanceSelectorRequest{
					All:        allDistances,
					Categories: distances,
				},
				MaxRetries: maxRetries,
			}

			queue, err := client.CreateQueue(args[0], req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Queue created: %s (%d simulations, estimated cost %s)",
				queue.ID, queue.TotalSimulations, formatMoney(queue.EstimatedCost)))
			out.PrintKV(queueKV(*queue), queue)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&techniques, "technique", nil, "Technique ID (repeatable, required)")
	cmd.Flags().StringSliceVar(&tactics, "tactic", nil, "Tactic ID (repeatable, required)")
	cmd.Flags().StringSliceVar(&personalities, "personality", nil, "Personality ID (repeatable)")
	cmd.Flags().BoolVar(&allPersonalities, "all-personalities", false, "Use the whole personality catalog")
	cmd.Flags().StringSliceVar(&distances, "distance", nil, "Distance category: CLOSE, MEDIUM or FAR (repeatable)")
	cmd.Flags().BoolVar(&allDistances, "all-distances", false, "Use all distance categories")
	cmd.Flags().IntVar(&maxRetries, "max-retries", 0, "Retry limit per simulation (default from server)")
	cmd.MarkFlagRequired("technique")
	cmd.MarkFlagRequired("tactic")

	return cmd
}

func newQueueStatusCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "status ID",
		Short: "Show aggregated queue status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			status, err := client.GetQueueStatus(args[0])
			if err != nil {
				return err
			}

			out.PrintKV(queueStatusKV(status), status)
			return nil
		},
	}
}

func newQueueLifecycleCmd(clientFn func() *Client, outputFn func() *Output, action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			var status *QueueStatusResponse
			var err error
			switch action {
			case "start":
				status, err = client.StartQueue(args[0])
			case "pause":
				status, err = client.PauseQueue(args[0])
			case "resume":
				status, err = client.ResumeQueue(args[0])
			case "stop":
				status, err = client.StopQueue(args[0])
			}
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Queue %s: %s", args[0], status.Queue.Status))
			out.PrintKV(queueStatusKV(status), status)
			return nil
		},
	}
}

func newQueueRestartFailedCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "restart-failed ID",
		Short: "Reset failed simulations to pending and restart dispatch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			restart, err := client.RestartFailed(args[0])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Restarted %d simulations", restart.Restarted))
			out.PrintKV([][2]string{
				{"Restarted", strconv.FormatInt(restart.Restarted, 10)},
			}, restart)
			return nil
		},
	}
}

func newQueueRunsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "runs QUEUE_ID",
		Short: "List simulations of a queue in dispatch order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			runs, err := client.ListQueueRuns(args[0], status)
			if err != nil {
				return err
			}

			headers := []string{"ORDER", "ID", "STATUS", "OUTCOME", "ROUNDS", "DEAL", "RETRIES"}
			rows := make([][]string, len(runs))
			for i, r := range runs {
				rows[i] = []string{
					strconv.Itoa(r.ExecutionOrder),
					r.ID,
					r.Status,
					r.Outcome,
					strconv.Itoa(r.TotalRounds),
					r.DealValue,
					fmt.Sprintf("%d/%d", r.RetryCount, r.MaxRetries),
				}
			}

			out.Print(headers, rows, runs)
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status (PENDING, RUNNING, COMPLETED, FAILED, TIMEOUT, ABORTED, PAUSED)")

	return cmd
}

// queueKV раскладывает очередь в пары ключ-значение.
func queueKV(q QueueResponse) [][2]string {
	return [][2]string{
		{"ID", q.ID},
		{"Negotiation", q.NegotiationID},
		{"Status", q.Status},
		{"Simulations", strconv.Itoa(q.TotalSimulations)},
		{"Estimated cost", formatMoney(q.EstimatedCost)},
		{"Actual cost", formatMoney(q.ActualCost)},
		{"Created", q.CreatedAt},
	}
}

// queueStatusKV раскладывает агрегированный статус очереди в пары
// ключ-значение: прогресс, счётчики по статусам, ETA и стоимость.
func queueStatusKV(s *QueueStatusResponse) [][2]string {
	pairs := [][2]string{
		{"Queue", s.Queue.ID},
		{"Status", s.Queue.Status},
		{"Progress", fmt.Sprintf("%.1f%% (%d total)", s.Percent, s.Queue.TotalSimulations)},
		{"Counts", formatCounts(s.Counts)},
		{"ETA", (time.Duration(s.ETASeconds) * time.Second).String()},
		{"Estimated cost", formatMoney(s.Queue.EstimatedCost)},
		{"Actual cost", formatMoney(s.ActualCost)},
	}
	if s.CurrentRun != nil {
		pairs = append(pairs, [2]string{
			"Current run",
			fmt.Sprintf("#%d %s", s.CurrentRun.ExecutionOrder, s.CurrentRun.ID),
		})
	}
	return pairs
}

// formatCounts выводит счётчики по статусам в стабильном порядке.
func formatCounts(counts map[string]int) string {
	statuses := make([]string, 0, len(counts))
	for status := range counts {
		statuses = append(statuses, status)
	}
	sort.Strings(statuses)

	parts := make([]string, 0, len(statuses))
	for _, status := range statuses {
		parts = append(parts, fmt.Sprintf("%s=%d", status, counts[status]))
	}
	return strings.Join(parts, " ")
}
