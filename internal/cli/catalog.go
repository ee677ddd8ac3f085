package cli

import (
	"github.com/spf13/cobra"
)

// NewCatalogCmd создаёт группу команд для просмотра справочников.
func NewCatalogCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Browse technique, tactic and personality catalogs",
	}

	cmd.AddCommand(
		newCatalogItemsCmd(clientFn, outputFn, "techniques", "List persuasion techniques",
			func(c *Client) ([]CatalogItemResponse, error) { return c.ListTechniques() }),
		newCatalogItemsCmd(clientFn, outputFn, "tactics", "List negotiation tactics",
			func(c *Client) ([]CatalogItemResponse, error) { return c.ListTactics() }),
		newCatalogItemsCmd(clientFn, outputFn, "personalities", "List counterpart personalities",
			func(c *Client) ([]CatalogItemResponse, error) { return c.ListPersonalities() }),
		newCatalogDistancesCmd(clientFn, outputFn),
	)

	return cmd
}

func newCatalogItemsCmd(clientFn func() *Client, outputFn func() *Output, use, short string, fetch func(*Client) ([]CatalogItemResponse, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			items, err := fetch(client)
			if err != nil {
				return err
			}

			headers := []string{"ID", "NAME", "DESCRIPTION"}
			rows := make([][]string, len(items))
			for i, item := range items {
				rows[i] = []string{item.ID, item.Name, item.Description}
			}

			out.Print(headers, rows, items)
			return nil
		},
	}
}

func newCatalogDistancesCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "distances",
		Short: "List distance-to-agreement categories",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			distances, err := client.ListDistances()
			if err != nil {
				return err
			}

			rows := make([][]string, len(distances))
			for i, d := range distances {
				rows[i] = []string{d}
			}

			out.Print([]string{"DISTANCE"}, rows, distances)
			return nil
		},
	}
}
