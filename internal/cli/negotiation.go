package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewNegotiationCmd создаёт группу команд для управления переговорными кейсами.
func NewNegotiationCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "negotiation",
		Short: "Manage negotiation cases",
	}

	cmd.AddCommand(
		newNegotiationListCmd(clientFn, outputFn),
		newNegotiationCreateCmd(clientFn, outputFn),
		newNegotiationShowCmd(clientFn, outputFn),
		newNegotiationAddProductCmd(clientFn, outputFn),
		newNegotiationProductsCmd(clientFn, outputFn),
	)

	return cmd
}

func negotiationRow(n NegotiationResponse) []string {
	return []string{n.ID, n.Title, n.Status, strconv.Itoa(n.MaxRounds), n.CreatedAt}
}

var negotiationHeaders = []string{"ID", "TITLE", "STATUS", "MAX_ROUNDS", "CREATED"}

func newNegotiationListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List negotiation cases",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			negotiations, err := client.ListNegotiations()
			if err != nil {
				return err
			}

			rows := make([][]string, len(negotiations))
			for i, n := range negotiations {
				rows[i] = negotiationRow(n)
			}

			out.Print(negotiationHeaders, rows, negotiations)
			return nil
		},
	}
}

func newNegotiationCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var title string
	var maxRounds int

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new negotiation case",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			negotiation, err := client.CreateNegotiation(CreateNegotiationRequest{
				Title:     title,
				MaxRounds: maxRounds,
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Negotiation created: %s", negotiation.ID))
			out.Print(negotiationHeaders, [][]string{negotiationRow(*negotiation)}, negotiation)
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Negotiation title (required)")
	cmd.Flags().IntVar(&maxRounds, "max-rounds", 0, "Round limit per simulation (default from server)")
	cmd.MarkFlagRequired("title")

	return cmd
}

func newNegotiationShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show negotiation details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			negotiation, err := client.GetNegotiation(args[0])
			if err != nil {
				return err
			}

			out.Print(negotiationHeaders, [][]string{negotiationRow(*negotiation)}, negotiation)
			return nil
		},
	}
}

func newNegotiationAddProductCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var name string
	var targetPrice, minPrice, maxPrice float64
	var volume int

	cmd := &cobra.Command{
		Use:   "add-product NEGOTIATION_ID",
		Short: "Register a product for a negotiation case",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			product, err := client.CreateProduct(args[0], CreateProductRequest{
				Name:        name,
				TargetPrice: targetPrice,
				MinPrice:    minPrice,
				MaxPrice:    maxPrice,
				Volume:      volume,
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Product registered: %s", product.ID))
			out.Print(
				[]string{"ID", "NAME", "TARGET", "MIN", "MAX", "VOLUME"},
				[][]string{{
					product.ID,
					product.Name,
					formatMoney(product.TargetPrice),
					formatMoney(product.MinPrice),
					formatMoney(product.MaxPrice),
					strconv.Itoa(product.Volume),
				}},
				product,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Product name (required)")
	cmd.Flags().Float64Var(&targetPrice, "target-price", 0, "Target unit price (required)")
	cmd.Flags().Float64Var(&minPrice, "min-price", 0, "Minimum acceptable unit price")
	cmd.Flags().Float64Var(&maxPrice, "max-price", 0, "Maximum acceptable unit price")
	cmd.Flags().IntVar(&volume, "volume", 1, "Fixed purchase volume")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("target-price")

	return cmd
}

func newNegotiationProductsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "products NEGOTIATION_ID",
		Short: "List products of a negotiation case",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			products, err := client.ListProducts(args[0])
			if err != nil {
				return err
			}

			headers := []string{"ID", "NAME", "TARGET", "MIN", "MAX", "VOLUME"}
			rows := make([][]string, len(products))
			for i, p := range products {
				rows[i] = []string{
					p.ID,
					p.Name,
					formatMoney(p.TargetPrice),
					formatMoney(p.MinPrice),
					formatMoney(p.MaxPrice),
					strconv.Itoa(p.Volume),
				}
			}

			out.Print(headers, rows, products)
			return nil
		},
	}
}

// formatMoney форматирует денежное значение с двумя знаками.
func formatMoney(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
