package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"invoice-engine/internal/app"
	"invoice-engine/internal/core"
)

// totalsInput is the file format accepted by `invoicectl totals`.
type totalsInput struct {
	GlobalTaxRate decimal.Decimal       `json:"global_tax_rate"`
	DiscountRate  decimal.Decimal       `json:"discount_rate"`
	Items         []app.LineItemRequest `json:"items"`
}

type totalsOutput struct {
	Items []lineOutput `json:"items"`
	core.Totals
}

type lineOutput struct {
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}

func newTotalsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "totals <file.json|->",
		Short: "Compute invoice totals offline from a JSON file",
		Long: `Reads {"items": [{"description", "quantity", "rate", "item_tax_rate"}], "global_tax_rate", "discount_rate"}
and prints line amounts and totals exactly as the engine would store them.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("opening %s: %w", args[0], err)
				}
				defer f.Close()
				r = f
			}

			var in totalsInput
			if err := json.NewDecoder(r).Decode(&in); err != nil {
				return fmt.Errorf("parsing totals input: %w", err)
			}

			items := lo.Map(in.Items, func(it app.LineItemRequest, _ int) core.LineItemInput {
				return core.LineItemInput{Description: it.Description, Quantity: it.Quantity, Rate: it.Rate, ItemTaxRate: it.ItemTaxRate}
			})
			totals, err := core.ComputeTotals(items, in.GlobalTaxRate, in.DiscountRate)
			if err != nil {
				return err
			}

			out := totalsOutput{Totals: totals}
			for _, it := range items {
				amount, err := core.LineAmount(it)
				if err != nil {
					return err
				}
				out.Items = append(out.Items, lineOutput{Description: it.Description, Amount: amount})
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
}
