package cli

import (
	"github.com/spf13/cobra"

	"github.com/mrz1836/payflow/internal/output"
)

// currenciesCmd lists the currency registry.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var currenciesCmd = &cobra.Command{
	Use:   "currencies",
	Short: "List supported currencies",
	Long: `List every currency the ledger can send, with its fee family.

utxo and account-resource currencies have ledger fee presets; fixed
currencies charge a constant fee and none currencies are free to send.`,
	Example: `  payflow currencies
  payflow currencies -o json`,
	RunE: runCurrencies,
}

func runCurrencies(cmd *cobra.Command, _ []string) error {
	cc := GetCmdContext(cmd)
	w := cmd.OutOrStdout()
	all := cc.Currencies.All()

	if cc.Formatter.IsJSON() {
		type currencyJSON struct {
			Symbol   string `json:"symbol"`
			Name     string `json:"name"`
			Family   string `json:"family"`
			Native   string `json:"native"`
			FixedFee string `json:"fixed_fee,omitempty"`
		}
		rows := make([]currencyJSON, 0, len(all))
		for _, c := range all {
			rows = append(rows, currencyJSON{
				Symbol:   c.Symbol,
				Name:     c.Name,
				Family:   string(c.Family),
				Native:   c.Native,
				FixedFee: c.FixedFee,
			})
		}
		return writeJSON(w, rows)
	}

	table := output.NewTable("SYMBOL", "NAME", "FAMILY", "FEE UNIT")
	for _, c := range all {
		unit := c.Native
		if c.FixedFee != "" {
			unit = c.FixedFee + " " + c.Native
		}
		table.AddRow(c.Symbol, c.Name, string(c.Family), unit)
	}
	return table.Render(w)
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	currenciesCmd.GroupID = groupTransfers
	rootCmd.AddCommand(currenciesCmd)
}
