package cli

import (
	"github.com/spf13/cobra"

	"github.com/mrz1836/payflow/internal/fee"
	"github.com/mrz1836/payflow/internal/output"
	"github.com/mrz1836/payflow/internal/preset"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var presetsCurrency string

// presetsCmd shows the ledger's fee presets for a currency.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "Show fee presets for a currency",
	Long: `Ask the ledger for its fee suggestions. While the ledger is still computing
them the request is repeated on the configured poll interval until presets
arrive or the command is interrupted.`,
	Example: `  payflow presets --currency BTC
  payflow presets --currency TRX -o json`,
	RunE: runPresets,
}

func runPresets(cmd *cobra.Command, _ []string) error {
	cc := GetCmdContext(cmd)

	cur, err := cc.Currencies.Lookup(presetsCurrency)
	if err != nil {
		return err
	}
	token, err := cc.Auth.Token()
	if err != nil {
		return err
	}

	fetcher := preset.NewFetcher(&preset.Options{
		Source:   cc.Ledger,
		Interval: cc.Config.GetPollInterval(),
		Logger:   cc.Logger,
		Observer: cc.Metrics,
	})
	set, err := fetcher.Fetch(cmd.Context(), token, cur)
	if err != nil {
		return err
	}

	return displayPresets(cmd, cc, cur.Symbol, set)
}

func displayPresets(cmd *cobra.Command, cc *CommandContext, symbol string, set *fee.PresetSet) error {
	w := cmd.OutOrStdout()

	if cc.Formatter.IsJSON() {
		type presetJSON struct {
			Name    string `json:"name"`
			Value   string `json:"value,omitempty"`
			Default bool   `json:"default"`
		}
		type presetsJSON struct {
			Currency    string       `json:"currency"`
			Unit        string       `json:"unit"`
			CustomOnly  bool         `json:"custom_only"`
			Unavailable bool         `json:"unavailable"`
			Presets     []presetJSON `json:"presets"`
		}
		res := presetsJSON{
			Currency:    symbol,
			Unit:        set.Unit,
			CustomOnly:  set.CustomOnly,
			Unavailable: set.Unavailable,
		}
		for _, p := range set.Presets {
			entry := presetJSON{Name: string(p.Name), Default: p.Name == set.Default}
			if p.Name != fee.PresetCustom {
				entry.Value = fee.Format(p.Value)
			}
			res.Presets = append(res.Presets, entry)
		}
		return writeJSON(w, res)
	}

	if set.Unavailable {
		output.Warnf(w, "Fee presets for %s are unavailable; enter a custom fee", symbol)
	}
	table := output.NewTable("PRESET", "FEE", "")
	table.SetAlign(output.AlignLeft, output.AlignRight, output.AlignLeft)
	for _, p := range set.Presets {
		value := "-"
		if p.Name != fee.PresetCustom {
			value = fee.Format(p.Value) + " " + set.Unit
		}
		marker := ""
		if p.Name == set.Default {
			marker = "(default)"
		}
		table.AddRow(string(p.Name), value, marker)
	}
	return table.Render(w)
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	presetsCmd.Flags().StringVarP(&presetsCurrency, "currency", "c", "", "currency symbol or name (required)")
	_ = presetsCmd.MarkFlagRequired("currency")

	presetsCmd.GroupID = groupTransfers
	rootCmd.AddCommand(presetsCmd)
}
