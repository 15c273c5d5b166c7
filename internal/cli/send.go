package cli

import (
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/mrz1836/payflow/internal/currency"
	"github.com/mrz1836/payflow/internal/estimate"
	"github.com/mrz1836/payflow/internal/fee"
	"github.com/mrz1836/payflow/internal/output"
	"github.com/mrz1836/payflow/internal/send"
	payerr "github.com/mrz1836/payflow/pkg/errors"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var (
	sendWallet   string
	sendCurrency string
	sendAmount   string
	sendTo       string
	sendFee      string
	sendMode     string
	sendComment  string
	sendBalance  string
	sendEnergy   string
	sendYes      bool
	sendUseMax   bool
	sendCodes    map[string]string
)

// sendCmd runs one transfer from fee presets to confirmation.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send funds from a wallet",
	Long: `Send funds from a ledger wallet to an external address.

The ledger's fee presets are fetched first. The spend estimate is shown as a
breakdown and must be confirmed before anything is sent. When the ledger
asks for extra factors you are prompted for each code.

--fee takes a preset name (minimum, average, maximum) or a custom fee value.
--mode picks how TRON-family transfers pay for resources: borrow, energy
or burn. Energy is only available when --energy is positive.`,
	Example: `  payflow send --wallet w-1 --currency BTC --amount 0.5 --to bc1q...
  payflow send --wallet w-2 --currency USDT --amount 25 --to T... --mode burn --fee maximum
  payflow send --wallet w-1 --currency BTC --amount 0.5 --to bc1q... --yes --code otp=123456`,
	RunE: runSend,
}

//nolint:gocognit,gocyclo // interactive flow with one branch per ledger outcome
func runSend(cmd *cobra.Command, _ []string) error {
	cc := GetCmdContext(cmd)
	w := cmd.OutOrStdout()
	ew := cmd.ErrOrStderr()
	ctx := cmd.Context()

	cur, err := cc.Currencies.Lookup(sendCurrency)
	if err != nil {
		return err
	}
	wallet, err := sendWalletFromFlags(cur)
	if err != nil {
		return err
	}
	if _, err := cc.Auth.Token(); err != nil {
		return err
	}

	sess := send.NewSession(&send.Options{
		Ledger:       cc.Ledger,
		Tokens:       cc.Auth,
		PollInterval: cc.Config.GetPollInterval(),
		Logger:       cc.Logger,
		Observer:     cc.Metrics,
		OnStateChange: func(from, to send.State) {
			cc.Logger.Debug("send: %s -> %s", from, to)
		},
	})
	if err := sess.Open(ctx, wallet); err != nil {
		return err
	}
	defer sess.Close()

	if !cc.Formatter.IsJSON() {
		output.Infof(ew, "Fetching fee presets for %s...", cur.Symbol)
	}
	presets, err := sess.AwaitPresets(ctx)
	if err != nil {
		return err
	}
	if presets.Unavailable && !cc.Formatter.IsJSON() {
		output.Warnf(ew, "Fee presets for %s are unavailable; a custom fee is required", cur.Symbol)
	}

	if err := applySendInputs(ew, sess, cur); err != nil {
		return err
	}

	est, err := negotiateEstimate(cmd, sess)
	if err != nil {
		return err
	}

	if !cc.Formatter.IsJSON() {
		displayBreakdown(w, est)
	}
	if !sendYes && !promptConfirmFn("Send this transaction?") {
		output.Infof(ew, "Send canceled")
		return nil
	}

	result, err := sess.Send(ctx)
	if err != nil {
		return err
	}
	if challenge, ok := result.(*send.MfaRequired); ok {
		if err := collectFactorCodes(ew, challenge.Prompts, challenge.Message, sendCodes, sess.SetFactorCode); err != nil {
			_ = sess.DismissChallenge()
			return err
		}
		if result, err = sess.SubmitFactors(ctx); err != nil {
			return err
		}
	}

	switch r := result.(type) {
	case *send.Sent:
		return displaySent(w, cc, est, r)
	case *send.Rejected:
		return payerr.WithMessage(payerr.ErrLedgerRejected, r.Message)
	default:
		return payerr.ErrMFAFailed
	}
}

// sendWalletFromFlags describes the source wallet from the command flags.
func sendWalletFromFlags(cur *currency.Currency) (send.Wallet, error) {
	wallet := send.Wallet{ID: strings.TrimSpace(sendWallet), Currency: cur}
	if wallet.ID == "" {
		return wallet, payerr.WithSuggestion(payerr.ErrInvalidInput, "--wallet is required")
	}
	if sendBalance != "" {
		balance, err := fee.ParseAmount(sendBalance)
		if err != nil {
			return wallet, payerr.WithDetails(err, map[string]string{"flag": "balance"})
		}
		wallet.Balance = decimal.NewNullDecimal(balance)
	}
	if sendEnergy != "" {
		energy, err := fee.ParseAmount(sendEnergy)
		if err != nil {
			return wallet, payerr.WithDetails(err, map[string]string{"flag": "energy"})
		}
		wallet.AvailableEnergy = energy
	}
	return wallet, nil
}

// applySendInputs copies the command flags into the session.
func applySendInputs(ew io.Writer, sess *send.Session, cur *currency.Currency) error {
	if err := sess.SetAmount(sendAmount); err != nil {
		return err
	}
	if err := sess.SetAddress(sendTo); err != nil {
		return err
	}
	if err := sess.SetComment(sendComment); err != nil {
		return err
	}

	if sendMode != "" {
		if cur.Family != currency.FamilyAccountResource {
			return payerr.WithDetails(payerr.ErrInvalidFee, map[string]string{
				"mode":     sendMode,
				"currency": cur.Symbol,
			})
		}
		requested := fee.Mode(strings.ToLower(sendMode))
		if !requested.Valid() {
			return payerr.WithDetails(payerr.ErrInvalidFee, map[string]string{"mode": sendMode})
		}
		mode, err := sess.SelectMode(requested)
		if err != nil {
			return err
		}
		if mode != requested {
			output.Warnf(ew, "No energy available; keeping %s mode", mode)
		}
	}

	switch name := fee.PresetName(strings.ToLower(sendFee)); name {
	case "":
		return nil
	case fee.PresetMinimum, fee.PresetAverage, fee.PresetMaximum:
		return sess.SelectPreset(name)
	default:
		return sess.SetCustomFee(sendFee)
	}
}

// negotiateEstimate requests an estimate, offering the maximum allowed amount
// once when the balance does not cover the request.
func negotiateEstimate(cmd *cobra.Command, sess *send.Session) (*estimate.SpendEstimate, error) {
	ew := cmd.ErrOrStderr()
	offered := false

	for {
		outcome, err := sess.Next(cmd.Context())
		if err != nil {
			return nil, err
		}

		switch o := outcome.(type) {
		case *estimate.SpendEstimate:
			return o, nil
		case *estimate.Rejected:
			return nil, payerr.WithMessage(payerr.ErrLedgerRejected, o.Message)
		case *estimate.InsufficientFunds:
			maxAmount := fee.Format(o.MaximumAllowedAmount)
			insufficient := payerr.WithDetails(payerr.ErrInsufficientFunds, map[string]string{
				"maximum_allowed": maxAmount,
			})
			if o.Message != "" {
				output.Warnf(ew, "%s", o.Message)
			}
			if offered || !o.MaximumAllowedAmount.IsPositive() {
				return nil, insufficient
			}
			offered = true
			if !sendUseMax && !promptConfirmFn("Send the maximum allowed amount "+maxAmount+" instead?") {
				return nil, insufficient
			}
			if _, err := sess.UseMaximum(); err != nil {
				return nil, err
			}
		default:
			return nil, payerr.ErrLedgerBadResponse
		}
	}
}

func displayBreakdown(w io.Writer, est *estimate.SpendEstimate) {
	table := output.NewTable("", "")
	table.SetNoHeader(true)
	table.SetAlign(output.AlignLeft, output.AlignRight)
	for _, line := range estimate.Breakdown(est) {
		table.AddRow(line.Label, line.Value)
	}
	out(w, "Sending to %s\n", est.Input.Address)
	_ = table.Render(w)
}

func displaySent(w io.Writer, cc *CommandContext, est *estimate.SpendEstimate, r *send.Sent) error {
	if cc.Formatter.IsJSON() {
		type lineJSON struct {
			Label string `json:"label"`
			Value string `json:"value"`
		}
		type sentJSON struct {
			Status        string     `json:"status"`
			TransactionID string     `json:"transaction_id,omitempty"`
			Currency      string     `json:"currency"`
			Address       string     `json:"address"`
			Total         string     `json:"total"`
			Breakdown     []lineJSON `json:"breakdown"`
			RecoveryCode  string     `json:"recovery_code,omitempty"`
		}
		res := sentJSON{
			Status:        send.OutcomeSent,
			TransactionID: r.TransactionID,
			Currency:      est.Input.Currency.Symbol,
			Address:       est.Input.Address,
			Total:         fee.Format(est.Total()),
			RecoveryCode:  r.RecoveryCode,
		}
		for _, line := range estimate.Breakdown(est) {
			res.Breakdown = append(res.Breakdown, lineJSON{Label: line.Label, Value: line.Value})
		}
		return writeJSON(w, res)
	}

	output.Successf(w, "Sent %s %s to %s", fee.Format(est.SpendingAmount), est.Input.Currency.Symbol, est.Input.Address)
	if r.TransactionID != "" {
		out(w, "Transaction: %s\n", r.TransactionID)
	}
	if r.RecoveryCode != "" {
		displayRecoveryCode(w, r.RecoveryCode)
	}
	return nil
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	f := sendCmd.Flags()
	f.StringVar(&sendWallet, "wallet", "", "source wallet ID (required)")
	f.StringVarP(&sendCurrency, "currency", "c", "", "currency symbol or name (required)")
	f.StringVar(&sendAmount, "amount", "", "amount to send (required)")
	f.StringVar(&sendTo, "to", "", "destination address (required)")
	f.StringVar(&sendFee, "fee", "", "fee preset name or custom fee value (default: ledger default preset)")
	f.StringVar(&sendMode, "mode", "", "resource mode for account-resource currencies: borrow, energy, burn")
	f.StringVar(&sendComment, "comment", "", "note stored with the transfer")
	f.StringVar(&sendBalance, "balance", "", "known spendable balance, checked against the estimate")
	f.StringVar(&sendEnergy, "energy", "", "energy available to the wallet")
	f.BoolVarP(&sendYes, "yes", "y", false, "send without the confirmation prompt")
	f.BoolVar(&sendUseMax, "use-max", false, "send the maximum allowed amount when the balance is short")
	f.StringToStringVar(&sendCodes, "code", nil, "factor code as factor=code, repeatable")

	for _, name := range []string{"wallet", "currency", "amount", "to"} {
		_ = sendCmd.MarkFlagRequired(name)
	}

	sendCmd.GroupID = groupTransfers
	rootCmd.AddCommand(sendCmd)
}
