package cli

import (
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrz1836/payflow/internal/auth"
	"github.com/mrz1836/payflow/internal/mfa"
	"github.com/mrz1836/payflow/internal/output"
	payerr "github.com/mrz1836/payflow/pkg/errors"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var (
	// loginEmail is the account email; prompted for when empty.
	loginEmail string
	// loginCodes are factor codes supplied up front, keyed by factor name.
	loginCodes map[string]string
)

// loginCmd exchanges credentials for a stored token.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to the ledger",
	Long: `Log in with your email and password. When the ledger asks for extra
factors (email, telegram or authenticator codes) you are prompted for each
one. The token is stored encrypted in the payflow home directory.`,
	Example: `  payflow login --email me@example.com
  payflow login --email me@example.com --code otp=123456`,
	RunE: runLogin,
}

// logoutCmd deletes the stored token.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var logoutCmd = &cobra.Command{
	Use:     "logout",
	Short:   "Forget the stored login",
	Long:    `Delete the stored login token. The encryption identity is kept for the next login.`,
	Example: `  payflow logout`,
	RunE:    runLogout,
}

// statusCmd reports the stored login.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the stored login",
	Long:  `Show which account is logged in and when the token expires.`,
	Example: `  payflow status
  payflow status -o json`,
	RunE: runStatus,
}

func runLogin(cmd *cobra.Command, _ []string) error {
	cc := GetCmdContext(cmd)
	w := cmd.OutOrStdout()

	email := loginEmail
	if email == "" {
		var err error
		if email, err = promptLineFn("Email: "); err != nil {
			return err
		}
	}

	password, err := readPassword("Password: ")
	if err != nil {
		return err
	}
	defer password.Destroy()

	ctx, cancel := contextWithTimeout(cmd, cc.Config.GetLedgerTimeout())
	result, err := cc.Auth.Login(ctx, email, password.String())
	cancel()
	if err != nil {
		return err
	}

	if challenge, ok := result.(*auth.MfaRequired); ok {
		if err := collectFactorCodes(cmd.ErrOrStderr(), challenge.Prompts, challenge.Message, loginCodes, cc.Auth.SetFactorCode); err != nil {
			cc.Auth.Dismiss()
			return err
		}
		ctx, cancel := contextWithTimeout(cmd, cc.Config.GetLedgerTimeout())
		result, err = cc.Auth.SubmitFactors(ctx)
		cancel()
		if err != nil {
			return err
		}
	}

	switch r := result.(type) {
	case *auth.LoggedIn:
		return displayLoggedIn(w, cc, r)
	case *auth.Rejected:
		return payerr.WithMessage(payerr.ErrAuthentication, r.Message)
	default:
		return payerr.ErrMFAFailed
	}
}

func displayLoggedIn(w io.Writer, cc *CommandContext, r *auth.LoggedIn) error {
	if cc.Formatter.IsJSON() {
		type loginJSON struct {
			Email        string     `json:"email"`
			ExpiresAt    *time.Time `json:"expires_at,omitempty"`
			RecoveryCode string     `json:"recovery_code,omitempty"`
		}
		return writeJSON(w, loginJSON{Email: r.Email, ExpiresAt: r.ExpiresAt, RecoveryCode: r.RecoveryCode})
	}

	output.Successf(w, "Logged in as %s", r.Email)
	if r.ExpiresAt != nil {
		out(w, "Token expires: %s\n", r.ExpiresAt.Local().Format(time.RFC1123))
	}
	if r.RecoveryCode != "" {
		displayRecoveryCode(w, r.RecoveryCode)
	}
	return nil
}

func runLogout(cmd *cobra.Command, _ []string) error {
	cc := GetCmdContext(cmd)
	if err := cc.Auth.Logout(); err != nil {
		return err
	}
	if cc.Formatter.IsJSON() {
		return output.FormatSuccess(cmd.OutOrStdout(), "logged out", output.FormatJSON)
	}
	output.Successf(cmd.OutOrStdout(), "Logged out")
	return nil
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cc := GetCmdContext(cmd)
	w := cmd.OutOrStdout()

	st, err := cc.Auth.Status()
	if err != nil {
		return err
	}

	if cc.Formatter.IsJSON() {
		type statusJSON struct {
			LoggedIn  bool       `json:"logged_in"`
			Email     string     `json:"email,omitempty"`
			Expired   bool       `json:"expired"`
			CreatedAt *time.Time `json:"created_at,omitempty"`
			ExpiresAt *time.Time `json:"expires_at,omitempty"`
		}
		res := statusJSON{LoggedIn: st.LoggedIn, Email: st.Email, Expired: st.Expired, ExpiresAt: st.ExpiresAt}
		if !st.CreatedAt.IsZero() {
			res.CreatedAt = &st.CreatedAt
		}
		return writeJSON(w, res)
	}

	switch {
	case st.Email == "":
		outln(w, "Not logged in")
	case st.Expired:
		out(w, "Login for %s has expired\n", st.Email)
	default:
		out(w, "Logged in as %s\n", st.Email)
		if st.ExpiresAt != nil {
			out(w, "Token expires: %s\n", st.ExpiresAt.Local().Format(time.RFC1123))
		}
	}
	return nil
}

// collectFactorCodes fills every prompted factor, from preset codes when
// given and from the terminal otherwise.
func collectFactorCodes(
	w io.Writer,
	prompts []mfa.Prompt,
	message string,
	preset map[string]string,
	set func(factor, code string) error,
) error {
	if message != "" {
		outln(w, message)
	}
	for _, p := range prompts {
		code, ok := preset[p.Factor]
		if !ok {
			if p.Enrollment != "" {
				if err := output.RenderQR(os.Stderr, p.Enrollment, output.DefaultQRConfig()); err != nil {
					return err
				}
				out(w, "Authenticator setup URI: %s\n", p.Enrollment)
			}
			outln(w, p.Hint)

			var err error
			if code, err = promptLineFn(p.Label + ": "); err != nil {
				return err
			}
		}
		if err := set(p.Factor, code); err != nil {
			return err
		}
	}
	return nil
}

// displayRecoveryCode shows a recovery code; the ledger never returns it again.
func displayRecoveryCode(w io.Writer, code string) {
	outln(w)
	output.Warnf(w, "Authenticator recovery code (shown once, store it safely):")
	out(w, "  %s\n", code)
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "account email (prompted when omitted)")
	loginCmd.Flags().StringToStringVar(&loginCodes, "code", nil, "factor code as factor=code, repeatable")

	for _, c := range []*cobra.Command{loginCmd, logoutCmd, statusCmd} {
		c.GroupID = groupSecurity
		rootCmd.AddCommand(c)
	}
}
