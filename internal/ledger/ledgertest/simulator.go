package ledgertest

import (
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mrz1836/payflow/internal/ledger"
)

// SimOptions tunes the simulator's default responders.
type SimOptions struct {
	// WaitRounds is how many "wait" answers each currency gets before presets are ready.
	WaitRounds int
	// SendFactors are demanded on the first send of every request.
	SendFactors []string
	// LoginFactors are demanded on the first login.
	LoginFactors []string
	// OTPPrefix is the context blob issued for otp challenges.
	OTPPrefix string
	// Balance is the spendable balance per currency. Missing currencies get 10.
	Balance map[string]string
	// Token is issued on successful login.
	Token string
}

var defaultPresets = map[string]string{
	"BTC":  `{"feeSuggestion":{"minimum":"0.00005","average":"0.0001","maximum":"0.0002"},"feeUnit":"BTC"}`,
	"LTC":  `{"feeSuggestion":{"minimum":"0.0001","average":"0.0002","maximum":"0.0005"},"feeUnit":"LTC"}`,
	"DOGE": `{"feeSuggestion":{"average":"1","maximum":"2"},"feeUnit":"DOGE"}`,
	"TRX":  `{"feeSuggestion":{"minimum":"1","average":"3.5","maximum":"8"},"feeUnit":"TRX"}`,
	"USDT": `{"feeSuggestion":{"minimum":"1","average":"2.5","maximum":"6"},"feeUnit":"USDT"}`,
}

// NewSimulator creates a fake ledger with stateful default behavior.
//
//nolint:gocognit // responder closures share simulator state
func NewSimulator(opts SimOptions) *Server {
	s := NewEmpty()
	if opts.OTPPrefix == "" {
		opts.OTPPrefix = "PFLOWOTP01"
	}
	if opts.Token == "" {
		opts.Token = "sim-token"
	}

	var mu sync.Mutex
	presetCalls := make(map[string]int)

	s.Handle(ledger.OpFeePresets, func(_ int, call Call) (int, any) {
		cur := strings.ToUpper(call.String("currency"))
		mu.Lock()
		presetCalls[cur]++
		n := presetCalls[cur]
		mu.Unlock()

		if n <= opts.WaitRounds {
			return Wait()
		}
		body, ok := defaultPresets[cur]
		if !ok {
			return Message(http.StatusBadRequest, fmt.Sprintf("no fee market for %s", cur))
		}
		return http.StatusOK, []byte(body)
	})

	s.Handle(ledger.OpEstimateFee, func(_ int, call Call) (int, any) {
		amount, err := decimal.NewFromString(call.String("amount"))
		if err != nil || !amount.IsPositive() {
			return Message(http.StatusBadRequest, "Invalid amount")
		}
		feeValue, err := decimal.NewFromString(call.String("fee"))
		if err != nil {
			feeValue = decimal.Zero
		}

		balance := decimal.NewFromInt(10)
		if b, ok := opts.Balance[strings.ToUpper(call.String("currency"))]; ok {
			balance = decimal.RequireFromString(b)
		}

		mode := call.String("feeMode")
		feeInSent := mode == "" || mode == "borrow"
		spend := amount
		if feeInSent {
			spend = spend.Add(feeValue)
		}
		if spend.GreaterThan(balance) {
			maxAllowed := balance
			if feeInSent {
				maxAllowed = balance.Sub(feeValue)
			}
			if maxAllowed.IsNegative() {
				maxAllowed = decimal.Zero
			}
			return http.StatusOK, gin.H{
				"maximumAllowedAmount": maxAllowed.String(),
				"message":              "Insufficient funds",
			}
		}

		resp := gin.H{
			"spendingAmount":   amount.String(),
			"platformFee":      "0",
			"change":           "0",
			"transactionCount": 1,
		}
		switch mode {
		case "":
			resp["blockchainFee"] = feeValue.String()
		case "energy":
			resp["energyFee"] = feeValue.Truncate(0).String()
		case "burn":
			resp["burnFee"] = feeValue.String()
		default:
			resp["borrowFee"] = feeValue.String()
		}
		return http.StatusOK, resp
	})

	s.Handle(ledger.OpSend, func(_ int, call Call) (int, any) {
		if call.Token == "" {
			return Message(http.StatusUnauthorized, "Unauthorized")
		}
		if status, body, done := challenge(opts.SendFactors, opts.OTPPrefix, call); done {
			return status, body
		}
		return http.StatusOK, gin.H{"transactionId": uuid.NewString()}
	})

	s.Handle(ledger.OpLogin, func(_ int, call Call) (int, any) {
		if call.String("email") == "" || call.String("password") == "" {
			return Message(http.StatusBadRequest, "Invalid email or password")
		}
		if status, body, done := challenge(opts.LoginFactors, opts.OTPPrefix, call); done {
			return status, body
		}
		return http.StatusOK, gin.H{"token": opts.Token}
	})

	return s
}

// challenge demands factors when they are missing and checks the otp encoding
// when they are present.
func challenge(required []string, otpPrefix string, call Call) (int, any, bool) {
	if len(required) == 0 {
		return 0, nil, false
	}

	factors := call.Factors()
	if factors == nil {
		contexts := make(map[string]string, len(required))
		for _, f := range required {
			if f == "otp" {
				contexts[f] = otpPrefix
			} else {
				contexts[f] = "code sent"
			}
		}
		status, body := FactorsRequired(required, contexts, "Additional verification required")
		return status, body, true
	}

	for _, f := range required {
		code := factors[f]
		if code == "" {
			status, body := Message(http.StatusBadRequest, "Missing code for "+f)
			return status, body, true
		}
		if f == "otp" && len(code) <= 6 {
			status, body := Message(http.StatusBadRequest, "Invalid otp code")
			return status, body, true
		}
	}
	return 0, nil, false
}
