package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/mrz1836/payflow/internal/fee"
)

// Operation names, also the endpoint paths.
const (
	OpFeePresets  = "fee-presets"
	OpEstimateFee = "estimate-fee"
	OpSend        = "send"
	OpLogin       = "login"
)

// WaitSentinel is the literal the ledger returns while presets are being computed.
const WaitSentinel = "wait"

// PresetsReply is the answer to a fee-presets request.
type PresetsReply struct {
	// Wait is set when the ledger answered the "not ready" sentinel.
	Wait    bool
	Presets []fee.Preset
	Unit    string
	Message string
}

// EstimateRequest is the payload of an estimate-fee call.
type EstimateRequest struct {
	Currency string `json:"currency"`
	Amount   string `json:"amount"`
	Address  string `json:"address"`
	Fee      string `json:"fee"`
	FeeMode  string `json:"feeMode,omitempty"`
}

// SendRequest is the payload of a send call. Factors is only set on MFA resubmission.
type SendRequest struct {
	Currency string            `json:"currency"`
	Amount   string            `json:"amount"`
	Address  string            `json:"address"`
	Fee      string            `json:"fee"`
	FeeMode  string            `json:"feeMode,omitempty"`
	Comment  string            `json:"comment,omitempty"`
	Factors  map[string]string `json:"factors,omitempty"`
}

// LoginRequest is the payload of a login call.
type LoginRequest struct {
	Email    string            `json:"email"`
	Password string            `json:"password"` //nolint:gosec // request field, never logged
	Factors  map[string]string `json:"factors,omitempty"`
}

// Estimate is the spend breakdown computed by the ledger.
type Estimate struct {
	SpendingAmount   decimal.Decimal
	BlockchainFee    decimal.Decimal
	EnergyFee        decimal.Decimal
	BurnFee          decimal.Decimal
	BorrowFee        decimal.Decimal
	PlatformFee      decimal.Decimal
	Change           decimal.Decimal
	TransactionCount int
}

// EstimateResult is one of *EstimateOK, *InsufficientFunds or *Rejected.
type EstimateResult interface {
	isEstimateResult()
}

// EstimateOK carries a successful estimate.
type EstimateOK struct {
	Estimate Estimate
}

// InsufficientFunds reports the largest amount the wallet can send.
type InsufficientFunds struct {
	MaximumAllowedAmount decimal.Decimal
	Message              string
}

// Factor is one required MFA factor and its server-issued context blob.
type Factor struct {
	Name    string
	Context string
}

// Reply is the three-shape answer to send and login:
// one of *Accepted, *FactorsRequired or *Rejected.
type Reply interface {
	isReply()
}

// Accepted is a successful send or login.
type Accepted struct {
	TransactionID string
	Token         string
	RecoveryCode  string
}

// FactorsRequired asks for MFA codes before the action can proceed.
type FactorsRequired struct {
	Factors []Factor
	Message string
}

// Names returns the factor names in server order.
func (f *FactorsRequired) Names() []string {
	out := make([]string, 0, len(f.Factors))
	for _, factor := range f.Factors {
		out = append(out, factor.Name)
	}
	return out
}

// Rejected is a terminal rejection carrying the server message verbatim.
type Rejected struct {
	Message string
}

func (*EstimateOK) isEstimateResult()        {}
func (*InsufficientFunds) isEstimateResult() {}
func (*Rejected) isEstimateResult()          {}

func (*Accepted) isReply()        {}
func (*FactorsRequired) isReply() {}
func (*Rejected) isReply()        {}
