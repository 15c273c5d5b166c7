package send

import "github.com/mrz1836/payflow/internal/mfa"

// Result is the outcome of Send or SubmitFactors:
// one of *Sent, *MfaRequired or *Rejected.
type Result interface {
	isResult()
}

// Sent reports a completed send. RecoveryCode is set only when the action
// enabled MFA, and is not available again.
type Sent struct {
	TransactionID string
	RecoveryCode  string
}

// MfaRequired reports that the ledger asked for factor codes.
type MfaRequired struct {
	Prompts []mfa.Prompt
	Message string
}

// Rejected is a terminal rejection; Message is the ledger's, verbatim.
type Rejected struct {
	Message string
}

func (*Sent) isResult()        {}
func (*MfaRequired) isResult() {}
func (*Rejected) isResult()    {}
