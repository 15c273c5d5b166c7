// Package mfa implements the challenge/response state machine shared by
// login and send confirmation.
package mfa

import (
	"context"
	"strings"
	"sync"

	"github.com/mrz1836/payflow/internal/ledger"
	payerr "github.com/mrz1836/payflow/pkg/errors"
)

// Action is the operation a challenge is scoped to.
type Action string

// Action contexts.
const (
	ActionLogin Action = "login"
	ActionSend  Action = "send"
)

// State is the controller state.
type State int

// Controller states.
const (
	StateIdle State = iota
	StateChallenged
	StateCollecting
	StateSubmitting
	StateResolved
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateChallenged:
		return "challenged"
	case StateCollecting:
		return "collecting"
	case StateSubmitting:
		return "submitting"
	case StateResolved:
		return "resolved"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Challenge outcomes reported to the Observer.
const (
	OutcomeChallenged = "challenged"
	OutcomeResolved   = "resolved"
	OutcomeFailed     = "failed"
	OutcomeDismissed  = "dismissed"
)

// Observer counts challenge outcomes.
type Observer interface {
	ObserveChallenge(action, outcome string)
}

// LogWriter provides logging operations.
type LogWriter interface {
	Debug(format string, args ...any)
	Error(format string, args ...any)
}

// Submitter re-issues the wrapped operation with factor codes attached.
type Submitter func(ctx context.Context, factors map[string]string) (ledger.Reply, error)

// Controller drives one challenge at a time for a single action.
// Codes live only in memory and are dropped on Dismiss.
type Controller struct {
	mu       sync.Mutex
	action   Action
	state    State
	factors  []ledger.Factor
	codes    map[string]string
	message  string
	recovery string
	observer Observer
	logger   LogWriter
}

// NewController creates an idle controller for action.
func NewController(action Action, logger LogWriter, observer Observer) *Controller {
	if logger == nil {
		logger = nopLogger{}
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &Controller{action: action, logger: logger, observer: observer}
}

// Action returns the action the controller is scoped to.
func (c *Controller) Action() Action {
	return c.action
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Message returns the challenge message, or the failure message once Failed.
func (c *Controller) Message() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.message
}

// Factors returns the required factors in server order.
func (c *Controller) Factors() []ledger.Factor {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ledger.Factor, len(c.factors))
	copy(out, c.factors)
	return out
}

// Challenge moves an idle controller to Challenged.
func (c *Controller) Challenge(fr *ledger.FactorsRequired) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateIdle {
		return payerr.WithDetails(payerr.ErrInvalidState, map[string]string{"mfa_state": c.state.String()})
	}
	if fr == nil || len(fr.Factors) == 0 {
		return payerr.Wrap(payerr.ErrLedgerBadResponse, "factors required without factors")
	}

	c.factors = append([]ledger.Factor(nil), fr.Factors...)
	c.codes = make(map[string]string, len(fr.Factors))
	c.message = fr.Message
	c.state = StateChallenged
	c.logger.Debug("mfa %s: challenged for %s", c.action, strings.Join(fr.Names(), ","))
	c.observer.ObserveChallenge(string(c.action), OutcomeChallenged)
	return nil
}

// SetCode records the code for a factor.
func (c *Controller) SetCode(factor, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateChallenged && c.state != StateCollecting {
		return payerr.WithDetails(payerr.ErrInvalidState, map[string]string{"mfa_state": c.state.String()})
	}
	if !c.requires(factor) {
		return payerr.WithDetails(payerr.ErrUnknownFactor, map[string]string{"factor": factor})
	}
	c.codes[factor] = strings.TrimSpace(code)
	c.state = StateCollecting
	return nil
}

// Ready reports whether every required factor has a non-empty code.
func (c *Controller) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready()
}

// Missing returns the factors still lacking a code.
func (c *Controller) Missing() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []string
	for _, f := range c.factors {
		if c.codes[f.Name] == "" {
			out = append(out, f.Name)
		}
	}
	return out
}

// Submit re-issues the wrapped operation with the encoded codes.
//
// The returned reply is *ledger.Accepted on success (the controller is
// Resolved) or *ledger.Rejected otherwise (the controller is Failed). A second
// factors-required answer is not chained: it is reported as a rejection.
// A transport error returns the controller to Collecting with codes kept.
func (c *Controller) Submit(ctx context.Context, submit Submitter) (ledger.Reply, error) {
	c.mu.Lock()
	if c.state != StateCollecting && c.state != StateChallenged {
		state := c.state
		c.mu.Unlock()
		return nil, payerr.WithDetails(payerr.ErrInvalidState, map[string]string{"mfa_state": state.String()})
	}
	if !c.ready() {
		c.mu.Unlock()
		return nil, payerr.ErrFactorCodeMissing
	}
	encoded := make(map[string]string, len(c.factors))
	for _, f := range c.factors {
		encoded[f.Name] = EncodeCode(f.Name, f.Context, c.codes[f.Name])
	}
	c.state = StateSubmitting
	c.mu.Unlock()

	reply, err := submit(ctx, encoded)

	c.mu.Lock()
	defer c.mu.Unlock()

	// Dismissed while submitting; the result belongs to nobody.
	if c.state != StateSubmitting {
		return nil, payerr.ErrSessionInvalidated
	}

	if err != nil {
		c.state = StateCollecting
		c.logger.Error("mfa %s: submit failed: %v", c.action, err)
		return nil, err
	}

	switch r := reply.(type) {
	case *ledger.Accepted:
		c.state = StateResolved
		c.recovery = r.RecoveryCode
		c.codes = nil
		c.observer.ObserveChallenge(string(c.action), OutcomeResolved)
		return r, nil
	case *ledger.FactorsRequired:
		msg := r.Message
		if msg == "" {
			msg = payerr.ErrMFAFailed.Message
		}
		c.fail(msg)
		return &ledger.Rejected{Message: msg}, nil
	case *ledger.Rejected:
		c.fail(r.Message)
		return r, nil
	default:
		c.fail(payerr.ErrLedgerBadResponse.Message)
		return nil, payerr.ErrLedgerBadResponse
	}
}

// TakeRecoveryCode returns the recovery code issued on resolution. It is
// returned once; later calls report false.
func (c *Controller) TakeRecoveryCode() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.recovery == "" {
		return "", false
	}
	code := c.recovery
	c.recovery = ""
	return code, true
}

// Dismiss discards the challenge and every collected code and returns to Idle.
func (c *Controller) Dismiss() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateChallenged || c.state == StateCollecting || c.state == StateSubmitting {
		c.observer.ObserveChallenge(string(c.action), OutcomeDismissed)
	}
	c.state = StateIdle
	c.factors = nil
	c.codes = nil
	c.message = ""
	c.recovery = ""
}

func (c *Controller) fail(msg string) {
	c.state = StateFailed
	c.message = msg
	c.codes = nil
	c.logger.Debug("mfa %s: failed: %s", c.action, msg)
	c.observer.ObserveChallenge(string(c.action), OutcomeFailed)
}

func (c *Controller) requires(factor string) bool {
	for _, f := range c.factors {
		if f.Name == factor {
			return true
		}
	}
	return false
}

func (c *Controller) ready() bool {
	if len(c.factors) == 0 {
		return false
	}
	for _, f := range c.factors {
		if c.codes[f.Name] == "" {
			return false
		}
	}
	return true
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Error(string, ...any) {}

type nopObserver struct{}

func (nopObserver) ObserveChallenge(string, string) {}
