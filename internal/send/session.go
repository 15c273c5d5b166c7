// Package send orchestrates one outbound transfer: fee presets, estimate,
// confirmation and the MFA sub-flow, for a single open wallet at a time.
package send

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/semaphore"

	"github.com/mrz1836/payflow/internal/currency"
	"github.com/mrz1836/payflow/internal/estimate"
	"github.com/mrz1836/payflow/internal/fee"
	"github.com/mrz1836/payflow/internal/ledger"
	"github.com/mrz1836/payflow/internal/mfa"
	"github.com/mrz1836/payflow/internal/preset"
	payerr "github.com/mrz1836/payflow/pkg/errors"
)

// Send outcomes reported to the Observer.
const (
	OutcomeSent        = "sent"
	OutcomeMfaRequired = "mfa_required"
	OutcomeRejected    = "rejected"
	OutcomeError       = "error"
)

// Kinds of stale responses reported to the Observer.
const (
	StalePresets  = "presets"
	StaleEstimate = "estimate"
	StaleConfirm  = "confirm"
	StaleAddress  = "address"
)

// Wallet identifies the wallet funds are sent from.
type Wallet struct {
	ID       string
	Currency *currency.Currency
	// Balance is the spendable balance, when known.
	Balance decimal.NullDecimal
	// AvailableEnergy is the wallet's own energy, for account-resource chains.
	AvailableEnergy decimal.Decimal
}

// Options configures a Session.
type Options struct {
	Ledger       Ledger
	Tokens       TokenSource
	Refresher    BalanceRefresher
	PollInterval time.Duration
	Logger       LogWriter
	Observer     Observer
	// OnStateChange, when set, is called after every transition with the
	// session lock released.
	OnStateChange func(from, to State)
}

// Session is one send flow. Each Open starts from a clean slate; nothing
// survives Close or a wallet switch.
type Session struct {
	mu sync.Mutex

	fetcher   *preset.Fetcher
	estimator *estimate.Estimator
	tokens    TokenSource
	refresher BalanceRefresher
	logger    LogWriter
	observer  Observer
	onChange  func(from, to State)

	id      uuid.UUID
	state   State
	gen     uint64
	wallet  Wallet
	flight  *semaphore.Weighted
	cancel  context.CancelFunc
	loaded  chan struct{}
	pending []transition

	presets    *fee.PresetSet
	mode       fee.Mode
	selection  fee.Selection
	amount     decimal.Decimal
	address    string
	comment    string
	estimate   *estimate.SpendEstimate
	maxAllowed decimal.NullDecimal
	message    string
	challenge  *mfa.Controller
}

type transition struct {
	from, to State
}

// NewSession creates a closed session.
func NewSession(opts *Options) *Session {
	s := &Session{
		tokens:    opts.Tokens,
		refresher: opts.Refresher,
		logger:    opts.Logger,
		observer:  opts.Observer,
		onChange:  opts.OnStateChange,
	}
	if s.logger == nil {
		s.logger = nopLogger{}
	}
	if s.observer == nil {
		s.observer = nopObserver{}
	}
	if s.tokens == nil {
		s.tokens = StaticToken("")
	}
	s.fetcher = preset.NewFetcher(&preset.Options{
		Source:   opts.Ledger,
		Interval: opts.PollInterval,
		Logger:   s.logger,
		Observer: s.observer,
	})
	s.estimator = estimate.New(opts.Ledger, s.logger)
	s.challenge = mfa.NewController(mfa.ActionSend, s.logger, s.observer)
	return s
}

// Open starts a session for w and begins fetching its fee presets in the
// background. ctx bounds the preset fetch; Close or SwitchWallet cancel it.
func (s *Session) Open(ctx context.Context, w Wallet) error {
	if w.Currency == nil {
		return payerr.ErrCurrencyRequired
	}

	s.mu.Lock()
	if s.state != StateClosed {
		state := s.state
		s.mu.Unlock()
		return invalidState(state)
	}
	s.begin(ctx, w)
	s.mu.Unlock()

	s.notify()
	return nil
}

// SwitchWallet retargets an open session. Everything from the previous
// wallet is discarded and any response still in flight for it is dropped.
func (s *Session) SwitchWallet(ctx context.Context, w Wallet) error {
	if w.Currency == nil {
		return payerr.ErrCurrencyRequired
	}

	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return invalidState(StateClosed)
	}
	s.logger.Debug("send %s: switching wallet %s -> %s", s.id, s.wallet.ID, w.ID)
	s.teardown()
	s.begin(ctx, w)
	s.mu.Unlock()

	s.notify()
	return nil
}

// Close ends the session. Outstanding fetches are canceled and late
// responses are dropped.
func (s *Session) Close() {
	s.mu.Lock()
	if s.state != StateClosed {
		s.teardown()
		s.setState(StateClosed)
	}
	s.mu.Unlock()

	s.notify()
}

// AwaitPresets blocks until the presets for the current wallet are applied.
func (s *Session) AwaitPresets(ctx context.Context) (*fee.PresetSet, error) {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil, invalidState(StateClosed)
	}
	gen, loaded := s.gen, s.loaded
	s.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-loaded:
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen || s.presets == nil {
		return nil, payerr.ErrSessionInvalidated
	}
	return s.presets, nil
}

// begin resets the session for w. Caller holds s.mu.
func (s *Session) begin(ctx context.Context, w Wallet) {
	s.gen++
	s.id = uuid.New()
	s.wallet = w
	s.flight = semaphore.NewWeighted(1)
	s.presets = nil
	s.mode = fee.DefaultMode
	s.selection = fee.Selection{}
	s.amount = decimal.Zero
	s.address = ""
	s.comment = ""
	s.estimate = nil
	s.maxAllowed = decimal.NullDecimal{}
	s.message = ""
	s.challenge.Dismiss()
	s.setState(StateInitializing)

	fetchCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.loaded = make(chan struct{})

	s.logger.Debug("send %s: opened for wallet %s (%s)", s.id, w.ID, w.Currency.Symbol)
	go s.loadPresets(fetchCtx, s.gen, w, s.loaded)
}

// teardown cancels background work and drops per-wallet state. Caller holds s.mu.
func (s *Session) teardown() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.gen++
	s.estimate = nil
	s.presets = nil
	s.challenge.Dismiss()
}

func (s *Session) loadPresets(ctx context.Context, gen uint64, w Wallet, loaded chan struct{}) {
	defer close(loaded)

	token, err := s.tokens.Token()
	if err != nil {
		s.logger.Error("send: fee presets for %s: %v", w.Currency.Symbol, err)
	}

	var set *fee.PresetSet
	if err == nil {
		set, err = s.fetcher.Fetch(ctx, token, w.Currency)
	}

	s.mu.Lock()
	if s.gen != gen || s.wallet.ID != w.ID {
		s.mu.Unlock()
		s.logger.Debug("send: dropping stale presets for wallet %s", w.ID)
		s.observer.ObserveStaleResponse(StalePresets)
		return
	}
	if err != nil {
		if ctx.Err() != nil {
			s.mu.Unlock()
			return
		}
		set = fee.CustomOnlySet(w.Currency.Symbol)
		set.Unavailable = true
	}
	s.presets = set
	if !set.Has(s.selection.Preset) {
		if s.selection.Preset != "" {
			s.logger.Debug("send %s: preset %s not offered, using %s", s.id, s.selection.Preset, set.Default)
		}
		s.selection = fee.Selection{Preset: set.Default, Custom: s.selection.Custom}
	}
	s.setState(StateReady)
	s.mu.Unlock()

	s.notify()
}

// SetAmount sets the amount. An empty string clears it.
func (s *Session) SetAmount(raw string) error {
	amount := decimal.Zero
	if strings.TrimSpace(raw) != "" {
		parsed, err := fee.ParseAmount(raw)
		if err != nil {
			return err
		}
		amount = parsed
	}
	return s.edit(func() {
		if !amount.Equal(s.amount) {
			s.amount = amount
			s.invalidate()
		}
	})
}

// SetAddress sets the destination address.
func (s *Session) SetAddress(addr string) error {
	addr = strings.TrimSpace(addr)
	return s.edit(func() {
		if addr != s.address {
			s.address = addr
			s.invalidate()
		}
	})
}

// SetComment sets the optional comment. It does not invalidate an estimate.
func (s *Session) SetComment(comment string) error {
	return s.edit(func() {
		s.comment = comment
	})
}

// SelectPreset chooses a named fee preset.
func (s *Session) SelectPreset(name fee.PresetName) error {
	var selectErr error
	err := s.edit(func() {
		switch {
		case s.presets == nil:
			selectErr = payerr.ErrPresetsUnavailable
		case !s.presets.Has(name):
			selectErr = payerr.WithDetails(payerr.ErrInvalidFee, map[string]string{"preset": string(name)})
		case s.selection.Preset != name:
			s.selection = fee.Selection{Preset: name, Custom: s.selection.Custom}
			s.invalidate()
		}
	})
	if err != nil {
		return err
	}
	return selectErr
}

// SetCustomFee selects the custom tier with the given raw value.
func (s *Session) SetCustomFee(raw string) error {
	value, err := fee.ParseAmount(raw)
	if err != nil {
		return payerr.WithDetails(payerr.ErrInvalidFee, map[string]string{"fee": raw})
	}
	return s.edit(func() {
		next := fee.Selection{Preset: fee.PresetCustom, Custom: value}
		if next.Preset != s.selection.Preset || !next.Custom.Equal(s.selection.Custom) {
			s.selection = next
			s.invalidate()
		}
	})
}

// SelectMode requests a fee mode and returns the mode now in effect.
// Choosing energy with no available energy leaves the mode unchanged.
func (s *Session) SelectMode(requested fee.Mode) (fee.Mode, error) {
	var result fee.Mode
	err := s.edit(func() {
		result = s.mode
		if s.wallet.Currency.Family != currency.FamilyAccountResource {
			return
		}
		next := fee.SelectMode(s.mode, requested, s.wallet.AvailableEnergy)
		if next != s.mode {
			s.mode = next
			s.invalidate()
		}
		result = s.mode
	})
	return result, err
}

// UseMaximum adopts the maximum amount offered by the last estimate.
func (s *Session) UseMaximum() (decimal.Decimal, error) {
	var adopted decimal.Decimal
	var missing bool
	err := s.edit(func() {
		if !s.maxAllowed.Valid {
			missing = true
			return
		}
		adopted = s.maxAllowed.Decimal
		s.amount = adopted
		s.maxAllowed = decimal.NullDecimal{}
		s.invalidate()
	})
	if err != nil {
		return decimal.Zero, err
	}
	if missing {
		return decimal.Zero, payerr.WithMessage(payerr.ErrInvalidState, "no maximum amount to use")
	}
	return adopted, nil
}

// PickAddress fills the destination from the address book.
func (s *Session) PickAddress(ctx context.Context, picker AddressPicker) error {
	s.mu.Lock()
	if !s.state.editable() {
		state := s.state
		s.mu.Unlock()
		return invalidState(state)
	}
	gen, walletID := s.gen, s.wallet.ID
	s.mu.Unlock()

	addr, err := picker.PickAddress(ctx, walletID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	stale := s.gen != gen
	s.mu.Unlock()
	if stale {
		s.observer.ObserveStaleResponse(StaleAddress)
		return payerr.ErrSessionInvalidated
	}
	return s.SetAddress(addr)
}

// Next estimates the spend for the current inputs. Empty amount, address or
// currency fail locally without a remote call.
//
//nolint:gocognit,gocyclo // state machine transition with staleness checks
func (s *Session) Next(ctx context.Context) (estimate.Outcome, error) {
	s.mu.Lock()
	switch {
	case s.state.busy():
		s.mu.Unlock()
		return nil, payerr.ErrOperationInProgress
	case s.state != StateReady && s.state != StateAwaitingConfirm && s.state != StateFailed:
		state := s.state
		s.mu.Unlock()
		return nil, invalidState(state)
	}

	in, err := s.input()
	if err == nil {
		err = in.Validate()
	}
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	flight := s.flight
	if !flight.TryAcquire(1) {
		s.mu.Unlock()
		return nil, payerr.ErrOperationInProgress
	}
	defer flight.Release(1)

	gen := s.gen
	s.estimate = nil
	s.setState(StateEstimating)
	s.mu.Unlock()
	s.notify()

	token, err := s.tokens.Token()
	var outcome estimate.Outcome
	if err == nil {
		outcome, err = s.estimator.Estimate(ctx, token, in)
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		s.observer.ObserveStaleResponse(StaleEstimate)
		return nil, payerr.ErrSessionInvalidated
	}

	if err != nil {
		s.message = err.Error()
		s.setState(StateReady)
		s.mu.Unlock()
		s.notify()
		return nil, err
	}

	switch o := outcome.(type) {
	case *estimate.SpendEstimate:
		s.estimate = o
		s.maxAllowed = decimal.NullDecimal{}
		s.message = ""
		s.setState(StateAwaitingConfirm)
	case *estimate.InsufficientFunds:
		s.maxAllowed = decimal.NewNullDecimal(o.MaximumAllowedAmount)
		s.message = o.Message
		s.setState(StateReady)
	case *estimate.Rejected:
		s.message = o.Message
		s.setState(StateReady)
	}
	s.mu.Unlock()
	s.notify()
	return outcome, nil
}

// Send confirms the current estimate. It is rejected before any remote call
// when the inputs changed since the estimate, or while another call is outstanding.
func (s *Session) Send(ctx context.Context) (Result, error) {
	s.mu.Lock()
	switch {
	case s.state.busy():
		s.mu.Unlock()
		return nil, payerr.ErrOperationInProgress
	case s.state != StateAwaitingConfirm:
		state := s.state
		s.mu.Unlock()
		return nil, invalidState(state)
	}

	in, err := s.input()
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	est := s.estimate
	if est == nil || est.Fingerprint != in.Fingerprint() {
		s.estimate = nil
		s.setState(StateReady)
		s.mu.Unlock()
		s.notify()
		return nil, payerr.ErrStaleEstimate
	}

	flight := s.flight
	if !flight.TryAcquire(1) {
		s.mu.Unlock()
		return nil, payerr.ErrOperationInProgress
	}
	defer flight.Release(1)

	gen := s.gen
	s.setState(StateConfirming)
	s.mu.Unlock()
	s.notify()

	token, err := s.tokens.Token()
	var reply ledger.Reply
	if err == nil {
		reply, err = s.estimator.Confirm(ctx, token, est, in, nil)
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		s.logger.Error("send: confirm reply arrived after the session moved on")
		s.observer.ObserveStaleResponse(StaleConfirm)
		return nil, payerr.ErrSessionInvalidated
	}

	if err != nil {
		// The send may have reached the ledger; a retry needs a fresh estimate.
		s.estimate = nil
		s.setState(StateReady)
		s.message = err.Error()
		s.mu.Unlock()
		s.observer.ObserveSend(OutcomeError)
		s.notify()
		return nil, err
	}

	result, refresh := s.applyReply(reply, false)
	s.mu.Unlock()
	s.finish(result, refresh)
	return result, nil
}

// Prompts returns the prompts of the active MFA challenge.
func (s *Session) Prompts() []mfa.Prompt {
	return s.challenge.Prompts()
}

// SetFactorCode records a code for the active MFA challenge.
func (s *Session) SetFactorCode(factor, code string) error {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()
	if state != StateMfaChallenge {
		return invalidState(state)
	}
	return s.challenge.SetCode(factor, code)
}

// SubmitFactors re-issues the send once with the collected codes. A second
// factors demand is treated as a rejection.
func (s *Session) SubmitFactors(ctx context.Context) (Result, error) {
	s.mu.Lock()
	switch {
	case s.state.busy():
		s.mu.Unlock()
		return nil, payerr.ErrOperationInProgress
	case s.state != StateMfaChallenge:
		state := s.state
		s.mu.Unlock()
		return nil, invalidState(state)
	}
	if !s.challenge.Ready() {
		s.mu.Unlock()
		return nil, payerr.WithDetails(payerr.ErrFactorCodeMissing, map[string]string{
			"missing": strings.Join(s.challenge.Missing(), ","),
		})
	}

	in, err := s.input()
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	est := s.estimate

	flight := s.flight
	if !flight.TryAcquire(1) {
		s.mu.Unlock()
		return nil, payerr.ErrOperationInProgress
	}
	defer flight.Release(1)

	gen := s.gen
	s.setState(StateConfirming)
	s.mu.Unlock()
	s.notify()

	token, err := s.tokens.Token()
	var reply ledger.Reply
	if err == nil {
		reply, err = s.challenge.Submit(ctx, func(ctx context.Context, factors map[string]string) (ledger.Reply, error) {
			return s.estimator.Confirm(ctx, token, est, in, factors)
		})
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		s.observer.ObserveStaleResponse(StaleConfirm)
		return nil, payerr.ErrSessionInvalidated
	}

	if err != nil {
		if s.challenge.State() == mfa.StateFailed {
			result := s.reject(err.Error())
			s.mu.Unlock()
			s.finish(result, false)
			return result, nil
		}
		s.setState(StateMfaChallenge)
		s.mu.Unlock()
		s.observer.ObserveSend(OutcomeError)
		s.notify()
		return nil, err
	}

	result, refresh := s.applyReply(reply, true)
	s.mu.Unlock()
	s.finish(result, refresh)
	return result, nil
}

// DismissChallenge abandons the MFA challenge. Collected codes are discarded
// and the estimate is invalidated.
func (s *Session) DismissChallenge() error {
	s.mu.Lock()
	if s.state != StateMfaChallenge {
		state := s.state
		s.mu.Unlock()
		return invalidState(state)
	}
	s.challenge.Dismiss()
	s.estimate = nil
	s.message = ""
	s.setState(StateReady)
	s.mu.Unlock()

	s.notify()
	return nil
}

// applyReply moves the session according to a send reply. Caller holds s.mu.
// It reports whether balances must be refreshed.
func (s *Session) applyReply(reply ledger.Reply, resubmitted bool) (Result, bool) {
	switch r := reply.(type) {
	case *ledger.Accepted:
		sent := &Sent{TransactionID: r.TransactionID}
		if resubmitted {
			sent.RecoveryCode, _ = s.challenge.TakeRecoveryCode()
		} else {
			sent.RecoveryCode = r.RecoveryCode
		}
		s.logger.Debug("send %s: accepted, transaction %s", s.id, r.TransactionID)
		s.setState(StateSucceeded)
		return sent, true

	case *ledger.FactorsRequired:
		if resubmitted {
			// The controller already converted a repeated demand to a rejection.
			return s.reject(r.Message), false
		}
		if err := s.challenge.Challenge(r); err != nil {
			return s.reject(err.Error()), false
		}
		s.message = r.Message
		s.setState(StateMfaChallenge)
		return &MfaRequired{Prompts: s.challenge.Prompts(), Message: r.Message}, false

	case *ledger.Rejected:
		return s.reject(r.Message), false

	default:
		return s.reject(payerr.ErrLedgerBadResponse.Message), false
	}
}

// reject records a terminal rejection; inputs are kept and the estimate is consumed.
func (s *Session) reject(msg string) *Rejected {
	s.estimate = nil
	s.message = msg
	s.challenge.Dismiss()
	s.setState(StateFailed)
	return &Rejected{Message: msg}
}

// finish runs after the lock is released: metrics, the balance refresh and
// the automatic close that follows success.
func (s *Session) finish(result Result, refresh bool) {
	switch result.(type) {
	case *Sent:
		s.observer.ObserveSend(OutcomeSent)
	case *MfaRequired:
		s.observer.ObserveSend(OutcomeMfaRequired)
	case *Rejected:
		s.observer.ObserveSend(OutcomeRejected)
	}
	s.notify()

	if !refresh {
		return
	}

	s.mu.Lock()
	walletID := s.wallet.ID
	s.mu.Unlock()
	if s.refresher != nil {
		s.refresher.RefreshBalances(walletID)
	}
	s.Close()
}

// input builds the estimate input from the current fields. Caller holds s.mu.
func (s *Session) input() (estimate.Input, error) {
	in := estimate.Input{
		WalletID: s.wallet.ID,
		Currency: s.wallet.Currency,
		Amount:   s.amount,
		Address:  s.address,
		Comment:  s.comment,
		Balance:  s.wallet.Balance,
	}
	if in.Currency == nil {
		return in, payerr.ErrCurrencyRequired
	}
	normalized, err := fee.Normalize(in.Currency, s.mode, s.selection, s.presets)
	if err != nil {
		return in, err
	}
	in.Fee = normalized
	return in, nil
}

// edit applies fn when inputs are editable. Caller must not hold s.mu.
func (s *Session) edit(fn func()) error {
	s.mu.Lock()
	switch {
	case s.state.busy():
		s.mu.Unlock()
		return payerr.ErrOperationInProgress
	case !s.state.editable():
		state := s.state
		s.mu.Unlock()
		return invalidState(state)
	}
	fn()
	s.mu.Unlock()

	s.notify()
	return nil
}

// invalidate drops the current estimate. Caller holds s.mu.
func (s *Session) invalidate() {
	s.estimate = nil
	if s.state == StateAwaitingConfirm || s.state == StateFailed {
		s.message = ""
		s.setState(StateReady)
	}
}

// setState records a transition. Caller holds s.mu.
func (s *Session) setState(to State) {
	if s.state == to {
		return
	}
	s.pending = append(s.pending, transition{from: s.state, to: to})
	s.state = to
}

// notify delivers pending transitions to the OnStateChange hook.
func (s *Session) notify() {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	if s.onChange == nil {
		return
	}
	for _, t := range pending {
		s.onChange(t.from, t.to)
	}
}

func invalidState(state State) error {
	return payerr.WithDetails(payerr.ErrInvalidState, map[string]string{"state": state.String()})
}

// ID identifies the current open of the session.
func (s *Session) ID() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// WalletID returns the wallet the session is open for.
func (s *Session) WalletID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wallet.ID
}

// Presets returns the applied preset set, or nil while initializing.
func (s *Session) Presets() *fee.PresetSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.presets
}

// Estimate returns the current estimate, or nil when there is none.
func (s *Session) Estimate() *estimate.SpendEstimate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.estimate
}

// Mode returns the fee mode in effect.
func (s *Session) Mode() fee.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Selection returns the fee selection.
func (s *Session) Selection() fee.Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection
}

// Amount returns the entered amount.
func (s *Session) Amount() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.amount
}

// Address returns the destination address.
func (s *Session) Address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.address
}

// MaximumAllowed returns the maximum amount offered by the last estimate.
func (s *Session) MaximumAllowed() (decimal.Decimal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxAllowed.Decimal, s.maxAllowed.Valid
}

// Message returns the last ledger message shown to the user.
func (s *Session) Message() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.message
}
