package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/mrz1836/payflow/internal/ledger"
	"github.com/mrz1836/payflow/internal/mfa"
	"github.com/mrz1836/payflow/internal/secret"
	payerr "github.com/mrz1836/payflow/pkg/errors"
)

// LoginAPI is the ledger call the service drives.
type LoginAPI interface {
	Login(ctx context.Context, req *ledger.LoginRequest) (ledger.Reply, error)
}

// LogWriter provides logging operations.
type LogWriter interface {
	Debug(format string, args ...any)
	Error(format string, args ...any)
}

// Result is the outcome of Login or SubmitFactors:
// one of *LoggedIn, *MfaRequired or *Rejected.
type Result interface {
	isResult()
}

// LoggedIn reports a stored login.
type LoggedIn struct {
	Email        string
	ExpiresAt    *time.Time
	RecoveryCode string
}

// MfaRequired reports that the ledger asked for factor codes.
type MfaRequired struct {
	Prompts []mfa.Prompt
	Message string
}

// Rejected carries the ledger's message verbatim.
type Rejected struct {
	Message string
}

func (*LoggedIn) isResult()    {}
func (*MfaRequired) isResult() {}
func (*Rejected) isResult()    {}

// Status describes the stored login.
type Status struct {
	LoggedIn  bool
	Email     string
	CreatedAt time.Time
	ExpiresAt *time.Time
	Expired   bool
}

// Options configures a Service.
type Options struct {
	Ledger   LoginAPI
	Store    *Store
	Logger   LogWriter
	Observer mfa.Observer
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Service logs in and supplies the stored token to other components.
type Service struct {
	mu        sync.Mutex
	ledger    LoginAPI
	store     *Store
	logger    LogWriter
	now       func() time.Time
	challenge *mfa.Controller

	// Credentials are held only while a challenge is pending.
	email    string
	password *secret.Bytes
}

// NewService creates a Service.
func NewService(opts *Options) *Service {
	s := &Service{
		ledger: opts.Ledger,
		store:  opts.Store,
		logger: opts.Logger,
		now:    opts.Now,
	}
	if s.logger == nil {
		s.logger = nopLogger{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.challenge = mfa.NewController(mfa.ActionLogin, s.logger, opts.Observer)
	return s
}

// Login exchanges credentials for a token. A pending challenge is discarded.
func (s *Service) Login(ctx context.Context, email, password string) (Result, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, payerr.WithSuggestion(payerr.ErrInvalidInput, "email and password are required")
	}

	s.mu.Lock()
	s.clear()
	s.mu.Unlock()

	reply, err := s.ledger.Login(ctx, &ledger.LoginRequest{Email: email, Password: password})
	if err != nil {
		return nil, err
	}

	switch r := reply.(type) {
	case *ledger.Accepted:
		return s.complete(email, r)
	case *ledger.FactorsRequired:
		s.mu.Lock()
		defer s.mu.Unlock()
		if err := s.challenge.Challenge(r); err != nil {
			return nil, err
		}
		s.email = email
		s.password = secret.FromString(password)
		s.logger.Debug("login %s: factors required: %s", email, strings.Join(r.Names(), ","))
		return &MfaRequired{Prompts: s.challenge.Prompts(), Message: r.Message}, nil
	case *ledger.Rejected:
		s.logger.Debug("login %s rejected: %s", email, r.Message)
		return &Rejected{Message: r.Message}, nil
	default:
		return nil, payerr.ErrLedgerBadResponse
	}
}

// Prompts returns the prompts of the pending challenge.
func (s *Service) Prompts() []mfa.Prompt {
	return s.challenge.Prompts()
}

// SetFactorCode records a code for the pending challenge.
func (s *Service) SetFactorCode(factor, code string) error {
	return s.challenge.SetCode(factor, code)
}

// SubmitFactors re-issues the login once with the collected codes. A second
// factors demand is reported as a rejection.
func (s *Service) SubmitFactors(ctx context.Context) (Result, error) {
	s.mu.Lock()
	email, password := s.email, s.password.String()
	s.mu.Unlock()
	if email == "" {
		return nil, payerr.WithMessage(payerr.ErrInvalidState, "no login challenge pending")
	}

	reply, err := s.challenge.Submit(ctx, func(ctx context.Context, factors map[string]string) (ledger.Reply, error) {
		return s.ledger.Login(ctx, &ledger.LoginRequest{Email: email, Password: password, Factors: factors})
	})
	if err != nil {
		if s.challenge.State() == mfa.StateFailed {
			s.Dismiss()
		}
		return nil, err
	}

	switch r := reply.(type) {
	case *ledger.Accepted:
		recovery, _ := s.challenge.TakeRecoveryCode()
		result, err := s.complete(email, r)
		if logged, ok := result.(*LoggedIn); ok {
			logged.RecoveryCode = recovery
		}
		s.Dismiss()
		return result, err
	case *ledger.Rejected:
		s.Dismiss()
		return &Rejected{Message: r.Message}, nil
	default:
		s.Dismiss()
		return nil, payerr.ErrLedgerBadResponse
	}
}

// Dismiss abandons a pending challenge and forgets the credentials.
func (s *Service) Dismiss() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clear()
}

// Logout deletes the stored login.
func (s *Service) Logout() error {
	s.Dismiss()
	return s.store.Delete()
}

// Status reports the stored login.
func (s *Service) Status() (*Status, error) {
	rec, err := s.store.Load()
	if payerr.Is(err, payerr.ErrNotAuthenticated) {
		return &Status{}, nil
	}
	if err != nil {
		return nil, err
	}
	return &Status{
		LoggedIn:  rec.IsValid(s.now()),
		Email:     rec.Email,
		CreatedAt: rec.CreatedAt,
		ExpiresAt: rec.ExpiresAt,
		Expired:   !rec.IsValid(s.now()),
	}, nil
}

// Token returns the stored bearer token.
func (s *Service) Token() (string, error) {
	rec, err := s.store.Load()
	if err != nil {
		return "", err
	}
	if !rec.IsValid(s.now()) {
		return "", payerr.WithMessage(payerr.ErrNotAuthenticated, "login expired")
	}
	return rec.Token, nil
}

func (s *Service) complete(email string, r *ledger.Accepted) (Result, error) {
	if r.Token == "" {
		return nil, payerr.Wrap(payerr.ErrLedgerBadResponse, "login accepted without a token")
	}
	rec := NewRecord(r.Token, email, s.now())
	if err := s.store.Save(rec); err != nil {
		return nil, err
	}
	s.logger.Debug("login %s: token stored", email)
	return &LoggedIn{Email: email, ExpiresAt: rec.ExpiresAt, RecoveryCode: r.RecoveryCode}, nil
}

// clear drops the pending challenge. Caller holds s.mu.
func (s *Service) clear() {
	s.challenge.Dismiss()
	s.email = ""
	s.password.Destroy()
	s.password = nil
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Error(string, ...any) {}
