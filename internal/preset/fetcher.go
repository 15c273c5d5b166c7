// Package preset fetches fee presets from the ledger, waiting out its
// "not ready" answers on a fixed interval until presets arrive or the
// caller cancels.
package preset

import (
	"context"
	"time"

	"github.com/mrz1836/payflow/internal/currency"
	"github.com/mrz1836/payflow/internal/fee"
	"github.com/mrz1836/payflow/internal/ledger"
)

// DefaultInterval is the delay between requests while the ledger answers "wait".
const DefaultInterval = 3 * time.Second

// Poll results reported to the Observer.
const (
	ResultWait        = "wait"
	ResultReady       = "ready"
	ResultUnavailable = "unavailable"
	ResultCanceled    = "canceled"
	ResultCustomOnly  = "custom_only"
)

// Source is the ledger operation the fetcher polls.
type Source interface {
	FeePresets(ctx context.Context, token, currency string) (*ledger.PresetsReply, error)
}

// LogWriter provides logging operations.
type LogWriter interface {
	Debug(format string, args ...any)
	Error(format string, args ...any)
}

// Observer counts poll results.
type Observer interface {
	ObservePresetPoll(result string)
}

// Options configures a Fetcher.
type Options struct {
	Source   Source
	Interval time.Duration
	Logger   LogWriter
	Observer Observer
}

// Fetcher retrieves fee presets for one currency at a time.
// It holds no per-fetch state; cancellation is carried by the context.
type Fetcher struct {
	source   Source
	interval time.Duration
	logger   LogWriter
	observer Observer
}

// NewFetcher creates a Fetcher.
func NewFetcher(opts *Options) *Fetcher {
	f := &Fetcher{
		source:   opts.Source,
		interval: opts.Interval,
		logger:   opts.Logger,
		observer: opts.Observer,
	}
	if f.interval <= 0 {
		f.interval = DefaultInterval
	}
	if f.logger == nil {
		f.logger = nopLogger{}
	}
	if f.observer == nil {
		f.observer = nopObserver{}
	}
	return f
}

// Fetch returns the preset set for cur. It re-requests on the fixed interval
// for as long as the ledger answers "wait"; there is no retry limit.
//
// Remote failures never fail the fetch: they yield a custom-only set marked
// Unavailable. The only error returned is the context's, on cancellation.
func (f *Fetcher) Fetch(ctx context.Context, token string, cur *currency.Currency) (*fee.PresetSet, error) {
	if !cur.Family.HasFeeMarket() {
		f.observer.ObservePresetPoll(ResultCustomOnly)
		return fee.CustomOnlySet(cur.Native), nil
	}

	for attempt := 1; ; attempt++ {
		reply, err := f.source.FeePresets(ctx, token, cur.Symbol)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				f.observer.ObservePresetPoll(ResultCanceled)
				return nil, ctxErr
			}
			f.logger.Error("fee presets for %s unavailable: %v", cur.Symbol, err)
			f.observer.ObservePresetPoll(ResultUnavailable)
			return unavailable(cur), nil
		}

		if !reply.Wait {
			if len(reply.Presets) == 0 {
				f.logger.Error("fee presets for %s unavailable: %s", cur.Symbol, reply.Message)
				f.observer.ObservePresetPoll(ResultUnavailable)
				return unavailable(cur), nil
			}
			f.logger.Debug("fee presets for %s ready after %d request(s)", cur.Symbol, attempt)
			f.observer.ObservePresetPoll(ResultReady)
			unit := reply.Unit
			if unit == "" {
				unit = cur.Symbol
			}
			return fee.NewPresetSet(reply.Presets, unit), nil
		}

		f.observer.ObservePresetPoll(ResultWait)
		f.logger.Debug("fee presets for %s not ready, retrying in %s", cur.Symbol, f.interval)

		timer := time.NewTimer(f.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			f.observer.ObservePresetPoll(ResultCanceled)
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func unavailable(cur *currency.Currency) *fee.PresetSet {
	set := fee.CustomOnlySet(cur.Symbol)
	set.Unavailable = true
	return set
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Error(string, ...any) {}

type nopObserver struct{}

func (nopObserver) ObservePresetPoll(string) {}
