package providers

import (
	"context"
	"errors"
	"fmt"
	"time"

	domainErrors "github.com/cassiomorais/payflow/internal/domain/errors"
	"github.com/sony/gobreaker/v2"
)

// BreakerSettings configures the per-provider circuit breakers.
type BreakerSettings struct {
	// FailureThreshold is the number of consecutive failures that opens
	// the breaker.
	FailureThreshold uint32
	// Cooldown is how long the breaker stays open before allowing a
	// single half-open probe.
	Cooldown time.Duration
	// Window resets the consecutive-failure count while closed, so old
	// failures do not linger forever.
	Window time.Duration
	// OnStateChange, if set, is called whenever a breaker changes state.
	OnStateChange func(name string, from, to gobreaker.State)
}

// DefaultBreakerSettings opens after 5 consecutive failures and probes
// again after 30 seconds.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		FailureThreshold: 5,
		Cooldown:         30 * time.Second,
		Window:           60 * time.Second,
	}
}

// Factory holds the registered providers and one independent circuit
// breaker per provider name. Breaker state is process-local: replicas
// detect and recover from an outage independently.
type Factory struct {
	providers map[string]Provider
	breakers  map[string]*gobreaker.CircuitBreaker[*Result]
	settings  BreakerSettings
}

// NewFactory creates a factory and registers the given providers.
func NewFactory(settings BreakerSettings, providersList ...Provider) *Factory {
	if settings.FailureThreshold == 0 {
		settings.FailureThreshold = DefaultBreakerSettings().FailureThreshold
	}
	if settings.Cooldown <= 0 {
		settings.Cooldown = DefaultBreakerSettings().Cooldown
	}
	f := &Factory{
		providers: make(map[string]Provider),
		breakers:  make(map[string]*gobreaker.CircuitBreaker[*Result]),
		settings:  settings,
	}
	for _, p := range providersList {
		f.Register(p)
	}
	return f
}

// Register adds a provider and builds its breaker. A breaker allows
// exactly one trial call while half-open; the trial outcome decides
// whether it closes or re-opens.
func (f *Factory) Register(p Provider) {
	threshold := f.settings.FailureThreshold
	f.providers[p.Name()] = p
	f.breakers[p.Name()] = gobreaker.NewCircuitBreaker[*Result](gobreaker.Settings{
		Name:        p.Name(),
		MaxRequests: 1,
		Interval:    f.settings.Window,
		Timeout:     f.settings.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if f.settings.OnStateChange != nil {
				f.settings.OnStateChange(name, from, to)
			}
		},
	})
}

// Process calls the named provider through its circuit breaker. While
// the breaker is open the call fails fast with ErrCircuitOpen and the
// provider is never invoked; callers must treat that differently from
// an ordinary provider failure.
func (f *Factory) Process(ctx context.Context, name string, req ProcessRequest) (*Result, error) {
	p, breaker, err := f.get(name)
	if err != nil {
		return nil, err
	}
	result, err := breaker.Execute(func() (*Result, error) {
		return p.Process(ctx, req)
	})
	return result, mapBreakerErr(err)
}

// Refund calls the named provider's refund endpoint through its breaker.
func (f *Factory) Refund(ctx context.Context, name string, req RefundRequest) (*Result, error) {
	p, breaker, err := f.get(name)
	if err != nil {
		return nil, err
	}
	result, err := breaker.Execute(func() (*Result, error) {
		return p.Refund(ctx, req)
	})
	return result, mapBreakerErr(err)
}

// State returns the breaker state for one provider.
func (f *Factory) State(name string) (gobreaker.State, error) {
	breaker, ok := f.breakers[name]
	if !ok {
		return gobreaker.StateClosed, fmt.Errorf("provider %q: %w", name, domainErrors.ErrProviderNotFound)
	}
	return breaker.State(), nil
}

// States returns the breaker state of every registered provider,
// keyed by provider name. Used by the observability surface.
func (f *Factory) States() map[string]gobreaker.State {
	states := make(map[string]gobreaker.State, len(f.breakers))
	for name, breaker := range f.breakers {
		states[name] = breaker.State()
	}
	return states
}

// Names returns the registered provider names.
func (f *Factory) Names() []string {
	names := make([]string, 0, len(f.providers))
	for name := range f.providers {
		names = append(names, name)
	}
	return names
}

func (f *Factory) get(name string) (Provider, *gobreaker.CircuitBreaker[*Result], error) {
	p, ok := f.providers[name]
	if !ok {
		return nil, nil, fmt.Errorf("provider %q: %w", name, domainErrors.ErrProviderNotFound)
	}
	return p, f.breakers[name], nil
}

// StateValue maps a breaker state onto the metric scale
// (0=closed, 1=half-open, 2=open).
func StateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateOpen:
		return 2
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 0
	}
}

// mapBreakerErr translates gobreaker rejections into the distinct
// ErrCircuitOpen signal; genuine provider errors pass through.
func mapBreakerErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", domainErrors.ErrCircuitOpen, err)
	}
	return err
}
