package escrow

import (
	"context"
	"log/slog"
	"time"
)

// Backend is the host substrate the service runs on. Atomic runs fn as one
// serialized, all-or-nothing unit: when fn returns an error nothing it wrote
// is kept and none of its events are published.
type Backend interface {
	Atomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the view of persistent state inside one Atomic call.
type Tx interface {
	// LoadState returns ok=false before initialization.
	LoadState(ctx context.Context) (state State, ok bool, err error)
	SaveState(ctx context.Context, state State) error

	// LoadEscrow returns ErrTaskNotFound for an unknown id.
	LoadEscrow(ctx context.Context, taskID string) (*TaskEscrow, error)
	HasEscrow(ctx context.Context, taskID string) (bool, error)
	SaveEscrow(ctx context.Context, e *TaskEscrow) error

	// LoadDispute returns ErrTaskNotDisputed when no dispute was recorded.
	LoadDispute(ctx context.Context, taskID string) (*DisputeInfo, error)
	SaveDispute(ctx context.Context, d *DisputeInfo) error

	// Token binds the token contract at addr to this unit.
	Token(addr Address) Token

	// Emit queues ev for publication when the unit commits.
	Emit(ctx context.Context, ev Event) error

	// ConsumeSignature marks the signature id as spent. It returns
	// ErrSignatureReused when id was spent by an earlier committed call.
	ConsumeSignature(ctx context.Context, id string, expiresAt uint64) error
}

// Token is the external fungible token contract.
type Token interface {
	Balance(ctx context.Context, holder Address) (int64, error)
	Transfer(ctx context.Context, from, to Address, amount int64) error
}

// Authorizer answers whether addr has authorized intent in this call.
type Authorizer interface {
	RequireAuth(ctx context.Context, addr Address, intent Intent) (Grant, error)
}

// Grant names the signature that satisfied RequireAuth. The service spends
// ID inside the same Atomic unit, so a signature authorizes one committed
// call. An empty ID is not tracked.
type Grant struct {
	ID        string
	ExpiresAt uint64
}

// Clock returns the host ledger timestamp in seconds.
type Clock interface {
	Now() uint64
}

// SystemClock reads wall-clock time.
type SystemClock struct{}

func (SystemClock) Now() uint64 { return uint64(time.Now().Unix()) }

// Observer receives one call per finished operation.
type Observer interface {
	ObserveOperation(op string, err error, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveOperation(string, error, time.Duration) {}

// Options configures a Service. Zero values select defaults.
type Options struct {
	Clock    Clock
	Logger   *slog.Logger
	Observer Observer
}
