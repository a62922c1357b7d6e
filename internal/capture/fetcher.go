package capture

import (
	"context"
	"errors"
)

// ErrUnavailable is returned by FetchSources when the platform has no
// capture subsystem at all (unsupported OS, no display server). Distinct
// from an empty catalog, which is a valid non-error result.
var ErrUnavailable = errors.New("capture: source enumeration unavailable on this platform")

// Fetcher enumerates capturable sources. Implementations may suspend while
// the platform responds; they must honour ctx cancellation.
//
// Contract: (nil-or-empty slice, nil) means "nothing capturable" — benign.
// A non-nil error means platform-level failure and is never conflated with
// the empty case.
type Fetcher interface {
	FetchSources(ctx context.Context) ([]Source, error)
}

// FetcherFunc adapts a function to the Fetcher interface. Tests and the
// selector's fakes use this.
type FetcherFunc func(ctx context.Context) ([]Source, error)

func (f FetcherFunc) FetchSources(ctx context.Context) ([]Source, error) { return f(ctx) }
