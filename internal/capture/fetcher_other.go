//go:build !linux

package capture

import (
	"context"
	"fmt"
)

// PlatformFetcher on non-Linux platforms has no screen driver wired up;
// enumeration fails distinctly so the selector reports a platform error
// rather than an empty catalog.
type PlatformFetcher struct{}

func NewPlatformFetcher() *PlatformFetcher { return &PlatformFetcher{} }

func (f *PlatformFetcher) FetchSources(ctx context.Context) ([]Source, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("capture: fetch sources: %w", err)
	}
	return nil, ErrUnavailable
}
