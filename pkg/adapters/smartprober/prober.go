// Package smartprober chains media probers, falling back from the
// in-process MP4 reader to ffprobe.
package smartprober

import (
	"context"
	"errors"
	"fmt"

	"github.com/user/runcompare/pkg/adapters/ffprobe"
	"github.com/user/runcompare/pkg/adapters/mp4probe"
	"github.com/user/runcompare/pkg/ports"
)

// ErrNoProberSucceeded is returned when every prober in the chain failed.
var ErrNoProberSucceeded = errors.New("smartprober: no prober could read the file")

// Prober tries each prober in order and returns the first usable result.
type Prober struct {
	chain  []ports.Prober
	logger ports.Logger
}

// New creates a prober that tries mp4ff first, then ffprobe.
func New(logger ports.Logger) *Prober {
	return NewChain(logger, mp4probe.New(), ffprobe.New())
}

// NewChain creates a prober over an explicit chain.
func NewChain(logger ports.Logger, chain ...ports.Prober) *Prober {
	return &Prober{chain: chain, logger: logger.WithComponent("probe")}
}

// Probe returns the first result that has a video track and a duration.
func (p *Prober) Probe(ctx context.Context, path string) (ports.MediaInfo, error) {
	var errs []error
	for i, prober := range p.chain {
		info, err := prober.Probe(ctx, path)
		if ctx.Err() != nil {
			return ports.MediaInfo{}, ctx.Err()
		}
		if err == nil && info.HasVideo && info.DurationMs > 0 {
			return info, nil
		}
		if err == nil {
			err = fmt.Errorf("incomplete metadata %+v", info)
		}
		p.logger.Debug("Prober %d failed on %s: %v", i, path, err)
		errs = append(errs, err)
	}
	return ports.MediaInfo{}, fmt.Errorf("%w: %s: %v", ErrNoProberSucceeded, path, errors.Join(errs...))
}

// Ensure Prober implements ports.Prober
var _ ports.Prober = (*Prober)(nil)
