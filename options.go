package framealloc

import (
	"github.com/go-kit/log"
	"github.com/pkg/errors"
)

type options struct {
	alignment int
	logger    log.Logger
	region    RegionSource
}

// Option configures an allocator or container at construction.
type Option func(*options)

// WithAlignment sets the alignment of every block handed out.
// It must be a power of two.
func WithAlignment(n int) Option {
	return func(o *options) { o.alignment = n }
}

// WithLogger sets the logger used for region lifecycle and misuse reports.
func WithLogger(l log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRegion sets where the backing region comes from. Defaults to HeapRegion.
func WithRegion(src RegionSource) Option {
	return func(o *options) { o.region = src }
}

func buildOptions(opts []Option) (options, error) {
	o := options{
		alignment: DefaultAlignment,
		logger:    log.NewNopLogger(),
		region:    HeapRegion,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if !isPowerOfTwo(o.alignment) {
		return o, errors.Wrapf(ErrBadAlignment, "alignment=%d", o.alignment)
	}
	if o.logger == nil {
		o.logger = log.NewNopLogger()
	}
	if o.region == nil {
		o.region = HeapRegion
	}
	return o, nil
}
