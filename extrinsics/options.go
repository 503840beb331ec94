package extrinsics

import (
	"github.com/subtensor-tools/subreg/chain"
	"github.com/subtensor-tools/subreg/signing"
)

type options struct {
	waitForInclusion    bool
	waitForFinalization bool
	period              uint64
	versionKey          uint64
	maxRetries          uint
}

type OptionFunc func(*options)

func WithWaitForInclusion(wait bool) OptionFunc {
	return func(o *options) {
		o.waitForInclusion = wait
	}
}

func WithWaitForFinalization(wait bool) OptionFunc {
	return func(o *options) {
		o.waitForFinalization = wait
	}
}

// WithPeriod makes the extrinsic mortal for the given number of blocks.
func WithPeriod(blocks uint64) OptionFunc {
	return func(o *options) {
		o.period = blocks
	}
}

// WithVersionKey sets the weights version key. Used by SetWeights only.
func WithVersionKey(key uint64) OptionFunc {
	return func(o *options) {
		o.versionKey = key
	}
}

// WithMaxRetries bounds the number of SetWeights submissions.
func WithMaxRetries(n uint) OptionFunc {
	return func(o *options) {
		o.maxRetries = n
	}
}

func applyOptions(defaults options, opts []OptionFunc) options {
	for _, opt := range opts {
		opt(&defaults)
	}
	return defaults
}

func (o options) waits() bool {
	return o.waitForInclusion || o.waitForFinalization
}

func (o options) sendOptions(role signing.KeyRole) chain.SendOptions {
	return chain.SendOptions{
		WaitForInclusion:    o.waitForInclusion,
		WaitForFinalization: o.waitForFinalization,
		Period:              o.period,
		SignWith:            role,
	}
}
