package registration

import (
	"go.uber.org/zap/zapcore"

	"github.com/subtensor-tools/subreg/shared"
)

func DefaultConfig() Config {
	return Config{
		MaxAttempts:    3,
		StaleTolerance: shared.DefaultStaleTolerance,
	}
}

//nolint:lll
type Config struct {
	MaxAttempts        uint   `long:"max-attempts"         description:"the maximum number of registration submissions"`
	StaleTolerance     uint64 `long:"stale-tolerance"      description:"how many blocks a solution may lag behind the head before it is recomputed"`
	MaxStaleRecomputes uint   `long:"max-stale-recomputes" description:"the maximum number of stale recomputes per attempt (0 means unbounded)"`
	Period             uint64 `long:"period"               description:"the number of blocks a registration extrinsic stays valid (0 means immortal)"`
}

// implement zap.ObjectMarshaler interface.
func (c Config) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddUint("max_attempts", c.MaxAttempts)
	enc.AddUint64("stale_tolerance", c.StaleTolerance)
	enc.AddUint("max_stale_recomputes", c.MaxStaleRecomputes)
	enc.AddUint64("period", c.Period)
	return nil
}
