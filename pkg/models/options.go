package models

import "time"

const (
	DefaultTimeoutMinutes   = 30
	DefaultQualityThreshold = 70.0
)

// Options controls a single workflow run.
type Options struct {
	// TimeoutMinutes bounds the whole run, all stages included.
	TimeoutMinutes float64 `json:"timeout_minutes"   validate:"gt=0"`

	// EnableRollback controls whether compensating actions execute when the
	// run fails.
	EnableRollback bool `json:"enable_rollback"`

	// QualityThreshold is the closed lower bound applied to the quality
	// score; a score equal to the threshold is accepted.
	QualityThreshold float64 `json:"quality_threshold" validate:"gte=0,lte=100"`
}

// DefaultOptions returns the options applied when a caller provides none.
func DefaultOptions() Options {
	return Options{
		TimeoutMinutes:   DefaultTimeoutMinutes,
		EnableRollback:   true,
		QualityThreshold: DefaultQualityThreshold,
	}
}

// Timeout converts TimeoutMinutes into a duration.
func (o Options) Timeout() time.Duration {
	return time.Duration(o.TimeoutMinutes * float64(time.Minute))
}
