package errmap

// Retry strategies.
const (
	StrategyConstant    = "constant"
	StrategyLinear      = "linear"
	StrategyExponential = "exponential"
)

// RetrySpec is an immutable backoff policy attached to an error code.
//
// Strategy selects how Interval and Ceil are read: for constant both are
// the fixed delay, for linear Interval is the step, for exponential Interval
// is the base and Ceil the cap. All durations are milliseconds. After delays
// the first retry and MaxDuration bounds the whole retry window.
type RetrySpec struct {
	strategy    string
	interval    int
	after       int
	maxDuration int
	ceil        int
}

// NewRetrySpec creates a retry specification. Values are not validated.
func NewRetrySpec(strategy string, interval, after, maxDuration, ceil int) RetrySpec {
	return RetrySpec{
		strategy:    strategy,
		interval:    interval,
		after:       after,
		maxDuration: maxDuration,
		ceil:        ceil,
	}
}

// Strategy returns the backoff strategy name.
func (r RetrySpec) Strategy() string { return r.strategy }

// Interval returns the interval in milliseconds.
func (r RetrySpec) Interval() int { return r.interval }

// After returns the delay before the first retry in milliseconds.
func (r RetrySpec) After() int { return r.after }

// MaxDuration returns the total retry budget in milliseconds.
func (r RetrySpec) MaxDuration() int { return r.maxDuration }

// Ceil returns the upper bound for a single delay in milliseconds.
func (r RetrySpec) Ceil() int { return r.ceil }

// retrySpecJSON is the wire form. Zero values are kept so a round trip
// preserves every field.
type retrySpecJSON struct {
	Strategy    string `json:"strategy"`
	Interval    int    `json:"interval"`
	After       int    `json:"after"`
	MaxDuration int    `json:"max-duration"`
	Ceil        int    `json:"ceil"`
}
