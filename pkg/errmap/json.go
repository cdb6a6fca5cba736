package errmap

import "encoding/json"

// MarshalJSON implements json.Marshaler.
func (r RetrySpec) MarshalJSON() ([]byte, error) {
	return json.Marshal(retrySpecJSON{
		Strategy:    r.strategy,
		Interval:    r.interval,
		After:       r.after,
		MaxDuration: r.maxDuration,
		Ceil:        r.ceil,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *RetrySpec) UnmarshalJSON(data []byte) error {
	var v retrySpecJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*r = NewRetrySpec(v.Strategy, v.Interval, v.After, v.MaxDuration, v.Ceil)
	return nil
}
