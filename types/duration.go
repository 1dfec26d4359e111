package types

import "time"

// Duration is a time.Duration that (un)marshals as a string like "10s",
// so it can be used directly in TOML and JSON config.
type Duration time.Duration

var _ interface {
	UnmarshalText([]byte) error
	MarshalText() ([]byte, error)
} = (*Duration)(nil)

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}
