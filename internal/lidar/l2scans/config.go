package l2scans

import (
	"errors"
	"fmt"
	"math"
)

// ErrConfiguration is matched by every ConfigurationError.
var ErrConfiguration = errors.New("invalid scan configuration")

// ConfigurationError reports a scan configuration that cannot produce a
// whole, positive number of points per channel per revolution.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid scan configuration: %s: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// ScanConfig describes the simulated sensor for one pipeline run.
type ScanConfig struct {
	ChannelCount        int     // lasers / rings, e.g. 32
	PointsPerSecond     int     // total points emitted per second across all channels
	RevolutionFrequency float64 // revolutions per second (Hz)

	// StrictChannelCounts rejects packets whose per-channel counts differ.
	// When false, scan completion is tracked from channel 0 alone.
	StrictChannelCounts bool
}

// integralTolerance absorbs float rounding in points/s ÷ Hz (e.g. 0.1 Hz).
const integralTolerance = 1e-9

// TargetPointsPerChannel returns points_per_second / revolution_frequency /
// channel_count, which must be a positive integer.
func (c ScanConfig) TargetPointsPerChannel() (int, error) {
	if c.ChannelCount <= 0 {
		return 0, &ConfigurationError{Field: "channel_count", Reason: fmt.Sprintf("must be > 0, got %d", c.ChannelCount)}
	}
	if c.PointsPerSecond <= 0 {
		return 0, &ConfigurationError{Field: "points_per_second", Reason: fmt.Sprintf("must be > 0, got %d", c.PointsPerSecond)}
	}
	if !(c.RevolutionFrequency > 0) || math.IsInf(c.RevolutionFrequency, 0) {
		return 0, &ConfigurationError{Field: "revolution_frequency", Reason: fmt.Sprintf("must be a finite value > 0, got %v", c.RevolutionFrequency)}
	}

	q := float64(c.PointsPerSecond) / c.RevolutionFrequency / float64(c.ChannelCount)
	r := math.Round(q)
	if math.Abs(q-r) > integralTolerance*math.Max(1, r) {
		return 0, &ConfigurationError{
			Field:  "target_points_per_channel",
			Reason: fmt.Sprintf("%d / %v / %d = %v is not an integer", c.PointsPerSecond, c.RevolutionFrequency, c.ChannelCount, q),
		}
	}
	if r < 1 {
		return 0, &ConfigurationError{
			Field:  "target_points_per_channel",
			Reason: fmt.Sprintf("%d / %v / %d = %v is not positive", c.PointsPerSecond, c.RevolutionFrequency, c.ChannelCount, q),
		}
	}
	if r > math.MaxInt32 {
		return 0, &ConfigurationError{Field: "target_points_per_channel", Reason: fmt.Sprintf("%v points per channel is too large", r)}
	}
	return int(r), nil
}

// Validate reports whether the configuration yields a usable target.
func (c ScanConfig) Validate() error {
	_, err := c.TargetPointsPerChannel()
	return err
}
