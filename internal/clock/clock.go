// Package clock checks the feeder's clock against the server's.
package clock

import "time"

// DefaultThreshold is the largest tolerated difference between the two clocks.
const DefaultThreshold = 10 * time.Second

// DriftOK reports whether |server - device| is below threshold.
func DriftOK(server, device time.Time, threshold time.Duration) bool {
	d := server.Sub(device)
	if d < 0 {
		d = -d
	}
	return d < threshold
}

// Corrector checks device timestamps and asks for a resync when they drift.
type Corrector struct {
	// Threshold defaults to DefaultThreshold when zero.
	Threshold time.Duration
	// Now defaults to time.Now when nil.
	Now func() time.Time
	// Resync is called once per failed check. It should send NTP_SYNC.
	Resync func()
}

// Check compares deviceTime with the server clock. On drift it calls
// Resync and returns false; it does not wait for or retry the resync.
func (c Corrector) Check(deviceTime time.Time) bool {
	threshold := c.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}

	if DriftOK(now(), deviceTime, threshold) {
		return true
	}
	if c.Resync != nil {
		c.Resync()
	}
	return false
}
