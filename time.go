package register

import "time"

// Clock returns the current wall-clock time. Injected everywhere expiry
// decisions happen so tests can drive the clock.
type Clock func() time.Time
