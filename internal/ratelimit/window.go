package ratelimit

import "time"

// Window is a fixed time bucket for rate-limit accounting.
type Window string

const (
	WindowMinute Window = "minute"
	WindowHour   Window = "hour"
	WindowDay    Window = "day"
)

// Windows lists every window in the order admission checks them.
var Windows = []Window{WindowMinute, WindowHour, WindowDay}

var windowSeconds = map[Window]int64{
	WindowMinute: 60,
	WindowHour:   3600,
	WindowDay:    86400,
}

// Seconds returns the window length in seconds.
func (w Window) Seconds() int64 {
	return windowSeconds[w]
}

// Length returns the window length as a duration.
func (w Window) Length() time.Duration {
	return time.Duration(w.Seconds()) * time.Second
}

// IndexAt returns the window index containing the instant: floor(now /
// window length). A counter for a past index is stale and never merges with
// the current one.
func (w Window) IndexAt(now time.Time) int64 {
	return now.Unix() / w.Seconds()
}

// ResetIn returns the time remaining until the current window rolls over:
// window length minus (now mod window length), exactly.
func (w Window) ResetIn(now time.Time) time.Duration {
	secs := w.Seconds()
	return time.Duration(secs-now.Unix()%secs) * time.Second
}

// Key identifies one counter: identity, endpoint, window kind and window
// index.
type Key struct {
	Identity string
	Endpoint string
	Window   Window
	Index    int64
}

// KeyAt builds the counter key for the window containing now.
func KeyAt(identity, endpoint string, w Window, now time.Time) Key {
	return Key{Identity: identity, Endpoint: endpoint, Window: w, Index: w.IndexAt(now)}
}
