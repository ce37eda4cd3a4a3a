package registry

import "time"

type settings struct {
	graceWindow   time.Duration
	sweepInterval time.Duration
	mailboxSize   int
}

func defaultSettings() settings {
	return settings{
		graceWindow:   10 * time.Second,
		sweepInterval: time.Second,
		mailboxSize:   256,
	}
}

// Option configures a Registry.
type Option func(*Registry)

// WithGraceWindow sets the time budget a fresh connection has to complete
// its authentication handshake before it is force-closed.
func WithGraceWindow(d time.Duration) Option {
	return func(r *Registry) {
		r.config.graceWindow = d
	}
}

// WithSweepInterval sets how often the janitor scans for stale handshakes.
func WithSweepInterval(d time.Duration) Option {
	return func(r *Registry) {
		r.config.sweepInterval = d
	}
}

// WithMailboxSize sets the buffered capacity of each session's push channel.
func WithMailboxSize(size int) Option {
	return func(r *Registry) {
		r.config.mailboxSize = size
	}
}
