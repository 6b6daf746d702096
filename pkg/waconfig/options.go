// Package waconfig holds the Replica's construction-time options.
package waconfig

import (
	"log/slog"

	"github.com/codeready-toolchain/waprojector/pkg/socket"
)

// Options configures a Replica at construction time.
type Options struct {
	// ChatKeyPinAware controls whether derived chat sort keys give
	// pinned chats precedence. Nil defaults to true (see WithDefaults);
	// a caller who wants pin-blind ordering must set an explicit false.
	ChatKeyPinAware *bool

	// Socket is the optional on-demand fetch capability consulted by the
	// contacts.update imgUrl=="changed" projection rule. Nil makes
	// imgUrl=="changed" updates clear the cached image instead of
	// refreshing it. Replica.FetchImageURL and Replica.FetchGroupMetadata
	// do not read this field; they take their socket as an argument.
	Socket socket.Socket

	// Logger receives debug/warn/error lines from the projector and
	// replica. Defaults to slog.Default() (see WithDefaults).
	Logger *slog.Logger
}

// WithDefaults returns a copy of o with zero-value fields set to their
// documented defaults.
func WithDefaults(o Options) Options {
	if o.ChatKeyPinAware == nil {
		pinAware := true
		o.ChatKeyPinAware = &pinAware
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// DefaultOptions returns the Options a Replica uses when none are
// supplied: pin-aware chat ordering, no socket, the default logger.
func DefaultOptions() Options {
	return WithDefaults(Options{})
}
