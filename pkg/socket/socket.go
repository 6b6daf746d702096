// Package socket declares the capability interfaces the replica expects
// from its upstream transport: a source of projector events (EventSource)
// and an on-demand fetch capability for data the replica doesn't cache
// until asked (Socket). Neither interface is implemented in this module;
// concrete sockets are supplied by whatever wires the upstream protocol
// to a Replica.
package socket

import (
	"context"

	"github.com/codeready-toolchain/waprojector/pkg/waevents"
)

// Handler is invoked once per event with its raw payload. Payload shapes
// are documented per event kind in pkg/waevents.
type Handler func(payload any)

// EventSource is anything that can emit the named event streams a
// Replica projects. On registers h for kind and returns an Unsubscribe
// that detaches it; Bind is idempotent per (source, kind) pair, so
// implementations should tolerate repeated On calls for the same kind by
// the same caller without double-delivering.
type EventSource interface {
	On(kind string, h Handler) (unsubscribe func())
}

// Socket is the on-demand fetch capability the replica's query methods
// defer to when their own cache is empty. Both methods may suspend and
// may fail; a failure is logged by the caller and treated as absent —
// Socket implementations should not themselves retry or cache.
type Socket interface {
	ProfilePictureURL(ctx context.Context, jid string) (string, bool, error)
	GroupMetadata(ctx context.Context, jid string) (waevents.GroupMetadata, bool, error)
}
