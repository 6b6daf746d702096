// Package authstate adapts a generic kv.Store into the session-namespaced
// credential persistence layer the socket's signal library consumes:
// Adapter.State().Creds and Adapter.State().Keys satisfy the shape
// described in spec.md §4.8 and §6.
package authstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/codeready-toolchain/waprojector/pkg/bufcodec"
	"github.com/codeready-toolchain/waprojector/pkg/kv"
)

// credsTTL is the ~2 year lifetime saveCreds persists the credential blob
// under. Expressed as time.Duration so the Open Question in spec.md
// §9(a) about seconds vs. milliseconds doesn't arise here — each kv.Store
// backend converts this single unit to whatever its own Set expects.
const credsTTL = 2 * 365 * 24 * time.Hour

// KeyState exposes the per-category signal key storage described in
// spec.md §4.8 (state.keys.get / state.keys.set).
type KeyState struct {
	a *Adapter
}

// State bundles the in-memory credential record with the key-category
// accessor, mirroring the socket-facing "state.creds" / "state.keys"
// shape spec.md §4.8 describes.
type State struct {
	Creds Creds
	Keys  KeyState
}

// Adapter is a session-namespaced, kv.Store-backed AuthState. Every
// logical key it reads or writes is first mangled through physKey, so
// many sessions can share one Store without their keys colliding.
type Adapter struct {
	store      kv.Store
	sessionKey string
	logger     *slog.Logger

	state State
}

// New constructs an Adapter over store, namespaced by sessionKey. It does
// not itself read state.creds; call Load to populate it (freshly
// initializing if nothing was persisted, or the read failed).
func New(store kv.Store, sessionKey string, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Adapter{store: store, sessionKey: sessionKey, logger: logger}
	a.state.Keys = KeyState{a: a}
	return a
}

// physKey mangles a logical key into the store's keyspace: sessionKey +
// ":" + logical.
func (a *Adapter) physKey(logical string) string {
	return a.sessionKey + ":" + logical
}

// Load populates a.State().Creds from the store, freshly initializing on
// any failure (missing key, decode error, or store error) per spec.md
// §4.8 — a read failure is never fatal to adapter construction.
func (a *Adapter) Load(ctx context.Context) {
	raw, ok, err := a.store.Get(ctx, a.physKey(credsKey))
	if err != nil {
		a.logger.Warn("authstate: load creds failed, initializing fresh", "session", a.sessionKey, "error", err)
		a.state.Creds = Creds{}
		return
	}
	if !ok {
		a.state.Creds = Creds{}
		return
	}

	decoded, err := bufcodec.Decode([]byte(raw))
	if err != nil {
		a.logger.Warn("authstate: decode creds failed, initializing fresh", "session", a.sessionKey, "error", err)
		a.state.Creds = Creds{}
		return
	}

	reencoded, err := json.Marshal(decoded)
	if err != nil {
		a.logger.Warn("authstate: re-marshal creds failed, initializing fresh", "session", a.sessionKey, "error", err)
		a.state.Creds = Creds{}
		return
	}

	var creds Creds
	if err := json.Unmarshal(reencoded, &creds); err != nil {
		a.logger.Warn("authstate: unmarshal creds failed, initializing fresh", "session", a.sessionKey, "error", err)
		a.state.Creds = Creds{}
		return
	}
	a.state.Creds = creds
}

// State returns the adapter's in-memory view; callers read/mutate
// State().Creds directly, the way the socket's own library does.
func (a *Adapter) State() *State {
	return &a.state
}

// SaveCreds serializes the current in-memory credential blob through
// bufcodec and writes it under the "creds" logical key with the ~2 year
// TTL. Encode and store Set failures are returned to the caller.
func (a *Adapter) SaveCreds(ctx context.Context) error {
	encoded, err := bufcodec.Encode(a.state.Creds)
	if err != nil {
		return fmt.Errorf("authstate: encode creds: %w", err)
	}
	if err := a.store.Set(ctx, a.physKey(credsKey), string(encoded), credsTTL); err != nil {
		return fmt.Errorf("authstate: save creds: %w", err)
	}
	return nil
}

// ClearState invokes the store's Clear, which — as documented on
// kv.Store — empties the entire underlying keyspace, not just this
// session's subset. Callers who need isolation should give each session
// its own Store (e.g. a dedicated Redis logical database), not rely on
// ClearState to scope itself.
func (a *Adapter) ClearState(ctx context.Context) {
	if err := a.store.Clear(ctx); err != nil {
		a.logger.Error("authstate: clear failed", "session", a.sessionKey, "error", err)
	}
}

// Get returns a map from each requested id to its stored value for the
// given logical category, or nil for ids with nothing stored. For
// category == "app-state-sync-key", each stored payload is reconstructed
// into AppStateSyncKey before being returned.
func (k KeyState) Get(ctx context.Context, category string, ids []string) map[string]any {
	out := make(map[string]any, len(ids))
	for _, id := range ids {
		raw, ok, err := k.a.store.Get(ctx, k.a.physKey(category+"-"+id))
		if err != nil {
			k.a.logger.Warn("authstate: key get failed", "category", category, "id", id, "error", err)
			out[id] = nil
			continue
		}
		if !ok {
			out[id] = nil
			continue
		}

		decoded, err := bufcodec.Decode([]byte(raw))
		if err != nil {
			k.a.logger.Warn("authstate: key decode failed", "category", category, "id", id, "error", err)
			out[id] = nil
			continue
		}

		if category != appStateSyncKeyType {
			out[id] = decoded
			continue
		}

		reencoded, err := json.Marshal(decoded)
		if err != nil {
			out[id] = nil
			continue
		}
		var syncKey AppStateSyncKey
		if err := json.Unmarshal(reencoded, &syncKey); err != nil {
			out[id] = nil
			continue
		}
		out[id] = syncKey
	}
	return out
}

// Entry is one (category, id, value) triple for KeyState.Set. A nil
// Value deletes the entry.
type Entry struct {
	Category string
	ID       string
	Value    any
}

// Set writes or deletes each entry under category + "-" + id. A delete
// (nil Value) failure is caught and logged, never propagated, per
// spec.md §7. A write failure propagates — "set" is the one auth-store
// operation whose errors aren't swallowed — joined across every entry
// that failed so a caller writing a batch sees all of them, not just the
// first.
func (k KeyState) Set(ctx context.Context, entries []Entry) error {
	var errs []error
	for _, e := range entries {
		physKey := k.a.physKey(e.Category + "-" + e.ID)
		if e.Value == nil {
			if _, err := k.a.store.Delete(ctx, physKey); err != nil {
				k.a.logger.Warn("authstate: key delete failed", "category", e.Category, "id", e.ID, "error", err)
			}
			continue
		}

		encoded, err := bufcodec.Encode(e.Value)
		if err != nil {
			errs = append(errs, fmt.Errorf("authstate: encode key %s-%s: %w", e.Category, e.ID, err))
			continue
		}
		if err := k.a.store.Set(ctx, physKey, string(encoded), 0); err != nil {
			errs = append(errs, fmt.Errorf("authstate: set key %s-%s: %w", e.Category, e.ID, err))
		}
	}
	return errors.Join(errs...)
}
