// Package replica is the top-level container: it binds a projector.State
// to an upstream event source, exposes the query operations callers use
// to read projected state, and owns snapshot (de)serialization.
//
// Concurrency: Replica follows the single-writer discipline documented
// in spec §5. Projection (Bind's callback) and query methods both take
// mu, a sync.RWMutex — projection under the write lock, queries under
// the read lock — so a query never observes a partially-applied event.
package replica

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/codeready-toolchain/waprojector/pkg/ordered"
	"github.com/codeready-toolchain/waprojector/pkg/projector"
	"github.com/codeready-toolchain/waprojector/pkg/socket"
	"github.com/codeready-toolchain/waprojector/pkg/sortkey"
	"github.com/codeready-toolchain/waprojector/pkg/waconfig"
	"github.com/codeready-toolchain/waprojector/pkg/waevents"
)

// Replica owns the projected collections and the Projector that mutates
// them.
type Replica struct {
	mu sync.RWMutex

	state     *projector.State
	projector *projector.Projector
	opts      waconfig.Options

	bound map[socket.EventSource]bool
}

// New constructs an empty Replica. Zero-value opts are filled in with
// waconfig.WithDefaults.
func New(opts waconfig.Options) *Replica {
	opts = waconfig.WithDefaults(opts)
	state := projector.NewState()
	return &Replica{
		state:     state,
		projector: projector.New(state, opts.Socket, opts.Logger),
		opts:      opts,
		bound:     make(map[socket.EventSource]bool),
	}
}

// eventKinds is every event kind the Replica subscribes to on Bind.
var eventKinds = []string{
	waevents.EventConnectionUpdate,
	waevents.EventMessagingHistorySet,
	waevents.EventContactsUpsert,
	waevents.EventContactsUpdate,
	waevents.EventChatsUpsert,
	waevents.EventChatsUpdate,
	waevents.EventChatsDelete,
	waevents.EventMessagesUpsert,
	waevents.EventMessagesUpdate,
	waevents.EventMessagesDelete,
	waevents.EventMessageReceiptUpdate,
	waevents.EventMessagesReaction,
	waevents.EventPresenceUpdate,
	waevents.EventGroupsUpsert,
	waevents.EventGroupsUpdate,
	waevents.EventGroupParticipantsUpdate,
	waevents.EventLabelsEdit,
	waevents.EventLabelsAssociation,
}

// Bind registers projector handlers on source for every event kind the
// Replica consumes. Bind is idempotent per source: calling it a second
// time with the same source is a no-op.
func (r *Replica) Bind(source socket.EventSource) {
	r.mu.Lock()
	already := r.bound[source]
	if !already {
		r.bound[source] = true
	}
	r.mu.Unlock()
	if already {
		return
	}

	for _, kind := range eventKinds {
		kind := kind
		source.On(kind, func(payload any) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.projector.Handle(context.Background(), kind, payload)
		})
	}
}

// Cursor selects a position within a chat's message sequence for
// LoadMessages. At most one of Before/After should be set; if both are
// zero-value, LoadMessages returns a plain prefix.
type Cursor struct {
	Before string // message id
	After  string // message id
}

// LoadMessages returns up to limit messages from jid's ordered sequence.
// With Cursor.Before set, it returns the up-to-limit messages
// immediately preceding that message (preserving order; when more than
// limit precede it, the earliest ones are left out); a missing cursor
// message yields an empty
// result. With Cursor.After set, it returns empty — matching the
// upstream source's own behavior for that cursor shape, which never
// actually returns a suffix despite the parameter's name. With no
// cursor, it returns a plain prefix of length limit.
func (r *Replica) LoadMessages(jid string, limit int, cursor Cursor) []waevents.Message {
	r.mu.RLock()
	defer r.mu.RUnlock()

	dict, ok := r.state.Messages[jid]
	if !ok {
		return []waevents.Message{}
	}

	if cursor.After != "" {
		return []waevents.Message{}
	}
	if cursor.Before != "" {
		return dict.Before(cursor.Before, limit)
	}
	return dict.Prefix(limit)
}

// LoadMessage is a direct (jid, id) lookup.
func (r *Replica) LoadMessage(jid, id string) (waevents.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	dict, ok := r.state.Messages[jid]
	if !ok {
		return waevents.Message{}, ErrMessageNotFound
	}
	m, ok := dict.Get(id)
	if !ok {
		return waevents.Message{}, ErrMessageNotFound
	}
	return m, nil
}

// MostRecentMessage returns the last entry in jid's message sequence.
func (r *Replica) MostRecentMessage(jid string) (waevents.Message, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	dict, ok := r.state.Messages[jid]
	if !ok {
		return waevents.Message{}, false
	}
	return dict.Last()
}

// DisplayName resolves a contact's best display name via the
// Name > VerifiedName > Notify > PushName fallback chain, the same shape
// of resolution other bridges apply over a richer field set. Returns
// empty if jid has no stored contact or every field in the chain is
// empty.
func (r *Replica) DisplayName(jid string) string {
	r.mu.RLock()
	contact, found := r.state.Contacts.FindByID(jid)
	r.mu.RUnlock()
	if !found {
		return ""
	}
	for _, v := range []string{contact.Name, contact.VerifiedName, contact.Notify, contact.PushName} {
		if v != "" {
			return v
		}
	}
	return ""
}

// FetchImageURL returns the contact's cached imgUrl if present;
// otherwise, if sock is non-nil, it delegates to sock.ProfilePictureURL
// and does not cache the result (the contact record isn't touched by a
// plain query — only the contacts.update projection rule writes to it).
func (r *Replica) FetchImageURL(ctx context.Context, jid string, sock socket.Socket) (string, bool) {
	r.mu.RLock()
	contact, found := r.state.Contacts.FindByID(jid)
	r.mu.RUnlock()

	if found && contact.ImgURL != nil {
		return *contact.ImgURL, true
	}
	if sock == nil {
		return "", false
	}
	url, ok, err := sock.ProfilePictureURL(ctx, jid)
	if err != nil || !ok {
		if err != nil {
			r.opts.Logger.Debug("replica: profile picture fetch failed", "jid", jid, "error", err)
		}
		return "", false
	}
	return url, true
}

// FetchGroupMetadata returns cached metadata if present; otherwise
// delegates to sock.GroupMetadata and stores the result.
func (r *Replica) FetchGroupMetadata(ctx context.Context, jid string, sock socket.Socket) (waevents.GroupMetadata, bool) {
	r.mu.RLock()
	meta, found := r.state.Groups.FindByID(jid)
	r.mu.RUnlock()
	if found {
		return meta, true
	}
	if sock == nil {
		return waevents.GroupMetadata{}, false
	}

	fetched, ok, err := sock.GroupMetadata(ctx, jid)
	if err != nil || !ok {
		if err != nil {
			r.opts.Logger.Debug("replica: group metadata fetch failed", "jid", jid, "error", err)
		}
		return waevents.GroupMetadata{}, false
	}

	r.mu.Lock()
	r.state.Groups.UpsertByID(jid, fetched)
	r.mu.Unlock()
	return fetched, true
}

// FetchMessageReceipts returns the userReceipt array of the message
// identified by key, or absent if the message doesn't exist.
func (r *Replica) FetchMessageReceipts(key waevents.MessageKey) ([]waevents.Receipt, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	dict, ok := r.state.Messages[key.RemoteJID]
	if !ok {
		return nil, false
	}
	m, ok := dict.Get(key.ID)
	if !ok {
		return nil, false
	}
	return m.UserReceipt, true
}

// GetLabels returns every stored label.
func (r *Replica) GetLabels() []waevents.Label {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.Labels.FindAll()
}

// GetChatLabels returns the label ids associated with chatId.
func (r *Replica) GetChatLabels(chatID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []string
	for _, a := range r.state.LabelAssociations.Values() {
		if a.Type == waevents.LabelAssociationChat && a.ChatID == chatID {
			out = append(out, a.LabelID)
		}
	}
	return out
}

// GetMessageLabels returns the label ids associated with messageID
// within chatID.
func (r *Replica) GetMessageLabels(chatID, messageID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []string
	for _, a := range r.state.LabelAssociations.Values() {
		if a.Type == waevents.LabelAssociationMessage && a.ChatID == chatID && a.MessageID == messageID {
			out = append(out, a.LabelID)
		}
	}
	return out
}

// ListChats returns every chat ordered by sortkey.Chat — the ordering
// the upstream UI actually renders with, as opposed to the plain
// insertion order the underlying Dictionary stores them in. Not named
// in spec §4.7's operation list, but a direct, low-risk use of
// pkg/sortkey that a complete replica's query surface would offer.
func (r *Replica) ListChats() []waevents.Chat {
	r.mu.RLock()
	chats := r.state.Chats.Values()
	pinAware := r.opts.ChatKeyPinAware == nil || *r.opts.ChatKeyPinAware
	r.mu.RUnlock()

	keyed := make([]struct {
		chat waevents.Chat
		key  sortkey.Chat
	}, len(chats))
	for i, c := range chats {
		keyed[i].chat = c
		keyed[i].key = sortkey.NewChatKey(sortkey.ChatInput{
			ID:                    c.ID,
			ConversationTimestamp: c.ConversationTimestamp,
			Pinned:                c.Pinned,
			Archived:              c.Archived,
		}, pinAware)
	}
	sortByChatKey(keyed)

	out := make([]waevents.Chat, len(keyed))
	for i, k := range keyed {
		out[i] = k.chat
	}
	return out
}

func sortByChatKey(keyed []struct {
	chat waevents.Chat
	key  sortkey.Chat
}) {
	// Insertion sort: chat counts in realistic deployments are small
	// (thousands, not millions) and this keeps the comparator — sortkey.Chat.Less
	// — as the single source of truth for ordering without importing sort
	// for a one-off.
	for i := 1; i < len(keyed); i++ {
		j := i
		for j > 0 && keyed[j].key.Less(keyed[j-1].key) {
			keyed[j], keyed[j-1] = keyed[j-1], keyed[j]
			j--
		}
	}
}

// ToJSON returns the snapshot form of the replica's current state.
func (r *Replica) ToJSON() ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	messages := make(map[string][]waevents.Message, len(r.state.Messages))
	for jid, dict := range r.state.Messages {
		messages[jid] = dict.Values()
	}

	return encodeSnapshot(snapshot{
		Chats:             r.state.Chats.Values(),
		Contacts:          r.state.Contacts.ToJSON(),
		Messages:          messages,
		Labels:            r.state.Labels.ToJSON(),
		LabelAssociations: r.state.LabelAssociations.Values(),
	})
}

// FromJSON replaces the replica's state with the snapshot encoded in
// data.
func (r *Replica) FromJSON(data []byte) error {
	s, err := decodeSnapshot(data)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.state.Chats.FromJSON(s.Chats)
	r.state.Contacts.FromJSON(s.Contacts)
	r.state.Labels.FromJSON(s.Labels)
	r.state.LabelAssociations.FromJSON(s.LabelAssociations)

	r.state.Messages = make(map[string]*ordered.Dictionary[waevents.Message], len(s.Messages))
	for jid, msgs := range s.Messages {
		dict := ordered.NewDictionary(waevents.MessageID)
		dict.FromJSON(msgs)
		r.state.Messages[jid] = dict
	}
	return nil
}

// WriteToFile serializes the replica's state and writes it to path,
// atomically: the snapshot is written to a temp file in the same
// directory and renamed into place, so a reader never observes a
// partially-written snapshot.
func (r *Replica) WriteToFile(path string) error {
	data, err := r.ToJSON()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".snapshot-*.tmp")
	if err != nil {
		return fmt.Errorf("replica: create temp snapshot file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("replica: write temp snapshot file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("replica: close temp snapshot file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replica: rename temp snapshot file: %w", err)
	}
	return nil
}

// ReadFromFile restores the replica's state from path. A non-existent
// path is a silent no-op, per spec §4.7.
func (r *Replica) ReadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("replica: read snapshot file: %w", err)
	}
	return r.FromJSON(data)
}

// Stats is a point-in-time summary of collection sizes, useful for the
// demo inspector and for tests asserting gross projection behavior.
type Stats struct {
	Chats             int
	Contacts          int
	Groups            int
	Labels            int
	LabelAssociations int
	MessagesByChat    map[string]int
}

// Stats returns a Stats snapshot of the replica's current collections.
func (r *Replica) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byChat := make(map[string]int, len(r.state.Messages))
	for jid, dict := range r.state.Messages {
		byChat[jid] = dict.Len()
	}

	return Stats{
		Chats:             r.state.Chats.Len(),
		Contacts:          r.state.Contacts.Count(),
		Groups:            r.state.Groups.Count(),
		Labels:            r.state.Labels.Count(),
		LabelAssociations: r.state.LabelAssociations.Len(),
		MessagesByChat:    byChat,
	}
}
