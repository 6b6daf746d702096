// Package projector implements the pure folding rules that turn upstream
// events into replica state. Projection is total: every rule either
// mutates state or silently (at most a debug log) ignores a malformed or
// inapplicable event. No rule panics and no rule blocks except the two
// documented async side-fetches (contacts.update imgUrl=="changed",
// and the Replica's own FetchImageURL/FetchGroupMetadata, which live on
// Replica rather than here since they're query-path, not projection).
package projector

import (
	"context"
	"log/slog"
	"math"

	"github.com/codeready-toolchain/waprojector/pkg/ordered"
	"github.com/codeready-toolchain/waprojector/pkg/socket"
	"github.com/codeready-toolchain/waprojector/pkg/waevents"
)

// State is the collection set a Projector folds events into. It is the
// same State a Replica owns and queries; Projector holds a reference to
// it rather than a copy so Replica and Projector always observe the same
// data.
type State struct {
	Connection waevents.ConnectionState

	Chats    *ordered.Dictionary[waevents.Chat]
	Contacts *ordered.Repository[waevents.Contact]
	Messages map[string]*ordered.Dictionary[waevents.Message] // remoteJid -> per-chat messages
	Groups   *ordered.Repository[waevents.GroupMetadata]
	Labels   *ordered.Repository[waevents.Label]

	LabelAssociations *ordered.Dictionary[waevents.LabelAssociation]

	// Presences is transient: never read from or written to a snapshot.
	Presences map[string]map[string]waevents.PresenceData
}

// NewState constructs an empty State.
func NewState() *State {
	return &State{
		Chats:             ordered.NewDictionary(waevents.ChatID),
		Contacts:          ordered.NewRepository(shallowCopy[waevents.Contact]),
		Messages:          make(map[string]*ordered.Dictionary[waevents.Message]),
		Groups:            ordered.NewRepository(shallowCopy[waevents.GroupMetadata]),
		Labels:            ordered.NewRepository(shallowCopy[waevents.Label]),
		LabelAssociations: ordered.NewDictionary(labelAssociationID),
		Presences:         make(map[string]map[string]waevents.PresenceData),
	}
}

// shallowCopy is the copyOf function every ordered.Repository in State
// uses: Contact, GroupMetadata, and Label all hold only value fields,
// slices, and maps, so a plain struct copy is the shallow copy
// Repository's copy-on-insert contract asks for.
func shallowCopy[V any](v V) V { return v }

// labelAssociationID derives the Dictionary id for a LabelAssociation:
// the same key §4.4 and pkg/sortkey.NewLabelAssocKey both use, so
// storage order and sort order agree on identity even though this
// Dictionary's iteration order is plain insertion order, not the
// reverse-lexicographic sort order sortkey derives.
func labelAssociationID(a waevents.LabelAssociation) string {
	if a.Type == waevents.LabelAssociationMessage {
		return a.ChatID + a.MessageID + a.LabelID
	}
	return a.ChatID + a.LabelID
}

// messagesFor returns (creating if absent) the per-chat message
// Dictionary for jid.
func (s *State) messagesFor(jid string) *ordered.Dictionary[waevents.Message] {
	d, ok := s.Messages[jid]
	if !ok {
		d = ordered.NewDictionary(waevents.MessageID)
		s.Messages[jid] = d
	}
	return d
}

// maxLabels is Invariant L: no more than this many non-deleted labels
// may exist at once.
const maxLabels = 20

// Projector folds events into a State under a single-writer discipline:
// all Handle calls must come from one logical execution context.
type Projector struct {
	state  *State
	socket socket.Socket
	logger *slog.Logger
}

// New constructs a Projector over state. sock may be nil (see
// waconfig.Options.Socket); logger defaults to slog.Default() if nil.
func New(state *State, sock socket.Socket, logger *slog.Logger) *Projector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Projector{state: state, socket: sock, logger: logger}
}

// Handle dispatches payload to the rule for kind. Unknown kinds are
// logged at debug and otherwise ignored — projection is total. ctx
// bounds only the one async side-fetch a rule may issue (see
// refreshContactImage); it has no effect on the (synchronous) rest.
func (p *Projector) Handle(ctx context.Context, kind string, payload any) {
	switch kind {
	case waevents.EventConnectionUpdate:
		p.onConnectionUpdate(payload)
	case waevents.EventMessagingHistorySet:
		p.onMessagingHistorySet(ctx, payload)
	case waevents.EventContactsUpsert:
		p.onContactsUpsert(payload)
	case waevents.EventContactsUpdate:
		p.onContactsUpdate(ctx, payload)
	case waevents.EventChatsUpsert:
		p.onChatsUpsert(payload)
	case waevents.EventChatsUpdate:
		p.onChatsUpdate(payload)
	case waevents.EventChatsDelete:
		p.onChatsDelete(payload)
	case waevents.EventMessagesUpsert:
		p.onMessagesUpsert(payload)
	case waevents.EventMessagesUpdate:
		p.onMessagesUpdate(payload)
	case waevents.EventMessagesDelete:
		p.onMessagesDelete(payload)
	case waevents.EventMessageReceiptUpdate:
		p.onMessageReceiptUpdate(payload)
	case waevents.EventMessagesReaction:
		p.onMessagesReaction(payload)
	case waevents.EventPresenceUpdate:
		p.onPresenceUpdate(payload)
	case waevents.EventGroupsUpsert:
		p.onGroupsUpsert(payload)
	case waevents.EventGroupsUpdate:
		p.onGroupsUpdate(payload)
	case waevents.EventGroupParticipantsUpdate:
		p.onGroupParticipantsUpdate(payload)
	case waevents.EventLabelsEdit:
		p.onLabelsEdit(payload)
	case waevents.EventLabelsAssociation:
		p.onLabelsAssociation(payload)
	default:
		p.logger.Debug("projector: unknown event kind, ignoring", "kind", kind)
	}
}

func (p *Projector) onConnectionUpdate(payload any) {
	partial, ok := payload.(waevents.ConnectionState)
	if !ok {
		p.logger.Debug("projector: connection.update payload has wrong type", "payload", payload)
		return
	}
	if partial.Connection != "" {
		p.state.Connection.Connection = partial.Connection
	}
	if partial.QR != "" {
		p.state.Connection.QR = partial.QR
	}
	if partial.IsOnline != nil {
		p.state.Connection.IsOnline = partial.IsOnline
	}
	if partial.LastDisconnect != nil {
		p.state.Connection.LastDisconnect = partial.LastDisconnect
	}
}

func (p *Projector) onMessagingHistorySet(ctx context.Context, payload any) {
	set, ok := payload.(waevents.MessagingHistorySet)
	if !ok {
		p.logger.Debug("projector: messaging-history.set payload has wrong type", "payload", payload)
		return
	}
	if set.SyncType == waevents.HistorySyncTypeOnDemand {
		return
	}

	if set.IsLatest {
		p.state.Chats.Clear()
		p.state.Contacts.Clear()
		p.state.Messages = make(map[string]*ordered.Dictionary[waevents.Message])
	}

	for _, c := range set.Chats {
		p.state.Chats.Upsert(c, ordered.Append)
	}
	for _, c := range set.Contacts {
		p.mergeContact(c)
	}
	p.onMessagesUpsert(waevents.MessagesUpsert{Messages: set.Messages, Type: waevents.MessagesUpsertAppend})
}

// mergeContact is the shallow, newer-value-wins merge contacts.upsert
// and messaging-history.set both use.
func (p *Projector) mergeContact(c waevents.Contact) {
	existing, ok := p.state.Contacts.FindByID(c.ID)
	if !ok {
		p.state.Contacts.UpsertByID(c.ID, c)
		return
	}
	if c.Name != "" {
		existing.Name = c.Name
	}
	if c.Notify != "" {
		existing.Notify = c.Notify
	}
	if c.VerifiedName != "" {
		existing.VerifiedName = c.VerifiedName
	}
	if c.BusinessProfile != nil {
		existing.BusinessProfile = c.BusinessProfile
	}
	if c.Status != "" {
		existing.Status = c.Status
	}
	if c.ImgURL != nil {
		existing.ImgURL = c.ImgURL
	}
	if c.PushName != "" {
		existing.PushName = c.PushName
	}
	p.state.Contacts.UpsertByID(c.ID, existing)
}

func (p *Projector) onContactsUpsert(payload any) {
	list, ok := payload.([]waevents.Contact)
	if !ok {
		p.logger.Debug("projector: contacts.upsert payload has wrong type", "payload", payload)
		return
	}
	for _, c := range list {
		p.mergeContact(c)
	}
}

func (p *Projector) onContactsUpdate(ctx context.Context, payload any) {
	list, ok := payload.([]waevents.ContactsUpdate)
	if !ok {
		p.logger.Debug("projector: contacts.update payload has wrong type", "payload", payload)
		return
	}
	for _, u := range list {
		p.applyContactUpdate(ctx, u)
	}
}

func (p *Projector) applyContactUpdate(ctx context.Context, u waevents.ContactsUpdate) {
	existing, ok := p.state.Contacts.FindByID(u.ID)
	if !ok {
		// Invariant H (hash fallback) is not implemented: the spec permits
		// its absence, and without a socket-independent hash source there
		// is nothing deterministic to fall back to here.
		p.logger.Debug("projector: contacts.update for unknown id, ignoring", "id", u.ID)
		return
	}

	if u.ImgURL != nil {
		switch *u.ImgURL {
		case waevents.ImgURLSentinelRemoved:
			existing.ImgURL = nil
		case waevents.ImgURLSentinelChanged:
			p.refreshContactImage(ctx, u.ID)
			// Pick up the refreshed (or cleared) ImgURL so the write-back
			// below doesn't restore the stale one.
			existing, _ = p.state.Contacts.FindByID(u.ID)
		default:
			existing.ImgURL = u.ImgURL
		}
	}
	if u.Name != nil {
		existing.Name = *u.Name
	}
	if u.Notify != nil {
		existing.Notify = *u.Notify
	}
	if u.VerifiedName != nil {
		existing.VerifiedName = *u.VerifiedName
	}
	if u.BusinessProfile != nil {
		existing.BusinessProfile = u.BusinessProfile
	}
	if u.Status != nil {
		existing.Status = *u.Status
	}
	p.state.Contacts.UpsertByID(u.ID, existing)
}

// refreshContactImage resolves imgUrl=="changed": with a socket
// configured, the fetch runs synchronously from the caller's point of
// view here (the socket capability itself owns any suspension); without
// one, the cached image is simply cleared. Either way the write-back
// merges only ImgURL, so any unrelated field changed by a
// concurrently-projected event in between is preserved.
func (p *Projector) refreshContactImage(ctx context.Context, id string) {
	if p.socket == nil {
		p.clearContactImage(id)
		return
	}
	url, ok, err := p.socket.ProfilePictureURL(ctx, id)
	if err != nil {
		p.logger.Debug("projector: profile picture fetch failed", "id", id, "error", err)
		p.clearContactImage(id)
		return
	}
	if !ok {
		p.clearContactImage(id)
		return
	}
	existing, found := p.state.Contacts.FindByID(id)
	if !found {
		return
	}
	existing.ImgURL = &url
	p.state.Contacts.UpsertByID(id, existing)
}

func (p *Projector) clearContactImage(id string) {
	existing, ok := p.state.Contacts.FindByID(id)
	if !ok {
		return
	}
	existing.ImgURL = nil
	p.state.Contacts.UpsertByID(id, existing)
}

func (p *Projector) onChatsUpsert(payload any) {
	list, ok := payload.([]waevents.Chat)
	if !ok {
		p.logger.Debug("projector: chats.upsert payload has wrong type", "payload", payload)
		return
	}
	for _, c := range list {
		p.state.Chats.Upsert(c, ordered.Append)
	}
}

func (p *Projector) onChatsUpdate(payload any) {
	list, ok := payload.([]waevents.ChatsUpdate)
	if !ok {
		p.logger.Debug("projector: chats.update payload has wrong type", "payload", payload)
		return
	}
	for _, u := range list {
		p.applyChatUpdate(u)
	}
}

// applyChatUpdate merges u into the stored chat, applying Invariant U
// (unread accumulation) to UnreadCount and a plain field-wise merge to
// everything else. Skips silently if the chat doesn't exist.
func (p *Projector) applyChatUpdate(u waevents.ChatsUpdate) {
	p.state.Chats.UpdateFunc(u.ID, func(c waevents.Chat) waevents.Chat {
		if u.Name != nil {
			c.Name = *u.Name
		}
		if u.ConversationTimestamp != nil {
			c.ConversationTimestamp = u.ConversationTimestamp
		}
		if u.Pinned != nil {
			c.Pinned = u.Pinned
		}
		if u.Archived != nil {
			c.Archived = *u.Archived
		}
		if u.UnreadCount != nil {
			c.UnreadCount = accumulateUnread(c.UnreadCount, *u.UnreadCount)
		}
		if u.LastMessageID != nil {
			c.LastMessageID = *u.LastMessageID
		}
		if u.Mute != nil {
			c.Mute = *u.Mute
		}
		if u.MuteUntil != nil {
			c.MuteUntil = u.MuteUntil
		}
		return c
	})
}

// accumulateUnread implements Invariant U: a positive delta accumulates
// onto the stored value (treating absent as 0, saturating at
// math.MaxInt32 rather than overflowing); a zero or negative delta
// replaces the stored value outright.
func accumulateUnread(stored *int, delta int) *int {
	if delta <= 0 {
		v := delta
		return &v
	}
	base := 0
	if stored != nil {
		base = *stored
	}
	sum := base + delta
	if sum > math.MaxInt32 || sum < base {
		sum = math.MaxInt32
	}
	return &sum
}

func (p *Projector) onChatsDelete(payload any) {
	ids, ok := payload.([]string)
	if !ok {
		p.logger.Debug("projector: chats.delete payload has wrong type", "payload", payload)
		return
	}
	for _, id := range ids {
		p.state.Chats.Remove(id)
	}
}

func (p *Projector) onMessagesUpsert(payload any) {
	up, ok := payload.(waevents.MessagesUpsert)
	if !ok {
		p.logger.Debug("projector: messages.upsert payload has wrong type", "payload", payload)
		return
	}
	mode := ordered.Append
	if up.Type == waevents.MessagesUpsertPrepend {
		mode = ordered.Prepend
	}
	for _, m := range up.Messages {
		dict := p.state.messagesFor(m.Key.RemoteJID)
		dict.Upsert(m, mode)

		if up.Type == waevents.MessagesUpsertNotify {
			if _, exists := p.state.Chats.Get(m.Key.RemoteJID); !exists {
				zero := 0
				p.state.Chats.Upsert(waevents.Chat{ID: m.Key.RemoteJID, UnreadCount: &zero}, ordered.Append)
			}
		}
	}
}

func (p *Projector) onMessagesUpdate(payload any) {
	list, ok := payload.([]waevents.MessageUpdate)
	if !ok {
		p.logger.Debug("projector: messages.update payload has wrong type", "payload", payload)
		return
	}
	for _, u := range list {
		p.applyMessageUpdate(u)
	}
}

func (p *Projector) applyMessageUpdate(u waevents.MessageUpdate) {
	dict, ok := p.state.Messages[u.Key.RemoteJID]
	if !ok {
		return
	}
	dict.UpdateFunc(u.Key.ID, func(m waevents.Message) waevents.Message {
		fields := u.Update

		if rawStatus, present := fields["status"]; present {
			newStatus, ok := toInt(rawStatus)
			if ok {
				if m.Status == nil || newStatus > *m.Status {
					m.Status = &newStatus
				}
				// else: dropped, per Invariant M — remaining fields still apply.
			}
		}
		if rawTS, present := fields["messageTimestamp"]; present {
			if ts, ok := toInt64(rawTS); ok {
				m.MessageTimestamp = ts
			}
		}
		if rawMsg, present := fields["message"]; present {
			if mp, ok := rawMsg.(map[string]any); ok {
				m.Message = mp
			}
		}
		if rawStarred, present := fields["starred"]; present {
			if starred, ok := rawStarred.(bool); ok {
				m.Starred = starred
			}
		}
		return m
	})
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}

func (p *Projector) onMessagesDelete(payload any) {
	del, ok := payload.(waevents.MessagesDelete)
	if !ok {
		p.logger.Debug("projector: messages.delete payload has wrong type", "payload", payload)
		return
	}
	if del.All {
		if dict, ok := p.state.Messages[del.JID]; ok {
			dict.Clear()
		}
		return
	}
	for _, key := range del.Keys {
		if dict, ok := p.state.Messages[key.RemoteJID]; ok {
			dict.Remove(key.ID)
		}
	}
}

func (p *Projector) onMessageReceiptUpdate(payload any) {
	list, ok := payload.([]waevents.MessageReceiptUpdate)
	if !ok {
		p.logger.Debug("projector: message-receipt.update payload has wrong type", "payload", payload)
		return
	}
	for _, u := range list {
		dict, ok := p.state.Messages[u.Key.RemoteJID]
		if !ok {
			continue
		}
		dict.UpdateFunc(u.Key.ID, func(m waevents.Message) waevents.Message {
			merged := make([]waevents.Receipt, 0, len(m.UserReceipt)+1)
			replaced := false
			for _, r := range m.UserReceipt {
				if r.UserJID == u.Receipt.UserJID {
					merged = append(merged, u.Receipt)
					replaced = true
					continue
				}
				merged = append(merged, r)
			}
			if !replaced {
				merged = append(merged, u.Receipt)
			}
			m.UserReceipt = merged
			return m
		})
	}
}

func (p *Projector) onMessagesReaction(payload any) {
	list, ok := payload.([]waevents.MessageReactionUpdate)
	if !ok {
		p.logger.Debug("projector: messages.reaction payload has wrong type", "payload", payload)
		return
	}
	for _, u := range list {
		dict, ok := p.state.Messages[u.Key.RemoteJID]
		if !ok {
			continue
		}
		dict.UpdateFunc(u.Key.ID, func(m waevents.Message) waevents.Message {
			author := u.Reaction.Key.ID
			out := make([]waevents.Reaction, 0, len(m.Reactions)+1)
			for _, r := range m.Reactions {
				if r.Key.ID == author {
					continue
				}
				out = append(out, r)
			}
			if u.Reaction.Text != "" {
				out = append(out, u.Reaction)
			}
			m.Reactions = out
			return m
		})
	}
}

func (p *Projector) onPresenceUpdate(payload any) {
	up, ok := payload.(waevents.PresenceUpdate)
	if !ok {
		p.logger.Debug("projector: presence.update payload has wrong type", "payload", payload)
		return
	}
	chat, ok := p.state.Presences[up.ID]
	if !ok {
		chat = make(map[string]waevents.PresenceData)
		p.state.Presences[up.ID] = chat
	}
	for participant, data := range up.Presences {
		chat[participant] = data
	}
}

func (p *Projector) onGroupsUpsert(payload any) {
	list, ok := payload.([]waevents.GroupMetadata)
	if !ok {
		p.logger.Debug("projector: groups.upsert payload has wrong type", "payload", payload)
		return
	}
	for _, g := range list {
		p.state.Groups.UpsertByID(g.ID, g)
	}
}

func (p *Projector) onGroupsUpdate(payload any) {
	list, ok := payload.([]waevents.GroupsUpdate)
	if !ok {
		p.logger.Debug("projector: groups.update payload has wrong type", "payload", payload)
		return
	}
	for _, u := range list {
		existing, found := p.state.Groups.FindByID(u.ID)
		if !found {
			continue
		}
		if u.Subject != nil {
			existing.Subject = *u.Subject
		}
		if u.Owner != nil {
			existing.Owner = *u.Owner
		}
		if u.Creation != nil {
			existing.Creation = *u.Creation
		}
		p.state.Groups.UpsertByID(u.ID, existing)
	}
}

func (p *Projector) onGroupParticipantsUpdate(payload any) {
	u, ok := payload.(waevents.GroupParticipantsUpdate)
	if !ok {
		p.logger.Debug("projector: group-participants.update payload has wrong type", "payload", payload)
		return
	}
	group, found := p.state.Groups.FindByID(u.ID)
	if !found {
		return
	}

	members := make(map[string]bool, len(u.Participants))
	for _, id := range u.Participants {
		members[id] = true
	}

	switch u.Action {
	case waevents.GroupParticipantsAdd:
		existingIDs := make(map[string]bool, len(group.Participants))
		for _, part := range group.Participants {
			existingIDs[part.ID] = true
		}
		for _, id := range u.Participants {
			if existingIDs[id] {
				continue
			}
			group.Participants = append(group.Participants, waevents.Participant{ID: id})
		}
	case waevents.GroupParticipantsRemove:
		out := group.Participants[:0:0]
		for _, part := range group.Participants {
			if !members[part.ID] {
				out = append(out, part)
			}
		}
		group.Participants = out
	case waevents.GroupParticipantsPromote:
		for i, part := range group.Participants {
			if members[part.ID] {
				group.Participants[i].IsAdmin = true
			}
		}
	case waevents.GroupParticipantsDemote:
		for i, part := range group.Participants {
			if members[part.ID] {
				group.Participants[i].IsAdmin = false
			}
		}
	default:
		p.logger.Debug("projector: group-participants.update unknown action", "action", u.Action)
		return
	}

	p.state.Groups.UpsertByID(u.ID, group)
}

func (p *Projector) onLabelsEdit(payload any) {
	label, ok := payload.(waevents.Label)
	if !ok {
		p.logger.Debug("projector: labels.edit payload has wrong type", "payload", payload)
		return
	}

	if label.Deleted {
		p.state.Labels.DeleteByID(label.ID)
		return
	}

	if _, exists := p.state.Labels.FindByID(label.ID); !exists {
		nonDeleted := 0
		for _, l := range p.state.Labels.FindAll() {
			if !l.Deleted {
				nonDeleted++
			}
		}
		if nonDeleted >= maxLabels {
			p.logger.Debug("projector: labels.edit rejected, 20-label cap reached", "id", label.ID)
			return
		}
	}
	p.state.Labels.UpsertByID(label.ID, label)
}

func (p *Projector) onLabelsAssociation(payload any) {
	e, ok := payload.(waevents.LabelAssociationEvent)
	if !ok {
		p.logger.Debug("projector: labels.association payload has wrong type", "payload", payload)
		return
	}
	switch e.Type {
	case waevents.LabelAssociationOpAdd:
		p.state.LabelAssociations.Upsert(e.Association, ordered.Append)
	case waevents.LabelAssociationOpRemove:
		p.state.LabelAssociations.Remove(labelAssociationID(e.Association))
	default:
		p.logger.Error("projector: labels.association unknown type", "type", e.Type)
	}
}
