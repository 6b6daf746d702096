// Package waevents defines the replica's domain entities and the typed
// event payloads the projector consumes. Entities mirror spec §3; event
// payload shapes mirror spec §4.6. None of these types carry behavior —
// mutation rules live in pkg/projector.
package waevents

// Chat is a conversation endpoint identified by a stable, externally
// opaque id (a JID in the upstream protocol). LastMessageID/Mute/MuteUntil
// are carried by every retrieved bridge's chat record but have no event
// kind of their own; they're mutated only through a chats.update partial.
type Chat struct {
	ID                    string `json:"id"`
	Name                  string `json:"name,omitempty"`
	UnreadCount           *int   `json:"unreadCount,omitempty"`
	ConversationTimestamp *int64 `json:"conversationTimestamp,omitempty"`
	Pinned                *int64 `json:"pinned,omitempty"`
	Archived              bool   `json:"archived,omitempty"`
	LastMessageID         string `json:"lastMessageId,omitempty"`
	Mute                  bool   `json:"mute,omitempty"`
	MuteUntil             *int64 `json:"muteUntil,omitempty"`
}

// ChatID satisfies the idOf signature ordered.Dictionary expects.
func ChatID(c Chat) string { return c.ID }

// Contact is an address-book entry keyed by id. PushName is the device's
// self-reported display name, distinct from Name (an address-book name
// the local user assigned); Replica.DisplayName resolves the two via a
// Name > VerifiedName > Notify > PushName fallback chain, the same shape
// of resolution bridges commonly apply over a richer field set.
type Contact struct {
	ID              string         `json:"id"`
	Name            string         `json:"name,omitempty"`
	Notify          string         `json:"notify,omitempty"`
	VerifiedName    string         `json:"verifiedName,omitempty"`
	BusinessProfile map[string]any `json:"businessProfile,omitempty"`
	Status          string         `json:"status,omitempty"`
	ImgURL          *string        `json:"imgUrl,omitempty"`
	PushName        string         `json:"pushName,omitempty"`
}

// MessageKey identifies a message by its owning chat, its per-chat id,
// and whether it was sent by the local account.
type MessageKey struct {
	RemoteJID string `json:"remoteJid"`
	ID        string `json:"id"`
	FromMe    bool   `json:"fromMe"`
}

// Receipt is one user's delivery/read acknowledgement of a message.
type Receipt struct {
	UserJID   string `json:"userJid"`
	Type      string `json:"type,omitempty"`
	Timestamp int64  `json:"t,omitempty"`
}

// Reaction is one user's emoji reaction to a message. An empty Text
// means "remove my prior reaction".
type Reaction struct {
	Key       MessageKey `json:"key"`
	Text      string     `json:"text"`
	Timestamp int64      `json:"senderTimestampMs,omitempty"`
}

// Message is a single chat message. Status is an ordinal 0..5 tracking
// delivery progress (error, pending, server-ack, delivery-ack, read,
// played).
// MediaType/HasMedia are carried as opaque, never-interpreted fields: this
// replica doesn't decode media payloads, but bridges persist a media-type
// discriminator regardless so callers can tell a message apart without
// decoding Message.Message.
type Message struct {
	Key              MessageKey     `json:"key"`
	MessageTimestamp int64          `json:"messageTimestamp,omitempty"`
	Message          map[string]any `json:"message,omitempty"`
	Status           *int           `json:"status,omitempty"`
	Starred          bool           `json:"starred,omitempty"`
	UserReceipt      []Receipt      `json:"userReceipt,omitempty"`
	Reactions        []Reaction     `json:"reactions,omitempty"`
	HasMedia         bool           `json:"hasMedia,omitempty"`
	MediaType        string         `json:"mediaType,omitempty"`
}

// MessageID satisfies the idOf signature for a chat's per-message
// Dictionary: messages are keyed by key.id within their chat.
func MessageID(m Message) string { return m.Key.ID }

// Participant is one member of a group, with admin/super-admin flags
// mutated by the group-participants state machine. LID is an optional
// @lid identity distinct from the phone-number JID in ID; it's untouched
// by add/remove/promote/demote, which key only on ID.
type Participant struct {
	ID           string `json:"id"`
	LID          string `json:"lid,omitempty"`
	IsAdmin      bool   `json:"isAdmin,omitempty"`
	IsSuperAdmin bool   `json:"isSuperAdmin,omitempty"`
}

// GroupMetadata describes a group chat: its subject, owner, and roster.
type GroupMetadata struct {
	ID           string         `json:"id"`
	Subject      string         `json:"subject,omitempty"`
	Owner        string         `json:"owner,omitempty"`
	Participants []Participant  `json:"participants,omitempty"`
	Creation     int64          `json:"creation,omitempty"`
	Extra        map[string]any `json:"-"`
}

// GroupID returns g.ID in the idOf shape ordered.Dictionary expects. The
// projector's groups collection is an ordered.Repository keyed by the
// same id and does not call it.
func GroupID(g GroupMetadata) string { return g.ID }

// Label is a user-defined chat/message tag. Deleted is a tombstone: a
// labels.edit carrying Deleted == true removes the label outright rather
// than leaving a visible tombstone in the collection.
type Label struct {
	ID      string `json:"id"`
	Name    string `json:"name,omitempty"`
	Color   int    `json:"color,omitempty"`
	Deleted bool   `json:"deleted,omitempty"`
}

// LabelAssociationType distinguishes a chat-level label tag from a
// message-level one.
type LabelAssociationType string

const (
	LabelAssociationChat    LabelAssociationType = "chat"
	LabelAssociationMessage LabelAssociationType = "message"
)

// LabelAssociation links a label to either a whole chat or a single
// message within a chat.
type LabelAssociation struct {
	Type      LabelAssociationType `json:"type"`
	ChatID    string               `json:"chatId"`
	MessageID string               `json:"messageId,omitempty"`
	LabelID   string               `json:"labelId"`
}

// PresenceData is one participant's transient typing/online state within
// a chat. Never persisted to a snapshot.
type PresenceData struct {
	LastKnownPresence string `json:"lastKnownPresence,omitempty"`
	LastSeen          *int64 `json:"lastSeen,omitempty"`
}

// ConnectionState is a partial record of the upstream socket's
// connection lifecycle; connection.update events merge into it
// field-wise, never clearing a field the partial omits.
type ConnectionState struct {
	Connection     string         `json:"connection,omitempty"`
	QR             string         `json:"qr,omitempty"`
	IsOnline       *bool          `json:"isOnline,omitempty"`
	LastDisconnect map[string]any `json:"lastDisconnect,omitempty"`
}
