package waevents

// Event kinds the replica's EventProjector consumes, matching the
// upstream socket's own event names verbatim so adapters can route on
// the string without a translation table.
const (
	EventConnectionUpdate        = "connection.update"
	EventMessagingHistorySet     = "messaging-history.set"
	EventContactsUpsert          = "contacts.upsert"
	EventContactsUpdate          = "contacts.update"
	EventChatsUpsert             = "chats.upsert"
	EventChatsUpdate             = "chats.update"
	EventChatsDelete             = "chats.delete"
	EventMessagesUpsert          = "messages.upsert"
	EventMessagesUpdate          = "messages.update"
	EventMessagesDelete          = "messages.delete"
	EventMessageReceiptUpdate    = "message-receipt.update"
	EventMessagesReaction        = "messages.reaction"
	EventPresenceUpdate          = "presence.update"
	EventGroupsUpsert            = "groups.upsert"
	EventGroupsUpdate            = "groups.update"
	EventGroupParticipantsUpdate = "group-participants.update"
	EventLabelsEdit              = "labels.edit"
	EventLabelsAssociation       = "labels.association"
)

// HistorySyncType distinguishes a full/recent history sync from an
// on-demand one. Only the former is projected; on-demand syncs are
// ignored entirely per the messaging-history.set rule.
type HistorySyncType string

const (
	HistorySyncTypeInitial  HistorySyncType = "initial"
	HistorySyncTypeRecent   HistorySyncType = "recent"
	HistorySyncTypePushName HistorySyncType = "push-name"
	HistorySyncTypeOnDemand HistorySyncType = "on-demand"
)

// MessagingHistorySet is the payload of messaging-history.set.
type MessagingHistorySet struct {
	Chats    []Chat          `json:"chats"`
	Contacts []Contact       `json:"contacts"`
	Messages []Message       `json:"messages"`
	IsLatest bool            `json:"isLatest"`
	SyncType HistorySyncType `json:"syncType,omitempty"`
}

// ContactsUpdate is one element of a contacts.update event. ImgURL
// additionally carries the sentinel values "removed" / "changed" (see
// ImgURLSentinelRemoved / ImgURLSentinelChanged) on top of an ordinary
// URL; every other non-absent field merges shallowly into the stored
// contact.
type ContactsUpdate struct {
	ID              string         `json:"id"`
	Name            *string        `json:"name,omitempty"`
	Notify          *string        `json:"notify,omitempty"`
	VerifiedName    *string        `json:"verifiedName,omitempty"`
	BusinessProfile map[string]any `json:"businessProfile,omitempty"`
	Status          *string        `json:"status,omitempty"`
	ImgURL          *string        `json:"imgUrl,omitempty"`
}

const (
	ImgURLSentinelRemoved = "removed"
	ImgURLSentinelChanged = "changed"
)

// ChatsUpdate is one element of a chats.update event: a partial chat
// identified by ID, merged field-wise into the stored chat per
// Invariant U for UnreadCount.
type ChatsUpdate struct {
	ID                    string  `json:"id"`
	Name                  *string `json:"name,omitempty"`
	UnreadCount           *int    `json:"unreadCount,omitempty"`
	ConversationTimestamp *int64  `json:"conversationTimestamp,omitempty"`
	Pinned                *int64  `json:"pinned,omitempty"`
	Archived              *bool   `json:"archived,omitempty"`
	LastMessageID         *string `json:"lastMessageId,omitempty"`
	Mute                  *bool   `json:"mute,omitempty"`
	MuteUntil             *int64  `json:"muteUntil,omitempty"`
}

// MessagesUpsertType selects the insertion end messages.upsert uses, and
// whether a bare notify should synthesize a new chat.
type MessagesUpsertType string

const (
	MessagesUpsertAppend  MessagesUpsertType = "append"
	MessagesUpsertPrepend MessagesUpsertType = "prepend"
	MessagesUpsertNotify  MessagesUpsertType = "notify"
)

// MessagesUpsert is the payload of messages.upsert.
type MessagesUpsert struct {
	Messages []Message          `json:"messages"`
	Type     MessagesUpsertType `json:"type"`
}

// MessageUpdate carries a partial Message to merge into the message
// identified by Key; only the fields present in Update are applied, and
// Status is additionally subject to Invariant M (monotonic, never
// decreasing).
type MessageUpdate struct {
	Key    MessageKey     `json:"key"`
	Update map[string]any `json:"update"`
}

// MessagesDelete is the payload of messages.delete. Exactly one of Keys
// or (All, JID) is populated; which shape is in use is determined by
// whether All is true.
type MessagesDelete struct {
	Keys []MessageKey `json:"keys,omitempty"`
	All  bool         `json:"all,omitempty"`
	JID  string       `json:"jid,omitempty"`
}

// MessageReceiptUpdate is one element of a message-receipt.update event.
type MessageReceiptUpdate struct {
	Key     MessageKey `json:"key"`
	Receipt Receipt    `json:"receipt"`
}

// MessageReactionUpdate is one element of a messages.reaction event.
type MessageReactionUpdate struct {
	Key      MessageKey `json:"key"`
	Reaction Reaction   `json:"reaction"`
}

// PresenceUpdate is the payload of presence.update: a per-chat map of
// participant id to presence state, merged into the chat's presence map.
type PresenceUpdate struct {
	ID        string                  `json:"id"`
	Presences map[string]PresenceData `json:"presences"`
}

// GroupsUpdate is one element of a groups.update event: a partial group
// identified by ID, merged field-wise — and only applied if metadata for
// that group already exists.
type GroupsUpdate struct {
	ID       string  `json:"id"`
	Subject  *string `json:"subject,omitempty"`
	Owner    *string `json:"owner,omitempty"`
	Creation *int64  `json:"creation,omitempty"`
}

// GroupParticipantsAction selects which state-machine transition
// group-participants.update applies to the listed participant ids.
type GroupParticipantsAction string

const (
	GroupParticipantsAdd     GroupParticipantsAction = "add"
	GroupParticipantsRemove  GroupParticipantsAction = "remove"
	GroupParticipantsPromote GroupParticipantsAction = "promote"
	GroupParticipantsDemote  GroupParticipantsAction = "demote"
)

// GroupParticipantsUpdate is the payload of group-participants.update.
type GroupParticipantsUpdate struct {
	ID           string                  `json:"id"`
	Author       string                  `json:"author,omitempty"`
	Participants []string                `json:"participants"`
	Action       GroupParticipantsAction `json:"action"`
}

// LabelAssociationOp selects whether labels.association adds or removes
// the carried association.
type LabelAssociationOp string

const (
	LabelAssociationOpAdd    LabelAssociationOp = "add"
	LabelAssociationOpRemove LabelAssociationOp = "remove"
)

// LabelAssociationEvent is the payload of labels.association.
type LabelAssociationEvent struct {
	Type        LabelAssociationOp `json:"type"`
	Association LabelAssociation   `json:"association"`
}
