package sortkey

import "strings"

// LabelAssocKind distinguishes the two association shapes a LabelAssoc
// key can be derived from.
type LabelAssocKind int

const (
	// LabelAssocChat keys an association between a label and a whole chat.
	LabelAssocChat LabelAssocKind = iota
	// LabelAssocMessage keys an association between a label and a single message.
	LabelAssocMessage
)

// LabelAssocInput is the subset of a label association's fields the key
// is derived from.
type LabelAssocInput struct {
	Kind      LabelAssocKind
	ChatID    string
	MessageID string // only used when Kind == LabelAssocMessage
	LabelID   string
}

// LabelAssoc is the derived, lexicographically comparable key for a
// label association.
type LabelAssoc string

// NewLabelAssocKey builds the key: chatId++labelId for a chat
// association, chatId++messageId++labelId for a message association.
func NewLabelAssocKey(in LabelAssocInput) LabelAssoc {
	var b strings.Builder
	b.WriteString(in.ChatID)
	if in.Kind == LabelAssocMessage {
		b.WriteString(in.MessageID)
	}
	b.WriteString(in.LabelID)
	return LabelAssoc(b.String())
}

// Less reports whether a sorts before b: higher keys sort first, matching
// the same reverse lexicographic convention as Chat.Less.
func (a LabelAssoc) Less(b LabelAssoc) bool {
	return strings.Compare(string(a), string(b)) > 0
}
