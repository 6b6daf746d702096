package sortkey

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLabelAssocKey_ChatAssociation(t *testing.T) {
	k := NewLabelAssocKey(LabelAssocInput{Kind: LabelAssocChat, ChatID: "chat1", LabelID: "label1"})
	assert.Equal(t, LabelAssoc("chat1label1"), k)
}

func TestLabelAssocKey_MessageAssociation(t *testing.T) {
	k := NewLabelAssocKey(LabelAssocInput{
		Kind: LabelAssocMessage, ChatID: "chat1", MessageID: "msg1", LabelID: "label1",
	})
	assert.Equal(t, LabelAssoc("chat1msg1label1"), k)
}

func TestLabelAssocKey_LessIsReverseLexicographic(t *testing.T) {
	a := LabelAssoc("a")
	b := LabelAssoc("b")
	assert.True(t, b.Less(a))
	assert.False(t, a.Less(b))
}
