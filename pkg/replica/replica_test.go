package replica

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/waprojector/pkg/socket"
	"github.com/codeready-toolchain/waprojector/pkg/waconfig"
	"github.com/codeready-toolchain/waprojector/pkg/waevents"
)

// fakeSource is a minimal socket.EventSource a test can push events
// through directly, without a real upstream transport.
type fakeSource struct {
	handlers map[string][]socket.Handler
}

func newFakeSource() *fakeSource {
	return &fakeSource{handlers: make(map[string][]socket.Handler)}
}

func (f *fakeSource) On(kind string, h socket.Handler) func() {
	f.handlers[kind] = append(f.handlers[kind], h)
	return func() {}
}

func (f *fakeSource) emit(kind string, payload any) {
	for _, h := range f.handlers[kind] {
		h(payload)
	}
}

func intPtr(i int) *int { return &i }

func TestBind_ProjectsEmittedEvents(t *testing.T) {
	r := New(waconfig.DefaultOptions())
	src := newFakeSource()
	r.Bind(src)

	src.emit(waevents.EventChatsUpsert, []waevents.Chat{{ID: "A", UnreadCount: intPtr(3)}})

	msgs := r.LoadMessages("A", 10, Cursor{})
	assert.Empty(t, msgs)
	assert.Equal(t, 1, r.Stats().Chats)
}

func TestBind_IsIdempotentPerSource(t *testing.T) {
	r := New(waconfig.DefaultOptions())
	src := newFakeSource()
	r.Bind(src)
	r.Bind(src)

	src.emit(waevents.EventChatsUpsert, []waevents.Chat{{ID: "A"}})

	// If Bind double-registered, this chat would be upserted twice, which
	// is harmless for Upsert itself but would mean every other handler
	// double-fires too; assert the simplest observable symptom is absent.
	assert.Equal(t, 1, r.Stats().Chats)
}

func TestLoadMessages_NoCursorReturnsPrefix(t *testing.T) {
	r := New(waconfig.DefaultOptions())
	src := newFakeSource()
	r.Bind(src)

	src.emit(waevents.EventMessagesUpsert, waevents.MessagesUpsert{
		Messages: []waevents.Message{
			{Key: waevents.MessageKey{ID: "m1", RemoteJID: "A"}},
			{Key: waevents.MessageKey{ID: "m2", RemoteJID: "A"}},
			{Key: waevents.MessageKey{ID: "m3", RemoteJID: "A"}},
		},
		Type: waevents.MessagesUpsertAppend,
	})

	got := r.LoadMessages("A", 2, Cursor{})
	require.Len(t, got, 2)
	assert.Equal(t, "m1", got[0].Key.ID)
	assert.Equal(t, "m2", got[1].Key.ID)
}

func TestLoadMessages_BeforeCursorReturnsStrictPrefix(t *testing.T) {
	r := New(waconfig.DefaultOptions())
	src := newFakeSource()
	r.Bind(src)

	src.emit(waevents.EventMessagesUpsert, waevents.MessagesUpsert{
		Messages: []waevents.Message{
			{Key: waevents.MessageKey{ID: "m1", RemoteJID: "A"}},
			{Key: waevents.MessageKey{ID: "m2", RemoteJID: "A"}},
			{Key: waevents.MessageKey{ID: "m3", RemoteJID: "A"}},
		},
		Type: waevents.MessagesUpsertAppend,
	})

	got := r.LoadMessages("A", 10, Cursor{Before: "m3"})
	require.Len(t, got, 2)
	assert.Equal(t, "m1", got[0].Key.ID)
	assert.Equal(t, "m2", got[1].Key.ID)
}

func TestLoadMessages_MissingCursorMessageYieldsEmpty(t *testing.T) {
	r := New(waconfig.DefaultOptions())
	src := newFakeSource()
	r.Bind(src)
	src.emit(waevents.EventMessagesUpsert, waevents.MessagesUpsert{
		Messages: []waevents.Message{{Key: waevents.MessageKey{ID: "m1", RemoteJID: "A"}}},
		Type:     waevents.MessagesUpsertAppend,
	})

	assert.Empty(t, r.LoadMessages("A", 10, Cursor{Before: "ghost"}))
}

func TestLoadMessages_AfterCursorReturnsEmptyMatchingSourceBehavior(t *testing.T) {
	r := New(waconfig.DefaultOptions())
	src := newFakeSource()
	r.Bind(src)
	src.emit(waevents.EventMessagesUpsert, waevents.MessagesUpsert{
		Messages: []waevents.Message{
			{Key: waevents.MessageKey{ID: "m1", RemoteJID: "A"}},
			{Key: waevents.MessageKey{ID: "m2", RemoteJID: "A"}},
		},
		Type: waevents.MessagesUpsertAppend,
	})

	assert.Empty(t, r.LoadMessages("A", 10, Cursor{After: "m1"}))
}

func TestLoadMessage_FoundAndNotFound(t *testing.T) {
	r := New(waconfig.DefaultOptions())
	src := newFakeSource()
	r.Bind(src)
	src.emit(waevents.EventMessagesUpsert, waevents.MessagesUpsert{
		Messages: []waevents.Message{{Key: waevents.MessageKey{ID: "m1", RemoteJID: "A"}}},
		Type:     waevents.MessagesUpsertAppend,
	})

	m, err := r.LoadMessage("A", "m1")
	require.NoError(t, err)
	assert.Equal(t, "m1", m.Key.ID)

	_, err = r.LoadMessage("A", "ghost")
	assert.ErrorIs(t, err, ErrMessageNotFound)

	_, err = r.LoadMessage("ghost-chat", "m1")
	assert.ErrorIs(t, err, ErrMessageNotFound)
}

func TestMostRecentMessage(t *testing.T) {
	r := New(waconfig.DefaultOptions())
	src := newFakeSource()
	r.Bind(src)

	_, ok := r.MostRecentMessage("A")
	assert.False(t, ok)

	src.emit(waevents.EventMessagesUpsert, waevents.MessagesUpsert{
		Messages: []waevents.Message{
			{Key: waevents.MessageKey{ID: "m1", RemoteJID: "A"}},
			{Key: waevents.MessageKey{ID: "m2", RemoteJID: "A"}},
		},
		Type: waevents.MessagesUpsertAppend,
	})

	last, ok := r.MostRecentMessage("A")
	require.True(t, ok)
	assert.Equal(t, "m2", last.Key.ID)
}

type fakeSocket struct {
	url     string
	urlOK   bool
	meta    waevents.GroupMetadata
	metaOK  bool
}

func (f *fakeSocket) ProfilePictureURL(ctx context.Context, jid string) (string, bool, error) {
	return f.url, f.urlOK, nil
}

func (f *fakeSocket) GroupMetadata(ctx context.Context, jid string) (waevents.GroupMetadata, bool, error) {
	return f.meta, f.metaOK, nil
}

func TestFetchImageURL_CacheHitSkipsSocket(t *testing.T) {
	r := New(waconfig.DefaultOptions())
	src := newFakeSource()
	r.Bind(src)

	cached := "https://cached/img.jpg"
	src.emit(waevents.EventContactsUpsert, []waevents.Contact{{ID: "c1", ImgURL: &cached}})

	url, ok := r.FetchImageURL(context.Background(), "c1", &fakeSocket{url: "https://socket/img.jpg", urlOK: true})
	require.True(t, ok)
	assert.Equal(t, cached, url)
}

func TestFetchImageURL_CacheMissDelegatesToSocket(t *testing.T) {
	r := New(waconfig.DefaultOptions())
	url, ok := r.FetchImageURL(context.Background(), "c1", &fakeSocket{url: "https://socket/img.jpg", urlOK: true})
	require.True(t, ok)
	assert.Equal(t, "https://socket/img.jpg", url)
}

func TestFetchImageURL_NoSocketAndNoCacheReturnsAbsent(t *testing.T) {
	r := New(waconfig.DefaultOptions())
	_, ok := r.FetchImageURL(context.Background(), "c1", nil)
	assert.False(t, ok)
}

func TestFetchGroupMetadata_CacheMissStoresResult(t *testing.T) {
	r := New(waconfig.DefaultOptions())
	sock := &fakeSocket{meta: waevents.GroupMetadata{ID: "G", Subject: "Team"}, metaOK: true}

	meta, ok := r.FetchGroupMetadata(context.Background(), "G", sock)
	require.True(t, ok)
	assert.Equal(t, "Team", meta.Subject)

	// Second call must hit the now-populated cache, not the socket again;
	// zero out the socket's answer to prove it isn't consulted.
	sock.metaOK = false
	meta, ok = r.FetchGroupMetadata(context.Background(), "G", sock)
	require.True(t, ok)
	assert.Equal(t, "Team", meta.Subject)
}

func TestGetLabels_GetChatLabels_GetMessageLabels(t *testing.T) {
	r := New(waconfig.DefaultOptions())
	src := newFakeSource()
	r.Bind(src)

	src.emit(waevents.EventLabelsEdit, waevents.Label{ID: "l1", Name: "Work"})
	src.emit(waevents.EventLabelsAssociation, waevents.LabelAssociationEvent{
		Type:        waevents.LabelAssociationOpAdd,
		Association: waevents.LabelAssociation{Type: waevents.LabelAssociationChat, ChatID: "A", LabelID: "l1"},
	})
	src.emit(waevents.EventLabelsAssociation, waevents.LabelAssociationEvent{
		Type: waevents.LabelAssociationOpAdd,
		Association: waevents.LabelAssociation{
			Type: waevents.LabelAssociationMessage, ChatID: "A", MessageID: "m1", LabelID: "l1",
		},
	})

	require.Len(t, r.GetLabels(), 1)
	assert.Equal(t, []string{"l1"}, r.GetChatLabels("A"))
	assert.Equal(t, []string{"l1"}, r.GetMessageLabels("A", "m1"))
}

func TestDisplayName_FallsBackThroughChain(t *testing.T) {
	r := New(waconfig.DefaultOptions())
	src := newFakeSource()
	r.Bind(src)

	assert.Equal(t, "", r.DisplayName("ghost"))

	src.emit(waevents.EventContactsUpsert, []waevents.Contact{{ID: "c1", PushName: "Push"}})
	assert.Equal(t, "Push", r.DisplayName("c1"))

	src.emit(waevents.EventContactsUpsert, []waevents.Contact{{ID: "c1", PushName: "Push", Notify: "Notif"}})
	assert.Equal(t, "Notif", r.DisplayName("c1"))

	src.emit(waevents.EventContactsUpsert, []waevents.Contact{{ID: "c1", PushName: "Push", Notify: "Notif", Name: "Alice"}})
	assert.Equal(t, "Alice", r.DisplayName("c1"))
}

func TestListChats_OrdersPinnedFirst(t *testing.T) {
	r := New(waconfig.DefaultOptions())
	src := newFakeSource()
	r.Bind(src)

	pin := int64(1)
	src.emit(waevents.EventChatsUpsert, []waevents.Chat{
		{ID: "unpinned"},
		{ID: "pinned", Pinned: &pin},
	})

	chats := r.ListChats()
	require.Len(t, chats, 2)
	assert.Equal(t, "pinned", chats[0].ID)
}

func TestToJSON_FromJSON_RoundTrip(t *testing.T) {
	r := New(waconfig.DefaultOptions())
	src := newFakeSource()
	r.Bind(src)

	src.emit(waevents.EventChatsUpsert, []waevents.Chat{{ID: "A", Name: "Alice"}})
	src.emit(waevents.EventContactsUpsert, []waevents.Contact{{ID: "A", Name: "Alice"}})
	src.emit(waevents.EventMessagesUpsert, waevents.MessagesUpsert{
		Messages: []waevents.Message{{Key: waevents.MessageKey{ID: "m1", RemoteJID: "A"}}},
		Type:     waevents.MessagesUpsertAppend,
	})
	src.emit(waevents.EventLabelsEdit, waevents.Label{ID: "l1", Name: "Work"})
	src.emit(waevents.EventLabelsAssociation, waevents.LabelAssociationEvent{
		Type:        waevents.LabelAssociationOpAdd,
		Association: waevents.LabelAssociation{Type: waevents.LabelAssociationChat, ChatID: "A", LabelID: "l1"},
	})

	data, err := r.ToJSON()
	require.NoError(t, err)

	r2 := New(waconfig.DefaultOptions())
	require.NoError(t, r2.FromJSON(data))

	assert.Equal(t, r.Stats(), r2.Stats())
	c, ok := r2.GetLabels()[0], true
	assert.True(t, ok)
	assert.Equal(t, "Work", c.Name)
}

func TestFromJSON_CorruptDataReturnsError(t *testing.T) {
	r := New(waconfig.DefaultOptions())
	err := r.FromJSON([]byte("not json at all {"))
	assert.ErrorIs(t, err, ErrSnapshotCorrupt)
}

func TestFromJSON_ToleratesMissingTopLevelFields(t *testing.T) {
	r := New(waconfig.DefaultOptions())
	err := r.FromJSON([]byte(`{"chats":[{"id":"A"}]}`))
	require.NoError(t, err)
	assert.Equal(t, 1, r.Stats().Chats)
	assert.Equal(t, 0, r.Stats().Contacts)
}

func TestFromJSON_AcceptsLabelsAsArray(t *testing.T) {
	r := New(waconfig.DefaultOptions())
	err := r.FromJSON([]byte(`{"labels":[{"id":"l1","name":"Work"}]}`))
	require.NoError(t, err)
	labels := r.GetLabels()
	require.Len(t, labels, 1)
	assert.Equal(t, "Work", labels[0].Name)
}

func TestWriteToFile_ReadFromFile_RoundTrip(t *testing.T) {
	r := New(waconfig.DefaultOptions())
	src := newFakeSource()
	r.Bind(src)
	src.emit(waevents.EventChatsUpsert, []waevents.Chat{{ID: "A"}})

	path := filepath.Join(t.TempDir(), "snapshot.json")
	require.NoError(t, r.WriteToFile(path))

	r2 := New(waconfig.DefaultOptions())
	require.NoError(t, r2.ReadFromFile(path))
	assert.Equal(t, 1, r2.Stats().Chats)
}

func TestReadFromFile_MissingPathIsNoOp(t *testing.T) {
	r := New(waconfig.DefaultOptions())
	err := r.ReadFromFile(filepath.Join(t.TempDir(), "does-not-exist.json"))
	require.NoError(t, err)
	assert.Equal(t, 0, r.Stats().Chats)
}

func TestWriteToFile_DoesNotLeakTempFiles(t *testing.T) {
	r := New(waconfig.DefaultOptions())
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.json")
	require.NoError(t, r.WriteToFile(path))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "snapshot.json", entries[0].Name())
}
