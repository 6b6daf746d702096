// Command waprojector-demo wires a Replica, an in-memory EventSource, and
// a memkv-backed AuthStateAdapter together and drives one projection pass
// from a small scripted event sequence. It is not the inspector app —
// just enough to exercise the Replica/EventSource/AuthStateAdapter wiring
// end to end.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/codeready-toolchain/waprojector/pkg/authstate"
	"github.com/codeready-toolchain/waprojector/pkg/kv/memkv"
	"github.com/codeready-toolchain/waprojector/pkg/replica"
	"github.com/codeready-toolchain/waprojector/pkg/socket"
	"github.com/codeready-toolchain/waprojector/pkg/waconfig"
	"github.com/codeready-toolchain/waprojector/pkg/waevents"
)

// inMemorySource is a trivial socket.EventSource: Emit calls every
// handler registered for kind synchronously, in registration order.
type inMemorySource struct {
	handlers map[string][]socket.Handler
}

func newInMemorySource() *inMemorySource {
	return &inMemorySource{handlers: make(map[string][]socket.Handler)}
}

func (s *inMemorySource) On(kind string, h socket.Handler) func() {
	s.handlers[kind] = append(s.handlers[kind], h)
	return func() {}
}

func (s *inMemorySource) Emit(kind string, payload any) {
	for _, h := range s.handlers[kind] {
		h(payload)
	}
}

func main() {
	envPath := flag.String("env-file", "", "optional .env file to load before startup")
	snapshotPath := flag.String("snapshot", "", "optional path to write the replica snapshot to after the demo run")
	sessionKey := flag.String("session", "demo", "auth state session key")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	if *envPath != "" {
		if err := godotenv.Load(*envPath); err != nil {
			logger.Warn("could not load env file, continuing with existing environment", "path", *envPath, "error", err)
		} else {
			logger.Info("loaded environment", "path", *envPath)
		}
	}

	ctx := context.Background()

	store := memkv.New()
	auth := authstate.New(store, *sessionKey, logger)
	auth.Load(ctx)
	auth.State().Creds.RegistrationID = 1
	if err := auth.SaveCreds(ctx); err != nil {
		logger.Error("failed to persist initial credentials", "error", err)
		os.Exit(1)
	}
	logger.Info("auth state initialized", "session", *sessionKey)

	r := replica.New(waconfig.DefaultOptions())
	source := newInMemorySource()
	r.Bind(source)

	runScriptedSequence(source)

	stats := r.Stats()
	logger.Info("projection pass complete",
		"chats", stats.Chats,
		"contacts", stats.Contacts,
		"groups", stats.Groups,
		"labels", stats.Labels,
		"labelAssociations", stats.LabelAssociations,
	)
	for jid, n := range stats.MessagesByChat {
		logger.Info("chat message count", "jid", jid, "messages", n)
	}

	if name := r.DisplayName("2000@s.whatsapp.net"); name != "" {
		logger.Info("resolved display name", "jid", "2000@s.whatsapp.net", "name", name)
	}

	if *snapshotPath != "" {
		if err := os.MkdirAll(filepath.Dir(*snapshotPath), 0o755); err != nil && !os.IsExist(err) {
			logger.Error("failed to create snapshot directory", "error", err)
			os.Exit(1)
		}
		if err := r.WriteToFile(*snapshotPath); err != nil {
			logger.Error("failed to write snapshot", "path", *snapshotPath, "error", err)
			os.Exit(1)
		}
		logger.Info("wrote snapshot", "path", *snapshotPath)
	}
}

// runScriptedSequence emits a small, self-contained event sequence that
// exercises history sync, an unread accumulation, a message append, and
// a label association — one pass through the projector's core rules.
func runScriptedSequence(source *inMemorySource) {
	source.Emit(waevents.EventMessagingHistorySet, waevents.MessagingHistorySet{
		Chats: []waevents.Chat{
			{ID: "1000@s.whatsapp.net", Name: "Alice", UnreadCount: ptrInt(2)},
		},
		Contacts: []waevents.Contact{
			{ID: "2000@s.whatsapp.net", PushName: "Bob"},
		},
		Messages: []waevents.Message{
			{Key: waevents.MessageKey{RemoteJID: "1000@s.whatsapp.net", ID: "m1"}, MessageTimestamp: 1700000000},
		},
		IsLatest: true,
		SyncType: waevents.HistorySyncTypeRecent,
	})

	source.Emit(waevents.EventChatsUpdate, []waevents.ChatsUpdate{
		{ID: "1000@s.whatsapp.net", UnreadCount: ptrInt(1)},
	})

	source.Emit(waevents.EventMessagesUpsert, waevents.MessagesUpsert{
		Messages: []waevents.Message{
			{Key: waevents.MessageKey{RemoteJID: "1000@s.whatsapp.net", ID: "m2"}, MessageTimestamp: 1700000100},
		},
		Type: waevents.MessagesUpsertAppend,
	})

	source.Emit(waevents.EventLabelsEdit, waevents.Label{ID: "l1", Name: "Demo"})
	source.Emit(waevents.EventLabelsAssociation, waevents.LabelAssociationEvent{
		Type: waevents.LabelAssociationOpAdd,
		Association: waevents.LabelAssociation{
			Type:    waevents.LabelAssociationChat,
			ChatID:  "1000@s.whatsapp.net",
			LabelID: "l1",
		},
	})
}

func ptrInt(i int) *int { return &i }
