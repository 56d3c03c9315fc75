package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"github.com/umar/familychat/internal/backend"
	"github.com/umar/familychat/internal/identity"
	"github.com/umar/familychat/internal/mocks"
	"github.com/umar/familychat/internal/models"
	"github.com/umar/familychat/internal/realtime"
	"go.uber.org/mock/gomock"
)

// newBackendClient wires a session to a publishing backend over store and
// a running in-process change channel.
func newBackendClient(t *testing.T) (*Client, *mocks.MockStore) {
	t.Helper()
	store := mocks.NewMockStore(gomock.NewController(t))
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	broker := realtime.NewBroker(realtime.NewLocalTransport(16), log)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = broker.Run(ctx) }()

	hub := NewHub(backend.New(store, broker, log), broker, nil, identity.NewIssuer("secret", time.Hour), log)
	c := newClient(hub, nil)
	t.Cleanup(func() {
		c.teardown()
		cancel()
	})
	return c, store
}

type directoryFrame struct {
	Query         string                       `json:"query"`
	Conversations []models.ConversationSummary `json:"conversations"`
}

func otherUsers(t *testing.T, msg WSMessage) []string {
	t.Helper()
	require.Equal(t, TypeDirectorySnapshot, msg.Type)
	d := payloadOf[directoryFrame](t, msg)
	return lo.Map(d.Conversations, func(s models.ConversationSummary, _ int) string { return s.OtherUser })
}

func openDirectory(t *testing.T, c *Client, store *mocks.MockStore) {
	t.Helper()
	store.EXPECT().ConversationsFor(gomock.Any(), "alice").Return([]models.Conversation{
		{ID: "c1", Participant1: "alice", Participant2: "Grandma", UpdatedAt: time.Now().Add(time.Minute)},
		{ID: "c2", Participant1: "Uncle Joe", Participant2: "alice", UpdatedAt: time.Now()},
	}, nil)
	store.EXPECT().LastMessage(gomock.Any(), gomock.Any()).Return(nil, nil).Times(2)

	c.handleMessage(WSMessage{Type: TypeDirectoryOpen})
	require.Equal(t, []string{"Grandma", "Uncle Joe"}, otherUsers(t, next(t, c)))
}

func TestSession_DirectorySearchNarrowsListing(t *testing.T) {
	req := require.New(t)
	c, store := newBackendClient(t)
	identify(t, c, "alice")
	openDirectory(t, c, store)

	// When alice searches
	c.handleMessage(frame(t, TypeDirectorySearch, SearchPayload{Query: "UNCLE"}))

	// Then only matching conversations are listed
	msg := next(t, c)
	req.Equal([]string{"Uncle Joe"}, otherUsers(t, msg))
	req.Equal("UNCLE", payloadOf[directoryFrame](t, msg).Query)

	c.handleMessage(frame(t, TypeDirectorySearch, SearchPayload{Query: ""}))
	req.Len(otherUsers(t, next(t, c)), 2)
}

func TestSession_StartIgnoresInvalidPeer(t *testing.T) {
	c, store := newBackendClient(t)
	identify(t, c, "alice")
	openDirectory(t, c, store)
	store.EXPECT().GetOrCreateConversation(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	for _, peer := range []string{"", "   ", "alice"} {
		c.handleMessage(frame(t, TypeConversationStart, StartConversationPayload{Peer: peer}))
	}

	requireQuiet(t, c)
}

func TestSession_StartFailureIsOnlyLogged(t *testing.T) {
	c, store := newBackendClient(t)
	identify(t, c, "alice")
	openDirectory(t, c, store)
	store.EXPECT().GetOrCreateConversation(gomock.Any(), "alice", "bob").Return(nil, false, errors.New("down"))

	c.handleMessage(frame(t, TypeConversationStart, StartConversationPayload{Peer: "bob"}))

	requireQuiet(t, c)
}

func TestSession_StartSelectsConversation(t *testing.T) {
	req := require.New(t)
	c, store := newBackendClient(t)
	identify(t, c, "alice")
	openDirectory(t, c, store)

	// Given an existing conversation with bob
	conv := models.Conversation{ID: "c3", Participant1: "bob", Participant2: "alice", UpdatedAt: time.Now().Add(time.Hour)}
	store.EXPECT().GetOrCreateConversation(gomock.Any(), "alice", "bob").Return(&conv, false, nil)
	store.EXPECT().ConversationsFor(gomock.Any(), "alice").Return([]models.Conversation{conv}, nil)
	store.EXPECT().LastMessage(gomock.Any(), "c3").Return(nil, nil)
	store.EXPECT().Messages(gomock.Any(), "c3").Return([]models.Message{
		{ID: "m1", ConversationID: "c3", Sender: "bob", Text: "hello"},
	}, nil)

	// When alice starts a conversation with bob
	c.handleMessage(frame(t, TypeConversationStart, StartConversationPayload{Peer: " bob "}))

	// Then the listing refreshes, the conversation is selected and loaded
	req.Equal([]string{"bob"}, otherUsers(t, next(t, c)))
	selected := next(t, c)
	req.Equal(TypeConversationSelected, selected.Type)
	req.Equal(ConversationSelectedPayload{ConversationID: "c3", OtherUser: "bob"},
		payloadOf[ConversationSelectedPayload](t, selected))
	snapshot := next(t, c)
	req.Equal(TypeFeedSnapshot, snapshot.Type)
	req.Equal("c3", payloadOf[FeedSnapshotPayload](t, snapshot).ConversationID)
	requireQuiet(t, c)
}

func TestSession_DeleteHidesMessageThroughChangeChannel(t *testing.T) {
	req := require.New(t)
	c, store := newBackendClient(t)
	identify(t, c, "alice")
	openConversationWith(t, c, store, []models.Message{
		{ID: "m1", ConversationID: "C", Sender: "alice", Text: "oops"},
	})

	at := time.Now().UTC()
	store.EXPECT().SoftDeleteMessage(gomock.Any(), "m1", "alice", gomock.Any()).
		Return(&models.Message{ID: "m1", ConversationID: "C", Sender: "alice", Text: "oops", DeletedAt: &at}, nil)

	// When alice deletes her message
	c.handleMessage(frame(t, TypeMessageDelete, DeletePayload{MessageID: "m1"}))

	// Then she gets the toast and a snapshot without it, in either order
	frames := []WSMessage{next(t, c), next(t, c)}
	req.ElementsMatch([]string{TypeToast, TypeFeedSnapshot},
		lo.Map(frames, func(m WSMessage, _ int) string { return m.Type }))
	snapshot, _ := lo.Find(frames, func(m WSMessage) bool { return m.Type == TypeFeedSnapshot })
	var rows struct {
		Messages []models.Message `json:"messages"`
	}
	req.NoError(json.Unmarshal(snapshot.Payload, &rows))
	req.Empty(rows.Messages)
}

func TestSession_BackendRoomEchoesThroughChangeChannel(t *testing.T) {
	req := require.New(t)
	c, store := newBackendClient(t)
	identify(t, c, "alice")
	left := make(chan struct{})

	store.EXPECT().RoomMessages(gomock.Any()).Return([]models.RoomMessage{}, nil)
	store.EXPECT().CreateRoomMessage(gomock.Any(), models.SystemSender, "alice joined the chat").
		Return(&models.RoomMessage{ID: "r1", Username: models.SystemSender, Text: "alice joined the chat"}, nil)
	store.EXPECT().CreateRoomMessage(gomock.Any(), "alice", "hello").
		Return(&models.RoomMessage{ID: "r2", Username: "alice", Text: "hello"}, nil)
	store.EXPECT().CreateRoomMessage(gomock.Any(), models.SystemSender, "alice left the chat").
		Do(func(context.Context, string, string) { close(left) }).
		Return(&models.RoomMessage{ID: "r3", Username: models.SystemSender, Text: "alice left the chat"}, nil)

	appended := func() models.RoomMessage {
		msg := next(t, c)
		req.Equal(TypeFeedAppend, msg.Type)
		var row struct {
			Message models.RoomMessage `json:"message"`
		}
		req.NoError(json.Unmarshal(msg.Payload, &row))
		return row.Message
	}

	// When alice opens the room, no banner is shown
	c.handleMessage(WSMessage{Type: TypeRoomOpen})
	req.Equal(TypeFeedSnapshot, next(t, c).Type)
	req.Equal("alice joined the chat", appended().Text)

	// When she sends "hello", it comes back once through the change channel
	c.handleMessage(frame(t, TypeComposerSubmit, SubmitPayload{Text: "hello"}))
	m := appended()
	req.Equal("alice", m.Username)
	req.Equal("hello", m.Text)
	requireQuiet(t, c)

	c.handleMessage(WSMessage{Type: TypeRoomClose})
	select {
	case <-left:
	case <-time.After(time.Second):
		t.Fatal("departure was not announced")
	}
}
