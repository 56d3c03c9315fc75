package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"
	"github.com/umar/familychat/internal/database"
	"github.com/umar/familychat/internal/identity"
	"github.com/umar/familychat/internal/mocks"
	"github.com/umar/familychat/internal/models"
	"go.uber.org/mock/gomock"
)

// router mounts the identified routes with the caller fixed to alice.
func router(store database.Store) *mux.Router {
	r := mux.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(identity.WithName(req.Context(), "alice")))
		})
	})
	r.HandleFunc("/api/room/messages", GetRoomMessages(store)).Methods("GET")
	r.HandleFunc("/api/room/messages", PostRoomMessage(store)).Methods("POST")
	r.HandleFunc("/api/conversations", ListConversations(store)).Methods("GET")
	r.HandleFunc("/api/conversations", StartConversation(store)).Methods("POST")
	r.HandleFunc("/api/conversations/{id}/messages", GetConversationMessages(store)).Methods("GET")
	r.HandleFunc("/api/conversations/{id}/messages", PostConversationMessage(store)).Methods("POST")
	r.HandleFunc("/api/messages/{id}", DeleteMessage(store)).Methods("DELETE")
	return r
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, path, strings.NewReader(body)))
	return w
}

func TestIdentify(t *testing.T) {
	req := require.New(t)
	issuer := identity.NewIssuer("secret", time.Hour)
	h := Identify(issuer)

	req.Equal(http.StatusBadRequest, do(h, "POST", "/api/identify", `{"name":"   "}`).Code)
	req.Equal(http.StatusBadRequest, do(h, "POST", "/api/identify", `nope`).Code)

	w := do(h, "POST", "/api/identify", `{"name":" Grandma "}`)
	req.Equal(http.StatusOK, w.Code)
	var resp identifyResponse
	req.NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	req.Equal("Grandma", resp.Name)

	claims, err := issuer.Parse(resp.Token)
	req.NoError(err)
	req.Equal("Grandma", claims.Name)
}

func TestConfig(t *testing.T) {
	req := require.New(t)
	w := do(Config(false), "GET", "/api/config", "")
	req.Equal(http.StatusOK, w.Code)
	req.JSONEq(`{"configured":false,"mode":"local-only"}`, w.Body.String())
}

func TestLocalOnly_Returns503(t *testing.T) {
	req := require.New(t)
	h := router(nil)
	id := uuid.NewString()

	for _, tc := range []struct{ method, path, body string }{
		{"GET", "/api/room/messages", ""},
		{"POST", "/api/room/messages", `{"text":"hi"}`},
		{"GET", "/api/conversations", ""},
		{"POST", "/api/conversations", `{"peer":"bob"}`},
		{"GET", "/api/conversations/" + id + "/messages", ""},
		{"POST", "/api/conversations/" + id + "/messages", `{"text":"hi"}`},
		{"DELETE", "/api/messages/" + id, ""},
	} {
		req.Equal(http.StatusServiceUnavailable, do(h, tc.method, tc.path, tc.body).Code, tc.path)
	}
}

func TestPostRoomMessage(t *testing.T) {
	req := require.New(t)
	store := mocks.NewMockStore(gomock.NewController(t))
	h := router(store)

	// Blank text never reaches the store
	req.Equal(http.StatusBadRequest, do(h, "POST", "/api/room/messages", `{"text":"  "}`).Code)

	store.EXPECT().CreateRoomMessage(gomock.Any(), "alice", "hello").
		Return(&models.RoomMessage{ID: "r1", Username: "alice", Text: "hello"}, nil)
	w := do(h, "POST", "/api/room/messages", `{"text":" hello "}`)
	req.Equal(http.StatusCreated, w.Code)
}

func TestListConversations_Filters(t *testing.T) {
	req := require.New(t)
	store := mocks.NewMockStore(gomock.NewController(t))
	h := router(store)

	store.EXPECT().ConversationsFor(gomock.Any(), "alice").Return([]models.Conversation{
		{ID: "c1", Participant1: "alice", Participant2: "Grandma"},
		{ID: "c2", Participant1: "Uncle Joe", Participant2: "alice"},
	}, nil)
	store.EXPECT().LastMessage(gomock.Any(), gomock.Any()).Return(nil, nil).Times(2)

	w := do(h, "GET", "/api/conversations?q=uncle", "")
	req.Equal(http.StatusOK, w.Code)
	var got []models.ConversationSummary
	req.NoError(json.Unmarshal(w.Body.Bytes(), &got))
	req.Len(got, 1)
	req.Equal("Uncle Joe", got[0].OtherUser)
}

func TestStartConversation(t *testing.T) {
	req := require.New(t)
	store := mocks.NewMockStore(gomock.NewController(t))
	h := router(store)

	req.Equal(http.StatusBadRequest, do(h, "POST", "/api/conversations", `{"peer":""}`).Code)
	req.Equal(http.StatusBadRequest, do(h, "POST", "/api/conversations", `{"peer":"alice"}`).Code)

	conv := models.Conversation{ID: uuid.NewString(), Participant1: "alice", Participant2: "bob"}
	store.EXPECT().GetOrCreateConversation(gomock.Any(), "alice", "bob").Return(&conv, true, nil)
	store.EXPECT().ConversationsFor(gomock.Any(), "alice").Return([]models.Conversation{conv}, nil)
	store.EXPECT().LastMessage(gomock.Any(), conv.ID).Return(nil, nil)

	w := do(h, "POST", "/api/conversations", `{"peer":"bob"}`)
	req.Equal(http.StatusOK, w.Code)
	var got models.ConversationSummary
	req.NoError(json.Unmarshal(w.Body.Bytes(), &got))
	req.Equal(conv.ID, got.ID)
	req.Equal("bob", got.OtherUser)
}

func TestGetConversationMessages_HidesDeleted(t *testing.T) {
	req := require.New(t)
	store := mocks.NewMockStore(gomock.NewController(t))
	h := router(store)
	id := uuid.NewString()
	now := time.Now()

	req.Equal(http.StatusBadRequest, do(h, "GET", "/api/conversations/not-a-uuid/messages", "").Code)

	store.EXPECT().Messages(gomock.Any(), id).Return([]models.Message{
		{ID: "m1", ConversationID: id, Sender: "alice", Text: "oops", DeletedAt: &now},
		{ID: "m2", ConversationID: id, Sender: "bob", Text: "hi"},
	}, nil)

	w := do(h, "GET", "/api/conversations/"+id+"/messages", "")
	req.Equal(http.StatusOK, w.Code)
	var got []models.Message
	req.NoError(json.Unmarshal(w.Body.Bytes(), &got))
	req.Len(got, 1)
	req.Equal("m2", got[0].ID)
}

func TestPostConversationMessage_InsertsThenTouches(t *testing.T) {
	req := require.New(t)
	store := mocks.NewMockStore(gomock.NewController(t))
	h := router(store)
	id := uuid.NewString()

	gomock.InOrder(
		store.EXPECT().CreateMessage(gomock.Any(), id, "alice", "hi").Return(&models.Message{ID: "m1"}, nil),
		store.EXPECT().TouchConversation(gomock.Any(), id, gomock.Any()).Return(&models.Conversation{ID: id}, nil),
	)

	req.Equal(http.StatusAccepted, do(h, "POST", "/api/conversations/"+id+"/messages", `{"text":"hi"}`).Code)
	req.Equal(http.StatusBadRequest, do(h, "POST", "/api/conversations/"+id+"/messages", `{"text":""}`).Code)
}

func TestDeleteMessage(t *testing.T) {
	req := require.New(t)
	store := mocks.NewMockStore(gomock.NewController(t))
	h := router(store)
	mine, theirs := uuid.NewString(), uuid.NewString()
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	nowUTC = func() time.Time { return at }
	t.Cleanup(func() { nowUTC = func() time.Time { return time.Now().UTC() } })

	store.EXPECT().SoftDeleteMessage(gomock.Any(), mine, "alice", at).
		Return(&models.Message{ID: mine, Sender: "alice", DeletedAt: &at}, nil)
	store.EXPECT().SoftDeleteMessage(gomock.Any(), theirs, "alice", at).Return(nil, database.ErrNotFound)

	req.Equal(http.StatusOK, do(h, "DELETE", "/api/messages/"+mine, "").Code)
	req.Equal(http.StatusNotFound, do(h, "DELETE", "/api/messages/"+theirs, "").Code)
}
