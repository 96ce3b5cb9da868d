package history

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tablechat/chat"
)

func serve(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL, "s3cret")
	require.NoError(t, err)
	return c, srv
}

func TestGetMessagesSendsPasscodeAndDecodes(t *testing.T) {
	sent := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c, _ := serve(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rooms/room-1/messages", r.URL.Path)
		assert.Equal(t, "s3cret", r.Header.Get("X-Passcode"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		_ = json.NewEncoder(w).Encode([]chat.Message{
			{ID: "m1", RoomID: "room-1", SenderID: "u2", Body: "hi", SentAt: sent},
			{ID: "m2", RoomID: "room-1", SenderID: "u2", Deleted: true, SentAt: sent},
		})
	})

	msgs, err := c.GetMessages(context.Background(), "room-1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hi", msgs[0].Body)
	assert.True(t, msgs[1].Deleted)
	assert.Equal(t, sent, msgs[0].SentAt)
}

func TestGetChatRoomNotFound(t *testing.T) {
	c, _ := serve(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	_, err := c.GetChatRoom(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListRoomsEscapesUserID(t *testing.T) {
	c, _ := serve(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/user%2Fwith%2Fslashes/rooms", r.URL.EscapedPath())
		_ = json.NewEncoder(w).Encode([]chat.Room{})
	})

	_, err := c.ListRooms(context.Background(), "user/with/slashes")
	require.NoError(t, err)
}

func TestCreateRoomRoundTrip(t *testing.T) {
	c, _ := serve(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/rooms", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var in chat.Room
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		in.ID = "room-77"
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(in)
	})

	created, err := c.CreateRoom(context.Background(), chat.Room{
		Type:         chat.RoomGroup,
		Name:         "Friday dinner",
		Participants: []string{"me", "u2", "u3"},
		CreatedBy:    "me",
	})
	require.NoError(t, err)
	assert.Equal(t, "room-77", created.ID)
	assert.Equal(t, "Friday dinner", created.Name)
}

func TestCreateRoomRejectsInvalidInput(t *testing.T) {
	c, srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("invalid rooms must not reach the wire")
	})
	defer srv.Close()

	_, err := c.CreateRoom(context.Background(), chat.Room{Type: chat.RoomDirect})
	assert.Error(t, err)
}

func TestServerErrorsCarryStatusAndBody(t *testing.T) {
	c, _ := serve(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "passcode rejected", http.StatusForbidden)
	})

	_, err := c.GetMessages(context.Background(), "room-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.Contains(t, err.Error(), "passcode rejected")
}

func TestNewRejectsEmptyBaseURL(t *testing.T) {
	_, err := New("   ", "")
	assert.Error(t, err)
}
