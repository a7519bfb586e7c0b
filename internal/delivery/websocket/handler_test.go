package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"careline/infrastructure/cache"
	"careline/infrastructure/ws"
	"careline/internal/entity"
	"careline/internal/usecase"
	"careline/pkg/logger"
	"careline/pkg/token"
)

type stubVerifier struct{}

// Verify treats the credential as the user id, so tests mint identities by
// picking tokens.
func (stubVerifier) Verify(tok string) (*entity.Principal, error) {
	if tok == "" || strings.HasPrefix(tok, "bad") {
		return nil, token.ErrInvalidToken
	}
	return &entity.Principal{UserId: tok}, nil
}

type stubMessageUc struct{}

func (stubMessageUc) Send(_ context.Context, senderId string, input usecase.SendMessageInput) (entity.Message, error) {
	switch {
	case input.RecipientId == "":
		return entity.Message{}, usecase.ErrInvalidRecipient
	case !input.Type.Valid():
		return entity.Message{}, usecase.ErrInvalidMessageType
	case input.Content == "":
		return entity.Message{}, usecase.ErrEmptyContent
	}
	return entity.Message{
		Id:             "m-1",
		ConversationId: entity.ConversationID(senderId, input.RecipientId),
		SenderId:       senderId,
		RecipientId:    input.RecipientId,
		Type:           input.Type,
		Content:        input.Content,
		Metadata:       input.Metadata,
		Status:         entity.MessageStatusSent,
		CreatedAt:      time.Now().UTC(),
	}, nil
}

func (stubMessageUc) History(_ context.Context, _ *entity.Principal, _ string, _, _ int) ([]entity.Message, error) {
	return nil, nil
}

func (stubMessageUc) MarkRead(_ context.Context, _ *entity.Principal, _ string) (entity.Message, error) {
	return entity.Message{}, usecase.ErrMessageNotFound
}

func (stubMessageUc) CountUnread(_ context.Context, _ *entity.Principal, _ string) (int64, error) {
	return 0, nil
}

type gatewayFixture struct {
	server   *httptest.Server
	hub      *ws.Hub
	presence *cache.MemPresence
}

func newGatewayFixture(t *testing.T) *gatewayFixture {
	t.Helper()

	hub := ws.NewHub(logger.NewNop())
	go hub.Run()

	presence := cache.NewMemPresence(time.Minute, 0)
	t.Cleanup(presence.Close)

	handler := NewGatewayHandler(hub, stubVerifier{}, stubMessageUc{}, presence, logger.NewNop())
	hub.SetOnUserOffline(handler.HandleUserOffline)

	router := chi.NewRouter()
	router.Get("/ws", handler.HandleWebSocket)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &gatewayFixture{server: server, hub: hub, presence: presence}
}

func (f *gatewayFixture) dial(t *testing.T, credential string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws?token=" + credential
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// join connects and completes the join handshake, waiting until the routing
// table reflects the registration.
func (f *gatewayFixture) join(t *testing.T, userId string) *websocket.Conn {
	t.Helper()
	before := f.hub.ConnectionCount(userId)

	conn := f.dial(t, userId)
	sendEvent(t, conn, EventJoin, nil)

	event := readEvent(t, conn)
	require.Equal(t, EventJoined, event.Event)

	require.Eventually(t, func() bool {
		return f.hub.ConnectionCount(userId) == before+1
	}, time.Second, 5*time.Millisecond)
	return conn
}

type receivedEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func sendEvent(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	payload, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(InboundEvent{Event: event, Data: payload}))
}

func readEvent(t *testing.T, conn *websocket.Conn) receivedEvent {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event receivedEvent
	require.NoError(t, conn.ReadJSON(&event))
	return event
}

func TestHandshakeRejectsBadCredential(t *testing.T) {
	f := newGatewayFixture(t)

	for _, credential := range []string{"", "bad-token"} {
		url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws"
		if credential != "" {
			url += "?token=" + credential
		}
		_, resp, err := websocket.DefaultDialer.Dial(url, nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}
}

func TestHandshakeAcceptsAuthorizationHeader(t *testing.T) {
	f := newGatewayFixture(t)

	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws"
	header := http.Header{"Authorization": []string{"Bearer u1"}}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	conn.Close()
}

func TestJoinAcknowledgesAndSetsPresence(t *testing.T) {
	f := newGatewayFixture(t)

	conn := f.dial(t, "u1")
	sendEvent(t, conn, EventJoin, nil)

	event := readEvent(t, conn)
	require.Equal(t, EventJoined, event.Event)

	var data JoinedData
	require.NoError(t, json.Unmarshal(event.Data, &data))
	require.Equal(t, "u1", data.UserId)

	require.Eventually(t, func() bool {
		online, err := f.presence.IsOnline(context.Background(), "u1")
		return err == nil && online
	}, time.Second, 5*time.Millisecond)
}

func TestOperationsBeforeJoinAreRejected(t *testing.T) {
	f := newGatewayFixture(t)

	conn := f.dial(t, "u1")
	sendEvent(t, conn, EventSendMessage, SendMessagePayload{RecipientId: "u2", Type: "text", Content: "hi"})

	event := readEvent(t, conn)
	require.Equal(t, EventError, event.Event)

	var data ErrorData
	require.NoError(t, json.Unmarshal(event.Data, &data))
	require.Equal(t, CodeUnauthorized, data.Code)
}

func TestSendMessageFansOutToEveryRecipientDevice(t *testing.T) {
	f := newGatewayFixture(t)

	sender := f.join(t, "u1")
	deviceA := f.join(t, "u2")
	deviceB := f.join(t, "u2")

	sendEvent(t, sender, EventSendMessage, SendMessagePayload{RecipientId: "u2", Type: "text", Content: "hi"})

	ack := readEvent(t, sender)
	require.Equal(t, EventMessageSent, ack.Event)

	var sent MessageSentData
	require.NoError(t, json.Unmarshal(ack.Data, &sent))
	require.Equal(t, "m-1", sent.Id)
	require.Equal(t, entity.ConversationID("u1", "u2"), sent.ConversationId)
	require.Equal(t, entity.MessageStatusSent, sent.Status)

	for _, device := range []*websocket.Conn{deviceA, deviceB} {
		event := readEvent(t, device)
		require.Equal(t, EventNewMessage, event.Event)

		var message entity.Message
		require.NoError(t, json.Unmarshal(event.Data, &message))
		require.Equal(t, "hi", message.Content)
		require.Equal(t, "u1", message.SenderId)
	}
}

func TestSendMessageToOfflineRecipientStillAcks(t *testing.T) {
	f := newGatewayFixture(t)

	sender := f.join(t, "u1")
	sendEvent(t, sender, EventSendMessage, SendMessagePayload{RecipientId: "u9", Type: "text", Content: "hi"})

	ack := readEvent(t, sender)
	require.Equal(t, EventMessageSent, ack.Event)

	var sent MessageSentData
	require.NoError(t, json.Unmarshal(ack.Data, &sent))
	require.Equal(t, entity.MessageStatusSent, sent.Status)
}

func TestSendMessageValidationFailure(t *testing.T) {
	f := newGatewayFixture(t)

	sender := f.join(t, "u1")
	sendEvent(t, sender, EventSendMessage, SendMessagePayload{RecipientId: "u2", Type: "text"})

	event := readEvent(t, sender)
	require.Equal(t, EventError, event.Event)

	var data ErrorData
	require.NoError(t, json.Unmarshal(event.Data, &data))
	require.Equal(t, CodeValidationFailed, data.Code)
}

func TestTypingRelaysWithoutAck(t *testing.T) {
	f := newGatewayFixture(t)

	sender := f.join(t, "u1")
	recipient := f.join(t, "u2")

	sendEvent(t, sender, EventTyping, TypingPayload{RecipientId: "u2"})

	event := readEvent(t, recipient)
	require.Equal(t, EventUserTyping, event.Event)

	var data UserTypingData
	require.NoError(t, json.Unmarshal(event.Data, &data))
	require.Equal(t, "u1", data.UserId)
}

func TestPresenceClearsOnlyAfterLastDisconnect(t *testing.T) {
	f := newGatewayFixture(t)
	ctx := context.Background()

	deviceA := f.join(t, "u1")
	deviceB := f.join(t, "u1")

	deviceA.Close()
	require.Eventually(t, func() bool {
		return f.hub.ConnectionCount("u1") == 1
	}, time.Second, 5*time.Millisecond)

	online, err := f.presence.IsOnline(ctx, "u1")
	require.NoError(t, err)
	require.True(t, online)

	deviceB.Close()
	require.Eventually(t, func() bool {
		online, err := f.presence.IsOnline(ctx, "u1")
		return err == nil && !online
	}, time.Second, 5*time.Millisecond)
}
