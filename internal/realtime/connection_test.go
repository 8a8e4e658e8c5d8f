package realtime

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// socketPair returns the server and client ends of one websocket.
func socketPair(t *testing.T) (server, client *websocket.Conn) {
	t.Helper()
	accepted := make(chan *websocket.Conn, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		accepted <- ws
	}))
	t.Cleanup(srv.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	select {
	case server = <-accepted:
	case <-time.After(frameTimeout):
		t.Fatal("server side never accepted")
	}
	return server, client
}

func TestConnection_DeliversFramesInOrder(t *testing.T) {
	server, client := socketPair(t)
	conn := NewConnection("U1", server, discardLogger())
	conn.Start()
	defer conn.Close(websocket.CloseNormalClosure, "done")

	for _, ref := range []string{"a", "b", "c"} {
		require.NoError(t, conn.SendFrame(ackFrame{Type: frameAck, Ref: ref}))
	}
	for _, want := range []string{"a", "b", "c"} {
		require.Equal(t, want, readUntil(t, client, func(testFrame) bool { return true }).Ref)
	}
}

func TestConnection_SendAfterClose(t *testing.T) {
	server, client := socketPair(t)
	conn := NewConnection("U1", server, discardLogger())
	conn.Start()

	conn.Close(websocket.CloseNormalClosure, "bye")
	conn.Close(websocket.CloseNormalClosure, "again")
	require.ErrorIs(t, conn.Send([]byte(`{}`)), errConnectionClosed)

	require.NoError(t, client.SetReadDeadline(time.Now().Add(frameTimeout)))
	_, _, err := client.ReadMessage()
	require.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestConnection_SlowClientIsDisconnected(t *testing.T) {
	server, _ := socketPair(t)
	// Not started: nothing drains the buffer.
	conn := NewConnection("U1", server, discardLogger())

	for i := 0; i < sendBuffer; i++ {
		require.NoError(t, conn.Send([]byte(`{}`)))
	}
	require.ErrorIs(t, conn.Send([]byte(`{}`)), errBufferExceeded)

	select {
	case <-conn.Done():
	default:
		t.Fatal("connection should be closed")
	}
}

func TestConnection_ReservedCloseCodeNotSent(t *testing.T) {
	server, client := socketPair(t)
	conn := NewConnection("U1", server, discardLogger())
	conn.Start()

	conn.Close(websocket.CloseAbnormalClosure, "write failed")

	require.NoError(t, client.SetReadDeadline(time.Now().Add(frameTimeout)))
	_, _, err := client.ReadMessage()
	require.True(t, websocket.IsCloseError(err, websocket.CloseInternalServerErr), "got %v", err)
}

func TestWireCloseCode(t *testing.T) {
	require.Equal(t, websocket.CloseInternalServerErr, wireCloseCode(websocket.CloseAbnormalClosure))
	require.Equal(t, websocket.CloseInternalServerErr, wireCloseCode(websocket.CloseNoStatusReceived))
	require.Equal(t, websocket.ClosePolicyViolation, wireCloseCode(websocket.ClosePolicyViolation))
	require.Equal(t, websocket.CloseNormalClosure, wireCloseCode(websocket.CloseNormalClosure))
}
