package api

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/techspec-reviewer/backend/internal/models"
	"github.com/techspec-reviewer/backend/internal/review"
	"github.com/techspec-reviewer/backend/internal/storage"
	"github.com/techspec-reviewer/backend/internal/testutil"
)

func dialReviewSocket(t *testing.T, handler *WebSocketHandler) *websocket.Conn {
	t.Helper()
	e := echo.New()
	e.GET("/api/ws/reviews", handler.HandleWebSocket)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/reviews"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	msg := readMessage(t, conn)
	require.Equal(t, MsgTypeConnected, msg.Type)
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg WSMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func sendMessage(t *testing.T, conn *websocket.Conn, msgType, id string, payload interface{}) {
	t.Helper()
	msg := WSMessage{Type: msgType, ID: id}
	if payload != nil {
		msg.Payload = mustJSON(payload)
	}
	require.NoError(t, conn.WriteJSON(msg))
}

func TestWebSocket_PingPong(t *testing.T) {
	conn := dialReviewSocket(t, NewWebSocketHandler(testutil.NewMockStorage(), newFakeReviews(), defaultLimits()))

	sendMessage(t, conn, MsgTypePing, "p1", nil)
	msg := readMessage(t, conn)
	assert.Equal(t, MsgTypePong, msg.Type)
	assert.Equal(t, "p1", msg.ID)
	assert.NotZero(t, msg.Timestamp)
}

func TestWebSocket_UnknownType(t *testing.T) {
	conn := dialReviewSocket(t, NewWebSocketHandler(testutil.NewMockStorage(), newFakeReviews(), defaultLimits()))

	sendMessage(t, conn, "bogus", "x1", nil)
	msg := readMessage(t, conn)
	require.Equal(t, MsgTypeError, msg.Type)

	var errResp WSErrorResponse
	require.NoError(t, json.Unmarshal(msg.Payload, &errResp))
	assert.Equal(t, "INVALID_TYPE", errResp.Code)
}

func TestWebSocket_SubscribeFiltersEvents(t *testing.T) {
	reviews := newFakeReviews()
	conn := dialReviewSocket(t, NewWebSocketHandler(testutil.NewMockStorage(), reviews, defaultLimits()))

	sendMessage(t, conn, MsgTypeSubscribe, "s1", SubscribePayload{SessionID: "rev-9"})
	assert.Equal(t, MsgTypeAck, readMessage(t, conn).Type)

	reviews.events <- review.Event{SessionID: "other", Stage: review.StageExtracting}
	reviews.events <- review.Event{SessionID: "rev-9", Stage: review.StageReviewing, Progress: 40}

	msg := readMessage(t, conn)
	require.Equal(t, MsgTypeProgress, msg.Type)
	assert.Equal(t, "rev-9", msg.ID)

	var e review.Event
	require.NoError(t, json.Unmarshal(msg.Payload, &e))
	assert.Equal(t, review.StageReviewing, e.Stage)
	assert.Equal(t, 40.0, e.Progress)
}

func TestWebSocket_DocumentUpload(t *testing.T) {
	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	_, err := zw.Write([]byte("Introduction\nThe gateway."))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	// 1 MB of zeros compresses to about 1 KB, well over the 1 KB limit once inflated
	var bomb bytes.Buffer
	bw := gzip.NewWriter(&bomb)
	_, err = bw.Write(make([]byte, 1<<20))
	require.NoError(t, err)
	require.NoError(t, bw.Close())

	tests := []struct {
		name     string
		payload  DocumentUploadPayload
		wantType string
		wantCode string
	}{
		{
			name:     "plain",
			payload:  DocumentUploadPayload{Name: "spec.txt", Data: base64.StdEncoding.EncodeToString([]byte("hello"))},
			wantType: MsgTypeUploaded,
		},
		{
			name:     "gzip",
			payload:  DocumentUploadPayload{Name: "spec.txt", Data: base64.StdEncoding.EncodeToString(gz.Bytes()), Encoding: "gzip"},
			wantType: MsgTypeUploaded,
		},
		{
			name:     "gzip expands past the size limit",
			payload:  DocumentUploadPayload{Name: "spec.txt", Data: base64.StdEncoding.EncodeToString(bomb.Bytes()), Encoding: "gzip"},
			wantType: MsgTypeError,
			wantCode: "FILE_TOO_LARGE",
		},
		{
			name:     "bad base64",
			payload:  DocumentUploadPayload{Name: "spec.txt", Data: "!!!"},
			wantType: MsgTypeError,
			wantCode: "INVALID_PAYLOAD",
		},
		{
			name:     "unsupported type",
			payload:  DocumentUploadPayload{Name: "spec.exe", Data: base64.StdEncoding.EncodeToString([]byte("MZ"))},
			wantType: MsgTypeError,
			wantCode: "UNSUPPORTED_TYPE",
		},
		{
			name:     "missing name",
			payload:  DocumentUploadPayload{Data: base64.StdEncoding.EncodeToString([]byte("x"))},
			wantType: MsgTypeError,
			wantCode: "VALIDATION_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := testutil.NewMockStorage()
			conn := dialReviewSocket(t, NewWebSocketHandler(store, newFakeReviews(), defaultLimits()))

			sendMessage(t, conn, MsgTypeDocumentUpload, "u1", tt.payload)
			msg := readMessage(t, conn)
			require.Equal(t, tt.wantType, msg.Type)
			assert.Equal(t, "u1", msg.ID)

			if tt.wantCode != "" {
				var errResp WSErrorResponse
				require.NoError(t, json.Unmarshal(msg.Payload, &errResp))
				assert.Equal(t, tt.wantCode, errResp.Code)
				assert.Equal(t, 0, store.GetFileCount())
				return
			}

			var info models.FileInfo
			require.NoError(t, json.Unmarshal(msg.Payload, &info))
			assert.Equal(t, "spec.txt", info.Name)
			assert.Equal(t, 1, store.GetFileCount())
		})
	}
}

func TestWebSocket_UploadAndReview(t *testing.T) {
	store := testutil.NewMockStorage()
	reviews := newFakeReviews()
	conn := dialReviewSocket(t, NewWebSocketHandler(store, reviews, defaultLimits()))

	sendMessage(t, conn, MsgTypeDocumentUpload, "u1", DocumentUploadPayload{
		Name:   "spec.txt",
		Data:   base64.StdEncoding.EncodeToString([]byte("Introduction")),
		Review: true,
	})

	uploaded := readMessage(t, conn)
	require.Equal(t, MsgTypeUploaded, uploaded.Type)
	var info models.FileInfo
	require.NoError(t, json.Unmarshal(uploaded.Payload, &info))

	started := readMessage(t, conn)
	require.Equal(t, MsgTypeStarted, started.Type)
	var sess models.ReviewSession
	require.NoError(t, json.Unmarshal(started.Payload, &sess))
	assert.Equal(t, info.ID, sess.FileID)

	stored, err := store.Get(info.ID)
	require.NoError(t, err)
	assert.Equal(t, FileStatusReviewing, stored.Status)

	// A snapshot follows the start so early pipeline events are not lost
	snapshot := readMessage(t, conn)
	require.Equal(t, MsgTypeProgress, snapshot.Type)
	assert.Equal(t, sess.ID, snapshot.ID)

	// The client is now subscribed to the new review
	reviews.events <- review.Event{SessionID: sess.ID, Status: models.SessionStatusComplete, Stage: review.StageComplete, Progress: 100}
	msg := readMessage(t, conn)
	assert.Equal(t, MsgTypeProgress, msg.Type)
	assert.Equal(t, sess.ID, msg.ID)
}

func TestWebSocket_ReviewStartUnknownFile(t *testing.T) {
	conn := dialReviewSocket(t, NewWebSocketHandler(testutil.NewMockStorage(), newFakeReviews(), defaultLimits()))

	sendMessage(t, conn, MsgTypeReviewStart, "r1", ReviewStartPayload{FileID: "missing"})
	msg := readMessage(t, conn)
	require.Equal(t, MsgTypeError, msg.Type)

	var errResp WSErrorResponse
	require.NoError(t, json.Unmarshal(msg.Payload, &errResp))
	assert.Equal(t, "NOT_FOUND", errResp.Code)
}

func TestWebSocket_FrameOverReadLimit(t *testing.T) {
	store := testutil.NewMockStorage()
	handler := NewWebSocketHandler(store, newFakeReviews(), defaultLimits())
	conn := dialReviewSocket(t, handler)

	big := strings.Repeat("A", int(handler.readLimit())+1)
	// The server may drop the connection mid-frame, so the write error is not checked
	_ = conn.WriteJSON(WSMessage{Type: MsgTypeDocumentUpload, ID: "u1", Payload: mustJSON(DocumentUploadPayload{Name: "spec.txt", Data: big})})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.Equal(t, 0, store.GetFileCount())
}

func TestDecompressGzip(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(strings.Repeat("x", 100)))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	out, err := decompressGzip(buf.Bytes(), 100)
	require.NoError(t, err)
	assert.Len(t, out, 100)

	_, err = decompressGzip(buf.Bytes(), 99)
	assert.ErrorIs(t, err, storage.ErrFileTooLarge)

	_, err = decompressGzip([]byte("not gzip"), 100)
	assert.Error(t, err)
}
