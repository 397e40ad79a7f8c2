package api

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/techspec-reviewer/backend/internal/models"
	"github.com/techspec-reviewer/backend/internal/review"
	"github.com/techspec-reviewer/backend/internal/storage"
)

// WebSocket message types for the review protocol
const (
	// Client -> Server messages
	MsgTypeSubscribe      = "subscribe"
	MsgTypeUnsubscribe    = "unsubscribe"
	MsgTypeDocumentUpload = "document:upload"
	MsgTypeReviewStart    = "review:start"
	MsgTypePing           = "ping"

	// Server -> Client messages
	MsgTypeConnected = "connected"
	MsgTypeAck       = "ack"
	MsgTypeProgress  = "progress"
	MsgTypeUploaded  = "uploaded"
	MsgTypeStarted   = "started"
	MsgTypeError     = "error"
	MsgTypePong      = "pong"
)

// WSMessage is the envelope for every WebSocket message
type WSMessage struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// SubscribePayload selects which review's events are pushed.
// An empty SessionID subscribes to every review.
type SubscribePayload struct {
	SessionID string `json:"sessionId"`
}

// DocumentUploadPayload uploads a whole document in one message
type DocumentUploadPayload struct {
	Name     string `json:"name"`
	Data     string `json:"data"`               // Base64 encoded file
	Encoding string `json:"encoding,omitempty"` // "gzip", "none"
	Review   bool   `json:"review,omitempty"`   // start a review right away
}

// ReviewStartPayload starts a review of a stored file
type ReviewStartPayload struct {
	FileID string `json:"fileId"`
}

// WSErrorResponse is the payload of an error message
type WSErrorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

const wsEnvelopeOverhead = 64 * 1024

// WebSocketHandler pushes review progress and accepts uploads over WebSocket
type WebSocketHandler struct {
	store    storage.Store
	reviews  ReviewManager
	limits   UploadLimits
	upgrader websocket.Upgrader
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(store storage.Store, reviews ReviewManager, limits UploadLimits) *WebSocketHandler {
	return &WebSocketHandler{
		store:   store,
		reviews: reviews,
		limits:  limits,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Allow connections from dev server
				return true
			},
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
		},
	}
}

// wsClient serializes writes to one connection; gorilla allows a single writer
type wsClient struct {
	ws *websocket.Conn
	mu sync.Mutex

	filterMu   sync.RWMutex
	subscribed bool
	sessionID  string
}

func (cl *wsClient) send(msg WSMessage) {
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().UnixMilli()
	}
	cl.mu.Lock()
	defer cl.mu.Unlock()
	if err := cl.ws.WriteJSON(msg); err != nil {
		fmt.Printf("[WebSocket] Failed to send message: %v\n", err)
	}
}

func (cl *wsClient) sendError(id, message, code string) {
	cl.send(WSMessage{
		Type:    MsgTypeError,
		ID:      id,
		Payload: mustJSON(WSErrorResponse{Message: message, Code: code}),
	})
}

func (cl *wsClient) setFilter(subscribed bool, sessionID string) {
	cl.filterMu.Lock()
	defer cl.filterMu.Unlock()
	cl.subscribed = subscribed
	cl.sessionID = sessionID
}

func (cl *wsClient) wants(e review.Event) bool {
	cl.filterMu.RLock()
	defer cl.filterMu.RUnlock()
	return cl.subscribed && (cl.sessionID == "" || cl.sessionID == e.SessionID)
}

// HandleWebSocket upgrades the HTTP connection and runs the review protocol
func (wsh *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	ws, err := wsh.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()
	ws.SetReadLimit(wsh.readLimit())

	fmt.Println("[WebSocket] Client connected")

	client := &wsClient{ws: ws}
	events, unsubscribe := wsh.reviews.Subscribe()
	defer unsubscribe()

	done := make(chan struct{})
	defer close(done)

	// Event pump
	go func() {
		for {
			select {
			case <-done:
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				if client.wants(e) {
					client.send(WSMessage{Type: MsgTypeProgress, ID: e.SessionID, Payload: mustJSON(e)})
				}
			}
		}
	}()

	client.send(WSMessage{Type: MsgTypeConnected})

	// Main message loop
	for {
		var msg WSMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				fmt.Printf("[WebSocket] Connection error: %v\n", err)
			}
			break
		}

		switch msg.Type {
		case MsgTypePing:
			client.send(WSMessage{Type: MsgTypePong, ID: msg.ID})
		case MsgTypeSubscribe:
			wsh.handleSubscribe(client, msg)
		case MsgTypeUnsubscribe:
			client.setFilter(false, "")
			client.send(WSMessage{Type: MsgTypeAck, ID: msg.ID})
		case MsgTypeDocumentUpload:
			wsh.handleDocumentUpload(client, msg)
		case MsgTypeReviewStart:
			wsh.handleReviewStart(client, msg)
		default:
			client.sendError(msg.ID, "Unknown message type: "+msg.Type, "INVALID_TYPE")
		}
	}

	fmt.Println("[WebSocket] Client disconnected")
	return nil
}

func (wsh *WebSocketHandler) handleSubscribe(client *wsClient, msg WSMessage) {
	var payload SubscribePayload
	if len(msg.Payload) > 0 {
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			client.sendError(msg.ID, "Invalid subscribe payload: "+err.Error(), "INVALID_PAYLOAD")
			return
		}
	}

	client.setFilter(true, payload.SessionID)
	client.send(WSMessage{Type: MsgTypeAck, ID: msg.ID})

	// Send current state so late subscribers are not left waiting
	if payload.SessionID != "" {
		if sess, ok := wsh.reviews.GetSession(payload.SessionID); ok {
			client.send(WSMessage{Type: MsgTypeProgress, ID: sess.ID, Payload: mustJSON(eventFromSession(sess))})
		}
	}
}

func (wsh *WebSocketHandler) handleDocumentUpload(client *wsClient, msg WSMessage) {
	var payload DocumentUploadPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		client.sendError(msg.ID, "Invalid upload payload: "+err.Error(), "INVALID_PAYLOAD")
		return
	}
	if payload.Name == "" || payload.Data == "" {
		client.sendError(msg.ID, "name and data are required", "VALIDATION_ERROR")
		return
	}

	data, err := base64.StdEncoding.DecodeString(payload.Data)
	if err != nil {
		client.sendError(msg.ID, "Invalid base64 data", "INVALID_PAYLOAD")
		return
	}
	if payload.Encoding == "gzip" {
		if data, err = decompressGzip(data, wsh.maxFileSize()); err != nil {
			if errors.Is(err, storage.ErrFileTooLarge) {
				client.sendError(msg.ID, err.Error(), "FILE_TOO_LARGE")
				return
			}
			client.sendError(msg.ID, "Failed to decompress: "+err.Error(), "DECOMPRESS_FAILED")
			return
		}
	}

	name := filepath.Base(payload.Name)
	if err := storage.ValidateUpload(name, int64(len(data)), wsh.limits.AllowedTypes, wsh.limits.MaxFileSize); err != nil {
		apiErr := domainError(err, "invalid upload")
		client.sendError(msg.ID, err.Error(), apiErr.Code)
		return
	}

	info, err := wsh.store.SaveBytes(name, data)
	if err != nil {
		client.sendError(msg.ID, "Failed to save file: "+err.Error(), "SAVE_FAILED")
		return
	}
	client.send(WSMessage{Type: MsgTypeUploaded, ID: msg.ID, Payload: mustJSON(info)})

	if payload.Review {
		wsh.startReview(client, msg.ID, info.ID)
	}
}

func (wsh *WebSocketHandler) handleReviewStart(client *wsClient, msg WSMessage) {
	var payload ReviewStartPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil || payload.FileID == "" {
		client.sendError(msg.ID, "fileId is required", "VALIDATION_ERROR")
		return
	}
	wsh.startReview(client, msg.ID, payload.FileID)
}

// startReview starts a review and subscribes the client to it
func (wsh *WebSocketHandler) startReview(client *wsClient, msgID, fileID string) {
	info, err := wsh.store.Get(fileID)
	if err != nil {
		client.sendError(msgID, "file not found: "+fileID, "NOT_FOUND")
		return
	}
	path, err := wsh.store.GetFilePath(fileID)
	if err != nil {
		client.sendError(msgID, "failed to get file path", "INTERNAL_ERROR")
		return
	}

	wsh.store.SetStatus(fileID, FileStatusReviewing)
	sess, err := wsh.reviews.StartReview(*info, path)
	if err != nil {
		client.sendError(msgID, "failed to start review: "+err.Error(), "INTERNAL_ERROR")
		return
	}

	client.setFilter(true, sess.ID)
	client.send(WSMessage{Type: MsgTypeStarted, ID: msgID, Payload: mustJSON(sess)})

	// The pipeline is already running; events published before the filter
	// was set are covered by this snapshot.
	if cur, ok := wsh.reviews.GetSession(sess.ID); ok {
		client.send(WSMessage{Type: MsgTypeProgress, ID: cur.ID, Payload: mustJSON(eventFromSession(cur))})
	}
}

// eventFromSession mirrors review.Event for a session snapshot
func eventFromSession(s *models.ReviewSession) review.Event {
	return review.Event{
		SessionID: s.ID,
		FileID:    s.FileID,
		Status:    s.Status,
		Stage:     s.Stage,
		Progress:  s.Progress,
	}
}

func mustJSON(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}

// decompressGzip inflates at most limit bytes; a larger stream is rejected
// without being fully expanded.
func decompressGzip(data []byte, limit int64) ([]byte, error) {
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	out, err := io.ReadAll(io.LimitReader(reader, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(out)) > limit {
		return nil, fmt.Errorf("%w: decompressed size exceeds %d bytes", storage.ErrFileTooLarge, limit)
	}
	return out, nil
}

func (wsh *WebSocketHandler) maxFileSize() int64 {
	if wsh.limits.MaxFileSize > 0 {
		return wsh.limits.MaxFileSize
	}
	return storage.DefaultMaxFileSize
}

// readLimit bounds a single frame: a base64 upload of maxFileSize plus the
// JSON envelope.
func (wsh *WebSocketHandler) readLimit() int64 {
	return int64(base64.StdEncoding.EncodedLen(int(wsh.maxFileSize()))) + wsEnvelopeOverhead
}
