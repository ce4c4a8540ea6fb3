package relay

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"gamechat/internal/config"
	"gamechat/pkg/interfaces"
	"gamechat/pkg/types"
)

// Client-facing notices. Deliberately generic: internal failure detail goes
// to the log, never over the wire.
const (
	noticeTokenRequired = "Authentication token required"
	noticeAuthFailed    = "Authentication failed"
	noticeInvalidFormat = "Invalid message format"
	noticeUnknownType   = "Unknown message type"
	noticeEmptyContent  = "Message content required"
	noticeContentTooBig = "Message too long"
	noticeSendFailed    = "Failed to send message"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:   4096,
	WriteBufferSize:  4096,
	HandshakeTimeout: 10 * time.Second,
	CheckOrigin: func(r *http.Request) bool {
		// Browser clients are served from the same host as the web tier;
		// origin enforcement happens at the reverse proxy.
		return true
	},
}

// Handler accepts websocket connections, authenticates them against the
// session store, and runs the per-connection read loop that persists and
// broadcasts chat messages.
type Handler struct {
	registry     *Registry
	resolver     interfaces.SessionResolver
	store        interfaces.MessageStore
	cookieName   string
	pingInterval time.Duration
	readTimeout  time.Duration
	writeTimeout time.Duration
	sendBuffer   int
}

// NewHandler wires the relay endpoint.
func NewHandler(registry *Registry, resolver interfaces.SessionResolver, store interfaces.MessageStore, cfg *config.Config) *Handler {
	return &Handler{
		registry:     registry,
		resolver:     resolver,
		store:        store,
		cookieName:   cfg.Session.CookieName,
		pingInterval: cfg.WebSocket.PingInterval,
		readTimeout:  cfg.WebSocket.ReadTimeout,
		writeTimeout: cfg.WebSocket.WriteTimeout,
		sendBuffer:   cfg.WebSocket.SendBuffer,
	}
}

// HandleWebSocket upgrades the request and authenticates the connection.
// Rejected connections receive one error envelope and are closed without
// ever touching the registry; accepted connections are bound to their user
// identity, attached, and handed a read loop.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := h.sessionToken(r)

	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Error("websocket upgrade failed")
		return
	}

	conn := NewConnection(wsConn, h.sendBuffer, h.writeTimeout)
	logger := log.WithField("conn_id", conn.ID())
	logger.Debug("connection accepted")

	if token == "" {
		logger.Warn("connection rejected: no session token")
		conn.NotifyClose(types.NewErrorEnvelope(noticeTokenRequired))
		return
	}

	userID, err := h.resolver.Resolve(token)
	if err != nil {
		logger.WithError(err).Warn("connection rejected: authentication failed")
		conn.NotifyClose(types.NewErrorEnvelope(noticeAuthFailed))
		return
	}

	conn.Bind(userID)
	if err := h.registry.Attach(conn); err != nil {
		logger.WithError(err).Error("failed to attach connection")
		_ = conn.Close()
		return
	}

	logger.WithField("user_id", userID).Info("user connected")

	go h.readPump(conn)
}

// sessionToken extracts the web tier's session cookie value, if present.
func (h *Handler) sessionToken(r *http.Request) string {
	cookie, err := r.Cookie(h.cookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// readPump reads frames until the connection dies, then detaches it exactly
// once and closes the transport.
func (h *Handler) readPump(conn *Connection) {
	userID, _ := conn.UserID()
	logger := log.WithFields(log.Fields{
		"conn_id": conn.ID(),
		"user_id": userID,
	})

	defer func() {
		h.registry.Detach(conn)
		_ = conn.Close()
		logger.Info("user disconnected")
	}()

	_ = conn.conn.SetReadDeadline(time.Now().Add(h.readTimeout))
	conn.conn.SetPongHandler(func(string) error {
		return conn.conn.SetReadDeadline(time.Now().Add(h.readTimeout))
	})

	go h.pingLoop(conn)

	for {
		messageType, data, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.WithError(err).Warn("connection read error")
			}
			return
		}

		if messageType != websocket.TextMessage {
			continue
		}

		h.handleFrame(conn, data, logger)
	}
}

// pingLoop keeps the transport alive until the connection context ends.
// WriteControl is safe concurrently with the connection's writer goroutine;
// data frames must never be written from here.
func (h *Handler) pingLoop(conn *Connection) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			deadline := time.Now().Add(h.writeTimeout)
			if err := conn.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		case <-conn.Context().Done():
			return
		}
	}
}

// handleFrame dispatches one inbound frame. Malformed frames and unknown
// types produce a notice to the sender; the connection stays open either
// way.
func (h *Handler) handleFrame(conn *Connection, data []byte, logger *log.Entry) {
	var envelope types.InboundEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		logger.WithError(err).Warn("malformed frame")
		h.notify(conn, noticeInvalidFormat)
		return
	}

	switch envelope.Type {
	case types.EnvelopeTypeSend:
		h.handleSend(conn, envelope, logger)
	default:
		logger.WithField("type", envelope.Type).Warn("unknown frame type")
		h.notify(conn, noticeUnknownType)
	}
}

// handleSend persists the message and, only after the write succeeds,
// broadcasts it to every attached connection including the sender. A failed
// persist notifies the sender alone; nothing reaches the other clients.
func (h *Handler) handleSend(conn *Connection, envelope types.InboundEnvelope, logger *log.Entry) {
	content := strings.TrimSpace(envelope.Content)
	if err := types.ValidateContent(content); err != nil {
		logger.WithError(err).Warn("rejected send frame")
		if err == types.ErrContentTooLarge {
			h.notify(conn, noticeContentTooBig)
		} else {
			h.notify(conn, noticeEmptyContent)
		}
		return
	}

	userID, ok := conn.UserID()
	if !ok {
		// Unreachable through HandleWebSocket; guards direct test wiring.
		logger.Error("send frame on unbound connection")
		return
	}

	ctx := conn.Context()

	var avatarURL *string
	if summary, err := h.store.UserSummary(ctx, userID); err != nil {
		// Display metadata is cosmetic; the message still goes out.
		logger.WithError(err).Warn("avatar lookup failed")
	} else if summary != nil {
		avatarURL = summary.AvatarURL
	}

	message := &types.Message{
		SenderID: userID,
		Content:  content,
	}

	if err := h.store.SaveMessage(ctx, message); err != nil {
		logger.WithError(err).Error("failed to persist message")
		h.notify(conn, noticeSendFailed)
		return
	}

	h.registry.Broadcast(types.NewMessageEnvelope(message, avatarURL))

	logger.WithField("message_id", message.ID).Debug("message broadcast")
}

// notify sends an error envelope to a single connection, best effort.
func (h *Handler) notify(conn *Connection, message string) {
	if err := conn.WriteJSON(types.NewErrorEnvelope(message)); err != nil {
		log.WithFields(log.Fields{
			"conn_id": conn.ID(),
		}).WithError(err).Debug("failed to deliver notice")
	}
}
