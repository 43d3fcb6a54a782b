package chat

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"courier/internal/auth"
	"courier/internal/models"
	"courier/internal/user"
	"courier/internal/web"
)

const defaultHistoryLimit = 50

// Store is the full chat persistence surface the handlers need.
type Store interface {
	GetChat(ctx context.Context, chatID uuid.UUID) (*models.Chat, error)
	IsMember(ctx context.Context, chatID, userID uuid.UUID) (bool, error)
	GetOrCreatePrivate(ctx context.Context, a, b uuid.UUID) (uuid.UUID, error)
	ListChats(ctx context.Context, userID uuid.UUID) ([]*models.Chat, error)
	AppendMessage(ctx context.Context, chatID, senderID, senderDeviceID uuid.UUID, payload string) (*models.MessageView, error)
	ListMessages(ctx context.Context, chatID uuid.UUID, limit int) ([]*models.MessageView, error)
}

// UserFinder resolves recipients when opening a private chat.
type UserFinder interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type Handler struct {
	hub   *Hub
	store Store
	users UserFinder
	gate  *auth.Gate
}

func NewHandler(hub *Hub, store Store, users UserFinder, gate *auth.Gate) *Handler {
	return &Handler{hub: hub, store: store, users: users, gate: gate}
}

// CreatePrivateChat opens (or returns) the one private chat between the
// caller and the recipient.
func (h *Handler) CreatePrivateChat(w http.ResponseWriter, r *http.Request) {
	ident, ok := auth.FromContext(r.Context())
	if !ok {
		web.Unauthorized(w)
		return
	}

	recipientID, err := uuid.Parse(chi.URLParam(r, "recipient_id"))
	if err != nil {
		web.Error(w, http.StatusBadRequest, "invalid recipient id")
		return
	}

	if _, err := h.users.GetByID(r.Context(), recipientID); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			web.Error(w, http.StatusNotFound, "recipient not found")
			return
		}
		web.Error(w, http.StatusInternalServerError, "failed to open chat")
		return
	}

	chatID, err := h.store.GetOrCreatePrivate(r.Context(), ident.User.ID, recipientID)
	if err != nil {
		log.Error().Err(err).Msg("open private chat")
		web.Error(w, http.StatusInternalServerError, "failed to open chat")
		return
	}

	web.JSON(w, http.StatusOK, map[string]string{"chat_id": chatID.String()})
}

// ListChats returns every chat the caller is a member of.
func (h *Handler) ListChats(w http.ResponseWriter, r *http.Request) {
	ident, ok := auth.FromContext(r.Context())
	if !ok {
		web.Unauthorized(w)
		return
	}

	chats, err := h.store.ListChats(r.Context(), ident.User.ID)
	if err != nil {
		log.Error().Err(err).Msg("list chats")
		web.Error(w, http.StatusInternalServerError, "failed to list chats")
		return
	}
	if chats == nil {
		chats = []*models.Chat{}
	}
	web.JSON(w, http.StatusOK, chats)
}

// GetMessages returns recent history for a chat the caller belongs to,
// newest first.
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	ident, ok := auth.FromContext(r.Context())
	if !ok {
		web.Unauthorized(w)
		return
	}

	chatID, err := uuid.Parse(chi.URLParam(r, "chat_id"))
	if err != nil {
		web.Error(w, http.StatusBadRequest, "invalid chat id")
		return
	}

	member, err := h.store.IsMember(r.Context(), chatID, ident.User.ID)
	if err != nil {
		web.Error(w, http.StatusInternalServerError, "failed to load messages")
		return
	}
	if !member {
		web.Error(w, http.StatusForbidden, "not a member of this chat")
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	msgs, err := h.store.ListMessages(r.Context(), chatID, limit)
	if err != nil {
		log.Error().Err(err).Str("chat_id", chatID.String()).Msg("list messages")
		web.Error(w, http.StatusInternalServerError, "failed to load messages")
		return
	}
	if msgs == nil {
		msgs = []*models.MessageView{}
	}
	web.JSON(w, http.StatusOK, msgs)
}

// SendMessage appends a message over plain HTTP, for clients without a live
// websocket. The stored message is returned; delivery to subscribers happens
// when they next load history.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	ident, ok := auth.FromContext(r.Context())
	if !ok {
		web.Unauthorized(w)
		return
	}

	chatID, err := uuid.Parse(chi.URLParam(r, "chat_id"))
	if err != nil {
		web.Error(w, http.StatusBadRequest, "invalid chat id")
		return
	}
	if err := r.ParseForm(); err != nil {
		web.Error(w, http.StatusBadRequest, "invalid form body")
		return
	}
	payload := r.PostFormValue("payload")
	if payload == "" {
		web.Error(w, http.StatusBadRequest, "payload must not be empty")
		return
	}

	member, err := h.store.IsMember(r.Context(), chatID, ident.User.ID)
	if err != nil {
		web.Error(w, http.StatusInternalServerError, "failed to send message")
		return
	}
	if !member {
		web.Error(w, http.StatusForbidden, "not a member of this chat")
		return
	}

	view, err := h.store.AppendMessage(r.Context(), chatID, ident.User.ID, ident.Session.ID, payload)
	if err != nil {
		log.Error().Err(err).Str("chat_id", chatID.String()).Msg("send message")
		web.Error(w, http.StatusInternalServerError, "failed to send message")
		return
	}
	web.JSON(w, http.StatusOK, view)
}

// ServeWS upgrades the connection and attaches it to a chat. The upgrade
// happens before credential checks so rejections can be reported in-band;
// every rejection closes the socket with code 1008.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Msg("websocket upgrade")
		return
	}

	u, sess, err := h.gate.Authenticate(r.Context(), auth.BearerToken(r))
	if err != nil {
		closePolicyViolation(conn, "invalid or expired credentials")
		return
	}

	chatID, err := uuid.Parse(chi.URLParam(r, "chat_id"))
	if err != nil {
		closePolicyViolation(conn, "invalid chat id")
		return
	}

	if _, err := h.store.GetChat(r.Context(), chatID); err != nil {
		closePolicyViolation(conn, "chat not found")
		return
	}

	member, err := h.store.IsMember(r.Context(), chatID, u.ID)
	if err != nil || !member {
		closePolicyViolation(conn, "not a member of this chat")
		return
	}

	client := newClient(h.hub, h.store, conn, chatID, u, sess)
	h.hub.Subscribe(chatID, client)

	go client.writePump()
	go client.readPump()
}

func closePolicyViolation(conn *websocket.Conn, reason string) {
	msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason)
	conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	conn.Close()
}
