package chat

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"courier/internal/metrics"
	"courier/internal/models"
)

const (
	writeWait      = 10 * time.Second    // Time allowed to write a message to the peer.
	pongWait       = 60 * time.Second    // Time allowed to read the next pong message from the peer.
	pingPeriod     = (pongWait * 9) / 10 // Send pings to peer with this period. Must be less than pongWait.
	maxMessageSize = 4096                // Maximum message size allowed from peer.

	persistTimeout = 5 * time.Second
)

// MessageAppender is the slice of the chat store the connection loop needs.
type MessageAppender interface {
	AppendMessage(ctx context.Context, chatID, senderID, senderDeviceID uuid.UUID, payload string) (*models.MessageView, error)
}

// Client is a middleman between one websocket connection and the hub. It is
// created only after the handshake fully authenticated the caller and
// verified chat membership.
type Client struct {
	hub   *Hub
	store MessageAppender
	conn  *websocket.Conn

	// Buffered channel of outbound frames. Closed only by the hub, under
	// its mutex, after the client leaves every bucket; closed marks that
	// moment so no send can race the close.
	send   chan []byte
	closed bool // guarded by hub.mu

	chatID  uuid.UUID
	user    *models.User
	session *models.Session
}

func newClient(hub *Hub, store MessageAppender, conn *websocket.Conn, chatID uuid.UUID, user *models.User, sess *models.Session) *Client {
	return &Client{
		hub:     hub,
		store:   store,
		conn:    conn,
		send:    make(chan []byte, 256),
		chatID:  chatID,
		user:    user,
		session: sess,
	}
}

// readPump pumps inbound events from the websocket connection. Cleanup is
// guaranteed: whatever ends the loop, the client is unsubscribed.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unsubscribe(c.chatID, c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debug().Err(err).Str("chat_id", c.chatID.String()).Msg("websocket read")
			}
			break
		}
		c.handleFrame(data)
	}
}

// handleFrame dispatches one inbound frame. Protocol errors go back to this
// connection only and never close it.
func (c *Client) handleFrame(data []byte) {
	ev, err := ParseInbound(data)
	if err != nil {
		if err == ErrUnknownEvent {
			c.reply(errorFrame("unknown event"))
		} else {
			c.reply(errorFrame("invalid message format"))
		}
		return
	}

	switch ev.Event {
	case EventSendMessage:
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()

		view, err := c.store.AppendMessage(ctx, c.chatID, c.user.ID, c.session.ID, ev.Payload)
		if err != nil {
			log.Error().Err(err).Str("chat_id", c.chatID.String()).Msg("persist message")
			c.reply(errorFrame("failed to save message"))
			return
		}
		b, err := json.Marshal(view)
		if err != nil {
			c.reply(errorFrame("failed to save message"))
			return
		}
		metrics.WSMessagesTotal.Inc()
		c.hub.Broadcast(c.chatID, b, c)

	case EventTyping:
		b, _ := json.Marshal(typingEvent{Event: EventTyping, UserID: c.user.ID.String()})
		c.hub.Broadcast(c.chatID, b, c)
	}
}

// reply queues a frame for this connection only. Routed through the hub so
// it cannot race a concurrent drop of this client.
func (c *Client) reply(frame []byte) {
	c.hub.Reply(c, frame)
}

// writePump pumps frames from the hub to the websocket connection and keeps
// the connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(frame)

			// Flush any queued frames in the same write.
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
