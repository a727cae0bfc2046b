package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/HaruCodeTI/manifeste/api/internal/auth"
	"github.com/HaruCodeTI/manifeste/api/internal/database"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // access is checked per topic before upgrading
	},
}

// Client represents a single WebSocket connection
type Client struct {
	hub   *Hub
	conn  *websocket.Conn
	topic string
	send  chan []byte
}

// ReadPump waits for the peer to go away. Clients never send messages.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unsubscribe(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("websocket read", zap.String("topic", c.topic), zap.Error(err))
			}
			break
		}
	}
}

// WritePump pumps messages from the hub to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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

func (h *Hub) serve(w http.ResponseWriter, r *http.Request, topic string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade", zap.Error(err))
		return
	}

	client := &Client{
		hub:   h,
		conn:  conn,
		topic: topic,
		send:  make(chan []byte, 64),
	}
	if !h.Subscribe(client) {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}

// OrderLookup loads the order a customer asks to follow.
// Satisfied by *database.Queries.
type OrderLookup interface {
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
}

// SessionVerifier resolves an admin token. Satisfied by *auth.Sessions.
type SessionVerifier interface {
	Verify(ctx context.Context, token string) (*auth.Session, error)
}

// ServeCustomer streams status events of one order.
// Endpoint: WS /ws/orders/{id}?email=...&phone=...
// The email and phone must match the order, like the tracking lookup.
func ServeCustomer(hub *Hub, orders OrderLookup, w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "pedido inválido")
		return
	}
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	phone := digits(r.URL.Query().Get("phone"))
	if email == "" || phone == "" {
		writeError(w, http.StatusBadRequest, "email e telefone são obrigatórios")
		return
	}

	order, err := orders.GetOrder(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "pedido não encontrado")
			return
		}
		hub.logger.Error("ws get order", zap.String("order_id", id.String()), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "erro interno")
		return
	}
	if !strings.EqualFold(order.CustomerEmail, email) || digits(order.CustomerPhone) != phone {
		writeError(w, http.StatusNotFound, "pedido não encontrado")
		return
	}

	hub.serve(w, r, OrderTopic(id))
}

// ServeAdmin streams every order event to an authenticated admin.
// Endpoint: WS /ws/admin/orders?token=...
// Browsers cannot set headers on websocket requests, so the token comes in
// the query string.
func ServeAdmin(hub *Hub, sessions SessionVerifier, w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, http.StatusUnauthorized, "sessão ausente")
		return
	}
	if _, err := sessions.Verify(r.Context(), token); err != nil {
		if !errors.Is(err, auth.ErrSessionInvalid) {
			hub.logger.Error("ws verify session", zap.Error(err))
		}
		writeError(w, http.StatusUnauthorized, "sessão inválida ou expirada")
		return
	}

	hub.serve(w, r, AdminTopic)
}

func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
