// Package websocket pushes change notifications to dashboard clients. Clients
// subscribe to topics such as "calendar/<doctor>" or "invoices/<patient>" and
// receive every event published to those topics.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/platform/auth"
)

const (
	sendBuffer     = 64
	maxMessageSize = 4096
	writeWait      = 10 * time.Second

	// Clients that miss pings for pongWait are dropped.
	pongWait = 60 * time.Second
)

// Event is one change notification.
type Event struct {
	Kind      string          `json:"kind"`
	Topic     string          `json:"topic"`
	ID        string          `json:"id,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// ClientMessage is what clients send to change their subscriptions.
type ClientMessage struct {
	Action string   `json:"action"`
	Topics []string `json:"topics"`
}

type Client struct {
	ID     string
	UserID string
	Topics []string
	Send   chan []byte
}

func newClient(userID string) *Client {
	return &Client{ID: uuid.NewString(), UserID: userID, Send: make(chan []byte, sendBuffer)}
}

// Hub tracks clients and their topic subscriptions. It is safe for
// concurrent use.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{} // topic -> clients
	all     map[*Client]struct{}
	logger  zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		all:     make(map[*Client]struct{}),
		logger:  logger.With().Str("component", "websocket").Logger(),
	}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.all[client] = struct{}{}
	h.subscribeLocked(client, client.Topics)
}

// Unregister drops the client from every topic and closes its Send channel.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.all[client]; !ok {
		return
	}
	h.unsubscribeLocked(client, client.Topics)
	delete(h.all, client)
	close(client.Send)
}

func (h *Hub) Subscribe(client *Client, topics []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subscribeLocked(client, topics)
	for _, t := range topics {
		if !contains(client.Topics, t) {
			client.Topics = append(client.Topics, t)
		}
	}
}

func (h *Hub) Unsubscribe(client *Client, topics []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unsubscribeLocked(client, topics)
	remaining := client.Topics[:0]
	for _, t := range client.Topics {
		if !contains(topics, t) {
			remaining = append(remaining, t)
		}
	}
	client.Topics = remaining
}

func (h *Hub) subscribeLocked(client *Client, topics []string) {
	for _, topic := range topics {
		if h.clients[topic] == nil {
			h.clients[topic] = make(map[*Client]struct{})
		}
		h.clients[topic][client] = struct{}{}
	}
}

func (h *Hub) unsubscribeLocked(client *Client, topics []string) {
	for _, topic := range topics {
		if subscribers, ok := h.clients[topic]; ok {
			delete(subscribers, client)
			if len(subscribers) == 0 {
				delete(h.clients, topic)
			}
		}
	}
}

// Broadcast sends event to the subscribers of its topic. Clients whose
// buffer is full miss the event.
func (h *Hub) Broadcast(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error().Err(err).Str("topic", event.Topic).Msg("failed to marshal event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[event.Topic] {
		select {
		case client.Send <- data:
		default:
			h.logger.Warn().Str("client_id", client.ID).Str("topic", event.Topic).Msg("client buffer full, dropping event")
		}
	}
}

// Notify publishes a change of kind to topic. It satisfies the notifier
// interfaces of the calendar and billing services.
func (h *Hub) Notify(_ context.Context, topic, kind, id string, payload any) {
	event := Event{Kind: kind, Topic: topic, ID: id, Timestamp: time.Now().UTC()}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			h.logger.Error().Err(err).Str("kind", kind).Msg("failed to marshal payload")
			return
		}
		event.Data = data
	}
	h.Broadcast(event)
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.all)
}

func (h *Hub) TopicCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[topic])
}

// CanSubscribe reports whether the caller may follow topic. Admins may follow
// anything; everyone else only topics ending in their own user id.
func CanSubscribe(ctx context.Context, topic string) bool {
	if auth.HasRole(ctx, auth.RoleAdmin) {
		return true
	}
	user := auth.UserIDFromContext(ctx)
	i := strings.LastIndex(topic, "/")
	return user != "" && i > 0 && topic[i+1:] == user
}

// -- HTTP --

type Handler struct {
	hub        *Hub
	upgrader   gorillawebsocket.Upgrader
	pongWait   time.Duration
	pingPeriod time.Duration
}

// NewHandler accepts upgrades from the given origins; "*" allows any.
func NewHandler(hub *Hub, origins []string) *Handler {
	return &Handler{
		hub:        hub,
		pongWait:   pongWait,
		pingPeriod: pongWait * 9 / 10,
		upgrader: gorillawebsocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(origins),
		},
	}
}

func originChecker(origins []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range origins {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/ws", h.Connect)
}

// Connect upgrades the request and serves the client until it disconnects.
// Topics can be given up front with ?topic=a&topic=b.
func (h *Handler) Connect(c echo.Context) error {
	ctx := c.Request().Context()
	initial := c.QueryParams()["topic"]
	for _, t := range initial {
		if !CanSubscribe(ctx, t) {
			return echo.NewHTTPError(http.StatusForbidden, "not allowed to subscribe to "+t)
		}
	}

	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// The upgrader already wrote the error response.
		return nil
	}

	client := newClient(auth.UserIDFromContext(ctx))
	client.Topics = append(client.Topics, initial...)
	h.hub.Register(client)
	h.hub.logger.Debug().Str("client_id", client.ID).Str("user_id", client.UserID).Msg("client connected")

	go h.writePump(client, ws)
	h.readPump(ctx, client, ws)
	return nil
}

func (h *Handler) readPump(ctx context.Context, client *Client, ws *gorillawebsocket.Conn) {
	defer func() {
		h.hub.Unregister(client)
		ws.Close()
	}()

	ws.SetReadLimit(maxMessageSize)
	extend := func(string) error { return ws.SetReadDeadline(time.Now().Add(h.pongWait)) }
	extend("")
	ws.SetPongHandler(extend)

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		extend("")
		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		h.process(ctx, client, msg)
	}
}

func (h *Handler) process(ctx context.Context, client *Client, msg ClientMessage) {
	switch msg.Action {
	case "subscribe":
		var allowed []string
		for _, t := range msg.Topics {
			if CanSubscribe(ctx, t) {
				allowed = append(allowed, t)
			} else {
				h.reject(client, t)
			}
		}
		h.hub.Subscribe(client, allowed)
	case "unsubscribe":
		h.hub.Unsubscribe(client, msg.Topics)
	}
}

func (h *Handler) reject(client *Client, topic string) {
	data, _ := json.Marshal(Event{Kind: "error", Topic: topic, Timestamp: time.Now().UTC()})
	select {
	case client.Send <- data:
	default:
	}
}

func (h *Handler) writePump(client *Client, ws *gorillawebsocket.Conn) {
	ticker := time.NewTicker(h.pingPeriod)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()
	for {
		select {
		case message, ok := <-client.Send:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				ws.WriteMessage(gorillawebsocket.CloseMessage, []byte{})
				return
			}
			if err := ws.WriteMessage(gorillawebsocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(gorillawebsocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
