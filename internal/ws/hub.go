package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Client is the part of *websocket.Conn the hub needs.
type Client interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Subscriber is the signed-in user behind a connection.
type Subscriber struct {
	UserID uuid.UUID
	Admin  bool
}

func (s Subscriber) receives(audience []uuid.UUID) bool {
	if s.Admin {
		return true
	}
	for _, id := range audience {
		if id == s.UserID {
			return true
		}
	}
	return false
}

// Event types broadcast to clients.
const (
	EventProposalCreated     = "proposal_created"
	EventProposalSubmitted   = "proposal_submitted"
	EventProposalResubmitted = "proposal_resubmitted"
	EventStakeholderInvited  = "stakeholder_invited"
	EventInvitationResponded = "invitation_responded"
	EventApprovalRecorded    = "approval_recorded"
	EventStatusChanged       = "status_changed"
)

// Event is one workflow notification. It is delivered to admins and to the
// users listed in Audience.
type Event struct {
	Type       string      `json:"type"`
	ProposalID uuid.UUID   `json:"proposal_id"`
	Status     string      `json:"status,omitempty"`
	ActorID    string      `json:"actor_id,omitempty"`
	ActorName  string      `json:"actor_name,omitempty"`
	Message    string      `json:"message,omitempty"`
	Data       any         `json:"data,omitempty"`
	At         time.Time   `json:"at"`
	Audience   []uuid.UUID `json:"-"`
}

const broadcastBuffer = 64

type registration struct {
	client Client
	sub    Subscriber
}

type delivery struct {
	payload  []byte
	audience []uuid.UUID
}

type Hub struct {
	clients    map[Client]Subscriber
	register   chan registration
	unregister chan Client
	broadcast  chan delivery
	done       chan struct{}
	mutex      sync.Mutex
	log        logrus.FieldLogger
}

func NewHub(log logrus.FieldLogger) *Hub {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Hub{
		clients:    make(map[Client]Subscriber),
		register:   make(chan registration),
		unregister: make(chan Client),
		broadcast:  make(chan delivery, broadcastBuffer),
		done:       make(chan struct{}),
		log:        log.WithField("component", "ws"),
	}
}

// Run serves register, unregister and broadcast requests until ctx is done.
// It must be called once.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			for conn := range h.clients {
				conn.Close()
				delete(h.clients, conn)
			}
			h.mutex.Unlock()
			return

		case r := <-h.register:
			h.mutex.Lock()
			h.clients[r.client] = r.sub
			h.mutex.Unlock()
			h.log.WithField("user_id", r.sub.UserID).Debug("ws client connected")

		case conn := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			h.mutex.Unlock()

		case d := <-h.broadcast:
			h.mutex.Lock()
			for conn, sub := range h.clients {
				if !sub.receives(d.audience) {
					continue
				}
				if err := conn.WriteMessage(websocket.TextMessage, d.payload); err != nil {
					conn.Close()
					delete(h.clients, conn)
				}
			}
			h.mutex.Unlock()
		}
	}
}

// Register adds conn for sub. It returns false, and closes conn, when the hub
// has already stopped.
func (h *Hub) Register(conn Client, sub Subscriber) bool {
	select {
	case h.register <- registration{client: conn, sub: sub}:
		return true
	case <-h.done:
		conn.Close()
		return false
	}
}

// Unregister removes conn. After the hub has stopped it returns immediately.
func (h *Hub) Unregister(conn Client) {
	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}

// Publish queues an event for delivery. It never blocks the caller; when the
// buffer is full the event is dropped and logged.
func (h *Hub) Publish(event Event) {
	if event.At.IsZero() {
		event.At = time.Now()
	}
	msg, err := json.Marshal(event)
	if err != nil {
		h.log.WithError(err).WithField("type", event.Type).Error("ws: marshal event")
		return
	}

	select {
	case h.broadcast <- delivery{payload: msg, audience: event.Audience}:
	default:
		h.log.WithField("type", event.Type).Warn("ws: broadcast buffer full, event dropped")
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.clients)
}
