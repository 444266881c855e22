package controllers

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	logrus "github.com/sirupsen/logrus"

	"radhiant_ops/internal/occupancy"
)

const (
	writeWait      = 10 * time.Second
	clientQueueLen = 16
)

// upgrader configures the WebSocket connection. The board is public, like the
// sign-in pages that embed it.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// TruckEvent is what board clients receive: one snapshot on connect, then an
// update per changed truck.
type TruckEvent struct {
	Type   string                  `json:"type"`
	Truck  *occupancy.TruckStatus  `json:"truck,omitempty"`
	Trucks []occupancy.TruckStatus `json:"trucks,omitempty"`
}

type truckClient struct {
	conn  *websocket.Conn
	truck string // "" follows every truck
	send  chan TruckEvent
}

// TruckHub fans truck status updates out to connected board clients.
type TruckHub struct {
	clients   map[*truckClient]struct{}
	broadcast chan occupancy.TruckStatus
	done      chan struct{}
	closeOnce sync.Once
	closed    bool
	mu        sync.Mutex
	log       logrus.FieldLogger
}

// NewTruckHub creates a hub and starts its broadcast goroutine.
func NewTruckHub(log logrus.FieldLogger) *TruckHub {
	if log == nil {
		log = logrus.StandardLogger()
	}
	hub := &TruckHub{
		clients:   make(map[*truckClient]struct{}),
		broadcast: make(chan occupancy.TruckStatus, 100),
		done:      make(chan struct{}),
		log:       log,
	}
	go hub.run()
	return hub
}

func (h *TruckHub) run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.closed = true
			h.mu.Unlock()
			return
		case status := <-h.broadcast:
			h.fanOut(status)
		}
	}
}

func (h *TruckHub) fanOut(status occupancy.TruckStatus) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if c.truck != "" && c.truck != status.ID {
			continue
		}
		st := status
		select {
		case c.send <- TruckEvent{Type: "update", Truck: &st}:
		default:
			// slow consumer, drop it rather than stall everyone else
			delete(h.clients, c)
			close(c.send)
			h.log.WithFields(logrus.Fields{
				"truck_id": c.truck,
				"conn_ptr": fmt.Sprintf("%p", c.conn),
			}).Warn("Board client too slow, disconnecting.")
		}
	}
}

func (h *TruckHub) register(c *truckClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	h.log.WithFields(logrus.Fields{
		"truck_id": c.truck,
		"conn_ptr": fmt.Sprintf("%p", c.conn),
	}).Info("Client registered with TruckHub.")
	return true
}

func (h *TruckHub) unregister(c *truckClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		h.log.WithFields(logrus.Fields{
			"truck_id": c.truck,
			"conn_ptr": fmt.Sprintf("%p", c.conn),
		}).Info("Client unregistered from TruckHub.")
	}
}

// Clients returns the number of connected board clients.
func (h *TruckHub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Publish queues a status for broadcast. It never blocks.
func (h *TruckHub) Publish(status occupancy.TruckStatus) {
	select {
	case <-h.done:
		return
	default:
	}
	select {
	case h.broadcast <- status:
	default:
		h.log.WithField("truck_id", status.ID).Warn("Truck broadcast channel full, dropping message.")
	}
}

// Close disconnects every client and stops the hub.
func (h *TruckHub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// TruckSource resolves the current status of one truck.
type TruckSource interface {
	Truck(ctx context.Context, truckID string) (*occupancy.TruckStatus, error)
}

// StatusBroadcaster is an occupancy observer that pushes fresh truck status
// to the hub. Register it after the status cache so it never reads a stale
// cached entry.
type StatusBroadcaster struct {
	Hub    *TruckHub
	Source TruckSource
	Log    logrus.FieldLogger
}

func (b *StatusBroadcaster) TruckChanged(ctx context.Context, truckID string) {
	status, err := b.Source.Truck(ctx, truckID)
	if err != nil {
		log := b.Log
		if log == nil {
			log = logrus.StandardLogger()
		}
		log.WithError(err).WithField("truck_id", truckID).Warn("Could not load truck status for broadcast.")
		return
	}
	b.Hub.Publish(*status)
}

// HandleTruckWebSocket streams live truck status. ?truck=<id> limits the
// stream to one truck.
func (h *Handler) HandleTruckWebSocket(c *gin.Context) {
	ctx := c.Request.Context()
	truckID := c.Query("truck")

	var snapshot TruckEvent
	if truckID != "" {
		status, err := h.Status.Truck(ctx, truckID)
		if err != nil {
			respondOccupancy(c, http.StatusOK, nil, err)
			return
		}
		snapshot = TruckEvent{Type: "snapshot", Trucks: []occupancy.TruckStatus{*status}}
	} else {
		statuses, err := h.Status.All(ctx)
		if err != nil {
			respondOccupancy(c, http.StatusOK, nil, err)
			return
		}
		snapshot = TruckEvent{Type: "snapshot", Trucks: statuses}
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log().WithError(err).Error("Failed to upgrade WebSocket connection.")
		return
	}
	defer conn.Close()

	client := &truckClient{conn: conn, truck: truckID, send: make(chan TruckEvent, clientQueueLen)}
	// the snapshot is queued before registering so it is always the first frame
	client.send <- snapshot
	if !h.Hub.register(client) {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		return
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.writeEvents(client)
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log().WithError(err).WithField("truck_id", truckID).Debug("Board WebSocket read ended.")
			}
			break
		}
		// board clients only listen
	}
	h.Hub.unregister(client)
	<-writerDone
}

func (h *Handler) writeEvents(c *truckClient) {
	for event := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(event); err != nil {
			h.log().WithError(err).WithField("conn_ptr", fmt.Sprintf("%p", c.conn)).Warn("Failed to send truck event to client.")
			// unblock the reader so the handler can return
			_ = c.conn.Close()
			for range c.send {
			}
			return
		}
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
