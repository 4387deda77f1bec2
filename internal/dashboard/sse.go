package dashboard

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/huebot/internal/chat"
)

// Session is the live chat controller as seen by the dashboard.
type Session interface {
	Subscribe(fn func(chat.Event)) func()
	Snapshot() chat.Snapshot
	Messages() []chat.Message
}

// clientBuffer is how many events a slow SSE client may lag before events
// are dropped for it.
const clientBuffer = 64

// Hub fans controller events out to SSE clients.
type Hub struct {
	session     Session
	unsubscribe func()
	heartbeat   time.Duration

	mu      sync.Mutex
	clients map[chan chat.Event]struct{}
	dropped int
}

// NewHub subscribes to session. Call Close to detach.
func NewHub(session Session) *Hub {
	h := &Hub{
		session:   session,
		heartbeat: 15 * time.Second,
		clients:   make(map[chan chat.Event]struct{}),
	}
	h.unsubscribe = session.Subscribe(h.broadcast)
	return h
}

// Close detaches from the session and ends every client stream.
func (h *Hub) Close() {
	h.unsubscribe()
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		close(ch)
		delete(h.clients, ch)
	}
}

// Snapshot is the session state plus transcript.
func (h *Hub) Snapshot() gin.H {
	return gin.H{
		"state":      h.session.Snapshot(),
		"transcript": h.session.Messages(),
	}
}

func (h *Hub) subscribe() chan chat.Event {
	ch := make(chan chat.Event, clientBuffer)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) leave(ch chan chat.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[ch]; ok {
		delete(h.clients, ch)
		close(ch)
	}
}

// broadcast never blocks the controller; full client buffers drop the event.
func (h *Hub) broadcast(ev chat.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- ev:
		default:
			h.dropped++
		}
	}
}

func (h *Hub) clientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// handleSSE streams controller events until the client disconnects.
func handleSSE(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")
		c.Status(http.StatusOK)

		writeSSE(c.Writer, "connected", map[string]bool{"live": hub != nil})
		c.Writer.Flush()

		// Without a live session there is nothing to stream.
		if hub == nil {
			return
		}

		events := hub.subscribe()
		defer hub.leave(events)

		ctx := c.Request.Context()
		heartbeat := time.NewTicker(hub.heartbeat)
		defer heartbeat.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-heartbeat.C:
				writeSSE(c.Writer, "heartbeat", map[string]string{
					"timestamp": time.Now().UTC().Format(time.RFC3339),
				})
				c.Writer.Flush()
			case ev, ok := <-events:
				if !ok {
					return
				}
				writeSSE(c.Writer, string(ev.Type), ev)
				c.Writer.Flush()
			}
		}
	}
}

// writeSSE writes a single SSE event to the writer.
func writeSSE(w io.Writer, event string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, string(jsonData))
}
