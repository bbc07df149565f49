package handler

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"stratagem-ai/internal/app"
	"stratagem-ai/internal/render"
	"stratagem-ai/internal/transport/http/middleware"
)

const keepAliveInterval = 25 * time.Second

// EventsHandler pushes the session's state to the browser after every change,
// over SSE or WebSocket.
type EventsHandler struct {
	chatService    *app.ChatService
	limiter        middleware.Limiter
	allowedOrigins map[string]bool
	upgrader       websocket.Upgrader
}

type wsEvent struct {
	Type  string            `json:"type"`
	State *render.StateView `json:"state,omitempty"`
	Error string            `json:"error,omitempty"`
}

type wsIncoming struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// NewEventsHandler builds the SSE and WebSocket endpoints. limiter may be nil;
// otherwise every WebSocket message frame spends from the same budget as the
// HTTP writes.
func NewEventsHandler(chatService *app.ChatService, limiter middleware.Limiter, allowedOrigins []string) *EventsHandler {
	h := &EventsHandler{chatService: chatService, limiter: limiter, allowedOrigins: make(map[string]bool)}
	for _, o := range allowedOrigins {
		h.allowedOrigins[o] = true
	}
	h.upgrader = websocket.Upgrader{CheckOrigin: h.checkOrigin}
	return h
}

func (h *EventsHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true // non-browser clients
	}
	if len(h.allowedOrigins) > 0 {
		return h.allowedOrigins[origin]
	}
	u, err := url.Parse(origin)
	return err == nil && u.Host == r.Host
}

// Stream is the SSE endpoint. The first event carries the current state.
func (h *EventsHandler) Stream(c *gin.Context) {
	sess, ok := middleware.SessionFrom(c)
	if !ok {
		c.Status(http.StatusInternalServerError)
		return
	}
	ticks, unsubscribe := sess.Subscribe()
	defer unsubscribe()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	first := true
	c.Stream(func(w io.Writer) bool {
		if first {
			first = false
			c.SSEvent("state", render.BuildView(sess.ID(), sess.Snapshot()))
			return true
		}
		select {
		case <-c.Request.Context().Done():
			return false
		case <-ticks:
			c.SSEvent("state", render.BuildView(sess.ID(), sess.Snapshot()))
			return true
		case <-keepAlive.C:
			c.SSEvent("ping", time.Now().Unix())
			return true
		}
	})
}

// Socket is the WebSocket endpoint. Besides pushing state it accepts
// {"type":"message","content":"..."} frames and sends them as chat turns.
func (h *EventsHandler) Socket(c *gin.Context) {
	sess, ok := middleware.SessionFrom(c)
	if !ok {
		c.Status(http.StatusInternalServerError)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	limitKey := middleware.LimitKey(c)

	var writeMu sync.Mutex
	write := func(ev wsEvent) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		return conn.WriteJSON(ev)
	}
	pushState := func() error {
		view := render.BuildView(sess.ID(), sess.Snapshot())
		return write(wsEvent{Type: "state", State: &view})
	}

	ticks, unsubscribe := sess.Subscribe()
	defer unsubscribe()
	if err := pushState(); err != nil {
		return
	}

	go func() {
		keepAlive := time.NewTicker(keepAliveInterval)
		defer keepAlive.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticks:
				if err := pushState(); err != nil {
					cancel()
					return
				}
			case <-keepAlive.C:
				writeMu.Lock()
				err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
				writeMu.Unlock()
				if err != nil {
					cancel()
					return
				}
			}
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("websocket for session %s closed unexpectedly: %v", sess.ID(), err)
			}
			return
		}

		var in wsIncoming
		if err := json.Unmarshal(raw, &in); err != nil || in.Type != "message" {
			_ = write(wsEvent{Type: "error", Error: `expected {"type":"message","content":"..."}`})
			continue
		}
		if !h.allow(ctx, limitKey) {
			_ = write(wsEvent{Type: "error", Error: middleware.TooManyRequestsMessage})
			continue
		}
		go func(content string) {
			_, err := h.chatService.SendMessage(ctx, app.SendMessageInput{SessionID: sess.ID(), Content: content})
			if err != nil {
				_ = write(wsEvent{Type: "error", Error: err.Error()})
			}
		}(in.Content)
	}
}

func (h *EventsHandler) allow(ctx context.Context, key string) bool {
	if h.limiter == nil {
		return true
	}
	d, err := h.limiter.Allow(ctx, key)
	if err != nil {
		log.Printf("rate limiter unavailable, allowing websocket message: %v", err)
		return true
	}
	return d.Allowed
}
