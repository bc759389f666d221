package marketdata

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"matchbook/infra/logging"
)

const (
	sendBuffer   = 64
	writeTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type subscriber struct {
	conn   *websocket.Conn
	symbol string // empty means every symbol
	send   chan []byte
}

// Hub fans rendered snapshots out to websocket subscribers. A subscriber
// whose buffer is full is disconnected rather than slowing the gateway.
type Hub struct {
	mu   sync.Mutex
	subs map[*subscriber]struct{}
	log  *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		subs: make(map[*subscriber]struct{}),
		log:  logging.OrNop(logger).Named("ws"),
	}
}

// ServeHTTP upgrades the request. ?symbol=AAPL limits the stream to one
// book.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	s := &subscriber{
		conn:   conn,
		symbol: r.URL.Query().Get("symbol"),
		send:   make(chan []byte, sendBuffer),
	}
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	h.log.Debug("subscriber connected", zap.String("remote", r.RemoteAddr), zap.String("symbol", s.symbol))

	go h.writePump(s)
	h.readPump(s)
}

// readPump discards client frames and notices disconnects.
func (h *Hub) readPump(s *subscriber) {
	defer h.drop(s)
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(s *subscriber) {
	defer s.conn.Close()
	for msg := range s.send {
		_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.drop(s)
			return
		}
	}
	_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (h *Hub) drop(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s]; ok {
		delete(h.subs, s)
		close(s.send)
	}
}

// Broadcast queues doc for every subscriber of symbol.
func (h *Hub) Broadcast(symbol string, doc []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for s := range h.subs {
		if s.symbol != "" && s.symbol != symbol {
			continue
		}
		select {
		case s.send <- doc:
		default:
			h.log.Warn("slow subscriber dropped", zap.String("remote", s.conn.RemoteAddr().String()))
			delete(h.subs, s)
			close(s.send)
		}
	}
}

func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		delete(h.subs, s)
		close(s.send)
	}
}
