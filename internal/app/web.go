package app

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/proximity_gesture/internal/config"
	"github.com/relabs-tech/proximity_gesture/internal/gesture"
	"github.com/relabs-tech/proximity_gesture/internal/history"
)

//go:embed static
var staticFS embed.FS

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

const (
	defaultHistory = 20
	maxHistory     = 500
	clientQueue    = 32
	writeWait      = 5 * time.Second
)

// historian is what the web server needs from the result store.
type historian interface {
	Recent(n int) ([]gesture.Result, error)
}

// WSEvent is one message on the /ws live feed.
type WSEvent struct {
	Type string          `json:"type"` // reading, result, error
	Data json.RawMessage `json:"data"`
}

// WebServer caches the latest published messages and fans them out to
// WebSocket clients.
type WebServer struct {
	mu      sync.RWMutex
	latest  map[string]json.RawMessage
	clients map[chan []byte]struct{}
	history historian
}

// NewWebServer creates a server. h may be nil when no history DB is configured.
func NewWebServer(h historian) *WebServer {
	return &WebServer{
		latest:  make(map[string]json.RawMessage),
		clients: make(map[chan []byte]struct{}),
		history: h,
	}
}

// Update stores payload as the latest message of kind and broadcasts it.
func (s *WebServer) Update(kind string, payload []byte) error {
	if !json.Valid(payload) {
		return fmt.Errorf("%s: payload is not JSON", kind)
	}
	data := append(json.RawMessage(nil), payload...)
	msg, err := json.Marshal(WSEvent{Type: kind, Data: data})
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest[kind] = data
	for ch := range s.clients {
		select {
		case ch <- msg:
		default:
			// Slow client; it misses this one.
		}
	}
	return nil
}

// Handler returns the HTTP routes. The dashboard page is embedded.
func (s *WebServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/reading", s.serveLatest("reading"))
	mux.HandleFunc("/api/result", s.serveLatest("result"))
	mux.HandleFunc("/api/history", s.serveHistory)
	mux.HandleFunc("/ws", s.serveWS)
	static, _ := fs.Sub(staticFS, "static")
	mux.Handle("/", http.FileServer(http.FS(static)))
	return mux
}

func (s *WebServer) serveLatest(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.RLock()
		data, ok := s.latest[kind]
		s.mu.RUnlock()

		if !ok {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	}
}

func (s *WebServer) serveHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		http.Error(w, "history not configured", http.StatusNotFound)
		return
	}
	n := defaultHistory
	if v := r.URL.Query().Get("n"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			http.Error(w, "n must be a positive integer", http.StatusBadRequest)
			return
		}
		n = min(parsed, maxHistory)
	}
	results, err := s.history.Recent(n)
	if err != nil {
		log.Errorf("web: history: %v", err)
		http.Error(w, "history unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(results); err != nil {
		log.Warnf("web: json encode error: %v", err)
	}
}

func (s *WebServer) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("web: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	ch := make(chan []byte, clientQueue)
	s.mu.Lock()
	s.clients[ch] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.clients, ch)
		s.mu.Unlock()
	}()

	// The reader only notices the client going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Debugf("web: websocket read: %v", err)
				}
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case msg := <-ch:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Debugf("web: websocket write: %v", err)
				return
			}
		}
	}
}

// ClientCount reports the number of connected WebSocket clients.
func (s *WebServer) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// RunWeb subscribes to the device topics and serves the dashboard until ctx
// is done.
func RunWeb(ctx context.Context, cfg *config.Config) error {
	var h historian
	if cfg.HistoryDB != "" {
		store, err := history.Open(cfg.HistoryDB)
		if err != nil {
			return err
		}
		defer store.Close()
		h = store
	}
	s := NewWebServer(h)

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDWeb)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	for kind, topic := range map[string]string{
		"reading": cfg.TopicReading,
		"result":  cfg.TopicResult,
		"error":   cfg.TopicError,
	} {
		kind := kind
		if err := subscribe(client, topic, func(b []byte) error { return s.Update(kind, b) }); err != nil {
			return err
		}
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.WebServerPort),
		Handler: s.Handler(),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Infof("web server listening on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
