package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wonny/fundarb/pkg/logger"
)

const (
	// DefaultStreamInterval is how often progress is sampled
	DefaultStreamInterval = 500 * time.Millisecond

	// Ping/Pong settings
	pingInterval = 30 * time.Second
	pongWait     = 60 * time.Second
	writeWait    = 10 * time.Second
)

// StreamHandler pushes scan progress over a WebSocket
type StreamHandler struct {
	detector Detector
	interval time.Duration
	upgrader websocket.Upgrader
	logger   *logger.Logger
}

// NewStreamHandler creates a progress stream sampling every interval
func NewStreamHandler(detector Detector, interval time.Duration, log *logger.Logger) *StreamHandler {
	if interval <= 0 {
		interval = DefaultStreamInterval
	}
	return &StreamHandler{
		detector: detector,
		interval: interval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// local dashboard, any origin
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: log,
	}
}

// Progress streams a ProgressResponse on connect and then whenever it changes
// GET /ws/progress
func (h *StreamHandler) Progress(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	// the client sends nothing; reading only surfaces close frames and pongs
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	var last ProgressResponse
	sent := false
	send := func() error {
		snap := ProgressResponse{
			Running:    h.detector.Running(),
			Enrichment: h.detector.Progress(),
		}
		if sent && snap == last {
			return nil
		}
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(snap); err != nil {
			return err
		}
		last, sent = snap, true
		return nil
	}

	if err := send(); err != nil {
		return
	}

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if err := send(); err != nil {
				h.logger.WithError(err).Debug("Progress stream closed")
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
