package realtime

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

type WSOptions struct {
	PingInterval time.Duration
	ReadTimeout  time.Duration
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// the api is open to any origin, same as the cors policy
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWS upgrades the request and keeps the connection registered until the peer
// goes away. Inbound frames are read and discarded.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, opts WSOptions) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ServeWS] upgrade failed err=%v", err)
		return
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 60 * time.Second
	}
	if opts.PingInterval <= 0 || opts.PingInterval >= opts.ReadTimeout {
		opts.PingInterval = opts.ReadTimeout * 9 / 10
	}

	c := h.Add(ws)
	done := make(chan struct{})
	go h.pingLoop(c, opts.PingInterval, done)

	defer func() {
		close(done)
		h.Remove(c)
	}()

	ws.SetReadLimit(4096)
	_ = ws.SetReadDeadline(time.Now().Add(opts.ReadTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(opts.ReadTimeout))
	})
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(opts.ReadTimeout))
	}
}

func (h *Hub) pingLoop(c *Client, interval time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil, h.writeTimeout); err != nil {
				h.Remove(c)
				return
			}
		}
	}
}
