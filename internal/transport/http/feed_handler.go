package http

import (
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"exit-ticket-service/internal/domain"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// watchResults streams analytics summaries to an instructor view over a
// websocket: the current summary on connect, then a fresh one whenever a
// submission for the ticket is accepted.
func (h *Handler) watchResults(w http.ResponseWriter, r *http.Request) {
	code, err := domain.ParseCode(mux.Vars(r)["code"])
	if err != nil {
		writeError(w, err)
		return
	}

	initial, err := h.analytics.Summarize(r.Context(), code)
	if err != nil {
		writeError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("upgrade results watch: %v", err)
		return
	}
	defer conn.Close()

	updates, cancel := h.feed.Subscribe(code)
	defer cancel()

	if err := conn.WriteJSON(initial); err != nil {
		return
	}

	// Read pump: the client sends nothing meaningful, but reading is what
	// detects the close.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case summary, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(summary); err != nil {
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}
