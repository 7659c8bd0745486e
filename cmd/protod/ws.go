package main

import (
	"context"
	"log"
	"net/http"

	"github.com/gorilla/websocket"
)

// WebSocketService serves the editor-facing API at /api.  Each
// connection gets its own read loop; the session registry is shared.
func (s *Service) WebSocketService(ctx context.Context, addr string) error {
	var upgrader = websocket.Upgrader{} // use default options

	api := func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("upgrade error", err)
			return
		}
		defer c.Close()

		log.Printf("protod connection from %s", r.RemoteAddr)

		for {
			var req Request
			if err := c.ReadJSON(&req); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Println("read error", err)
				}
				return
			}
			resp := s.Handle(ctx, &req)
			if err := c.WriteJSON(resp); err != nil {
				log.Println("write error", err)
				return
			}
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api", api)

	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	log.Printf("protod listening on %s", addr)
	return srv.ListenAndServe()
}
