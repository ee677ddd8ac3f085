package api

import (
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// StreamEvents транслирует события жизненного цикла очередей по
// WebSocket. Необязательный query-параметр type фильтрует поток по
// префиксу типа события ("simulation." — только события симуляций).
// Доставка best-effort: медленный клиент теряет события.
// GET /api/v1/events/ws
func (h *Handler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	typePrefix := r.URL.Query().Get("type")
	sub := h.hub.Subscribe(typePrefix)
	defer h.hub.Unsubscribe(sub)

	h.logger.Info("event stream client connected",
		"type_prefix", typePrefix,
		"remote_addr", r.RemoteAddr,
	)

	ctx := r.Context()

	// Поток односторонний, но читать всё равно нужно: без чтения
	// не заметить закрытие соединения клиентом.
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-readDone:
			h.logger.Info("event stream client disconnected", "remote_addr", r.RemoteAddr)
			return
		case ev, ok := <-sub.C():
			if !ok {
				return
			}
			if err := wsjson.Write(ctx, conn, ev); err != nil {
				h.logger.Debug("event stream write failed", "error", err)
				return
			}
		}
	}
}
