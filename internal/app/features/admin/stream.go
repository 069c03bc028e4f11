// internal/app/features/admin/stream.go
package admin

import (
	"net/http"

	"github.com/dalemusser/donorlink/internal/app/system/wsconn"
	"go.uber.org/zap"
)

// ServeStream upgrades to a WebSocket that pushes each review queue
// whenever it changes, as {"type":"ngos"|"news","data":[...]}.
func (h *Handler) ServeStream(w http.ResponseWriter, r *http.Request) {
	conn, err := wsconn.Upgrade(w, r, h.Log)
	if err != nil {
		return
	}
	log := h.Log.With(zap.String("conn_id", conn.ID()))

	group := h.Dashboard.SubscribePending(func(u PendingUpdate) {
		conn.Send(u)
	}, func(err error) {
		log.Warn("pending queue load failed", zap.Error(err))
		conn.Send(wsconn.Error("could not load pending items", "unavailable"))
	})
	defer group.Close()

	conn.Run(nil)
}
