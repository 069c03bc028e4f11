// internal/app/features/news/stream.go
package news

import (
	"errors"
	"net/http"

	"github.com/dalemusser/donorlink/internal/app/system/geo"
	"github.com/dalemusser/donorlink/internal/app/system/httpjson"
	"github.com/dalemusser/donorlink/internal/app/system/nearby"
	"github.com/dalemusser/donorlink/internal/app/system/wsconn"
	"github.com/dalemusser/donorlink/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"go.uber.org/zap"
)

// ServeStream upgrades to a WebSocket that pushes the nearby feed now and
// after every camp news change. The viewer point comes from lat/lng and is
// fixed for the life of the connection.
func (h *Handler) ServeStream(w http.ResponseWriter, r *http.Request) {
	viewer, err := geo.ParsePoint(query.Get(r, "lat"), query.Get(r, "lng"))
	if err != nil {
		httpjson.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	conn, err := wsconn.Upgrade(w, r, h.Log)
	if err != nil {
		return
	}
	log := h.Log.With(zap.String("conn_id", conn.ID()))

	sub := h.Feed.Subscribe(viewer, func(items []models.NearbyNews) {
		conn.Send(wsconn.Frame{Type: "news", Data: items})
	}, func(err error) {
		log.Warn("nearby feed unavailable", zap.Error(err))
		code := ""
		if errors.Is(err, nearby.ErrFeedUnavailable) {
			code = "feed_unavailable"
		}
		conn.Send(wsconn.Error("camp news is temporarily unavailable", code))
	})
	defer sub.Close()

	// Clients only listen; inbound frames are ignored.
	conn.Run(nil)
}
