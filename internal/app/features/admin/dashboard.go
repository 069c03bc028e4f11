// internal/app/features/admin/dashboard.go
package admin

import (
	"context"
	"fmt"

	campnewsstore "github.com/dalemusser/donorlink/internal/app/store/campnews"
	ngostore "github.com/dalemusser/donorlink/internal/app/store/ngos"
	"github.com/dalemusser/donorlink/internal/app/system/live"
	"github.com/dalemusser/donorlink/internal/app/system/status"
	"github.com/dalemusser/donorlink/internal/domain/models"
)

// Stats are the moderation counters on the admin dashboard.
type Stats struct {
	PendingNGOs  int64 `json:"pending_ngos"`
	PendingNews  int64 `json:"pending_news"`
	VerifiedNGOs int64 `json:"verified_ngos"`
	ApprovedNews int64 `json:"approved_news"`
}

// Pending is the combined review queue.
type Pending struct {
	NGOs []models.NGO      `json:"ngos"`
	News []models.CampNews `json:"news"`
}

// PendingUpdate is one delivery from SubscribePending. Type is "ngos" or
// "news" and Data holds the full pending list of that kind.
type PendingUpdate struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Dashboard reads the moderation queues.
type Dashboard struct {
	NGOs *ngostore.Store
	News *campnewsstore.Store
}

// Stats counts pending and published items of both kinds.
func (d *Dashboard) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	var err error
	if st.PendingNGOs, err = d.NGOs.CountByStatus(ctx, status.Pending); err != nil {
		return Stats{}, fmt.Errorf("count pending ngos: %w", err)
	}
	if st.PendingNews, err = d.News.CountByStatus(ctx, status.Pending); err != nil {
		return Stats{}, fmt.Errorf("count pending news: %w", err)
	}
	if st.VerifiedNGOs, err = d.NGOs.CountVerified(ctx); err != nil {
		return Stats{}, fmt.Errorf("count verified ngos: %w", err)
	}
	if st.ApprovedNews, err = d.News.CountByStatus(ctx, status.Approved); err != nil {
		return Stats{}, fmt.Errorf("count approved news: %w", err)
	}
	return st, nil
}

// Pending loads both review queues once.
func (d *Dashboard) Pending(ctx context.Context) (Pending, error) {
	ngos, err := d.NGOs.ListPending(ctx)
	if err != nil {
		return Pending{}, fmt.Errorf("list pending ngos: %w", err)
	}
	news, err := d.News.ListPending(ctx)
	if err != nil {
		return Pending{}, fmt.Errorf("list pending news: %w", err)
	}
	return Pending{NGOs: ngos, News: news}, nil
}

// SubscribePending runs one live query per queue and funnels both into
// onUpdate, tagged by kind. The two queues update independently. Closing
// the returned Group stops both.
func (d *Dashboard) SubscribePending(onUpdate func(PendingUpdate), onError func(error)) *live.Group {
	ngos := d.NGOs.SubscribePending(func(list []models.NGO) {
		onUpdate(PendingUpdate{Type: "ngos", Data: list})
	}, onError)
	news := d.News.SubscribePending(func(list []models.CampNews) {
		onUpdate(PendingUpdate{Type: "news", Data: list})
	}, onError)
	return live.NewGroup(ngos, news)
}
