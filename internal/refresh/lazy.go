package refresh

import (
	"context"
	"fmt"

	"github.com/iptvdeck/iptv-deck/internal/catalog"
)

// LoadCategory returns one category's items, cache first. On a miss it
// fetches from the provider and writes the result through to the cache.
// Either way the items are merged by id into the live list for the kind, so
// browsing category B never evicts what category A already loaded.
func (o *Orchestrator) LoadCategory(ctx context.Context, serverID string, kind catalog.Kind, categoryID int) ([]catalog.Item, error) {
	if items, ok := o.Cache.Items(serverID, kind, categoryID); ok {
		o.Live.MergeItems(kind, items)
		return items, nil
	}
	items, err := o.Client.ListItems(ctx, kind, categoryID)
	if err != nil {
		return nil, fmt.Errorf("load %s category %d: %w", kind.Label(), categoryID, err)
	}
	o.Cache.SetItems(serverID, kind, categoryID, items)
	o.Live.MergeItems(kind, items)
	return items, nil
}
