package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrNotFound is returned when the catalog has no item with the given id.
var ErrNotFound = errors.New("catalog: item not found")

// Item is the authoritative price record for one menu item.
type Item struct {
	ItemID     string `json:"item_id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
	Available  bool   `json:"available"`
}

// Catalog resolves authoritative prices. The menu service owns the data;
// this side only reads.
type Catalog interface {
	Lookup(ctx context.Context, itemID string) (Item, error)
}

// Client is an HTTP catalog client with a Redis read-through cache. Cached
// entries expire quickly so price changes propagate within cacheTTL.
type Client struct {
	baseURL  string
	http     *http.Client
	rdb      *redis.Client
	cacheTTL time.Duration
}

// NewClient creates a catalog client. rdb may be nil to disable caching.
func NewClient(baseURL string, timeout time.Duration, rdb *redis.Client, cacheTTL time.Duration) *Client {
	return &Client{
		baseURL:  baseURL,
		http:     &http.Client{Timeout: timeout},
		rdb:      rdb,
		cacheTTL: cacheTTL,
	}
}

func (c *Client) Lookup(ctx context.Context, itemID string) (Item, error) {
	cacheKey := fmt.Sprintf("catalog:item:%s", itemID)
	if c.rdb != nil {
		if val, err := c.rdb.Get(ctx, cacheKey).Result(); err == nil {
			var item Item
			if err := json.Unmarshal([]byte(val), &item); err == nil {
				return item, nil
			}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/menu/items/%s", c.baseURL, itemID), nil)
	if err != nil {
		return Item{}, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Item{}, fmt.Errorf("catalog lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Item{}, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return Item{}, fmt.Errorf("catalog lookup: unexpected status %d", resp.StatusCode)
	}

	var item Item
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		return Item{}, err
	}

	if c.rdb != nil {
		if data, err := json.Marshal(item); err == nil {
			c.rdb.Set(ctx, cacheKey, data, c.cacheTTL)
		}
	}

	return item, nil
}
