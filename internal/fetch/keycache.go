package fetch

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// KeyCache memoizes key fetches within one plan execution. The first caller
// for a URL performs the fetch; concurrent callers for the same URL await
// that result, so a plan issues at most one request per key URL regardless
// of fetch concurrency.
type KeyCache struct {
	fetcher *Fetcher

	group singleflight.Group
	mu    sync.RWMutex
	keys  map[string][]byte
}

func NewKeyCache(f *Fetcher) *KeyCache {
	return &KeyCache{
		fetcher: f,
		keys:    make(map[string][]byte),
	}
}

// Get returns the key bytes for keyURL, fetching them at most once.
func (c *KeyCache) Get(ctx context.Context, keyURL string) ([]byte, error) {
	c.mu.RLock()
	key, ok := c.keys[keyURL]
	c.mu.RUnlock()
	if ok {
		return key, nil
	}

	v, err, _ := c.group.Do(keyURL, func() (any, error) {
		data, err := c.fetcher.FetchBytes(ctx, keyURL, nil)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.keys[keyURL] = data
		c.mu.Unlock()
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}
