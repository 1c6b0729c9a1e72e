// Package auth keeps session credentials and runs the access-denied dialog.
package auth

import (
	"github.com/yarkm13/sharewalk/internal/locator"
	"github.com/yarkm13/sharewalk/internal/remote"
)

// Cache maps a case-insensitive "server/share" key to credentials. It lives
// only as long as the process.
type Cache struct {
	entries map[string]remote.Credentials
}

func NewCache() *Cache {
	return &Cache{entries: make(map[string]remote.Credentials)}
}

// Store saves creds for server/share, wiping whatever was there before.
func (c *Cache) Store(server, share string, creds remote.Credentials) {
	key := locator.Key(server, share)
	if old, ok := c.entries[key]; ok {
		old.Clear()
	}
	c.entries[key] = creds
}

// Lookup returns a copy of the credentials stored for server/share.
func (c *Cache) Lookup(server, share string) (remote.Credentials, bool) {
	creds, ok := c.entries[locator.Key(server, share)]
	if !ok {
		return remote.Credentials{}, false
	}
	creds.Password = append([]byte(nil), creds.Password...)
	return creds, true
}

func (c *Cache) Len() int { return len(c.entries) }

// Clear wipes every stored password and empties the cache.
func (c *Cache) Clear() {
	for key, creds := range c.entries {
		creds.Clear()
		delete(c.entries, key)
	}
}
