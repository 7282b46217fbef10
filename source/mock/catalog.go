// Package mock provides a test double for source.Catalog.
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/poiesic/docpipe/source"
)

// Catalog is a test double for source.Catalog.
// It serves items from in-memory maps and allows custom behavior
// injection via function fields.
type Catalog struct {
	// ListFunc is called by List if set.
	ListFunc func(ctx context.Context, folderRef string) ([]*source.Item, error)

	// ContentFunc is called by Content if set.
	ContentFunc func(ctx context.Context, itemID string) ([]byte, error)

	mu       sync.Mutex
	folders  map[string][]*source.Item
	contents map[string][]byte

	listCalls    int
	contentCalls int
}

var _ source.Catalog = (*Catalog)(nil)

// NewCatalog creates an empty mock catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		folders:  make(map[string][]*source.Item),
		contents: make(map[string][]byte),
	}
}

// AddFile registers a file item under a folder along with its content.
func (c *Catalog) AddFile(folderRef string, item *source.Item, content []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if item.Size == 0 {
		item.Size = int64(len(content))
	}
	c.folders[folderRef] = append(c.folders[folderRef], item)
	c.contents[item.ID] = content
}

// AddFolder registers a subfolder item under a folder.
func (c *Catalog) AddFolder(folderRef string, item *source.Item) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item.IsFolder = true
	c.folders[folderRef] = append(c.folders[folderRef], item)
}

// SetVersionMarker rewrites the fingerprint of a registered item,
// simulating a content change in the source.
func (c *Catalog) SetVersionMarker(itemID, marker string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, items := range c.folders {
		for _, item := range items {
			if item.ID == itemID {
				item.VersionMarker = marker
			}
		}
	}
}

// List returns the registered children of a folder.
func (c *Catalog) List(ctx context.Context, folderRef string) ([]*source.Item, error) {
	c.mu.Lock()
	c.listCalls++
	c.mu.Unlock()

	if c.ListFunc != nil {
		return c.ListFunc(ctx, folderRef)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	items, ok := c.folders[folderRef]
	if !ok {
		return nil, fmt.Errorf("folder %q not found", folderRef)
	}
	out := make([]*source.Item, len(items))
	for i, item := range items {
		copied := *item
		out[i] = &copied
	}
	return out, nil
}

// Content returns the registered content of an item.
func (c *Catalog) Content(ctx context.Context, itemID string) ([]byte, error) {
	c.mu.Lock()
	c.contentCalls++
	c.mu.Unlock()

	if c.ContentFunc != nil {
		return c.ContentFunc(ctx, itemID)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	content, ok := c.contents[itemID]
	if !ok {
		return nil, fmt.Errorf("item %q not found", itemID)
	}
	return content, nil
}

// ListCalls returns the number of times List was called.
func (c *Catalog) ListCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.listCalls
}

// ContentCalls returns the number of times Content was called.
func (c *Catalog) ContentCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.contentCalls
}
