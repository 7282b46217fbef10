// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package fs provides a source.Catalog over a local directory tree.
package fs

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/poiesic/docpipe/source"
)

// Catalog reads a local directory tree rooted at a base path.
// Item IDs are slash-separated paths relative to the root, so they stay
// stable across mounts of the same tree.
type Catalog struct {
	root string
}

var _ source.Catalog = (*Catalog)(nil)

// NewCatalog creates a catalog rooted at root.
func NewCatalog(root string) (*Catalog, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}
	return &Catalog{root: abs}, nil
}

// List returns the direct children of a folder.
// folderRef is a slash path relative to the root; "" or "." is the root.
func (c *Catalog) List(ctx context.Context, folderRef string) ([]*source.Item, error) {
	dir, err := c.resolve(folderRef)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	items := make([]*source.Item, 0, len(entries))
	for _, entry := range entries {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		info, err := entry.Info()
		if err != nil {
			// Entry disappeared between ReadDir and Stat
			continue
		}

		itemRef := path.Join(folderRef, entry.Name())
		item := &source.Item{
			ID:       itemRef,
			Name:     entry.Name(),
			IsFolder: entry.IsDir(),
		}
		if !entry.IsDir() {
			item.MimeType = mimeForName(entry.Name())
			item.Size = info.Size()
			// Content fingerprint: any rewrite bumps mtime, truncation
			// alone changes size
			item.VersionMarker = fmt.Sprintf("%d-%d", info.ModTime().UnixNano(), info.Size())
		}
		items = append(items, item)
	}
	return items, nil
}

// Content fetches the raw bytes of an item.
func (c *Catalog) Content(ctx context.Context, itemID string) ([]byte, error) {
	filePath, err := c.resolve(itemID)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(filePath)
}

// resolve maps an item ref to an absolute path, rejecting escapes from
// the root.
func (c *Catalog) resolve(ref string) (string, error) {
	cleaned := path.Clean("/" + ref)
	full := filepath.Join(c.root, filepath.FromSlash(cleaned))
	if full != c.root && !strings.HasPrefix(full, c.root+string(filepath.Separator)) {
		return "", fmt.Errorf("ref %q escapes catalog root", ref)
	}
	return full, nil
}

// mimeForName derives a bare mime type from a file extension.
func mimeForName(name string) string {
	mimeType := mime.TypeByExtension(filepath.Ext(name))
	if mimeType == "" {
		return "application/octet-stream"
	}
	// TypeByExtension may append parameters ("text/plain; charset=utf-8")
	if base, _, found := strings.Cut(mimeType, ";"); found {
		return strings.TrimSpace(base)
	}
	return mimeType
}
