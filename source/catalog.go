// Package source abstracts the external document tree the pipeline reads
// from. The tree is mutable and not owned by this system: items can appear,
// change, or vanish between calls, and implementations report what they see
// at call time.
package source

import "context"

// Item describes one entry discovered in a source folder.
type Item struct {
	// ID is the stable item reference within the source. Document
	// identity derives from it, so it must not change when content does.
	ID string

	// Name is the display name of the item.
	Name string

	// MimeType is the declared content type. Folders leave it empty.
	MimeType string

	// VersionMarker is an opaque fingerprint that changes whenever the
	// item's content changes. It is compared for equality only.
	VersionMarker string

	// URL is an optional browse link for the item.
	URL string

	// Size is the content size in bytes, when the source reports one.
	Size int64

	// IsFolder marks container items, which are walked but never ingested.
	IsFolder bool
}

// Catalog enumerates and fetches items from a source tree.
// Implementations must be safe for concurrent use.
type Catalog interface {
	// List returns the direct children of a folder.
	// folderRef addresses the folder within the source.
	List(ctx context.Context, folderRef string) ([]*Item, error)

	// Content fetches the raw bytes of an item.
	Content(ctx context.Context, itemID string) ([]byte, error)
}
