package dispatch

import (
	"net/url"

	"github.com/imrishuroy/go-listing-sync/internal/events"
)

const (
	listingsIndexPath   = "/listings"
	siteRootPath        = "/"
	categoriesIndexPath = "/categories"
)

// ListingPaths is the page set affected by a listings change: the listing
// index, the site root and, when a slug is known, the listing detail page.
func ListingPaths(ev events.ChangeEvent) []string {
	paths := []string{listingsIndexPath, siteRootPath}
	if slug, ok := ev.Slug(); ok {
		paths = append(paths, listingsIndexPath+"/"+url.PathEscape(slug))
	}
	return paths
}

// CategoryPaths is the page set affected by a taxonomy term change.
func CategoryPaths(ev events.ChangeEvent) []string {
	paths := []string{categoriesIndexPath}
	if slug, ok := ev.Slug(); ok {
		paths = append(paths, categoriesIndexPath+"/"+url.PathEscape(slug))
	}
	return paths
}
