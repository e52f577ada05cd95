// Package catalog defines the catalog data shapes shared by the API client,
// the pagination engine and the heroes controllers.
package catalog

import (
	"context"
	"fmt"
)

// Hero is a single catalog entry. It is treated as an immutable value once
// received from the catalog.
type Hero struct {
	ID          int           `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Thumbnail   Thumbnail     `json:"thumbnail"`
	Comics      *ResourceList `json:"comics,omitempty"`
	Series      *ResourceList `json:"series,omitempty"`
	Stories     *ResourceList `json:"stories,omitempty"`
	Events      *ResourceList `json:"events,omitempty"`
	URLs        []HeroURL     `json:"urls,omitempty"`
}

// Thumbnail points at a hero image without its extension.
type Thumbnail struct {
	Path      string `json:"path"`
	Extension string `json:"extension"`
}

// URL joins path and extension. Returns "" when the path is missing.
func (t Thumbnail) URL() string {
	if t.Path == "" {
		return ""
	}
	if t.Extension == "" {
		return t.Path
	}
	return fmt.Sprintf("%s.%s", t.Path, t.Extension)
}

// ResourceList summarizes related resources (comics, series, ...).
type ResourceList struct {
	Available     int               `json:"available"`
	CollectionURI string            `json:"collectionURI"`
	Items         []ResourceSummary `json:"items,omitempty"`
}

// ResourceSummary is one related resource.
type ResourceSummary struct {
	ResourceURI string `json:"resourceURI"`
	Name        string `json:"name"`
}

// HeroURL is a public web link for a hero.
type HeroURL struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// Page is the result of one fetch.
//
// Total is the authoritative number of heroes across all pages and is the only
// input to the has-more decision. Count is what the server claims this page
// holds; it may disagree with len(Items) and must not drive pagination.
type Page struct {
	Items  []Hero `json:"results"`
	Total  int    `json:"total"`
	Count  int    `json:"count"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

// PageFetcher fetches one page of heroes.
type PageFetcher interface {
	FetchHeroes(ctx context.Context, limit, offset int) (Page, error)
}

// PageFetcherFunc adapts a function to PageFetcher.
type PageFetcherFunc func(ctx context.Context, limit, offset int) (Page, error)

// FetchHeroes calls f.
func (f PageFetcherFunc) FetchHeroes(ctx context.Context, limit, offset int) (Page, error) {
	return f(ctx, limit, offset)
}

// HeroLookup fetches the full record of a single hero.
// Implementations return ErrNotFound when the id is unknown.
type HeroLookup interface {
	FetchHero(ctx context.Context, id int) (*Hero, error)
}
