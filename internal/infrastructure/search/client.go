package search

import (
	"fmt"

	"github.com/meilisearch/meilisearch-go"
)

// Client wraps the Meilisearch service manager. Index naming: the listings
// index is shared per site, review indexes are one per residence slug.
type Client struct {
	manager meilisearch.ServiceManager
}

func New(host, apiKey string) *Client {
	return &Client{manager: meilisearch.New(host, meilisearch.WithAPIKey(apiKey))}
}

// EnsureListingSettings applies the listings index configuration. Idempotent;
// called once at startup before serving.
func (c *Client) EnsureListingSettings(index string) error {
	_, err := c.manager.Index(index).UpdateSettings(&meilisearch.Settings{
		SearchableAttributes: []string{"title", "description"},
		FilterableAttributes: []string{"item_type", "condition", "location"},
		TypoTolerance: &meilisearch.TypoTolerance{
			MinWordSizeForTypos: meilisearch.MinWordSizeForTypos{
				OneTypo:  5,
				TwoTypos: 9,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("settings for index %s: %w", index, err)
	}
	return nil
}

// AddDocuments upserts documents into an index.
func (c *Client) AddDocuments(index string, docs interface{}) error {
	if _, err := c.manager.Index(index).AddDocuments(docs); err != nil {
		return fmt.Errorf("add documents to %s: %w", index, err)
	}
	return nil
}

// UpdateDocuments applies partial document updates.
func (c *Client) UpdateDocuments(index string, docs interface{}) error {
	if _, err := c.manager.Index(index).UpdateDocuments(docs); err != nil {
		return fmt.Errorf("update documents in %s: %w", index, err)
	}
	return nil
}

// DeleteDocument removes one document by primary key.
func (c *Client) DeleteDocument(index, id string) error {
	if _, err := c.manager.Index(index).DeleteDocument(id); err != nil {
		return fmt.Errorf("delete document %s from %s: %w", id, index, err)
	}
	return nil
}

// ClearIndex drops every document in an index. Used by the startup reindex.
func (c *Client) ClearIndex(index string) error {
	if _, err := c.manager.Index(index).DeleteAllDocuments(); err != nil {
		return fmt.Errorf("clear index %s: %w", index, err)
	}
	return nil
}
