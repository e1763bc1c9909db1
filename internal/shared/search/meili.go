package search

import (
	"context"
	"fmt"
	"time"

	"github.com/meilisearch/meilisearch-go"
)

var (
	searchableAttributes = []string{"name", "partNumber", "customer", "description", "operation", "material"}
	filterableAttributes = []string{"status", "machineId", "customer", "authorId"}
	sortableAttributes   = []string{"lastModified", "name", "partNumber"}
)

// MeiliIndex is the Meilisearch backed Index.
type MeiliIndex struct {
	client *meilisearch.Client
	uid    string
}

func NewMeiliIndex(host, apiKey, uid string) *MeiliIndex {
	client := meilisearch.NewClient(meilisearch.ClientConfig{
		Host:    host,
		APIKey:  apiKey,
		Timeout: 5 * time.Second,
	})
	return &MeiliIndex{client: client, uid: uid}
}

func (m *MeiliIndex) index() *meilisearch.Index {
	return m.client.Index(m.uid)
}

func (m *MeiliIndex) Configure(ctx context.Context) error {
	if _, err := m.client.CreateIndex(&meilisearch.IndexConfig{Uid: m.uid, PrimaryKey: "id"}); err != nil {
		return fmt.Errorf("create index %s: %w", m.uid, err)
	}
	idx := m.index()
	if _, err := idx.UpdateSearchableAttributes(&searchableAttributes); err != nil {
		return fmt.Errorf("searchable attributes: %w", err)
	}
	if _, err := idx.UpdateFilterableAttributes(&filterableAttributes); err != nil {
		return fmt.Errorf("filterable attributes: %w", err)
	}
	if _, err := idx.UpdateSortableAttributes(&sortableAttributes); err != nil {
		return fmt.Errorf("sortable attributes: %w", err)
	}
	return nil
}

func (m *MeiliIndex) Upsert(ctx context.Context, docs ...Document) error {
	if len(docs) == 0 {
		return nil
	}
	if _, err := m.index().AddDocuments(docs, "id"); err != nil {
		return fmt.Errorf("add documents: %w", err)
	}
	return nil
}

func (m *MeiliIndex) Delete(ctx context.Context, id string) error {
	if _, err := m.index().DeleteDocument(id); err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	return nil
}

func (m *MeiliIndex) Clear(ctx context.Context) error {
	if _, err := m.index().DeleteAllDocuments(); err != nil {
		return fmt.Errorf("clear index: %w", err)
	}
	return nil
}

func (m *MeiliIndex) Search(ctx context.Context, query string, filter Filter, limit int) ([]string, error) {
	req := &meilisearch.SearchRequest{
		Limit:                int64(limit),
		Sort:                 []string{"lastModified:desc"},
		AttributesToRetrieve: []string{"id"},
	}
	if expr := filter.Expression(); expr != "" {
		req.Filter = expr
	}

	resp, err := m.index().Search(query, req)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", m.uid, err)
	}

	ids := make([]string, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		doc, ok := hit.(map[string]interface{})
		if !ok {
			continue
		}
		if id, ok := doc["id"].(string); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
