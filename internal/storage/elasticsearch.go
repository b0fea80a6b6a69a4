package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// maxQueryHits caps a single Query; one user never owns more documents.
const maxQueryHits = 1000

// Every string field is mapped as keyword so term queries match exact ids.
const indexMapping = `{
	"mappings": {
		"dynamic_templates": [
			{
				"strings_as_keywords": {
					"match_mapping_type": "string",
					"mapping": {"type": "keyword"}
				}
			}
		]
	}
}`

// ElasticsearchStore keeps one index per collection, named
// <prefix>-<collection>.
type ElasticsearchStore struct {
	client *elasticsearch.Client
	prefix string

	mu      sync.Mutex
	ensured map[string]bool
}

func NewElasticsearchStore(client *elasticsearch.Client, prefix string) *ElasticsearchStore {
	return &ElasticsearchStore{
		client:  client,
		prefix:  prefix,
		ensured: make(map[string]bool),
	}
}

func (s *ElasticsearchStore) index(collection string) string {
	return strings.ToLower(s.prefix + "-" + collection)
}

// EnsureIndex creates the collection's index with keyword mappings if it
// does not exist yet.
func (s *ElasticsearchStore) EnsureIndex(ctx context.Context, collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	index := s.index(collection)
	if s.ensured[index] {
		return nil
	}

	res, err := s.client.Indices.Exists([]string{index}, s.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("index exists: %w", err)
	}
	drain(res)

	if res.StatusCode == http.StatusNotFound {
		res, err = s.client.Indices.Create(
			index,
			s.client.Indices.Create.WithBody(strings.NewReader(indexMapping)),
			s.client.Indices.Create.WithContext(ctx),
		)
		if err != nil {
			return fmt.Errorf("create index: %w", err)
		}
		defer drain(res)
		// A concurrent creator wins the race with resource_already_exists.
		if res.IsError() && res.StatusCode != http.StatusBadRequest {
			return fmt.Errorf("create index %s: %s", index, res.Status())
		}
	} else if res.IsError() {
		return fmt.Errorf("index exists %s: %s", index, res.Status())
	}

	s.ensured[index] = true
	return nil
}

func (s *ElasticsearchStore) Get(ctx context.Context, collection, id string, dst interface{}) error {
	res, err := s.client.Get(s.index(collection), docID(id), s.client.Get.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch get: %w", err)
	}
	defer drain(res)

	if res.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if res.IsError() {
		return fmt.Errorf("elasticsearch get: %s", res.Status())
	}

	var body struct {
		Found  bool            `json:"found"`
		Source json.RawMessage `json:"_source"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return fmt.Errorf("decode get response: %w", err)
	}
	if !body.Found {
		return ErrNotFound
	}
	return decode(body.Source, dst)
}

func (s *ElasticsearchStore) Set(ctx context.Context, collection, id string, doc interface{}) error {
	raw, err := encode(doc)
	if err != nil {
		return err
	}
	if err := s.EnsureIndex(ctx, collection); err != nil {
		return err
	}

	res, err := s.client.Index(
		s.index(collection),
		bytes.NewReader(raw),
		s.client.Index.WithDocumentID(docID(id)),
		s.client.Index.WithRefresh("wait_for"),
		s.client.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch index: %w", err)
	}
	defer drain(res)

	if res.IsError() {
		return fmt.Errorf("elasticsearch index: %s", res.Status())
	}
	return nil
}

func (s *ElasticsearchStore) Delete(ctx context.Context, collection, id string) error {
	res, err := s.client.Delete(
		s.index(collection),
		docID(id),
		s.client.Delete.WithRefresh("wait_for"),
		s.client.Delete.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch delete: %w", err)
	}
	defer drain(res)

	if res.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if res.IsError() {
		return fmt.Errorf("elasticsearch delete: %s", res.Status())
	}
	return nil
}

func (s *ElasticsearchStore) Query(ctx context.Context, collection, field, value string) ([]json.RawMessage, error) {
	query := map[string]interface{}{
		"query": map[string]interface{}{
			"term": map[string]interface{}{
				field: value,
			},
		},
	}
	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	res, err := s.client.Search(
		s.client.Search.WithIndex(s.index(collection)),
		s.client.Search.WithBody(bytes.NewReader(body)),
		s.client.Search.WithSize(maxQueryHits),
		s.client.Search.WithContext(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch search: %w", err)
	}
	defer drain(res)

	// Nothing was ever written to this collection.
	if res.StatusCode == http.StatusNotFound {
		return []json.RawMessage{}, nil
	}
	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch search: %s", res.Status())
	}

	var result struct {
		Hits struct {
			Hits []struct {
				Source json.RawMessage `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	out := make([]json.RawMessage, 0, len(result.Hits.Hits))
	for _, hit := range result.Hits.Hits {
		out = append(out, hit.Source)
	}
	return out, nil
}

// docID escapes id for the request path; esapi joins it in verbatim.
func docID(id string) string {
	return url.PathEscape(id)
}

func drain(res *esapi.Response) {
	if res == nil || res.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, res.Body)
	res.Body.Close()
}
