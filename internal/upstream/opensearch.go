// Package upstream holds the clients for the external security-event
// sources: the OpenSearch alert indices and the Wazuh manager API. Both
// issue bounded, sorted queries; a failed call yields zero records for the
// cycle and is never fatal.
package upstream

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/opensearch-project/opensearch-go/v2"

	"github.com/soclens/soclens/internal/config"
)

// AlertSource polls the OpenSearch alert indices.
type AlertSource struct {
	client *opensearch.Client
	index  string
}

// NewAlertSource creates the OpenSearch client and verifies connectivity.
func NewAlertSource(cfg config.OpenSearchConfig) (*AlertSource, error) {
	httpClient := &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: cfg.Insecure,
			},
		},
	}

	osCfg := opensearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: httpClient.Transport,
	}

	client, err := opensearch.NewClient(osCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create opensearch client: %w", err)
	}

	info, err := client.Info()
	if err != nil {
		return nil, fmt.Errorf("failed to ping opensearch: %w", err)
	}
	defer info.Body.Close()

	if info.IsError() {
		return nil, fmt.Errorf("opensearch returned error: %s", info.Status())
	}

	return &AlertSource{client: client, index: cfg.Index}, nil
}

// Name identifies the source in logs and metrics.
func (s *AlertSource) Name() string { return "opensearch" }

// Fetch returns up to limit raw alert hits with @timestamp after since,
// newest first. A zero since requests the most recent records unfiltered.
// Each hit is a map with "_id", "_index" and "_source" keys.
func (s *AlertSource) Fetch(ctx context.Context, since time.Time, limit int) ([]map[string]any, error) {
	query := buildAlertQuery(since, limit)

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(query); err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}

	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(s.index),
		s.client.Search.WithBody(&buf),
		s.client.Search.WithSize(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search error: %s", res.Status())
	}

	var searchResult struct {
		Hits struct {
			Hits []struct {
				ID     string         `json:"_id"`
				Index  string         `json:"_index"`
				Source map[string]any `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}

	if err := json.NewDecoder(res.Body).Decode(&searchResult); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	hits := make([]map[string]any, 0, len(searchResult.Hits.Hits))
	for _, hit := range searchResult.Hits.Hits {
		hits = append(hits, map[string]any{
			"_id":     hit.ID,
			"_index":  hit.Index,
			"_source": hit.Source,
		})
	}

	return hits, nil
}

// buildAlertQuery builds the bounded, sorted, watermark-filtered search
// body. The sort is descending; the caller re-sorts accepted records
// ascending before applying them.
func buildAlertQuery(since time.Time, limit int) map[string]any {
	var match map[string]any
	if since.IsZero() || since.Equal(time.Unix(0, 0).UTC()) {
		match = map[string]any{"match_all": map[string]any{}}
	} else {
		match = map[string]any{
			"range": map[string]any{
				"@timestamp": map[string]any{
					"gt": since.UTC().Format(time.RFC3339Nano),
				},
			},
		}
	}

	return map[string]any{
		"query": match,
		"size":  limit,
		"sort": []map[string]any{
			{"@timestamp": map[string]any{"order": "desc"}},
		},
	}
}
