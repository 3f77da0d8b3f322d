// Package checkpoint persists pipeline state (watermark and cache
// contents) in Redis so a restart resumes without refetching history. The
// core does not require persistence; everything here is best effort.
package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/soclens/soclens/internal/model"
)

const keyPrefix = "soclens:checkpoint:"

// Store reads and writes pipeline checkpoints.
type Store struct {
	client *redis.Client
}

// New creates a Store backed by the given Redis client.
func New(client *redis.Client) *Store {
	return &Store{client: client}
}

type payload struct {
	Watermark time.Time         `json:"watermark"`
	Entities  []json.RawMessage `json:"entities"`
}

// Save writes the watermark and cache snapshot for a stream.
func (s *Store) Save(ctx context.Context, stream string, watermark time.Time, snapshot []model.Entity) error {
	entities := make([]json.RawMessage, 0, len(snapshot))
	for _, e := range snapshot {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal checkpoint entity: %w", err)
		}
		entities = append(entities, data)
	}

	data, err := json.Marshal(payload{Watermark: watermark, Entities: entities})
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	if err := s.client.Set(ctx, keyPrefix+stream, data, 0).Err(); err != nil {
		return fmt.Errorf("save checkpoint %s: %w", stream, err)
	}
	return nil
}

// Load reads the checkpoint for a stream and decodes each cached entity
// with decode. A missing checkpoint returns a zero watermark and no
// entities, not an error.
func (s *Store) Load(ctx context.Context, stream string, decode func(json.RawMessage) (model.Entity, error)) (time.Time, []model.Entity, error) {
	data, err := s.client.Get(ctx, keyPrefix+stream).Bytes()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, nil, nil
	}
	if err != nil {
		return time.Time{}, nil, fmt.Errorf("load checkpoint %s: %w", stream, err)
	}

	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return time.Time{}, nil, fmt.Errorf("unmarshal checkpoint %s: %w", stream, err)
	}

	entities := make([]model.Entity, 0, len(p.Entities))
	for _, raw := range p.Entities {
		e, err := decode(raw)
		if err != nil {
			return time.Time{}, nil, fmt.Errorf("decode checkpoint entity: %w", err)
		}
		entities = append(entities, e)
	}

	return p.Watermark, entities, nil
}

// DecodeEvent decodes one checkpointed alert entity.
func DecodeEvent(raw json.RawMessage) (model.Entity, error) {
	var e model.NormalizedEvent
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, err
	}
	return e, nil
}

// DecodeAgent decodes one checkpointed agent entity.
func DecodeAgent(raw json.RawMessage) (model.Entity, error) {
	var a model.NormalizedAgent
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, err
	}
	return a, nil
}
