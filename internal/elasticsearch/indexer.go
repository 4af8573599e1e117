package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"winsentry/config"
	"winsentry/internal/model"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/elastic/go-elasticsearch/v8/esutil"
	"github.com/rs/zerolog/log"
)

const eventIndexMapping = `{
  "mappings": {
    "properties": {
      "@timestamp": {"type": "date"},
      "message": {"type": "text"},
      "event": {"properties": {"code": {"type": "keyword"}, "provider": {"type": "keyword"}}},
      "winlog": {"properties": {
        "event_id": {"type": "keyword"},
        "provider_name": {"type": "keyword"},
        "channel": {"type": "keyword"},
        "computer_name": {"type": "keyword"}
      }}
    }
  }
}`

// EventIndexer bulk-writes security events in the document shape Channel reads.
type EventIndexer struct {
	client          *elasticsearch.Client
	bulkIndexer     esutil.BulkIndexer
	index           string
	channel         string
	computer        string
	countSuccessful uint64
	countFailed     uint64
}

func NewEventIndexer(client *elasticsearch.Client, cfg config.ElasticsearchConfig, channel string) (*EventIndexer, error) {
	computer, _ := os.Hostname()
	idx := &EventIndexer{
		client:   client,
		index:    cfg.EventIndex,
		channel:  channel,
		computer: computer,
	}

	bi, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
		Client:        client,
		Index:         cfg.EventIndex,
		NumWorkers:    cfg.BulkWorkers,
		FlushBytes:    cfg.FlushBytes,
		FlushInterval: cfg.FlushInterval,
		Refresh:       "wait_for",
		OnError: func(ctx context.Context, err error) {
			log.Error().Err(err).Msg("BulkIndexer error")
		},
	})
	if err != nil {
		return nil, fmt.Errorf("error creating the BulkIndexer: %w", err)
	}
	idx.bulkIndexer = bi
	return idx, nil
}

// EnsureIndex creates the event index with its mapping when it does not exist.
func (i *EventIndexer) EnsureIndex(ctx context.Context) error {
	res, err := esapi.IndicesExistsRequest{Index: []string{i.index}}.Do(ctx, i.client)
	if err != nil {
		return fmt.Errorf("failed to check index %s: %w", i.index, err)
	}
	res.Body.Close()
	if res.StatusCode == 200 {
		return nil
	}

	res, err = esapi.IndicesCreateRequest{
		Index: i.index,
		Body:  strings.NewReader(eventIndexMapping),
	}.Do(ctx, i.client)
	if err != nil {
		return fmt.Errorf("failed to create index %s: %w", i.index, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("error response creating index %s: %s", i.index, res.String())
	}
	log.Info().Str("index", i.index).Msg("Created event index")
	return nil
}

func (i *EventIndexer) Write(ctx context.Context, events []model.RawEvent) error {
	currentFailed := atomic.LoadUint64(&i.countFailed)

	for _, ev := range events {
		data, err := json.Marshal(newEventDocument(ev, i.channel, i.computer))
		if err != nil {
			log.Error().Err(err).Msg("Failed to marshal event for Elasticsearch")
			atomic.AddUint64(&i.countFailed, 1)
			continue
		}
		err = i.bulkIndexer.Add(ctx, esutil.BulkIndexerItem{
			Action: "index",
			Body:   bytes.NewReader(data),
			OnSuccess: func(ctx context.Context, item esutil.BulkIndexerItem, res esutil.BulkIndexerResponseItem) {
				atomic.AddUint64(&i.countSuccessful, 1)
			},
			OnFailure: func(ctx context.Context, item esutil.BulkIndexerItem, res esutil.BulkIndexerResponseItem, err error) {
				atomic.AddUint64(&i.countFailed, 1)
				if err != nil {
					log.Error().Err(err).Msg("Bulk item failed")
				} else {
					log.Error().Str("type", res.Error.Type).Str("reason", res.Error.Reason).Msg("Bulk item failed")
				}
			},
		})
		if err != nil {
			log.Error().Err(err).Msg("Failed to add item to BulkIndexer")
			atomic.AddUint64(&i.countFailed, 1)
		}
	}
	log.Debug().Int("count", len(events)).Msg("Added events to Elasticsearch BulkIndexer queue")

	if atomic.LoadUint64(&i.countFailed) > currentFailed {
		return errors.New("one or more events failed during bulk indexing attempt")
	}
	return nil
}

func (i *EventIndexer) Close(ctx context.Context) error {
	err := i.bulkIndexer.Close(ctx)
	stats := i.bulkIndexer.Stats()
	log.Info().
		Uint64("indexed", stats.NumIndexed).
		Uint64("added", stats.NumAdded).
		Uint64("flushed", stats.NumFlushed).
		Uint64("failed", stats.NumFailed).
		Uint64("requests", stats.NumRequests).
		Msg("Elasticsearch BulkIndexer final stats")
	if err == nil && stats.NumFailed > 0 {
		err = fmt.Errorf("%d events failed to index", stats.NumFailed)
	}
	return err
}
