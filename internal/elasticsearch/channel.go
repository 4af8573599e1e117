package elasticsearch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"winsentry/internal/eventlog"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/typedapi/core/closepointintime"
	"github.com/elastic/go-elasticsearch/v8/typedapi/core/search"
	"github.com/elastic/go-elasticsearch/v8/typedapi/types"
	"github.com/elastic/go-elasticsearch/v8/typedapi/types/enums/sortorder"
	"github.com/rs/zerolog/log"
)

const pitKeepAlive = "1m"

// Channel reads events shipped to an Elasticsearch index, newest first. Each
// handle is a point in time, so documents indexed after Open are not seen.
type Channel struct {
	client    *elasticsearch.TypedClient
	index     string
	batchSize int

	mu      sync.Mutex
	nextID  eventlog.Handle
	cursors map[eventlog.Handle]*pitCursor
}

type pitCursor struct {
	pitID       string
	searchAfter []types.FieldValue
	done        bool
}

func NewChannel(client *elasticsearch.TypedClient, index string, batchSize int) *Channel {
	if batchSize <= 0 {
		batchSize = 64
	}
	return &Channel{
		client:    client,
		index:     index,
		batchSize: batchSize,
		cursors:   make(map[eventlog.Handle]*pitCursor),
	}
}

// Open ignores server and name: the index is fixed at construction.
func (c *Channel) Open(ctx context.Context, server, name string) (eventlog.Handle, error) {
	res, err := c.client.OpenPointInTime(c.index).KeepAlive(pitKeepAlive).Do(ctx)
	if err != nil {
		if isAuthError(err) {
			return 0, &eventlog.AccessDeniedError{Channel: c.index, Err: err}
		}
		return 0, fmt.Errorf("failed to open point in time on %s: %w", c.index, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	c.cursors[c.nextID] = &pitCursor{pitID: res.Id}
	log.Trace().Str("index", c.index).Uint64("handle", uint64(c.nextID)).Msg("Opened point in time")
	return c.nextID, nil
}

func (c *Channel) ReadBatch(ctx context.Context, h eventlog.Handle, dir eventlog.Direction) ([]eventlog.Record, error) {
	if dir != eventlog.Backward {
		return nil, fmt.Errorf("%w: %s", eventlog.ErrUnsupportedDirection, dir)
	}
	c.mu.Lock()
	cur, ok := c.cursors[h]
	c.mu.Unlock()
	if !ok {
		return nil, eventlog.ErrUnknownHandle
	}
	if cur.done {
		return []eventlog.Record{}, nil
	}

	size := c.batchSize
	req := &search.Request{
		Pit:   &types.PointInTimeReference{Id: cur.pitID, KeepAlive: pitKeepAlive},
		Query: &types.Query{MatchAll: &types.MatchAllQuery{}},
		Size:  &size,
		Sort: []types.SortCombinations{
			types.SortOptions{
				SortOptions: map[string]types.FieldSort{
					"@timestamp": {Order: &sortorder.Desc},
				},
			},
		},
		SearchAfter: cur.searchAfter,
	}

	res, err := c.client.Search().Request(req).Do(ctx)
	if err != nil {
		if isAuthError(err) {
			return nil, &eventlog.AccessDeniedError{Channel: c.index, Err: err}
		}
		log.Error().Err(err).Str("index", c.index).Msg("Error executing Elasticsearch search via TypedClient")
		return nil, fmt.Errorf("elasticsearch search failed: %w", err)
	}
	if res.PitId != nil {
		cur.pitID = *res.PitId
	}

	records := make([]eventlog.Record, 0, len(res.Hits.Hits))
	for _, hit := range res.Hits.Hits {
		cur.searchAfter = hit.Sort
		if hit.Source_ == nil {
			continue
		}
		ev, err := decodeEvent(hit.Source_)
		if err != nil {
			records = append(records, eventlog.Record{Event: ev, Err: fmt.Errorf("%w: %v", eventlog.ErrMalformedEvent, err)})
			continue
		}
		records = append(records, eventlog.Record{Event: ev})
	}
	if len(res.Hits.Hits) < size {
		cur.done = true
	}
	log.Debug().Int("hits", len(res.Hits.Hits)).Str("index", c.index).Msg("Elasticsearch search successful")
	return records, nil
}

func (c *Channel) Close(h eventlog.Handle) error {
	c.mu.Lock()
	cur, ok := c.cursors[h]
	delete(c.cursors, h)
	c.mu.Unlock()
	if !ok {
		return eventlog.ErrUnknownHandle
	}

	// the caller's context may already be cancelled; the point in time must still be released
	_, err := c.client.ClosePointInTime().Request(&closepointintime.Request{Id: cur.pitID}).Do(context.Background())
	if err != nil {
		return fmt.Errorf("failed to close point in time: %w", err)
	}
	return nil
}

func isAuthError(err error) bool {
	var esErr *types.ElasticsearchError
	if errors.As(err, &esErr) {
		return esErr.Status == http.StatusUnauthorized || esErr.Status == http.StatusForbidden
	}
	return false
}
