package store_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"winsentry/internal/model"
	"winsentry/internal/store"
)

func snapshot(total int) *model.Snapshot {
	snap := model.ClearSnapshot(model.GranularityMinute, time.Now())
	snap.TotalCount = total
	return snap
}

func TestSnapshotStore_PublishReplaces(t *testing.T) {
	s := store.NewInMemorySnapshotStore()
	assert.Nil(t, s.Latest())

	first := s.Publish(snapshot(1))
	second := s.Publish(snapshot(2))

	assert.Equal(t, uint64(1), first.Sequence)
	assert.Equal(t, uint64(2), second.Sequence)
	assert.Same(t, second, s.Latest())
}

func TestSnapshotStore_SubscribeLatestWins(t *testing.T) {
	s := store.NewInMemorySnapshotStore()
	s.Publish(snapshot(1))

	id, updates := s.Subscribe()
	got := <-updates
	assert.Equal(t, 1, got.TotalCount, "subscribers start with the current snapshot")

	s.Publish(snapshot(2))
	s.Publish(snapshot(3))
	got = <-updates
	assert.Equal(t, 3, got.TotalCount)

	s.Unsubscribe(id)
	_, open := <-updates
	assert.False(t, open)
}

func TestSnapshotStore_ConcurrentReaders(t *testing.T) {
	s := store.NewInMemorySnapshotStore()
	s.Publish(snapshot(0))

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap := s.Latest()
				if !assert.NotNil(t, snap) {
					return
				}
				// a reader never sees a snapshot without its sequence stamp
				assert.NotZero(t, snap.Sequence)
			}
		}()
	}
	for i := 1; i <= 100; i++ {
		s.Publish(snapshot(i))
	}
	close(stop)
	wg.Wait()
	assert.Equal(t, uint64(101), s.Latest().Sequence)
}
