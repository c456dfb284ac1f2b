package mutation

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitBatch(t *testing.T, ch <-chan []Record) []Record {
	t.Helper()
	select {
	case b := <-ch:
		return b
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for batch")
		return nil
	}
}

func TestRecorderDeliversFlushedBatch(t *testing.T) {
	r := NewRecorder()
	defer r.Close()

	ch := make(chan []Record, 4)
	r.Subscribe(func(batch []Record) { ch <- batch })

	r.Record(Record{Kind: KindText, Target: "t", NewValue: "a"})
	r.Record(Record{Kind: KindText, Target: "t", NewValue: "b"})
	assert.Equal(t, 2, r.Pending())

	require.NoError(t, r.Flush())
	assert.Equal(t, 0, r.Pending())

	batch := waitBatch(t, ch)
	require.Len(t, batch, 2)
	assert.Equal(t, "a", batch[0].NewValue)
	assert.Equal(t, "b", batch[1].NewValue)
}

func TestRecorderSkipsEmptyFlush(t *testing.T) {
	r := NewRecorder()

	var calls int
	r.Subscribe(func(batch []Record) { calls++ })
	require.NoError(t, r.Flush())
	require.NoError(t, r.Close())

	assert.Equal(t, 0, calls)
}

func TestRecorderSubscribersGetIndependentCopies(t *testing.T) {
	r := NewRecorder()

	var mu sync.Mutex
	var seen []string
	r.Subscribe(func(batch []Record) {
		batch[0].NewValue = "mutated"
	})
	r.Subscribe(func(batch []Record) {
		mu.Lock()
		seen = append(seen, batch[0].NewValue.(string))
		mu.Unlock()
	})

	r.Record(Record{Kind: KindText, Target: "t", NewValue: "original"})
	require.NoError(t, r.Flush())
	require.NoError(t, r.Close())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"original"}, seen)
}

func TestRecorderCancel(t *testing.T) {
	r := NewRecorder()

	var calls int
	cancel := r.Subscribe(func(batch []Record) { calls++ })
	cancel()
	cancel()

	r.Record(Record{Kind: KindStructural, Target: "t"})
	require.NoError(t, r.Flush())
	require.NoError(t, r.Close())

	assert.Equal(t, 0, calls)
}

func TestRecorderClose(t *testing.T) {
	r := NewRecorder()

	ch := make(chan []Record, 4)
	r.Subscribe(func(batch []Record) { ch <- batch })

	r.Record(Record{Kind: KindStructural, Target: "t"})
	require.NoError(t, r.Flush())
	r.Record(Record{Kind: KindStructural, Target: "unflushed"})

	require.NoError(t, r.Close())
	require.NoError(t, r.Close())

	// Flushed batches are delivered before Close returns.
	require.Len(t, ch, 1)

	r.Record(Record{Kind: KindStructural, Target: "late"})
	assert.Equal(t, 0, r.Pending())
	assert.ErrorIs(t, r.Flush(), ErrSourceClosed)
}

func TestRecorderConcurrentFlush(t *testing.T) {
	r := NewRecorder()

	var mu sync.Mutex
	var total int
	r.Subscribe(func(batch []Record) {
		mu.Lock()
		total += len(batch)
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				r.Record(Record{Kind: KindAttribute, Target: i, Key: "n"})
				_ = r.Flush()
			}
		}()
	}
	wg.Wait()
	require.NoError(t, r.Close())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 400, total)
}

func TestSourceFunc(t *testing.T) {
	var got func([]Record)
	src := SourceFunc(func(fn func([]Record)) func() {
		got = fn
		return func() { got = nil }
	})

	var delivered []Record
	cancel := src.Subscribe(func(batch []Record) { delivered = batch })
	require.NotNil(t, got)
	got([]Record{{Kind: KindText, Target: "t"}})
	assert.Len(t, delivered, 1)

	cancel()
	assert.Nil(t, got)
}
