package pipeline

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/review-crawler/internal/record"
	"github.com/JakeFAU/review-crawler/internal/storage/csvfile"
	"github.com/JakeFAU/review-crawler/internal/storage/tee"
)

type fakeTable struct {
	mu       sync.Mutex
	batches  [][]record.Record
	failures int
	inFlight atomic.Int32
	overlap  atomic.Bool
	delay    time.Duration
	gate     chan struct{}
}

func (f *fakeTable) Append(_ context.Context, batch []record.Record) error {
	if f.inFlight.Add(1) > 1 {
		f.overlap.Store(true)
	}
	defer f.inFlight.Add(-1)
	if f.gate != nil {
		<-f.gate
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return errors.New("disk full")
	}
	f.batches = append(f.batches, append([]record.Record(nil), batch...))
	return nil
}

func (f *fakeTable) flushes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

func (f *fakeTable) names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, b := range f.batches {
		for _, r := range b {
			out = append(out, r.Key())
		}
	}
	return out
}

func review(name string) record.Record {
	return record.NewReviewItem(record.ReviewItem{Name: name, Rating: 4, Text: "ok", Title: "t", Date: "d"})
}

func newPipeline(t *testing.T, table *fakeTable, capacity int) *Pipeline {
	t.Helper()
	p, err := New(table, Config{Name: "test", Capacity: capacity}, zap.NewNop())
	require.NoError(t, err)
	return p
}

func TestNewRequiresTable(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{}, nil)
	require.Error(t, err)

	p, err := New(&fakeTable{}, Config{}, nil)
	require.NoError(t, err)
	require.Equal(t, DefaultCapacity, p.capacity)
}

func TestAddDropsDuplicates(t *testing.T) {
	t.Parallel()

	table := &fakeTable{}
	p := newPipeline(t, table, 10)
	ctx := context.Background()

	require.NoError(t, p.Add(ctx, review("Jane")))
	require.NoError(t, p.Add(ctx, review("Jane")))
	require.NoError(t, p.Add(ctx, review("John")))
	require.NoError(t, p.Close(ctx))

	require.Equal(t, []string{"Jane", "John"}, table.names())
	require.Equal(t, Stats{Accepted: 2, Duplicates: 1, Written: 2}, p.Stats())
}

func TestDuplicateIsLogged(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.WarnLevel)
	p, err := New(&fakeTable{}, Config{Name: "online-bank", Capacity: 5}, zap.New(core))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, p.Add(ctx, review("Jane")))
	require.NoError(t, p.Add(ctx, review("Jane")))

	entries := logs.FilterMessage("duplicate item dropped").All()
	require.Len(t, entries, 1)
	require.Equal(t, "Jane", entries[0].ContextMap()["name"])
	require.Equal(t, "online-bank", entries[0].ContextMap()["output"])
}

func TestNoFlushBelowCapacity(t *testing.T) {
	t.Parallel()

	table := &fakeTable{}
	p := newPipeline(t, table, 3)
	ctx := context.Background()

	require.NoError(t, p.Add(ctx, review("a")))
	require.NoError(t, p.Add(ctx, review("b")))
	require.Equal(t, 0, table.flushes())
	require.Equal(t, 2, p.Pending())

	require.NoError(t, p.Add(ctx, review("c")))
	require.Equal(t, 1, table.flushes())
	require.Equal(t, 0, p.Pending())

	require.NoError(t, p.Add(ctx, review("d")))
	require.Equal(t, 1, table.flushes())
	require.NoError(t, p.Close(ctx))
	require.Equal(t, 2, table.flushes())
	require.Equal(t, []string{"a", "b", "c", "d"}, table.names())
}

func TestFlushEmptyIsNoop(t *testing.T) {
	t.Parallel()

	table := &fakeTable{}
	p := newPipeline(t, table, 3)
	require.NoError(t, p.Flush(context.Background()))
	require.NoError(t, p.Close(context.Background()))
	require.Equal(t, 0, table.flushes())
}

func TestDrainEmptyBatchReleases(t *testing.T) {
	t.Parallel()

	table := &fakeTable{}
	p := newPipeline(t, table, 3)
	p.mu.Lock()
	batch := p.takeLocked()
	p.mu.Unlock()

	require.NoError(t, p.drain(context.Background(), batch))
	require.Equal(t, 0, table.flushes())

	require.NoError(t, p.Add(context.Background(), review("a")))
	require.NoError(t, p.Flush(context.Background()))
	require.Equal(t, 1, table.flushes())
}

func TestAddAfterClose(t *testing.T) {
	t.Parallel()

	p := newPipeline(t, &fakeTable{}, 3)
	require.NoError(t, p.Close(context.Background()))
	require.ErrorIs(t, p.Add(context.Background(), review("late")), ErrClosed)
	require.NoError(t, p.Close(context.Background()))
}

func TestFailedFlushKeepsBatch(t *testing.T) {
	t.Parallel()

	table := &fakeTable{failures: 1}
	p := newPipeline(t, table, 2)
	ctx := context.Background()

	require.NoError(t, p.Add(ctx, review("a")))
	require.NoError(t, p.Add(ctx, review("b")))
	require.Equal(t, 0, table.flushes())
	require.Equal(t, 2, p.Pending())

	require.NoError(t, p.Add(ctx, review("c")))
	require.NoError(t, p.Close(ctx))
	require.Equal(t, []string{"a", "b", "c"}, table.names())
	require.Equal(t, 3, p.Stats().Written)
}

func TestCloseReturnsFinalFlushError(t *testing.T) {
	t.Parallel()

	table := &fakeTable{failures: 1}
	p := newPipeline(t, table, 10)
	ctx := context.Background()

	require.NoError(t, p.Add(ctx, review("a")))
	require.Error(t, p.Close(ctx))
	require.Equal(t, 1, p.Pending())

	require.NoError(t, p.Close(ctx))
	require.Equal(t, []string{"a"}, table.names())
}

func TestCloseWaitsForInFlightFlush(t *testing.T) {
	t.Parallel()

	table := &fakeTable{gate: make(chan struct{})}
	p := newPipeline(t, table, 2)
	ctx := context.Background()

	require.NoError(t, p.Add(ctx, review("a")))
	addDone := make(chan struct{})
	go func() {
		defer close(addDone)
		_ = p.Add(ctx, review("b"))
	}()
	require.Eventually(t, func() bool { return table.inFlight.Load() == 1 }, time.Second, time.Millisecond)

	closeDone := make(chan error, 1)
	go func() { closeDone <- p.Close(ctx) }()

	select {
	case <-closeDone:
		t.Fatal("close returned while a flush was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(table.gate)
	<-addDone
	require.NoError(t, <-closeDone)
	require.Equal(t, []string{"a", "b"}, table.names())
	require.False(t, table.overlap.Load())
}

func TestConcurrentAddWithOverlappingKeys(t *testing.T) {
	t.Parallel()

	table := &fakeTable{delay: time.Millisecond}
	p := newPipeline(t, table, 7)
	ctx := context.Background()

	const (
		workers = 8
		keys    = 100
	)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(offset int) {
			defer wg.Done()
			for i := 0; i < keys; i++ {
				require.NoError(t, p.Add(ctx, review(fmt.Sprintf("reviewer-%03d", (i+offset)%keys))))
			}
		}(w * 13)
	}
	wg.Wait()
	require.NoError(t, p.Close(ctx))

	names := table.names()
	require.Len(t, names, keys)
	seen := make(map[string]int)
	for _, n := range names {
		seen[n]++
	}
	for n, count := range seen {
		require.Equal(t, 1, count, "name %s written %d times", n, count)
	}
	require.False(t, table.overlap.Load(), "table writes overlapped")
	require.Equal(t, Stats{Accepted: keys, Duplicates: workers*keys - keys, Written: keys}, p.Stats())
}

func TestRoundTripToCSV(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "Acme-Bank.csv")
	table, err := csvfile.New(path)
	require.NoError(t, err)
	p, err := New(table, Config{Name: "Acme-Bank", Capacity: 4}, zap.NewNop())
	require.NoError(t, err)

	ctx := context.Background()
	const n = 10
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			require.NoError(t, p.Add(ctx, review(fmt.Sprintf("reviewer-%d", i))))
			require.NoError(t, p.Add(ctx, review(fmt.Sprintf("reviewer-%d", (i+1)%n))))
		}(i)
	}
	wg.Wait()
	require.NoError(t, p.Close(ctx))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, rows, n+1)
	require.Equal(t, record.ReviewColumns(), rows[0])
	got := make(map[string]bool)
	for _, row := range rows[1:] {
		require.NotEqual(t, "name", row[0])
		got[row[0]] = true
	}
	require.Len(t, got, n)
}

// flakyMirror rejects its first failures batches.
type flakyMirror struct {
	mu       sync.Mutex
	failures int
	rows     int
}

func (m *flakyMirror) Append(_ context.Context, batch []record.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failures > 0 {
		m.failures--
		return errors.New("connection reset by peer")
	}
	m.rows += len(batch)
	return nil
}

func readRows(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestMirrorFailureDoesNotRewritePrimary(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "online-bank.csv")
	primary, err := csvfile.New(path)
	require.NoError(t, err)
	mirror := &flakyMirror{failures: 1}
	p, err := New(tee.New(primary, mirror), Config{Name: "online-bank", Capacity: 2}, zap.NewNop())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, p.Add(ctx, review("a")))
	require.NoError(t, p.Add(ctx, review("b")))
	require.Equal(t, 0, p.Pending())
	require.NoError(t, p.Add(ctx, review("c")))
	require.NoError(t, p.Close(ctx))

	rows := readRows(t, path)
	require.Len(t, rows, 4, "header plus one row per key")
	require.Equal(t, []string{"a", "b", "c"}, []string{rows[1][0], rows[2][0], rows[3][0]})
	require.Equal(t, 1, mirror.rows)
	require.Equal(t, Stats{Accepted: 3, Written: 3, MirrorFailures: 2}, p.Stats())
}

func TestMirrorFailureIsLogged(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.ErrorLevel)
	mirror := &flakyMirror{failures: 1}
	p, err := New(tee.New(&fakeTable{}, mirror), Config{Name: "bank", Capacity: 1}, zap.New(core))
	require.NoError(t, err)

	require.NoError(t, p.Add(context.Background(), review("a")))
	require.Len(t, logs.FilterMessage("mirror write failed; primary kept the batch").All(), 1)
}
