package engine

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"localcloud/internal/storage/blob"
	"localcloud/internal/storage/meta"
	"localcloud/pkg/arn"
)

// fakeClock lets tests step through time-dependent behavior without
// sleeping.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestEngine(t *testing.T) (*Engine, *fakeClock, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := meta.Open(dir, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	blobs, err := blob.NewStore(dir)
	require.NoError(t, err)
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	e := New(store, blobs, arn.DefaultRegion, "http://localhost:4566", zap.NewNop(), WithClock(clock.Now))
	return e, clock, dir
}

func countBlobFiles(t *testing.T, dataDir string) int {
	t.Helper()
	n := 0
	err := filepath.Walk(filepath.Join(dataDir, "objects"), func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			n++
		}
		return nil
	})
	require.NoError(t, err)
	return n
}

func TestEngineRegion(t *testing.T) {
	e, _, _ := newTestEngine(t)
	require.Equal(t, arn.DefaultRegion, e.Region())
}
