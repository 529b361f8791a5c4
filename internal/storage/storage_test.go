package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"leetee/internal/config"
	"leetee/internal/database"
	"leetee/internal/logger"
)

func exerciseKV(t *testing.T, kv KV) {
	t.Helper()
	ctx := context.Background()

	_, err := kv.Get(ctx, "leetee:dev1:global")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, kv.Set(ctx, "leetee:dev1:episode:ep_1:state", `{"a":1}`))
	require.NoError(t, kv.Set(ctx, "leetee:dev1:episode:ep_1:state", `{"a":2}`))
	require.NoError(t, kv.Set(ctx, "leetee:dev1:episode:ep_1:nav", `{"currentSection":2}`))
	require.NoError(t, kv.Set(ctx, "leetee:dev1Xepisode", `x`))
	require.NoError(t, kv.Set(ctx, "leetee:dev2:global", `{}`))

	v, err := kv.Get(ctx, "leetee:dev1:episode:ep_1:state")
	require.NoError(t, err)
	assert.Equal(t, `{"a":2}`, v)

	keys, err := kv.Keys(ctx, "leetee:dev1:episode:ep_")
	require.NoError(t, err)
	assert.Equal(t, []string{"leetee:dev1:episode:ep_1:nav", "leetee:dev1:episode:ep_1:state"}, keys)

	require.NoError(t, kv.Delete(ctx, "leetee:dev1:episode:ep_1:nav"))
	_, err = kv.Get(ctx, "leetee:dev1:episode:ep_1:nav")
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, kv.Delete(ctx, "missing"))
}

func TestMemory(t *testing.T) {
	exerciseKV(t, NewMemory())
}

func TestSQL(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	db, err := database.Initialize(filepath.Join(t.TempDir(), "kv.db"))
	require.NoError(t, err)
	defer db.Close()
	_, err = db.RunMigrations(context.Background())
	require.NoError(t, err)

	exerciseKV(t, NewSQL(db))
}

type brokenKV struct{ *Memory }

var errDiskFull = errors.New("disk full")

func (b *brokenKV) Get(context.Context, string) (string, error) { return "", errDiskFull }
func (b *brokenKV) Set(context.Context, string, string) error   { return errDiskFull }
func (b *brokenKV) Keys(context.Context, string) ([]string, error) {
	return nil, errDiskFull
}

func TestResilientPassesThrough(t *testing.T) {
	exerciseKV(t, NewResilient(NewMemory(), nil))
}

func TestResilientDegradesOnce(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	r := NewResilient(&brokenKV{Memory: NewMemory()}, logger.FromZap(zap.New(core)))
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, "k", "v1"))
	assert.True(t, r.Degraded())

	v, err := r.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v1", v)

	require.NoError(t, r.Set(ctx, "k", "v2"))
	v, _ = r.Get(ctx, "k")
	assert.Equal(t, "v2", v)

	keys, err := r.Keys(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"k"}, keys)

	assert.Equal(t, 1, logs.FilterMessage("storage unavailable, continuing in memory").Len())
}

func TestResilientIgnoresCallerCancellation(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	db, err := database.Initialize(filepath.Join(t.TempDir(), "kv.db"))
	require.NoError(t, err)
	defer db.Close()
	_, err = db.RunMigrations(context.Background())
	require.NoError(t, err)
	primary := NewSQL(db)
	r := NewResilient(primary, nil)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	expired, stop := context.WithTimeout(context.Background(), -time.Second)
	defer stop()

	tests := []struct {
		name string
		call func(ctx context.Context) error
	}{
		{"set", func(ctx context.Context) error { return r.Set(ctx, "k1", "v") }},
		{"get", func(ctx context.Context) error { _, err := r.Get(ctx, "k1"); return err }},
		{"delete", func(ctx context.Context) error { return r.Delete(ctx, "k1") }},
		{"keys", func(ctx context.Context) error { _, err := r.Keys(ctx, ""); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, ctx := range []context.Context{cancelled, expired} {
				_ = tt.call(ctx)
				assert.False(t, r.Degraded())
			}
		})
	}

	ctx := context.Background()
	require.NoError(t, r.Set(ctx, "k2", "kept"))
	v, err := primary.Get(ctx, "k2")
	require.NoError(t, err)
	assert.Equal(t, "kept", v)
}

func TestEscapeGlob(t *testing.T) {
	assert.Equal(t, `leetee:a\*b\?:`, escapeGlob("leetee:a*b?:"))
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	b, err := Open(ctx, &config.Config{StorageBackend: "memory"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "memory", b.Name)
	assert.Nil(t, b.DB)
	require.NoError(t, b.Close())

	cfg := &config.Config{StorageBackend: "sql", DatabaseType: "sqlite", DatabasePath: filepath.Join(t.TempDir(), "open.db")}
	b, err = Open(ctx, cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "sql", b.Name)
	require.NotNil(t, b.DB)
	exerciseKV(t, b.KV)
	require.NoError(t, b.Close())

	_, err = Open(ctx, &config.Config{StorageBackend: "floppy"}, nil)
	assert.ErrorContains(t, err, "floppy")
}
