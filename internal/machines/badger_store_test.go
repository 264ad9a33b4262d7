package machines_test

import (
	"context"
	"testing"
	"time"

	"github.com/EternisAI/fleet-monitor/internal/machines"
	"github.com/EternisAI/fleet-monitor/internal/machines/machinestest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBadgerStore(t *testing.T) {
	machinestest.RunStoreSuite(t, func(t *testing.T) machines.Store {
		s, err := machines.NewBadgerStore(machines.BadgerConfig{InMemory: true})
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestBadgerStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	seen := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	s, err := machines.NewBadgerStore(machines.BadgerConfig{Path: dir})
	require.NoError(t, err)
	_, err = s.Upsert(ctx, "m1", "acme", []string{"svcA"}, seen)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = machines.NewBadgerStore(machines.BadgerConfig{Path: dir})
	require.NoError(t, err)
	defer s.Close()

	all, err := s.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "acme", all[0].ClientID)
	assert.Equal(t, []string{"svcA"}, all[0].RunningPrograms)
	assert.True(t, seen.Equal(all[0].LastSeen))
}

func TestBadgerStoreRequiresPath(t *testing.T) {
	_, err := machines.NewBadgerStore(machines.BadgerConfig{})
	assert.Error(t, err)
}

func TestBadgerStoreClosed(t *testing.T) {
	s, err := machines.NewBadgerStore(machines.BadgerConfig{InMemory: true})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = s.Upsert(context.Background(), "m1", "acme", nil, time.Now())
	assert.ErrorIs(t, err, machines.ErrStoreUnavailable)
}
