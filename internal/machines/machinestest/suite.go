// Package machinestest holds the behaviour every machines.Store must share.
// Backends run it from their own tests with a factory that returns an empty
// store.
package machinestest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/EternisAI/fleet-monitor/internal/machines"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Factory func(t *testing.T) machines.Store

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func RunStoreSuite(t *testing.T, newStore Factory) {
	t.Run("CreatesRecordOnFirstUpsert", func(t *testing.T) { testCreate(t, newStore(t)) })
	t.Run("UpsertDoesNotDuplicate", func(t *testing.T) { testNoDuplicate(t, newStore(t)) })
	t.Run("ProgramsReplacedNotMerged", func(t *testing.T) { testReplace(t, newStore(t)) })
	t.Run("NilProgramsStoredEmpty", func(t *testing.T) { testNilPrograms(t, newStore(t)) })
	t.Run("ReplayAdvancesOnlyLastSeen", func(t *testing.T) { testReplay(t, newStore(t)) })
	t.Run("ListAllOrderedByMachineID", func(t *testing.T) { testOrder(t, newStore(t)) })
	t.Run("ReturnedRecordsAreCopies", func(t *testing.T) { testCopies(t, newStore(t)) })
	t.Run("CancelledContextLeavesStoreUntouched", func(t *testing.T) { testCancelled(t, newStore(t)) })
	t.Run("ConcurrentSameMachine", func(t *testing.T) { testConcurrentSameKey(t, newStore(t)) })
	t.Run("ConcurrentDifferentMachines", func(t *testing.T) { testConcurrentKeys(t, newStore(t)) })
	t.Run("UnstorableValuesAreNotOutages", func(t *testing.T) { testUnstorableValues(t, newStore(t)) })
}

func testCreate(t *testing.T, s machines.Store) {
	ctx := context.Background()

	rec, err := s.Upsert(ctx, "m1", "acme", []string{"svcA", "svcB"}, base)
	require.NoError(t, err)
	assert.Equal(t, "m1", rec.MachineID)
	assert.Equal(t, "acme", rec.ClientID)
	assert.Equal(t, []string{"svcA", "svcB"}, rec.RunningPrograms)
	assert.True(t, base.Equal(rec.LastSeen))

	all, err := s.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "acme", all[0].ClientID)
	assert.True(t, base.Equal(all[0].LastSeen))
}

func testNoDuplicate(t *testing.T, s machines.Store) {
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := s.Upsert(ctx, "m1", fmt.Sprintf("client-%d", i), []string{"svc"}, base.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
	}

	all, err := s.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "client-4", all[0].ClientID)
	assert.True(t, base.Add(4*time.Second).Equal(all[0].LastSeen))
}

func testReplace(t *testing.T, s machines.Store) {
	ctx := context.Background()

	_, err := s.Upsert(ctx, "m1", "acme", []string{"a", "b"}, base)
	require.NoError(t, err)
	_, err = s.Upsert(ctx, "m1", "acme", []string{}, base.Add(time.Second))
	require.NoError(t, err)

	all, err := s.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Empty(t, all[0].RunningPrograms)
	assert.NotNil(t, all[0].RunningPrograms)
}

func testNilPrograms(t *testing.T, s machines.Store) {
	ctx := context.Background()

	rec, err := s.Upsert(ctx, "m1", "acme", nil, base)
	require.NoError(t, err)
	assert.Equal(t, []string{}, rec.RunningPrograms)

	all, err := s.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, []string{}, all[0].RunningPrograms)
}

func testReplay(t *testing.T, s machines.Store) {
	ctx := context.Background()

	first, err := s.Upsert(ctx, "m1", "acme", []string{"svcA"}, base)
	require.NoError(t, err)
	second, err := s.Upsert(ctx, "m1", "acme", []string{"svcA"}, base.Add(5*time.Second))
	require.NoError(t, err)

	assert.Equal(t, first.ClientID, second.ClientID)
	assert.Equal(t, first.RunningPrograms, second.RunningPrograms)
	assert.True(t, second.LastSeen.After(first.LastSeen))

	all, err := s.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, base.Add(5*time.Second).Equal(all[0].LastSeen))
}

func testOrder(t *testing.T, s machines.Store) {
	ctx := context.Background()

	for _, id := range []string{"m3", "m1", "m2"} {
		_, err := s.Upsert(ctx, id, "acme", nil, base)
		require.NoError(t, err)
	}

	all, err := s.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "m1", all[0].MachineID)
	assert.Equal(t, "m2", all[1].MachineID)
	assert.Equal(t, "m3", all[2].MachineID)
}

func testCopies(t *testing.T, s machines.Store) {
	ctx := context.Background()

	programs := []string{"svcA"}
	rec, err := s.Upsert(ctx, "m1", "acme", programs, base)
	require.NoError(t, err)

	programs[0] = "mutated-input"
	rec.RunningPrograms[0] = "mutated-output"

	all, err := s.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, []string{"svcA"}, all[0].RunningPrograms)
}

func testCancelled(t *testing.T, s machines.Store) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Upsert(ctx, "m1", "acme", []string{"svcA"}, base)
	require.Error(t, err)
	assert.ErrorIs(t, err, machines.ErrStoreUnavailable)

	all, err := s.ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

// testConcurrentSameKey writes N distinct payloads to one machine while a
// reader polls. Every payload pairs client-i with prog-i, so a record mixing
// two writes is detectable.
func testConcurrentSameKey(t *testing.T, s machines.Store) {
	ctx := context.Background()
	const writers = 32

	_, err := s.Upsert(ctx, "m1", "client-init", []string{"prog-init"}, base)
	require.NoError(t, err)

	stop := make(chan struct{})
	readerDone := make(chan struct{})
	var torn []string
	go func() {
		defer close(readerDone)
		for {
			select {
			case <-stop:
				return
			default:
			}
			all, err := s.ListAll(ctx)
			if err != nil {
				continue
			}
			for _, rec := range all {
				if !consistent(rec) {
					torn = append(torn, fmt.Sprintf("%+v", rec))
				}
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Upsert(ctx, "m1",
				fmt.Sprintf("client-%d", i),
				[]string{fmt.Sprintf("prog-%d", i), fmt.Sprintf("prog-%d-extra", i)},
				base.Add(time.Duration(i)*time.Millisecond))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
	close(stop)
	<-readerDone

	assert.Empty(t, torn)

	all, err := s.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, consistent(all[0]), "final record mixes writes: %+v", all[0])
	assert.NotEqual(t, "client-init", all[0].ClientID)
}

func consistent(rec machines.Record) bool {
	suffix := strings.TrimPrefix(rec.ClientID, "client-")
	if len(rec.RunningPrograms) == 0 {
		return false
	}
	if rec.RunningPrograms[0] != "prog-"+suffix {
		return false
	}
	if suffix != "init" {
		return len(rec.RunningPrograms) == 2 && rec.RunningPrograms[1] == "prog-"+suffix+"-extra"
	}
	return len(rec.RunningPrograms) == 1
}

func testConcurrentKeys(t *testing.T, s machines.Store) {
	ctx := context.Background()
	const machinesCount = 50

	var wg sync.WaitGroup
	for i := 0; i < machinesCount; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Upsert(ctx, fmt.Sprintf("m-%03d", i), "acme", []string{"svc"}, base)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	all, err := s.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, machinesCount)
}

// testUnstorableValues writes NUL characters, which some backends cannot
// store. A backend may keep them verbatim or refuse them as ErrInvalidRecord,
// but must not report the refusal as the store being unavailable, and a
// refused write leaves nothing behind.
func testUnstorableValues(t *testing.T, s machines.Store) {
	ctx := context.Background()

	rec, err := s.Upsert(ctx, "m\x001", "acme", []string{"a\x00b"}, base)
	if err != nil {
		assert.ErrorIs(t, err, machines.ErrInvalidRecord)
		assert.NotErrorIs(t, err, machines.ErrStoreUnavailable)

		all, err := s.ListAll(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)
		return
	}

	assert.Equal(t, "m\x001", rec.MachineID)
	all, err := s.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, []string{"a\x00b"}, all[0].RunningPrograms)
}
