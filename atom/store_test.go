package atom

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), Config{})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	return s
}

func TestInternAssignsIDAndFetchRoundTrips(t *testing.T) {
	s := newTestStore(t)
	id, err := s.Intern([]byte("<http://ex/alice>"))
	require.NoError(t, err)
	require.NotZero(t, id)

	got, err := s.Fetch(id)
	require.NoError(t, err)
	require.Equal(t, "<http://ex/alice>", string(got))
}

func TestInternIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	id1, err := s.Intern([]byte("<http://ex/alice>"))
	require.NoError(t, err)
	id2, err := s.Intern([]byte("<http://ex/alice>"))
	require.NoError(t, err)
	require.Equal(t, id1, id2)

	stats := s.Stats()
	require.Equal(t, uint64(1), stats.AtomCount)
}

func TestInternDistinctBytesGetDistinctIDs(t *testing.T) {
	s := newTestStore(t)
	id1, err := s.Intern([]byte("<http://ex/alice>"))
	require.NoError(t, err)
	id2, err := s.Intern([]byte("<http://ex/bob>"))
	require.NoError(t, err)
	require.NotEqual(t, id1, id2)
}

func TestLookupMissesOnUnseenBytes(t *testing.T) {
	s := newTestStore(t)
	_, ok := s.Lookup([]byte("<http://ex/nobody>"))
	require.False(t, ok)
}

func TestLookupHitsOnceInterned(t *testing.T) {
	s := newTestStore(t)
	id, err := s.Intern([]byte("<http://ex/alice>"))
	require.NoError(t, err)

	got, ok := s.Lookup([]byte("<http://ex/alice>"))
	require.True(t, ok)
	require.Equal(t, id, got)
}

func TestFetchZeroIDErrors(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Fetch(0)
	require.Error(t, err)
}

func TestInternGrowsIndexAcrossManyDistinctAtoms(t *testing.T) {
	s, err := Open(t.TempDir(), Config{InitialBuckets: 4, ProbeLimit: 2})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })

	ids := make(map[uint32]struct{})
	for i := 0; i < 500; i++ {
		id, err := s.Intern([]byte(fmt.Sprintf("<http://ex/n%d>", i)))
		require.NoError(t, err)
		ids[uint32(id)] = struct{}{}
	}
	require.Len(t, ids, 500)

	for i := 0; i < 500; i++ {
		id, ok := s.Lookup([]byte(fmt.Sprintf("<http://ex/n%d>", i)))
		require.True(t, ok)
		got, err := s.Fetch(id)
		require.NoError(t, err)
		require.Equal(t, fmt.Sprintf("<http://ex/n%d>", i), string(got))
	}
}

func TestInternConcurrentSameKeyConvergesOnOneIDAndStaysDense(t *testing.T) {
	s := newTestStore(t)
	const goroutines = 32

	var wg sync.WaitGroup
	ids := make([]uint32, goroutines)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := s.Intern([]byte("<http://ex/shared>"))
			require.NoError(t, err)
			ids[i] = uint32(id)
		}(i)
	}
	wg.Wait()

	for i := 1; i < goroutines; i++ {
		require.Equal(t, ids[0], ids[i], "every goroutine interning the same key must converge on one id")
	}
	require.Equal(t, uint64(1), s.Stats().AtomCount)
}

func TestInternConcurrentDistinctKeysStayDense(t *testing.T) {
	s := newTestStore(t)
	const n = 256

	var wg sync.WaitGroup
	ids := make([]uint32, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := s.Intern([]byte(fmt.Sprintf("<http://ex/concurrent%d>", i)))
			require.NoError(t, err)
			ids[i] = uint32(id)
		}(i)
	}
	wg.Wait()

	seen := make(map[uint32]struct{}, n)
	var maxID uint32
	for _, id := range ids {
		require.NotZero(t, id)
		_, dup := seen[id]
		require.False(t, dup, "no two distinct keys should share an id")
		seen[id] = struct{}{}
		if id > maxID {
			maxID = id
		}
	}
	require.Len(t, seen, n)

	// Dense from 1 upward: the n ids handed out must be exactly
	// {1, ..., n} with no gaps burned by a lost bucket-claim race.
	require.Equal(t, uint32(n), maxID)
	for id := uint32(1); id <= maxID; id++ {
		_, ok := seen[id]
		require.True(t, ok, "id %d must have been assigned, ids must stay dense", id)
	}
}

func TestReopenPreservesInternedAtoms(t *testing.T) {
	dir := t.TempDir()
	s1, err := Open(dir, Config{})
	require.NoError(t, err)
	id, err := s1.Intern([]byte("<http://ex/alice>"))
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(dir, Config{})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s2.Close()) })

	got, ok := s2.Lookup([]byte("<http://ex/alice>"))
	require.True(t, ok)
	require.Equal(t, id, got)
}
