package session

import (
	"sync"
	"testing"

	"datanomics/domain/core"
	"datanomics/domain/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rows(values ...int) []session.Record {
	out := make([]session.Record, len(values))
	for i, v := range values {
		out[i] = session.NewRecord("x", v)
	}
	return out
}

func TestStore_GetReturnsEmptySession(t *testing.T) {
	s := NewStore(nil)
	got := s.Get()

	assert.Equal(t, "", got.Filename)
	assert.NotNil(t, got.Columns)
	assert.NotNil(t, got.FullDataset)
	assert.NotNil(t, got.ColumnTypeHints)
}

func TestStore_ReplaceIsFieldwiseLastWriteWins(t *testing.T) {
	s := NewStore(nil)

	patches := []session.Patch{
		session.Patch{}.WithFilename("a.csv").WithColumns([]string{"x"}),
		session.Patch{}.WithFullDataset(rows(1, 2)),
		session.Patch{}.WithFilename("b.csv"),
		session.Patch{}.WithFullDataset(rows(3)),
		session.Patch{}.WithColumnTypeHints(map[string]session.ColumnType{"x": session.ColumnNumeric}),
	}

	want := session.Empty()
	for _, p := range patches {
		s.Replace(p)
		want = p.Apply(want)
	}

	got := s.Get()
	assert.Equal(t, want, got)
	assert.Equal(t, "b.csv", got.Filename)
	assert.Equal(t, []string{"x"}, got.Columns)
	assert.Len(t, got.FullDataset, 1)
}

func TestStore_NotifiesSynchronouslyBeforeReturning(t *testing.T) {
	s := NewStore(nil)

	var seen []string
	unsubscribe := s.Subscribe(func(next session.AnalysisSession, wholesale bool) {
		seen = append(seen, next.Filename)
		assert.False(t, wholesale)
	})

	s.Replace(session.Patch{}.WithFilename("one.csv"))
	require.Equal(t, []string{"one.csv"}, seen)

	unsubscribe()
	s.Replace(session.Patch{}.WithFilename("two.csv"))
	assert.Equal(t, []string{"one.csv"}, seen)
}

func TestStore_GetIsACopy(t *testing.T) {
	s := NewStore(nil)
	s.Replace(session.Patch{}.WithColumns([]string{"x", "y"}))

	got := s.Get()
	got.Columns[0] = "mutated"

	assert.Equal(t, []string{"x", "y"}, s.Get().Columns)
}

func TestStore_CommitRejectsStaleTicket(t *testing.T) {
	s := NewStore(nil)
	s.Load(session.AnalysisSession{Filename: "first.csv", FullDataset: rows(1, 2, 3)})

	ticket := s.Ticket()

	// A fresh upload lands while the cleaning call is in flight.
	s.Load(session.AnalysisSession{Filename: "second.csv", FullDataset: rows(9)})

	_, err := s.Commit(ticket, session.Patch{}.WithFullDataset(rows(1)))
	assert.ErrorIs(t, err, core.ErrStaleResponse)
	assert.Equal(t, "second.csv", s.Get().Filename)
	assert.Len(t, s.Get().FullDataset, 1)

	fresh := s.Ticket()
	next, err := s.Commit(fresh, session.Patch{}.WithFullDataset(rows(7, 8)))
	require.NoError(t, err)
	assert.Len(t, next.FullDataset, 2)
}

func TestStore_ResetStartsNewGeneration(t *testing.T) {
	s := NewStore(nil)
	s.Load(session.AnalysisSession{Filename: "a.csv"})
	gen := s.Generation()

	var wholesaleSeen bool
	s.Subscribe(func(_ session.AnalysisSession, wholesale bool) { wholesaleSeen = wholesale })

	s.Reset()
	assert.True(t, wholesaleSeen)
	assert.Equal(t, gen+1, s.Generation())
	assert.True(t, s.Get().IsEmpty())
}

func TestStore_ConcurrentReadersNeverSeeHalfWrittenDataset(t *testing.T) {
	s := NewStore(nil)
	small, large := rows(1), rows(1, 2, 3, 4, 5, 6, 7, 8)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			if i%2 == 0 {
				s.Replace(session.Patch{}.WithFullDataset(small))
			} else {
				s.Replace(session.Patch{}.WithFullDataset(large))
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			n := len(s.Get().FullDataset)
			if n != 0 && n != len(small) && n != len(large) {
				t.Errorf("observed partial dataset of %d rows", n)
			}
		}
	}()
	wg.Wait()
}

func TestStore_LoadIfRefusesAfterReset(t *testing.T) {
	s := NewStore(nil)
	ticket := s.Ticket()

	s.Reset()

	_, err := s.LoadIf(ticket, session.AnalysisSession{Filename: "late.csv"})
	assert.True(t, core.IsStale(err))
	assert.True(t, s.Get().IsEmpty())

	next, err := s.LoadIf(s.Ticket(), session.AnalysisSession{Filename: "fresh.csv"})
	require.NoError(t, err)
	assert.Equal(t, "fresh.csv", next.Filename)
}
