package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alvmarrod/hub-weaver/internal/graph"
)

func newTestMemory() *Memory {
	m := NewMemory()
	for i := 1; i <= 6; i++ {
		m.AddUser(User{ID: graph.UserID(i), Name: "User", ScreenName: "u" + string(rune('0'+i))})
	}
	m.SetRelations(Outbound, 1, 2, 3, 4, 5, 6)
	return m
}

func drain(t *testing.T, seq *Sequence) []graph.UserID {
	t.Helper()
	var ids []graph.UserID
	for {
		u, ok, err := seq.Next(context.Background())
		require.NoError(t, err)
		if !ok {
			return ids
		}
		ids = append(ids, u.ID)
	}
}

func TestSequencePaginatesUpToLimit(t *testing.T) {
	m := newTestMemory()

	seq := NewSequence(m, Outbound, 1, 5, 2)
	assert.Equal(t, []graph.UserID{2, 3, 4, 5, 6}, drain(t, seq))
	assert.Equal(t, 5, seq.Yielded())
	assert.Equal(t, 3, seq.Pages())

	reqs := m.Requests()
	require.Len(t, reqs, 3)
	assert.Equal(t, "", reqs[0].Cursor)
	assert.Equal(t, "2", reqs[1].Cursor)
	assert.Equal(t, "4", reqs[2].Cursor)
	assert.Equal(t, 1, reqs[2].Count, "last page only asks for what the limit allows")
}

func TestSequenceStopsAtLastPage(t *testing.T) {
	m := newTestMemory()

	seq := NewSequence(m, Outbound, 1, 100, 4)
	assert.Equal(t, []graph.UserID{2, 3, 4, 5, 6}, drain(t, seq))
	assert.Len(t, m.Requests(), 2)
}

func TestSequenceZeroLimitFetchesNothing(t *testing.T) {
	m := newTestMemory()

	seq := NewSequence(m, Outbound, 1, 0, 4)
	assert.Empty(t, drain(t, seq))
	assert.Empty(t, m.Requests())
}

func TestSequenceRetriesSamePageAfterThrottle(t *testing.T) {
	m := newTestMemory()
	m.Throttle(Outbound, 1, 2, 1)

	seq := NewSequence(m, Outbound, 1, 6, 2)
	ctx := context.Background()

	var got []graph.UserID
	for i := 0; i < 2; i++ {
		u, ok, err := seq.Next(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		got = append(got, u.ID)
	}

	_, ok, err := seq.Next(ctx)
	require.ErrorIs(t, err, ErrThrottled)
	assert.False(t, ok)
	assert.Equal(t, "2", seq.Cursor(), "cursor must not advance on failure")

	got = append(got, drain(t, seq)...)
	assert.Equal(t, []graph.UserID{2, 3, 4, 5, 6}, got)
}

func TestMemoryGetUser(t *testing.T) {
	m := newTestMemory()
	ctx := context.Background()

	u, err := m.GetUser(ctx, "3")
	require.NoError(t, err)
	assert.Equal(t, graph.UserID(3), u.ID)

	u, err = m.GetUser(ctx, "@U4")
	require.NoError(t, err)
	assert.Equal(t, graph.UserID(4), u.ID)

	_, err = m.GetUser(ctx, "nobody")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestLoadFixture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixture.json")
	data := `{"users":[
		{"id":1,"name":"Seed","screen_name":"seed","outbound":[2],"inbound":[2]},
		{"id":2,"name":"Two","screen_name":"two","outbound":[1],"inbound":[1]}
	]}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	m, err := LoadFixture(path)
	require.NoError(t, err)

	u, err := m.GetUser(context.Background(), "seed")
	require.NoError(t, err)
	assert.Equal(t, "Seed", u.Name)

	page, err := m.ListRelations(context.Background(), Inbound, 1, "", 10)
	require.NoError(t, err)
	require.Len(t, page.Users, 1)
	assert.Equal(t, "two", page.Users[0].ScreenName)
	assert.Empty(t, page.NextCursor)
}
