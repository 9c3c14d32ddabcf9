package mediagroup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregatorFlushesAlbumOnce(t *testing.T) {
	flushed := make(chan Group, 4)
	a := New(Options{
		Debounce: 20 * time.Millisecond,
		MaxFiles: 2,
		OnFlush:  func(g Group) { flushed <- g },
	})

	a.Add(Item{ChatID: 1, UserID: 9, SenderName: "Alice", MediaGroupID: "m1", FileID: "f1"})
	a.Add(Item{ChatID: 1, UserID: 9, SenderName: "Alice", MediaGroupID: "m1", FileID: "f2", Caption: "/card Bob | hi"})
	a.Add(Item{ChatID: 1, UserID: 9, SenderName: "Alice", MediaGroupID: "m1", FileID: "f3"})
	assert.Equal(t, 1, a.Pending())

	var g Group
	select {
	case g = <-flushed:
	case <-time.After(2 * time.Second):
		t.Fatal("album was not flushed")
	}

	assert.Equal(t, []string{"f1", "f2"}, g.FileIDs)
	assert.Equal(t, "/card Bob | hi", g.Caption)
	assert.Equal(t, "Alice", g.SenderName)
	require.Eventually(t, func() bool { return a.Pending() == 0 }, time.Second, 5*time.Millisecond)

	select {
	case extra := <-flushed:
		t.Fatalf("unexpected second flush: %+v", extra)
	case <-time.After(60 * time.Millisecond):
	}
}

func TestAggregatorIgnoresLooseItems(t *testing.T) {
	a := New(Options{Debounce: time.Hour})
	a.Add(Item{ChatID: 1, FileID: "f1"})
	a.Add(Item{ChatID: 1, MediaGroupID: "m"})
	assert.Zero(t, a.Pending())
}
