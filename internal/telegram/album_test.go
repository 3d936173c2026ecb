package telegram

import (
	"testing"
	"time"

	botModels "github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlbumCollectorGroupsAndOrders(t *testing.T) {
	got := make(chan []*botModels.Message, 2)
	c := newAlbumCollector(20*time.Millisecond, func(msgs []*botModels.Message) { got <- msgs })

	c.Add(&botModels.Message{ID: 3, MediaGroupID: "a"})
	c.Add(&botModels.Message{ID: 1, MediaGroupID: "a"})
	c.Add(&botModels.Message{ID: 2, MediaGroupID: "a"})

	select {
	case msgs := <-got:
		require.Len(t, msgs, 3)
		assert.Equal(t, []int{1, 2, 3}, []int{msgs[0].ID, msgs[1].ID, msgs[2].ID})
	case <-time.After(2 * time.Second):
		t.Fatal("album was not collected")
	}

	select {
	case <-got:
		t.Fatal("album collected twice")
	case <-time.After(60 * time.Millisecond):
	}
}

func TestAlbumCollectorFlush(t *testing.T) {
	var groups [][]*botModels.Message
	c := newAlbumCollector(time.Hour, func(msgs []*botModels.Message) { groups = append(groups, msgs) })

	c.Add(&botModels.Message{ID: 1, MediaGroupID: "a"})
	c.Add(&botModels.Message{ID: 2, MediaGroupID: "b"})
	c.Flush()

	assert.Len(t, groups, 2)
	c.Flush()
	assert.Len(t, groups, 2)
}
