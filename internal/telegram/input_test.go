package telegram

import (
	"testing"

	"publisher_bot/internal/telegram/models"

	botModels "github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentInputs(t *testing.T) {
	t.Run("text", func(t *testing.T) {
		got := contentInputs(&botModels.Message{Text: "  hello  world "})
		require.Len(t, got, 1)
		assert.Equal(t, models.ContentInput{Kind: models.ContentText, Text: "hello world"}, got[0])
	})

	t.Run("album photo keeps largest size", func(t *testing.T) {
		got := contentInputs(&botModels.Message{
			Photo:        []botModels.PhotoSize{{FileID: "small"}, {FileID: "large"}},
			Caption:      "cap",
			MediaGroupID: "g1",
		})
		require.Len(t, got, 1)
		assert.Equal(t, models.ContentPhoto, got[0].Kind)
		assert.Equal(t, "large", got[0].FileID)
		assert.Equal(t, "cap", got[0].Caption)
		assert.Equal(t, "g1", got[0].MediaGroupID)
	})

	t.Run("video", func(t *testing.T) {
		got := contentInputs(&botModels.Message{Video: &botModels.Video{FileID: "v"}})
		require.Len(t, got, 1)
		assert.Equal(t, models.ContentVideo, got[0].Kind)
	})

	t.Run("attachments", func(t *testing.T) {
		doc := contentInputs(&botModels.Message{Document: &botModels.Document{FileID: "d"}, Caption: "c"})
		require.Len(t, doc, 1)
		assert.Equal(t, models.ContentInput{Kind: models.ContentDocument, FileID: "d", Caption: "c"}, doc[0])

		voice := contentInputs(&botModels.Message{Voice: &botModels.Voice{FileID: "vo"}})
		require.Len(t, voice, 1)
		assert.Equal(t, models.ContentVoice, voice[0].Kind)
	})

	t.Run("nothing", func(t *testing.T) {
		assert.Empty(t, contentInputs(nil))
		assert.Empty(t, contentInputs(&botModels.Message{Sticker: &botModels.Sticker{FileID: "s"}}))
	})
}

func TestIsContentMessage(t *testing.T) {
	assert.True(t, isContentMessage(&botModels.Message{Text: "x"}))
	assert.True(t, isContentMessage(&botModels.Message{Audio: &botModels.Audio{FileID: "a"}}))
	assert.False(t, isContentMessage(&botModels.Message{Sticker: &botModels.Sticker{FileID: "s"}}))
	assert.False(t, isContentMessage(nil))
}
