package telegram

import (
	"publisher_bot/internal/telegram/models"

	botModels "github.com/go-telegram/bot/models"
)

// contentInputs 把一条 Telegram 消息转换为会话输入
// 相册中的消息只取媒体及其说明，正文来自单独的文本消息
func contentInputs(msg *botModels.Message) []models.ContentInput {
	if msg == nil {
		return nil
	}
	var out []models.ContentInput
	caption := sanitizeText(msg.Caption)

	if msg.Text != "" && msg.MediaGroupID == "" {
		if text := sanitizeText(msg.Text); text != "" {
			out = append(out, models.ContentInput{Kind: models.ContentText, Text: text})
		}
	}

	switch {
	case len(msg.Photo) > 0:
		largest := msg.Photo[len(msg.Photo)-1]
		out = append(out, models.ContentInput{
			Kind:         models.ContentPhoto,
			FileID:       largest.FileID,
			Caption:      caption,
			MediaGroupID: msg.MediaGroupID,
		})
	case msg.Video != nil:
		out = append(out, models.ContentInput{
			Kind:         models.ContentVideo,
			FileID:       msg.Video.FileID,
			Caption:      caption,
			MediaGroupID: msg.MediaGroupID,
		})
	}

	switch {
	case msg.Document != nil:
		out = append(out, models.ContentInput{Kind: models.ContentDocument, FileID: msg.Document.FileID, Caption: caption})
	case msg.Audio != nil:
		out = append(out, models.ContentInput{Kind: models.ContentAudio, FileID: msg.Audio.FileID, Caption: caption})
	case msg.Voice != nil:
		out = append(out, models.ContentInput{Kind: models.ContentVoice, FileID: msg.Voice.FileID})
	}
	return out
}

// isContentMessage 判断消息是否携带可收集的内容
func isContentMessage(msg *botModels.Message) bool {
	if msg == nil {
		return false
	}
	return msg.Text != "" || len(msg.Photo) > 0 || msg.Video != nil ||
		msg.Document != nil || msg.Audio != nil || msg.Voice != nil
}
