package models

import "strings"

// MediaKind 媒体类型
type MediaKind string

const (
	MediaPhoto    MediaKind = "photo"
	MediaVideo    MediaKind = "video"
	MediaDocument MediaKind = "document"
	MediaAudio    MediaKind = "audio"
	MediaVoice    MediaKind = "voice"
)

// ContentKind 用户输入类型
type ContentKind string

const (
	ContentText     ContentKind = "text"
	ContentPhoto    ContentKind = ContentKind(MediaPhoto)
	ContentVideo    ContentKind = ContentKind(MediaVideo)
	ContentDocument ContentKind = ContentKind(MediaDocument)
	ContentAudio    ContentKind = ContentKind(MediaAudio)
	ContentVoice    ContentKind = ContentKind(MediaVoice)
)

// Slot 内容写入的逻辑槽位
type Slot string

const (
	SlotNone       Slot = ""
	SlotText       Slot = "text"
	SlotMedia      Slot = "media"
	SlotAttachment Slot = "attachment"
)

// MediaItem 一个媒体文件引用
type MediaItem struct {
	Kind         MediaKind `json:"kind"`
	FileID       string    `json:"file_id"`
	Caption      string    `json:"caption,omitempty"`
	MediaGroupID string    `json:"media_group_id,omitempty"`
}

// ContentInput 用户发送的一条输入
type ContentInput struct {
	Kind         ContentKind
	Text         string
	FileID       string
	Caption      string
	MediaGroupID string
}

// Content 帖子内容
type Content struct {
	Text             string      `json:"text,omitempty"`
	MediaList        []MediaItem `json:"media_list"`
	SingleAttachment *MediaItem  `json:"single_attachment,omitempty"`
}

// IsEmpty 判断是否没有任何内容
func (c Content) IsEmpty() bool {
	return strings.TrimSpace(c.Text) == "" && len(c.MediaList) == 0 && c.SingleAttachment == nil
}

// Clone 深拷贝
func (c Content) Clone() Content {
	out := Content{Text: c.Text}
	if c.MediaList != nil {
		out.MediaList = append([]MediaItem(nil), c.MediaList...)
	}
	if c.SingleAttachment != nil {
		att := *c.SingleAttachment
		out.SingleAttachment = &att
	}
	return out
}

func (c *Content) apply(in ContentInput) Slot {
	switch in.Kind {
	case ContentText:
		text := strings.TrimSpace(in.Text)
		if text == "" || IsReservedKeyword(text) {
			return SlotNone
		}
		if c.Text == "" {
			c.Text = text
		} else {
			c.Text = c.Text + "\n" + text
		}
		return SlotText

	case ContentPhoto, ContentVideo:
		if in.FileID == "" {
			return SlotNone
		}
		c.MediaList = append(c.MediaList, MediaItem{
			Kind:         MediaKind(in.Kind),
			FileID:       in.FileID,
			Caption:      strings.TrimSpace(in.Caption),
			MediaGroupID: in.MediaGroupID,
		})
		return SlotMedia

	case ContentDocument, ContentAudio, ContentVoice:
		if in.FileID == "" {
			return SlotNone
		}
		c.SingleAttachment = &MediaItem{
			Kind:    MediaKind(in.Kind),
			FileID:  in.FileID,
			Caption: strings.TrimSpace(in.Caption),
		}
		return SlotAttachment
	}
	return SlotNone
}
