package models

// VoteAction 投票动作
type VoteAction string

const (
	VoteLike    VoteAction = "like"
	VoteDislike VoteAction = "dislike"
)

// IsValid 判断投票动作是否合法
func (a VoteAction) IsValid() bool {
	return a == VoteLike || a == VoteDislike
}

// ReactionStyle 表情样式
type ReactionStyle string

const (
	StyleThumbs ReactionStyle = "thumbs"
	StyleFaces  ReactionStyle = "faces"
	StyleHearts ReactionStyle = "hearts"
)

// ReactionStyles 可选样式（按面板显示顺序）
var ReactionStyles = []ReactionStyle{StyleThumbs, StyleFaces, StyleHearts}

func (s ReactionStyle) IsValid() bool {
	switch s {
	case StyleThumbs, StyleFaces, StyleHearts:
		return true
	}
	return false
}

// Pair 返回 (正向, 负向) 表情，未知样式回落到 thumbs
func (s ReactionStyle) Pair() (string, string) {
	switch s {
	case StyleFaces:
		return "😊", "🙁"
	case StyleHearts:
		return "❤️", "💔"
	default:
		return "👍", "👎"
	}
}

// Emoji 返回某个动作对应的表情
func (s ReactionStyle) Emoji(a VoteAction) string {
	pos, neg := s.Pair()
	if a == VoteDislike {
		return neg
	}
	return pos
}

// ReactionCounter 点赞/点踩计数及投票人
type ReactionCounter struct {
	Like    int                  `json:"like"`
	Dislike int                  `json:"dislike"`
	Voters  map[int64]VoteAction `json:"voters"`
}

// NewReactionCounter 创建空计数器
func NewReactionCounter() *ReactionCounter {
	return &ReactionCounter{Voters: map[int64]VoteAction{}}
}

// HasVoted 判断用户是否已投票
func (c *ReactionCounter) HasVoted(userID int64) bool {
	_, ok := c.Voters[userID]
	return ok
}

// Record 记录一次投票；已投过票返回 false 且不修改计数
// 调用方必须在同一临界区内完成检查与写入
func (c *ReactionCounter) Record(userID int64, action VoteAction) bool {
	if c.Voters == nil {
		c.Voters = map[int64]VoteAction{}
	}
	if c.HasVoted(userID) {
		return false
	}
	if action == VoteDislike {
		c.Dislike++
	} else {
		c.Like++
	}
	c.Voters[userID] = action
	return true
}

// Tally 计数快照
type Tally struct {
	Like    int `json:"like"`
	Dislike int `json:"dislike"`
}

// Tally 返回当前计数
func (c *ReactionCounter) Tally() Tally {
	if c == nil {
		return Tally{}
	}
	return Tally{Like: c.Like, Dislike: c.Dislike}
}

// CampaignCounter 活动级计数器，投票去重以活动为单位
// PerChat 仅用于统计展示
type CampaignCounter struct {
	ReactionCounter
	PerChat map[int64]Tally `json:"per_chat,omitempty"`
}

// NewCampaignCounter 创建空活动计数器
func NewCampaignCounter() *CampaignCounter {
	return &CampaignCounter{
		ReactionCounter: ReactionCounter{Voters: map[int64]VoteAction{}},
		PerChat:         map[int64]Tally{},
	}
}

// RecordInChat 记录投票并累加对应聊天的分项计数
func (c *CampaignCounter) RecordInChat(chatID, userID int64, action VoteAction) bool {
	if !c.Record(userID, action) {
		return false
	}
	if c.PerChat == nil {
		c.PerChat = map[int64]Tally{}
	}
	t := c.PerChat[chatID]
	if action == VoteDislike {
		t.Dislike++
	} else {
		t.Like++
	}
	c.PerChat[chatID] = t
	return true
}
