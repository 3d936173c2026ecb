package models

import (
	"fmt"
	"strconv"
	"strings"
)

const rebroadcastJobPrefix = "rebroadcast_"

// RebroadcastJobName 生成重播任务名：rebroadcast_{owner}_{campaign}
func RebroadcastJobName(ownerID, campaignID int64) string {
	return fmt.Sprintf("%s%d_%d", rebroadcastJobPrefix, ownerID, campaignID)
}

// ParseRebroadcastJobName 解析重播任务名
func ParseRebroadcastJobName(name string) (ownerID, campaignID int64, err error) {
	rest, ok := strings.CutPrefix(name, rebroadcastJobPrefix)
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", ErrMalformedKey, name)
	}
	parts := strings.Split(rest, "_")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: %q", ErrMalformedKey, name)
	}
	ownerID, err = strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: owner %q", ErrMalformedKey, parts[0])
	}
	campaignID, err = strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: campaign %q", ErrMalformedKey, parts[1])
	}
	return ownerID, campaignID, nil
}

// RebroadcastPayload 重播快照，创建后内容与目标不再变化
type RebroadcastPayload struct {
	Content       Content       `json:"content"`
	Destinations  []int64       `json:"chosen_chats"`
	UseReactions  bool          `json:"use_reactions"`
	ReactionStyle ReactionStyle `json:"reaction_style,omitempty"`
	OwnerID       int64         `json:"owner_id"`
	CampaignID    int64         `json:"campaign_id"`
	Total         int           `json:"total"`
	Left          int           `json:"left"`
}

// Done 当前是第几次重播（从 1 开始）
func (p RebroadcastPayload) Done() int {
	return p.Total - p.Left + 1
}

// ActiveRebroadcast 持久化的重播任务描述，重启后据此恢复
type ActiveRebroadcast struct {
	Interval int                `json:"interval"`
	Payload  RebroadcastPayload `json:"payload"`
}

// SnapshotRebroadcast 从会话生成不可变快照
func SnapshotRebroadcast(ownerID int64, s *Session, destinations []int64) RebroadcastPayload {
	return RebroadcastPayload{
		Content:       s.Content.Clone(),
		Destinations:  append([]int64(nil), destinations...),
		UseReactions:  s.UseReactions,
		ReactionStyle: s.ReactionStyle,
		OwnerID:       ownerID,
		CampaignID:    s.CampaignID,
		Total:         s.RebroadcastTotal,
		Left:          s.RebroadcastTotal,
	}
}

// Session 由快照重建一次性会话（不携带调度意图）
func (p RebroadcastPayload) Session() *Session {
	return &Session{
		Stage:         StageReadyOptions,
		Content:       p.Content.Clone(),
		UseReactions:  p.UseReactions,
		ReactionStyle: p.ReactionStyle,
		ChosenChats:   NewIDSet(p.Destinations...),
		AllowedChats:  IDSet{},
		CampaignID:    p.CampaignID,
	}
}
