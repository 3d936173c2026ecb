package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"
)

// IDSet 聊天/用户 ID 集合
// 持久化格式：{"__set__": true, "items": [...]}，与普通数组区分
type IDSet map[int64]struct{}

type taggedSet struct {
	Set   bool    `json:"__set__"`
	Items []int64 `json:"items"`
}

// NewIDSet 由 ID 列表构建集合
func NewIDSet(ids ...int64) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has 判断是否包含
func (s IDSet) Has(id int64) bool {
	_, ok := s[id]
	return ok
}

// Add 添加元素
func (s IDSet) Add(id int64) {
	s[id] = struct{}{}
}

// Remove 删除元素
func (s IDSet) Remove(id int64) {
	delete(s, id)
}

// Toggle 切换元素，返回切换后是否存在
func (s IDSet) Toggle(id int64) bool {
	if s.Has(id) {
		delete(s, id)
		return false
	}
	s[id] = struct{}{}
	return true
}

// Sorted 返回升序 ID 列表
func (s IDSet) Sorted() []int64 {
	out := make([]int64, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Clone 深拷贝
func (s IDSet) Clone() IDSet {
	if s == nil {
		return nil
	}
	out := make(IDSet, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

func (s IDSet) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("null"), nil
	}
	return json.Marshal(taggedSet{Set: true, Items: s.Sorted()})
}

func (s *IDSet) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = nil
		return nil
	}

	// 兼容旧格式：纯数组
	if len(data) > 0 && data[0] == '[' {
		var items []int64
		if err := json.Unmarshal(data, &items); err != nil {
			return fmt.Errorf("failed to decode id set list: %w", err)
		}
		*s = NewIDSet(items...)
		return nil
	}

	var tagged taggedSet
	if err := json.Unmarshal(data, &tagged); err != nil {
		return fmt.Errorf("failed to decode id set: %w", err)
	}
	if !tagged.Set {
		return errors.New("id set: missing __set__ tag")
	}
	*s = NewIDSet(tagged.Items...)
	return nil
}

// Timestamp UTC 时间戳
// 持久化格式：{"__dt__": true, "iso": "<RFC3339 UTC>"}
type Timestamp struct {
	time.Time
}

type taggedTime struct {
	DT  bool   `json:"__dt__"`
	ISO string `json:"iso"`
}

// NewTimestamp 包装时间并统一为 UTC
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC()}
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(taggedTime{DT: true, ISO: t.UTC().Format(time.RFC3339Nano)})
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var tagged taggedTime
	if err := json.Unmarshal(data, &tagged); err != nil {
		return fmt.Errorf("failed to decode timestamp: %w", err)
	}
	if !tagged.DT {
		return errors.New("timestamp: missing __dt__ tag")
	}
	parsed, err := time.Parse(time.RFC3339Nano, tagged.ISO)
	if err != nil {
		return fmt.Errorf("failed to parse timestamp %q: %w", tagged.ISO, err)
	}
	t.Time = parsed.UTC()
	return nil
}
