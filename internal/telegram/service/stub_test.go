package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"publisher_bot/internal/telegram/models"
	"publisher_bot/internal/telegram/repository"
)

type sentText struct {
	ChatID int64
	Text   string
	Opts   TextOptions
	ID     int
}

type editCall struct {
	Key      models.MessageKey
	Keyboard Keyboard
}

type stubMessenger struct {
	mu sync.Mutex

	nextID   int
	texts    []sentText
	edits    []editCall
	deleted  []models.MessageKey
	pinned   []models.MessageKey
	editErrs map[models.MessageKey]error
	roles    map[string]MemberRole
	roleErr  error

	roleCalls int
}

func newStubMessenger() *stubMessenger {
	return &stubMessenger{
		nextID:   1000,
		editErrs: map[models.MessageKey]error{},
		roles:    map[string]MemberRole{},
	}
}

func (m *stubMessenger) setRole(chatID, userID int64, role MemberRole) {
	m.roles[roleCacheKey(chatID, userID)] = role
}

func (m *stubMessenger) SendContent(ctx context.Context, chatID int64, content models.Content, opts ContentOptions) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	return m.nextID, nil
}

func (m *stubMessenger) SendText(ctx context.Context, chatID int64, text string, opts TextOptions) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.texts = append(m.texts, sentText{ChatID: chatID, Text: text, Opts: opts, ID: m.nextID})
	return m.nextID, nil
}

func (m *stubMessenger) EditKeyboard(ctx context.Context, chatID int64, messageID int, kb Keyboard) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := models.MessageKey{ChatID: chatID, MessageID: messageID}
	if err, ok := m.editErrs[key]; ok {
		return err
	}
	m.edits = append(m.edits, editCall{Key: key, Keyboard: kb})
	return nil
}

func (m *stubMessenger) Pin(ctx context.Context, chatID int64, messageID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pinned = append(m.pinned, models.MessageKey{ChatID: chatID, MessageID: messageID})
	return nil
}

func (m *stubMessenger) Delete(ctx context.Context, chatID int64, messageID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, models.MessageKey{ChatID: chatID, MessageID: messageID})
	return nil
}

func (m *stubMessenger) MemberRole(ctx context.Context, chatID, userID int64) (MemberRole, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roleCalls++
	if m.roleErr != nil {
		return RoleOther, m.roleErr
	}
	if role, ok := m.roles[roleCacheKey(chatID, userID)]; ok {
		return role, nil
	}
	return RoleMember, nil
}

type deferredCall struct {
	Delay time.Duration
	Name  string
	Task  func(ctx context.Context)
}

type stubDeferrer struct {
	mu    sync.Mutex
	calls []deferredCall
}

func (d *stubDeferrer) After(delay time.Duration, name string, task func(ctx context.Context)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, deferredCall{Delay: delay, Name: name, Task: task})
	return nil
}

var errMessageGone = errors.New("bad request, Bad Request: message to edit not found")

type fixture struct {
	store      *repository.StateStore
	messenger  *stubMessenger
	deferrer   *stubDeferrer
	effects    *SideEffects
	membership *Membership
	grants     *GrantService
	sessions   *SessionService
	campaigns  *CampaignRegistry
	reactions  *ReactionService
	now        time.Time
}

func newFixture() *fixture {
	f := &fixture{
		store:     repository.NewStateStore(nil),
		messenger: newStubMessenger(),
		deferrer:  &stubDeferrer{},
		now:       time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }

	f.effects = NewSideEffects(f.messenger, f.deferrer)
	f.membership = NewMembership(f.messenger, f.store, time.Minute)
	f.grants = NewGrantService(f.store, f.membership, f.effects)
	f.grants.now = clock
	f.sessions = NewSessionService(f.store)
	f.sessions.now = clock
	f.campaigns = NewCampaignRegistry(f.store)
	f.reactions = NewReactionService(f.store, f.messenger, f.effects, PlacementPrompt)
	return f
}

// publishCampaign 模拟一次发布：登记活动并记录每个聊天的投递
func (f *fixture) publishCampaign(chats map[int64]int) int64 {
	id := f.campaigns.Ensure(0, models.StyleThumbs)
	for chatID, msgID := range chats {
		f.campaigns.RecordDelivery(id, chatID, msgID)
	}
	return id
}

func (f *fixture) campaignTally(id int64) models.Tally {
	var t models.Tally
	f.store.View(func(st *repository.State) {
		t = st.CampaignCounters[id].Tally()
	})
	return t
}

func (f *fixture) promptKeys(id int64) []models.MessageKey {
	var out []models.MessageKey
	f.store.View(func(st *repository.State) {
		out = append(out, st.CampaignPromptMsgs[id]...)
	})
	return out
}
