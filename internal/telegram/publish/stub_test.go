package publish

import (
	"context"
	"sync"
	"time"

	"publisher_bot/internal/telegram/models"
	"publisher_bot/internal/telegram/repository"
	"publisher_bot/internal/telegram/service"

	"github.com/go-telegram/bot"
)

type sendFunc func(ctx context.Context) (int, error)

// scriptedMessenger 按聊天预设发送行为，未预设时直接成功
type scriptedMessenger struct {
	mu sync.Mutex

	nextID int
	script map[int64][]sendFunc
	calls  map[int64]int
	texts  []int64
	pinned []models.MessageKey
}

func newScriptedMessenger() *scriptedMessenger {
	return &scriptedMessenger{
		nextID: 100,
		script: map[int64][]sendFunc{},
		calls:  map[int64]int{},
	}
}

func (m *scriptedMessenger) on(chatID int64, fns ...sendFunc) {
	m.script[chatID] = append(m.script[chatID], fns...)
}

func (m *scriptedMessenger) SendContent(ctx context.Context, chatID int64, content models.Content, opts service.ContentOptions) (int, error) {
	m.mu.Lock()
	m.calls[chatID]++
	var fn sendFunc
	if q := m.script[chatID]; len(q) > 0 {
		fn, m.script[chatID] = q[0], q[1:]
	}
	m.mu.Unlock()

	if fn != nil {
		if id, err := fn(ctx); err != nil || id != 0 {
			return id, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	return m.nextID, nil
}

func (m *scriptedMessenger) SendText(ctx context.Context, chatID int64, text string, opts service.TextOptions) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.texts = append(m.texts, chatID)
	return m.nextID, nil
}

func (m *scriptedMessenger) EditKeyboard(ctx context.Context, chatID int64, messageID int, kb service.Keyboard) error {
	return nil
}

func (m *scriptedMessenger) Pin(ctx context.Context, chatID int64, messageID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pinned = append(m.pinned, models.MessageKey{ChatID: chatID, MessageID: messageID})
	return nil
}

func (m *scriptedMessenger) Delete(ctx context.Context, chatID int64, messageID int) error {
	return nil
}

func (m *scriptedMessenger) MemberRole(ctx context.Context, chatID, userID int64) (service.MemberRole, error) {
	return service.RoleAdministrator, nil
}

func hang(ctx context.Context) (int, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}

func rateLimited(seconds int) sendFunc {
	return func(ctx context.Context) (int, error) {
		return 0, &bot.TooManyRequestsError{Message: "Too Many Requests", RetryAfter: seconds}
	}
}

type stubAuth struct {
	denied map[int64]bool
}

func (a stubAuth) CanPublish(ctx context.Context, userID, chatID int64) (bool, error) {
	return !a.denied[chatID], nil
}

type harness struct {
	store     *repository.StateStore
	messenger *scriptedMessenger
	campaigns *service.CampaignRegistry
	publisher *Publisher
	slept     []time.Duration
}

const (
	chatD1 = int64(-1001)
	chatD2 = int64(-1002)
	chatD3 = int64(-1003)
	owner  = int64(1)
)

func newHarness(auth Authorizer) *harness {
	h := &harness{
		store:     repository.NewStateStore(nil),
		messenger: newScriptedMessenger(),
	}
	_ = h.store.Update(func(st *repository.State) error {
		st.KnownChats[chatD1] = &models.KnownChat{Title: "D1", Type: models.ChatTypeGroup}
		st.KnownChats[chatD2] = &models.KnownChat{Title: "D2", Type: models.ChatTypeGroup}
		st.KnownChats[chatD3] = &models.KnownChat{Title: "D3", Type: models.ChatTypeChannel}
		return nil
	})

	effects := service.NewSideEffects(h.messenger, nil)
	h.campaigns = service.NewCampaignRegistry(h.store)
	reactions := service.NewReactionService(h.store, h.messenger, effects, service.PlacementPrompt)
	h.publisher = NewPublisher(h.store, h.messenger, h.campaigns, reactions, effects, auth, Config{
		MaxConcurrency: 3,
		PerChatTimeout: 50 * time.Millisecond,
	})
	h.publisher.sleep = func(ctx context.Context, d time.Duration) error {
		h.slept = append(h.slept, d)
		return nil
	}
	return h
}

func readySession(chats ...int64) *models.Session {
	sess := models.NewSession(models.SessionDefaults{UseReactions: true, PinEnabled: true})
	sess.Text = "hello"
	sess.Stage = models.StageReadyOptions
	sess.ChosenChats = models.NewIDSet(chats...)
	return sess
}

func defaultPolicy() models.EffectivePolicy {
	return models.ResolvePolicy(owner, models.DefaultGlobalSettings(), nil, nil)
}
