package service

import (
	"context"
	"testing"

	"publisher_bot/internal/telegram/models"
	"publisher_bot/internal/telegram/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckAccess(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(st *repository.State)
		userID int64
		want   error
	}{
		{name: "open", setup: func(st *repository.State) {}, userID: 5},
		{
			name:   "owner always allowed",
			setup:  func(st *repository.State) { st.GlobalSettings.MaintenanceMode = true },
			userID: 1,
		},
		{
			name:   "maintenance blocks others",
			setup:  func(st *repository.State) { st.GlobalSettings.MaintenanceMode = true },
			userID: 7,
			want:   ErrMaintenance,
		},
		{
			name: "whitelist excludes unknown user",
			setup: func(st *repository.State) {
				st.Admin(1).PermissionsMode = models.PermissionsWhitelist
			},
			userID: 7,
			want:   ErrNotWhitelisted,
		},
		{
			name: "whitelisted user allowed",
			setup: func(st *repository.State) {
				a := st.Admin(1)
				a.PermissionsMode = models.PermissionsWhitelist
				a.Whitelist.Add(7)
			},
			userID: 7,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := repository.NewStateStore(nil)
			require.NoError(t, store.Update(func(st *repository.State) error {
				tt.setup(st)
				return nil
			}))
			svc := NewAdminService(store, []int64{1})

			err := svc.CheckAccess(tt.userID)
			if tt.want == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestToggleGlobalFlags(t *testing.T) {
	store := repository.NewStateStore(nil)
	svc := NewAdminService(store, []int64{1})
	ctx := context.Background()

	on, err := svc.Toggle(ctx, FlagMaintenance)
	require.NoError(t, err)
	assert.True(t, on)
	assert.True(t, svc.Settings().MaintenanceMode)
	assert.True(t, svc.Policy(5).Maintenance)

	off, err := svc.Toggle(ctx, FlagMaintenance)
	require.NoError(t, err)
	assert.False(t, off)

	_, err = svc.Toggle(ctx, GlobalFlag("bogus"))
	assert.Error(t, err)
}

func TestTogglePolicyOverrides(t *testing.T) {
	store := repository.NewStateStore(nil)
	admin := NewAdminService(store, []int64{1})
	ctx := context.Background()

	on, err := admin.Toggle(ctx, FlagPin)
	require.NoError(t, err)
	assert.False(t, on)

	disabled, err := admin.ToggleDisabledChat(ctx, 1, -10)
	require.NoError(t, err)
	assert.True(t, disabled)

	blocked, err := admin.ToggleBlockedAdmin(ctx, -20, 1)
	require.NoError(t, err)
	assert.True(t, blocked)

	p := admin.Policy(1)
	assert.False(t, p.PinEnabled)
	assert.True(t, p.DisabledChats.Has(-10))
	assert.True(t, p.BlockedChats.Has(-20))

	_, err = admin.Toggle(ctx, GlobalFlag("nope"))
	assert.Error(t, err)
}

func TestChatAdminsAndBlocking(t *testing.T) {
	store := repository.NewStateStore(nil)
	svc := NewAdminService(store, []int64{1})
	ctx := context.Background()

	require.NoError(t, store.Update(func(st *repository.State) error {
		st.KnownChatAdmins[-100] = map[int64]string{9: "administrator", 3: "creator"}
		return nil
	}))

	blocked, err := svc.ToggleBlockedAdmin(ctx, -100, 9)
	require.NoError(t, err)
	assert.True(t, blocked)

	admins := svc.ChatAdmins(-100)
	require.Len(t, admins, 2)
	assert.Equal(t, int64(3), admins[0].UserID)
	assert.False(t, admins[0].Blocked)
	assert.Equal(t, int64(9), admins[1].UserID)
	assert.True(t, admins[1].Blocked)

	assert.True(t, svc.Policy(9).BlockedChats.Has(-100))
	assert.Equal(t, []int64{3, 9}, svc.KnownAdmins())
	assert.True(t, svc.IsKnownAdmin(3))
	assert.False(t, svc.IsKnownAdmin(4))
}

func TestTogglePreference(t *testing.T) {
	store := repository.NewStateStore(nil)
	svc := NewAdminService(store, []int64{1})
	ctx := context.Background()

	hide, err := svc.TogglePreference(ctx, 2, PrefHideLinks)
	require.NoError(t, err)
	assert.True(t, hide)
	assert.True(t, svc.Policy(2).HideLinks)

	reactions, err := svc.TogglePreference(ctx, 2, PrefDefaultReactions)
	require.NoError(t, err)
	assert.False(t, reactions)
	assert.False(t, svc.AdminSettings(2).DefaultReactionsEnabled)
}

func TestRegisterChat(t *testing.T) {
	store := repository.NewStateStore(nil)
	svc := NewAdminService(store, nil)
	ctx := context.Background()

	created, err := svc.RegisterChat(ctx, -5, "Beta", models.ChatTypeGroup)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = svc.RegisterChat(ctx, -5, "Beta renamed", models.ChatTypeGroup)
	require.NoError(t, err)
	assert.False(t, created)

	_, err = svc.RegisterChat(ctx, -4, "Alpha", models.ChatTypeChannel)
	require.NoError(t, err)

	chats := svc.KnownChats()
	require.Len(t, chats, 2)
	assert.Equal(t, "Alpha", chats[0].Title)
	assert.Equal(t, "Beta renamed", chats[1].Title)

	require.NoError(t, svc.ForgetChat(ctx, -4))
	assert.Len(t, svc.KnownChats(), 1)
}
