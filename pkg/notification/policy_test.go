package notification

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type policyFixture struct {
	supported  bool
	permission Permission
	settings   Settings
	visibility *VisibilityState
	now        time.Time
}

func newFixture() *policyFixture {
	return &policyFixture{
		supported:  true,
		permission: PermissionGranted,
		settings:   DefaultSettings(),
		visibility: NewVisibilityState(true),
		now:        at("12:00"),
	}
}

func (f *policyFixture) policy() *Policy {
	p := NewPolicy(f.supported,
		func() Permission { return f.permission },
		func() Settings { return f.settings },
		f.visibility, "/icons/chat.png")
	p.now = func() time.Time { return f.now }
	return p
}

func TestPolicy_CanShow(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(f *policyFixture)
		force   bool
		wantErr error
	}{
		{name: "all conditions met", mutate: func(f *policyFixture) {}},
		{name: "unsupported", mutate: func(f *policyFixture) { f.supported = false }, wantErr: ErrUnsupported},
		{name: "permission default", mutate: func(f *policyFixture) { f.permission = PermissionDefault }, wantErr: ErrPermissionNotGranted},
		{name: "permission denied", mutate: func(f *policyFixture) { f.permission = PermissionDenied }, wantErr: ErrPermissionNotGranted},
		{name: "disabled", mutate: func(f *policyFixture) { f.settings.Enabled = false }, wantErr: ErrDisabled},
		{name: "desktop off", mutate: func(f *policyFixture) { f.settings.Desktop = false }, wantErr: ErrDesktopDisabled},
		{name: "quiet hours", mutate: func(f *policyFixture) {
			f.settings.QuietHours.Enabled = true
			f.now = at("23:00")
		}, wantErr: ErrQuietHours},
		{name: "quiet hours configured but off", mutate: func(f *policyFixture) { f.now = at("23:00") }},
		{name: "window visible", mutate: func(f *policyFixture) { f.visibility.SetHidden(false) }, wantErr: ErrWindowVisible},
		{name: "window visible forced", mutate: func(f *policyFixture) { f.visibility.SetHidden(false) }, force: true},
		{name: "forced still respects quiet hours", mutate: func(f *policyFixture) {
			f.settings.QuietHours.Enabled = true
			f.now = at("07:59")
		}, force: true, wantErr: ErrQuietHours},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			tt.mutate(f)
			p := f.policy()

			err := p.Check(tt.force)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.False(t, p.CanShow(tt.force))
			} else {
				assert.NoError(t, err)
				assert.True(t, p.CanShow(tt.force))
			}
		})
	}
}

func TestPolicy_VisibleNeverShowsUnforced(t *testing.T) {
	f := newFixture()
	f.visibility.SetHidden(false)
	assert.False(t, f.policy().CanShow(false))

	f.visibility.SetHidden(true)
	assert.True(t, f.policy().CanShow(false))
}

func TestPolicy_Build(t *testing.T) {
	f := newFixture()
	msg := Message{ID: "m1", ConversationID: "c9", SenderID: "u2", SenderName: "bob", Content: "lunch?"}

	opts := f.policy().Build(msg)
	assert.Equal(t, "New message from bob", opts.Title)
	assert.Equal(t, "lunch?", opts.Body)
	assert.Equal(t, "conversation-c9", opts.Tag)
	assert.Equal(t, "/icons/chat.png", opts.Icon)
	assert.False(t, opts.Silent)
	assert.Equal(t, msg, opts.Data)

	f.settings.ShowPreview = false
	f.settings.Sound = false
	opts = f.policy().Build(msg)
	assert.Equal(t, PreviewPlaceholder, opts.Body)
	assert.True(t, opts.Silent)

	opts = f.policy().Build(Message{ConversationID: "c9"})
	assert.Equal(t, "New message", opts.Title)
}

func TestConversationTag(t *testing.T) {
	assert.Equal(t, ConversationTag("c1"), ConversationTag("c1"))
	assert.NotEqual(t, ConversationTag("c1"), ConversationTag("c2"))
}
