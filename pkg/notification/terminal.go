package notification

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

var (
	notifyBorder = lipgloss.Color("#7D56F4")
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FAFAFA"))
	bodyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#CCCCCC"))
	tagStyle     = lipgloss.NewStyle().Faint(true)
	boxStyle     = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(notifyBorder).
			Padding(0, 1).
			Width(48)
)

// PromptFunc answers a permission request
type PromptFunc func(ctx context.Context) (Permission, error)

// GrantPrompt approves every request
func GrantPrompt(context.Context) (Permission, error) {
	return PermissionGranted, nil
}

type promptAnswerKey struct{}

// WithPromptAnswer attaches the user's answer for ContextPrompt
func WithPromptAnswer(ctx context.Context, p Permission) context.Context {
	return context.WithValue(ctx, promptAnswerKey{}, p)
}

// ContextPrompt answers with the permission attached by WithPromptAnswer.
// Without one the request stays unanswered.
func ContextPrompt(ctx context.Context) (Permission, error) {
	p, ok := ctx.Value(promptAnswerKey{}).(Permission)
	if !ok || (p != PermissionGranted && p != PermissionDenied) {
		return PermissionDefault, nil
	}
	return p, nil
}

// TerminalCapability renders notifications as boxes on a writer, the
// desktop stand-in of a headless client
type TerminalCapability struct {
	out        io.Writer
	prompt     PromptFunc
	mu         sync.Mutex
	permission Permission
}

// NewTerminalCapability creates a capability writing to out. A nil prompt
// grants every request.
func NewTerminalCapability(out io.Writer, prompt PromptFunc) *TerminalCapability {
	if prompt == nil {
		prompt = GrantPrompt
	}
	return &TerminalCapability{out: out, prompt: prompt, permission: PermissionDefault}
}

func (t *TerminalCapability) Supported() bool {
	return t.out != nil
}

func (t *TerminalCapability) Permission() Permission {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.permission
}

func (t *TerminalCapability) RequestPermission(ctx context.Context) (Permission, error) {
	p, err := t.prompt(ctx)
	if err != nil {
		return PermissionDefault, err
	}
	t.mu.Lock()
	t.permission = p
	t.mu.Unlock()
	return p, nil
}

func (t *TerminalCapability) Show(opts Options) (Handle, error) {
	if t.Permission() != PermissionGranted {
		return nil, ErrPermissionNotGranted
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := io.WriteString(t.out, renderNotification(opts)+"\n"); err != nil {
		return nil, fmt.Errorf("render notification: %w", err)
	}
	return &terminalHandle{}, nil
}

func renderNotification(opts Options) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(opts.Title))
	b.WriteString("\n")
	b.WriteString(bodyStyle.Render(opts.Body))
	if opts.Tag != "" {
		b.WriteString("\n")
		b.WriteString(tagStyle.Render(opts.Tag))
	}
	return boxStyle.Render(b.String())
}

type terminalHandle struct {
	mu      sync.Mutex
	closed  bool
	onClick func()
}

func (h *terminalHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	return nil
}

func (h *terminalHandle) OnClick(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onClick = fn
}

// BellPlayer rings the terminal bell
type BellPlayer struct {
	out io.Writer
}

// NewBellPlayer creates a bell on out
func NewBellPlayer(out io.Writer) *BellPlayer {
	return &BellPlayer{out: out}
}

func (b *BellPlayer) Play() error {
	_, err := io.WriteString(b.out, "\a")
	return err
}
