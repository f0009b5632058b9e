package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jmylchreest/moodify/internal/capture"
	"github.com/jmylchreest/moodify/internal/mood"
	"github.com/jmylchreest/moodify/internal/playback"
	"github.com/jmylchreest/moodify/internal/session"
)

// Bridge forwards session events into the running program. It serves as
// the detection overlay, a playback display and the state change sink.
// Events posted before Attach or after Detach are dropped.
type Bridge struct {
	mu   sync.Mutex
	send func(tea.Msg)
}

// NewBridge creates a detached bridge.
func NewBridge() *Bridge {
	return &Bridge{}
}

// Attach routes events to send, normally (*tea.Program).Send.
func (b *Bridge) Attach(send func(tea.Msg)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.send = send
}

// Detach stops forwarding events.
func (b *Bridge) Detach() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.send = nil
}

func (b *Bridge) post(msg tea.Msg) {
	b.mu.Lock()
	send := b.send
	b.mu.Unlock()
	if send != nil {
		send(msg)
	}
}

// Draw shows the detected faces.
func (b *Bridge) Draw(frame capture.Frame, faces []mood.Face) {
	b.post(overlayMsg{
		width:  frame.Width,
		height: frame.Height,
		faces:  append([]mood.Face(nil), faces...),
	})
}

// Clear removes the face overlay.
func (b *Bridge) Clear() {
	b.post(overlayMsg{cleared: true})
}

// ShowNowPlaying updates the now playing panel.
func (b *Bridge) ShowNowPlaying(n playback.NowPlaying) {
	b.post(nowPlayingMsg{n: n})
}

// OnChange delivers a session snapshot.
func (b *Bridge) OnChange(s session.State) {
	b.post(stateMsg{state: s})
}

type overlayMsg struct {
	width, height int
	faces         []mood.Face
	cleared       bool
}

type nowPlayingMsg struct {
	n playback.NowPlaying
}

type stateMsg struct {
	state session.State
}
