// Package tui provides the BubbleTea-based terminal user interface.
package tui

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/jmylchreest/moodify/internal/mood"
	"github.com/jmylchreest/moodify/internal/playback"
	"github.com/jmylchreest/moodify/internal/session"
)

// Mode represents the current UI mode.
type Mode int

const (
	ModeMain Mode = iota
	ModeHelp
)

// Session is the part of the session controller the TUI drives.
type Session interface {
	Start(ctx context.Context) error
	Stop()
	StartDetection(ctx context.Context)
	StopDetection()
	PlayMood(m mood.Mood) playback.NowPlaying
	Snapshot() session.State
}

// Audio is the playback control surface.
type Audio interface {
	TogglePause() bool
	SetVolume(volume float64)
	GetVolume() float64
}

// Model is the main TUI model.
type Model struct {
	ctx     context.Context
	session Session
	audio   Audio

	mode Mode
	help help.Model
	keys KeyMap

	state    session.State
	faces    []mood.Face
	frameW   int
	frameH   int
	selected mood.Mood
	paused   bool

	flash    string
	flashErr bool

	width int
	now   func() time.Time
}

// New creates a new TUI model. audio may be nil when playback is disabled.
func New(ctx context.Context, s Session, audio Audio) Model {
	return Model{
		ctx:      ctx,
		session:  s,
		audio:    audio,
		mode:     ModeMain,
		help:     help.New(),
		keys:     DefaultKeyMap(),
		state:    session.State{NowPlaying: playback.Idle()},
		selected: mood.Happy,
		now:      time.Now,
	}
}

// Init initializes the TUI.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.refresh, tick())
}

func (m Model) refresh() tea.Msg {
	return stateMsg{state: m.session.Snapshot()}
}

type tickMsg time.Time

// tick re-renders relative times once a second.
func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

type flashMsg struct {
	text  string
	isErr bool
}

type clearFlashMsg struct{}

type startResultMsg struct {
	err error
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case stateMsg:
		if msg.state.LastMood != "" && msg.state.LastMood != m.state.LastMood {
			m.selected = msg.state.LastMood
		}
		m.state = msg.state
		return m, nil

	case nowPlayingMsg:
		m.state.NowPlaying = msg.n
		m.paused = false
		if msg.n.PlayErr != nil {
			return m, flash("playback failed: "+msg.n.PlayErr.Error(), true)
		}
		return m, nil

	case overlayMsg:
		if msg.cleared {
			m.faces = nil
			return m, nil
		}
		m.faces = msg.faces
		m.frameW, m.frameH = msg.width, msg.height
		return m, nil

	case startResultMsg:
		if msg.err != nil {
			return m, tea.Batch(m.refresh, flash("start failed: "+msg.err.Error(), true))
		}
		return m, m.refresh

	case tickMsg:
		return m, tick()

	case flashMsg:
		m.flash = msg.text
		m.flashErr = msg.isErr
		return m, tea.Tick(3*time.Second, func(time.Time) tea.Msg {
			return clearFlashMsg{}
		})

	case clearFlashMsg:
		m.flash = ""
		m.flashErr = false
		return m, nil
	}

	return m, nil
}

func flash(text string, isErr bool) tea.Cmd {
	return func() tea.Msg {
		return flashMsg{text: text, isErr: isErr}
	}
}

// handleKey handles key presses.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		if m.mode == ModeHelp {
			m.mode = ModeMain
		} else {
			m.mode = ModeHelp
		}
		return m, nil
	}

	if m.mode == ModeHelp {
		if key.Matches(msg, m.keys.Back) {
			m.mode = ModeMain
		}
		return m, nil
	}

	// Session calls run as commands: they may block on the camera or the
	// detector, and they post events back into the program.
	switch {
	case key.Matches(msg, m.keys.Start):
		s, ctx := m.session, m.ctx
		return m, func() tea.Msg {
			return startResultMsg{err: s.Start(ctx)}
		}

	case key.Matches(msg, m.keys.Stop):
		s := m.session
		return m, func() tea.Msg {
			s.Stop()
			return stateMsg{state: s.Snapshot()}
		}

	case key.Matches(msg, m.keys.Detect):
		s, ctx, detecting := m.session, m.ctx, m.state.Detecting
		return m, func() tea.Msg {
			if detecting {
				s.StopDetection()
			} else {
				s.StartDetection(ctx)
			}
			return stateMsg{state: s.Snapshot()}
		}

	case key.Matches(msg, m.keys.Prev):
		m.selected = m.selected.Prev()
		return m, nil

	case key.Matches(msg, m.keys.Next):
		m.selected = m.selected.Next()
		return m, nil

	case key.Matches(msg, m.keys.Play):
		return m, m.play(m.selected)

	case key.Matches(msg, m.keys.NewQuote):
		if m.state.LastMood == "" {
			return m, flash("nothing played yet", false)
		}
		return m, m.play(m.state.LastMood)

	case key.Matches(msg, m.keys.Pause):
		if m.audio == nil {
			return m, flash("audio disabled", false)
		}
		m.paused = m.audio.TogglePause()
		if m.paused {
			return m, flash("paused", false)
		}
		return m, flash("playing", false)

	case key.Matches(msg, m.keys.VolUp):
		return m, m.adjustVolume(0.1)

	case key.Matches(msg, m.keys.VolDown):
		return m, m.adjustVolume(-0.1)
	}

	return m, nil
}

func (m Model) play(md mood.Mood) tea.Cmd {
	s := m.session
	return func() tea.Msg {
		return nowPlayingMsg{n: s.PlayMood(md)}
	}
}

func (m Model) adjustVolume(delta float64) tea.Cmd {
	if m.audio == nil {
		return flash("audio disabled", false)
	}
	m.audio.SetVolume(m.audio.GetVolume() + delta)
	return flash(fmt.Sprintf("volume %d%%", volumePercent(m.audio.GetVolume())), false)
}

func volumePercent(v float64) int {
	return int(v*100 + 0.5)
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	onStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	offStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	quoteStyle  = lipgloss.NewStyle().Italic(true)
	chipStyle   = lipgloss.NewStyle().Padding(0, 1)
	activeChip  = chipStyle.Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("12"))
	currentChip = chipStyle.Foreground(lipgloss.Color("10"))
)

// View renders the TUI.
func (m Model) View() string {
	if m.mode == ModeHelp {
		return m.viewHelp()
	}
	return m.viewMain()
}

func (m Model) viewMain() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("moodify"))
	if m.state.Status != "" {
		b.WriteString("  " + labelStyle.Render("status:") + " " + m.state.Status)
	}
	b.WriteString("\n")

	b.WriteString(indicator("camera", m.state.CameraActive, "on", "off"))
	b.WriteString("  ")
	b.WriteString(indicator("detection", m.state.Detecting, "running", "idle"))
	if m.audio != nil {
		vol := fmt.Sprintf("  volume %d%%", volumePercent(m.audio.GetVolume()))
		if m.paused {
			vol += " (paused)"
		}
		b.WriteString(labelStyle.Render(vol))
	}
	b.WriteString("\n\n")

	np := m.state.NowPlaying
	b.WriteString(titleStyle.Render(np.Indicator()))
	if !m.state.MoodSince.IsZero() {
		b.WriteString(labelStyle.Render("  since " + humanize.RelTime(m.state.MoodSince, m.now(), "ago", "from now")))
	}
	b.WriteString("\n")
	b.WriteString("  ♪ " + np.Title() + "\n")
	b.WriteString("    " + labelStyle.Render(np.Label()) + "\n")
	b.WriteString("    " + quoteStyle.Render(np.Quote) + "\n\n")

	b.WriteString(labelStyle.Render("faces") + "\n")
	b.WriteString(m.viewFaces())
	b.WriteString("\n")

	b.WriteString(m.viewChips() + "\n")

	if m.flash != "" {
		style := labelStyle
		if m.flashErr {
			style = errStyle
		}
		b.WriteString(style.Render(m.flash) + "\n")
	} else {
		b.WriteString(m.help.ShortHelpView(m.keys.ShortHelp()) + "\n")
	}

	return b.String()
}

func indicator(name string, on bool, onText, offText string) string {
	if on {
		return labelStyle.Render(name+" ") + onStyle.Render("● "+onText)
	}
	return labelStyle.Render(name+" ") + offStyle.Render("○ "+offText)
}

// viewFaces lists each detected face with its box and strongest expressions.
func (m Model) viewFaces() string {
	if len(m.faces) == 0 {
		return labelStyle.Render("  none") + "\n"
	}

	var b strings.Builder
	for i, f := range m.faces {
		fmt.Fprintf(&b, "  #%d  %.0f×%.0f at (%.0f,%.0f)", i+1, f.Box.Width, f.Box.Height, f.Box.X, f.Box.Y)
		for _, e := range topExpressions(f.Expressions, 3) {
			fmt.Fprintf(&b, "  %s %.2f", e.Mood, e.Confidence)
		}
		b.WriteString("\n")
	}
	if m.frameW > 0 && m.frameH > 0 {
		b.WriteString(labelStyle.Render(fmt.Sprintf("  frame %d×%d", m.frameW, m.frameH)) + "\n")
	}
	return b.String()
}

// topExpressions returns up to n known expressions ordered by confidence,
// ties kept in enumeration order.
func topExpressions(s mood.Scores, n int) []mood.Observation {
	var out []mood.Observation
	for _, md := range mood.All {
		if v, ok := s[md]; ok {
			out = append(out, mood.Observation{Mood: md, Confidence: v})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Confidence > out[j].Confidence
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// viewChips renders the manual mood selector.
func (m Model) viewChips() string {
	chips := make([]string, 0, len(mood.All))
	for _, md := range mood.All {
		switch {
		case md == m.selected:
			chips = append(chips, activeChip.Render(string(md)))
		case md == m.state.LastMood:
			chips = append(chips, currentChip.Render(string(md)))
		default:
			chips = append(chips, chipStyle.Render(string(md)))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, chips...)
}

func (m Model) viewHelp() string {
	h := m.help
	h.ShowAll = true

	s := titleStyle.Render("Keyboard Shortcuts") + "\n\n"
	s += h.View(m.keys) + "\n\n"
	s += labelStyle.Render("Press ? or esc to return")
	return s
}

// RunOptions configures the TUI.
type RunOptions struct {
	Context   context.Context
	Session   Session
	Audio     Audio
	Bridge    *Bridge
	AutoStart bool
}

// Run starts the TUI and blocks until the user quits. The session is
// stopped on exit.
func Run(opts RunOptions) error {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}

	m := New(ctx, opts.Session, opts.Audio)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	if opts.Bridge != nil {
		opts.Bridge.Attach(p.Send)
	}

	if opts.AutoStart {
		go func() {
			p.Send(startResultMsg{err: opts.Session.Start(ctx)})
		}()
	}

	_, err := p.Run()

	if opts.Bridge != nil {
		opts.Bridge.Detach()
	}
	opts.Session.Stop()

	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}
