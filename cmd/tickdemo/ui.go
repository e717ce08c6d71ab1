package main

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tickloop/tickloop"
)

// keySource adapts Bubble Tea key presses into a host event source for a
// tickloop.Stream. Dispatch happens synchronously from Update, i.e. on
// the loop thread, as the Stream contract requires.
type keySource struct {
	dispatch func(string)
}

func (ks *keySource) subscribe(d func(string)) (unsubscribe func()) {
	ks.dispatch = d
	return func() { ks.dispatch = nil }
}

func (ks *keySource) emit(k string) {
	if ks.dispatch != nil {
		ks.dispatch(k)
	}
}

func classifyKey(k string) tickloop.Class {
	switch k {
	case "q", "esc", "ctrl+c":
		return tickloop.Terminate
	}
	return tickloop.Continue
}

type frameMsg time.Time

type model struct {
	sched *tickloop.Scheduler
	keys  *keySource
	fps   int

	spinner spinner.Model
	prog    progress.Model

	percent  float64
	lastKey  string
	keySeen  int
	digests  []string
	inFlight int
	echo     *tickloop.Handle
	width    int
	done     bool
}

func newModel(fps, workers int, logger *slog.Logger) *model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 60

	m := &model{
		sched:   new(tickloop.Scheduler),
		keys:    new(keySource),
		fps:     fps,
		spinner: sp,
		prog:    prog,
		width:   80,
	}
	m.sched.SetLogger(logger)

	m.spawnPulse()
	m.spawnDigests(workers)
	m.spawnEcho()

	return m
}

// spawnPulse animates the progress bar: a Ticker lap advances the
// percentage, wrapping every three seconds.
func (m *model) spawnPulse() {
	tk := m.sched.NewTicker(50 * time.Millisecond)
	var step tickloop.Operation
	step = func(t *tickloop.Task) tickloop.Result {
		m.percent += tk.Elapsed().Seconds() / 3
		for m.percent > 1 {
			m.percent -= 1
		}
		return t.Switch(tk.Wait().Then(step))
	}
	m.sched.Spawn(func(t *tickloop.Task) tickloop.Result {
		t.Finally(tk.Stop)
		return t.Switch(tk.Wait().Then(step))
	})
}

// spawnDigests runs a batch of worker-thread checksums, at most two in
// flight at a time.
func (m *model) spawnDigests(workers int) {
	sema := tickloop.NewSemaphore(2)
	for i := 0; i < workers; i++ {
		m.sched.Spawn(m.digestOp(sema, i))
	}
}

func (m *model) digestOp(sema *tickloop.Semaphore, seed int) tickloop.Operation {
	return tickloop.Chain(
		sema.Acquire(1),
		func(t *tickloop.Task) tickloop.Result {
			m.inFlight++
			call := tickloop.InThread(m.sched, func() (string, error) {
				return slowDigest(seed)
			})
			return t.Switch(call.Await().Then(tickloop.Do(func() {
				m.inFlight--
				sema.Release(1)
				sum, err := call.Result()
				if err != nil {
					m.digests = append(m.digests, fmt.Sprintf("worker %d: %v", seed, err))
					return
				}
				m.digests = append(m.digests, fmt.Sprintf("worker %d: %s", seed, sum))
			})))
		},
	)
}

// slowDigest is deliberately blocking; that is why it runs off the loop
// thread.
func slowDigest(seed int) (string, error) {
	h := sha256.New()
	buf := make([]byte, 1<<16)
	for i := range buf {
		buf[i] = byte(i*31 + seed*17)
	}
	for range 256 {
		h.Write(buf)
	}
	time.Sleep(300 * time.Millisecond)
	return hex.EncodeToString(h.Sum(nil))[:16], nil
}

// spawnEcho consumes key presses as an event stream. The body sleeps, so
// rapid key presses demonstrate the latest-wins buffer; q or esc is the
// terminate class and ends the loop (and the demo) at once.
func (m *model) spawnEcho() {
	stream := tickloop.NewStream(m.keys.subscribe, classifyKey)
	m.echo = m.sched.Spawn(tickloop.Each(stream, func(k string) tickloop.Operation {
		return tickloop.Chain(
			tickloop.Do(func() {
				m.lastKey = k
				m.keySeen++
			}),
			m.sched.Sleep(250*time.Millisecond),
		)
	}))
}

func (m *model) frameCmd() tea.Cmd {
	return tea.Tick(time.Second/time.Duration(m.fps), func(t time.Time) tea.Msg {
		return frameMsg(t)
	})
}

func (m *model) Init() tea.Cmd {
	return tea.Batch(m.frameCmd(), m.spinner.Tick)
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case frameMsg:
		m.sched.Tick()
		if m.echo.Finished() {
			m.done = true
			return m, tea.Quit
		}
		return m, m.frameCmd()
	case tea.KeyMsg:
		m.keys.emit(msg.String())
		return m, nil
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
			m.prog.Width = min(msg.Width-4, 60)
		}
		return m, nil
	}
	return m, nil
}

func (m *model) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

	var b strings.Builder
	b.WriteString(titleStyle.Render("tickloop demo"))
	b.WriteString("\n\n")
	b.WriteString("  " + m.prog.ViewAs(m.percent))
	b.WriteString("\n\n")

	if m.inFlight > 0 {
		fmt.Fprintf(&b, "  %s %d digest(s) in flight\n", m.spinner.View(), m.inFlight)
	}
	for _, d := range m.digests {
		b.WriteString("  " + d + "\n")
	}

	b.WriteString("\n")
	if m.lastKey != "" {
		fmt.Fprintf(&b, "  last key: %q (%d seen)\n", m.lastKey, m.keySeen)
	} else {
		b.WriteString("  press keys to feed the stream\n")
	}
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("  q/esc to quit"))
	b.WriteString("\n")
	return b.String()
}
