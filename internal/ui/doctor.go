package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/garypippi/jacin/internal/ipc"
)

// LogEntry represents a single log entry with timestamp and content.
type LogEntry struct {
	Timestamp time.Time
	Level     string
	Message   string
}

// StatusMsg carries a freshly published Status from the doctor socket
// into the Bubble Tea event loop.
type StatusMsg struct {
	Status ipc.Status
}

// StreamClosedMsg is sent once the doctor socket connection ends,
// gracefully or otherwise.
type StreamClosedMsg struct {
	Err error
}

// DoctorModel is the `jacin doctor` full-screen status inspector (it
// runs on the terminal's alternate screen): it connects to the running
// instance's doctor socket and renders every
// Status push as it streams in, alongside a scrolling log of
// lifecycle/mode transitions derived from the diff between pushes.
type DoctorModel struct {
	BaseModel

	client      *ipc.Client
	stream      <-chan ipc.Status
	closeStream func() error

	connected bool
	last      ipc.Status
	have      bool
}

// NewDoctorModel creates a doctor UI model bound to the given client.
// Connection happens in SetProgram, once the running program exists to
// receive the stream's messages.
func NewDoctorModel(client *ipc.Client) *DoctorModel {
	return &DoctorModel{client: client}
}

// Init implements tea.Model.
func (m *DoctorModel) Init() tea.Cmd {
	if m.base != nil {
		return tea.Batch(m.base.TickSpinner(), tea.EnterAltScreen)
	}
	return tea.EnterAltScreen
}

// OnShutdown implements UIModel.
func (m *DoctorModel) OnShutdown() error {
	if m.closeStream != nil {
		return m.closeStream()
	}
	return nil
}

// SetProgram implements ProgramModel. It opens the doctor socket stream
// and forwards every push (and the eventual close) into the Bubble Tea
// loop via p.Send, the same callback-to-Send bridge the teacher's
// ClientModel.SetProgram uses for its input receiver's connection
// events.
func (m *DoctorModel) SetProgram(p *tea.Program) {
	stream, closeFn, err := m.client.Stream()
	if err != nil {
		p.Send(StreamClosedMsg{Err: err})
		return
	}
	m.stream = stream
	m.closeStream = closeFn
	m.connected = true

	go func() {
		for status := range stream {
			p.Send(StatusMsg{Status: status})
		}
		p.Send(StreamClosedMsg{})
	}()
}

// Update handles messages for the doctor model.
func (m *DoctorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	model, cmd := m.BaseModel.Update(msg)
	if cmd != nil {
		if _, ok := cmd().(tea.QuitMsg); ok {
			return model, cmd
		}
		cmds = append(cmds, cmd)
	}

	switch msg := msg.(type) {
	case StatusMsg:
		if m.have && m.last.Lifecycle != msg.Status.Lifecycle {
			m.base.AddLogEntry("info", fmt.Sprintf("lifecycle: %s -> %s", m.last.Lifecycle, msg.Status.Lifecycle))
		}
		if m.have && m.last.Mode != msg.Status.Mode {
			m.base.AddLogEntry("info", fmt.Sprintf("mode: %s -> %s", m.last.Mode, msg.Status.Mode))
		}
		if m.have && m.last.Pending != msg.Status.Pending {
			m.base.AddLogEntry("debug", fmt.Sprintf("pending: %s -> %s", m.last.Pending, msg.Status.Pending))
		}
		m.last = msg.Status
		m.have = true

	case StreamClosedMsg:
		m.connected = false
		if msg.Err != nil {
			m.base.AddLogEntry("error", fmt.Sprintf("doctor socket: %v", msg.Err))
		} else {
			m.base.AddLogEntry("warn", "doctor socket closed")
		}
	}

	return m, tea.Batch(cmds...)
}

// View implements tea.Model.
func (m *DoctorModel) View() string {
	var b strings.Builder

	b.WriteString(DoctorHeaderStyle)
	b.WriteString("\n\n")

	if !m.have {
		b.WriteString(m.base.GetSpinner() + " waiting for status...\n")
	} else {
		b.WriteString(FormatStatus(m.connected, m.last.Lifecycle) + "\n")
		b.WriteString(fmt.Sprintf("  mode:      %s\n", m.last.Mode))
		b.WriteString(fmt.Sprintf("  pending:   %s\n", valueOrNone(m.last.Pending)))
		b.WriteString(fmt.Sprintf("  reactivations: %d\n", m.last.ReactivationCount))
		b.WriteString(fmt.Sprintf("  serial:    %d\n", m.last.Serial))
		b.WriteString(fmt.Sprintf("  recording: %s\n", valueOrNone(m.last.Recording)))
		if m.last.CommandBuffer != "" {
			b.WriteString(fmt.Sprintf("  cmdline:   %s\n", m.last.CommandBuffer))
		}
		b.WriteString(fmt.Sprintf("  engine:    %s\n", engineState(m.last.EngineReady)))
	}

	b.WriteString("\n")
	b.WriteString(ControlsHeaderStyle.Render("log"))
	b.WriteString("\n")
	for _, entry := range m.base.GetLogs() {
		b.WriteString(m.base.FormatLogEntry(entry) + "\n")
	}

	b.WriteString("\n" + SubtleStyle.Render("ctrl+c to quit"))
	return lipgloss.NewStyle().Padding(1, 2).Render(b.String())
}

func valueOrNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

func engineState(ready bool) string {
	if ready {
		return SuccessStyle.Render("ready")
	}
	return WarningStyle.Render("not ready")
}
