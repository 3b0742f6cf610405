package ui

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
)

// ProgramConfig holds configuration for running a UI program.
type ProgramConfig struct {
	ShutdownConfig ShutdownConfig
	Debug          bool
	LogFile        string
}

// DefaultProgramConfig returns default configuration.
func DefaultProgramConfig() ProgramConfig {
	return ProgramConfig{
		ShutdownConfig: DefaultShutdownConfig(),
		Debug:          false,
		LogFile:        "",
	}
}

// UIModel is the interface every jacin Bubble Tea model satisfies.
type UIModel interface {
	tea.Model
	SetBase(base *BaseUI)
	OnShutdown() error
}

// ProgramModel is satisfied by models that need the running
// *tea.Program to forward asynchronous events (e.g. doctor socket
// pushes) back into the event loop via p.Send.
type ProgramModel interface {
	UIModel
	SetProgram(p *tea.Program)
}

// ProgramRunner manages the lifecycle of a Bubble Tea program with
// graceful shutdown on context cancellation.
type ProgramRunner struct {
	config  ProgramConfig
	base    *BaseUI
	program *tea.Program
	logger  *log.Logger
	done    chan struct{}
}

// NewProgramRunner creates a new program runner.
func NewProgramRunner(config ProgramConfig) *ProgramRunner {
	logger := log.New(os.Stderr)
	if config.Debug {
		logger.SetLevel(log.DebugLevel)
	} else {
		logger.SetLevel(log.InfoLevel)
	}

	return &ProgramRunner{
		config: config,
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Run starts the UI program with the given model and blocks until it
// exits, either on its own or via context cancellation.
func (r *ProgramRunner) Run(ctx context.Context, model UIModel) error {
	defer close(r.done)

	r.base = NewBaseUI(ctx, r.config.ShutdownConfig)
	r.base.SetOnShutdown(func() error {
		r.logger.Debug("doctor UI shutting down")
		if err := model.OnShutdown(); err != nil {
			r.logger.Error("model shutdown error", "error", err)
			return err
		}
		return nil
	})

	model.SetBase(r.base)

	opts := []tea.ProgramOption{tea.WithAltScreen()}
	if r.config.LogFile != "" {
		f, err := os.OpenFile(r.config.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer f.Close()
		opts = append(opts, tea.WithOutput(f))
	}

	r.program = tea.NewProgram(model, opts...)
	if pm, ok := model.(ProgramModel); ok {
		pm.SetProgram(r.program)
	}

	errCh := make(chan error, 1)
	go func() {
		_, err := r.program.Run()
		errCh <- err
	}()

	var runErr error
	select {
	case err := <-errCh:
		runErr = err
	case <-ctx.Done():
		r.program.Quit()
		select {
		case err := <-errCh:
			runErr = err
		case <-time.After(2 * time.Second):
			r.program.Kill()
			<-errCh
		}
	}

	if r.base.onShutdown != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), r.config.ShutdownConfig.GracePeriod)
		defer cancel()

		done := make(chan error, 1)
		go func() { done <- r.base.onShutdown() }()

		select {
		case err := <-done:
			if err != nil {
				r.logger.Error("shutdown callback error", "error", err)
			}
		case <-shutdownCtx.Done():
			r.logger.Warn("shutdown callback timed out")
		}
	}

	return runErr
}

// Send forwards a message to the running program.
func (r *ProgramRunner) Send(msg tea.Msg) {
	if r.program != nil {
		r.program.Send(msg)
	}
}

// Quit requests the program stop.
func (r *ProgramRunner) Quit() {
	if r.program != nil {
		r.program.Quit()
	}
}

// Done returns a channel closed once the program has exited.
func (r *ProgramRunner) Done() <-chan struct{} {
	return r.done
}

// BaseModel gives a UIModel its BaseUI-backed Init/Update/View
// defaults; embed it and override what differs.
type BaseModel struct {
	base *BaseUI
}

func (m *BaseModel) SetBase(base *BaseUI) { m.base = base }
func (m *BaseModel) OnShutdown() error     { return nil }
func (m *BaseModel) Init() tea.Cmd         { return nil }

func (m *BaseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.base != nil {
		if cmd := m.base.BaseUpdate(msg); cmd != nil {
			return m, cmd
		}
	}
	return m, nil
}

func (m *BaseModel) View() string {
	return "base view - override in implementation"
}
