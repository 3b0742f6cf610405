// Package wayland owns the display connection (C9): registry bind/
// unbind, seat tracking, and the global add/remove bookkeeping the
// coordination layer needs before it can request an input method.
package wayland

import (
	"context"
	"fmt"
	"sync"

	"github.com/bnema/wlturbo/wl"

	"github.com/garypippi/jacin/internal/logger"
	"github.com/garypippi/jacin/internal/wlproto"
)

// GlobalInfo records one `wl_registry.global` announcement this client
// cares about, mirroring the teacher's OutputInfo/SeatInfo shape.
type GlobalInfo struct {
	Name      uint32
	Interface string
	Version   uint32
}

// Client owns the Wayland connection and the globals jacin needs:
// wl_seat (keyboard grab target), wl_shm + wl_compositor (popup
// surface backing, C11), and the two IME manager globals (C10).
type Client struct {
	display  *wl.Display
	registry *wl.Registry
	context  *wl.Context

	mu      sync.Mutex
	globals map[uint32]GlobalInfo

	seat          *wl.Seat
	shm           *wl.Shm
	compositor    *wl.Compositor
	imManagerName uint32
	vkManagerName uint32

	imManager *wlproto.InputMethodManager
	vkManager *wlproto.VirtualKeyboardManager
}

// Connect opens the display connection and performs the initial
// registry roundtrip, following the teacher's
// `third_party/libwldevices-go/internal/client.Client.NewClient`
// sequence: register global handlers before any roundtrip, then block
// once for the compositor to announce everything.
func Connect() (*Client, error) {
	display, err := wl.Connect("")
	if err != nil {
		return nil, fmt.Errorf("connect to wayland display: %w", err)
	}

	c := &Client{
		display: display,
		context: display.Context(),
		globals: make(map[uint32]GlobalInfo),
	}

	registry := display.GetRegistry()
	c.registry = registry
	registry.AddGlobalHandler(c)
	registry.AddGlobalRemoveHandler(c)

	if err := display.Roundtrip(); err != nil {
		return nil, fmt.Errorf("initial registry roundtrip: %w", err)
	}

	if c.seat == nil {
		return nil, fmt.Errorf("compositor did not advertise wl_seat")
	}
	if c.imManagerName == 0 {
		return nil, fmt.Errorf("compositor does not support %s", wlproto.InputMethodManagerInterface)
	}
	if c.vkManagerName == 0 {
		return nil, fmt.Errorf("compositor does not support %s", wlproto.VirtualKeyboardManagerInterface)
	}

	manager := wlproto.NewInputMethodManager(c.context)
	if err := registry.Bind(c.imManagerName, wlproto.InputMethodManagerInterface, 1, manager); err != nil {
		return nil, fmt.Errorf("bind %s: %w", wlproto.InputMethodManagerInterface, err)
	}
	c.imManager = manager

	vkManager := wlproto.NewVirtualKeyboardManager(c.context)
	if err := registry.Bind(c.vkManagerName, wlproto.VirtualKeyboardManagerInterface, 1, vkManager); err != nil {
		return nil, fmt.Errorf("bind %s: %w", wlproto.VirtualKeyboardManagerInterface, err)
	}
	c.vkManager = vkManager

	if err := display.Roundtrip(); err != nil {
		return nil, fmt.Errorf("roundtrip after binding managers: %w", err)
	}

	return c, nil
}

// HandleRegistryGlobal implements wl.RegistryGlobalHandler.
func (c *Client) HandleRegistryGlobal(event wl.RegistryGlobalEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.globals[event.Name] = GlobalInfo{Name: event.Name, Interface: event.Interface, Version: event.Version}

	switch event.Interface {
	case "wl_seat":
		seatID, err := c.registry.BindID(event.Name, event.Interface, event.Version)
		if err != nil {
			logger.For("wayland").Warn("bind wl_seat failed", "error", err)
			return
		}
		seat := wl.NewSeat(c.context)
		seat.SetID(seatID)
		c.context.Register(seat)
		c.seat = seat

	case "wl_shm":
		shmID, err := c.registry.BindID(event.Name, event.Interface, event.Version)
		if err != nil {
			logger.For("wayland").Warn("bind wl_shm failed", "error", err)
			return
		}
		shm := wl.NewShm(c.context)
		shm.SetID(shmID)
		c.context.Register(shm)
		c.shm = shm

	case "wl_compositor":
		compID, err := c.registry.BindID(event.Name, event.Interface, event.Version)
		if err != nil {
			logger.For("wayland").Warn("bind wl_compositor failed", "error", err)
			return
		}
		comp := wl.NewCompositor(c.context)
		comp.SetID(compID)
		c.context.Register(comp)
		c.compositor = comp

	case wlproto.InputMethodManagerInterface:
		c.imManagerName = event.Name

	case wlproto.VirtualKeyboardManagerInterface:
		c.vkManagerName = event.Name
	}

	logger.For("wayland").Debug("global announced", "interface", event.Interface, "name", event.Name)
}

// HandleRegistryGlobalRemove implements wl.RegistryGlobalRemoveHandler.
// It only drops the global from the bookkeeping map; proxies already
// bound to it are left in place and nothing else reacts to the removal.
func (c *Client) HandleRegistryGlobalRemove(event wl.RegistryGlobalRemoveEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.globals, event.Name)
}

// Seat returns the bound wl_seat.
func (c *Client) Seat() *wl.Seat { return c.seat }

// Shm returns the bound wl_shm, or nil if the compositor never
// advertised it (C11 degrades to no popup in that case).
func (c *Client) Shm() *wl.Shm { return c.shm }

// Compositor returns the bound wl_compositor.
func (c *Client) Compositor() *wl.Compositor { return c.compositor }

// InputMethodManager returns the bound zwp_input_method_manager_v2.
func (c *Client) InputMethodManager() *wlproto.InputMethodManager { return c.imManager }

// VirtualKeyboardManager returns the bound zwp_virtual_keyboard_manager_v1.
func (c *Client) VirtualKeyboardManager() *wlproto.VirtualKeyboardManager { return c.vkManager }

// Context returns the underlying wlturbo context, for proxies created
// outside this package (the input method and virtual keyboard
// themselves, owned by the lifecycle coordinator).
func (c *Client) Context() *wl.Context { return c.context }

// Roundtrip blocks until all requests sent so far have been processed
// by the compositor and their events delivered.
func (c *Client) Roundtrip() error { return c.display.Roundtrip() }

// Close tears down the display connection.
func (c *Client) Close() error {
	if c.context != nil {
		return c.context.Close()
	}
	return nil
}

// Run drives the dispatch loop until ctx is canceled or a fatal
// dispatch error occurs (compositor disconnect, per spec.md §4.6's
// "disconnection from the display is fatal"). This is the main
// reactor's only blocking suspension point (spec.md §5): dispatching
// blocks on the display fd's readability the same way the stdlib
// net-poller blocks a socket read, so it costs the reactor nothing
// extra to also select over the other reactor sources in the same
// goroutine tree.
func (c *Client) Run(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		_ = c.Close()
		close(done)
	}()

	for {
		select {
		case <-ctx.Done():
			<-done
			return ctx.Err()
		default:
		}

		if err := c.context.Dispatch(); err != nil {
			select {
			case <-ctx.Done():
				<-done
				return ctx.Err()
			default:
				return fmt.Errorf("wayland dispatch: %w", err)
			}
		}
	}
}
