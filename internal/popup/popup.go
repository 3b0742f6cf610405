// Package popup implements C11: the self-drawn overlay surface that
// reflects preedit text, candidates, and command-line messages next to
// the focused text field. It owns the zwp_input_popup_surface_v2 role
// and a wl_shm double buffer; actual pixel composition is delegated to
// a Renderer collaborator, since font rasterization is explicitly out
// of scope (spec.md §1).
package popup

import (
	"fmt"
	"sync"

	"github.com/bnema/wlturbo/wl"

	"github.com/garypippi/jacin/internal/config"
	"github.com/garypippi/jacin/internal/coordinator"
	"github.com/garypippi/jacin/internal/logger"
	"github.com/garypippi/jacin/internal/wlproto"
)

var popupLog = logger.For("popup")

// shmFormatArgb8888 is wl_shm.format's argb8888 value (0), used
// unconditionally here since every compositor implementing wl_shm must
// support it.
const shmFormatArgb8888 = 0

const bytesPerPixel = 4

// Renderer composes PopupContent into a pixel buffer. SolidRenderer is
// the default, font-free implementation; a real text renderer can be
// swapped in without touching Surface.
type Renderer interface {
	Render(pixels []byte, width, height, stride int, content coordinator.PopupContent)
}

type shmBuffer struct {
	wlBuffer *wl.Buffer
	pixels   []byte
	busy     bool
}

// Surface owns the popup's Wayland resources: the role object, the
// backing wl_surface, and a two-buffer wl_shm pool sized once at
// construction (spec.md §1 excludes dynamic font metrics, so the popup
// uses a fixed pixel budget rather than resizing per update).
type Surface struct {
	mu sync.Mutex

	im      *wlproto.InputMethod
	surface *wl.Surface
	popup   *wlproto.InputPopupSurface
	pool    *wl.ShmPool

	renderer Renderer

	width, height, stride int
	buffers               [2]*shmBuffer
	current               int
	visible               bool

	fd   int
	data []byte
}

// New allocates the popup's SHM backing and requests the popup-surface
// role from im. The popup is not shown until the first Update call
// with non-empty content.
func New(shm *wl.Shm, compositor *wl.Compositor, im *wlproto.InputMethod, cfg *config.Config, renderer Renderer) (*Surface, error) {
	width := 480
	height := cfg.Font.Size*2 + 24
	stride := width * bytesPerPixel
	bufSize := stride * height
	total := bufSize * 2

	fd, err := wl.CreateAnonymousFile(int64(total))
	if err != nil {
		return nil, fmt.Errorf("allocate popup shm backing: %w", err)
	}

	data, err := wl.MapMemory(fd, total)
	if err != nil {
		return nil, fmt.Errorf("map popup shm backing: %w", err)
	}

	pool, err := shm.CreatePool(fd, int32(total))
	if err != nil {
		wl.UnmapMemory(data)
		return nil, fmt.Errorf("create shm pool: %w", err)
	}

	s := &Surface{
		im:       im,
		pool:     pool,
		renderer: renderer,
		width:    width,
		height:   height,
		stride:   stride,
		fd:       fd,
		data:     data,
	}

	for i := range s.buffers {
		offset := i * bufSize
		wlBuf, err := pool.CreateBuffer(int32(offset), int32(width), int32(height), int32(stride), shmFormatArgb8888)
		if err != nil {
			return nil, fmt.Errorf("create popup buffer %d: %w", i, err)
		}
		buf := &shmBuffer{wlBuffer: wlBuf, pixels: data[offset : offset+bufSize]}
		wlBuf.OnRelease(func() {
			s.mu.Lock()
			buf.busy = false
			s.mu.Unlock()
		})
		s.buffers[i] = buf
	}

	surface, err := compositor.CreateSurface()
	if err != nil {
		return nil, fmt.Errorf("create popup wl_surface: %w", err)
	}
	s.surface = surface

	popupSurface, err := im.GetInputPopupSurface(surface)
	if err != nil {
		return nil, fmt.Errorf("get input popup surface: %w", err)
	}
	s.popup = popupSurface

	return s, nil
}

// Update implements coordinator.PopupUpdater. An entirely empty
// content (no preedit, no candidates, no message) hides the popup
// instead of drawing an empty surface (spec.md §8 Testable Property
// #8).
func (s *Surface) Update(content coordinator.PopupContent) {
	if content.Preedit.Empty() && len(content.Candidates.Entries) == 0 && content.Message == "" {
		s.Hide()
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	buf := s.pickBuffer()
	if buf == nil {
		popupLog.Warn("both popup buffers busy, skipping frame")
		return
	}

	s.renderer.Render(buf.pixels, s.width, s.height, s.stride, content)
	buf.busy = true

	if err := s.surface.Attach(buf.wlBuffer, 0, 0); err != nil {
		popupLog.Warn("popup surface attach failed", "error", err)
		return
	}
	if err := s.surface.Damage(0, 0, int32(s.width), int32(s.height)); err != nil {
		popupLog.Warn("popup surface damage failed", "error", err)
	}
	if err := s.surface.Commit(); err != nil {
		popupLog.Warn("popup surface commit failed", "error", err)
	}
	s.visible = true
}

// Hide implements coordinator.PopupUpdater by detaching the surface's
// buffer, the standard wl_surface way of making a surface invisible
// without destroying it.
func (s *Surface) Hide() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.visible {
		return
	}
	if err := s.surface.Attach(nil, 0, 0); err != nil {
		popupLog.Warn("popup surface detach failed", "error", err)
		return
	}
	_ = s.surface.Commit()
	s.visible = false
}

func (s *Surface) pickBuffer() *shmBuffer {
	for i := range s.buffers {
		idx := (s.current + i) % len(s.buffers)
		if !s.buffers[idx].busy {
			s.current = (idx + 1) % len(s.buffers)
			return s.buffers[idx]
		}
	}
	return nil
}

// Close tears down the popup's Wayland and memory resources.
func (s *Surface) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, buf := range s.buffers {
		if buf != nil && buf.wlBuffer != nil {
			_ = buf.wlBuffer.Destroy()
		}
	}
	if s.pool != nil {
		_ = s.pool.Destroy()
	}
	if s.popup != nil {
		_ = s.popup.Destroy()
	}
	if s.surface != nil {
		_ = s.surface.Destroy()
	}
	if s.data != nil {
		wl.UnmapMemory(s.data)
	}
	return nil
}
