// internal/console/console.go
package console

import (
	"fmt"
	"io"
	"sync"
)

// Color is an ANSI base color (0-7), optionally bright.
type Color uint8

const (
	Black Color = iota
	Red
	Green
	Yellow
	Blue
	Magenta
	Cyan
	White
)

// Bright marks the high-intensity variant of a base color.
const Bright Color = 0x08

// Writer is the output collaborator used by the renderer and the reporter.
// Callers bracket multi-part output with Lock/Unlock so no other writer
// interleaves. Printf itself does not lock.
type Writer interface {
	Printf(format string, args ...any) int
	Lock()
	Unlock()

	// Color returns the escape sequence selecting fg on bg, or "" when
	// color output is disabled.
	Color(fg, bg Color) string
	// Reset returns the attribute reset sequence, or "".
	Reset() string
}

// Console writes to an io.Writer.
type Console struct {
	mu    sync.Mutex
	w     io.Writer
	color bool
}

// New creates a console over w.
func New(w io.Writer, color bool) *Console {
	return &Console{w: w, color: color}
}

func (c *Console) Printf(format string, args ...any) int {
	n, _ := fmt.Fprintf(c.w, format, args...)
	return n
}

func (c *Console) Lock()   { c.mu.Lock() }
func (c *Console) Unlock() { c.mu.Unlock() }

func (c *Console) Color(fg, bg Color) string {
	if !c.color {
		return ""
	}
	return Escape(fg, bg)
}

func (c *Console) Reset() string {
	if !c.color {
		return ""
	}
	return "\x1b[0m"
}

// Escape builds the SGR sequence for fg on bg.
// Bright foregrounds use the 90-97 range, bright backgrounds 100-107.
func Escape(fg, bg Color) string {
	return fmt.Sprintf("\x1b[%d;%dm", sgr(fg, 30, 90), sgr(bg, 40, 100))
}

func sgr(c Color, base, bright int) int {
	if c&Bright != 0 {
		return bright + int(c&0x07)
	}
	return base + int(c&0x07)
}

var colorNames = map[string]Color{
	"black":   Black,
	"red":     Red,
	"green":   Green,
	"yellow":  Yellow,
	"blue":    Blue,
	"magenta": Magenta,
	"cyan":    Cyan,
	"white":   White,
}

// ParseColor accepts a base color name with an optional "bright_" prefix.
func ParseColor(name string) (Color, error) {
	var c Color
	if len(name) > 7 && name[:7] == "bright_" {
		c = Bright
		name = name[7:]
	}
	base, ok := colorNames[name]
	if !ok {
		return 0, fmt.Errorf("console: unknown color %q", name)
	}
	return c | base, nil
}
