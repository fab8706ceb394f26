// Package signature turns pointer gestures into a PNG signature.
package signature

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"sync"

	"github.com/pkg/errors"
)

const dataURLPrefix = "data:image/png;base64,"

var (
	ErrDisabled = errors.New("signature pad is disabled")

	defaultInk = color.RGBA{R: 0x0f, G: 0x17, B: 0x2a, A: 0xff}
)

type Point struct {
	X, Y float64
}

func (pt Point) finite() bool {
	return !math.IsNaN(pt.X) && !math.IsNaN(pt.Y) && !math.IsInf(pt.X, 0) && !math.IsInf(pt.Y, 0)
}

type EventKind int

const (
	PointerDown EventKind = iota
	PointerMove
	PointerUp
)

// PointerEvent is a device-independent drawing gesture: mouse, touch and stylus all map to it.
type PointerEvent struct {
	Kind EventKind
	Point
}

// Pad is a freehand drawing surface.
type Pad struct {
	mu sync.Mutex

	img        *image.RGBA
	ink        color.Color
	lineWidth  float64
	drawing    bool
	last       Point
	hasInk     bool
	disabled   bool
	background color.Color
}

func NewPad(width, height int) *Pad {
	p := &Pad{
		img:        image.NewRGBA(image.Rect(0, 0, width, height)),
		ink:        defaultInk,
		lineWidth:  2.5,
		background: color.White,
	}
	p.fill()
	return p
}

func (p *Pad) fill() {
	draw.Draw(p.img, p.img.Bounds(), &image.Uniform{C: p.background}, image.Point{}, draw.Src)
}

// Handle dispatches a pointer event.
func (p *Pad) Handle(ev PointerEvent) error {
	switch ev.Kind {
	case PointerDown:
		return p.Start(ev.Point)
	case PointerMove:
		return p.Move(ev.Point)
	default:
		p.End()
		return nil
	}
}

// Start begins a stroke at pt. Non-finite points are ignored.
func (p *Pad) Start(pt Point) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.disabled {
		return ErrDisabled
	}
	if !pt.finite() {
		return nil
	}
	p.drawing = true
	p.last = pt
	return nil
}

// Move extends the current stroke to pt; moves outside a stroke are ignored.
func (p *Pad) Move(pt Point) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.disabled {
		return ErrDisabled
	}
	if !p.drawing || !pt.finite() {
		return nil
	}
	if p.segment(p.last, pt) {
		p.hasInk = true
	}
	p.last = pt
	return nil
}

// End finishes the current stroke.
func (p *Pad) End() {
	p.mu.Lock()
	p.drawing = false
	p.mu.Unlock()
}

// Clear erases the drawing.
func (p *Pad) Clear() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.disabled {
		return ErrDisabled
	}
	p.fill()
	p.drawing = false
	p.hasInk = false
	return nil
}

func (p *Pad) HasInk() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hasInk
}

// Disable stops the pad from accepting any further drawing.
func (p *Pad) Disable() {
	p.mu.Lock()
	p.disabled = true
	p.drawing = false
	p.mu.Unlock()
}

func (p *Pad) Disabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.disabled
}

// Export encodes the current drawing as a PNG data URL.
func (p *Pad) Export() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var buf bytes.Buffer
	if err := png.Encode(&buf, p.img); err != nil {
		return "", errors.Wrap(err, "encoding png")
	}
	return dataURLPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// segment stamps round dabs along the part of a-b that can touch the pad,
// so joints stay smooth. It reports whether anything was stamped.
func (p *Pad) segment(a, b Point) bool {
	a, b, ok := p.clip(a, b)
	if !ok {
		return false
	}
	dist := math.Hypot(b.X-a.X, b.Y-a.Y)
	steps := int(math.Ceil(dist * 2))
	if steps == 0 {
		p.dab(a)
		return true
	}
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		p.dab(Point{X: a.X + (b.X-a.X)*t, Y: a.Y + (b.Y-a.Y)*t})
	}
	return true
}

// clip cuts a-b down to the pad bounds grown by the pen radius (Liang-Barsky).
func (p *Pad) clip(a, b Point) (Point, Point, bool) {
	r := p.lineWidth / 2
	bounds := p.img.Bounds()
	minX, minY := float64(bounds.Min.X)-r, float64(bounds.Min.Y)-r
	maxX, maxY := float64(bounds.Max.X)+r, float64(bounds.Max.Y)+r

	dx, dy := b.X-a.X, b.Y-a.Y
	if math.IsInf(dx, 0) || math.IsInf(dy, 0) {
		return a, b, false
	}
	t0, t1 := 0.0, 1.0
	edges := [4][2]float64{
		{-dx, a.X - minX},
		{dx, maxX - a.X},
		{-dy, a.Y - minY},
		{dy, maxY - a.Y},
	}
	for _, e := range edges {
		q, d := e[0], e[1]
		if q == 0 {
			if d < 0 {
				return a, b, false
			}
			continue
		}
		t := d / q
		if q < 0 {
			if t > t1 {
				return a, b, false
			}
			t0 = math.Max(t0, t)
		} else {
			if t < t0 {
				return a, b, false
			}
			t1 = math.Min(t1, t)
		}
	}
	return Point{X: a.X + dx*t0, Y: a.Y + dy*t0}, Point{X: a.X + dx*t1, Y: a.Y + dy*t1}, true
}

func (p *Pad) dab(c Point) {
	r := p.lineWidth / 2
	bounds := p.img.Bounds()
	minX, maxX := int(math.Floor(c.X-r)), int(math.Ceil(c.X+r))
	minY, maxY := int(math.Floor(c.Y-r)), int(math.Ceil(c.Y+r))
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			if !(image.Point{X: x, Y: y}).In(bounds) {
				continue
			}
			dx, dy := float64(x)+0.5-c.X, float64(y)+0.5-c.Y
			if dx*dx+dy*dy <= r*r {
				p.img.Set(x, y, p.ink)
			}
		}
	}
}

// DecodeDataURL returns the image encoded in a data URL produced by Export.
func DecodeDataURL(dataURL string) (image.Image, error) {
	if len(dataURL) < len(dataURLPrefix) || dataURL[:len(dataURLPrefix)] != dataURLPrefix {
		return nil, errors.New("not a png data url")
	}
	raw, err := base64.StdEncoding.DecodeString(dataURL[len(dataURLPrefix):])
	if err != nil {
		return nil, errors.Wrap(err, "decoding base64 payload")
	}
	img, err := png.Decode(bytes.NewReader(raw))
	return img, errors.Wrap(err, "decoding png")
}
