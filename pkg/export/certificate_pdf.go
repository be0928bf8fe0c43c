package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// Page units understood by the canvas.
const (
	UnitMillimetre = "mm"
	UnitPoint      = "pt"
	UnitPixel      = "px"
)

// PixelToPoint converts CSS pixels (96 per inch) to PDF points (72 per inch).
const PixelToPoint = 0.75

// Text alignments relative to the anchor x coordinate.
const (
	AlignLeft   = "left"
	AlignCenter = "center"
	AlignRight  = "right"
)

// RGB is an 8-bit colour triple.
type RGB struct {
	R, G, B int
}

// CanvasOptions describe a single-page certificate canvas.
type CanvasOptions struct {
	Width    float64
	Height   float64
	Unit     string
	Compress bool
	Title    string
}

// TextSpec positions a run of text. Y is the baseline. MaxWidth > 0 wraps the
// text into lines no wider than MaxWidth.
type TextSpec struct {
	Text       string
	X, Y       float64
	FontFamily string
	FontStyle  string
	FontSize   float64
	Color      RGB
	Align      string
	MaxWidth   float64
	Opacity    float64
}

// ImageSpec places a raster image. ImageType is PNG, JPG or GIF.
type ImageSpec struct {
	Name          string
	Data          []byte
	ImageType     string
	X, Y          float64
	Width, Height float64
	Opacity       float64
}

// Canvas draws positioned content onto a single gofpdf page and records every
// text run so callers can inspect what was drawn.
type Canvas struct {
	pdf   *gofpdf.Fpdf
	tr    func(string) string
	unit  string
	scale float64
	texts []string
}

// NewCanvas creates a one-page document sized width x height in unit. Pixel
// canvases are laid out on a point page, every coordinate scaled by
// PixelToPoint; font sizes stay in points.
func NewCanvas(opts CanvasOptions) (*Canvas, error) {
	unit := opts.Unit
	if unit == "" {
		unit = UnitMillimetre
	}
	pdfUnit, scale := unit, 1.0
	switch unit {
	case UnitMillimetre, UnitPoint:
	case UnitPixel:
		pdfUnit, scale = UnitPoint, PixelToPoint
	default:
		return nil, fmt.Errorf("unsupported unit %q", unit)
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("canvas size must be positive, got %gx%g", opts.Width, opts.Height)
	}
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        pdfUnit,
		Size:           gofpdf.SizeType{Wd: opts.Width * scale, Ht: opts.Height * scale},
	})
	pdf.SetCompression(opts.Compress)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(0, 0, 0)
	if opts.Title != "" {
		pdf.SetTitle(opts.Title, true)
	}
	pdf.SetCreator("sigce-api", true)
	pdf.AddPage()
	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("create canvas: %w", err)
	}
	return &Canvas{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor(""), unit: unit, scale: scale}, nil
}

// Size returns the page size in canvas units.
func (c *Canvas) Size() (float64, float64) {
	w, h := c.pdf.GetPageSize()
	return w / c.scale, h / c.scale
}

// PointSize returns the physical page size in PDF points.
func (c *Canvas) PointSize() (float64, float64) {
	w, h := c.pdf.GetPageSize()
	return c.pdf.UnitToPointConvert(w), c.pdf.UnitToPointConvert(h)
}

// Unit returns the canvas unit.
func (c *Canvas) Unit() string {
	return c.unit
}

// Texts returns every text run drawn so far, in drawing order.
func (c *Canvas) Texts() []string {
	out := make([]string, len(c.texts))
	copy(out, c.texts)
	return out
}

// DrawImage registers and places an image. A decode failure leaves the
// document intact and is returned to the caller.
func (c *Canvas) DrawImage(img ImageSpec) error {
	if len(img.Data) == 0 {
		return fmt.Errorf("image %s is empty", img.Name)
	}
	opts := gofpdf.ImageOptions{ImageType: strings.ToUpper(img.ImageType), AllowNegativePosition: true}
	c.pdf.RegisterImageOptionsReader(img.Name, opts, bytes.NewReader(img.Data))
	if err := c.pdf.Error(); err != nil {
		c.pdf.ClearError()
		return fmt.Errorf("register image %s: %w", img.Name, err)
	}
	c.withAlpha(img.Opacity, func() {
		c.pdf.ImageOptions(img.Name, img.X*c.scale, img.Y*c.scale, img.Width*c.scale, img.Height*c.scale, false, opts, 0, "")
	})
	if err := c.pdf.Error(); err != nil {
		c.pdf.ClearError()
		return fmt.Errorf("place image %s: %w", img.Name, err)
	}
	return nil
}

// DrawText renders txt.Text anchored at (X, Y).
func (c *Canvas) DrawText(txt TextSpec) error {
	if txt.Text == "" {
		return nil
	}
	family, style := ResolveFont(txt.FontFamily, txt.FontStyle)
	size := txt.FontSize
	if size <= 0 {
		size = 12
	}
	c.pdf.SetFont(family, style, size)
	c.pdf.SetTextColor(txt.Color.R, txt.Color.G, txt.Color.B)

	lines := []string{txt.Text}
	if txt.MaxWidth > 0 {
		lines = c.wrap(txt.Text, txt.MaxWidth*c.scale)
	}
	lineHeight := c.pdf.PointConvert(size) * 1.15

	c.withAlpha(txt.Opacity, func() {
		for i, line := range lines {
			encoded := c.tr(line)
			x := txt.X * c.scale
			switch txt.Align {
			case AlignCenter:
				x -= c.pdf.GetStringWidth(encoded) / 2
			case AlignRight:
				x -= c.pdf.GetStringWidth(encoded)
			}
			c.pdf.Text(x, txt.Y*c.scale+float64(i)*lineHeight, encoded)
		}
	})
	if err := c.pdf.Error(); err != nil {
		return fmt.Errorf("draw text: %w", err)
	}
	c.texts = append(c.texts, txt.Text)
	return nil
}

// Bytes serializes the document.
func (c *Canvas) Bytes() ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := c.pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func (c *Canvas) withAlpha(opacity float64, draw func()) {
	if opacity <= 0 || opacity >= 1 {
		draw()
		return
	}
	c.pdf.SetAlpha(opacity, "Normal")
	draw()
	c.pdf.SetAlpha(1, "Normal")
}

// ResolveFont maps a template font name onto a core PDF font. Names may carry
// a style suffix such as "times-bolditalic"; an explicit style wins.
func ResolveFont(name, style string) (string, string) {
	name = strings.ToLower(strings.TrimSpace(name))
	if idx := strings.IndexAny(name, "-_ "); idx > 0 {
		if style == "" {
			style = name[idx+1:]
		}
		name = name[:idx]
	}
	family := "Helvetica"
	switch name {
	case "times", "timesnewroman", "serif":
		family = "Times"
	case "courier", "monospace":
		family = "Courier"
	}
	return family, fontStyle(style)
}

func fontStyle(style string) string {
	style = strings.ToLower(style)
	out := ""
	if strings.Contains(style, "bold") || style == "b" || style == "bi" {
		out += "B"
	}
	if strings.Contains(style, "italic") || strings.Contains(style, "oblique") || style == "i" || style == "bi" {
		out += "I"
	}
	return out
}

// ParseHexColor parses #RGB or #RRGGBB; anything else yields black.
func ParseHexColor(raw string) RGB {
	hex := strings.TrimPrefix(strings.TrimSpace(raw), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return RGB{}
	}
	var rgb RGB
	if _, err := fmt.Sscanf(strings.ToLower(hex), "%02x%02x%02x", &rgb.R, &rgb.G, &rgb.B); err != nil {
		return RGB{}
	}
	return rgb
}

// wrap breaks text on spaces so each line fits width. A single word wider
// than width is kept whole on its own line.
func (c *Canvas) wrap(text string, width float64) []string {
	lines := make([]string, 0, 2)
	for _, paragraph := range strings.Split(text, "\n") {
		words := strings.Fields(paragraph)
		current := ""
		for _, word := range words {
			candidate := word
			if current != "" {
				candidate = current + " " + word
			}
			if current != "" && c.pdf.GetStringWidth(c.tr(candidate)) > width {
				lines = append(lines, current)
				current = word
				continue
			}
			current = candidate
		}
		lines = append(lines, current)
	}
	return lines
}
