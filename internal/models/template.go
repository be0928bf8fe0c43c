package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Template is a reusable, positioned certificate layout. Width and Height are
// expressed in the unit the renderer derives from their magnitude.
type Template struct {
	ID                 string    `db:"id" json:"id"`
	Name               string    `db:"name" json:"name"`
	BackgroundImageURL string    `db:"background_image_url" json:"background_image_url,omitempty"`
	Width              float64   `db:"width" json:"width"`
	Height             float64   `db:"height" json:"height"`
	Elements           Elements  `db:"elements" json:"elements"`
	Active             bool      `db:"active" json:"active"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// ElementType is the wire discriminator for template elements.
type ElementType string

const (
	ElementTypeText     ElementType = "text"
	ElementTypeVariable ElementType = "variable"
	ElementTypeQR       ElementType = "qr"
	ElementTypeImage    ElementType = "image"
)

// Position is the top-left (or text baseline) anchor of an element.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ElementStyle carries presentation attributes. Text-like elements use the
// font fields, sized elements use width/height/opacity.
type ElementStyle struct {
	FontSize   float64 `json:"font_size,omitempty"`
	FontFamily string  `json:"font_family,omitempty"`
	Color      string  `json:"color,omitempty"`
	Align      string  `json:"align,omitempty"`
	Width      float64 `json:"width,omitempty"`
	Height     float64 `json:"height,omitempty"`
	Opacity    float64 `json:"opacity,omitempty"`
}

// ElementBase holds the fields shared by every element kind.
type ElementBase struct {
	ID       string
	Position Position
	Style    ElementStyle
}

// Element is the closed set of template element kinds. The unexported method
// keeps implementations inside this package.
type Element interface {
	Base() ElementBase
	Kind() ElementType
	element()
}

// TextElement draws static text; {{placeholders}} inside it are resolved.
type TextElement struct {
	ElementBase
	Content string
}

// VariableElement draws a resolved certificate field. Content is either a
// bare variable name or text containing placeholders.
type VariableElement struct {
	ElementBase
	Content string
}

// QRElement draws the certificate verification URL as a QR code.
type QRElement struct {
	ElementBase
}

// ImageElement draws an image asset referenced by Source.
type ImageElement struct {
	ElementBase
	Source string
}

func (e TextElement) Base() ElementBase     { return e.ElementBase }
func (e VariableElement) Base() ElementBase { return e.ElementBase }
func (e QRElement) Base() ElementBase       { return e.ElementBase }
func (e ImageElement) Base() ElementBase    { return e.ElementBase }

func (TextElement) Kind() ElementType     { return ElementTypeText }
func (VariableElement) Kind() ElementType { return ElementTypeVariable }
func (QRElement) Kind() ElementType       { return ElementTypeQR }
func (ImageElement) Kind() ElementType    { return ElementTypeImage }

func (TextElement) element()     {}
func (VariableElement) element() {}
func (QRElement) element()       {}
func (ImageElement) element()    {}

// Elements is the ordered element list, stored as JSONB.
type Elements []Element

type elementWire struct {
	ID       string       `json:"id"`
	Type     ElementType  `json:"type"`
	Content  string       `json:"content,omitempty"`
	Position Position     `json:"position"`
	Style    ElementStyle `json:"style"`
}

func toWire(el Element) (elementWire, error) {
	base := el.Base()
	wire := elementWire{ID: base.ID, Type: el.Kind(), Position: base.Position, Style: base.Style}
	switch e := el.(type) {
	case TextElement:
		wire.Content = e.Content
	case VariableElement:
		wire.Content = e.Content
	case QRElement:
	case ImageElement:
		wire.Content = e.Source
	default:
		return elementWire{}, fmt.Errorf("unsupported element %T", el)
	}
	return wire, nil
}

func fromWire(wire elementWire) (Element, error) {
	base := ElementBase{ID: wire.ID, Position: wire.Position, Style: wire.Style}
	switch wire.Type {
	case ElementTypeText:
		return TextElement{ElementBase: base, Content: wire.Content}, nil
	case ElementTypeVariable:
		return VariableElement{ElementBase: base, Content: wire.Content}, nil
	case ElementTypeQR:
		return QRElement{ElementBase: base}, nil
	case ElementTypeImage:
		return ImageElement{ElementBase: base, Source: wire.Content}, nil
	default:
		return nil, fmt.Errorf("unknown element type %q", wire.Type)
	}
}

// MarshalJSON encodes elements with their type discriminator.
func (e Elements) MarshalJSON() ([]byte, error) {
	wires := make([]elementWire, 0, len(e))
	for _, el := range e {
		wire, err := toWire(el)
		if err != nil {
			return nil, err
		}
		wires = append(wires, wire)
	}
	return json.Marshal(wires)
}

// UnmarshalJSON decodes elements, rejecting unknown types.
func (e *Elements) UnmarshalJSON(data []byte) error {
	var wires []elementWire
	if err := json.Unmarshal(data, &wires); err != nil {
		return err
	}
	out := make(Elements, 0, len(wires))
	for _, wire := range wires {
		el, err := fromWire(wire)
		if err != nil {
			return err
		}
		out = append(out, el)
	}
	*e = out
	return nil
}

// Validate checks element ids are present and unique and that sized fields are sane.
func (e Elements) Validate() error {
	seen := make(map[string]struct{}, len(e))
	for i, el := range e {
		if el == nil {
			return fmt.Errorf("element %d is empty", i)
		}
		base := el.Base()
		if base.ID == "" {
			return fmt.Errorf("element %d has no id", i)
		}
		if _, dup := seen[base.ID]; dup {
			return fmt.Errorf("duplicate element id %q", base.ID)
		}
		seen[base.ID] = struct{}{}
		if base.Style.Width < 0 || base.Style.Height < 0 || base.Style.FontSize < 0 {
			return fmt.Errorf("element %q has negative dimensions", base.ID)
		}
		if base.Style.Opacity < 0 || base.Style.Opacity > 1 {
			return fmt.Errorf("element %q opacity must be between 0 and 1", base.ID)
		}
		if img, ok := el.(ImageElement); ok && img.Source == "" {
			return fmt.Errorf("image element %q requires a source", base.ID)
		}
	}
	return nil
}

// Value implements driver.Valuer.
func (e Elements) Value() (driver.Value, error) {
	if e == nil {
		return []byte("[]"), nil
	}
	return e.MarshalJSON()
}

// Scan implements sql.Scanner.
func (e *Elements) Scan(src interface{}) error {
	raw, err := jsonBytes(src)
	if err != nil {
		return err
	}
	if raw == nil {
		*e = Elements{}
		return nil
	}
	return e.UnmarshalJSON(raw)
}

// TemplateFilter narrows template listings.
type TemplateFilter struct {
	ActiveOnly bool
}
