package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestElementsJSON(t *testing.T) {
	raw := `[
		{"id":"title","type":"text","content":"CERTIFICADO","position":{"x":148,"y":40},"style":{"font_size":28,"align":"center"}},
		{"id":"name","type":"variable","content":"studentName","position":{"x":148,"y":90},"style":{}},
		{"id":"qr","type":"qr","position":{"x":250,"y":160},"style":{"width":30}},
		{"id":"logo","type":"image","content":"logo.png","position":{"x":10,"y":10},"style":{"width":40,"height":40,"opacity":0.8}}
	]`
	var elements Elements
	require.NoError(t, json.Unmarshal([]byte(raw), &elements))
	require.Len(t, elements, 4)

	text, ok := elements[0].(TextElement)
	require.True(t, ok)
	assert.Equal(t, "CERTIFICADO", text.Content)
	assert.Equal(t, "center", text.Style.Align)
	assert.Equal(t, ElementTypeVariable, elements[1].Kind())
	assert.Equal(t, 30.0, elements[2].Base().Style.Width)
	image, ok := elements[3].(ImageElement)
	require.True(t, ok)
	assert.Equal(t, "logo.png", image.Source)
	require.NoError(t, elements.Validate())

	encoded, err := json.Marshal(elements)
	require.NoError(t, err)
	var again Elements
	require.NoError(t, json.Unmarshal(encoded, &again))
	assert.Equal(t, elements, again)
}

func TestElementsRejectUnknownType(t *testing.T) {
	var elements Elements
	err := json.Unmarshal([]byte(`[{"id":"s","type":"shape","position":{"x":0,"y":0},"style":{}}]`), &elements)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown element type "shape"`)
}

func TestElementsValidate(t *testing.T) {
	base := func(id string) ElementBase { return ElementBase{ID: id} }
	assert.Error(t, Elements{TextElement{ElementBase: base("")}}.Validate())
	assert.Error(t, Elements{TextElement{ElementBase: base("a")}, QRElement{ElementBase: base("a")}}.Validate())
	assert.Error(t, Elements{ImageElement{ElementBase: base("img")}}.Validate())
	assert.Error(t, Elements{QRElement{ElementBase: ElementBase{ID: "qr", Style: ElementStyle{Opacity: 1.5}}}}.Validate())
	assert.NoError(t, Elements{}.Validate())
}
