package pim

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValuePayloadJSON(t *testing.T) {
	raw := `{
		"value": "x",
		"valueUnitId": null,
		"valueName": "shown",
		"data": {"currency": "EUR"},
		"intValue": 4,
		"referenceValue": null
	}`

	var p ValuePayload
	require.NoError(t, json.Unmarshal([]byte(raw), &p))

	v, ok := p.Value.Get()
	require.True(t, ok)
	assert.Equal(t, "x", v)
	assert.True(t, p.ValueUnitID.IsNull())
	assert.False(t, p.ValueFrom.IsPresent())
	assert.Equal(t, "EUR", p.Data.OrZero().Currency.OrZero())
	assert.Equal(t, int64(4), p.IntValue.OrZero())
	assert.True(t, p.ReferenceValue.IsNull())
	assert.Equal(t, []StoredColumn{ColumnInt, ColumnReference}, p.Populated())
	assert.True(t, p.HasDisplayFields())

	p.StripDisplayFields()
	assert.False(t, p.HasDisplayFields())

	out, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"value":"x","valueUnitId":null,"data":{"currency":"EUR"},"intValue":4,"referenceValue":null}`, string(out))
}

func TestStoredValueClearAndColumn(t *testing.T) {
	var s StoredValue
	s.BoolValue.Set(true)
	s.FloatValue1.Set(2.5)
	s.DateValue.SetNull()

	assert.Equal(t, true, s.Column(ColumnBool))
	assert.Equal(t, 2.5, s.Column(ColumnFloat1))
	assert.Nil(t, s.Column(ColumnDate))
	assert.True(t, s.Has(ColumnDate))
	assert.Nil(t, s.Column(ColumnText))

	s.Clear()
	assert.Empty(t, s.Populated())
}

func TestCaptureVirtualValue(t *testing.T) {
	p := ValuePayload{Value: Some[any]("v"), ValueID: Some("id-1")}
	p.ValueUnitID.SetNull()

	vv := CaptureVirtualValue(&p)
	p.Value.Set("changed")
	p.ValueID.Unset()

	assert.Equal(t, "v", vv.Value.OrZero())
	assert.Equal(t, "id-1", vv.ValueID.OrZero())
	assert.True(t, vv.ValueUnitID.IsNull())
	assert.False(t, vv.ValueFrom.IsPresent())
}

func TestEntityGet(t *testing.T) {
	e := &Entity{Type: "Attachment", ID: "a1", Fields: map[string]any{
		"name":              "photo.png",
		"storage_file_path": "2024/01",
		"size":              int64(12),
	}}

	assert.Equal(t, "photo.png", e.GetString("name"))
	assert.Equal(t, "2024/01", e.GetString("storageFilePath"))
	assert.Equal(t, "", e.GetString("size"))
	_, ok := e.Get("missing")
	assert.False(t, ok)

	var nilEntity *Entity
	_, ok = nilEntity.Get("name")
	assert.False(t, ok)
}

func TestHasTemplateMarkers(t *testing.T) {
	assert.True(t, HasTemplateMarkers("SKU-{{ .year }}"))
	assert.False(t, HasTemplateMarkers("plain"))
	assert.False(t, HasTemplateMarkers("}} before {{"))
	assert.False(t, HasTemplateMarkers("{{ unterminated"))
}
