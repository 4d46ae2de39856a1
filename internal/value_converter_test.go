package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lychee-technology/pim"
)

type fakeUnits struct {
	units map[string][]pim.Unit
	err   error
	calls int
}

func (f *fakeUnits) ListUnits(_ context.Context, measureID string) ([]pim.Unit, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.units[measureID], nil
}

type fakeEnums struct {
	options []pim.Option
	err     error
}

func (f *fakeEnums) FindOptionByIDOrCode(_ context.Context, enumID, value string) (pim.Option, error) {
	if f.err != nil {
		return pim.Option{}, f.err
	}
	for _, opt := range f.options {
		if opt.ExtensibleEnumID == enumID && opt.ID == value {
			return opt, nil
		}
	}
	for _, opt := range f.options {
		if opt.ExtensibleEnumID == enumID && opt.Code == value {
			return opt, nil
		}
	}
	return pim.Option{}, fmt.Errorf("option %q: %w", value, pim.ErrResolutionMiss)
}

func (f *fakeEnums) GetPreparedOption(_ context.Context, enumID, id string) (pim.Option, error) {
	if f.err != nil {
		return pim.Option{}, f.err
	}
	for _, opt := range f.options {
		if opt.ExtensibleEnumID == enumID && opt.ID == id {
			return opt, nil
		}
	}
	return pim.Option{}, fmt.Errorf("option %q: %w", id, pim.ErrResolutionMiss)
}

func (f *fakeEnums) GetPreparedOptions(ctx context.Context, enumID string, ids []string) ([]pim.Option, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []pim.Option
	for _, id := range ids {
		if opt, err := f.GetPreparedOption(ctx, enumID, id); err == nil {
			out = append(out, opt)
		}
	}
	return out, nil
}

type fakeEntities struct {
	entities map[string]*pim.Entity
	err      error
}

func (f *fakeEntities) GetEntity(_ context.Context, entityType, id string) (*pim.Entity, error) {
	if f.err != nil {
		return nil, f.err
	}
	if e, ok := f.entities[entityType+"/"+id]; ok {
		return e, nil
	}
	return nil, fmt.Errorf("%s %q: %w", entityType, id, pim.ErrResolutionMiss)
}

type fakeAttachments struct {
	paths pim.PathsData
	err   error
}

func (f *fakeAttachments) GetAttachmentPathsData(_ context.Context, _ *pim.Entity) (pim.PathsData, error) {
	return f.paths, f.err
}

type failingRenderer struct{}

func (failingRenderer) Render(string, map[string]any) (string, error) {
	return "", errors.New("template syntax")
}

type failingDates struct{}

func (failingDates) ApplyModifier(string, string, string) (string, error) {
	return "", errors.New("bad modifier")
}

const enumColor = "enum-color"

func testCollaborators() pim.Collaborators {
	return pim.Collaborators{
		Units: &fakeUnits{units: map[string][]pim.Unit{
			"measure-weight": {
				{ID: "u-g", Name: "g", MeasureID: "measure-weight"},
				{ID: "u-kg", Name: "kg", MeasureID: "measure-weight"},
			},
		}},
		Enums: &fakeEnums{options: []pim.Option{
			{ID: "opt-red", ExtensibleEnumID: enumColor, Code: "red", Name: "Red", PreparedName: "Red"},
			{ID: "opt-blue", ExtensibleEnumID: enumColor, Code: "blue", Name: "Blue", PreparedName: "Blue"},
			{ID: "id-a", ExtensibleEnumID: enumColor, Code: "a", PreparedName: "a"},
		}},
		Entities: &fakeEntities{entities: map[string]*pim.Entity{
			"Product/p1":    {Type: "Product", ID: "p1", Fields: map[string]any{"name": "Widget", "sku": "W-1"}},
			"Attachment/a1": {Type: "Attachment", ID: "a1", Fields: map[string]any{"name": "photo.png"}},
		}},
		Attachments: &fakeAttachments{paths: pim.PathsData{Download: "https://cdn/photo.png"}},
	}
}

func newTestConverter() *ValueConverter {
	return NewValueConverter(testCollaborators(), pim.DefaultConfig().Conversion)
}

func decodePayload(t *testing.T, raw string) *pim.ValuePayload {
	t.Helper()
	var p pim.ValuePayload
	require.NoError(t, json.Unmarshal([]byte(raw), &p))
	return &p
}

func encodePayload(t *testing.T, p *pim.ValuePayload) string {
	t.Helper()
	out, err := json.Marshal(p)
	require.NoError(t, err)
	return string(out)
}

func TestEveryAttributeTypeHasRules(t *testing.T) {
	for _, typ := range pim.AttributeTypes() {
		_, in := inboundRules[typ]
		_, out := outboundRules[typ]
		assert.True(t, in, "missing inbound rule for %s", typ)
		assert.True(t, out, "missing outbound rule for %s", typ)
	}
	assert.Len(t, inboundRules, len(pim.AttributeTypes()))
	assert.Len(t, outboundRules, len(pim.AttributeTypes()))
}

func TestConvertRejectsMissingType(t *testing.T) {
	c := newTestConverter()
	ctx := context.Background()

	_, err := c.ConvertTo(ctx, &pim.ValuePayload{}, &pim.Attribute{ID: "a1"})
	require.Error(t, err)
	assert.True(t, pim.IsInvalidAttributeError(err))

	err = c.ConvertFrom(ctx, &pim.ValuePayload{}, nil, pim.ConvertFromOptions{})
	assert.True(t, pim.IsInvalidAttributeError(err))

	_, err = c.ConvertTo(ctx, nil, &pim.Attribute{Type: pim.AttributeTypeInt})
	assert.True(t, pim.IsValidationError(err))
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		attr pim.Attribute
		in   string
		want string
	}{
		{
			name: "extensibleEnum",
			attr: pim.Attribute{Type: pim.AttributeTypeExtensibleEnum, ExtensibleEnumID: enumColor},
			in:   `{"value":"opt-red"}`,
			want: `{"value":"opt-red","attributeType":"extensibleEnum","attributeExtensibleEnumId":"enum-color"}`,
		},
		{
			name: "extensibleMultiEnum",
			attr: pim.Attribute{Type: pim.AttributeTypeExtensibleMultiEnum, ExtensibleEnumID: enumColor},
			in:   `{"value":["opt-red","opt-blue"]}`,
			want: `{"value":["opt-red","opt-blue"],"attributeType":"extensibleMultiEnum","attributeExtensibleEnumId":"enum-color"}`,
		},
		{
			name: "array",
			attr: pim.Attribute{Type: pim.AttributeTypeArray},
			in:   `{"value":["a","b"]}`,
			want: `{"value":["a","b"],"attributeType":"array"}`,
		},
		{
			name: "text",
			attr: pim.Attribute{Type: pim.AttributeTypeText},
			in:   `{"value":"hello"}`,
			want: `{"value":"hello","attributeType":"text"}`,
		},
		{
			name: "wysiwyg",
			attr: pim.Attribute{Type: pim.AttributeTypeWysiwyg},
			in:   `{"value":"<p>hi</p>"}`,
			want: `{"value":"<p>hi</p>","attributeType":"wysiwyg"}`,
		},
		{
			name: "bool",
			attr: pim.Attribute{Type: pim.AttributeTypeBool},
			in:   `{"value":true}`,
			want: `{"value":true,"attributeType":"bool"}`,
		},
		{
			name: "int",
			attr: pim.Attribute{Type: pim.AttributeTypeInt},
			in:   `{"value":42,"valueUnitId":"u-kg"}`,
			want: `{"value":42,"valueUnitId":"u-kg","attributeType":"int"}`,
		},
		{
			name: "int beyond float precision",
			attr: pim.Attribute{Type: pim.AttributeTypeInt},
			in:   `{"value":9007199254740993}`,
			want: `{"value":9007199254740993,"valueUnitId":null,"attributeType":"int"}`,
		},
		{
			name: "rangeInt beyond float precision",
			attr: pim.Attribute{Type: pim.AttributeTypeRangeInt},
			in:   `{"valueFrom":-9007199254740993,"valueTo":9223372036854775807}`,
			want: `{"valueFrom":-9007199254740993,"valueTo":9223372036854775807,"valueUnitId":null,"attributeType":"rangeInt"}`,
		},
		{
			name: "rangeInt",
			attr: pim.Attribute{Type: pim.AttributeTypeRangeInt},
			in:   `{"valueFrom":3,"valueTo":9,"valueUnitId":"u-cm"}`,
			want: `{"valueFrom":3,"valueTo":9,"valueUnitId":"u-cm","attributeType":"rangeInt"}`,
		},
		{
			name: "currency",
			attr: pim.Attribute{Type: pim.AttributeTypeCurrency},
			in:   `{"value":9.99,"valueCurrency":"EUR"}`,
			want: `{"value":9.99,"valueCurrency":"EUR","attributeType":"currency"}`,
		},
		{
			name: "float",
			attr: pim.Attribute{Type: pim.AttributeTypeFloat},
			in:   `{"value":1.5,"valueUnitId":"u-kg"}`,
			want: `{"value":1.5,"valueUnitId":"u-kg","attributeType":"float"}`,
		},
		{
			name: "rangeFloat",
			attr: pim.Attribute{Type: pim.AttributeTypeRangeFloat},
			in:   `{"valueFrom":0.5,"valueTo":2.25,"valueUnitId":"u-m"}`,
			want: `{"valueFrom":0.5,"valueTo":2.25,"valueUnitId":"u-m","attributeType":"rangeFloat"}`,
		},
		{
			name: "date",
			attr: pim.Attribute{Type: pim.AttributeTypeDate},
			in:   `{"value":"2024-05-01"}`,
			want: `{"value":"2024-05-01","attributeType":"date"}`,
		},
		{
			name: "datetime",
			attr: pim.Attribute{Type: pim.AttributeTypeDatetime},
			in:   `{"value":"2024-05-01 10:30:00"}`,
			want: `{"value":"2024-05-01 10:30:00","attributeType":"datetime"}`,
		},
		{
			name: "asset",
			attr: pim.Attribute{Type: pim.AttributeTypeAsset},
			in:   `{"valueId":"att-1"}`,
			want: `{"value":"att-1","valueId":"att-1","attributeType":"asset"}`,
		},
		{
			name: "link",
			attr: pim.Attribute{Type: pim.AttributeTypeLink, EntityType: "Product"},
			in:   `{"valueId":"p1"}`,
			want: `{"valueId":"p1","attributeType":"link"}`,
		},
		{
			name: "varchar",
			attr: pim.Attribute{Type: pim.AttributeTypeVarchar},
			in:   `{"value":"abc","valueUnitId":"u-x"}`,
			want: `{"value":"abc","valueUnitId":"u-x","attributeType":"varchar"}`,
		},
		{
			name: "unknown type falls back to varchar",
			attr: pim.Attribute{Type: pim.AttributeType("color")},
			in:   `{"value":"#ff0000"}`,
			want: `{"value":"#ff0000","attributeType":"color"}`,
		},
	}

	c := newTestConverter()
	ctx := context.Background()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := decodePayload(t, tt.in)

			_, err := c.ConvertTo(ctx, p, &tt.attr)
			require.NoError(t, err)
			assert.False(t, p.Value.IsPresent(), "value must move into a stored column")
			assert.NotEmpty(t, p.Populated())
			for _, col := range p.Populated() {
				assert.Contains(t, tt.attr.Type.Columns(), col)
			}

			require.NoError(t, c.ConvertFrom(ctx, p, &tt.attr, pim.ConvertFromOptions{Mode: pim.ModeExport}))
			assert.JSONEq(t, tt.want, encodePayload(t, p))
		})
	}
}

func TestConvertToStripsDisplayFields(t *testing.T) {
	c := newTestConverter()
	for _, typ := range append(pim.AttributeTypes(), "color") {
		p := decodePayload(t, `{
			"value": "x",
			"valueName": "n",
			"valueNames": {"a": "A"},
			"valueOptionData": {"id": "o"},
			"valueOptionsData": [{"id": "o"}],
			"valueAllUnits": [{"id": "u", "name": "kg", "measureId": "m"}],
			"valuePathsData": {"download": "d"}
		}`)
		_, err := c.ConvertTo(context.Background(), p, &pim.Attribute{Type: typ, ExtensibleEnumID: enumColor})
		require.NoError(t, err, typ)
		assert.False(t, p.HasDisplayFields(), typ)
	}
}

func TestConvertFromClearsStoredColumns(t *testing.T) {
	c := newTestConverter()
	full := func() *pim.ValuePayload {
		p := &pim.ValuePayload{}
		p.BoolValue.Set(true)
		p.IntValue.Set(1)
		p.IntValue1.Set(2)
		p.FloatValue.Set(1.5)
		p.FloatValue1.Set(2.5)
		p.VarcharValue.Set("v")
		p.TextValue.Set(`["x"]`)
		p.DateValue.Set("2024-01-01")
		p.DatetimeValue.Set("2024-01-01 00:00:00")
		p.ReferenceValue.Set("ref")
		return p
	}

	for _, typ := range append(pim.AttributeTypes(), "color") {
		p := full()
		require.NoError(t, c.ConvertFrom(context.Background(), p, &pim.Attribute{Type: typ}, pim.ConvertFromOptions{Mode: pim.ModeExport}))
		assert.Empty(t, p.Populated(), typ)

		p = full()
		require.NoError(t, c.ConvertFrom(context.Background(), p, &pim.Attribute{Type: typ}, pim.ConvertFromOptions{Mode: pim.ModeExport, Preserve: true}))
		assert.Len(t, p.Populated(), 10, typ)
	}
}

func TestConvertToBool(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{`{"value":0}`, false},
		{`{"value":"1"}`, true},
		{`{"value":"0"}`, false},
		{`{"value":""}`, false},
		{`{"value":null}`, false},
		{`{"value":[]}`, false},
		{`{"value":"yes"}`, true},
		{`{"value":2}`, true},
		{`{"value":false}`, false},
	}
	c := newTestConverter()
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			p := decodePayload(t, tt.in)
			_, err := c.ConvertTo(context.Background(), p, &pim.Attribute{Type: pim.AttributeTypeBool})
			require.NoError(t, err)
			got, ok := p.BoolValue.Get()
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConvertToRangeInt(t *testing.T) {
	c := newTestConverter()
	p := &pim.ValuePayload{ValueFrom: pim.Some[any](3), ValueTo: pim.Some[any](9), ValueUnitID: pim.Some("u1")}

	_, err := c.ConvertTo(context.Background(), p, &pim.Attribute{Type: pim.AttributeTypeRangeInt})
	require.NoError(t, err)

	assert.Equal(t, pim.Some[int64](3), p.IntValue)
	assert.Equal(t, pim.Some[int64](9), p.IntValue1)
	assert.Equal(t, pim.Some("u1"), p.ReferenceValue)
	assert.False(t, p.ValueFrom.IsPresent())
	assert.False(t, p.ValueTo.IsPresent())
	assert.False(t, p.ValueUnitID.IsPresent())
}

func TestConvertToRangeIndependentBounds(t *testing.T) {
	c := newTestConverter()
	p := &pim.ValuePayload{ValueTo: pim.Some[any](2.5)}

	_, err := c.ConvertTo(context.Background(), p, &pim.Attribute{Type: pim.AttributeTypeRangeFloat})
	require.NoError(t, err)

	assert.False(t, p.FloatValue.IsPresent())
	assert.Equal(t, pim.Some(2.5), p.FloatValue1)
	assert.False(t, p.ReferenceValue.IsPresent())
}

func TestConvertToCoercionFailureLeavesNull(t *testing.T) {
	c := newTestConverter()

	p := &pim.ValuePayload{Value: pim.Some[any]("abc")}
	_, err := c.ConvertTo(context.Background(), p, &pim.Attribute{Type: pim.AttributeTypeInt})
	require.NoError(t, err)
	assert.True(t, p.IntValue.IsNull())

	p = &pim.ValuePayload{Value: pim.Some[any]("12.5")}
	_, err = c.ConvertTo(context.Background(), p, &pim.Attribute{Type: pim.AttributeTypeFloat})
	require.NoError(t, err)
	assert.Equal(t, pim.Some(12.5), p.FloatValue)
}

func TestConvertToIntOutOfRangeIsNull(t *testing.T) {
	c := newTestConverter()
	for _, in := range []string{
		`{"value":1e20}`,
		`{"value":-1e20}`,
		`{"value":"99999999999999999999"}`,
		`{"value":9223372036854775808}`,
	} {
		t.Run(in, func(t *testing.T) {
			p := decodePayload(t, in)
			_, err := c.ConvertTo(context.Background(), p, &pim.Attribute{Type: pim.AttributeTypeInt})
			require.NoError(t, err)
			assert.True(t, p.IntValue.IsNull())
		})
	}

	p := decodePayload(t, `{"valueFrom":1e20,"valueTo":7}`)
	_, err := c.ConvertTo(context.Background(), p, &pim.Attribute{Type: pim.AttributeTypeRangeInt})
	require.NoError(t, err)
	assert.True(t, p.IntValue.IsNull())
	assert.Equal(t, pim.Some[int64](7), p.IntValue1)
}

func TestConvertIntKeepsFullPrecision(t *testing.T) {
	c := newTestConverter()
	attr := &pim.Attribute{Type: pim.AttributeTypeInt}

	p := decodePayload(t, `{"value":9007199254740993}`)
	_, err := c.ConvertTo(context.Background(), p, attr)
	require.NoError(t, err)
	assert.Equal(t, pim.Some[int64](9007199254740993), p.IntValue)

	require.NoError(t, c.ConvertFrom(context.Background(), p, attr, pim.ConvertFromOptions{Mode: pim.ModeExport}))
	assert.Equal(t, int64(9007199254740993), p.Value.OrZero())
	assert.Contains(t, encodePayload(t, p), `"value":9007199254740993`)
}

func TestConvertToExtensibleMultiEnum(t *testing.T) {
	c := newTestConverter()
	attr := &pim.Attribute{Type: pim.AttributeTypeExtensibleMultiEnum, ExtensibleEnumID: enumColor}

	p := &pim.ValuePayload{Value: pim.Some[any]([]any{"a", "b"})}
	_, err := c.ConvertTo(context.Background(), p, attr)
	require.NoError(t, err)
	assert.JSONEq(t, `["id-a","b"]`, p.TextValue.OrZero())

	p = &pim.ValuePayload{Value: pim.Some[any](`["red"]`)}
	_, err = c.ConvertTo(context.Background(), p, attr)
	require.NoError(t, err)
	assert.JSONEq(t, `["opt-red"]`, p.TextValue.OrZero())

	p = &pim.ValuePayload{Value: pim.Some[any]("not json")}
	_, err = c.ConvertTo(context.Background(), p, attr)
	require.NoError(t, err)
	assert.Equal(t, "[]", p.TextValue.OrZero())

	p = &pim.ValuePayload{Value: pim.Null[any]()}
	_, err = c.ConvertTo(context.Background(), p, attr)
	require.NoError(t, err)
	assert.Equal(t, "[]", p.TextValue.OrZero())
}

func TestConvertToExtensibleEnum(t *testing.T) {
	c := newTestConverter()
	attr := &pim.Attribute{Type: pim.AttributeTypeExtensibleEnum, ExtensibleEnumID: enumColor}

	tests := []struct {
		name  string
		value pim.Field[any]
		want  pim.Field[string]
	}{
		{"by id", pim.Some[any]("opt-blue"), pim.Some("opt-blue")},
		{"by code", pim.Some[any]("red"), pim.Some("opt-red")},
		{"unknown", pim.Some[any]("unknown"), pim.Null[string]()},
		{"empty", pim.Some[any](""), pim.Null[string]()},
		{"null", pim.Null[any](), pim.Null[string]()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &pim.ValuePayload{Value: tt.value}
			_, err := c.ConvertTo(context.Background(), p, attr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.ReferenceValue)
			assert.False(t, p.Value.IsPresent())
		})
	}

	p := &pim.ValuePayload{}
	p.ReferenceValue.Set("keep")
	_, err := c.ConvertTo(context.Background(), p, attr)
	require.NoError(t, err)
	assert.Equal(t, pim.Some("keep"), p.ReferenceValue, "absent value leaves the column alone")
}

func TestConvertToLegacyUnit(t *testing.T) {
	units := &fakeUnits{units: map[string][]pim.Unit{
		"measure-weight": {{ID: "u-kg", Name: "kg"}, {ID: "u-g", Name: "g"}},
	}}
	c := NewValueConverter(pim.Collaborators{Units: units}, pim.ConversionConfig{})
	attr := &pim.Attribute{Type: pim.AttributeTypeInt, MeasureID: "measure-weight"}

	p := &pim.ValuePayload{Value: pim.Some[any](5), ValueUnit: pim.Some("kg")}
	vv, err := c.ConvertTo(context.Background(), p, attr)
	require.NoError(t, err)
	assert.Equal(t, pim.Some("u-kg"), p.ReferenceValue)
	assert.False(t, p.ValueUnit.IsPresent())
	assert.Equal(t, pim.Some("u-kg"), vv.ValueUnitID, "snapshot is taken after unit normalization")

	p = &pim.ValuePayload{Value: pim.Some[any](5), ValueUnit: pim.Some("KG")}
	_, err = c.ConvertTo(context.Background(), p, attr)
	require.NoError(t, err)
	assert.False(t, p.ReferenceValue.IsPresent(), "names match exactly")
	assert.False(t, p.ValueUnit.IsPresent())

	calls := units.calls
	p = &pim.ValuePayload{Value: pim.Some[any](5), ValueUnit: pim.Some("kg"), ValueUnitID: pim.Some("u-g")}
	_, err = c.ConvertTo(context.Background(), p, attr)
	require.NoError(t, err)
	assert.Equal(t, pim.Some("u-g"), p.ReferenceValue)
	assert.Equal(t, calls, units.calls, "explicit unit id skips the lookup")
}

func TestConvertToCurrency(t *testing.T) {
	c := newTestConverter()
	attr := &pim.Attribute{Type: pim.AttributeTypeCurrency}

	p := decodePayload(t, `{"value":"10","data":{"currency":"USD"}}`)
	_, err := c.ConvertTo(context.Background(), p, attr)
	require.NoError(t, err)
	assert.Equal(t, pim.Some(10.0), p.FloatValue)
	assert.Equal(t, pim.Some("USD"), p.VarcharValue)

	p = decodePayload(t, `{"value":10,"data":{"currency":"USD"},"valueCurrency":"EUR"}`)
	_, err = c.ConvertTo(context.Background(), p, attr)
	require.NoError(t, err)
	assert.Equal(t, pim.Some("EUR"), p.VarcharValue)
	assert.False(t, p.ValueCurrency.IsPresent())
}

func TestConvertToReferencePrefersValueID(t *testing.T) {
	c := newTestConverter()
	for _, typ := range []pim.AttributeType{pim.AttributeTypeAsset, pim.AttributeTypeLink} {
		p := &pim.ValuePayload{Value: pim.Some[any]("from-value"), ValueID: pim.Some("from-id")}
		_, err := c.ConvertTo(context.Background(), p, &pim.Attribute{Type: typ})
		require.NoError(t, err)
		assert.Equal(t, pim.Some("from-id"), p.ReferenceValue, typ)
		assert.False(t, p.Value.IsPresent(), typ)
		assert.False(t, p.ValueID.IsPresent(), typ)

		p = &pim.ValuePayload{Value: pim.Some[any]("from-value")}
		_, err = c.ConvertTo(context.Background(), p, &pim.Attribute{Type: typ})
		require.NoError(t, err)
		assert.Equal(t, pim.Some("from-value"), p.ReferenceValue, typ)
	}
}

func TestConvertToVarcharDefault(t *testing.T) {
	renderer := NewTextTemplateRenderer()
	c := NewValueConverter(pim.Collaborators{Templates: renderer}, pim.ConversionConfig{})

	attr := &pim.Attribute{Name: "Sku", Type: pim.AttributeTypeVarchar, DefaultValue: `{{ upper "sku" }}-{{ .attribute.Name }}`}
	p := &pim.ValuePayload{}
	_, err := c.ConvertTo(context.Background(), p, attr)
	require.NoError(t, err)
	assert.Equal(t, pim.Some("SKU-Sku"), p.VarcharValue)

	p = &pim.ValuePayload{}
	p.VarcharValue.Set("existing")
	_, err = c.ConvertTo(context.Background(), p, attr)
	require.NoError(t, err)
	assert.Equal(t, pim.Some("existing"), p.VarcharValue)

	plain := &pim.Attribute{Type: pim.AttributeTypeVarchar, DefaultValue: "n/a"}
	p = &pim.ValuePayload{}
	_, err = c.ConvertTo(context.Background(), p, plain)
	require.NoError(t, err)
	assert.Equal(t, pim.Some("n/a"), p.VarcharValue)

	failing := NewValueConverter(pim.Collaborators{Templates: failingRenderer{}}, pim.ConversionConfig{})
	p = &pim.ValuePayload{}
	_, err = failing.ConvertTo(context.Background(), p, attr)
	require.NoError(t, err)
	assert.Equal(t, pim.Some(attr.DefaultValue), p.VarcharValue, "render failure keeps the raw default")
}

func TestConvertToReturnsVirtualValue(t *testing.T) {
	c := newTestConverter()
	p := &pim.ValuePayload{Value: pim.Some[any](7), ValueUnitID: pim.Some("u-kg"), ValueCurrency: pim.Some("EUR")}

	vv, err := c.ConvertTo(context.Background(), p, &pim.Attribute{Type: pim.AttributeTypeInt})
	require.NoError(t, err)

	assert.Equal(t, 7, vv.Value.OrZero())
	assert.Equal(t, pim.Some("u-kg"), vv.ValueUnitID)
	assert.Equal(t, pim.Some("EUR"), vv.ValueCurrency)
	assert.False(t, vv.ValueFrom.IsPresent())
	assert.False(t, p.Value.IsPresent())
}

func TestConvertFromLinkEnrichment(t *testing.T) {
	c := newTestConverter()
	attr := &pim.Attribute{Type: pim.AttributeTypeLink, EntityType: "Product"}
	record := func() *pim.ValuePayload {
		r := &pim.ValuePayload{}
		r.ReferenceValue.Set("p1")
		return r
	}

	r := record()
	require.NoError(t, c.ConvertFrom(context.Background(), r, attr, pim.ConvertFromOptions{}))
	assert.Equal(t, pim.Some("p1"), r.ValueID)
	assert.Equal(t, pim.Some("Widget"), r.ValueName)

	r = record()
	require.NoError(t, c.ConvertFrom(context.Background(), r, attr, pim.ConvertFromOptions{Mode: pim.ModeExport}))
	assert.Equal(t, pim.Some("p1"), r.ValueID)
	assert.False(t, r.ValueName.IsPresent())

	custom := &pim.Attribute{Type: pim.AttributeTypeLink, EntityType: "Product", EntityField: "sku"}
	r = record()
	require.NoError(t, c.ConvertFrom(context.Background(), r, custom, pim.ConvertFromOptions{}))
	assert.Equal(t, pim.Some("W-1"), r.ValueName)

	r = &pim.ValuePayload{}
	r.ReferenceValue.Set("missing")
	require.NoError(t, c.ConvertFrom(context.Background(), r, attr, pim.ConvertFromOptions{}))
	assert.Equal(t, pim.Some("missing"), r.ValueID)
	assert.False(t, r.ValueName.IsPresent(), "unresolved link has no name")
}

func TestConvertFromAssetEnrichment(t *testing.T) {
	c := newTestConverter()
	attr := &pim.Attribute{Type: pim.AttributeTypeAsset}

	r := &pim.ValuePayload{}
	r.ReferenceValue.Set("a1")
	require.NoError(t, c.ConvertFrom(context.Background(), r, attr, pim.ConvertFromOptions{}))
	assert.Equal(t, "a1", r.Value.OrZero())
	assert.Equal(t, pim.Some("a1"), r.ValueID)
	assert.Equal(t, pim.Some("photo.png"), r.ValueName)
	assert.Equal(t, "https://cdn/photo.png", r.ValuePathsData.OrZero().Download)

	r = &pim.ValuePayload{}
	r.ReferenceValue.Set("a1")
	require.NoError(t, c.ConvertFrom(context.Background(), r, attr, pim.ConvertFromOptions{Mode: pim.ModeExport}))
	assert.False(t, r.ValueName.IsPresent())
	assert.False(t, r.ValuePathsData.IsPresent())
}

func TestConvertFromEnumEnrichment(t *testing.T) {
	c := newTestConverter()

	single := &pim.Attribute{Type: pim.AttributeTypeExtensibleEnum, ExtensibleEnumID: enumColor}
	r := &pim.ValuePayload{}
	r.ReferenceValue.Set("opt-red")
	require.NoError(t, c.ConvertFrom(context.Background(), r, single, pim.ConvertFromOptions{}))
	assert.Equal(t, "opt-red", r.Value.OrZero())
	assert.Equal(t, pim.Some("Red"), r.ValueName)
	assert.Equal(t, "opt-red", r.ValueOptionData.OrZero().ID)

	multi := &pim.Attribute{Type: pim.AttributeTypeExtensibleMultiEnum, ExtensibleEnumID: enumColor}
	r = &pim.ValuePayload{}
	r.TextValue.Set(`["opt-blue","gone","opt-red"]`)
	require.NoError(t, c.ConvertFrom(context.Background(), r, multi, pim.ConvertFromOptions{}))
	assert.Equal(t, []any{"opt-blue", "gone", "opt-red"}, r.Value.OrZero())
	assert.Equal(t, map[string]string{"opt-blue": "Blue", "opt-red": "Red"}, r.ValueNames.OrZero())
	require.Len(t, r.ValueOptionsData.OrZero(), 2)
	assert.Equal(t, "opt-blue", r.ValueOptionsData.OrZero()[0].ID)

	r = &pim.ValuePayload{}
	r.TextValue.Set(`["gone"]`)
	require.NoError(t, c.ConvertFrom(context.Background(), r, multi, pim.ConvertFromOptions{}))
	assert.False(t, r.ValueNames.IsPresent(), "no options resolved")
	assert.False(t, r.ValueOptionsData.IsPresent())

	r = &pim.ValuePayload{}
	require.NoError(t, c.ConvertFrom(context.Background(), r, multi, pim.ConvertFromOptions{}))
	assert.Equal(t, pim.Some(enumColor), r.AttributeExtensibleEnumID, "enum id is set without a stored value")
	assert.False(t, r.Value.IsPresent())
}

func TestConvertFromArrayMalformed(t *testing.T) {
	c := newTestConverter()
	r := &pim.ValuePayload{}
	r.TextValue.Set("{not json")

	require.NoError(t, c.ConvertFrom(context.Background(), r, &pim.Attribute{Type: pim.AttributeTypeArray}, pim.ConvertFromOptions{}))
	assert.True(t, r.Value.IsNull())
}

func TestConvertFromNullColumns(t *testing.T) {
	c := newTestConverter()

	r := &pim.ValuePayload{}
	r.IntValue.SetNull()
	require.NoError(t, c.ConvertFrom(context.Background(), r, &pim.Attribute{Type: pim.AttributeTypeRangeInt}, pim.ConvertFromOptions{}))
	assert.True(t, r.ValueFrom.IsNull())
	assert.True(t, r.ValueTo.IsNull())
	assert.True(t, r.ValueUnitID.IsNull())

	r = &pim.ValuePayload{}
	r.BoolValue.SetNull()
	require.NoError(t, c.ConvertFrom(context.Background(), r, &pim.Attribute{Type: pim.AttributeTypeBool}, pim.ConvertFromOptions{}))
	assert.Equal(t, false, r.Value.OrZero())

	r = &pim.ValuePayload{}
	require.NoError(t, c.ConvertFrom(context.Background(), r, &pim.Attribute{Type: pim.AttributeTypeInt}, pim.ConvertFromOptions{}))
	assert.False(t, r.Value.IsPresent(), "absent column leaves value absent")
	assert.Equal(t, pim.AttributeTypeInt, r.AttributeType)
}

func TestConvertFromDateModifier(t *testing.T) {
	c := newTestConverter()
	attr := &pim.Attribute{Type: pim.AttributeTypeDate, DefaultDate: "+1 day"}

	for _, mode := range []pim.ConversionMode{pim.ModeDefault, pim.ModeExport} {
		r := &pim.ValuePayload{}
		r.DateValue.Set("2024-02-28")
		require.NoError(t, c.ConvertFrom(context.Background(), r, attr, pim.ConvertFromOptions{Mode: mode}))
		assert.Equal(t, "2024-02-29", r.Value.OrZero(), mode.String())
	}

	dt := &pim.Attribute{Type: pim.AttributeTypeDatetime, DefaultDate: "+2 hours"}
	r := &pim.ValuePayload{}
	r.DatetimeValue.Set("2024-01-01 23:30:00")
	require.NoError(t, c.ConvertFrom(context.Background(), r, dt, pim.ConvertFromOptions{}))
	assert.Equal(t, "2024-01-02 01:30:00", r.Value.OrZero())

	failing := NewValueConverter(pim.Collaborators{Dates: failingDates{}}, pim.ConversionConfig{})
	r = &pim.ValuePayload{}
	r.DateValue.Set("2024-02-28")
	require.NoError(t, failing.ConvertFrom(context.Background(), r, attr, pim.ConvertFromOptions{}))
	assert.Equal(t, "2024-02-28", r.Value.OrZero(), "modifier failure keeps the stored date")

	r = &pim.ValuePayload{}
	r.DateValue.Set("")
	require.NoError(t, c.ConvertFrom(context.Background(), r, attr, pim.ConvertFromOptions{}))
	assert.Equal(t, "", r.Value.OrZero())
}

func TestResolverFailuresPropagate(t *testing.T) {
	outage := errors.New("connection refused")
	c := NewValueConverter(pim.Collaborators{
		Units:    &fakeUnits{err: outage},
		Enums:    &fakeEnums{err: outage},
		Entities: &fakeEntities{err: outage},
	}, pim.ConversionConfig{})
	ctx := context.Background()

	_, err := c.ConvertTo(ctx, &pim.ValuePayload{Value: pim.Some[any]("red")},
		&pim.Attribute{ID: "color", Type: pim.AttributeTypeExtensibleEnum, ExtensibleEnumID: enumColor})
	require.Error(t, err)
	assert.True(t, pim.IsResolverError(err))
	assert.ErrorIs(t, err, outage)

	_, err = c.ConvertTo(ctx, &pim.ValuePayload{ValueUnit: pim.Some("kg")},
		&pim.Attribute{Type: pim.AttributeTypeInt, MeasureID: "m"})
	assert.True(t, pim.IsResolverError(err))

	r := &pim.ValuePayload{}
	r.ReferenceValue.Set("p1")
	err = c.ConvertFrom(ctx, r, &pim.Attribute{Type: pim.AttributeTypeLink, EntityType: "Product"}, pim.ConvertFromOptions{})
	assert.True(t, pim.IsResolverError(err))

	r = &pim.ValuePayload{}
	r.ReferenceValue.Set("p1")
	err = c.ConvertFrom(ctx, r, &pim.Attribute{Type: pim.AttributeTypeLink, EntityType: "Product"}, pim.ConvertFromOptions{Mode: pim.ModeExport})
	assert.NoError(t, err, "export mode does not consult resolvers")
}

func TestNilCollaboratorsBehaveAsMisses(t *testing.T) {
	c := NewValueConverter(pim.Collaborators{}, pim.ConversionConfig{})
	ctx := context.Background()

	p := &pim.ValuePayload{Value: pim.Some[any]("red")}
	_, err := c.ConvertTo(ctx, p, &pim.Attribute{Type: pim.AttributeTypeExtensibleEnum})
	require.NoError(t, err)
	assert.True(t, p.ReferenceValue.IsNull())

	r := &pim.ValuePayload{}
	r.ReferenceValue.Set("a1")
	require.NoError(t, c.ConvertFrom(ctx, r, &pim.Attribute{Type: pim.AttributeTypeAsset}, pim.ConvertFromOptions{}))
	assert.False(t, r.ValueName.IsPresent())
}

func TestConvertEmitsTelemetry(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]int{}
	RegisterTelemetryEmitter(func(_ context.Context, name string, labels map[string]string, _ any) {
		mu.Lock()
		defer mu.Unlock()
		seen[name+":"+labels["outcome"]+labels["direction"]]++
	})
	t.Cleanup(func() { RegisterTelemetryEmitter(nil) })

	c := newTestConverter()
	attr := &pim.Attribute{Type: pim.AttributeTypeExtensibleEnum, ExtensibleEnumID: enumColor}
	_, err := c.ConvertTo(context.Background(), &pim.ValuePayload{Value: pim.Some[any]("red")}, attr)
	require.NoError(t, err)
	_, err = c.ConvertTo(context.Background(), &pim.ValuePayload{Value: pim.Some[any]("nope")}, attr)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, seen[MetricResolverLookups+":"+OutcomeHit])
	assert.Equal(t, 1, seen[MetricResolverLookups+":"+OutcomeMiss])
	assert.Equal(t, 2, seen[MetricConversions+":to"])
}
