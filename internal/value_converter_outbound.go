package internal

import (
	"context"

	"github.com/lychee-technology/pim"
)

func (c *ValueConverter) fromRangeInt(_ context.Context, r *pim.ValuePayload, _ *pim.Attribute, _ pim.ConversionMode) error {
	if !r.IntValue.IsPresent() {
		return nil
	}
	r.ValueFrom = anyOf(r.IntValue)
	r.ValueTo = anyOf(r.IntValue1)
	r.ValueUnitID = stringOf(r.ReferenceValue)
	return nil
}

func (c *ValueConverter) fromRangeFloat(_ context.Context, r *pim.ValuePayload, _ *pim.Attribute, _ pim.ConversionMode) error {
	if !r.FloatValue.IsPresent() {
		return nil
	}
	r.ValueFrom = anyOf(r.FloatValue)
	r.ValueTo = anyOf(r.FloatValue1)
	r.ValueUnitID = stringOf(r.ReferenceValue)
	return nil
}

// fromArray decodes the stored JSON document. Malformed documents read as null.
func (c *ValueConverter) fromArray(_ context.Context, r *pim.ValuePayload, _ *pim.Attribute, _ pim.ConversionMode) error {
	if !r.TextValue.IsPresent() {
		return nil
	}
	r.Value = decodedText(r.TextValue)
	return nil
}

func (c *ValueConverter) fromExtensibleMultiEnum(ctx context.Context, r *pim.ValuePayload, attr *pim.Attribute, mode pim.ConversionMode) error {
	setEnumID(r, attr)
	if !r.TextValue.IsPresent() {
		return nil
	}
	r.Value = decodedText(r.TextValue)

	if !mode.Enrich() || c.enums == nil {
		return nil
	}
	raw, _ := r.Value.Get()
	ids := stringsOf(raw)
	if len(ids) == 0 {
		return nil
	}

	options, err := c.enums.GetPreparedOptions(ctx, attr.ExtensibleEnumID, ids)
	options, _, err = resolvedAs(ctx, resolverExtensibleEnum, attr, options, err)
	if err != nil {
		return err
	}
	if len(options) == 0 {
		return nil
	}
	names := make(map[string]string, len(options))
	for _, opt := range options {
		names[opt.ID] = opt.PreparedName
	}
	r.ValueNames.Set(names)
	r.ValueOptionsData.Set(options)
	return nil
}

func (c *ValueConverter) fromExtensibleEnum(ctx context.Context, r *pim.ValuePayload, attr *pim.Attribute, mode pim.ConversionMode) error {
	setEnumID(r, attr)
	if !r.ReferenceValue.IsPresent() {
		return nil
	}
	r.Value = anyOf(r.ReferenceValue)

	if !mode.Enrich() {
		return nil
	}
	opt, found, err := c.preparedOption(ctx, attr, r.ReferenceValue.OrZero())
	if err != nil {
		return err
	}
	if found {
		r.ValueName.Set(opt.PreparedName)
		r.ValueOptionData.Set(opt)
	}
	return nil
}

func (c *ValueConverter) fromText(_ context.Context, r *pim.ValuePayload, _ *pim.Attribute, _ pim.ConversionMode) error {
	if !r.TextValue.IsPresent() {
		return nil
	}
	r.Value = anyOf(r.TextValue)
	return nil
}

func (c *ValueConverter) fromBool(_ context.Context, r *pim.ValuePayload, _ *pim.Attribute, _ pim.ConversionMode) error {
	if !r.BoolValue.IsPresent() {
		return nil
	}
	r.Value = pim.Some[any](r.BoolValue.OrZero())
	return nil
}

func (c *ValueConverter) fromCurrency(_ context.Context, r *pim.ValuePayload, _ *pim.Attribute, _ pim.ConversionMode) error {
	if !r.FloatValue.IsPresent() {
		return nil
	}
	r.Value = anyOf(r.FloatValue)
	r.ValueCurrency = stringOf(r.VarcharValue)
	return nil
}

func (c *ValueConverter) fromInt(_ context.Context, r *pim.ValuePayload, _ *pim.Attribute, _ pim.ConversionMode) error {
	if !r.IntValue.IsPresent() {
		return nil
	}
	r.Value = anyOf(r.IntValue)
	r.ValueUnitID = stringOf(r.ReferenceValue)
	return nil
}

func (c *ValueConverter) fromFloat(_ context.Context, r *pim.ValuePayload, _ *pim.Attribute, _ pim.ConversionMode) error {
	if !r.FloatValue.IsPresent() {
		return nil
	}
	r.Value = anyOf(r.FloatValue)
	r.ValueUnitID = stringOf(r.ReferenceValue)
	return nil
}

func (c *ValueConverter) fromDate(_ context.Context, r *pim.ValuePayload, attr *pim.Attribute, _ pim.ConversionMode) error {
	if !r.DateValue.IsPresent() {
		return nil
	}
	r.Value = c.modifiedDate(r.DateValue, attr, c.dateLayout)
	return nil
}

func (c *ValueConverter) fromDatetime(_ context.Context, r *pim.ValuePayload, attr *pim.Attribute, _ pim.ConversionMode) error {
	if !r.DatetimeValue.IsPresent() {
		return nil
	}
	r.Value = c.modifiedDate(r.DatetimeValue, attr, c.datetimeLayout)
	return nil
}

// modifiedDate applies the attribute's default date modifier. Failures keep
// the stored value.
func (c *ValueConverter) modifiedDate(stored pim.Field[string], attr *pim.Attribute, layout string) pim.Field[any] {
	value, ok := stored.Get()
	if !ok {
		return pim.Null[any]()
	}
	if value == "" || attr.DefaultDate == "" {
		return pim.Some[any](value)
	}
	modified, err := c.dates.ApplyModifier(value, attr.DefaultDate, layout)
	if err != nil {
		return pim.Some[any](value)
	}
	return pim.Some[any](modified)
}

func (c *ValueConverter) fromLink(ctx context.Context, r *pim.ValuePayload, attr *pim.Attribute, mode pim.ConversionMode) error {
	if !r.ReferenceValue.IsPresent() {
		return nil
	}
	r.ValueID = stringOf(r.ReferenceValue)

	id := r.ReferenceValue.OrZero()
	if !mode.Enrich() || id == "" {
		return nil
	}
	foreign, found, err := c.entity(ctx, attr, attr.EntityType, id)
	if err != nil || !found {
		return err
	}
	field := attr.EntityField
	if field == "" {
		field = c.entityField
	}
	if name, ok := foreign.Get(field); ok && name != nil {
		r.ValueName.Set(scalarString(name))
	} else {
		r.ValueName.SetNull()
	}
	return nil
}

func (c *ValueConverter) fromAsset(ctx context.Context, r *pim.ValuePayload, attr *pim.Attribute, mode pim.ConversionMode) error {
	if !r.ReferenceValue.IsPresent() {
		return nil
	}
	r.Value = anyOf(r.ReferenceValue)
	r.ValueID = stringOf(r.ReferenceValue)

	id := r.ReferenceValue.OrZero()
	if !mode.Enrich() || id == "" {
		return nil
	}
	attachment, found, err := c.entity(ctx, attr, attachmentEntityType, id)
	if err != nil || !found {
		return err
	}
	if name, ok := attachment.Get("name"); ok && name != nil {
		r.ValueName.Set(scalarString(name))
	} else {
		r.ValueName.SetNull()
	}

	if c.attachments == nil {
		return nil
	}
	paths, err := c.attachments.GetAttachmentPathsData(ctx, attachment)
	paths, found, err = resolvedAs(ctx, resolverAttachment, attr, paths, err)
	if err != nil {
		return err
	}
	if found {
		r.ValuePathsData.Set(paths)
	}
	return nil
}

func (c *ValueConverter) fromVarchar(_ context.Context, r *pim.ValuePayload, _ *pim.Attribute, _ pim.ConversionMode) error {
	if !r.VarcharValue.IsPresent() {
		return nil
	}
	r.Value = anyOf(r.VarcharValue)
	r.ValueUnitID = stringOf(r.ReferenceValue)
	return nil
}

func (c *ValueConverter) fromFallback(_ context.Context, r *pim.ValuePayload, _ *pim.Attribute, _ pim.ConversionMode) error {
	if !r.VarcharValue.IsPresent() {
		return nil
	}
	r.Value = anyOf(r.VarcharValue)
	return nil
}

// setEnumID exposes the attribute's enum id on the record, stored value or not.
func setEnumID(r *pim.ValuePayload, attr *pim.Attribute) {
	if attr.ExtensibleEnumID == "" {
		r.AttributeExtensibleEnumID.SetNull()
		return
	}
	r.AttributeExtensibleEnumID.Set(attr.ExtensibleEnumID)
}

func decodedText(text pim.Field[string]) pim.Field[any] {
	v, ok := text.Get()
	if !ok {
		return pim.Null[any]()
	}
	decoded := decodeJSON(v)
	if decoded == nil {
		return pim.Null[any]()
	}
	return pim.Some(decoded)
}
