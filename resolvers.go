package pim

import (
	"context"
)

// Lookups that find nothing return an error wrapping ErrResolutionMiss. Any
// other error is an infrastructure failure.

// MeasureUnitResolver lists the units of a measure.
type MeasureUnitResolver interface {
	ListUnits(ctx context.Context, measureID string) ([]Unit, error)
}

// ExtensibleEnumResolver finds extensible enum options.
type ExtensibleEnumResolver interface {
	// FindOptionByIDOrCode matches value against option ids first, then codes.
	FindOptionByIDOrCode(ctx context.Context, enumID, value string) (Option, error)
	GetPreparedOption(ctx context.Context, enumID, id string) (Option, error)
	// GetPreparedOptions returns the found options in the order of ids.
	GetPreparedOptions(ctx context.Context, enumID string, ids []string) ([]Option, error)
}

// EntityResolver loads a single entity by type and id.
type EntityResolver interface {
	GetEntity(ctx context.Context, entityType, id string) (*Entity, error)
}

// AttachmentResolver resolves download and thumbnail locations.
type AttachmentResolver interface {
	GetAttachmentPathsData(ctx context.Context, attachment *Entity) (PathsData, error)
}

// TemplateRenderer renders attribute default values.
type TemplateRenderer interface {
	Render(template string, data map[string]any) (string, error)
}

// DateModifier applies a relative modifier such as "+1 day" to a date.
type DateModifier interface {
	ApplyModifier(value, modifier, layout string) (string, error)
}

// ExportFlag reports whether an export job is running.
type ExportFlag interface {
	IsExportActive() bool
}

// Collaborators groups the lookups used by a ValueConverter. Nil resolvers
// behave as if every lookup missed.
type Collaborators struct {
	Units       MeasureUnitResolver
	Enums       ExtensibleEnumResolver
	Entities    EntityResolver
	Attachments AttachmentResolver
	Templates   TemplateRenderer
	Dates       DateModifier
}

// ValueConverter converts attribute values between their API and stored shapes.
type ValueConverter interface {
	// ConvertTo rewrites an API payload into stored columns and returns the
	// canonical fields as they were before the rewrite.
	ConvertTo(ctx context.Context, payload *ValuePayload, attribute *Attribute) (VirtualValue, error)
	// ConvertFrom rewrites stored columns into API fields.
	ConvertFrom(ctx context.Context, record *ValuePayload, attribute *Attribute, opts ConvertFromOptions) error
}

// ExportRequest describes one export run.
type ExportRequest struct {
	// FileName is the output file name inside Export.OutputDir. Generated when empty.
	FileName string
	// Upload sends the artifact to the configured bucket.
	Upload bool
}

// ExportResult summarizes an export run.
type ExportResult struct {
	JobID     string `json:"jobId"`
	Rows      int    `json:"rows"`
	Skipped   int    `json:"skipped"`
	File      string `json:"file"`
	ObjectKey string `json:"objectKey,omitempty"`
}

// Exporter writes stored values in their export shape to a file.
type Exporter interface {
	Run(ctx context.Context, req ExportRequest) (ExportResult, error)
}
