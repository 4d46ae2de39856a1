package internal

import (
	"context"
	"sync"
)

// Telemetry hooks for the converter and its collaborators. The default
// emitter is a no-op; wiring registers a real one (see internal/metrics).

type telemetryEmitter func(ctx context.Context, name string, labels map[string]string, value any)

const (
	MetricResolverLookups = "pim_resolver_lookups"
	MetricConversions     = "pim_conversions"
	MetricExportRows      = "pim_export_rows"
)

// Resolution outcomes.
const (
	OutcomeHit   = "hit"
	OutcomeMiss  = "miss"
	OutcomeError = "error"
)

var (
	teleMu   sync.Mutex
	teleImpl telemetryEmitter = func(ctx context.Context, name string, labels map[string]string, value any) {}
)

// RegisterTelemetryEmitter registers a custom emitter function. nil restores the no-op.
func RegisterTelemetryEmitter(fn telemetryEmitter) {
	teleMu.Lock()
	defer teleMu.Unlock()
	if fn == nil {
		teleImpl = func(ctx context.Context, name string, labels map[string]string, value any) {}
		return
	}
	teleImpl = fn
}

func emitter() telemetryEmitter {
	teleMu.Lock()
	defer teleMu.Unlock()
	return teleImpl
}

// EmitResolution counts one collaborator lookup.
// labels: {"resolver": "<unit|extensible_enum|entity|attachment>", "outcome": "<hit|miss|error>"}
func EmitResolution(ctx context.Context, resolver, outcome string) {
	emitter()(ctx, MetricResolverLookups, map[string]string{"resolver": resolver, "outcome": outcome}, int64(1))
}

// EmitConversion counts one conversion.
// labels: {"direction": "<to|from>", "attribute_type": "<type>"}
func EmitConversion(ctx context.Context, direction, attributeType string) {
	emitter()(ctx, MetricConversions, map[string]string{"direction": direction, "attribute_type": attributeType}, int64(1))
}

// EmitExportRows records the rows written by one export run.
func EmitExportRows(ctx context.Context, format string, rows int64) {
	emitter()(ctx, MetricExportRows, map[string]string{"format": format}, rows)
}
