//go:build !otel

package cmd

import (
	"context"

	"github.com/nextlevelbuilder/openplatform/internal/config"
)

// initTelemetry is a no-op when built without the "otel" tag.
// Build with `go build -tags otel` to enable OpenTelemetry export.
func initTelemetry(_ context.Context, _ *config.Config) func() {
	return func() {}
}
