package metrics

import (
	"go.uber.org/fx"
)

// Module provides no-op metrics and tracing. The infrastructure metrics module
// decorates both with real backends when metrics are enabled.
var Module = fx.Options(
	fx.Provide(NewNoOpMetricRecorder),
	fx.Provide(NewNoOpTracer),
)
