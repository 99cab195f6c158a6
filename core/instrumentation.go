package orchestration

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/koscakluka/ema-voice/core"

var (
	tracer = otel.Tracer(scopeName)
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)
)

var (
	synthesisRequests  = newCounter("ema_voice.synthesis.requests", "Synthesis requests started by the prefetch cache")
	synthesisFailures  = newCounter("ema_voice.synthesis.failures", "Synthesis requests that failed")
	synthesisDiscarded = newCounter("ema_voice.synthesis.discarded", "Synthesis results discarded because their epoch went stale")
	loopsDetected      = newCounter("ema_voice.generation.loops", "Generations stopped by the repetition loop detector")
)

func newCounter(name, description string) metric.Int64Counter {
	counter, err := meter.Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		logger.Warn("failed to create counter", "name", name, "error", err)
	}
	return counter
}
