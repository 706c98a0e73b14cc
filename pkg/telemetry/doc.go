// Package telemetry provides observability instrumentation for the engine.
//
// The package integrates structured logging (zerolog), distributed tracing
// (OpenTelemetry), metrics (Prometheus), and event publishing into one handle
// used by the updater and the CLI.
//
// # Usage
//
// Initialize telemetry at application startup:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceName = "heat-engine"
//	cfg.ServiceVersion = "1.0.0"
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
// Add telemetry to context:
//
//	ctx = tel.WithContext(ctx)
//
// # Structured Logging
//
// The logger provides component-scoped logging with field helpers for the
// engine's domain:
//
//	logger := tel.Logger.NewComponentLogger("updater")
//	logger = logger.WithRunID(runID).WithGroup("web").WithMember("web-3")
//	logger.Info("replacing member")
//
// # Distributed Tracing
//
// Spans cover a rolling update run, one batch, or one member operation:
//
//	ctx, span := tel.Tracer.StartRolloutSpan(ctx, runID, "web")
//	defer span.End()
//
// Supported exporters: stdout (development), none.
//
// # Metrics
//
// Prometheus metrics track rollouts, batches, member operations, group
// capacity, and persisted snapshots:
//
//	tel.Metrics.RecordRolloutStarted("web")
//	tel.Metrics.RecordRolloutCompleted("web", "COMPLETE", duration)
//
// # Events
//
// The event publisher fans rollout progress out to subscribers, for example a
// CLI progress display:
//
//	tel.Events.Subscribe(func(e telemetry.Event) {
//	    fmt.Println(e.Message)
//	}, telemetry.FilterByRunID(runID))
package telemetry
