package telemetry_test

import (
	"context"
	"fmt"
	"time"

	"github.com/openstack/heat-sub008/pkg/telemetry"
)

// ExampleNewTelemetry shows the typical startup wiring.
func ExampleNewTelemetry() {
	cfg := telemetry.DefaultConfig()
	cfg.ServiceName = "heat-engine"
	cfg.ServiceVersion = "1.0.0"
	cfg.Logging.Level = "error"

	tel, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		fmt.Println("init failed:", err)
		return
	}
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())
	logger := telemetry.FromContext(ctx).NewComponentLogger("updater")
	logger.Debug("telemetry ready")

	fmt.Println("ok")
	// Output: ok
}

// ExampleEventPublisher_Subscribe shows synchronous event fan-out.
func ExampleEventPublisher_Subscribe() {
	ep, err := telemetry.NewEventPublisher(telemetry.EventsConfig{
		Enabled:    true,
		BufferSize: 16,
	})
	if err != nil {
		fmt.Println("init failed:", err)
		return
	}

	ep.Subscribe(func(e telemetry.Event) {
		fmt.Println(e.Type)
	}, telemetry.FilterByType(telemetry.EventTypeBatchCompleted))

	ep.PublishBatchStarted("run-1", "web", 1, 6, 2)
	ep.PublishBatchCompleted("run-1", "web", 1, 2*time.Second)

	// Output: batch.completed
}
