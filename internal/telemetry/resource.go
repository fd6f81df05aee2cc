package telemetry

import "go.opentelemetry.io/otel/attribute"

// attributeServiceName avoids pulling in the semconv package purely for one
// well-known attribute key.
func attributeServiceName(name string) attribute.KeyValue {
	return attribute.String("service.name", name)
}
