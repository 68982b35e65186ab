package assemble

import "dbgasm/telemetry"

func telemetryEvent(phase string, fields map[string]any) telemetry.Event {
	return telemetry.Event{Phase: phase, Fields: fields}
}
