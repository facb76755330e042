package storage

import "dexAdapter/internal/serializer"

// EventSink receives serialized events.
type EventSink interface {
	PutEvents(events []serializer.Event) error
}
