package pubsub

import (
	"encoding/json"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// NewCloudEvent creates a standardized CloudEvent v1.0 with a fresh id.
func NewCloudEvent(source, eventType string, data interface{}) (cloudevents.Event, error) {
	e := cloudevents.NewEvent()
	e.SetSpecVersion("1.0")
	e.SetID(uuid.NewString())
	e.SetType(eventType)
	e.SetSource(source)

	// Protobuf payloads go through protojson so timestamps render as strings
	if msg, ok := data.(proto.Message); ok {
		bytes, err := protojson.MarshalOptions{UseProtoNames: true}.Marshal(msg)
		if err != nil {
			return e, err
		}
		// RawMessage keeps the payload from being base64 encoded
		if err := e.SetData(cloudevents.ApplicationJSON, json.RawMessage(bytes)); err != nil {
			return e, err
		}
		return e, nil
	}

	if err := e.SetData(cloudevents.ApplicationJSON, data); err != nil {
		return e, err
	}
	return e, nil
}
