package asyncapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

// EventTypeExtension is the schema extension naming the CloudEvents type a
// payload schema applies to.
const EventTypeExtension = "x-event-type"

// EventValidator validates CloudEvents payloads against the component
// schemas of an AsyncAPI document.
type EventValidator struct {
	schemas  map[string]*jsonschema.Schema
	channels map[string]string
}

// CloudEvent is the envelope shape read from JSON.
type CloudEvent struct {
	SpecVersion     string          `json:"specversion"`
	Type            string          `json:"type"`
	Source          string          `json:"source"`
	Subject         string          `json:"subject,omitempty"`
	ID              string          `json:"id"`
	Time            string          `json:"time,omitempty"`
	DataContentType string          `json:"datacontenttype,omitempty"`
	Data            json.RawMessage `json:"data,omitempty"`
}

type document struct {
	AsyncAPI   string             `yaml:"asyncapi"`
	Channels   map[string]channel `yaml:"channels"`
	Components struct {
		Schemas map[string]any `yaml:"schemas"`
	} `yaml:"components"`
}

type channel struct {
	Address    string   `yaml:"address"`
	EventTypes []string `yaml:"x-event-types"`
}

// NewEventValidator loads the document at path.
func NewEventValidator(path string) (*EventValidator, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read AsyncAPI document: %w", err)
	}
	return NewEventValidatorFromBytes(data)
}

// NewEventValidatorFromBytes compiles every component schema that carries
// an x-event-type extension.
func NewEventValidatorFromBytes(specBytes []byte) (*EventValidator, error) {
	var doc document
	if err := yaml.Unmarshal(specBytes, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse AsyncAPI document: %w", err)
	}

	v := &EventValidator{
		schemas:  make(map[string]*jsonschema.Schema),
		channels: make(map[string]string),
	}

	for name, ch := range doc.Channels {
		address := ch.Address
		if address == "" {
			address = name
		}
		for _, eventType := range ch.EventTypes {
			v.channels[eventType] = address
		}
	}

	compiler := jsonschema.NewCompiler()
	for name, raw := range doc.Components.Schemas {
		schemaMap, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		eventType, _ := schemaMap[EventTypeExtension].(string)
		if eventType == "" {
			continue
		}

		schemaJSON, err := json.Marshal(schemaMap)
		if err != nil {
			return nil, fmt.Errorf("schema %s: %w", name, err)
		}
		resource, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
		if err != nil {
			return nil, fmt.Errorf("schema %s: %w", name, err)
		}

		uri := "asyncapi://schemas/" + name
		if err := compiler.AddResource(uri, resource); err != nil {
			return nil, fmt.Errorf("schema %s: %w", name, err)
		}
		compiled, err := compiler.Compile(uri)
		if err != nil {
			return nil, fmt.Errorf("schema %s: %w", name, err)
		}
		v.schemas[eventType] = compiled
	}

	return v, nil
}

// ValidateEvent validates an envelope and its payload.
func (v *EventValidator) ValidateEvent(event CloudEvent) error {
	switch {
	case event.SpecVersion != "1.0":
		return fmt.Errorf("unsupported specversion %q", event.SpecVersion)
	case event.ID == "" || event.Source == "":
		return fmt.Errorf("event id and source are required")
	case event.Type == "":
		return fmt.Errorf("event type is required")
	}

	schema, ok := v.schemas[event.Type]
	if !ok {
		return fmt.Errorf("no schema found for event type: %s", event.Type)
	}
	if len(event.Data) == 0 {
		return fmt.Errorf("event data is required")
	}

	data, err := jsonschema.UnmarshalJSON(bytes.NewReader(event.Data))
	if err != nil {
		return fmt.Errorf("failed to decode event data: %w", err)
	}
	if err := schema.Validate(data); err != nil {
		return fmt.Errorf("event data validation failed for type %s: %w", event.Type, err)
	}
	return nil
}

// ValidateEventJSON validates a serialized CloudEvent.
func (v *EventValidator) ValidateEventJSON(eventJSON []byte) error {
	var event CloudEvent
	if err := json.Unmarshal(eventJSON, &event); err != nil {
		return fmt.Errorf("failed to parse CloudEvent: %w", err)
	}
	return v.ValidateEvent(event)
}

// SupportedEventTypes returns the event types with a schema, sorted.
func (v *EventValidator) SupportedEventTypes() []string {
	types := make([]string, 0, len(v.schemas))
	for eventType := range v.schemas {
		types = append(types, eventType)
	}
	sort.Strings(types)
	return types
}

// ChannelFor returns the channel address an event type is published on.
func (v *EventValidator) ChannelFor(eventType string) (string, bool) {
	address, ok := v.channels[eventType]
	return address, ok
}
