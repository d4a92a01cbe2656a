// Package serializers bridges Bufti models into the replication core's
// serializer registry. A model describes the wire layout of a type's
// replicated fields; capture and apply translate between the game object
// and the model's field map.
package serializers

import (
	"errors"

	bufti "github.com/QYUbit/Bufti/go"

	"syncra"
)

var ErrNotAModel = errors.New("serializers: tag does not carry a bufti model")

// ModelSerializer produces the serialize/deserialize pair for one type.
// The model itself travels as the entry's tag, so the slots stay plain
// functions the same way capability and foreign serializers do.
type ModelSerializer struct {
	capture func(instance any) map[string]any
	apply   func(instance any, fields map[string]any) error
	model   *bufti.Model
}

func NewModelSerializer(model *bufti.Model, capture func(instance any) map[string]any, apply func(instance any, fields map[string]any) error) *ModelSerializer {
	return &ModelSerializer{capture: capture, apply: apply, model: model}
}

// Model returns the tag value to register alongside the two slots.
func (m *ModelSerializer) Model() *bufti.Model {
	return m.model
}

// Serialize encodes the captured field map into the stream.
func (m *ModelSerializer) Serialize(instance any, stream *syncra.Stream, tag any) error {
	model, ok := tag.(*bufti.Model)
	if !ok {
		return ErrNotAModel
	}
	payload, err := model.Encode(m.capture(instance))
	if err != nil {
		return err
	}
	_, err = stream.Write(payload)
	return err
}

// Deserialize decodes the rest of the stream and applies the field map.
func (m *ModelSerializer) Deserialize(instance any, stream *syncra.Stream, tag any) error {
	model, ok := tag.(*bufti.Model)
	if !ok {
		return ErrNotAModel
	}
	payload, err := stream.ReadBytes(stream.Remaining())
	if err != nil {
		return err
	}
	fields, err := model.Decode(payload)
	if err != nil {
		return err
	}
	return m.apply(instance, fields)
}

// Register wires the serializer into a replicator for the given type.
func (m *ModelSerializer) Register(r *syncra.Replicator, typ syncra.Type) {
	r.AddSerializer(typ, m.Serialize, m.Deserialize, m.model, m.model)
}
