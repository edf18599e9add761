package storage

import "encoding/json"

// EncoderDecoder serializes values for the persistence layer.
type EncoderDecoder[T any] interface {
	Encode(value T) ([]byte, error)
	Decode(data []byte) (*T, error)
}

// JSONCodec is the default EncoderDecoder.
type JSONCodec[T any] struct{}

var _ EncoderDecoder[any] = JSONCodec[any]{}

func (JSONCodec[T]) Encode(value T) ([]byte, error) {
	return json.Marshal(value)
}

func (JSONCodec[T]) Decode(data []byte) (*T, error) {
	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, err
	}
	return &value, nil
}
