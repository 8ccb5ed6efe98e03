package redis

import "encoding/json"

// EncoderDecoder serializes stored entities.
type EncoderDecoder[T any] interface {
	Encode(value *T) ([]byte, error)
	Decode(data []byte) (*T, error)
}

// JSONEncDec is the default JSON codec.
type JSONEncDec[T any] struct{}

var _ EncoderDecoder[any] = JSONEncDec[any]{}

func (JSONEncDec[T]) Encode(value *T) ([]byte, error) {
	return json.Marshal(value)
}

func (JSONEncDec[T]) Decode(data []byte) (*T, error) {
	var res T
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
