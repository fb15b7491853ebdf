// Package codec defines the wire codecs used to move record tensors between
// processes and through Kafka topics.
package codec

// Serde pairs a serializer and deserializer for one payload type.
type Serde[T any] struct {
	Serializer   Serializer[T]
	Deserializer Deserializer[T]
}

type Serializer[T any] func(T) ([]byte, error)

type Deserializer[T any] func([]byte) (T, error)
