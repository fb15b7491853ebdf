package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/ekerman/batchgen/tensor"
)

// Tensor wire format: dtype byte, ndim byte, ndim big-endian uint32 dims,
// then the raw native data bytes.

var TensorSerializer = func(d *tensor.Dense) ([]byte, error) {
	shape := d.Shape()
	if len(shape) > 255 {
		return nil, fmt.Errorf("codec: %d dims exceed wire format limit", len(shape))
	}
	out := make([]byte, 0, 2+4*len(shape)+d.NumBytes())
	out = append(out, byte(d.DType()), byte(len(shape)))
	for _, s := range shape {
		out = binary.BigEndian.AppendUint32(out, uint32(s))
	}
	return append(out, d.Bytes()...), nil
}

var TensorDeserializer = func(data []byte) (*tensor.Dense, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("codec: tensor frame too short (%d bytes)", len(data))
	}
	dtype := tensor.DType(data[0])
	switch dtype {
	case tensor.Uint8, tensor.Int32, tensor.Float32, tensor.Float64:
	default:
		return nil, fmt.Errorf("codec: unknown dtype byte %d", data[0])
	}
	ndim := int(data[1])
	if len(data) < 2+4*ndim {
		return nil, fmt.Errorf("codec: tensor frame truncated in shape")
	}
	shape := make([]int, ndim)
	for i := range shape {
		shape[i] = int(binary.BigEndian.Uint32(data[2+4*i:]))
	}
	// copy out of the caller's buffer so the result owns its memory
	payload := append([]byte(nil), data[2+4*ndim:]...)
	d, err := tensor.FromBytes(dtype, shape, payload)
	if err != nil {
		return nil, fmt.Errorf("codec: %w", err)
	}
	return d, nil
}

// Tensor encodes a single record array.
var Tensor = Serde[*tensor.Dense]{
	Serializer:   TensorSerializer,
	Deserializer: TensorDeserializer,
}

// Tuple wire format: big-endian uint16 arity, then length-prefixed Tensor
// frames.

var TupleSerializer = func(tuple []*tensor.Dense) ([]byte, error) {
	if len(tuple) > 0xFFFF {
		return nil, fmt.Errorf("codec: %d-tuple exceeds wire format limit", len(tuple))
	}
	out := binary.BigEndian.AppendUint16(nil, uint16(len(tuple)))
	for _, d := range tuple {
		frame, err := TensorSerializer(d)
		if err != nil {
			return nil, err
		}
		out = binary.BigEndian.AppendUint32(out, uint32(len(frame)))
		out = append(out, frame...)
	}
	return out, nil
}

var TupleDeserializer = func(data []byte) ([]*tensor.Dense, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("codec: tuple frame too short (%d bytes)", len(data))
	}
	arity := int(binary.BigEndian.Uint16(data))
	data = data[2:]
	tuple := make([]*tensor.Dense, 0, arity)
	for i := 0; i < arity; i++ {
		if len(data) < 4 {
			return nil, fmt.Errorf("codec: tuple frame truncated at element %d", i)
		}
		n := int(binary.BigEndian.Uint32(data))
		data = data[4:]
		if len(data) < n {
			return nil, fmt.Errorf("codec: tuple frame truncated at element %d", i)
		}
		d, err := TensorDeserializer(data[:n])
		if err != nil {
			return nil, fmt.Errorf("codec: tuple element %d: %w", i, err)
		}
		tuple = append(tuple, d)
		data = data[n:]
	}
	return tuple, nil
}

// Tuple encodes an aligned record tuple, one Kafka record's worth of data.
var Tuple = Serde[[]*tensor.Dense]{
	Serializer:   TupleSerializer,
	Deserializer: TupleDeserializer,
}
