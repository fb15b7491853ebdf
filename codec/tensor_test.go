package codec

import (
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/ekerman/batchgen/tensor"
)

func TestTensorRoundTrip(t *testing.T) {
	in := tensor.FromFloat32([]float32{1.5, -2, 3, 0.25}, 2, 2)

	frame, err := Tensor.Serializer(in)
	assert.NoError(t, err)

	out, err := Tensor.Deserializer(frame)
	assert.NoError(t, err)
	assert.True(t, tensor.Equal(in, out))

	// the result owns its memory
	frame[len(frame)-1] ^= 0xFF
	assert.True(t, tensor.Equal(in, out))
}

func TestTensorDeserializeRejectsGarbage(t *testing.T) {
	for _, frame := range [][]byte{
		nil,
		{0},
		{99, 1, 0, 0, 0, 4},       // unknown dtype
		{byte(tensor.Float32), 2}, // truncated shape
		{byte(tensor.Float32), 1, 0, 0, 0, 4}, // missing payload
	} {
		_, err := Tensor.Deserializer(frame)
		assert.Error(t, err, "frame %v", frame)
	}
}

func TestTupleRoundTrip(t *testing.T) {
	in := []*tensor.Dense{
		tensor.FromFloat32([]float32{1, 2, 3, 4}, 1, 2, 2),
		tensor.FromFloat64([]float64{9, 8}, 2),
	}

	frame, err := Tuple.Serializer(in)
	assert.NoError(t, err)

	out, err := Tuple.Deserializer(frame)
	assert.NoError(t, err)
	assert.Equal(t, 2, len(out))
	for i := range in {
		assert.True(t, tensor.Equal(in[i], out[i]), "element %d", i)
	}
}

func TestTupleDeserializeTruncated(t *testing.T) {
	frame, err := Tuple.Serializer([]*tensor.Dense{tensor.New(tensor.Float32, 4)})
	assert.NoError(t, err)

	for cut := 1; cut < len(frame); cut += 5 {
		_, err := Tuple.Deserializer(frame[:cut])
		assert.Error(t, err, "cut at %d", cut)
	}
}
