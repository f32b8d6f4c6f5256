package store

import (
	"encoding/binary"
	"fmt"
	"math"
)

// SerializeEmbedding converts a float32 slice to bytes using little-endian
// IEEE 754 encoding, 4 bytes per dimension. The result is stored in the
// chunks table's embedding BLOB column.
func SerializeEmbedding(emb []float32) []byte {
	bytes := make([]byte, len(emb)*4)
	for i, f := range emb {
		bits := math.Float32bits(f)
		binary.LittleEndian.PutUint32(bytes[i*4:], bits)
	}
	return bytes
}

// DeserializeEmbedding reverses SerializeEmbedding.
// Returns an error if the byte length is not divisible by 4, which indicates
// corrupted data. Empty input yields a nil slice.
func DeserializeEmbedding(bytes []byte) ([]float32, error) {
	if len(bytes) == 0 {
		return nil, nil
	}
	if len(bytes)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding data: length %d not divisible by 4", len(bytes))
	}

	floats := make([]float32, len(bytes)/4)
	for i := range floats {
		bits := binary.LittleEndian.Uint32(bytes[i*4:])
		floats[i] = math.Float32frombits(bits)
	}
	return floats, nil
}
