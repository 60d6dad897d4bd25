package sqlite

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/okian/rollcall/internal/adapters/repository"
	"github.com/okian/rollcall/internal/domain/model"
)

// encodeEmbedding packs components as little-endian IEEE 754 float32.
func encodeEmbedding(e model.Embedding) []byte {
	buf := make([]byte, 4*len(e))
	for i, v := range e {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

func decodeEmbedding(buf []byte, dim int) (model.Embedding, error) {
	if len(buf) != 4*dim {
		return nil, fmt.Errorf("%w: %d bytes for %d components", repository.ErrInvalidEmbedding, len(buf), dim)
	}
	out := make(model.Embedding, dim)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return out, nil
}
