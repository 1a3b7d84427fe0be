package vectorstore

import (
	"encoding/binary"
	"fmt"
	"math"
)

// index.bin layout: 4-byte magic, uint16 version, uint16 dimension, uint32
// vector count, then count*dimension little-endian float32 values.
const (
	blobMagic   = "DRVI"
	blobVersion = 1
	headerSize  = 12
)

func marshalVectors(dim int, vectors [][]float32) ([]byte, error) {
	if dim > math.MaxUint16 {
		return nil, fmt.Errorf("dimension %d exceeds format limit", dim)
	}
	buf := make([]byte, headerSize+len(vectors)*dim*4)
	copy(buf[0:4], blobMagic)
	binary.LittleEndian.PutUint16(buf[4:6], blobVersion)
	binary.LittleEndian.PutUint16(buf[6:8], uint16(dim))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(len(vectors)))

	off := headerSize
	for _, vec := range vectors {
		if len(vec) != dim {
			return nil, fmt.Errorf("vector dimension %d does not match header dimension %d", len(vec), dim)
		}
		for _, v := range vec {
			binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(v))
			off += 4
		}
	}
	return buf, nil
}

func unmarshalVectors(data []byte) (int, [][]float32, error) {
	if len(data) < headerSize {
		return 0, nil, fmt.Errorf("blob too short: %d bytes", len(data))
	}
	if string(data[0:4]) != blobMagic {
		return 0, nil, fmt.Errorf("bad magic %q", data[0:4])
	}
	if v := binary.LittleEndian.Uint16(data[4:6]); v != blobVersion {
		return 0, nil, fmt.Errorf("unsupported blob version %d", v)
	}
	dim := int(binary.LittleEndian.Uint16(data[6:8]))
	count := int(binary.LittleEndian.Uint32(data[8:12]))
	if want := headerSize + count*dim*4; len(data) != want {
		return 0, nil, fmt.Errorf("blob size %d does not match header (want %d)", len(data), want)
	}

	vectors := make([][]float32, count)
	off := headerSize
	for i := range vectors {
		vec := make([]float32, dim)
		for j := range vec {
			vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(data[off:]))
			off += 4
		}
		vectors[i] = vec
	}
	return dim, vectors, nil
}
