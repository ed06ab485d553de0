package ota

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/muurk/lorahub/internal/checksum"
	"github.com/muurk/lorahub/internal/protocol"
)

const (
	// ChunkSize is the number of image bytes per chunk.
	ChunkSize = protocol.ChunkDataSize
	// FrameSize is the on-air size of one chunk frame.
	FrameSize = protocol.ChunkFrameSize
	// MaxChunks is the number of chunks an 8-bit index can name.
	MaxChunks = 256
	// MaxImageSize is the largest image that fits in MaxChunks chunks.
	MaxImageSize = MaxChunks * ChunkSize
)

// Image is a firmware image padded with zeros to a whole number of chunks.
type Image struct {
	data []byte // padded
	size int    // original length
	crc  uint32 // over the padded buffer
}

// NewImage pads data and computes its checksum. It fails with
// protocol.ErrImageTooLarge when the image needs more than MaxChunks chunks.
func NewImage(data []byte) (*Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("firmware image is empty")
	}
	if len(data) > MaxImageSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", protocol.ErrImageTooLarge, len(data), MaxImageSize)
	}
	chunks := (len(data) + ChunkSize - 1) / ChunkSize
	padded := make([]byte, chunks*ChunkSize)
	copy(padded, data)
	return &Image{
		data: padded,
		size: len(data),
		crc:  checksum.Sum(padded),
	}, nil
}

// LoadImage reads an image from disk.
func LoadImage(path string) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read firmware image: %w", err)
	}
	img, err := NewImage(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// Size returns the original image length.
func (img *Image) Size() int { return img.size }

// PaddedSize returns the length announced to the receiver.
func (img *Image) PaddedSize() int { return len(img.data) }

// Checksum returns the CRC-32 of the padded image.
func (img *Image) Checksum() uint32 { return img.crc }

// Chunks returns the number of chunks.
func (img *Image) Chunks() int { return len(img.data) / ChunkSize }

// Chunk returns chunk i.
func (img *Image) Chunk(i int) (Chunk, error) {
	if i < 0 || i >= img.Chunks() {
		return Chunk{}, fmt.Errorf("chunk %d out of range (image has %d)", i, img.Chunks())
	}
	c := Chunk{Index: uint8(i)}
	copy(c.Data[:], img.data[i*ChunkSize:])
	return c, nil
}

// Chunk is one indexed slice of an image.
type Chunk struct {
	Index uint8
	Data  [ChunkSize]byte
}

// Checksum returns the CRC-32 over the index byte followed by the data.
func (c Chunk) Checksum() uint32 {
	return checksum.Update(checksum.Sum([]byte{c.Index}), c.Data[:])
}

// Frame encodes the chunk for the air.
//
//	[0]       index
//	[1-120]   data
//	[121-124] CRC-32 of bytes 0-120, little-endian
func (c Chunk) Frame() []byte {
	b := make([]byte, FrameSize)
	b[0] = c.Index
	copy(b[1:], c.Data[:])
	binary.LittleEndian.PutUint32(b[1+ChunkSize:], c.Checksum())
	return b
}

// ParseChunk decodes and verifies a chunk frame. It is what a receiver does
// with each frame and is used by the simulator.
func ParseChunk(frame []byte) (Chunk, error) {
	if len(frame) != FrameSize {
		return Chunk{}, fmt.Errorf("%w: chunk frame is %d bytes, want %d", protocol.ErrInvalidLength, len(frame), FrameSize)
	}
	var c Chunk
	c.Index = frame[0]
	copy(c.Data[:], frame[1:1+ChunkSize])
	want := binary.LittleEndian.Uint32(frame[1+ChunkSize:])
	if got := c.Checksum(); got != want {
		return c, fmt.Errorf("%w: chunk %d crc 0x%08x, frame says 0x%08x", protocol.ErrChecksumMismatch, c.Index, got, want)
	}
	return c, nil
}

// Assemble concatenates chunk data in index order and truncates to size.
// Missing chunks are left zero.
func Assemble(chunks []Chunk, size int) []byte {
	n := 0
	for _, c := range chunks {
		if int(c.Index)+1 > n {
			n = int(c.Index) + 1
		}
	}
	buf := make([]byte, n*ChunkSize)
	for _, c := range chunks {
		copy(buf[int(c.Index)*ChunkSize:], c.Data[:])
	}
	if size < len(buf) {
		buf = buf[:size]
	}
	return buf
}
