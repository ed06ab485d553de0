package checksum

const (
	// Polynomial is the generator in its 33-bit form.
	Polynomial = 0x104C11DB7

	width  = 32
	topBit = 1 << (width - 1)
	// Size is the length of a checksum in bytes on the wire.
	Size = 4
)

var table = makeTable()

func makeTable() *[256]uint32 {
	var t [256]uint32
	for n := range t {
		t[n] = tableEntry(byte(n))
	}
	return &t
}

// tableEntry shifts the seed byte into the top of the register and
// runs eight rounds of the polynomial division.
func tableEntry(n byte) uint32 {
	c := uint32(n) << (width - 8)
	for i := 0; i < 8; i++ {
		if c&topBit != 0 {
			c = (c << 1) ^ uint32(Polynomial&0xFFFFFFFF)
		} else {
			c <<= 1
		}
	}
	return c
}

// Sum returns the checksum of buf.
func Sum(buf []byte) uint32 {
	return Update(0, buf)
}

// Update continues a checksum previously returned by Sum or Update
// with the bytes in buf, so Update(Sum(a), b) == Sum(append(a, b...)).
func Update(sum uint32, buf []byte) uint32 {
	crc := ^sum
	for _, b := range buf {
		crc = table[b^byte(crc>>24)] ^ (crc << 8)
	}
	return ^crc
}

// sumBitwise computes the checksum without the lookup table, deriving
// every entry on the fly. It exists to cross-check the table in tests.
func sumBitwise(buf []byte) uint32 {
	crc := uint32(0xFFFFFFFF)
	for _, b := range buf {
		crc = tableEntry(b^byte(crc>>24)) ^ (crc << 8)
	}
	return crc ^ 0xFFFFFFFF
}
