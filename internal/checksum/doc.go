// Package checksum implements the 32-bit CRC used by the transmitter
// bootloader to validate firmware images and individual chunks.
//
// The register is MSB-first with polynomial 0x04C11DB7 (the 33-bit form
// 0x104C11DB7 with the implicit top bit dropped), initial value 0xFFFFFFFF
// and a final XOR of 0xFFFFFFFF. Input and output are not reflected, so the
// result differs from the IEEE table in hash/crc32 and matches the
// CRC-32/BZIP2 catalogue entry instead.
//
// # Usage
//
//	sum := checksum.Sum(chunk[:121])
//	binary.LittleEndian.PutUint32(chunk[121:], sum)
package checksum
