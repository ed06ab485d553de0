// Package telemetry decodes the packed accelerometer pages streamed by
// transmitters and writes them to CSV logs.
//
// # Page Layout
//
// A page carries 28 samples per axis. Each sample is a 12-bit two's
// complement value split across three arrays per axis:
//
//	[0..83]    low bytes          X[28] Y[28] Z[28]
//	[84..125]  nibble remainders  X[14] Y[14] Z[14]  (even sample: low nibble, odd: high nibble)
//	[126..137] sign bits          X[4]  Y[4]  Z[4]   (sample i -> bit i%8 of byte i/8)
//
// Decoding sign-extends to int16; a page whose sign bit is set gets
// 0xF000 OR-ed into the reconstructed value.
package telemetry
