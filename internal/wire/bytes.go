package wire

// PutUint32LE writes v little-endian into dst[0:4].
func PutUint32LE(dst []byte, v uint32) {
	dst[0] = byte(v)
	dst[1] = byte(v >> 8)
	dst[2] = byte(v >> 16)
	dst[3] = byte(v >> 24)
}

// Uint32LE reads a little-endian uint32 from src[0:4].
func Uint32LE(src []byte) uint32 {
	return uint32(src[0]) | uint32(src[1])<<8 | uint32(src[2])<<16 | uint32(src[3])<<24
}

// PutUint16LE writes v little-endian into dst[0:2].
func PutUint16LE(dst []byte, v uint16) {
	dst[0] = byte(v)
	dst[1] = byte(v >> 8)
}

// Uint16LE reads a little-endian uint16 from src[0:2].
func Uint16LE(src []byte) uint16 {
	return uint16(src[0]) | uint16(src[1])<<8
}

// PutUint32BE writes v big-endian into dst[0:4]. Only the ConfigFrame's
// filter/mask fields use this — an adapter firmware idiosyncrasy that
// spec.md §4.1/§9 requires preserving bit-exactly.
func PutUint32BE(dst []byte, v uint32) {
	dst[0] = byte(v >> 24)
	dst[1] = byte(v >> 16)
	dst[2] = byte(v >> 8)
	dst[3] = byte(v)
}

// Uint32BE reads a big-endian uint32 from src[0:4].
func Uint32BE(src []byte) uint32 {
	return uint32(src[3]) | uint32(src[2])<<8 | uint32(src[1])<<16 | uint32(src[0])<<24
}

// Checksum is the low byte of the sum of bytes[start:end+1], inclusive —
// used identically by FixedFrame and ConfigFrame (spec.md §4.1).
func Checksum(bytes []byte, start, end int) byte {
	var sum byte
	for i := start; i <= end; i++ {
		sum += bytes[i]
	}
	return sum
}
