package x64

import "encoding/binary"

// CodeBuffer is the encoder's output byte buffer (§4.6: "the encoder owns
// a Store (the output byte buffer)"). Named distinctly from micro.Arena's
// "Store" terminology to avoid confusion between the two very different
// append-only stores this backend maintains.
type CodeBuffer struct {
	bytes []byte
}

// NewCodeBuffer returns an empty output buffer.
func NewCodeBuffer() *CodeBuffer { return &CodeBuffer{} }

// Len returns the current byte length.
func (c *CodeBuffer) Len() uint32 { return uint32(len(c.bytes)) }

// Bytes returns the accumulated bytes. The slice aliases internal storage
// and must not be retained across further writes.
func (c *CodeBuffer) Bytes() []byte { return c.bytes }

// Truncate discards bytes back to length n — used to roll back a
// conformance probe that wrote speculatively (§9 Open Question).
func (c *CodeBuffer) Truncate(n uint32) { c.bytes = c.bytes[:n] }

// EmitByte appends one byte.
func (c *CodeBuffer) EmitByte(b byte) { c.bytes = append(c.bytes, b) }

// Emit2Bytes appends two bytes, most-significant first (used for two-byte
// 0x0F-prefixed opcodes written via the opcodeNum loop).
func (c *CodeBuffer) Emit2Bytes(v uint16) {
	c.bytes = append(c.bytes, byte(v>>8), byte(v))
}

// Emit4Bytes appends a little-endian 32-bit value (displacement or
// 32-bit immediate).
func (c *CodeBuffer) Emit4Bytes(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	c.bytes = append(c.bytes, b[:]...)
}

// Emit8Bytes appends a little-endian 64-bit value (mov r64, imm64).
func (c *CodeBuffer) Emit8Bytes(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	c.bytes = append(c.bytes, b[:]...)
}

// PatchByte overwrites a single already-emitted byte — used by the jump
// patcher for 8-bit relative displacements.
func (c *CodeBuffer) PatchByte(offset uint32, b byte) { c.bytes[offset] = b }

// PatchInt32 overwrites a 32-bit little-endian field already emitted —
// used by the jump patcher and by relocation resolution.
func (c *CodeBuffer) PatchInt32(offset uint32, v int32) {
	binary.LittleEndian.PutUint32(c.bytes[offset:offset+4], uint32(v))
}
