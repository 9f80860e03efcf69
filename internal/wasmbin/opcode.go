package wasmbin

// Opcodes used by the guests this package builds.
const (
	OpUnreach   byte = 0x00
	OpIf        byte = 0x04
	OpEnd       byte = 0x0B
	OpReturn    byte = 0x0F
	OpLocalGet  byte = 0x20
	OpGlobalGet byte = 0x23
	OpGlobalSet byte = 0x24
	OpI32Load   byte = 0x28
	OpI32Store  byte = 0x36
	OpI32Const  byte = 0x41
	OpI32Eqz    byte = 0x45
	OpI32Add    byte = 0x6A
	OpI32Sub    byte = 0x6B

	BlockEmpty byte = 0x40
)

// Code assembles an expression body.
type Code struct {
	w Writer
}

// Op appends raw opcode bytes.
func (c *Code) Op(ops ...byte) *Code {
	c.w.Byte(ops...)
	return c
}

// LocalGet appends local.get idx.
func (c *Code) LocalGet(idx uint32) *Code {
	c.w.Byte(OpLocalGet)
	c.w.U32(idx)
	return c
}

// GlobalGet appends global.get idx.
func (c *Code) GlobalGet(idx uint32) *Code {
	c.w.Byte(OpGlobalGet)
	c.w.U32(idx)
	return c
}

// GlobalSet appends global.set idx.
func (c *Code) GlobalSet(idx uint32) *Code {
	c.w.Byte(OpGlobalSet)
	c.w.U32(idx)
	return c
}

// I32Const appends i32.const v.
func (c *Code) I32Const(v int32) *Code {
	c.w.Byte(OpI32Const)
	c.w.S32(v)
	return c
}

// I32Load appends i32.load with 4-byte alignment.
func (c *Code) I32Load(offset uint32) *Code {
	c.w.Byte(OpI32Load, 2)
	c.w.U32(offset)
	return c
}

// I32Store appends i32.store with 4-byte alignment.
func (c *Code) I32Store(offset uint32) *Code {
	c.w.Byte(OpI32Store, 2)
	c.w.U32(offset)
	return c
}

// End appends the final end and returns the body.
func (c *Code) End() []byte {
	c.w.Byte(OpEnd)
	return c.w.Bytes()
}
