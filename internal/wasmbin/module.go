package wasmbin

// Binary format constants
const (
	Magic   uint32 = 0x6d736100 // \0asm
	Version uint32 = 1
)

// Section IDs
const (
	SectionType     byte = 1
	SectionFunction byte = 3
	SectionMemory   byte = 5
	SectionGlobal   byte = 6
	SectionExport   byte = 7
	SectionCode     byte = 10
)

// ValType is a core value type.
type ValType byte

const (
	I32 ValType = 0x7F
	I64 ValType = 0x7E
	F32 ValType = 0x7D
	F64 ValType = 0x7C
)

// Export kinds
const (
	KindFunc   byte = 0x00
	KindMemory byte = 0x02
	KindGlobal byte = 0x03
)

const funcTypeByte = 0x60

// FuncType is a function signature.
type FuncType struct {
	Params  []ValType
	Results []ValType
}

// Global is a global with a constant i32 initializer.
type Global struct {
	Type    ValType
	Mutable bool
	InitI32 int32
}

// Export names a function, memory or global.
type Export struct {
	Name  string
	Kind  byte
	Index uint32
}

// Func is a defined function: its type index and expression body.
// Body must end with OpEnd.
type Func struct {
	Body []byte
	Type uint32
}

// Module is the subset of a core module needed to describe small guests:
// no imports, tables, data or locals beyond parameters.
type Module struct {
	Types    []FuncType
	Funcs    []Func
	Globals  []Global
	Exports  []Export
	Memories []uint32 // minimum pages, no maximum
}

// Encode encodes the module to WebAssembly binary format.
func (m *Module) Encode() []byte {
	var w Writer
	w.U32LE(Magic)
	w.U32LE(Version)

	if len(m.Types) > 0 {
		var sec Writer
		sec.U32(uint32(len(m.Types)))
		for _, ft := range m.Types {
			sec.Byte(funcTypeByte)
			writeValTypes(&sec, ft.Params)
			writeValTypes(&sec, ft.Results)
		}
		w.Section(SectionType, &sec)
	}

	if len(m.Funcs) > 0 {
		var sec Writer
		sec.U32(uint32(len(m.Funcs)))
		for _, f := range m.Funcs {
			sec.U32(f.Type)
		}
		w.Section(SectionFunction, &sec)
	}

	if len(m.Memories) > 0 {
		var sec Writer
		sec.U32(uint32(len(m.Memories)))
		for _, pages := range m.Memories {
			sec.Byte(0x00)
			sec.U32(pages)
		}
		w.Section(SectionMemory, &sec)
	}

	if len(m.Globals) > 0 {
		var sec Writer
		sec.U32(uint32(len(m.Globals)))
		for _, g := range m.Globals {
			sec.Byte(byte(g.Type))
			if g.Mutable {
				sec.Byte(1)
			} else {
				sec.Byte(0)
			}
			sec.Byte(OpI32Const)
			sec.S32(g.InitI32)
			sec.Byte(OpEnd)
		}
		w.Section(SectionGlobal, &sec)
	}

	if len(m.Exports) > 0 {
		var sec Writer
		sec.U32(uint32(len(m.Exports)))
		for _, exp := range m.Exports {
			sec.Name(exp.Name)
			sec.Byte(exp.Kind)
			sec.U32(exp.Index)
		}
		w.Section(SectionExport, &sec)
	}

	if len(m.Funcs) > 0 {
		var sec Writer
		sec.U32(uint32(len(m.Funcs)))
		for _, f := range m.Funcs {
			var body Writer
			body.U32(0) // no local declarations
			body.Byte(f.Body...)
			sec.U32(uint32(body.Len()))
			sec.Byte(body.Bytes()...)
		}
		w.Section(SectionCode, &sec)
	}

	return w.Bytes()
}

func writeValTypes(w *Writer, types []ValType) {
	w.U32(uint32(len(types)))
	for _, t := range types {
		w.Byte(byte(t))
	}
}
