// Package demo builds a small guest module that hands out resources by
// address.
//
// The guest is a bump allocator over one page of linear memory. Every
// resource is an 8-byte cell holding the seed it was created with; the
// guest keeps a count of live cells so hosts can check for leaks.
//
//	create(seed i32) -> i32        address of a new cell, 0 when seed is 0
//	destroy(addr i32)              clears the cell, decrements the live count
//	live() -> i32                  number of cells created and not destroyed
//	execute(addr i32, req i32) -> i32   seed stored at addr plus req
//	trap()                         always traps
//
// Addresses are never reused, so the page holds about 8000 allocations
// before create traps.
package demo

import (
	"sync"

	"github.com/wippyai/wasm-handle/internal/wasmbin"
)

// Export names of the demo guest.
const (
	ExportCreate  = "create"
	ExportDestroy = "destroy"
	ExportLive    = "live"
	ExportExecute = "execute"
	ExportTrap    = "trap"
	ExportMemory  = "memory"
)

// FirstAddress is the address returned by the first successful create.
const FirstAddress = 16

const cellSize = 8

const (
	globalNext = 0
	globalLive = 1
)

var (
	binary     []byte
	binaryOnce sync.Once
)

// Binary returns the encoded guest module.
func Binary() []byte {
	binaryOnce.Do(func() {
		binary = build()
	})
	return binary
}

func build() []byte {
	i32 := wasmbin.I32

	var create wasmbin.Code
	create.LocalGet(0).
		Op(wasmbin.OpI32Eqz, wasmbin.OpIf, wasmbin.BlockEmpty).
		I32Const(0).
		Op(wasmbin.OpReturn, wasmbin.OpEnd).
		GlobalGet(globalNext).
		LocalGet(0).
		I32Store(0).
		GlobalGet(globalLive).
		I32Const(1).
		Op(wasmbin.OpI32Add).
		GlobalSet(globalLive).
		GlobalGet(globalNext). // result
		GlobalGet(globalNext).
		I32Const(cellSize).
		Op(wasmbin.OpI32Add).
		GlobalSet(globalNext)

	var destroy wasmbin.Code
	destroy.LocalGet(0).
		I32Const(0).
		I32Store(0).
		GlobalGet(globalLive).
		I32Const(1).
		Op(wasmbin.OpI32Sub).
		GlobalSet(globalLive)

	var live wasmbin.Code
	live.GlobalGet(globalLive)

	var execute wasmbin.Code
	execute.LocalGet(0).
		I32Load(0).
		LocalGet(1).
		Op(wasmbin.OpI32Add)

	var trap wasmbin.Code
	trap.Op(wasmbin.OpUnreach)

	m := &wasmbin.Module{
		Types: []wasmbin.FuncType{
			{Params: []wasmbin.ValType{i32}, Results: []wasmbin.ValType{i32}},      // 0: create
			{Params: []wasmbin.ValType{i32}},                                       // 1: destroy
			{Results: []wasmbin.ValType{i32}},                                      // 2: live
			{Params: []wasmbin.ValType{i32, i32}, Results: []wasmbin.ValType{i32}}, // 3: execute
			{},                                                                     // 4: trap
		},
		Funcs: []wasmbin.Func{
			{Type: 0, Body: create.End()},
			{Type: 1, Body: destroy.End()},
			{Type: 2, Body: live.End()},
			{Type: 3, Body: execute.End()},
			{Type: 4, Body: trap.End()},
		},
		Memories: []uint32{1},
		Globals: []wasmbin.Global{
			{Type: i32, Mutable: true, InitI32: FirstAddress},
			{Type: i32, Mutable: true, InitI32: 0},
		},
		Exports: []wasmbin.Export{
			{Name: ExportCreate, Kind: wasmbin.KindFunc, Index: 0},
			{Name: ExportDestroy, Kind: wasmbin.KindFunc, Index: 1},
			{Name: ExportLive, Kind: wasmbin.KindFunc, Index: 2},
			{Name: ExportExecute, Kind: wasmbin.KindFunc, Index: 3},
			{Name: ExportTrap, Kind: wasmbin.KindFunc, Index: 4},
			{Name: ExportMemory, Kind: wasmbin.KindMemory, Index: 0},
		},
	}
	return m.Encode()
}
