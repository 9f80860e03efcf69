// Package wasmbin writes small core WebAssembly modules.
//
// It covers what hand-built guests need (function types, functions, one
// memory, i32 globals and exports) and nothing more. Larger modules should
// come from a real toolchain.
package wasmbin
