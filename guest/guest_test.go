package guest

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero/api"

	wasmhandle "github.com/wippyai/wasm-handle"
	"github.com/wippyai/wasm-handle/errors"
	"github.com/wippyai/wasm-handle/guest/demo"
	"github.com/wippyai/wasm-handle/handle"
)

func newDemo(t *testing.T) *Instance {
	t.Helper()
	ctx := context.Background()

	eng, err := NewEngine(ctx, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close(context.Background()) })

	mod, err := eng.Compile(ctx, demo.Binary())
	require.NoError(t, err)

	inst, err := mod.Instantiate(ctx, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = inst.Close(context.Background()) })
	return inst
}

func liveCount(t *testing.T, inst *Instance) uint32 {
	t.Helper()
	res, err := inst.Call(context.Background(), demo.ExportLive)
	require.NoError(t, err)
	require.Len(t, res, 1)
	return api.DecodeU32(res[0])
}

func seed(v int32) []uint64 {
	return []uint64{api.EncodeI32(v)}
}

func TestInstance_HandleLifecycle(t *testing.T) {
	ctx := context.Background()
	inst := newDemo(t)

	h, err := handle.Create(ctx, inst, seed(7), handle.WithLabel("cell"))
	require.NoError(t, err)
	require.True(t, h.IsValid())

	addr, err := h.Address()
	require.NoError(t, err)
	assert.Equal(t, wasmhandle.Address(demo.FirstAddress), addr)
	assert.Equal(t, uint32(1), liveCount(t, inst))

	res, err := inst.Invoke(ctx, h, demo.ExportExecute, api.EncodeI32(35))
	require.NoError(t, err)
	assert.Equal(t, int32(42), api.DecodeI32(res[0]))

	require.NoError(t, h.Destroy(ctx))
	assert.False(t, h.IsValid())
	assert.Equal(t, uint32(0), liveCount(t, inst))

	// A second destroy must not reach the guest, or live would wrap.
	require.NoError(t, h.Destroy(ctx))
	assert.Equal(t, uint32(0), liveCount(t, inst))

	_, err = h.Address()
	require.ErrorIs(t, err, errors.ErrUseAfterInvalidation)

	_, err = inst.Invoke(ctx, h, demo.ExportExecute, api.EncodeI32(1))
	require.ErrorIs(t, err, errors.ErrUseAfterInvalidation)
}

func TestInstance_NullAddressFailsConstruction(t *testing.T) {
	ctx := context.Background()
	inst := newDemo(t)

	h, err := handle.Create(ctx, inst, seed(0))
	require.Nil(t, h)
	require.ErrorIs(t, err, errors.ErrConstructionFailed)
	assert.Equal(t, uint32(0), liveCount(t, inst))
}

func TestInstance_ParamCountMismatch(t *testing.T) {
	ctx := context.Background()
	inst := newDemo(t)

	h, err := handle.Create(ctx, inst, []uint64{1, 2})
	require.Nil(t, h)
	require.ErrorIs(t, err, errors.ErrConstructionFailed)

	var herr *errors.Error
	require.ErrorAs(t, err, &herr)
	require.ErrorAs(t, herr.Cause, &herr)
	assert.Equal(t, errors.KindInvalidInput, herr.Kind)
}

func TestInstance_DistinctAddresses(t *testing.T) {
	ctx := context.Background()
	inst := newDemo(t)
	scope := handle.NewScope()

	seen := make(map[wasmhandle.Address]bool)
	for i := int32(1); i <= 5; i++ {
		h, err := handle.CreateIn(ctx, scope, inst, seed(i))
		require.NoError(t, err)
		addr := h.MustAddress()
		require.False(t, seen[addr], "address %#x handed out twice", addr)
		seen[addr] = true

		res, err := inst.Invoke(ctx, h, demo.ExportExecute, api.EncodeI32(0))
		require.NoError(t, err)
		assert.Equal(t, i, api.DecodeI32(res[0]))
	}
	assert.Equal(t, uint32(5), liveCount(t, inst))

	require.NoError(t, scope.Close(ctx))
	assert.Equal(t, uint32(0), liveCount(t, inst))
}

func TestInstance_Trap(t *testing.T) {
	ctx := context.Background()
	inst := newDemo(t)

	_, err := inst.Call(ctx, demo.ExportTrap)
	require.Error(t, err)

	var herr *errors.Error
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, errors.KindTrap, herr.Kind)
	assert.Equal(t, errors.PhaseInvoke, herr.Phase)

	// The instance stays usable after a trap.
	h, err := handle.Create(ctx, inst, seed(3))
	require.NoError(t, err)
	require.NoError(t, h.Destroy(ctx))
}

func TestInstance_MissingExport(t *testing.T) {
	ctx := context.Background()
	inst := newDemo(t)

	_, err := inst.Call(ctx, "nope")
	var herr *errors.Error
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, errors.KindNotFound, herr.Kind)

	h, err := handle.Create(ctx, inst, seed(1))
	require.NoError(t, err)
	defer h.Close()

	_, err = inst.Invoke(ctx, h, "nope")
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, errors.KindNotFound, herr.Kind)

	_, err = inst.Invoke(ctx, h, demo.ExportExecute)
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, errors.KindInvalidInput, herr.Kind)
}

func TestInstance_Close(t *testing.T) {
	ctx := context.Background()
	inst := newDemo(t)

	h, err := handle.Create(ctx, inst, seed(9))
	require.NoError(t, err)

	require.NoError(t, inst.Close(ctx))
	require.NoError(t, inst.Close(ctx))

	err = h.Destroy(ctx)
	require.ErrorIs(t, err, errors.ErrDestroyFailed)
	assert.False(t, h.IsValid())

	_, err = handle.Create(ctx, inst, seed(1))
	require.ErrorIs(t, err, errors.ErrConstructionFailed)
}

func TestInstance_ConcurrentHandles(t *testing.T) {
	ctx := context.Background()
	inst := newDemo(t)

	var wg sync.WaitGroup
	for i := int32(1); i <= 32; i++ {
		wg.Add(1)
		go func(v int32) {
			defer wg.Done()
			err := handle.With(ctx, inst, seed(v), func(h *handle.Handle) error {
				res, err := inst.Invoke(ctx, h, demo.ExportExecute, api.EncodeI32(v))
				if err != nil {
					return err
				}
				if got := api.DecodeI32(res[0]); got != 2*v {
					return stderrors.New("unexpected execute result")
				}
				return nil
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, uint32(0), liveCount(t, inst))
}

func TestInstance_IndependentState(t *testing.T) {
	ctx := context.Background()
	eng, err := NewEngine(ctx, nil)
	require.NoError(t, err)
	defer eng.Close(ctx)

	mod, err := eng.Compile(ctx, demo.Binary())
	require.NoError(t, err)

	a, err := mod.Instantiate(ctx, nil)
	require.NoError(t, err)
	defer a.Close(ctx)
	b, err := mod.Instantiate(ctx, nil)
	require.NoError(t, err)
	defer b.Close(ctx)

	ha, err := handle.Create(ctx, a, seed(1))
	require.NoError(t, err)
	defer ha.Close()
	hb, err := handle.Create(ctx, b, seed(2))
	require.NoError(t, err)
	defer hb.Close()

	assert.Equal(t, ha.MustAddress(), hb.MustAddress())
	assert.Same(t, mod, a.Module())
}

func TestInstance_RejectsForeignHandle(t *testing.T) {
	ctx := context.Background()
	eng, err := NewEngine(ctx, nil)
	require.NoError(t, err)
	defer eng.Close(ctx)

	mod, err := eng.Compile(ctx, demo.Binary())
	require.NoError(t, err)

	a, err := mod.Instantiate(ctx, nil)
	require.NoError(t, err)
	defer a.Close(ctx)
	b, err := mod.Instantiate(ctx, nil)
	require.NoError(t, err)
	defer b.Close(ctx)

	ha, err := handle.Create(ctx, a, seed(7), handle.WithLabel("a-cell"))
	require.NoError(t, err)
	defer ha.Close()

	// Both instances hand out the same first address, so only ownership
	// tells the handles apart.
	res, err := b.Invoke(ctx, ha, demo.ExportExecute, api.EncodeI32(35))
	require.Nil(t, res)
	var herr *errors.Error
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, errors.KindInvalidInput, herr.Kind)
	assert.Equal(t, "a-cell", herr.Handle)

	counter := wasmhandle.Funcs[int]{
		CreateFunc: func(context.Context, int) (wasmhandle.Address, error) { return demo.FirstAddress, nil },
	}
	hc, err := handle.Create(ctx, counter, 0)
	require.NoError(t, err)
	defer hc.Close()

	_, err = a.Invoke(ctx, hc, demo.ExportExecute, api.EncodeI32(35))
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, errors.KindInvalidInput, herr.Kind)

	// The owner still works and its resource was untouched.
	res, err = a.Invoke(ctx, ha, demo.ExportExecute, api.EncodeI32(35))
	require.NoError(t, err)
	assert.Equal(t, int32(42), api.DecodeI32(res[0]))
	assert.Equal(t, uint32(0), liveCount(t, b))
}

func TestModule_Instantiate_BadExports(t *testing.T) {
	ctx := context.Background()
	eng, err := NewEngine(ctx, nil)
	require.NoError(t, err)
	defer eng.Close(ctx)

	mod, err := eng.Compile(ctx, demo.Binary())
	require.NoError(t, err)

	tests := []struct {
		name string
		cfg  InstanceConfig
		kind errors.Kind
	}{
		{"missing factory", InstanceConfig{CreateExport: "alloc"}, errors.KindNotFound},
		{"missing destructor", InstanceConfig{DestroyExport: "free"}, errors.KindNotFound},
		{"factory without result", InstanceConfig{CreateExport: demo.ExportTrap}, errors.KindInvalidData},
		{"destructor without address", InstanceConfig{DestroyExport: demo.ExportLive}, errors.KindInvalidData},
		{"destructor with extra params", InstanceConfig{DestroyExport: demo.ExportExecute}, errors.KindInvalidData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst, err := mod.Instantiate(ctx, &tt.cfg)
			require.Nil(t, inst)

			var herr *errors.Error
			require.ErrorAs(t, err, &herr)
			assert.Equal(t, tt.kind, herr.Kind)
			assert.Equal(t, errors.PhaseLoad, herr.Phase)
		})
	}
}

func TestModule_Exports(t *testing.T) {
	ctx := context.Background()
	eng, err := NewEngine(ctx, nil)
	require.NoError(t, err)
	defer eng.Close(ctx)

	mod, err := eng.Compile(ctx, demo.Binary())
	require.NoError(t, err)

	assert.Equal(t, []string{"create", "destroy", "execute", "live", "trap"}, mod.Exports())
	assert.Len(t, mod.ID(), 12)

	params, results, ok := mod.Signature(demo.ExportExecute)
	require.True(t, ok)
	assert.Equal(t, []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, params)
	assert.Equal(t, []api.ValueType{api.ValueTypeI32}, results)

	_, _, ok = mod.Signature("nope")
	assert.False(t, ok)
}

func TestEngine_Compile(t *testing.T) {
	ctx := context.Background()
	eng, err := NewEngine(ctx, &EngineConfig{MemoryLimitPages: 16})
	require.NoError(t, err)

	first, err := eng.Compile(ctx, demo.Binary())
	require.NoError(t, err)
	second, err := eng.Compile(ctx, demo.Binary())
	require.NoError(t, err)
	assert.Same(t, first, second)

	var herr *errors.Error
	_, err = eng.Compile(ctx, nil)
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, errors.KindInvalidInput, herr.Kind)

	_, err = eng.Compile(ctx, []byte{0x00, 0x61, 0x73, 0x6d, 0x02})
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, errors.KindInvalidData, herr.Kind)

	require.NoError(t, eng.Close(ctx))
	require.NoError(t, eng.Close(ctx))

	_, err = eng.Compile(ctx, demo.Binary())
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, errors.KindClosed, herr.Kind)

	_, err = first.Instantiate(ctx, nil)
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, errors.KindClosed, herr.Kind)
}

func TestLoad_Once(t *testing.T) {
	ctx := context.Background()

	engines := make([]*Engine, 16)
	var wg sync.WaitGroup
	for i := range engines {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			eng, err := Load(ctx)
			assert.NoError(t, err)
			engines[i] = eng
		}(i)
	}
	wg.Wait()

	for _, eng := range engines {
		assert.Same(t, engines[0], eng)
	}

	// Closing the shared engine is a no-op.
	require.NoError(t, engines[0].Close(ctx))
	mod, err := engines[0].Compile(ctx, demo.Binary())
	require.NoError(t, err)

	inst, err := mod.Instantiate(ctx, nil)
	require.NoError(t, err)
	defer inst.Close(ctx)

	err = handle.With(ctx, inst, seed(5), func(h *handle.Handle) error {
		_, err := inst.Invoke(ctx, h, demo.ExportExecute, api.EncodeI32(1))
		return err
	})
	require.NoError(t, err)
}

func TestParseParams(t *testing.T) {
	tests := []struct {
		name   string
		types  []string
		values []string
		want   []uint64
	}{
		{"s32", []string{"s32"}, []string{"-1"}, []uint64{api.EncodeI32(-1)}},
		{"u32 hex", []string{"u32"}, []string{"0x10"}, []uint64{16}},
		{"bool", []string{"bool"}, []string{"true"}, []uint64{1}},
		{"s64", []string{"s64"}, []string{"-2"}, []uint64{api.EncodeI64(-2)}},
		{"u64", []string{"u64"}, []string{"18446744073709551615"}, []uint64{^uint64(0)}},
		{"f32", []string{"f32"}, []string{"1.5"}, []uint64{api.EncodeF32(1.5)}},
		{"f64", []string{"f64"}, []string{"2.25"}, []uint64{api.EncodeF64(2.25)}},
		{"char literal", []string{"char"}, []string{"a"}, []uint64{'a'}},
		{"char multibyte", []string{"char"}, []string{"é"}, []uint64{0xE9}},
		{"char code point", []string{"char"}, []string{"0x1F600"}, []uint64{0x1F600}},
		{"mixed", []string{"u8", " s16 "}, []string{"255", "-3"}, []uint64{255, api.EncodeI32(-3)}},
		{"empty", nil, nil, []uint64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseParams(tt.types, tt.values)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseParams_Errors(t *testing.T) {
	tests := []struct {
		name   string
		types  []string
		values []string
	}{
		{"count mismatch", []string{"s32"}, nil},
		{"unknown type", []string{"invalid-type-xyz"}, []string{"1"}},
		{"out of range", []string{"u8"}, []string{"256"}},
		{"not a number", []string{"s32"}, []string{"seven"}},
		{"not scalar", []string{"string"}, []string{"hi"}},
		{"char surrogate", []string{"char"}, []string{"0xD800"}},
		{"char out of range", []string{"char"}, []string{"0x110000"}},
		{"char invalid utf8", []string{"char"}, []string{"\xff"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseParams(tt.types, tt.values)
			var herr *errors.Error
			require.ErrorAs(t, err, &herr)
			assert.Equal(t, errors.KindInvalidInput, herr.Kind)
			assert.Equal(t, errors.PhaseInput, herr.Phase)
		})
	}
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, SplitList(""))
	assert.Nil(t, SplitList("  "))
	assert.Equal(t, []string{"s32", "u64"}, SplitList("s32, u64"))
}
