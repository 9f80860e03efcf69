package guest

import (
	stderrors "errors"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/tetratelabs/wazero/api"
	"go.bytecodealliance.org/wit"

	"github.com/wippyai/wasm-handle/errors"
)

// ParseParams converts textual values into raw core values for a guest call.
// Each entry of types is a WIT primitive name ("s32", "u64", "f32", "bool",
// ...). Only types that flatten to a single core value are accepted.
func ParseParams(types, values []string) ([]uint64, error) {
	if len(types) != len(values) {
		return nil, errors.New(errors.PhaseInput, errors.KindInvalidInput).
			Detail("%d types for %d values", len(types), len(values)).
			Build()
	}

	out := make([]uint64, len(values))
	for i, name := range types {
		t, err := wit.ParseType(strings.TrimSpace(name))
		if err != nil {
			return nil, errors.New(errors.PhaseInput, errors.KindInvalidInput).
				Value(name).
				Cause(err).
				Detail("param %d: unknown type", i).
				Build()
		}
		v, err := parseValue(t, strings.TrimSpace(values[i]))
		if err != nil {
			return nil, errors.New(errors.PhaseInput, errors.KindInvalidInput).
				Value(values[i]).
				Cause(err).
				Detail("param %d: invalid %s", i, name).
				Build()
		}
		out[i] = v
	}
	return out, nil
}

var (
	errNotScalar   = stderrors.New("type does not flatten to one core value")
	errInvalidRune = stderrors.New("not a Unicode scalar value")
)

// SplitList splits a comma-separated flag value. Empty input yields nil.
func SplitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseValue(t wit.Type, s string) (uint64, error) {
	switch t.(type) {
	case wit.Bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return 0, err
		}
		if b {
			return 1, nil
		}
		return 0, nil
	case wit.S8:
		n, err := strconv.ParseInt(s, 0, 8)
		return api.EncodeI32(int32(n)), err
	case wit.S16:
		n, err := strconv.ParseInt(s, 0, 16)
		return api.EncodeI32(int32(n)), err
	case wit.S32:
		n, err := strconv.ParseInt(s, 0, 32)
		return api.EncodeI32(int32(n)), err
	case wit.U8:
		n, err := strconv.ParseUint(s, 0, 8)
		return api.EncodeU32(uint32(n)), err
	case wit.U16:
		n, err := strconv.ParseUint(s, 0, 16)
		return api.EncodeU32(uint32(n)), err
	case wit.U32:
		n, err := strconv.ParseUint(s, 0, 32)
		return api.EncodeU32(uint32(n)), err
	case wit.S64:
		n, err := strconv.ParseInt(s, 0, 64)
		return api.EncodeI64(n), err
	case wit.U64:
		return strconv.ParseUint(s, 0, 64)
	case wit.F32:
		f, err := strconv.ParseFloat(s, 32)
		return api.EncodeF32(float32(f)), err
	case wit.Char:
		return parseChar(s)
	case wit.F64:
		f, err := strconv.ParseFloat(s, 64)
		return api.EncodeF64(f), err
	default:
		return 0, errNotScalar
	}
}

// parseChar takes a single character literally; anything longer is read as a
// numeric code point, so "7" is U+0037 and "0x7" is U+0007.
func parseChar(s string) (uint64, error) {
	if !utf8.ValidString(s) {
		return 0, errInvalidRune
	}

	var r rune
	if utf8.RuneCountInString(s) == 1 {
		r, _ = utf8.DecodeRuneInString(s)
	} else {
		n, err := strconv.ParseUint(s, 0, 32)
		if err != nil {
			return 0, err
		}
		r = rune(n)
	}
	if !utf8.ValidRune(r) {
		return 0, errInvalidRune
	}
	return api.EncodeU32(uint32(r)), nil
}
