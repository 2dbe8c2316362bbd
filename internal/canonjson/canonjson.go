// Package canonjson writes JSON in the byte-exact layout that result digests
// are computed over: ", " and ": " separators, ASCII-only output with
// lowercase \uXXXX escapes, and floats in shortest round-trip form that always
// carry a fractional part or an exponent.
//
// The layout matches the grading files produced by earlier versions of the
// quiz, so digests computed here verify those files and vice versa.
package canonjson

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode/utf16"
)

// Member is a single key/value pair of an Object.
type Member struct {
	Key   string
	Value any
}

// Object is a JSON object that keeps its members in insertion order unless
// it is written with MarshalSorted.
type Object []Member

// Get returns the value stored under key.
func (o Object) Get(key string) (any, bool) {
	for _, m := range o {
		if m.Key == key {
			return m.Value, true
		}
	}
	return nil, false
}

// Marshal encodes v keeping Object members in insertion order.
// Go maps are always written with sorted keys.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := encode(&buf, v, false); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MarshalSorted encodes v with the keys of every object, at every depth,
// sorted by code point.
func MarshalSorted(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := encode(&buf, v, true); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encode(buf *bytes.Buffer, v any, sorted bool) error {
	switch x := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if x {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case string:
		writeString(buf, x)
	case int:
		buf.WriteString(strconv.Itoa(x))
	case int64:
		buf.WriteString(strconv.FormatInt(x, 10))
	case float64:
		buf.WriteString(FormatFloat(x))
	case *float64:
		if x == nil {
			buf.WriteString("null")
		} else {
			buf.WriteString(FormatFloat(*x))
		}
	case json.Number:
		// Numbers read back from a payload are written verbatim so a
		// re-encoded record reproduces the bytes it was hashed from.
		buf.WriteString(x.String())
	case []any:
		return encodeArray(buf, len(x), func(i int) any { return x[i] }, sorted)
	case []float64:
		return encodeArray(buf, len(x), func(i int) any { return x[i] }, sorted)
	case []string:
		return encodeArray(buf, len(x), func(i int) any { return x[i] }, sorted)
	case []Object:
		return encodeArray(buf, len(x), func(i int) any { return x[i] }, sorted)
	case Object:
		members := x
		if sorted {
			members = make(Object, len(x))
			copy(members, x)
			sort.SliceStable(members, func(i, j int) bool { return members[i].Key < members[j].Key })
		}
		return encodeObject(buf, members, sorted)
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		members := make(Object, 0, len(keys))
		for _, k := range keys {
			members = append(members, Member{Key: k, Value: x[k]})
		}
		return encodeObject(buf, members, sorted)
	default:
		return fmt.Errorf("canonjson: unsupported type %T", v)
	}
	return nil
}

func encodeArray(buf *bytes.Buffer, n int, at func(int) any, sorted bool) error {
	buf.WriteByte('[')
	for i := 0; i < n; i++ {
		if i > 0 {
			buf.WriteString(", ")
		}
		if err := encode(buf, at(i), sorted); err != nil {
			return err
		}
	}
	buf.WriteByte(']')
	return nil
}

func encodeObject(buf *bytes.Buffer, members Object, sorted bool) error {
	buf.WriteByte('{')
	for i, m := range members {
		if i > 0 {
			buf.WriteString(", ")
		}
		writeString(buf, m.Key)
		buf.WriteString(": ")
		if err := encode(buf, m.Value, sorted); err != nil {
			return fmt.Errorf("key %q: %w", m.Key, err)
		}
	}
	buf.WriteByte('}')
	return nil
}

// FormatFloat renders f as the shortest decimal that round-trips, with a
// trailing ".0" for integral values and exponent notation for magnitudes
// below 1e-4 or at or above 1e16.
func FormatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}

	sci := strconv.FormatFloat(f, 'e', -1, 64)
	exp, err := strconv.Atoi(sci[strings.IndexByte(sci, 'e')+1:])
	if err == nil && (exp < -4 || exp >= 16) {
		return sci
	}

	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsRune(s, '.') {
		s += ".0"
	}
	return s
}

const hexDigits = "0123456789abcdef"

func writeString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		default:
			switch {
			case r >= 0x20 && r <= 0x7e:
				buf.WriteRune(r)
			case r > 0xffff:
				hi, lo := utf16.EncodeRune(r)
				writeEscape(buf, hi)
				writeEscape(buf, lo)
			default:
				writeEscape(buf, r)
			}
		}
	}
	buf.WriteByte('"')
}

func writeEscape(buf *bytes.Buffer, r rune) {
	buf.WriteString(`\u`)
	buf.WriteByte(hexDigits[(r>>12)&0xf])
	buf.WriteByte(hexDigits[(r>>8)&0xf])
	buf.WriteByte(hexDigits[(r>>4)&0xf])
	buf.WriteByte(hexDigits[r&0xf])
}
