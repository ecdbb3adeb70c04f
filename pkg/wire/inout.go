// Package wire implements the engine's binary persistence primitives: a
// fixed little-endian width for scalars, and length-prefixed encodings for
// strings, vectors and maps. Grounded on the length-prefix vector pattern in
// internal/encoding/utils.go (EncodeVector/DecodeVector), generalised to the
// full set of primitives original_source/src/inOut.h writes.
package wire

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"math"
)

// ErrNegativeLength is returned when a length prefix decodes to a negative
// value, which can only mean a corrupt or truncated stream.
var ErrNegativeLength = errors.New("wire: negative length prefix")

func WriteI32(w io.Writer, v int32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(v))
	_, err := w.Write(buf[:])
	return err
}

func ReadI32(r io.Reader) (int32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(buf[:])), nil
}

func WriteF32(w io.Writer, v float32) error {
	return WriteI32(w, int32(math.Float32bits(v)))
}

func ReadF32(r io.Reader) (float32, error) {
	v, err := ReadI32(r)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(uint32(v)), nil
}

func WriteBool(w io.Writer, v bool) error {
	var b [1]byte
	if v {
		b[0] = 1
	}
	_, err := w.Write(b[:])
	return err
}

func ReadBool(r io.Reader) (bool, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return false, err
	}
	return b[0] != 0, nil
}

// WriteString writes a narrow (byte-per-char) length-prefixed string.
func WriteString(w io.Writer, s string) error {
	if err := WriteI32(w, int32(len(s))); err != nil {
		return err
	}
	_, err := w.Write([]byte(s))
	return err
}

// ReadString reads a narrow length-prefixed string.
func ReadString(r io.Reader) (string, error) {
	n, err := ReadI32(r)
	if err != nil {
		return "", err
	}
	if n < 0 {
		return "", ErrNegativeLength
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// WriteWString writes a wide string: one rune per unit, 4 bytes per unit,
// modelling the original's wstring width on the common Linux 4-byte
// wchar_t. See SPEC_FULL.md §External Interfaces for the assumption.
func WriteWString(w io.Writer, s string) error {
	runes := []rune(s)
	if err := WriteI32(w, int32(len(runes))); err != nil {
		return err
	}
	for _, r := range runes {
		if err := WriteI32(w, int32(r)); err != nil {
			return err
		}
	}
	return nil
}

func ReadWString(r io.Reader) (string, error) {
	n, err := ReadI32(r)
	if err != nil {
		return "", err
	}
	if n < 0 {
		return "", ErrNegativeLength
	}
	runes := make([]rune, n)
	for i := range runes {
		v, err := ReadI32(r)
		if err != nil {
			return "", err
		}
		runes[i] = rune(v)
	}
	return string(runes), nil
}

func WriteVecF32(w io.Writer, v []float32) error {
	if err := WriteI32(w, int32(len(v))); err != nil {
		return err
	}
	for _, f := range v {
		if err := WriteF32(w, f); err != nil {
			return err
		}
	}
	return nil
}

func ReadVecF32(r io.Reader) ([]float32, error) {
	n, err := ReadI32(r)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, ErrNegativeLength
	}
	v := make([]float32, n)
	for i := range v {
		if v[i], err = ReadF32(r); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func WriteVecI32(w io.Writer, v []int32) error {
	if err := WriteI32(w, int32(len(v))); err != nil {
		return err
	}
	for _, n := range v {
		if err := WriteI32(w, n); err != nil {
			return err
		}
	}
	return nil
}

func ReadVecI32(r io.Reader) ([]int32, error) {
	n, err := ReadI32(r)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, ErrNegativeLength
	}
	v := make([]int32, n)
	for i := range v {
		if v[i], err = ReadI32(r); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func WriteVecByte(w io.Writer, v []byte) error {
	if err := WriteI32(w, int32(len(v))); err != nil {
		return err
	}
	_, err := w.Write(v)
	return err
}

func ReadVecByte(r io.Reader) ([]byte, error) {
	n, err := ReadI32(r)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, ErrNegativeLength
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// WriteStringMap writes a map[string]int32 as a length-prefixed sequence of
// (wide string, i32) pairs — the column value->id map's wire shape.
func WriteStringMap(w io.Writer, m map[string]int32) error {
	bw := bufio.NewWriter(w)
	if err := WriteI32(bw, int32(len(m))); err != nil {
		return err
	}
	for k, v := range m {
		if err := WriteWString(bw, k); err != nil {
			return err
		}
		if err := WriteI32(bw, v); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func ReadStringMap(r io.Reader) (map[string]int32, error) {
	n, err := ReadI32(r)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, ErrNegativeLength
	}
	m := make(map[string]int32, n)
	for i := int32(0); i < n; i++ {
		k, err := ReadWString(r)
		if err != nil {
			return nil, err
		}
		v, err := ReadI32(r)
		if err != nil {
			return nil, err
		}
		m[k] = v
	}
	return m, nil
}

// WriteIntStringMap writes the inverse map[int32]string (id -> value).
func WriteIntStringMap(w io.Writer, m map[int32]string) error {
	bw := bufio.NewWriter(w)
	if err := WriteI32(bw, int32(len(m))); err != nil {
		return err
	}
	for k, v := range m {
		if err := WriteI32(bw, k); err != nil {
			return err
		}
		if err := WriteWString(bw, v); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func ReadIntStringMap(r io.Reader) (map[int32]string, error) {
	n, err := ReadI32(r)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, ErrNegativeLength
	}
	m := make(map[int32]string, n)
	for i := int32(0); i < n; i++ {
		k, err := ReadI32(r)
		if err != nil {
			return nil, err
		}
		v, err := ReadWString(r)
		if err != nil {
			return nil, err
		}
		m[k] = v
	}
	return m, nil
}
