package records

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// Array element type names used in the container's Array Type attribute
const (
	TypeFloat   = "float"
	TypeComplex = "floatComplex"
)

// decodeStream strips whitespace from a base64 payload and decodes it
func decodeStream(text string) ([]byte, error) {
	clean := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, text)
	buf, err := base64.StdEncoding.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64 stream: %v", ErrMalformedContainer, err)
	}
	return buf, nil
}

// float32s interprets buf as little-endian float32 samples
func float32s(buf []byte) ([]float64, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("%w: stream length %d is not a multiple of 4", ErrMalformedContainer, len(buf))
	}
	raw := make([]float32, len(buf)/4)
	if err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, raw); err != nil {
		return nil, fmt.Errorf("failed to read float samples: %w", err)
	}
	out := make([]float64, len(raw))
	for i, v := range raw {
		out[i] = float64(v)
	}
	return out, nil
}

// complex64s interprets buf as little-endian pairs of float32 (real, imaginary)
func complex64s(buf []byte) ([]complex128, error) {
	if len(buf)%8 != 0 {
		return nil, fmt.Errorf("%w: stream length %d is not a multiple of 8", ErrMalformedContainer, len(buf))
	}
	raw := make([]complex64, len(buf)/8)
	if err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, raw); err != nil {
		return nil, fmt.Errorf("failed to read complex samples: %w", err)
	}
	out := make([]complex128, len(raw))
	for i, v := range raw {
		out[i] = complex128(v)
	}
	return out, nil
}

// readStream decodes the Array payload of a measurement node as a flat
// sequence. The element type is chosen by the caller from the subtype code.
func readStream(n *Node, isComplex bool) (*Array, error) {
	arr := n.First("Array")
	if arr == nil {
		return nil, &MissingFieldError{Node: n.Name(), Field: "Array"}
	}
	stream := arr.First("Stream")
	if stream == nil {
		return nil, &MissingFieldError{Node: n.Name(), Field: "Stream"}
	}
	buf, err := decodeStream(stream.Text)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", n.Name(), err)
	}

	out := &Array{Complex: isComplex}
	if isComplex {
		out.Values, err = complex64s(buf)
	} else {
		out.Real, err = float32s(buf)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", n.Name(), err)
	}
	out.Shape = []int{out.Len()}
	return out, nil
}

// readShapedArray decodes the Array payload using the element type named by
// its Type attribute and the shape given by its Dim children.
func readShapedArray(n *Node) (*Array, error) {
	arr := n.First("Array")
	if arr == nil {
		return nil, &MissingFieldError{Node: n.Name(), Field: "Array"}
	}
	t := arr.Attr("Type")
	if t != TypeFloat && t != TypeComplex {
		return nil, fmt.Errorf("%w: %s: unsupported array type %q", ErrMalformedContainer, n.Name(), t)
	}
	out, err := readStream(n, t == TypeComplex)
	if err != nil {
		return nil, err
	}

	var shape []int
	for _, d := range arr.All("Dim") {
		v, err := strconv.Atoi(d.Value())
		if err != nil || v < 0 {
			return nil, fmt.Errorf("%w: %s: invalid Dim %q", ErrMalformedContainer, n.Name(), d.Value())
		}
		shape = append(shape, v)
	}
	if len(shape) == 0 {
		return out, nil
	}
	size := 1
	for _, d := range shape {
		if d != 0 && size > math.MaxInt/d {
			return nil, fmt.Errorf("%w: %s: shape %v overflows", ErrMalformedContainer, n.Name(), shape)
		}
		size *= d
	}
	if size != out.Len() {
		return nil, fmt.Errorf("%w: %s: shape %v does not match %d samples", ErrMalformedContainer, n.Name(), shape, out.Len())
	}
	out.Shape = shape
	return out, nil
}

// reshape splits data into rows of equal length
func reshape[T any](data []T, rows int) ([][]T, error) {
	if rows <= 0 {
		return nil, fmt.Errorf("%w: invalid row count %d", ErrMalformedContainer, rows)
	}
	if len(data)%rows != 0 {
		return nil, fmt.Errorf("%w: %d samples cannot be split into %d rows", ErrMalformedContainer, len(data), rows)
	}
	width := len(data) / rows
	out := make([][]T, rows)
	for i := range out {
		out[i] = data[i*width : (i+1)*width : (i+1)*width]
	}
	return out, nil
}

func realParts(data []complex128) []float64 {
	out := make([]float64, len(data))
	for i, v := range data {
		out[i] = real(v)
	}
	return out
}

// linspace returns n points starting at start spaced by step
func linspace(start, step float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + step*float64(i)
	}
	return out
}
