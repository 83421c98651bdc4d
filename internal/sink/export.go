// Package sink writes aggregated result trees to disk
package sink

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	parquet "github.com/parquet-go/parquet-go"

	"diagxml/internal/tree"
)

// Format selects the output encoding
type Format string

const (
	FormatJSON    Format = "json"
	FormatParquet Format = "parquet"
	FormatCSV     Format = "csv"
)

// ParseFormat validates a format name
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatJSON, FormatParquet, FormatCSV:
		return f, nil
	}
	return "", fmt.Errorf("unknown output format %q (json, parquet or csv)", s)
}

// Extension returns the file extension of f including the dot
func (f Format) Extension() string {
	return "." + string(f)
}

// Write exports t to filename in format f
func Write(filename string, f Format, t *tree.Tree) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create %s file: %w", f, err)
	}
	defer file.Close()

	switch f {
	case FormatJSON:
		err = WriteJSON(file, t)
	case FormatParquet:
		err = WriteParquet(file, t)
	case FormatCSV:
		err = WriteCSV(file, t)
	default:
		err = fmt.Errorf("unknown output format %q", f)
	}
	if err != nil {
		return err
	}
	return file.Close()
}

// WriteJSON encodes t as one JSON object keeping the tree's key order.
// Complex values become {"real": x, "imag": y} and non-finite floats are
// written as the strings "NaN", "Infinity" and "-Infinity".
func WriteJSON(w io.Writer, t *tree.Tree) error {
	v, err := jsonValue(t)
	if err != nil {
		return err
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

type number float64

func (n number) MarshalJSON() ([]byte, error) {
	f := float64(n)
	switch {
	case math.IsNaN(f):
		return []byte(`"NaN"`), nil
	case math.IsInf(f, 1):
		return []byte(`"Infinity"`), nil
	case math.IsInf(f, -1):
		return []byte(`"-Infinity"`), nil
	}
	return strconv.AppendFloat(nil, f, 'g', -1, 64), nil
}

type complexValue struct {
	Real number `json:"real"`
	Imag number `json:"imag"`
}

func newComplex(c complex128) complexValue {
	return complexValue{Real: number(real(c)), Imag: number(imag(c))}
}

// object is a JSON object that keeps insertion order
type object struct {
	keys   []string
	values []any
}

func (o object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(o.values[i])
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func mapSlice[T, U any](in []T, fn func(T) U) []U {
	out := make([]U, len(in))
	for i, v := range in {
		out[i] = fn(v)
	}
	return out
}

func toNumber(f float64) number { return number(f) }

func jsonValue(v any) (any, error) {
	switch x := v.(type) {
	case *tree.Tree:
		o := object{keys: x.Keys()}
		for _, k := range o.keys {
			child, _ := x.Get(k)
			jv, err := jsonValue(child)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			o.values = append(o.values, jv)
		}
		return o, nil
	case string, bool, int, []string:
		return x, nil
	case float64:
		return number(x), nil
	case complex128:
		return newComplex(x), nil
	case []float64:
		return mapSlice(x, toNumber), nil
	case []complex128:
		return mapSlice(x, newComplex), nil
	case [][]float64:
		return mapSlice(x, func(row []float64) []number { return mapSlice(row, toNumber) }), nil
	case [][]complex128:
		return mapSlice(x, func(row []complex128) []complexValue { return mapSlice(row, newComplex) }), nil
	}
	return nil, fmt.Errorf("unsupported value type %T", v)
}

// Row is one element of a flattened tree. Path joins the tree keys with "/";
// Row and Col locate the element inside a slice leaf. String leaves fill
// Text and leave the numeric columns zero.
type Row struct {
	Path string  `parquet:"path,dict"`
	Row  int32   `parquet:"row"`
	Col  int32   `parquet:"col"`
	Real float64 `parquet:"real"`
	Imag float64 `parquet:"imag"`
	Text string  `parquet:"text"`
}

// Rows flattens t into one row per leaf element in tree order
func Rows(t *tree.Tree) ([]Row, error) {
	var out []Row
	err := t.Walk(func(path []string, v any) error {
		p := strings.Join(path, "/")
		switch x := v.(type) {
		case string:
			out = append(out, Row{Path: p, Text: x})
		case bool:
			out = append(out, Row{Path: p, Text: strconv.FormatBool(x)})
		case int:
			out = append(out, Row{Path: p, Real: float64(x)})
		case float64:
			out = append(out, Row{Path: p, Real: x})
		case complex128:
			out = append(out, Row{Path: p, Real: real(x), Imag: imag(x)})
		case []string:
			for j, s := range x {
				out = append(out, Row{Path: p, Col: int32(j), Text: s})
			}
		case []float64:
			out = appendReal(out, p, 0, x)
		case []complex128:
			out = appendComplex(out, p, 0, x)
		case [][]float64:
			for i, row := range x {
				out = appendReal(out, p, int32(i), row)
			}
		case [][]complex128:
			for i, row := range x {
				out = appendComplex(out, p, int32(i), row)
			}
		default:
			return fmt.Errorf("%s: unsupported value type %T", p, v)
		}
		return nil
	})
	return out, err
}

func appendReal(out []Row, path string, row int32, values []float64) []Row {
	for j, v := range values {
		out = append(out, Row{Path: path, Row: row, Col: int32(j), Real: v})
	}
	return out
}

func appendComplex(out []Row, path string, row int32, values []complex128) []Row {
	for j, v := range values {
		out = append(out, Row{Path: path, Row: row, Col: int32(j), Real: real(v), Imag: imag(v)})
	}
	return out
}

// WriteParquet writes the flattened rows of t as a snappy-compressed parquet file
func WriteParquet(w io.Writer, t *tree.Tree) error {
	rows, err := Rows(t)
	if err != nil {
		return err
	}
	pw := parquet.NewGenericWriter[Row](w, parquet.Compression(&parquet.Snappy))
	if _, err := pw.Write(rows); err != nil {
		return fmt.Errorf("failed to write parquet rows: %w", err)
	}
	if err := pw.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return nil
}

// ReadParquet reads back rows written by WriteParquet
func ReadParquet(r io.ReaderAt) ([]Row, error) {
	gr := parquet.NewGenericReader[Row](r)
	defer gr.Close()

	out := make([]Row, 0, gr.NumRows())
	batch := make([]Row, 1024)
	for {
		n, err := gr.Read(batch)
		if n > 0 {
			out = append(out, batch[:n]...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// WriteCSV writes the flattened rows of t with a header line
func WriteCSV(w io.Writer, t *tree.Tree) error {
	rows, err := Rows(t)
	if err != nil {
		return err
	}
	writer := csv.NewWriter(w)
	writer.Write([]string{"path", "row", "col", "real", "imag", "text"})
	for _, r := range rows {
		writer.Write([]string{
			r.Path,
			strconv.Itoa(int(r.Row)),
			strconv.Itoa(int(r.Col)),
			strconv.FormatFloat(r.Real, 'g', -1, 64),
			strconv.FormatFloat(r.Imag, 'g', -1, 64),
			r.Text,
		})
	}
	writer.Flush()
	return writer.Error()
}
