// Package recordstest builds diagnostics XML documents for tests
package recordstest

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"diagxml/internal/records"
)

// Param is one Param child of a measurement node
type Param struct {
	Name  string
	Type  string
	Value string
}

// Int returns an integer parameter
func Int(name string, v int) Param {
	return Param{Name: name, Type: "int", Value: strconv.Itoa(v)}
}

// Float returns a double parameter
func Float(name string, v float64) Param {
	return Param{Name: name, Type: "double", Value: strconv.FormatFloat(v, 'g', -1, 64)}
}

// String returns a string parameter
func String(name, v string) Param {
	return Param{Name: name, Type: "string", Value: v}
}

// Measurement describes one top-level LIGO_LW node
type Measurement struct {
	Name      string // e.g. "Result[0]"
	Type      string // Spectrum, TransferFunction, TimeSeries or a coefficient type
	GPS       float64
	Params    []Param
	ArrayType string // float or floatComplex; inferred from the payload when empty
	Dims      []int
	Real      []float32
	Complex   []complex64
}

// XML renders the measurement node
func (m Measurement) XML() string {
	var b strings.Builder
	fmt.Fprintf(&b, "<LIGO_LW Name=%q Type=%q>\n", m.Name, m.Type)
	fmt.Fprintf(&b, "  <Time Name=\"t0\" Type=\"GPS\">%s</Time>\n", strconv.FormatFloat(m.GPS, 'f', -1, 64))
	for _, p := range m.Params {
		fmt.Fprintf(&b, "  <Param Name=%q Type=%q>", p.Name, p.Type)
		xml.EscapeText(&b, []byte(p.Value))
		b.WriteString("</Param>\n")
	}

	arrayType := m.ArrayType
	if arrayType == "" {
		arrayType = records.TypeFloat
		if m.Complex != nil {
			arrayType = records.TypeComplex
		}
	}
	fmt.Fprintf(&b, "  <Array Name=%q Type=%q>\n", m.Name, arrayType)
	for _, d := range m.Dims {
		fmt.Fprintf(&b, "    <Dim>%d</Dim>\n", d)
	}
	fmt.Fprintf(&b, "    <Stream Type=\"Remote\" Encoding=\"LittleEndian,base64\">\n%s\n    </Stream>\n", m.stream())
	b.WriteString("  </Array>\n</LIGO_LW>\n")
	return b.String()
}

// stream encodes the payload and wraps it at 76 columns like the acquisition tool
func (m Measurement) stream() string {
	var buf bytes.Buffer
	if m.Complex != nil {
		_ = binary.Write(&buf, binary.LittleEndian, m.Complex)
	} else {
		_ = binary.Write(&buf, binary.LittleEndian, m.Real)
	}
	enc := base64.StdEncoding.EncodeToString(buf.Bytes())
	var lines []string
	for len(enc) > 76 {
		lines = append(lines, enc[:76])
		enc = enc[76:]
	}
	lines = append(lines, enc)
	return strings.Join(lines, "\n")
}

// Node parses the measurement into a records.Node
func (m Measurement) Node(t testing.TB) *records.Node {
	t.Helper()
	var n records.Node
	if err := xml.Unmarshal([]byte(m.XML()), &n); err != nil {
		t.Fatalf("failed to parse fixture %s: %v", m.Name, err)
	}
	return &n
}

// Document renders a complete container with the given index entry texts
// followed by the measurement nodes.
func Document(entries []string, nodes ...Measurement) string {
	var b strings.Builder
	b.WriteString("<?xml version=\"1.0\"?>\n<LIGO_LW Name=\"Diagnostics\">\n")
	b.WriteString("<LIGO_LW Name=\"Index\" Type=\"Index\">\n")
	for i, e := range entries {
		fmt.Fprintf(&b, "  <Param Name=\"Entry[%d]\" Type=\"string\">", i)
		xml.EscapeText(&b, []byte(e))
		b.WriteString("</Param>\n")
	}
	b.WriteString("</LIGO_LW>\n")
	for _, m := range nodes {
		b.WriteString(m.XML())
	}
	b.WriteString("</LIGO_LW>\n")
	return b.String()
}

// Spectrum returns a value-only spectrum measurement (subtypes 0 to 3)
func Spectrum(name string, subtype int, chA string, chB []string, f0, df float64, n int) Measurement {
	m := Measurement{
		Name: name,
		Type: "Spectrum",
		Params: []Param{
			Int("Subtype", subtype),
			Int("Window", int(records.WindowHanning)),
			Int("AverageType", int(records.AverageFixed)),
			Int("Averages", 10),
			Float("BW", 1.5*df),
			Float("f0", f0),
			Float("df", df),
			Int("N", n),
			Int("M", max(len(chB), 1)),
			String("ChannelA", chA),
		},
	}
	for i, b := range chB {
		m.Params = append(m.Params, String(fmt.Sprintf("ChannelB[%d]", i), b))
	}
	return m
}

// Transfer returns a frequency+value transfer function measurement (subtypes 3 to 5)
func Transfer(name string, subtype int, chA string, chB []string, freq []float32) Measurement {
	m := Measurement{
		Name: name,
		Type: "TransferFunction",
		Params: []Param{
			Int("Subtype", subtype),
			Int("Window", int(records.WindowHanning)),
			Int("AverageType", int(records.AverageFixed)),
			Int("Averages", 10),
			Float("BW", 1.5),
			Int("N", len(freq)),
			Int("M", max(len(chB), 1)),
			String("ChannelA", chA),
		},
	}
	for i, b := range chB {
		m.Params = append(m.Params, String(fmt.Sprintf("ChannelB[%d]", i), b))
	}
	return m
}

// Entry returns an index entry text for a measurement
func Entry(kind string, index int, node string) string {
	return fmt.Sprintf("%s[%d]\nName = %s;\n", kind, index, node)
}
