// Package records decodes the measurement nodes of a diagnostics XML container
// into typed spectral, transfer, time series and coefficient records.
package records

import (
	"fmt"
	"sort"
	"strings"

	"diagxml/internal/tree"
)

// GPSEpochOffset converts GPS seconds to Unix seconds (leap seconds ignored)
const GPSEpochOffset = 315964784

// Kind identifies the quantity a record holds
type Kind int

const (
	KindUnknown Kind = iota
	KindFFT
	KindPSD
	KindCSD
	KindCOH
	KindTF
	KindSTF
	KindTS
	KindTransferCoefficients
	KindHarmonicCoefficients
	KindIntermodulationCoefficients
	KindCoherenceCoefficients
)

var kindNames = map[Kind]string{
	KindUnknown:                     "unknown",
	KindFFT:                         "FFT",
	KindPSD:                         "PSD",
	KindCSD:                         "CSD",
	KindCOH:                         "COH",
	KindTF:                          "TF",
	KindSTF:                         "STF",
	KindTS:                          "TS",
	KindTransferCoefficients:        "TransferCoefficients",
	KindHarmonicCoefficients:        "HarmonicCoefficients",
	KindIntermodulationCoefficients: "IntermodulationCoefficients",
	KindCoherenceCoefficients:       "CoherenceCoefficients",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// IsCoefficients reports whether k is one of the sine-response coefficient tables
func (k Kind) IsCoefficients() bool {
	return k >= KindTransferCoefficients && k <= KindCoherenceCoefficients
}

// CoefficientKind maps an index entry type name to its coefficient kind
func CoefficientKind(entryType string) (Kind, bool) {
	for k := KindTransferCoefficients; k <= KindCoherenceCoefficients; k++ {
		if kindNames[k] == entryType {
			return k, true
		}
	}
	return KindUnknown, false
}

// Window is the FFT window code of a spectral measurement
type Window int

// WindowUnset marks a record without a Window parameter
const WindowUnset Window = -1

const (
	WindowUniform Window = iota
	WindowHanning
	WindowFlatTop
	WindowWelch
	WindowBartlett
	WindowBMH
	WindowHamming
	WindowKaiser
)

var windowNames = []string{"Uniform", "Hanning", "Flat-top", "Welch", "Bartlett", "BMH", "Hamming", "Kaiser"}

func (w Window) String() string {
	if w < 0 || int(w) >= len(windowNames) {
		return "unknown"
	}
	return windowNames[w]
}

// ParseWindow matches a window name case-insensitively
func ParseWindow(name string) (Window, bool) {
	for i, n := range windowNames {
		if strings.EqualFold(n, name) {
			return Window(i), true
		}
	}
	return WindowUnset, false
}

// AverageType is the averaging mode code
type AverageType int

// AverageUnset marks a record without an AverageType parameter
const AverageUnset AverageType = -1

const (
	AverageFixed AverageType = iota
	AverageExponential
	AverageSingle
)

var averageNames = []string{"Fixed", "Exponential", "Single"}

func (a AverageType) String() string {
	if a < 0 || int(a) >= len(averageNames) {
		return "unknown"
	}
	return averageNames[a]
}

// Meta holds the fields compared when checking two results for compatibility
type Meta struct {
	GPSSecond    float64
	Window       Window
	Averages     int
	Bandwidth    float64
	HasBandwidth bool
	Freq         []float64
}

// UTCSecond returns the measurement start as Unix seconds
func (m Meta) UTCSecond() float64 {
	return m.GPSSecond + GPSEpochOffset
}

// Header is the common part of every decoded record
type Header struct {
	Meta
	Kind        Kind
	Subtype     int
	SubtypeName string
	AverageType AverageType
	F0          float64
	DF          float64
}

// Record is implemented by every decoded measurement
type Record interface {
	// Head returns the record's common header
	Head() *Header
	// Primary returns the channel the record is indexed under
	Primary() string
	// Tree renders the record as a result subtree
	Tree() *tree.Tree
}

func (h *Header) Head() *Header { return h }

// Channels is the channel table of a two-channel record. B is ordered by the
// numeric suffix of the ChannelB[n] parameters and Index maps each name back
// to its row.
type Channels struct {
	A     string
	B     []string
	Index map[string]int
}

func (c *Channels) Primary() string { return c.A }

// Row returns the data row for secondary channel name
func (c *Channels) Row(name string) (int, bool) {
	i, ok := c.Index[name]
	return i, ok
}

func newChannels(node, a string, indexed map[int]string) (Channels, error) {
	keys := make([]int, 0, len(indexed))
	for k := range indexed {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	c := Channels{A: a, B: make([]string, 0, len(keys)), Index: make(map[string]int, len(keys))}
	for i, k := range keys {
		name := indexed[k]
		if _, dup := c.Index[name]; dup {
			return Channels{}, fmt.Errorf("%w: %s: channel %q listed twice", ErrMalformedContainer, node, name)
		}
		c.B = append(c.B, name)
		c.Index[name] = i
	}
	return c, nil
}

// Array is a decoded payload together with its declared shape
type Array struct {
	Shape   []int
	Complex bool
	Real    []float64
	Values  []complex128
}

// Len returns the number of samples
func (a *Array) Len() int {
	if a.Complex {
		return len(a.Values)
	}
	return len(a.Real)
}

// Unknown is a record whose subtype code is not recognised
type Unknown struct {
	Header
	Channel string
}

func (u *Unknown) Primary() string { return u.Channel }
