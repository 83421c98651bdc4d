package records

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// CheckScalars compares window, averages and bandwidth and reports the first
// field that differs. The acquisition time is not compared.
func (m Meta) CheckScalars(other Meta) error {
	if m.Window != other.Window {
		return &MetadataMismatchError{Field: "window", A: m.Window, B: other.Window}
	}
	if m.Averages != other.Averages {
		return &MetadataMismatchError{Field: "averages", A: m.Averages, B: other.Averages}
	}
	if m.HasBandwidth != other.HasBandwidth || (m.HasBandwidth && m.Bandwidth != other.Bandwidth) {
		return &MetadataMismatchError{Field: "BW", A: bandwidthString(m), B: bandwidthString(other)}
	}
	return nil
}

// Check is CheckScalars followed by an element-wise comparison of the
// frequency axes.
func (m Meta) Check(other Meta) error {
	if err := m.CheckScalars(other); err != nil {
		return err
	}
	if !floats.Same(m.Freq, other.Freq) {
		return &MetadataMismatchError{Field: "FHz", A: axisString(m.Freq), B: axisString(other.Freq)}
	}
	return nil
}

func bandwidthString(m Meta) string {
	if !m.HasBandwidth {
		return "unset"
	}
	return fmt.Sprintf("%g", m.Bandwidth)
}

func axisString(freq []float64) string {
	if len(freq) == 0 {
		return "[]"
	}
	return fmt.Sprintf("[%d bins %g..%g]", len(freq), freq[0], freq[len(freq)-1])
}
