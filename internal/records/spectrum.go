package records

import (
	"fmt"
)

// FourierSpectrum holds FFT rows, one per secondary channel
type FourierSpectrum struct {
	Header
	Channels
	Values [][]complex128
}

// PowerSpectrum holds the amplitude spectral density of ChannelA
type PowerSpectrum struct {
	Header
	Channels
	Values [][]float64
}

// CrossSpectrum holds cross-spectral density rows of ChannelA against each B channel
type CrossSpectrum struct {
	Header
	Channels
	Values [][]complex128
}

// Coherence holds coherence rows of ChannelA against each B channel
type Coherence struct {
	Header
	Channels
	Values [][]float64
}

// layout describes how a subtype code lays out its payload
type layout struct {
	kind     Kind
	complex  bool
	withFreq bool
	name     string
}

var spectrumLayouts = map[int]layout{
	0: {KindFFT, true, false, "FFT in format (Y)"},
	1: {KindPSD, false, false, "power spectral density in format (Y)"},
	2: {KindCSD, true, false, "cross-power spectrum in format (Y)"},
	3: {KindCOH, false, false, "coherence in format (Y)"},
	4: {KindFFT, true, true, "FFT in format (f, Y)"},
	5: {KindPSD, false, true, "power spectral density in format (f,Y)"},
	6: {KindCSD, true, true, "cross-power spectrum in format (f,Y)"},
	7: {KindCOH, false, true, "coherence in format (f,Y)"},
}

// DecodeSpectrum decodes a Spectrum measurement node into an FFT, PSD, CSD or
// COH record. Unrecognised subtypes yield an *Unknown record.
func DecodeSpectrum(n *Node) (Record, error) {
	p := readParams(n)
	if err := p.require("Subtype"); err != nil {
		return nil, err
	}
	h := readHeader(n, p)
	if p.err != nil {
		return nil, p.err
	}

	l, ok := spectrumLayouts[h.Subtype]
	if !ok {
		h.Kind, h.SubtypeName = KindUnknown, "unknown"
		return &Unknown{Header: h, Channel: p.str("ChannelA")}, nil
	}
	h.Kind, h.SubtypeName = l.kind, l.name

	required := []string{"N", "M"}
	if !l.withFreq {
		required = append(required, "f0", "df")
	}
	if err := p.require(required...); err != nil {
		return nil, err
	}
	ch, err := newChannels(n.Name(), p.str("ChannelA"), p.indexed["ChannelB"])
	if err != nil {
		return nil, err
	}

	freqN, rows := p.int("N"), p.int("M")
	if p.err != nil {
		return nil, p.err
	}

	arr, err := readStream(n, l.complex)
	if err != nil {
		return nil, err
	}
	if !l.withFreq {
		// N comes from the file; size the axis only once the payload backs it
		if freqN < 0 || freqN > arr.Len() {
			return nil, fmt.Errorf("%w: %s: N=%d exceeds %d samples", ErrMalformedContainer, n.Name(), freqN, arr.Len())
		}
		h.Freq = linspace(h.F0, h.DF, freqN)
	}

	if l.complex {
		var values [][]complex128
		h.Freq, values, err = splitComplex(n.Name(), arr.Values, h.Freq, freqN, rows, l.withFreq)
		if err != nil {
			return nil, err
		}
		switch l.kind {
		case KindFFT:
			return &FourierSpectrum{Header: h, Channels: ch, Values: values}, nil
		default:
			return &CrossSpectrum{Header: h, Channels: ch, Values: values}, nil
		}
	}

	var values [][]float64
	h.Freq, values, err = splitReal(n.Name(), arr.Real, h.Freq, freqN, rows, l.withFreq)
	if err != nil {
		return nil, err
	}
	if l.kind == KindPSD {
		return &PowerSpectrum{Header: h, Channels: ch, Values: values}, nil
	}
	return &Coherence{Header: h, Channels: ch, Values: values}, nil
}

// splitReal separates an optional leading frequency axis of length n from the
// value rows. When the payload carries no axis, freq is passed through.
func splitReal(node string, data, freq []float64, n, rows int, withFreq bool) ([]float64, [][]float64, error) {
	if withFreq {
		if n < 0 || n > len(data) {
			return nil, nil, fmt.Errorf("%w: %s: N=%d exceeds %d samples", ErrMalformedContainer, node, n, len(data))
		}
		freq = append([]float64(nil), data[:n]...)
		data = data[n:]
	}
	values, err := reshape(data, rows)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", node, err)
	}
	return freq, values, checkAxis(node, freq, values)
}

func splitComplex(node string, data []complex128, freq []float64, n, rows int, withFreq bool) ([]float64, [][]complex128, error) {
	if withFreq {
		if n < 0 || n > len(data) {
			return nil, nil, fmt.Errorf("%w: %s: N=%d exceeds %d samples", ErrMalformedContainer, node, n, len(data))
		}
		freq = realParts(data[:n])
		data = data[n:]
	}
	values, err := reshape(data, rows)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", node, err)
	}
	return freq, values, checkAxis(node, freq, values)
}

// checkAxis requires the frequency axis, when present, to match the row width
func checkAxis[T any](node string, freq []float64, values [][]T) error {
	if freq == nil || len(values) == 0 {
		return nil
	}
	if len(freq) != len(values[0]) {
		return fmt.Errorf("%w: %s: %d frequency bins but rows of %d samples", ErrMalformedContainer, node, len(freq), len(values[0]))
	}
	return nil
}
