package access

import (
	"fmt"
	"math"
	"math/cmplx"

	"diagxml/internal/records"
)

// Spectrum is the amplitude spectral density of one channel
type Spectrum struct {
	records.Meta
	Channel string
	Values  []float64
}

// CrossSpectrum is the cross-spectral density of a channel pair. Swapped is
// set when the record was stored under the opposite orientation; the values
// are returned as stored.
type CrossSpectrum struct {
	records.Meta
	ChannelA, ChannelB string
	Swapped            bool
	Values             []complex128
}

// Coherence is the coherence of a channel pair
type Coherence struct {
	records.Meta
	ChannelA, ChannelB string
	Swapped            bool
	Values             []float64
}

// StatisticalMinimum is the coherence expected from noise alone
func (c *Coherence) StatisticalMinimum() float64 {
	if c.Averages <= 0 {
		return math.NaN()
	}
	return 1 / math.Sqrt(float64(c.Averages))
}

// Spectrum returns the PSD of channel, flattened across rows
func (a *Access) Spectrum(channel string) (*Spectrum, error) {
	rec, ok := a.index[records.KindPSD][channel]
	if !ok {
		return nil, notFound(records.KindPSD, channel)
	}
	psd := rec.(*records.PowerSpectrum)
	var values []float64
	for _, row := range psd.Values {
		values = append(values, row...)
	}
	return &Spectrum{Meta: psd.Meta, Channel: channel, Values: values}, nil
}

// pairRow finds the record of kind stored as [a].B[b] or, failing that, as [b].B[a]
func (a *Access) pairRow(kind records.Kind, chnA, chnB string) (records.Record, int, bool, error) {
	if rec, ok := a.index[kind][chnA]; ok {
		if row, ok := rowOf(rec, chnB); ok {
			return rec, row, false, nil
		}
	}
	if rec, ok := a.index[kind][chnB]; ok {
		if row, ok := rowOf(rec, chnA); ok {
			return rec, row, true, nil
		}
	}
	return nil, 0, false, notFound(kind, chnA, chnB)
}

func rowOf(rec records.Record, name string) (int, bool) {
	switch r := rec.(type) {
	case *records.CrossSpectrum:
		return r.Row(name)
	case *records.Coherence:
		return r.Row(name)
	case *records.TransferFunction:
		return r.Row(name)
	}
	return 0, false
}

// CrossSpectrum returns the CSD of chnA against chnB in either stored orientation
func (a *Access) CrossSpectrum(chnA, chnB string) (*CrossSpectrum, error) {
	rec, row, swapped, err := a.pairRow(records.KindCSD, chnA, chnB)
	if err != nil {
		return nil, err
	}
	csd := rec.(*records.CrossSpectrum)
	return &CrossSpectrum{
		Meta:     csd.Meta,
		ChannelA: chnA,
		ChannelB: chnB,
		Swapped:  swapped,
		Values:   append([]complex128(nil), csd.Values[row]...),
	}, nil
}

// Coherence returns the coherence of chnA and chnB in either stored orientation
func (a *Access) Coherence(chnA, chnB string) (*Coherence, error) {
	rec, row, swapped, err := a.pairRow(records.KindCOH, chnA, chnB)
	if err != nil {
		return nil, err
	}
	coh := rec.(*records.Coherence)
	return &Coherence{
		Meta:     coh.Meta,
		ChannelA: chnA,
		ChannelB: chnB,
		Swapped:  swapped,
		Values:   append([]float64(nil), coh.Values[row]...),
	}, nil
}

// CoherencePhased returns the coherence carrying the phase of the cross spectrum
func (a *Access) CoherencePhased(chnA, chnB string) ([]complex128, error) {
	coh, err := a.Coherence(chnA, chnB)
	if err != nil {
		return nil, err
	}
	csd, err := a.CrossSpectrum(chnA, chnB)
	if err != nil {
		return nil, err
	}
	if err := coh.Meta.Check(csd.Meta); err != nil {
		return nil, fmt.Errorf("coherence %s/%s: %w", chnA, chnB, err)
	}
	if len(coh.Values) != len(csd.Values) {
		return nil, &records.MetadataMismatchError{Field: "FHz", A: len(coh.Values), B: len(csd.Values)}
	}
	out := make([]complex128, len(csd.Values))
	for i, v := range csd.Values {
		out[i] = complex(coh.Values[i], 0) * v / complex(cmplx.Abs(v), 0)
	}
	return out, nil
}
