package access

import (
	"fmt"

	"diagxml/internal/records"
)

// SineResponse holds swept-sine coefficients at one frequency row,
// normalized by the Wrt channel's coefficient.
type SineResponse struct {
	records.Meta
	Channels  []string
	Wrt       string
	FreqIndex int
	FHz       float64
	CoeffWrt  complex128
	CohWrt    float64
	Coeffs    []complex128
	Cohs      []float64
}

// Coeff returns the normalized coefficient of channel
func (s *SineResponse) Coeff(channel string) (complex128, bool) {
	for i, ch := range s.Channels {
		if ch == channel {
			return s.Coeffs[i], true
		}
	}
	return 0, false
}

// Coh returns the coherence of channel
func (s *SineResponse) Coh(channel string) (float64, bool) {
	for i, ch := range s.Channels {
		if ch == channel {
			return s.Cohs[i], true
		}
	}
	return 0, false
}

// HarmonicResponse holds harmonic coefficients of each channel across all
// rows, normalized by the Wrt channel's fundamental.
type HarmonicResponse struct {
	records.Meta
	Channels []string
	Wrt      string
	CoeffWrt complex128
	// Coeffs has one row per channel with one value per harmonic
	Coeffs [][]complex128
	// SecondHarmonic is coeff[2]/coeff[1] per channel
	SecondHarmonic []complex128
	// Cohs is set when the container carries a coherence coefficient table
	Cohs [][]float64
}

// harmonicWrtRow is the fundamental row used for normalization
const harmonicWrtRow = 1

// ratio divides x by w, returning exactly 1 when they are identical so a
// channel normalized by itself stays exact.
func ratio(x, w complex128) complex128 {
	if x == w {
		return 1
	}
	return x / w
}

func column(c *records.Coefficients, channel string) (int, error) {
	col, ok := c.Column(channel)
	if !ok {
		return 0, fmt.Errorf("%w: %s has no channel %q", records.ErrChannelNotFound, c.Kind, channel)
	}
	if len(c.Coeffs) > 0 && (col < 0 || col >= len(c.Coeffs[0])) {
		return 0, fmt.Errorf("%w: %s channel %q column %d outside %d columns",
			records.ErrMalformedContainer, c.Kind, channel, col, len(c.Coeffs[0]))
	}
	return col, nil
}

func (a *Access) table(kind records.Kind) (*records.Coefficients, error) {
	c, ok := a.container.Coefficients[kind]
	if !ok {
		return nil, fmt.Errorf("%w: container has no %s table", records.ErrChannelNotFound, kind)
	}
	return c, nil
}

// SineResponse normalizes the transfer coefficients of channels at row
// freqIndex by those of wrt. An empty wrt leaves the coefficients as stored.
func (a *Access) SineResponse(channels []string, wrt string, freqIndex int) (*SineResponse, error) {
	tc, err := a.table(records.KindTransferCoefficients)
	if err != nil {
		return nil, err
	}
	cc, err := a.table(records.KindCoherenceCoefficients)
	if err != nil {
		return nil, err
	}
	if err := tc.Meta.CheckScalars(cc.Meta); err != nil {
		return nil, fmt.Errorf("sine response: %w", err)
	}
	if freqIndex < 0 || freqIndex >= len(tc.Freq) || freqIndex >= len(cc.Freq) {
		return nil, fmt.Errorf("sine response: frequency index %d outside %d rows", freqIndex, len(tc.Freq))
	}
	if tc.Freq[freqIndex] != cc.Freq[freqIndex] {
		return nil, &records.MetadataMismatchError{Field: "FHz", A: tc.Freq[freqIndex], B: cc.Freq[freqIndex]}
	}

	s := &SineResponse{
		Meta:      tc.Meta,
		Channels:  append([]string(nil), channels...),
		Wrt:       wrt,
		FreqIndex: freqIndex,
		FHz:       tc.Freq[freqIndex],
		CoeffWrt:  1,
		CohWrt:    1,
		Coeffs:    make([]complex128, len(channels)),
		Cohs:      make([]float64, len(channels)),
	}
	if wrt != "" {
		col, err := column(tc, wrt)
		if err != nil {
			return nil, err
		}
		s.CoeffWrt = tc.Coeffs[freqIndex][col]
		if col, err = column(cc, wrt); err != nil {
			return nil, err
		}
		s.CohWrt = real(cc.Coeffs[freqIndex][col])
	}

	for i, ch := range channels {
		col, err := column(tc, ch)
		if err != nil {
			return nil, err
		}
		s.Coeffs[i] = ratio(tc.Coeffs[freqIndex][col], s.CoeffWrt)
		if col, err = column(cc, ch); err != nil {
			return nil, err
		}
		s.Cohs[i] = real(cc.Coeffs[freqIndex][col])
	}
	return s, nil
}

// HarmonicResponse normalizes each channel's harmonic coefficients by the
// fundamental of wrt. An empty wrt leaves the coefficients as stored.
func (a *Access) HarmonicResponse(channels []string, wrt string) (*HarmonicResponse, error) {
	hc, err := a.table(records.KindHarmonicCoefficients)
	if err != nil {
		return nil, err
	}
	if len(hc.Coeffs) <= 2 {
		return nil, fmt.Errorf("%w: harmonic table has %d rows, need at least 3", records.ErrMalformedContainer, len(hc.Coeffs))
	}
	cc, hasCoh := a.container.Coefficients[records.KindCoherenceCoefficients]
	if hasCoh && len(cc.Coeffs) != len(hc.Coeffs) {
		hasCoh = false
	}

	h := &HarmonicResponse{
		Meta:           hc.Meta,
		Channels:       append([]string(nil), channels...),
		Wrt:            wrt,
		CoeffWrt:       1,
		Coeffs:         make([][]complex128, len(channels)),
		SecondHarmonic: make([]complex128, len(channels)),
	}
	if wrt != "" {
		col, err := column(hc, wrt)
		if err != nil {
			return nil, err
		}
		h.CoeffWrt = hc.Coeffs[harmonicWrtRow][col]
	}
	if hasCoh {
		h.Cohs = make([][]float64, len(channels))
	}

	for i, ch := range channels {
		col, err := column(hc, ch)
		if err != nil {
			return nil, err
		}
		row := make([]complex128, len(hc.Coeffs))
		for j := range hc.Coeffs {
			row[j] = ratio(hc.Coeffs[j][col], h.CoeffWrt)
		}
		h.Coeffs[i] = row
		h.SecondHarmonic[i] = row[2] / row[1]

		if hasCoh {
			ccol, err := column(cc, ch)
			if err != nil {
				return nil, err
			}
			cohs := make([]float64, len(cc.Coeffs))
			for j := range cc.Coeffs {
				cohs[j] = real(cc.Coeffs[j][ccol])
			}
			h.Cohs[i] = cohs
		}
	}
	return h, nil
}
