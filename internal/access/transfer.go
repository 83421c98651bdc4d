package access

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"diagxml/internal/records"
)

// Strategy records how a transfer function was resolved
type Strategy int

const (
	// StrategyDirect reads TF[den].B[num]
	StrategyDirect Strategy = iota
	// StrategyReciprocal inverts TF[num].B[den]
	StrategyReciprocal
	// StrategySpectra divides CSD(num, den) by the squared ASD of den
	StrategySpectra
)

func (s Strategy) String() string {
	switch s {
	case StrategyDirect:
		return "direct"
	case StrategyReciprocal:
		return "reciprocal"
	case StrategySpectra:
		return "spectra"
	}
	return "unknown"
}

// Transfer is the transfer function from Den to Num
type Transfer struct {
	records.Meta
	Num, Den string
	Strategy Strategy
	Values   []complex128
}

// TransferVia is Num/Den computed through a common channel Via
type TransferVia struct {
	records.Meta
	Num, Den, Via string
	Values        []complex128
	// NumVia and DenVia are the intermediate transfers Num/Via and Den/Via
	NumVia, DenVia *Transfer
}

// Transfer resolves num/den. It tries a stored TF under den, the reciprocal
// of a stored TF under num and finally the ratio CSD(num, den)/ASD(den)^2.
// When nothing is stored it fails with records.ErrTransferNotAvailable; a
// spectral ratio over incompatible records fails with records.ErrMetadataMismatch.
func (a *Access) Transfer(num, den string) (*Transfer, error) {
	if rec, ok := a.index[records.KindTF][den]; ok {
		tf := rec.(*records.TransferFunction)
		if row, ok := tf.Row(num); ok {
			return &Transfer{
				Meta:     tf.Meta,
				Num:      num,
				Den:      den,
				Strategy: StrategyDirect,
				Values:   append([]complex128(nil), tf.Values[row]...),
			}, nil
		}
	}

	if rec, ok := a.index[records.KindTF][num]; ok {
		tf := rec.(*records.TransferFunction)
		if row, ok := tf.Row(den); ok {
			values := make([]complex128, len(tf.Values[row]))
			for i, v := range tf.Values[row] {
				values[i] = 1 / v
			}
			return &Transfer{Meta: tf.Meta, Num: num, Den: den, Strategy: StrategyReciprocal, Values: values}, nil
		}
	}

	csd, err := a.CrossSpectrum(num, den)
	if err != nil {
		return nil, unavailable(num, den, err)
	}
	asd, err := a.Spectrum(den)
	if err != nil {
		return nil, unavailable(num, den, err)
	}
	if err := csd.Meta.Check(asd.Meta); err != nil {
		return nil, fmt.Errorf("transfer %s/%s from spectra: %w", num, den, err)
	}
	if len(csd.Values) != len(asd.Values) {
		return nil, fmt.Errorf("transfer %s/%s from spectra: %w", num, den,
			&records.MetadataMismatchError{Field: "FHz", A: len(csd.Values), B: len(asd.Values)})
	}
	values := make([]complex128, len(csd.Values))
	for i, v := range csd.Values {
		values[i] = v / complex(asd.Values[i]*asd.Values[i], 0)
	}
	a.logger.Debug("transfer synthesized from spectra", zap.String("num", num), zap.String("den", den))
	return &Transfer{Meta: csd.Meta, Num: num, Den: den, Strategy: StrategySpectra, Values: values}, nil
}

func unavailable(num, den string, cause error) error {
	if errors.Is(cause, records.ErrChannelNotFound) {
		return fmt.Errorf("%w: %s/%s (%v)", records.ErrTransferNotAvailable, num, den, cause)
	}
	return cause
}

// TransferSNR estimates the per-bin SNR of t from the coherence of its channels
func (a *Access) TransferSNR(t *Transfer) ([]float64, error) {
	coh, err := a.Coherence(t.Num, t.Den)
	if err != nil {
		return nil, err
	}
	if err := t.Meta.Check(coh.Meta); err != nil {
		return nil, fmt.Errorf("transfer %s/%s snr: %w", t.Num, t.Den, err)
	}
	return TransferSNR(coh.Values, t.Averages), nil
}

// TransferVia computes (num/via) / (den/via)
func (a *Access) TransferVia(num, den, via string) (*TransferVia, error) {
	numVia, err := a.Transfer(num, via)
	if err != nil {
		return nil, err
	}
	denVia, err := a.Transfer(den, via)
	if err != nil {
		return nil, err
	}
	if err := numVia.Meta.Check(denVia.Meta); err != nil {
		return nil, fmt.Errorf("transfer %s/%s via %s: %w", num, den, via, err)
	}
	if len(numVia.Values) != len(denVia.Values) {
		return nil, &records.MetadataMismatchError{Field: "FHz", A: len(numVia.Values), B: len(denVia.Values)}
	}
	values := make([]complex128, len(numVia.Values))
	for i := range values {
		values[i] = numVia.Values[i] / denVia.Values[i]
	}
	return &TransferVia{
		Meta:   numVia.Meta,
		Num:    num,
		Den:    den,
		Via:    via,
		Values: values,
		NumVia: numVia,
		DenVia: denVia,
	}, nil
}

// TransferViaSNR combines the SNR of both intermediate transfers
func (a *Access) TransferViaSNR(v *TransferVia) ([]float64, error) {
	snrNum, err := a.TransferSNR(v.NumVia)
	if err != nil {
		return nil, err
	}
	snrDen, err := a.TransferSNR(v.DenVia)
	if err != nil {
		return nil, err
	}
	return CombineSNR(snrNum, snrDen), nil
}

// ViaSpectra returns the ASDs of the three channels of v, checked against v
func (a *Access) ViaSpectra(v *TransferVia) (num, den, via *Spectrum, err error) {
	out := make([]*Spectrum, 3)
	for i, ch := range []string{v.Num, v.Den, v.Via} {
		s, err := a.Spectrum(ch)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := v.Meta.Check(s.Meta); err != nil {
			return nil, nil, nil, fmt.Errorf("spectrum %s: %w", ch, err)
		}
		out[i] = s
	}
	return out[0], out[1], out[2], nil
}
