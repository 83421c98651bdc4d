package records

// TransferFunction holds B/A transfer function rows for each B channel
type TransferFunction struct {
	Header
	Channels
	Values [][]complex128
}

// Response holds the single-channel transfer function of ChannelA
type Response struct {
	Header
	Channels
	Values [][]complex128
}

var transferLayouts = map[int]layout{
	0: {KindTF, true, false, "transfer function B/A in format (Y)"},
	1: {KindSTF, true, false, "transfer function A in format (Y)"},
	2: {KindCOH, false, false, "coherence B/A in format (Y)"},
	3: {KindTF, true, true, "transfer function B/A in format (f,Y)"},
	4: {KindSTF, true, true, "transfer function A in format (f,Y)"},
	5: {KindCOH, false, true, "coherence B/A in format (f, Y)"},
}

// DecodeTransfer decodes a TransferFunction measurement node into a TF, STF
// or COH record. Value-only subtypes carry no frequency axis.
func DecodeTransfer(n *Node) (Record, error) {
	p := readParams(n)
	if err := p.require("Subtype"); err != nil {
		return nil, err
	}
	h := readHeader(n, p)
	if p.err != nil {
		return nil, p.err
	}

	l, ok := transferLayouts[h.Subtype]
	if !ok {
		h.Kind, h.SubtypeName = KindUnknown, "unknown"
		return &Unknown{Header: h, Channel: p.str("ChannelA")}, nil
	}
	h.Kind, h.SubtypeName = l.kind, l.name

	required := []string{"M"}
	if l.withFreq {
		required = append(required, "N")
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

	if !l.complex {
		var values [][]float64
		h.Freq, values, err = splitReal(n.Name(), arr.Real, nil, freqN, rows, l.withFreq)
		if err != nil {
			return nil, err
		}
		return &Coherence{Header: h, Channels: ch, Values: values}, nil
	}

	var values [][]complex128
	h.Freq, values, err = splitComplex(n.Name(), arr.Values, nil, freqN, rows, l.withFreq)
	if err != nil {
		return nil, err
	}
	if l.kind == KindSTF {
		return &Response{Header: h, Channels: ch, Values: values}, nil
	}
	return &TransferFunction{Header: h, Channels: ch, Values: values}, nil
}
