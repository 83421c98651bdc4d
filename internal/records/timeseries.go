package records

// TimeSeries is a decoded TimeSeries measurement
type TimeSeries struct {
	Header
	Channel          string
	N                int
	DT               float64
	Decimation1      int
	DecimationType   int
	DecimationDelay  float64
	TimeDelay        float64
	DelayTaps        int
	DecimationFilter string
	// Raw is the payload in its declared shape
	Raw *Array
	// Samples is set only for the value-only subtypes 0 to 2
	Samples *Array
}

func (ts *TimeSeries) Primary() string { return ts.Channel }

var timeSeriesSubtypes = []string{
	"normal time series in format (Y)",
	"down-converted time series in format (Y)",
	"averaged time series in format (Y)",
	"averaged time series in format (mean, std. dev., min., max., rms)",
	"normal time series in format (t,Y)",
	"down-converted time series in format (t,Y)",
	"averaged time series in format (t,Y)",
	"averaged time series in format (t, mean, std. dev., min., max., rms)",
}

// DecodeTimeSeries decodes a TimeSeries measurement node. The payload shape
// comes from the Array's Dim children and its element type from the Array's
// Type attribute.
func DecodeTimeSeries(n *Node) (*TimeSeries, error) {
	p := readParams(n)
	if err := p.require("Subtype"); err != nil {
		return nil, err
	}
	ts := &TimeSeries{Header: readHeader(n, p)}
	ts.Channel = p.str("Channel")
	ts.N = p.int("N")
	ts.DT = p.float("dt")
	ts.Decimation1 = p.int("Decimation1")
	ts.DecimationType = p.int("DecimationType")
	ts.DecimationDelay = p.float("DecimationDelay")
	ts.TimeDelay = p.float("TimeDelay")
	ts.DelayTaps = p.int("DelayTaps")
	ts.DecimationFilter = p.str("DecimationFilter")
	if p.err != nil {
		return nil, p.err
	}

	raw, err := readShapedArray(n)
	if err != nil {
		return nil, err
	}
	ts.Raw = raw

	switch {
	case ts.Subtype >= 0 && ts.Subtype < len(timeSeriesSubtypes):
		ts.Kind = KindTS
		ts.SubtypeName = timeSeriesSubtypes[ts.Subtype]
		if ts.Subtype <= 2 {
			ts.Samples = raw
		}
	default:
		ts.Kind, ts.SubtypeName = KindUnknown, "unknown"
	}
	return ts, nil
}
