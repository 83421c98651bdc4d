package records

import (
	"sort"
	"strconv"

	"diagxml/internal/tree"
)

func (h *Header) tree() *tree.Tree {
	t := tree.New()
	t.Set("type_name", h.Kind.String())
	t.Set("subtype", h.SubtypeName)
	t.Set("subtype_raw", h.Subtype)
	t.Set("gps_second", h.GPSSecond)
	t.Set("averages", h.Averages)
	t.Set("avgtype", h.AverageType.String())
	t.Set("window", h.Window.String())
	if h.HasBandwidth {
		t.Set("BW", h.Bandwidth)
	}
	if h.Freq != nil {
		t.Set("FHz", h.Freq)
	}
	return t
}

func (c *Channels) fill(t *tree.Tree) {
	t.Set("channelA", c.A)
	if len(c.B) > 0 {
		t.Set("channelB", c.B)
	}
}

func (r *FourierSpectrum) Tree() *tree.Tree {
	t := r.tree()
	r.fill(t)
	t.Set("FFT", r.Values)
	return t
}

func (r *PowerSpectrum) Tree() *tree.Tree {
	t := r.tree()
	r.fill(t)
	t.Set("PSD", r.Values)
	return t
}

func (r *CrossSpectrum) Tree() *tree.Tree {
	t := r.tree()
	r.fill(t)
	t.Set("CSD", r.Values)
	return t
}

func (r *Coherence) Tree() *tree.Tree {
	t := r.tree()
	r.fill(t)
	t.Set("coherence", r.Values)
	return t
}

func (r *TransferFunction) Tree() *tree.Tree {
	t := r.tree()
	r.fill(t)
	t.Set("xfer", r.Values)
	return t
}

func (r *Response) Tree() *tree.Tree {
	t := r.tree()
	r.fill(t)
	t.Set("response", r.Values)
	return t
}

func (u *Unknown) Tree() *tree.Tree {
	t := u.tree()
	if u.Channel != "" {
		t.Set("channelA", u.Channel)
	}
	return t
}

func (ts *TimeSeries) Tree() *tree.Tree {
	t := ts.tree()
	t.Set("channel", ts.Channel)
	t.Set("N", ts.N)
	t.Set("dt", ts.DT)
	t.Set("decimation1", ts.Decimation1)
	t.Set("decimation_rawtype", ts.DecimationType)
	t.Set("decimation_delay_s", ts.DecimationDelay)
	t.Set("time_delay_s", ts.TimeDelay)
	t.Set("delay_taps_num", ts.DelayTaps)
	if ts.DecimationFilter != "" {
		t.Set("decimation_filter", ts.DecimationFilter)
	}
	if ts.Samples != nil {
		t.Set("timeseries", ts.Samples.Value())
	}
	t.Set("data_raw", ts.Raw.Value())
	return t
}

func (c *Coefficients) Tree() *tree.Tree {
	t := c.tree()
	channelTree(t.Child("channelA"), c.ChannelA)
	channelTree(t.Child("channelB"), c.ChannelB)
	channelTree(t.Child("channels"), c.Channels)
	if c.Kind == KindCoherenceCoefficients {
		rows := make([][]float64, len(c.Coeffs))
		for i, row := range c.Coeffs {
			rows[i] = realParts(row)
		}
		t.Set("coeffs", rows)
	} else {
		t.Set("coeffs", c.Coeffs)
	}
	return t
}

func channelTree(t *tree.Tree, table map[int]string) {
	keys := make([]int, 0, len(table))
	for i := range table {
		keys = append(keys, i)
	}
	sort.Ints(keys)
	for _, i := range keys {
		t.Set(strconv.Itoa(i), table[i])
	}
}

// Value returns the payload as a tree leaf: a flat slice for 1-D data, rows
// for 2-D data and the flat sequence for anything of higher rank.
func (a *Array) Value() any {
	if len(a.Shape) == 2 && a.Shape[0] > 0 {
		if a.Complex {
			rows, _ := reshape(a.Values, a.Shape[0])
			return rows
		}
		rows, _ := reshape(a.Real, a.Shape[0])
		return rows
	}
	if a.Complex {
		return a.Values
	}
	return a.Real
}
