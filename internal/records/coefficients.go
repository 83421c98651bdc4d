package records

import (
	"fmt"
	"sort"
)

// Coefficients is a table of sine-response coefficients. Row i belongs to
// frequency Freq[i]; the channel tables map a channel to its column in Coeffs.
type Coefficients struct {
	Header
	Raw    *Array
	Coeffs [][]complex128

	ChannelA      map[int]string
	ChannelB      map[int]string
	Channels      map[int]string
	ChannelAIndex map[string]int
	ChannelBIndex map[string]int
	ChannelsIndex map[string]int
}

// Primary returns the first channel of the merged table
func (c *Coefficients) Primary() string {
	best, name := -1, ""
	for i, n := range c.Channels {
		if best < 0 || i < best {
			best, name = i, n
		}
	}
	return name
}

// Column returns the coefficient column of channel
func (c *Coefficients) Column(channel string) (int, bool) {
	i, ok := c.ChannelsIndex[channel]
	return i, ok
}

var histogramSubtypes = []string{
	"1-D fixed bin spacing histogram",
	"1-D variable bin spacing histogram",
	"2-D fixed bin spacing histogram",
	"2-D variable bin spacing histogram",
	"3-D fixed bin spacing histogram",
	"3-D varibale bin spacing histogram",
	"1-D fixed bin spacing histogram with errors",
	"1-D variable bin spacing histogram with errors",
	"2-D fixed bin spacing histogram with errors",
	"2-D variable bin spacing histogram with errors",
	"3-D fixed bin spacing histogram with errors",
	"3-D variable bin spacing histogram with errors",
}

// DecodeCoefficients decodes a coefficient table node. Column 0 of the
// payload is the frequency axis; the remaining columns are per channel.
// Coherence tables are reduced to their real part.
func DecodeCoefficients(n *Node, kind Kind) (*Coefficients, error) {
	if !kind.IsCoefficients() {
		return nil, fmt.Errorf("%w: %s is not a coefficient table", ErrUnsupportedKind, kind)
	}
	p := readParams(n)
	c := &Coefficients{Header: readHeader(n, p)}
	c.Kind = kind
	if p.err != nil {
		return nil, p.err
	}
	if p.has("Subtype") && c.Subtype >= 0 && c.Subtype < len(histogramSubtypes) {
		c.SubtypeName = histogramSubtypes[c.Subtype]
	} else {
		c.SubtypeName = "unknown"
	}

	c.ChannelA, c.ChannelAIndex = channelTable(p.indexed["ChannelA"])
	c.ChannelB, c.ChannelBIndex = channelTable(p.indexed["ChannelB"])
	merged := make(map[int]string, len(c.ChannelA)+len(c.ChannelB))
	for i, name := range c.ChannelA {
		merged[i] = name
	}
	for i, name := range c.ChannelB {
		merged[i] = name
	}
	c.Channels, c.ChannelsIndex = channelTable(merged)

	raw, err := readShapedArray(n)
	if err != nil {
		return nil, err
	}
	if len(raw.Shape) != 2 || raw.Shape[1] < 1 {
		return nil, fmt.Errorf("%w: %s: coefficient table needs a 2-D shape, got %v", ErrMalformedContainer, n.Name(), raw.Shape)
	}
	c.Raw = raw

	rows, cols := raw.Shape[0], raw.Shape[1]
	c.Freq = make([]float64, rows)
	c.Coeffs = make([][]complex128, rows)
	for i := 0; i < rows; i++ {
		row := make([]complex128, cols)
		for j := range row {
			if raw.Complex {
				row[j] = raw.Values[i*cols+j]
			} else {
				row[j] = complex(raw.Real[i*cols+j], 0)
			}
		}
		c.Freq[i] = real(row[0])
		c.Coeffs[i] = row[1:]
		if kind == KindCoherenceCoefficients {
			for j := range c.Coeffs[i] {
				c.Coeffs[i][j] = complex(real(c.Coeffs[i][j]), 0)
			}
		}
	}

	return c, nil
}

// channelTable copies indexed and builds its inverse. A name listed under
// several indices maps back to the lowest one.
func channelTable(indexed map[int]string) (map[int]string, map[string]int) {
	keys := make([]int, 0, len(indexed))
	for i := range indexed {
		keys = append(keys, i)
	}
	sort.Ints(keys)

	byIndex := make(map[int]string, len(indexed))
	byName := make(map[string]int, len(indexed))
	for _, i := range keys {
		name := indexed[i]
		byIndex[i] = name
		if _, ok := byName[name]; !ok {
			byName[name] = i
		}
	}
	return byIndex, byName
}
