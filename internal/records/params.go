package records

import (
	"fmt"
	"regexp"
	"strconv"
)

var indexedParam = regexp.MustCompile(`^(\w+)\[(\d+)\]$`)

// params collects the Param children of a measurement node. Parse failures
// are remembered and reported by err so callers can read every field first.
type params struct {
	node    string
	values  map[string]string
	indexed map[string]map[int]string
	err     error
}

func readParams(n *Node) *params {
	p := &params{
		node:    n.Name(),
		values:  make(map[string]string),
		indexed: make(map[string]map[int]string),
	}
	for _, c := range n.All("Param") {
		name := c.Name()
		if m := indexedParam.FindStringSubmatch(name); m != nil {
			idx, _ := strconv.Atoi(m[2])
			if p.indexed[m[1]] == nil {
				p.indexed[m[1]] = make(map[int]string)
			}
			p.indexed[m[1]][idx] = c.Value()
			continue
		}
		p.values[name] = c.Value()
	}
	return p
}

func (p *params) fail(name, raw string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("%w: %s: parameter %s=%q: %v", ErrMalformedContainer, p.node, name, raw, err)
	}
}

func (p *params) has(name string) bool {
	_, ok := p.values[name]
	return ok
}

func (p *params) str(name string) string {
	return p.values[name]
}

func (p *params) int(name string) int {
	raw, ok := p.values[name]
	if !ok {
		return 0
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.fail(name, raw, err)
	}
	return v
}

func (p *params) float(name string) float64 {
	raw, ok := p.values[name]
	if !ok {
		return 0
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		p.fail(name, raw, err)
	}
	return v
}

// require returns a MissingFieldError for the first absent name
func (p *params) require(names ...string) error {
	for _, name := range names {
		if !p.has(name) {
			return &MissingFieldError{Node: p.node, Field: name}
		}
	}
	return nil
}

// readHeader fills the fields every measurement node carries
func readHeader(n *Node, p *params) Header {
	var h Header
	for _, t := range n.All("Time") {
		if t.Name() == "t0" {
			v, err := strconv.ParseFloat(t.Value(), 64)
			if err != nil {
				p.fail("t0", t.Value(), err)
			}
			h.GPSSecond = v
		}
	}
	h.Subtype = p.int("Subtype")
	h.Window, h.AverageType = WindowUnset, AverageUnset
	if p.has("Window") {
		h.Window = Window(p.int("Window"))
	}
	if p.has("AverageType") {
		h.AverageType = AverageType(p.int("AverageType"))
	}
	h.Averages = p.int("Averages")
	h.Bandwidth = p.float("BW")
	h.HasBandwidth = p.has("BW")
	h.F0 = p.float("f0")
	h.DF = p.float("df")
	return h
}
