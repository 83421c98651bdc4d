// Package container decodes a diagnostics XML document into indexed records
package container

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"diagxml/internal/records"
)

var (
	entryName     = regexp.MustCompile(`^Entry\[(\d+)\]`)
	referenceName = regexp.MustCompile(`^Reference\[(\d+)\]`)
	resultName    = regexp.MustCompile(`^Result\[(\d+)\]`)

	entryIndexed = regexp.MustCompile(`(\w+)\[(\d+)\].*`)
	entryBare    = regexp.MustCompile(`(\w+).*`)
	entryNode    = regexp.MustCompile(`Name\s+=\s+(\w+.*);`)
)

// Measurement node types named by the Type attribute
const (
	TypeTransferFunction = "TransferFunction"
	TypeSpectrum         = "Spectrum"
	TypeTimeSeries       = "TimeSeries"
)

// Container is a fully decoded document
type Container struct {
	// Entries holds the raw Index descriptors keyed by entry number
	Entries map[int]string
	// References and Results hold the decoded measurement nodes keyed by their number
	References map[int]records.Record
	Results    map[int]records.Record
	// Coefficients holds at most one table per coefficient kind
	Coefficients map[records.Kind]*records.Coefficients
	// Index maps a result kind and its primary channel to the record
	Index map[records.Kind]map[string]records.Record
	// Errors collects per-entry failures that were skipped during decoding
	Errors []error
}

type options struct {
	logger *zap.Logger
}

// Option configures Decode
type Option func(*options)

// WithLogger sets the logger used for skipped entries
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// ReadFile opens path and decodes it
func ReadFile(path string, opts ...Option) (*Container, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open container: %w", err)
	}
	defer file.Close()

	c, err := Decode(file, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Decode parses a whole document. Failures confined to one entry or node are
// logged, collected in Errors and skipped.
func Decode(r io.Reader, opts ...Option) (*Container, error) {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	log := o.logger

	var root records.Node
	if err := xml.NewDecoder(r).Decode(&root); err != nil {
		return nil, fmt.Errorf("%w: %v", records.ErrMalformedContainer, err)
	}

	c := &Container{
		Entries:      make(map[int]string),
		References:   make(map[int]records.Record),
		Results:      make(map[int]records.Record),
		Coefficients: make(map[records.Kind]*records.Coefficients),
		Index:        make(map[records.Kind]map[string]records.Record),
	}

	var index *records.Node
	for _, n := range root.Children {
		if n.Name() == "Index" {
			index = n
			break
		}
	}
	if index == nil {
		return nil, fmt.Errorf("%w: no Index node", records.ErrMalformedContainer)
	}
	for _, e := range index.Children {
		if m := entryName.FindStringSubmatch(e.Name()); m != nil {
			n, _ := strconv.Atoi(m[1])
			c.Entries[n] = e.Text
		}
	}

	if err := c.decodeEntries(&root, log); err != nil {
		return nil, err
	}
	if err := c.decodeMeasurements(&root, log); err != nil {
		return nil, err
	}

	log.Debug("container decoded",
		zap.Int("entries", len(c.Entries)),
		zap.Int("references", len(c.References)),
		zap.Int("results", len(c.Results)),
		zap.Int("coefficients", len(c.Coefficients)),
		zap.Int("skipped", len(c.Errors)))
	return c, nil
}

// ParseEntry extracts the type name and optional numeric suffix from the first
// line of an index entry, e.g. "TransferCoefficients[3]".
func ParseEntry(text string) (string, int, bool, error) {
	first, _, _ := strings.Cut(strings.TrimLeft(text, "\r\n"), "\n")
	if m := entryIndexed.FindStringSubmatch(first); m != nil {
		n, err := strconv.Atoi(m[2])
		if err != nil {
			return "", 0, false, fmt.Errorf("%w: %q", records.ErrMalformedIndexEntry, first)
		}
		return m[1], n, true, nil
	}
	if m := entryBare.FindStringSubmatch(first); m != nil {
		return m[1], 0, false, nil
	}
	return "", 0, false, fmt.Errorf("%w: %q", records.ErrMalformedIndexEntry, first)
}

func (c *Container) skip(log *zap.Logger, err error, fields ...zap.Field) {
	c.Errors = append(c.Errors, err)
	log.Warn("skipping entry", append(fields, zap.Error(err))...)
}

func (c *Container) decodeEntries(root *records.Node, log *zap.Logger) error {
	ids := sortedKeys(c.Entries)
	malformed := 0
	for _, id := range ids {
		text := c.Entries[id]
		typeName, _, _, err := ParseEntry(text)
		if err != nil {
			malformed++
			c.skip(log, fmt.Errorf("Entry[%d]: %w", id, err), zap.Int("entry", id))
			continue
		}
		kind, ok := records.CoefficientKind(typeName)
		if !ok {
			continue
		}

		m := entryNode.FindStringSubmatch(text)
		if m == nil {
			c.skip(log, fmt.Errorf("Entry[%d]: %w: no node name in %s entry", id, records.ErrMalformedIndexEntry, typeName),
				zap.Int("entry", id))
			continue
		}
		node := findNode(root, m[1])
		if node == nil {
			c.skip(log, fmt.Errorf("Entry[%d]: %w: node %q not found", id, records.ErrMalformedContainer, m[1]),
				zap.Int("entry", id), zap.String("node", m[1]))
			continue
		}

		coeffs, err := records.DecodeCoefficients(node, kind)
		if err != nil {
			c.skip(log, fmt.Errorf("Entry[%d]: %w", id, err), zap.Int("entry", id), zap.String("node", m[1]))
			continue
		}
		if _, dup := c.Coefficients[kind]; dup {
			log.Warn("duplicate coefficient table ignored",
				zap.Stringer("kind", kind), zap.String("node", m[1]))
			continue
		}
		c.Coefficients[kind] = coeffs
	}

	if len(ids) > 0 && malformed == len(ids) {
		return fmt.Errorf("%w: none of %d index entries could be parsed", records.ErrMalformedIndexEntry, len(ids))
	}
	return nil
}

func (c *Container) decodeMeasurements(root *records.Node, log *zap.Logger) error {
	for _, n := range root.Children {
		name := n.Name()
		if m := referenceName.FindStringSubmatch(name); m != nil {
			id, _ := strconv.Atoi(m[1])
			rec, err := decodeNode(n)
			if err != nil {
				c.skip(log, fmt.Errorf("%s: %w", name, err), zap.String("node", name))
				continue
			}
			if rec != nil {
				c.References[id] = rec
			}
			continue
		}

		m := resultName.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		id, _ := strconv.Atoi(m[1])
		rec, err := decodeNode(n)
		if err != nil {
			c.skip(log, fmt.Errorf("%s: %w", name, err), zap.String("node", name))
			continue
		}
		if rec == nil {
			log.Debug("ignoring result of unsupported type", zap.String("node", name), zap.String("type", n.Attr("Type")))
			continue
		}
		c.Results[id] = rec

		kind := rec.Head().Kind
		switch kind {
		case records.KindCOH, records.KindTF, records.KindSTF, records.KindPSD, records.KindFFT, records.KindCSD, records.KindTS:
			byChannel := c.Index[kind]
			if byChannel == nil {
				byChannel = make(map[string]records.Record)
				c.Index[kind] = byChannel
			}
			byChannel[rec.Primary()] = rec
		default:
			return fmt.Errorf("%w: %s holds %s (subtype %d)", records.ErrUnsupportedKind, name, kind, rec.Head().Subtype)
		}
	}
	return nil
}

// decodeNode dispatches on the node's Type attribute. A nil record means the
// type is not a measurement type.
func decodeNode(n *records.Node) (records.Record, error) {
	switch n.Attr("Type") {
	case TypeTransferFunction:
		return records.DecodeTransfer(n)
	case TypeSpectrum:
		return records.DecodeSpectrum(n)
	case TypeTimeSeries:
		ts, err := records.DecodeTimeSeries(n)
		if err != nil {
			return nil, err
		}
		return ts, nil
	}
	return nil, nil
}

func findNode(root *records.Node, name string) *records.Node {
	for _, n := range root.Children {
		if n.Tag() == "LIGO_LW" && n.Name() == name {
			return n
		}
	}
	return nil
}

// Lookup returns the result of kind indexed under channel
func (c *Container) Lookup(kind records.Kind, channel string) (records.Record, bool) {
	rec, ok := c.Index[kind][channel]
	return rec, ok
}

// ReferenceIDs returns the reference numbers in ascending order
func (c *Container) ReferenceIDs() []int { return sortedKeys(c.References) }

// ResultIDs returns the result numbers in ascending order
func (c *Container) ResultIDs() []int { return sortedKeys(c.Results) }

// Err joins every skipped entry error, or returns nil
func (c *Container) Err() error {
	return errors.Join(c.Errors...)
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
