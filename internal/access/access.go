// Package access answers channel queries over a decoded container and
// derives cross-spectral quantities from the stored records.
package access

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"diagxml/internal/container"
	"diagxml/internal/records"
)

// referenceKinds are the reference record kinds that join the result lookup space
var referenceKinds = map[records.Kind]bool{
	records.KindPSD: true,
	records.KindCSD: true,
	records.KindCOH: true,
	records.KindTF:  true,
}

// Access indexes the records of one container. It is read-only after New and
// safe for concurrent queries.
type Access struct {
	container *container.Container
	index     map[records.Kind]map[string]records.Record
	logger    *zap.Logger
}

// Option configures New
type Option func(*Access)

// WithLogger sets the logger used by the access layer
func WithLogger(l *zap.Logger) Option {
	return func(a *Access) {
		if l != nil {
			a.logger = l
		}
	}
}

// New builds the lookup index for c. Reference records of kind PSD, CSD, COH
// and TF are registered as "<channel>(REF<n>)".
func New(c *container.Container, opts ...Option) *Access {
	a := &Access{
		container: c,
		index:     make(map[records.Kind]map[string]records.Record),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}

	for kind, byChannel := range c.Index {
		m := make(map[string]records.Record, len(byChannel))
		for ch, rec := range byChannel {
			m[ch] = rec
		}
		a.index[kind] = m
	}
	for _, id := range c.ReferenceIDs() {
		rec := c.References[id]
		kind := rec.Head().Kind
		if !referenceKinds[kind] {
			continue
		}
		if a.index[kind] == nil {
			a.index[kind] = make(map[string]records.Record)
		}
		key := fmt.Sprintf("%s(REF%d)", rec.Primary(), id)
		a.index[kind][key] = rec
		a.logger.Debug("registered reference", zap.String("key", key), zap.Stringer("kind", kind))
	}
	return a
}

// Open decodes the container at path and indexes it
func Open(path string, opts ...Option) (*Access, error) {
	pre := &Access{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(pre)
	}
	c, err := container.ReadFile(path, container.WithLogger(pre.logger))
	if err != nil {
		return nil, err
	}
	return New(c, opts...), nil
}

// Container returns the decoded container
func (a *Access) Container() *container.Container { return a.container }

// Record returns the record of kind indexed under channel
func (a *Access) Record(kind records.Kind, channel string) (records.Record, bool) {
	rec, ok := a.index[kind][channel]
	return rec, ok
}

// Keys returns the sorted channel keys of kind
func (a *Access) Keys(kind records.Kind) []string {
	keys := make([]string, 0, len(a.index[kind]))
	for k := range a.index[kind] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Coefficients returns the coefficient table of kind
func (a *Access) Coefficients(kind records.Kind) (*records.Coefficients, bool) {
	c, ok := a.container.Coefficients[kind]
	return c, ok
}

// Channels returns the sorted primary channels and the sorted secondary
// channels that are not also primary.
func (a *Access) Channels() ([]string, []string) {
	primary := make(map[string]bool)
	secondary := make(map[string]bool)
	for kind, byChannel := range a.index {
		for key, rec := range byChannel {
			primary[key] = true
			if kind == records.KindTS {
				continue
			}
			if b := SecondaryChannels(rec); b != nil {
				for _, name := range b {
					secondary[name] = true
				}
			}
		}
	}
	for _, c := range a.container.Coefficients {
		for _, name := range c.Channels {
			primary[name] = true
		}
	}

	chnA := make([]string, 0, len(primary))
	for name := range primary {
		chnA = append(chnA, name)
	}
	chnB := make([]string, 0, len(secondary))
	for name := range secondary {
		if !primary[name] {
			chnB = append(chnB, name)
		}
	}
	sort.Strings(chnA)
	sort.Strings(chnB)
	return chnA, chnB
}

// SecondaryChannels returns the B channels of a spectral or transfer record
func SecondaryChannels(rec records.Record) []string {
	switch r := rec.(type) {
	case *records.PowerSpectrum:
		return r.B
	case *records.CrossSpectrum:
		return r.B
	case *records.Coherence:
		return r.B
	case *records.FourierSpectrum:
		return r.B
	case *records.TransferFunction:
		return r.B
	case *records.Response:
		return r.B
	}
	return nil
}

// MetadataCheck compares two records' window, averages, bandwidth and
// frequency axis. It fails with a *records.MetadataMismatchError naming the
// first field that differs.
func MetadataCheck(x, y records.Record) error {
	return x.Head().Meta.Check(y.Head().Meta)
}

func notFound(kind records.Kind, channels ...string) error {
	return fmt.Errorf("%w: no %s for %v", records.ErrChannelNotFound, kind, channels)
}
