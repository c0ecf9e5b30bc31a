// Package partition implements the root coordinator: one meta index,
// one argument index, and a set of segments sharing a single
// partition's ID range (SPEC_FULL.md's supplemented-features section).
package partition

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/unsecureio/vast/internal/argindex"
	"github.com/unsecureio/vast/internal/bitstream"
	"github.com/unsecureio/vast/internal/config"
	"github.com/unsecureio/vast/internal/log"
	"github.com/unsecureio/vast/internal/metaindex"
	"github.com/unsecureio/vast/internal/query"
	"github.com/unsecureio/vast/internal/segment"
	"github.com/unsecureio/vast/internal/value"
)

const (
	segmentFilePrefix = "segment-"
	segmentFileSuffix = ".seg"
)

func segmentFileName(i int) string {
	return fmt.Sprintf("%s%06d%s", segmentFilePrefix, i, segmentFileSuffix)
}

// Partition owns the meta index, argument index, and the rolling set
// of segments for one contiguous ID range. ID names the partition's
// on-disk directory.
type Partition struct {
	ID uuid.UUID

	mu sync.Mutex

	opts config.Options

	meta *metaindex.MetaIndex
	args *argindex.ArgIndex

	segments []*segment.Segment
	writer   *segment.Writer

	// incomplete is set when Open skips a corrupt or unreadable segment
	// file (spec §7 "Corruption"); the indexes remain fully queryable,
	// but Load for rows in a skipped segment returns not-found.
	incomplete bool
}

// New constructs an empty partition starting at ID 0, named with a
// fresh random UUID for its on-disk directory.
func New(opts config.Options) *Partition {
	meta := metaindex.New(0, opts.Index.MaxStringSize)
	args := argindex.New(opts.Index.MaxStringSize, opts.Index.MaxContainerElements)
	seg := segment.New(0, opts.ChunkSize, opts.Segments)
	w := segment.NewWriter(seg, opts.ChunkSize, int64(opts.MaxSegmentSize))
	return &Partition{
		ID:       uuid.New(),
		opts:     opts,
		meta:     meta,
		args:     args,
		segments: []*segment.Segment{seg},
		writer:   w,
	}
}

// Index writes a batch of events, in ascending ID order, into the
// meta index, the argument index, and the active segment, rolling over
// to a fresh segment once the active one's size cap is reached.
func (p *Partition) Index(events []value.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.meta.Index(events); err != nil {
		return fmt.Errorf("partition: meta index: %w", err)
	}
	if err := p.args.Index(events); err != nil {
		return fmt.Errorf("partition: argument index: %w", err)
	}
	for _, e := range events {
		if p.writer.Write(e) {
			continue
		}
		if err := p.rollSegment(e.ID); err != nil {
			return err
		}
		if !p.writer.Write(e) {
			return fmt.Errorf("partition: event %d exceeds a fresh segment's capacity", e.ID)
		}
	}
	return nil
}

// rollSegment seals the active segment and starts a new one whose base is
// next, the ID of the first event it will hold.
func (p *Partition) rollSegment(next uint64) error {
	if err := p.writer.Flush(); err != nil {
		return fmt.Errorf("partition: flushing segment before roll: %w", err)
	}
	ns := segment.New(next, p.opts.ChunkSize, p.opts.Segments)
	p.writer.AttachTo(ns)
	p.segments = append(p.segments, ns)
	return nil
}

// Flush seals any buffered, not-yet-chunked events into the active
// segment.
func (p *Partition) Flush() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writer.Flush()
}

// Size returns the partition's current row count.
func (p *Partition) Size() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.meta.Size()
}

// Load reads the event with the given ID, searching across segments.
func (p *Partition) Load(id uint64) (value.Event, bool, error) {
	p.mu.Lock()
	segs := p.segments
	p.mu.Unlock()

	idx := sort.Search(len(segs), func(i int) bool { return segs[i].Base > id }) - 1
	if idx < 0 {
		return value.Event{}, false, nil
	}
	return segs[idx].Load(id)
}

// Query resolves an AST against this partition's indexes, returning
// the bitstream of matching event positions.
func (p *Partition) Query(ctx context.Context, ast *query.Node) (*bitstream.Bitstream, error) {
	p.mu.Lock()
	size := p.meta.Size()
	p.mu.Unlock()

	ev := query.New(p.meta, p.args, size)
	return ev.Eval(ctx, ast)
}

// Incomplete reports whether a prior Open skipped one or more corrupt
// or unreadable segment files. Its meta and argument indexes are still
// fully queryable; Load for rows in a skipped segment returns
// not-found.
func (p *Partition) Incomplete() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.incomplete
}

// Persist writes this partition's meta index, argument index, and every
// segment under dir/<p.ID>, using the fixed and per-offset filenames of
// spec §4.6 and the chunked layout of spec §6.
func (p *Partition) Persist(dir string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	root := filepath.Join(dir, p.ID.String())
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("partition: mkdir %s: %w", root, err)
	}

	metaFiles, err := p.meta.Serialize()
	if err != nil {
		return fmt.Errorf("partition: serialize meta index: %w", err)
	}
	argFiles, err := p.args.Serialize()
	if err != nil {
		return fmt.Errorf("partition: serialize argument index: %w", err)
	}
	for name, data := range metaFiles {
		if err := os.WriteFile(filepath.Join(root, name), data, 0o644); err != nil {
			return fmt.Errorf("partition: write %s: %w", name, err)
		}
	}
	for name, data := range argFiles {
		if err := os.WriteFile(filepath.Join(root, name), data, 0o644); err != nil {
			return fmt.Errorf("partition: write %s: %w", name, err)
		}
	}
	for i, seg := range p.segments {
		data, err := seg.MarshalBinary()
		if err != nil {
			return fmt.Errorf("partition: marshal segment %d: %w", i, err)
		}
		name := segmentFileName(i)
		if err := os.WriteFile(filepath.Join(root, name), data, 0o644); err != nil {
			return fmt.Errorf("partition: write %s: %w", name, err)
		}
	}
	return nil
}

// Open reconstructs a partition previously written by Persist. A
// corrupt or unreadable segment file is logged at error level and
// skipped rather than failing the whole load (spec §7 "Corruption");
// the returned partition's Incomplete reports true in that case. A
// corrupt or missing meta index file, or a corrupt argument index file,
// fails the load outright, since every query depends on both. Argument
// index files are discovered by their "@<offset>.idx" names, so a
// missing one is not detected: its offset is simply absent after load.
func Open(ctx context.Context, dir string, id uuid.UUID, opts config.Options) (*Partition, error) {
	root := filepath.Join(dir, id.String())
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("partition: read %s: %w", root, err)
	}

	indexFiles := make(map[string][]byte)
	var segNames []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasPrefix(e.Name(), segmentFilePrefix) && strings.HasSuffix(e.Name(), segmentFileSuffix) {
			segNames = append(segNames, e.Name())
			continue
		}
		data, err := os.ReadFile(filepath.Join(root, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("partition: read %s: %w", e.Name(), err)
		}
		indexFiles[e.Name()] = data
	}
	sort.Strings(segNames)

	meta, err := metaindex.Load(indexFiles, 0, opts.Index.MaxStringSize)
	if err != nil {
		return nil, fmt.Errorf("partition: load meta index: %w", err)
	}
	args, err := argindex.Load(indexFiles, opts.Index.MaxStringSize, opts.Index.MaxContainerElements)
	if err != nil {
		return nil, fmt.Errorf("partition: load argument index: %w", err)
	}

	p := &Partition{ID: id, opts: opts, meta: meta, args: args}
	for _, name := range segNames {
		data, err := os.ReadFile(filepath.Join(root, name))
		if err != nil {
			log.Get(ctx).Error().Err(err).Str("file", name).Msg("partition: segment unreadable, marking incomplete")
			p.incomplete = true
			continue
		}
		seg, err := segment.UnmarshalSegment(data, opts.Segments)
		if err != nil {
			log.Get(ctx).Error().Err(err).Str("file", name).Msg("partition: segment corrupt, marking incomplete")
			p.incomplete = true
			continue
		}
		p.segments = append(p.segments, seg)
	}
	if len(p.segments) == 0 {
		p.segments = append(p.segments, segment.New(0, opts.ChunkSize, opts.Segments))
	}
	last := p.segments[len(p.segments)-1]
	p.writer = segment.NewWriter(last, opts.ChunkSize, int64(opts.MaxSegmentSize))
	return p, nil
}
