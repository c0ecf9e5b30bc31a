// Package query implements C10: the expression evaluator that turns an
// AST of extractors, relations, and boolean connectives into a single
// bitstream of matching event positions.
package query

import (
	"context"
	"fmt"
	"sync"

	"github.com/unsecureio/vast/internal/argindex"
	"github.com/unsecureio/vast/internal/bitstream"
	"github.com/unsecureio/vast/internal/coder"
	"github.com/unsecureio/vast/internal/log"
	"github.com/unsecureio/vast/internal/metaindex"
	"github.com/unsecureio/vast/internal/value"

	"golang.org/x/sync/errgroup"
)

// Kind discriminates the AST node variants (spec §4.9).
type Kind int

const (
	KindConstant Kind = iota
	KindRelation
	KindAnd
	KindOr
	KindNot
)

// Extractor names the left-hand side of a relation.
type Extractor int

const (
	ExtractorName Extractor = iota
	ExtractorTimestamp
	ExtractorID
	ExtractorOffset
	ExtractorType
)

// Node is one AST node. Relations hold an Extractor, an Op, and a
// literal Value (plus an Offset when Extractor is ExtractorOffset);
// connectives hold Children.
type Node struct {
	Kind Kind

	Extractor Extractor
	Offset    value.Offset
	Op        coder.Op
	Value     value.Value

	Const bool

	Children []*Node
}

// Constant constructs a literal true/false leaf.
func Constant(b bool) *Node { return &Node{Kind: KindConstant, Const: b} }

// Relation constructs a comparison leaf.
func Relation(ex Extractor, off value.Offset, op coder.Op, v value.Value) *Node {
	return &Node{Kind: KindRelation, Extractor: ex, Offset: off, Op: op, Value: v}
}

// And/Or/Not construct boolean connectives.
func And(children ...*Node) *Node { return &Node{Kind: KindAnd, Children: children} }
func Or(children ...*Node) *Node  { return &Node{Kind: KindOr, Children: children} }
func Not(child *Node) *Node       { return &Node{Kind: KindNot, Children: []*Node{child}} }

// Evaluator resolves an AST against one partition's meta and argument
// indexes (spec §4.9).
type Evaluator struct {
	meta *metaindex.MetaIndex
	args *argindex.ArgIndex
	size uint64

	idWarnOnce sync.Once
}

// New constructs an Evaluator over meta and args. size is the
// partition's current row count, used to size id_extractor's
// placeholder result and full/empty constant results.
func New(meta *metaindex.MetaIndex, args *argindex.ArgIndex, size uint64) *Evaluator {
	return &Evaluator{meta: meta, args: args, size: size}
}

// Eval walks node post-order, fanning independent subtrees of AND/OR
// connectives out across goroutines (spec §5's concurrent evaluation,
// wired here via errgroup).
func (e *Evaluator) Eval(ctx context.Context, n *Node) (*bitstream.Bitstream, error) {
	switch n.Kind {
	case KindConstant:
		return bitstream.Repeat(e.size, n.Const), nil

	case KindRelation:
		return e.evalRelation(ctx, n)

	case KindNot:
		child, err := e.Eval(ctx, n.Children[0])
		if err != nil {
			return nil, err
		}
		return child.PadTo(e.size).Not(), nil

	case KindAnd, KindOr:
		results := make([]*bitstream.Bitstream, len(n.Children))
		g, gctx := errgroup.WithContext(ctx)
		for i, child := range n.Children {
			i, child := i, child
			g.Go(func() error {
				r, err := e.Eval(gctx, child)
				if err != nil {
					return err
				}
				results[i] = r
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		acc := results[0].PadTo(e.size)
		for _, r := range results[1:] {
			r = r.PadTo(e.size)
			if n.Kind == KindAnd {
				acc = acc.And(r)
			} else {
				acc = acc.Or(r)
			}
		}
		return acc, nil

	default:
		return nil, fmt.Errorf("query: unknown node kind %d", n.Kind)
	}
}

func (e *Evaluator) evalRelation(ctx context.Context, n *Node) (*bitstream.Bitstream, error) {
	switch n.Extractor {
	case ExtractorName:
		return e.meta.LookupName(n.Op, n.Value)
	case ExtractorTimestamp:
		return e.meta.LookupTimestamp(n.Op, n.Value)
	case ExtractorOffset:
		r, err := e.args.Lookup(n.Offset, n.Op, n.Value, e.size)
		if err != nil {
			return nil, err
		}
		return r.PadTo(e.size), nil
	case ExtractorType:
		return e.evalType(n)
	case ExtractorID:
		return e.evalID(ctx)
	default:
		return nil, fmt.Errorf("query: unknown extractor %d", n.Extractor)
	}
}

// evalType OR-combines the lookups of every offset index whose values are
// of the queried kind: "does value n.Value of kind n.Value.Kind appear at
// any offset" (spec §4.7), not merely "does some field of that kind exist
// here" — the latter would ignore the relation's value entirely.
func (e *Evaluator) evalType(n *Node) (*bitstream.Bitstream, error) {
	indexes := e.args.ByKind(n.Value.Kind)
	acc := bitstream.Repeat(e.size, false)
	for _, idx := range indexes {
		r, err := idx.Lookup(coder.EQ, n.Value)
		if err != nil {
			return nil, err
		}
		acc = acc.Or(r.PadTo(e.size))
	}
	switch n.Op {
	case coder.EQ:
		return acc, nil
	case coder.NE:
		return acc.Not(), nil
	default:
		return nil, coder.ErrUnsupportedOp(n.Op)
	}
}

// evalID defers id_extractor: spec leaves the positional-row-ID
// predicate unimplemented, returning the empty set and logging a
// one-shot warning per evaluator rather than failing the whole query.
func (e *Evaluator) evalID(ctx context.Context) (*bitstream.Bitstream, error) {
	e.idWarnOnce.Do(func() {
		log.Get(ctx).Warn().Msg("query: id_extractor is not implemented, treating as empty match")
	})
	return bitstream.Repeat(e.size, false), nil
}
