package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/unsecureio/vast/internal/argindex"
	"github.com/unsecureio/vast/internal/coder"
	"github.com/unsecureio/vast/internal/metaindex"
	"github.com/unsecureio/vast/internal/value"
)

func setup(t *testing.T) (*metaindex.MetaIndex, *argindex.ArgIndex) {
	t.Helper()
	meta := metaindex.New(0, 0)
	args := argindex.New(0, 0)

	events := []value.Event{
		{ID: 1, Timestamp: time.Unix(100, 0), Type: "click", Value: value.Record{
			{Name: "host", Value: value.String("a.example")},
		}},
		{ID: 2, Timestamp: time.Unix(200, 0), Type: "scroll", Value: value.Record{
			{Name: "host", Value: value.String("b.example")},
		}},
		{ID: 3, Timestamp: time.Unix(300, 0), Type: "click", Value: value.Record{
			{Name: "host", Value: value.String("a.example")},
		}},
	}
	require.NoError(t, meta.Index(events))
	require.NoError(t, args.Index(events))
	return meta, args
}

func TestEvalRelationName(t *testing.T) {
	meta, args := setup(t)
	ev := New(meta, args, meta.Size())

	got, err := ev.Eval(context.Background(), Relation(ExtractorName, nil, coder.EQ, value.String("click")))
	require.NoError(t, err)
	require.False(t, got.Get(0))
	require.True(t, got.Get(1))
	require.False(t, got.Get(2))
	require.True(t, got.Get(3))
}

func TestEvalAndOfNameAndOffset(t *testing.T) {
	meta, args := setup(t)
	ev := New(meta, args, meta.Size())

	ast := And(
		Relation(ExtractorName, nil, coder.EQ, value.String("click")),
		Relation(ExtractorOffset, value.Offset{0}, coder.EQ, value.String("a.example")),
	)
	got, err := ev.Eval(context.Background(), ast)
	require.NoError(t, err)
	require.True(t, got.Get(1))
	require.True(t, got.Get(3))
	require.False(t, got.Get(2))
}

func TestEvalOrAndNot(t *testing.T) {
	meta, args := setup(t)
	ev := New(meta, args, meta.Size())

	ast := Not(Or(
		Relation(ExtractorName, nil, coder.EQ, value.String("click")),
		Relation(ExtractorName, nil, coder.EQ, value.String("scroll")),
	))
	got, err := ev.Eval(context.Background(), ast)
	require.NoError(t, err)
	// Position 0 is the invalid gap seed, so it's neither click nor
	// scroll and NOT(OR) sets it.
	require.True(t, got.Get(0))
	require.False(t, got.Get(1))
	require.False(t, got.Get(2))
	require.False(t, got.Get(3))
}

func TestEvalNotOverUnseenValueMatchesEverything(t *testing.T) {
	meta, args := setup(t)
	ev := New(meta, args, meta.Size())

	// EQ on a name never observed decodes to the length-0 empty
	// sentinel; Not must pad to e.size before complementing it, or the
	// result stays length-0 / cardinality-0 instead of "every position".
	ast := Not(Relation(ExtractorName, nil, coder.EQ, value.String("zzz")))
	got, err := ev.Eval(context.Background(), ast)
	require.NoError(t, err)
	require.Equal(t, meta.Size(), got.Size())
	require.True(t, got.Get(0))
	require.True(t, got.Get(1))
	require.True(t, got.Get(2))
	require.True(t, got.Get(3))
}

func TestEvalConstant(t *testing.T) {
	meta, args := setup(t)
	ev := New(meta, args, meta.Size())

	got, err := ev.Eval(context.Background(), Constant(true))
	require.NoError(t, err)
	require.Equal(t, meta.Size(), got.Cardinality())
}

func TestEvalTypeExtractor(t *testing.T) {
	meta, args := setup(t)
	ev := New(meta, args, meta.Size())

	// type_extractor OR-combines lookups, not presence: only positions
	// whose string-typed field actually equals "a.example" should match,
	// not every position that merely carries some string field.
	got, err := ev.Eval(context.Background(), Relation(ExtractorType, nil, coder.EQ, value.String("a.example")))
	require.NoError(t, err)
	require.False(t, got.Get(0))
	require.True(t, got.Get(1))
	require.False(t, got.Get(2))
	require.True(t, got.Get(3))

	got, err = ev.Eval(context.Background(), Relation(ExtractorType, nil, coder.EQ, value.String("b.example")))
	require.NoError(t, err)
	require.False(t, got.Get(1))
	require.True(t, got.Get(2))
	require.False(t, got.Get(3))

	got, err = ev.Eval(context.Background(), Relation(ExtractorType, nil, coder.NE, value.String("a.example")))
	require.NoError(t, err)
	require.False(t, got.Get(1))
	require.True(t, got.Get(2))
	require.False(t, got.Get(3))
}

func TestEvalAndWithAbsentOffsetDoesNotPanic(t *testing.T) {
	meta, args := setup(t)
	ev := New(meta, args, meta.Size())

	ast := And(
		Relation(ExtractorName, nil, coder.EQ, value.String("click")),
		Relation(ExtractorOffset, value.Offset{9, 9}, coder.EQ, value.String("x")),
	)
	got, err := ev.Eval(context.Background(), ast)
	require.NoError(t, err)
	require.Equal(t, uint64(0), got.Cardinality())
}

func TestEvalIDExtractorDeferred(t *testing.T) {
	meta, args := setup(t)
	ev := New(meta, args, meta.Size())

	got, err := ev.Eval(context.Background(), Relation(ExtractorID, nil, coder.EQ, value.Uint(1)))
	require.NoError(t, err)
	require.Equal(t, uint64(0), got.Cardinality())
}
