package exec

import (
	"context"

	"github.com/guileen/memquery/algebra"
)

// padder builds output rows for unmatched rows of an outer join. Each output
// column is read from its static side; when that side is missing and the
// column is shared, the other side supplies it; otherwise it is nil.
type padder struct {
	schema *algebra.RelationSchema
	sides  []algebra.JoinSide
	inL    []bool
	inR    []bool
}

func newPadder(j algebra.Join) (*padder, error) {
	schema := j.OutputSchema()
	p := &padder{
		schema: schema,
		sides:  make([]algebra.JoinSide, schema.Len()),
		inL:    make([]bool, schema.Len()),
		inR:    make([]bool, schema.Len()),
	}
	for i, name := range schema.ColumnNames() {
		side, err := j.SideOf(name)
		if err != nil {
			return nil, err
		}
		p.sides[i] = side
		p.inL[i] = j.Left().OutputSchema().HasColumn(name)
		p.inR[i] = j.Right().OutputSchema().HasColumn(name)
	}
	return p, nil
}

// pad builds a row from left or right, exactly one of which is nil.
func (p *padder) pad(left, right algebra.Row) (algebra.Row, error) {
	out := algebra.NewMutableRow(p.schema)
	for i := range p.sides {
		src := left
		if p.sides[i] == algebra.RightSide {
			src = right
		}
		if src == nil {
			switch {
			case left != nil && p.inL[i]:
				src = left
			case right != nil && p.inR[i]:
				src = right
			}
		}
		if src == nil {
			continue
		}
		v, err := src.Value(p.schema.ColumnAt(i).Name)
		if err != nil {
			return nil, err
		}
		out.Set(i, v)
	}
	return out.Row(), nil
}

func preservesLeft(t algebra.JoinType) bool {
	return t == algebra.JoinLeftOuter || t == algebra.JoinFullOuter
}

func preservesRight(t algebra.JoinType) bool {
	return t == algebra.JoinRightOuter || t == algebra.JoinFullOuter
}

// joinState is the probe loop shared by the join operators: for each left
// row, walk its candidate right rows, then pad if nothing matched; once the
// left side is exhausted, pad unmatched right rows.
type joinState struct {
	opStats
	join       algebra.Join
	left       Operator
	right      Operator
	rightRows  []algebra.Row
	rightHit   []bool
	pad        *padder
	candidates func(left algebra.Row) ([]int, error)

	cur      algebra.Row
	cand     []int
	candPos  int
	curHit   bool
	leftDone bool
	tailPos  int
	cc       cancelCheck
}

func (s *joinState) openInputs(ctx context.Context) error {
	s.open(ctx)
	if err := s.right.Open(ctx); err != nil {
		return err
	}
	rows, err := drain(s.right)
	if err != nil {
		return err
	}
	s.rightRows = rows
	s.rightHit = make([]bool, len(rows))
	if s.pad, err = newPadder(s.join); err != nil {
		return err
	}
	s.cur, s.cand, s.candPos, s.curHit, s.leftDone, s.tailPos = nil, nil, 0, false, false, 0
	return s.left.Open(ctx)
}

func (s *joinState) Next() (algebra.Row, error) {
	for !s.leftDone {
		if err := s.cc.check(s.ctx); err != nil {
			return nil, err
		}
		if s.cur != nil && s.candPos < len(s.cand) {
			idx := s.cand[s.candPos]
			s.candPos++
			right := s.rightRows[idx]
			ok, err := s.join.Match(s.cur, right)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			s.curHit = true
			s.rightHit[idx] = true
			out, err := s.join.Call(s.cur, right)
			if err != nil {
				return nil, err
			}
			return s.emit(out)
		}

		if s.cur != nil && !s.curHit && preservesLeft(s.join.Type()) {
			left := s.cur
			s.cur = nil
			out, err := s.pad.pad(left, nil)
			if err != nil {
				return nil, err
			}
			return s.emit(out)
		}

		row, err := s.left.Next()
		if err == EOF {
			s.leftDone = true
			s.cur = nil
			break
		}
		if err != nil {
			return nil, err
		}
		cand, err := s.candidates(row)
		if err != nil {
			return nil, err
		}
		s.cur, s.cand, s.candPos, s.curHit = row, cand, 0, false
	}

	if preservesRight(s.join.Type()) {
		for s.tailPos < len(s.rightRows) {
			idx := s.tailPos
			s.tailPos++
			if s.rightHit[idx] {
				continue
			}
			out, err := s.pad.pad(nil, s.rightRows[idx])
			if err != nil {
				return nil, err
			}
			return s.emit(out)
		}
	}
	return nil, EOF
}

func (s *joinState) Close() error {
	s.report()
	lerr := s.left.Close()
	rerr := s.right.Close()
	if lerr != nil {
		return lerr
	}
	return rerr
}

func (s *joinState) Schema() *algebra.RelationSchema { return s.join.OutputSchema() }

// NestedLoopJoinOperator evaluates any join by testing every pair. The right
// input is materialised on Open.
type NestedLoopJoinOperator struct {
	joinState
	all []int
}

func NewNestedLoopJoin(left, right Operator, join algebra.Join) *NestedLoopJoinOperator {
	op := &NestedLoopJoinOperator{joinState: joinState{
		opStats: opStats{name: "nested_loop_join"},
		join:    join,
		left:    left,
		right:   right,
	}}
	op.candidates = func(algebra.Row) ([]int, error) { return op.all, nil }
	return op
}

func (op *NestedLoopJoinOperator) Open(ctx context.Context) error {
	if err := op.openInputs(ctx); err != nil {
		return err
	}
	op.all = make([]int, len(op.rightRows))
	for i := range op.all {
		op.all[i] = i
	}
	return nil
}
