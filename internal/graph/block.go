package graph

import (
	"github.com/emirpasic/gods/maps/linkedhashmap"
)

// Block is an ordered list of operators plus the variables they reference.
// Variables iterate in creation order.
type Block struct {
	vars *linkedhashmap.Map // name -> *Variable
	ops  []*Operator
}

func newBlock() *Block {
	return &Block{vars: linkedhashmap.New()}
}

func (b *Block) lookup(name string) (*Variable, bool) {
	v, ok := b.vars.Get(name)
	if !ok {
		return nil, false
	}
	return v.(*Variable), true
}

func (b *Block) add(v *Variable) {
	b.vars.Put(v.name, v)
}

func (b *Block) variables() []*Variable {
	out := make([]*Variable, 0, b.vars.Size())
	it := b.vars.Iterator()
	for it.Next() {
		out = append(out, it.Value().(*Variable))
	}
	return out
}

func (b *Block) operators() []*Operator {
	return append([]*Operator(nil), b.ops...)
}
