package dom

// EachOpKind is the kind of an EachOp.
type EachOpKind int

const (
	UpdateItem EachOpKind = iota
	InsertItem
	RemoveItem
)

func (k EachOpKind) String() string {
	switch k {
	case UpdateItem:
		return "update"
	case InsertItem:
		return "insert"
	}
	return "remove"
}

// EachOp is one step of an each update.
type EachOp struct {
	Kind  EachOpKind
	Index int
}

// PlanEach plans the update of an each from old to new items. Items are
// identified by position: the common prefix is updated where dirty reports
// a change, new items are inserted at the tail and surplus items are
// removed from the end backwards.
func PlanEach(old, new int, dirty func(i int) bool) []EachOp {
	var ops []EachOp
	for i := 0; i < min(old, new); i++ {
		if dirty(i) {
			ops = append(ops, EachOp{UpdateItem, i})
		}
	}
	for i := old; i < new; i++ {
		ops = append(ops, EachOp{InsertItem, i})
	}
	for i := old - 1; i >= new; i-- {
		ops = append(ops, EachOp{RemoveItem, i})
	}
	return ops
}
