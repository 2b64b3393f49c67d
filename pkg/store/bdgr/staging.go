package bdgr

type opKind int

const (
	opAdd opKind = iota
	opUpdate
	opRemove
)

type stagedOp[E any] struct {
	kind   opKind
	entity E
}

// changeSet holds the changes staged by one repository within one unit of work.
//
// Re-staging the same id collapses into a single change (last write wins):
//
//	add    + update => add (final values)
//	add    + remove => nothing
//	update + remove => remove
//	remove + add    => update
//	update + update => update (final values)
type changeSet[E any] struct {
	ops   map[string]*stagedOp[E]
	order []string

	// state of the entities found in store when flushing. A nil entity
	// stands for a record which existed but could not be decoded.
	prior map[string]*E
}

func newChangeSet[E any]() *changeSet[E] {
	return &changeSet[E]{ops: make(map[string]*stagedOp[E])}
}

func (c *changeSet[E]) stage(id string, kind opKind, entity E) {
	existing, ok := c.ops[id]
	if !ok {
		c.ops[id] = &stagedOp[E]{kind: kind, entity: entity}
		c.order = append(c.order, id)
		return
	}

	switch {
	case kind == opRemove && existing.kind == opAdd:
		c.cancel(id)
	case kind == opRemove:
		var zero E
		existing.kind, existing.entity = opRemove, zero
	case existing.kind == opAdd:
		existing.entity = entity
	default:
		existing.kind, existing.entity = opUpdate, entity
	}
}

func (c *changeSet[E]) cancel(id string) {
	delete(c.ops, id)
	for i, k := range c.order {
		if k == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

func (c *changeSet[E]) get(id string) (*stagedOp[E], bool) {
	op, ok := c.ops[id]
	return op, ok
}

func (c *changeSet[E]) each(fn func(id string, op *stagedOp[E]) error) error {
	for _, id := range c.order {
		if err := fn(id, c.ops[id]); err != nil {
			return err
		}
	}
	return nil
}

func (c *changeSet[E]) len() int {
	return len(c.order)
}

func (c *changeSet[E]) resetPrior() {
	c.prior = make(map[string]*E, len(c.order))
}

func (c *changeSet[E]) recordPrior(id string, entity *E) {
	c.prior[id] = entity
}

func (c *changeSet[E]) priorOf(id string) (*E, bool) {
	entity, ok := c.prior[id]
	return entity, ok
}
