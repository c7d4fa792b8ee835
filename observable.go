package sieve

type subscriber struct {
	id uint64
	fn Observer
}

// observable is a subscriber list with tombstoned removal. Unsubscribing
// during a notification leaves a hole that is compacted once the outermost
// notification returns.
type observable struct {
	subs       []subscriber
	nextID     uint64
	depth      int
	tombstones int
}

func newObservable() *observable {
	return &observable{}
}

func (o *observable) subscribe(fn Observer) func() {
	id := o.nextID
	o.nextID++
	o.subs = append(o.subs, subscriber{id: id, fn: fn})
	done := false
	return func() {
		if done {
			return
		}
		done = true
		for i := range o.subs {
			if o.subs[i].id == id {
				o.subs[i].fn = nil
				o.tombstones++
				break
			}
		}
		o.compact()
	}
}

// notify calls every subscriber present when the notification started and
// returns the last non-nil result.
func (o *observable) notify(eid EID, data any) any {
	if len(o.subs) == 0 {
		return nil
	}
	o.depth++
	var result any
	n := len(o.subs)
	for i := 0; i < n; i++ {
		fn := o.subs[i].fn
		if fn == nil {
			continue
		}
		if r := fn(eid, data); r != nil {
			result = r
		}
	}
	o.depth--
	o.compact()
	return result
}

func (o *observable) len() int {
	return len(o.subs) - o.tombstones
}

func (o *observable) compact() {
	if o.depth > 0 || o.tombstones == 0 {
		return
	}
	live := o.subs[:0]
	for _, s := range o.subs {
		if s.fn != nil {
			live = append(live, s)
		}
	}
	clear(o.subs[len(live):])
	o.subs = live
	o.tombstones = 0
}
