package sieve

import (
	"reflect"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ComponentData is the registry record of a component within one world.
// GenerationID selects the mask word and Bitflag the bit within it.
type ComponentData struct {
	ID           int
	GenerationID int
	Bitflag      uint32
	Ref          Component

	queries       []*Query
	setObservable *observable
	getObservable *observable
	pair          *PairComponent
	count         int
}

// Count is the number of entities currently holding the component.
func (d *ComponentData) Count() int {
	return d.count
}

type tag struct {
	name string
}

func (t *tag) String() string {
	return t.name
}

// Prefab marks template entities. A prefab never matches a query unless the
// query names Prefab in an And or Or term.
var Prefab Component = &tag{name: "Prefab"}

func validateComponent(c Component) error {
	switch v := c.(type) {
	case nil:
		return NullComponentError{}
	case *PairComponent:
		if v == nil {
			return NullComponentError{}
		}
		return nil
	case OpTerm, Hook:
		return InvalidComponentError{Component: c}
	}
	rv := reflect.ValueOf(c)
	if !rv.Type().Comparable() {
		return InvalidComponentError{Component: c}
	}
	if rv.Kind() == reflect.Pointer && rv.IsNil() {
		return NullComponentError{}
	}
	return nil
}

// RegisterComponent returns the registry record for c, registering it on
// first use.
func (w *World) RegisterComponent(c Component) (*ComponentData, error) {
	if err := validateComponent(c); err != nil {
		return nil, eris.Wrap(err, "register component")
	}
	if data, ok := w.components[c]; ok {
		return data, nil
	}
	return w.registerComponent(c), nil
}

func (w *World) RegisterComponents(cs ...Component) error {
	for _, c := range cs {
		if _, err := w.RegisterComponent(c); err != nil {
			return err
		}
	}
	return nil
}

func (w *World) registerComponent(c Component) *ComponentData {
	data := &ComponentData{
		ID:            len(w.componentList),
		GenerationID:  len(w.entityMasks) - 1,
		Bitflag:       w.bitflag,
		Ref:           c,
		setObservable: newObservable(),
		getObservable: newObservable(),
	}
	if pc, ok := c.(*PairComponent); ok {
		data.pair = pc
	}
	w.components[c] = data
	w.componentList = append(w.componentList, data)

	w.bitflag <<= 1
	if w.bitflag >= 1<<31 {
		w.bitflag = 1
		w.entityMasks = append(w.entityMasks, make([]uint32, len(w.entityComponents)))
		w.log.Info("opened mask generation", zap.Int("generation", len(w.entityMasks)-1))
	}
	if ce := w.log.Check(zap.DebugLevel, "registered component"); ce != nil {
		ce.Write(
			zap.Int("id", data.ID),
			zap.Int("generation", data.GenerationID),
			zap.Uint32("bitflag", data.Bitflag),
		)
	}
	return data
}

func (w *World) ensureComponent(c Component) *ComponentData {
	if data, ok := w.components[c]; ok {
		return data
	}
	return w.registerComponent(c)
}

// checkComponents validates cs for being added to eid: every value must be a
// usable component and every pair must point at a live entity or a relation.
func (w *World) checkComponents(eid EID, cs []Component) error {
	if !w.EntityExists(eid) {
		return EntityNotFoundError{Entity: eid}
	}
	for _, c := range cs {
		if err := validateComponent(c); err != nil {
			return err
		}
		if pc, ok := c.(*PairComponent); ok {
			if target, ok := pc.target.(EID); ok && !w.EntityExists(target) {
				return EntityNotFoundError{Entity: target}
			}
		}
	}
	return nil
}

// AddComponent adds each component to eid. Components already present are
// left untouched. Nothing is mutated if any argument is invalid.
func (w *World) AddComponent(eid EID, cs ...Component) error {
	if err := w.checkComponents(eid, cs); err != nil {
		return eris.Wrapf(err, "add component to entity %d", eid)
	}
	for _, c := range cs {
		w.addComponent(eid, c, nil, false)
	}
	return nil
}

// SetComponent adds c to eid if needed and passes data to the component's
// set observers. The observers run even when c was already present.
func (w *World) SetComponent(eid EID, c Component, data any) error {
	if err := w.checkComponents(eid, []Component{c}); err != nil {
		return eris.Wrapf(err, "set component on entity %d", eid)
	}
	w.addComponent(eid, c, data, true)
	return nil
}

func (w *World) addComponent(eid EID, c Component, value any, hasValue bool) {
	data := w.ensureComponent(c)
	if hasValue {
		data.setObservable.notify(eid, value)
	}
	raw := w.index.ID(eid)
	if w.hasComponentData(raw, data) {
		return
	}

	w.entityMasks[data.GenerationID][raw] |= data.Bitflag
	w.entityComponents[raw] = append(w.entityComponents[raw], c)
	data.count++

	if data == w.prefab {
		w.refreshQueries(eid)
	} else {
		for _, q := range data.queries {
			w.updateQuery(q, eid)
		}
	}

	if pc := data.pair; pc != nil && pc.concrete() {
		w.onPairAdded(eid, pc)
	}
}

// RemoveComponent removes each component from eid. Absent components are
// ignored.
func (w *World) RemoveComponent(eid EID, cs ...Component) error {
	if !w.EntityExists(eid) {
		return eris.Wrapf(EntityNotFoundError{Entity: eid}, "remove component from entity %d", eid)
	}
	for _, c := range cs {
		if err := validateComponent(c); err != nil {
			return eris.Wrapf(err, "remove component from entity %d", eid)
		}
	}
	for _, c := range cs {
		w.removeComponent(eid, c)
	}
	return nil
}

func (w *World) removeComponent(eid EID, c Component) {
	data, ok := w.components[c]
	if !ok {
		return
	}
	raw := w.index.ID(eid)
	if !w.hasComponentData(raw, data) {
		return
	}

	w.entityMasks[data.GenerationID][raw] &^= data.Bitflag
	w.entityComponents[raw] = deleteComponent(w.entityComponents[raw], c)
	data.count--

	if data == w.prefab {
		w.refreshQueries(eid)
	} else {
		for _, q := range data.queries {
			w.updateQuery(q, eid)
		}
	}

	if pc := data.pair; pc != nil && pc.concrete() {
		w.onPairRemoved(eid, pc)
	}
}

func deleteComponent(cs []Component, c Component) []Component {
	for i, existing := range cs {
		if existing == c {
			copy(cs[i:], cs[i+1:])
			cs[len(cs)-1] = nil
			return cs[:len(cs)-1]
		}
	}
	return cs
}

// HasComponent reports whether eid holds c. Dead entities hold nothing.
func (w *World) HasComponent(eid EID, c Component) bool {
	if c == nil || !w.EntityExists(eid) {
		return false
	}
	data, ok := w.components[c]
	if !ok {
		return false
	}
	return w.hasComponentData(w.index.ID(eid), data)
}

func (w *World) hasComponentData(raw uint32, data *ComponentData) bool {
	return w.entityMasks[data.GenerationID][raw]&data.Bitflag == data.Bitflag
}

// GetComponentData asks the component's get observers for eid's value. It
// returns nil when eid does not hold c or nothing answers.
func (w *World) GetComponentData(eid EID, c Component) (any, error) {
	if !w.EntityExists(eid) {
		return nil, eris.Wrapf(EntityNotFoundError{Entity: eid}, "get component data of entity %d", eid)
	}
	if !w.HasComponent(eid, c) {
		return nil, nil
	}
	return w.components[c].getObservable.notify(eid, nil), nil
}
