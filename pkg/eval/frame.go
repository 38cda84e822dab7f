package eval

import (
	"decipher/pkg/diag"
	"sort"
)

type FrameKind uint8

const (
	FrameProgram FrameKind = iota
	FrameProcedure
)

func (k FrameKind) String() string {
	if k == FrameProgram {
		return "PROGRAM"
	}
	return "PROCEDURE"
}

// ActivationRecord holds the runtime state of one program or procedure
// invocation. link is only set in lexical scoping mode and points at the
// record of the scope the procedure was declared in.
type ActivationRecord struct {
	Name         string
	Kind         FrameKind
	NestingLevel int

	members       map[string]Object
	declaredTypes map[string]string
	link          *ActivationRecord
}

func NewActivationRecord(name string, kind FrameKind, level int) *ActivationRecord {
	return &ActivationRecord{
		Name:          name,
		Kind:          kind,
		NestingLevel:  level,
		members:       make(map[string]Object),
		declaredTypes: make(map[string]string),
	}
}

// owner returns the record that holds name: the first one along the access
// link chain that declares or stores it. Without a link that is always ar.
func (ar *ActivationRecord) owner(name string) *ActivationRecord {
	for r := ar; r != nil; r = r.link {
		if _, ok := r.declaredTypes[name]; ok {
			return r
		}
		if _, ok := r.members[name]; ok {
			return r
		}
	}
	return ar
}

func (ar *ActivationRecord) Get(name string) (Object, bool) {
	obj, ok := ar.owner(name).members[name]
	return obj, ok
}

func (ar *ActivationRecord) Set(name string, val Object) Object {
	ar.owner(name).members[name] = val
	return val
}

// Declare records the declared type of a name local to this record.
func (ar *ActivationRecord) Declare(name, typeName string) {
	ar.declaredTypes[name] = typeName
}

func (ar *ActivationRecord) DeclaredType(name string) (string, bool) {
	t, ok := ar.owner(name).declaredTypes[name]
	return t, ok
}

// inherit copies the caller's values into ar, skipping names ar already
// binds. Declared types stay with the caller, so an inherited name takes
// whatever is assigned to it. Later writes to the copies never reach the
// caller.
func (ar *ActivationRecord) inherit(caller *ActivationRecord) {
	for name, val := range caller.members {
		if _, ok := ar.members[name]; !ok {
			ar.members[name] = val
		}
	}
}

// Names returns the names with a value in this record, sorted.
func (ar *ActivationRecord) Names() []string {
	names := make([]string, 0, len(ar.members))
	for name := range ar.members {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CallStack is a LIFO of activation records with a depth bound.
type CallStack struct {
	records  []*ActivationRecord
	maxDepth int
}

func NewCallStack(maxDepth int) *CallStack {
	return &CallStack{maxDepth: maxDepth}
}

func (s *CallStack) Push(ar *ActivationRecord) error {
	if s.maxDepth > 0 && len(s.records) >= s.maxDepth {
		return diag.New(diag.KindStackOverflow, "call stack exceeded %d frames calling %s", s.maxDepth, ar.Name)
	}
	s.records = append(s.records, ar)
	return nil
}

func (s *CallStack) Pop() *ActivationRecord {
	if len(s.records) == 0 {
		return nil
	}
	ar := s.records[len(s.records)-1]
	s.records = s.records[:len(s.records)-1]
	return ar
}

func (s *CallStack) Peek() *ActivationRecord {
	if len(s.records) == 0 {
		return nil
	}
	return s.records[len(s.records)-1]
}

func (s *CallStack) Depth() int { return len(s.records) }

// nearest returns the topmost record at the given nesting level.
func (s *CallStack) nearest(level int) *ActivationRecord {
	for i := len(s.records) - 1; i >= 0; i-- {
		if s.records[i].NestingLevel == level {
			return s.records[i]
		}
	}
	return nil
}
