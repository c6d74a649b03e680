package schema

import "fmt"

// SuccessFieldID is the id of the return value inside a result struct.
const SuccessFieldID uint16 = 0

// Method describes one RPC endpoint: its wire name, the argument struct and
// the result struct. The result struct carries the return value at id 0 (absent
// for void methods) and one field per declared exception at ids >= 1.
type Method struct {
	Name   string
	Args   *StructDesc
	Result *StructDesc
	Void   bool
	Oneway bool
}

// NewMethod builds a method descriptor and checks the result table shape.
func NewMethod(name string, args, result *StructDesc) *Method {
	m := &Method{Name: name, Args: args, Result: result}
	_, hasSuccess := result.FieldByID(SuccessFieldID)
	m.Void = !hasSuccess
	return m
}

// NewOnewayMethod builds a method that expects no reply.
func NewOnewayMethod(name string, args *StructDesc) *Method {
	return &Method{Name: name, Args: args, Void: true, Oneway: true}
}

// Exceptions returns the declared exception fields in ascending id order.
func (m *Method) Exceptions() []Field {
	if m.Result == nil {
		return nil
	}
	var out []Field
	for _, f := range m.Result.fields {
		if f.ID == SuccessFieldID {
			continue
		}
		out = append(out, f)
	}
	return out
}

func (m *Method) String() string {
	return fmt.Sprintf("%s(%s)", m.Name, m.Args.Name)
}

// Service groups the methods of one remote service by wire name.
type Service struct {
	Name    string
	methods map[string]*Method
	order   []string
}

// NewService builds a service table. Duplicate method names panic.
func NewService(name string, methods ...*Method) *Service {
	s := &Service{Name: name, methods: make(map[string]*Method, len(methods))}
	for _, m := range methods {
		if _, dup := s.methods[m.Name]; dup {
			panic(fmt.Sprintf("schema: service %s declares method %q twice", name, m.Name))
		}
		s.methods[m.Name] = m
		s.order = append(s.order, m.Name)
	}
	return s
}

// Method looks a method up by wire name.
func (s *Service) Method(name string) (*Method, bool) {
	m, ok := s.methods[name]
	return m, ok
}

// Methods returns the methods in declaration order.
func (s *Service) Methods() []*Method {
	out := make([]*Method, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.methods[name])
	}
	return out
}
