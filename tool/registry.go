package tool

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/spetersoncode/codison"
	"github.com/xeipuuv/gojsonschema"
)

// registeredTool combines a tool definition with its handler.
type registeredTool struct {
	spec    codison.ToolSpec
	handler Handler
	schema  *gojsonschema.Schema // nil when the tool declares no parameters
}

// Registry maps tool names to capabilities.
// It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]registeredTool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]registeredTool),
	}
}

// Register adds a tool with its handler to the registry.
// Returns an error if the name is taken or the parameter schema is invalid.
func (r *Registry) Register(spec codison.ToolSpec, handler Handler) error {
	if spec.Name == "" {
		return errors.New("tool: name is required")
	}
	if handler == nil {
		return fmt.Errorf("tool: %s has no handler", spec.Name)
	}

	var schema *gojsonschema.Schema
	if len(spec.Parameters) > 0 {
		s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(spec.Parameters))
		if err != nil {
			return fmt.Errorf("tool: %s invalid schema: %w", spec.Name, err)
		}
		schema = s
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[spec.Name]; exists {
		return &ErrToolAlreadyRegistered{Name: spec.Name}
	}

	r.tools[spec.Name] = registeredTool{
		spec:    spec,
		handler: handler,
		schema:  schema,
	}
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(spec codison.ToolSpec, handler Handler) {
	if err := r.Register(spec, handler); err != nil {
		panic(err)
	}
}

// Unregister removes a tool from the registry.
// It is a no-op if the tool is not registered.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
}

// Get retrieves a handler by tool name.
func (r *Registry) Get(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rt, ok := r.tools[name]
	if !ok {
		return nil, false
	}
	return rt.handler, true
}

// Has reports whether a tool is registered under name.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// Spec retrieves a tool definition by name.
func (r *Registry) Spec(name string) (codison.ToolSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rt, ok := r.tools[name]
	if !ok {
		return codison.ToolSpec{}, false
	}
	return rt.spec, true
}

// Specs returns all tool definitions sorted by name.
// This is what providers advertise to the model.
func (r *Registry) Specs() []codison.ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	specs := make([]codison.ToolSpec, 0, len(r.tools))
	for _, rt := range r.tools {
		specs = append(specs, rt.spec)
	}
	slices.SortFunc(specs, func(a, b codison.ToolSpec) int {
		return cmp.Compare(a.Name, b.Name)
	})
	return specs
}

// Names returns the sorted names of all registered tools.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Execute validates the call's arguments and runs the tool's handler.
//
// It returns *ErrToolNotFound for an unknown name, *ErrInvalidArguments when
// the arguments do not satisfy the schema and *ErrToolExecution when the
// handler fails.
func (r *Registry) Execute(ctx context.Context, call codison.ToolCallRequest) (string, error) {
	r.mu.RLock()
	rt, ok := r.tools[call.Name]
	r.mu.RUnlock()

	if !ok {
		return "", &ErrToolNotFound{Name: call.Name}
	}

	if rt.schema != nil {
		if err := validate(rt.schema, call); err != nil {
			return "", err
		}
	}

	out, err := rt.handler(ctx, call)
	if err != nil {
		return "", &ErrToolExecution{Name: call.Name, Err: err}
	}
	return out, nil
}

func validate(schema *gojsonschema.Schema, call codison.ToolCallRequest) error {
	args := call.Args
	if args == nil {
		args = map[string]any{}
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return &ErrInvalidArguments{Name: call.Name, Problems: []string{err.Error()}}
	}
	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		problems = append(problems, e.String())
	}
	return &ErrInvalidArguments{Name: call.Name, Problems: problems}
}

// Registration holds a tool and its handler for fluent registration.
type Registration struct {
	Spec    codison.ToolSpec
	Handler Handler
}

// Func creates a Registration whose schema is reflected from T and whose
// handler decodes the call arguments into T.
// Panics if schema generation fails.
func Func[T any](name, description string, fn TypedHandler[T]) Registration {
	return Registration{
		Spec: codison.ToolSpec{
			Name:        name,
			Description: description,
			Parameters:  MustSchemaFor[T](),
		},
		Handler: func(ctx context.Context, call codison.ToolCallRequest) (string, error) {
			args, err := DecodeArgs[T](call.Args)
			if err != nil {
				return "", err
			}
			return fn(ctx, args)
		},
	}
}

// WithHandler creates a Registration from a Handler and a raw schema.
func WithHandler(name, description string, schema json.RawMessage, h Handler) Registration {
	return Registration{
		Spec: codison.ToolSpec{
			Name:        name,
			Description: description,
			Parameters:  schema,
		},
		Handler: h,
	}
}

// DecodeArgs converts a generic argument map into T.
func DecodeArgs[T any](args map[string]any) (T, error) {
	var out T
	if len(args) == 0 {
		return out, nil
	}
	data, err := json.Marshal(args)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("decode arguments: %w", err)
	}
	return out, nil
}

// Add registers one or more tools to the registry.
// Panics if any tool is already registered.
// Returns the registry for fluent chaining.
func (r *Registry) Add(regs ...Registration) *Registry {
	for _, reg := range regs {
		r.MustRegister(reg.Spec, reg.Handler)
	}
	return r
}
