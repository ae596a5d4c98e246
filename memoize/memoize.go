package memoize

import (
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/goliatone/go-bucket-cache/bucket"
	"github.com/goliatone/go-bucket-cache/keymaker"
)

// Store is the cache surface a wrapper needs: the same hashing path as the
// bucket's Get and Set, addressed at the hash level. Both *bucket.Bucket and
// *bucket.DeferredWriteBucket satisfy it.
type Store interface {
	HashKey(key any) (string, error)
	LoadHash(hash string) (*bucket.Entry, error)
	StoreHash(hash string, value any) (*bucket.Entry, error)
}

// Func is the callable being memoized. It receives the call's positional
// arguments and named arguments exactly as the caller supplied them.
type Func func(pos []any, named map[string]any) (any, error)

// Config carries the parameter metadata captured at wrap time plus the
// caching options. Go reflection cannot recover parameter names, so the
// declared parameter list is stated explicitly; everything after that is a
// pure data transformation per call.
type Config struct {
	// Name identifies the function; it is part of every cache signature.
	Name string
	// Params are the declared parameter names in call order. For methods
	// the first entry names the receiver.
	Params []string
	// Defaults supplies values for parameters omitted from a call.
	Defaults map[string]any
	// Variadic names the bucket that collects extra positional arguments.
	// Empty means extra positional arguments are an error.
	Variadic string
	// VarKw names the bucket that collects unknown named arguments. Empty
	// means unknown named arguments are an error.
	VarKw string
	// Method marks the wrapped function as an instance method: the first
	// positional argument is the receiver, whose state snapshot is
	// prepended to the signature and whose parameter is removed from it.
	Method bool
	// Nocache names a parameter that, when truthy for a call, bypasses the
	// cache lookup while still writing the fresh result.
	Nocache string
	// Ignore lists parameters excluded from the cache signature. Naming
	// the Variadic or VarKw bucket removes that bucket wholesale.
	Ignore []string
}

// ConfigError reports an invalid wrapper configuration.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "memoize config error in field " + e.Field + ": " + e.Message
}

// NonCacheableMutationError reports that executing the wrapped function
// changed values that are part of its own cache key, which makes
// deterministic caching unsound. It is a usage error, not retried.
type NonCacheableMutationError struct {
	Function string
	Method   bool
}

// Error implements the error interface.
func (e *NonCacheableMutationError) Error() string {
	scope := "input parameters"
	if e.Method {
		scope = "input parameters or instance state"
	}
	return fmt.Sprintf("memoize: modification of %s by function %q cannot be cached", scope, e.Function)
}

// CallInfo describes a call whose result was served from cache. It is
// passed to the OnHit callback.
type CallInfo struct {
	// Varargs holds the call's extra positional arguments.
	Varargs []any
	// Args maps every parameter name to its value for this call,
	// including the variadic buckets.
	Args map[string]any
	// Value is the cached result.
	Value any
	// Expiration is the cached entry's expiration, nil when unset.
	Expiration *time.Time
}

// fnIdentity is the static part of every signature: which function, with
// which declared parameters.
type fnIdentity struct {
	Name     string
	Params   []string
	Variadic string
	VarKw    string
}

// Wrapper memoizes a function through a bucket-backed store. Build one with
// Wrap; it is ready for calls immediately.
type Wrapper struct {
	store    Store
	fn       Func
	cfg      Config
	identity fnIdentity
	paramSet map[string]struct{}
	onHit    func(CallInfo)
}

// Wrap builds a memoizing wrapper for fn. Configuration is validated here:
// a Nocache or Ignore name absent from the declared parameter list fails
// immediately (the variadic bucket names are acceptable for Ignore).
func Wrap(store Store, fn Func, cfg Config) (*Wrapper, error) {
	if store == nil {
		return nil, &ConfigError{Field: "store", Message: "cannot be nil"}
	}
	if fn == nil {
		return nil, &ConfigError{Field: "fn", Message: "cannot be nil"}
	}
	if cfg.Name == "" {
		return nil, &ConfigError{Field: "Name", Message: "cannot be empty"}
	}

	paramSet := make(map[string]struct{}, len(cfg.Params))
	for _, p := range cfg.Params {
		if _, dup := paramSet[p]; dup {
			return nil, &ConfigError{Field: "Params", Message: fmt.Sprintf("duplicate parameter %q", p)}
		}
		paramSet[p] = struct{}{}
	}
	if cfg.Method && len(cfg.Params) == 0 {
		return nil, &ConfigError{Field: "Method", Message: "method wrappers need a receiver parameter"}
	}
	if cfg.Nocache != "" {
		if _, ok := paramSet[cfg.Nocache]; !ok {
			return nil, &ConfigError{Field: "Nocache", Message: fmt.Sprintf("parameter %q missing from declared parameters", cfg.Nocache)}
		}
	}
	for _, name := range cfg.Ignore {
		if name == cfg.Variadic && cfg.Variadic != "" {
			continue
		}
		if name == cfg.VarKw && cfg.VarKw != "" {
			continue
		}
		if _, ok := paramSet[name]; !ok {
			return nil, &ConfigError{Field: "Ignore", Message: fmt.Sprintf("parameter %q cannot be ignored if not declared", name)}
		}
	}
	for name := range cfg.Defaults {
		if _, ok := paramSet[name]; !ok {
			return nil, &ConfigError{Field: "Defaults", Message: fmt.Sprintf("default for undeclared parameter %q", name)}
		}
	}

	return &Wrapper{
		store: store,
		fn:    fn,
		cfg:   cfg,
		identity: fnIdentity{
			Name:     cfg.Name,
			Params:   cfg.Params,
			Variadic: cfg.Variadic,
			VarKw:    cfg.VarKw,
		},
		paramSet: paramSet,
	}, nil
}

// OnHit registers a callback fired only when a call is served from cache,
// with the call's normalized arguments and the cached entry's metadata.
// Side effects that should not run on every invocation belong here.
func (w *Wrapper) OnHit(cb func(CallInfo)) {
	w.onHit = cb
}

// Call invokes the wrapped function with positional arguments, reusing a
// cached result when the normalized call matches an earlier one.
func (w *Wrapper) Call(pos ...any) (any, error) {
	return w.CallNamed(pos, nil)
}

// CallNamed invokes the wrapped function with positional and named
// arguments. Equal normalized calls share one cache entry regardless of
// which form supplied each argument.
func (w *Wrapper) CallNamed(pos []any, named map[string]any) (any, error) {
	call, err := w.normalize(pos, named)
	if err != nil {
		return nil, err
	}
	sig, err := w.signature(pos, call)
	if err != nil {
		return nil, err
	}

	hash, err := w.store.HashKey(sig)
	if err != nil {
		return nil, err
	}

	skipCache := false
	if w.cfg.Nocache != "" {
		skipCache = isTruthy(call.callargs[w.cfg.Nocache])
	}

	var result any
	called := false
	if skipCache {
		if result, err = w.callAndStore(hash, pos, named); err != nil {
			return nil, err
		}
		called = true
	} else {
		entry, loadErr := w.store.LoadHash(hash)
		var keyErr *bucket.KeyError
		switch {
		case loadErr == nil:
			result = entry.Value()
			if w.onHit != nil {
				var exp *time.Time
				if t, ok := entry.Expiration(); ok {
					exp = &t
				}
				w.onHit(CallInfo{
					Varargs:    call.varargs,
					Args:       call.callargs,
					Value:      result,
					Expiration: exp,
				})
			}
		case errors.As(loadErr, &keyErr):
			if result, err = w.callAndStore(hash, pos, named); err != nil {
				return nil, err
			}
			called = true
		default:
			return nil, loadErr
		}
	}

	if called {
		// The signature holds live references to the call's values; a
		// different hash now means the function mutated its own cache key.
		postHash, err := w.store.HashKey(sig)
		if err != nil {
			return nil, err
		}
		if postHash != hash {
			return nil, &NonCacheableMutationError{Function: w.cfg.Name, Method: w.cfg.Method}
		}
	}
	return result, nil
}

func (w *Wrapper) callAndStore(hash string, pos []any, named map[string]any) (any, error) {
	result, err := w.fn(pos, named)
	if err != nil {
		return nil, err
	}
	if _, err := w.store.StoreHash(hash, result); err != nil {
		return nil, err
	}
	return result, nil
}

// normalizedCall is a call folded into keyword form: varargs holds the
// extra positional arguments, normargs maps every non-bucket parameter
// (plus flattened keyword-variadic entries) to its value, and callargs is
// the full record including the buckets under their declared names.
type normalizedCall struct {
	varargs  []any
	normargs map[string]any
	callargs map[string]any
	varkw    map[string]any
}

func (w *Wrapper) normalize(pos []any, named map[string]any) (*normalizedCall, error) {
	callargs := make(map[string]any, len(w.cfg.Params)+2)

	var varargs []any
	for i, v := range pos {
		if i < len(w.cfg.Params) {
			callargs[w.cfg.Params[i]] = v
			continue
		}
		if w.cfg.Variadic == "" {
			return nil, fmt.Errorf("memoize: %s takes at most %d positional arguments, got %d",
				w.cfg.Name, len(w.cfg.Params), len(pos))
		}
		varargs = append(varargs, v)
	}

	varkw := make(map[string]any)
	for name, v := range named {
		if _, ok := w.paramSet[name]; ok {
			if _, assigned := callargs[name]; assigned {
				return nil, fmt.Errorf("memoize: %s got multiple values for parameter %q", w.cfg.Name, name)
			}
			callargs[name] = v
			continue
		}
		if w.cfg.VarKw == "" {
			return nil, fmt.Errorf("memoize: %s got unexpected named argument %q", w.cfg.Name, name)
		}
		varkw[name] = v
	}

	for name, v := range w.cfg.Defaults {
		if _, assigned := callargs[name]; !assigned {
			callargs[name] = v
		}
	}
	for _, name := range w.cfg.Params {
		if _, assigned := callargs[name]; !assigned {
			return nil, fmt.Errorf("memoize: %s missing argument %q", w.cfg.Name, name)
		}
	}

	normargs := make(map[string]any, len(callargs)+len(varkw))
	for name, v := range callargs {
		normargs[name] = v
	}
	for name, v := range varkw {
		normargs[name] = v
	}

	if w.cfg.Variadic != "" {
		callargs[w.cfg.Variadic] = varargs
	}
	if w.cfg.VarKw != "" {
		callargs[w.cfg.VarKw] = varkw
	}

	return &normalizedCall{
		varargs:  varargs,
		normargs: normargs,
		callargs: callargs,
		varkw:    varkw,
	}, nil
}

// signature assembles the hashable call record: (instance state, function
// identity, variadic arguments, named arguments), with the nocache
// parameter and every ignored name removed. The record references the
// call's live values so a post-call rehash can detect mutation.
func (w *Wrapper) signature(pos []any, call *normalizedCall) (any, error) {
	sigNorm := make(map[string]any, len(call.normargs))
	for name, v := range call.normargs {
		sigNorm[name] = v
	}
	sigVar := call.varargs

	if w.cfg.Nocache != "" {
		delete(sigNorm, w.cfg.Nocache)
	}
	for _, name := range w.cfg.Ignore {
		switch {
		case name == w.cfg.Variadic && w.cfg.Variadic != "":
			sigVar = nil
		case name == w.cfg.VarKw && w.cfg.VarKw != "":
			for kw := range call.varkw {
				delete(sigNorm, kw)
			}
		default:
			delete(sigNorm, name)
		}
	}

	if w.cfg.Method {
		if len(pos) == 0 {
			return nil, fmt.Errorf("memoize: method %s called without a receiver", w.cfg.Name)
		}
		delete(sigNorm, w.cfg.Params[0])
		return []any{receiverState{receiver: pos[0]}, w.identity, sigVar, sigNorm}, nil
	}
	return []any{w.identity, sigVar, sigNorm}, nil
}

// receiverState defers the receiver's state snapshot to hash time, so the
// post-call rehash sees mutations of instance state rather than a copy taken
// before the call ran.
type receiverState struct {
	receiver any
}

// CacheState implements keymaker.StateProvider.
func (r receiverState) CacheState() any {
	return keymaker.InstanceState(r.receiver)
}

// isTruthy mirrors truth testing for the value kinds that appear in call
// records: nil and zero values are false, everything else is true.
func isTruthy(v any) bool {
	if v == nil {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t != ""
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() != 0
	case reflect.Ptr, reflect.Interface:
		return !rv.IsNil()
	}
	return true
}
