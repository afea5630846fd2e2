package transport

import (
	"encoding/json"
	"fmt"
	"net"
	"reflect"
	"syscall"
)

// maxEncodeDepth bounds the pre-flight walk over nested values.
const maxEncodeDepth = 64

// EncodeError reports why a value cannot travel under a mode.
type EncodeError struct {
	Mode   Mode
	Type   string
	Path   string
	Reason string
}

func (e *EncodeError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: cannot encode %s at %s: %s", e.Mode, e.Type, e.Path, e.Reason)
	}
	return fmt.Sprintf("%s: cannot encode %s: %s", e.Mode, e.Type, e.Reason)
}

func jsonMarshal(v any) ([]byte, error) { return json.Marshal(v) }

// CanEncode checks, without any connection, whether v can be sent under mode.
// Values holding live operating-system handles (sockets, listeners, files),
// channels or functions in any exported position are rejected even where a
// particular encoder would silently drop them.
func CanEncode(mode Mode, v any) error {
	if !mode.Valid() {
		return &EncodeError{Mode: mode, Type: typeName(v), Reason: "unknown mode"}
	}
	if v == nil {
		return &EncodeError{Mode: mode, Type: "nil", Reason: "nil value"}
	}
	w := walker{mode: mode, onPath: map[visit]bool{}, clean: map[visit]bool{}}
	if err := w.walk(reflect.ValueOf(v), "", 0); err != nil {
		return err
	}
	if err := encodeWith(mode, v); err != nil {
		return &EncodeError{Mode: mode, Type: typeName(v), Reason: err.Error()}
	}
	return nil
}

// visit identifies a reference value by address and type; a struct and its
// first field share an address.
type visit struct {
	addr uintptr
	typ  reflect.Type
}

// walker tracks the references on the current path to reject cycles, which
// gob and yaml would otherwise follow until the stack overflows. References
// already walked to completion are known acyclic and are not walked again.
type walker struct {
	mode   Mode
	onPath map[visit]bool
	clean  map[visit]bool
}

var (
	connType     = reflect.TypeOf((*net.Conn)(nil)).Elem()
	listenerType = reflect.TypeOf((*net.Listener)(nil)).Elem()
	sysConnType  = reflect.TypeOf((*syscall.Conn)(nil)).Elem()
)

func (w walker) fail(v reflect.Value, path, reason string) error {
	return &EncodeError{Mode: w.mode, Type: v.Type().String(), Path: path, Reason: reason}
}

func (w walker) walk(v reflect.Value, path string, depth int) error {
	if !v.IsValid() {
		return nil
	}
	if depth > maxEncodeDepth {
		return w.fail(v, path, "value nested too deeply")
	}
	t := v.Type()
	if t.Kind() != reflect.Interface && (t.Implements(connType) || t.Implements(listenerType) || t.Implements(sysConnType)) {
		return w.fail(v, path, "live operating-system handle")
	}
	switch v.Kind() {
	case reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return w.fail(v, path, v.Kind().String()+" values are not serializable")
	case reflect.Interface:
		if v.IsNil() {
			return nil
		}
		return w.walk(v.Elem(), path, depth+1)
	case reflect.Pointer:
		if v.IsNil() {
			return nil
		}
		return w.enter(v, path, func() error { return w.walk(v.Elem(), path, depth+1) })
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			if err := w.walk(v.Field(i), join(path, f.Name), depth+1); err != nil {
				return err
			}
		}
	case reflect.Array:
		return w.elems(v, path, depth)
	case reflect.Slice:
		if v.Len() == 0 {
			return nil
		}
		return w.enter(v, path, func() error { return w.elems(v, path, depth) })
	case reflect.Map:
		if v.Len() == 0 {
			return nil
		}
		return w.enter(v, path, func() error {
			iter := v.MapRange()
			for iter.Next() {
				if err := w.walk(iter.Key(), path+"{key}", depth+1); err != nil {
					return err
				}
				if err := w.walk(iter.Value(), fmt.Sprintf("%s[%v]", path, iter.Key()), depth+1); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return nil
}

// enter runs body with the reference v marked as on the current path.
func (w walker) enter(v reflect.Value, path string, body func() error) error {
	key := visit{addr: v.Pointer(), typ: v.Type()}
	if w.onPath[key] {
		return w.fail(v, path, "cyclic value")
	}
	if w.clean[key] {
		return nil
	}
	w.onPath[key] = true
	err := body()
	delete(w.onPath, key)
	if err == nil {
		w.clean[key] = true
	}
	return err
}

func (w walker) elems(v reflect.Value, path string, depth int) error {
	for i := 0; i < v.Len(); i++ {
		if err := w.walk(v.Index(i), fmt.Sprintf("%s[%d]", path, i), depth+1); err != nil {
			return err
		}
	}
	return nil
}

func join(path, field string) string {
	if path == "" {
		return field
	}
	return path + "." + field
}

func typeName(v any) string {
	if v == nil {
		return "nil"
	}
	return reflect.TypeOf(v).String()
}
