package expr

import (
	"log/slog"
	"math"
	"reflect"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/legutierr/blocktags/pkg"
)

// resolveLookup resolves one key against a store through the chain
// container lookup, attribute lookup, integer-index lookup. A callable
// result taking no arguments is invoked unless callCallable is false.
func resolveLookup(key, store any, callCallable bool) (any, error) {
	value, ok := containerLookup(key, store)

	if !ok {
		if name, isString := key.(string); isString {
			value, ok = attributeLookup(name, store)
		}
	}

	if !ok {
		value, ok = indexLookup(key, store)
	}

	if !ok {
		return nil, pkg.ErrUndefined.
			Wrapf("failed lookup for key %q", stringify(key)).
			With(slog.String("key", stringify(key)))
	}

	return autoCall(value, callCallable)
}

// containerLookup tries store[key]: map indexing, or sequence indexing
// when the key is already an integer.
func containerLookup(key, store any) (any, bool) {
	if store == nil {
		return nil, false
	}

	v := reflect.ValueOf(store)

	switch v.Kind() {
	case reflect.Map:
		kv := reflect.ValueOf(key)
		if !kv.IsValid() || !kv.Type().AssignableTo(v.Type().Key()) {
			if kv.IsValid() && kv.Type().ConvertibleTo(v.Type().Key()) {
				kv = kv.Convert(v.Type().Key())
			} else {
				return nil, false
			}
		}

		entry := v.MapIndex(kv)
		if !entry.IsValid() {
			return nil, false
		}

		return entry.Interface(), true
	case reflect.Slice, reflect.Array, reflect.String:
		i, ok := asInt(key)
		if !ok || i < 0 || int(i) >= v.Len() {
			return nil, false
		}

		if v.Kind() == reflect.String {
			return string(v.Index(int(i)).Interface().(byte)), true
		}

		return v.Index(int(i)).Interface(), true
	}

	return nil, false
}

// attributeLookup tries a struct field or method named key. Template
// names are typically lowercase, so the exported spelling is tried too.
func attributeLookup(key string, store any) (any, bool) {
	if store == nil {
		return nil, false
	}

	v := reflect.ValueOf(store)

	for _, name := range []string{key, exported(key)} {
		if m := v.MethodByName(name); m.IsValid() {
			return m.Interface(), true
		}

		sv := v
		for sv.Kind() == reflect.Pointer {
			if sv.IsNil() {
				return nil, false
			}

			sv = sv.Elem()
		}

		if sv.Kind() == reflect.Struct {
			if f := sv.FieldByName(name); f.IsValid() && f.CanInterface() {
				return f.Interface(), true
			}
		}
	}

	return nil, false
}

// indexLookup tries store[int(key)] for keys that spell an integer.
func indexLookup(key, store any) (any, bool) {
	s, ok := key.(string)
	if !ok {
		return nil, false
	}

	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, false
	}

	return containerLookup(i, store)
}

func exported(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	if size == 0 || unicode.IsUpper(r) {
		return name
	}

	return string(unicode.ToUpper(r)) + name[size:]
}

// autoCall invokes a zero-argument callable value, returning other values
// unchanged. Call targets pass callCallable=false so the function itself
// is produced.
func autoCall(value any, callCallable bool) (any, error) {
	if value == nil {
		return nil, nil
	}

	v := reflect.ValueOf(value)
	if v.Kind() != reflect.Func || !callCallable {
		return value, nil
	}

	if v.Type().NumIn() != 0 {
		return value, nil
	}

	return callReflected(v, nil)
}

// callValue invokes an arbitrary callable with positional and keyword
// arguments. Keyword arguments require the callable's final parameter to
// be a map[string]any.
func callValue(fn any, args []any, kwargs map[string]any) (any, error) {
	if fn == nil {
		return nil, pkg.ErrNotCallable.Wrapf("cannot call nil value")
	}

	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		return nil, pkg.ErrNotCallable.Wrapf("cannot call value of type %T", fn)
	}

	t := v.Type()

	if len(kwargs) > 0 {
		last := t.NumIn() - 1
		if last < 0 || t.In(last) != reflect.TypeOf(map[string]any(nil)) || t.IsVariadic() {
			return nil, pkg.ErrBadOperand.
				Wrapf("callable does not accept keyword arguments")
		}

		args = append(append([]any{}, args...), kwargs)
	}

	fixed := t.NumIn()
	if t.IsVariadic() {
		fixed--
		if len(args) < fixed {
			return nil, pkg.ErrBadOperand.
				Wrapf("callable requires at least %d arguments, got %d", fixed, len(args))
		}
	} else if len(args) != fixed {
		return nil, pkg.ErrBadOperand.
			Wrapf("callable requires %d arguments, got %d", fixed, len(args))
	}

	in := make([]reflect.Value, len(args))

	for i, arg := range args {
		pt := t.In(min(i, t.NumIn()-1))
		if t.IsVariadic() && i >= fixed {
			pt = t.In(t.NumIn() - 1).Elem()
		}

		if arg == nil {
			in[i] = reflect.Zero(pt)

			continue
		}

		av := reflect.ValueOf(arg)
		switch {
		case av.Type().AssignableTo(pt):
			in[i] = av
		case av.Type().ConvertibleTo(pt):
			in[i] = av.Convert(pt)
		default:
			return nil, pkg.ErrBadOperand.
				Wrapf("argument %d: cannot use %T as %s", i, arg, pt)
		}
	}

	return callReflected(v, in)
}

var errType = reflect.TypeOf((*error)(nil)).Elem()

func callReflected(v reflect.Value, in []reflect.Value) (any, error) {
	out := v.Call(in)

	var result any

	for _, r := range out {
		if r.Type().Implements(errType) {
			if !r.IsNil() {
				return nil, r.Interface().(error)
			}

			continue
		}

		if result == nil {
			result = r.Interface()
		}
	}

	return result, nil
}

// truth applies template truthiness: nil, false, zero numbers, and empty
// strings and collections are false.
func truth(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	}

	if f, ok := asFloat(v); ok {
		return f != 0
	}

	if n, ok := lengthOf(v); ok {
		return n > 0
	}

	return true
}

func lengthOf(v any) (int, bool) {
	if v == nil {
		return 0, false
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.String, reflect.Chan:
		return rv.Len(), true
	}

	return 0, false
}

func asInt(v any) (int64, bool) {
	switch t := v.(type) {
	case int:
		return int64(t), true
	case int8:
		return int64(t), true
	case int16:
		return int64(t), true
	case int32:
		return int64(t), true
	case int64:
		return t, true
	case uint:
		return int64(t), true
	case uint8:
		return int64(t), true
	case uint16:
		return int64(t), true
	case uint32:
		return int64(t), true
	case uint64:
		return int64(t), true
	}

	return 0, false
}

func asFloat(v any) (float64, bool) {
	if i, ok := asInt(v); ok {
		return float64(i), true
	}

	switch t := v.(type) {
	case float32:
		return float64(t), true
	case float64:
		return t, true
	}

	return 0, false
}

// equal compares two resolved values, promoting mixed numeric types.
func equal(a, b any) bool {
	if af, ok := asFloat(a); ok {
		if bf, ok := asFloat(b); ok {
			return af == bf
		}

		return false
	}

	return reflect.DeepEqual(a, b)
}

// less orders two resolved values. Only numbers and strings are ordered.
func less(a, b any) (bool, error) {
	if af, ok := asFloat(a); ok {
		if bf, ok := asFloat(b); ok {
			return af < bf, nil
		}
	}

	if as, ok := a.(string); ok {
		if bs, ok := b.(string); ok {
			return as < bs, nil
		}
	}

	return false, pkg.ErrBadOperand.Wrapf("cannot order %T and %T", a, b)
}

// contains implements membership: substring for strings, element equality
// for sequences, key presence for maps.
func contains(item, container any) (bool, error) {
	switch c := container.(type) {
	case string:
		return strings.Contains(c, stringify(item)), nil
	case nil:
		return false, pkg.ErrBadOperand.Wrapf("membership test on nil")
	}

	v := reflect.ValueOf(container)

	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		for i := range v.Len() {
			if equal(item, v.Index(i).Interface()) {
				return true, nil
			}
		}

		return false, nil
	case reflect.Map:
		for _, key := range v.MapKeys() {
			if equal(item, key.Interface()) {
				return true, nil
			}
		}

		return false, nil
	}

	return false, pkg.ErrBadOperand.Wrapf("membership test on %T", container)
}

// Binary arithmetic over int64/float64 with promotion. Addition also
// concatenates strings and lists.
func addValues(a, b any) (any, error) {
	if ai, ok := asIntPair(a, b); ok {
		return ai[0] + ai[1], nil
	}

	if af, ok := asFloatPair(a, b); ok {
		return af[0] + af[1], nil
	}

	if as, ok := a.(string); ok {
		if bs, ok := b.(string); ok {
			return as + bs, nil
		}
	}

	if al, ok := a.([]any); ok {
		if bl, ok := b.([]any); ok {
			return append(append([]any{}, al...), bl...), nil
		}
	}

	return nil, pkg.ErrBadOperand.Wrapf("cannot add %T and %T", a, b)
}

func subValues(a, b any) (any, error) {
	if ai, ok := asIntPair(a, b); ok {
		return ai[0] - ai[1], nil
	}

	if af, ok := asFloatPair(a, b); ok {
		return af[0] - af[1], nil
	}

	return nil, pkg.ErrBadOperand.Wrapf("cannot subtract %T from %T", b, a)
}

func mulValues(a, b any) (any, error) {
	if ai, ok := asIntPair(a, b); ok {
		return ai[0] * ai[1], nil
	}

	if af, ok := asFloatPair(a, b); ok {
		return af[0] * af[1], nil
	}

	return nil, pkg.ErrBadOperand.Wrapf("cannot multiply %T and %T", a, b)
}

// divValues is true division: the result is always a float.
func divValues(a, b any) (any, error) {
	af, ok := asFloatPair(a, b)
	if !ok {
		return nil, pkg.ErrBadOperand.Wrapf("cannot divide %T by %T", a, b)
	}

	if af[1] == 0 {
		return nil, pkg.ErrBadOperand.Wrapf("division by zero")
	}

	return af[0] / af[1], nil
}

func floorDivValues(a, b any) (any, error) {
	if ai, ok := asIntPair(a, b); ok {
		if ai[1] == 0 {
			return nil, pkg.ErrBadOperand.Wrapf("division by zero")
		}

		q := ai[0] / ai[1]
		if (ai[0]%ai[1] != 0) && ((ai[0] < 0) != (ai[1] < 0)) {
			q--
		}

		return q, nil
	}

	af, ok := asFloatPair(a, b)
	if !ok {
		return nil, pkg.ErrBadOperand.Wrapf("cannot floor-divide %T by %T", a, b)
	}

	if af[1] == 0 {
		return nil, pkg.ErrBadOperand.Wrapf("division by zero")
	}

	return math.Floor(af[0] / af[1]), nil
}

func modValues(a, b any) (any, error) {
	if ai, ok := asIntPair(a, b); ok {
		if ai[1] == 0 {
			return nil, pkg.ErrBadOperand.Wrapf("modulo by zero")
		}

		m := ai[0] % ai[1]
		if m != 0 && (m < 0) != (ai[1] < 0) {
			m += ai[1]
		}

		return m, nil
	}

	af, ok := asFloatPair(a, b)
	if !ok {
		return nil, pkg.ErrBadOperand.Wrapf("cannot take %T modulo %T", a, b)
	}

	if af[1] == 0 {
		return nil, pkg.ErrBadOperand.Wrapf("modulo by zero")
	}

	m := math.Mod(af[0], af[1])
	if m != 0 && (m < 0) != (af[1] < 0) {
		m += af[1]
	}

	return m, nil
}

func powValues(a, b any) (any, error) {
	if ai, ok := asIntPair(a, b); ok && ai[1] >= 0 {
		result := int64(1)
		for range ai[1] {
			result *= ai[0]
		}

		return result, nil
	}

	af, ok := asFloatPair(a, b)
	if !ok {
		return nil, pkg.ErrBadOperand.Wrapf("cannot raise %T to %T", a, b)
	}

	return math.Pow(af[0], af[1]), nil
}

func negValue(a any) (any, error) {
	if i, ok := asInt(a); ok {
		return -i, nil
	}

	if f, ok := asFloat(a); ok {
		return -f, nil
	}

	return nil, pkg.ErrBadOperand.Wrapf("cannot negate %T", a)
}

func posValue(a any) (any, error) {
	if i, ok := asInt(a); ok {
		return i, nil
	}

	if f, ok := asFloat(a); ok {
		return f, nil
	}

	return nil, pkg.ErrBadOperand.Wrapf("cannot apply unary plus to %T", a)
}

func asIntPair(a, b any) ([2]int64, bool) {
	ai, aok := intOnly(a)
	bi, bok := intOnly(b)

	return [2]int64{ai, bi}, aok && bok
}

// intOnly is asInt restricted to values that are not floats in disguise.
func intOnly(v any) (int64, bool) {
	switch v.(type) {
	case float32, float64:
		return 0, false
	}

	return asInt(v)
}

func asFloatPair(a, b any) ([2]float64, bool) {
	af, aok := asFloat(a)
	bf, bok := asFloat(b)

	return [2]float64{af, bf}, aok && bok
}

// applySlice implements sequence slicing with optional start, stop, and
// step. Negative indices count from the end; a negative step reverses.
func applySlice(store, start, stop, step any) (any, error) {
	var (
		str      string
		isString bool
	)

	if s, ok := store.(string); ok {
		str, isString = s, true
	}

	v := reflect.ValueOf(store)
	if !isString && v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return nil, pkg.ErrBadOperand.Wrapf("cannot slice %T", store)
	}

	length := v.Len()

	stepN := int64(1)
	if step != nil {
		n, ok := asInt(step)
		if !ok || n == 0 {
			return nil, pkg.ErrBadOperand.Wrapf("invalid slice step %v", step)
		}

		stepN = n
	}

	from, to := sliceBounds(start, stop, length, stepN)

	var elems []any

	if stepN > 0 {
		for i := from; i < to; i += stepN {
			elems = append(elems, elementAt(v, str, isString, int(i)))
		}
	} else {
		for i := from; i > to; i += stepN {
			elems = append(elems, elementAt(v, str, isString, int(i)))
		}
	}

	if isString {
		var sb strings.Builder
		for _, e := range elems {
			sb.WriteString(e.(string))
		}

		return sb.String(), nil
	}

	if elems == nil {
		elems = []any{}
	}

	return elems, nil
}

func elementAt(v reflect.Value, str string, isString bool, i int) any {
	if isString {
		return str[i : i+1]
	}

	return v.Index(i).Interface()
}

func sliceBounds(start, stop any, length int, step int64) (from, to int64) {
	n := int64(length)

	clamp := func(i int64, lo, hi int64) int64 {
		if i < 0 {
			i += n
		}
		if i < lo {
			return lo
		}
		if i > hi {
			return hi
		}

		return i
	}

	if step > 0 {
		from, to = 0, n
		if start != nil {
			if i, ok := asInt(start); ok {
				from = clamp(i, 0, n)
			}
		}
		if stop != nil {
			if i, ok := asInt(stop); ok {
				to = clamp(i, 0, n)
			}
		}

		return from, to
	}

	from, to = n-1, -1
	if start != nil {
		if i, ok := asInt(start); ok {
			from = clamp(i, -1, n-1)
		}
	}
	if stop != nil {
		if i, ok := asInt(stop); ok {
			to = clamp(i, -1, n-1)
		}
	}

	return from, to
}
