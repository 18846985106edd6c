package test

import (
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var NaN float64 = math.NaN()

func IsAlmostEqual(a float64, b float64) bool {
	if math.IsNaN(a) && math.IsNaN(b) {
		return true
	}
	diff := a - b
	return diff < 0.0000001 && diff > -0.0000001
}

func SoftAlmostEqual(t *testing.T, exp float64, actual float64) bool {
	if IsAlmostEqual(exp, actual) {
		return true
	}
	// This should always fail
	return assert.Equal(t, exp, actual)
}

func AlmostEqual(t *testing.T, exp float64, actual float64) {
	if !SoftAlmostEqual(t, exp, actual) {
		t.FailNow()
	}
}

// Equal will fail with NaN == NaN, so we need some special help to make
// the failure pretty.
func RqNaN(t *testing.T, actual float64) {
	if !math.IsNaN(actual) {
		// This always fails, but will give some nice ouput
		require.Equal(t, NaN, actual)
	}
}

// regex can be pattern string or Regexp
func RqPanicsWithRegexp(t *testing.T, regex interface{}, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			require.Regexp(t, regex, r)
		} else {
			require.FailNow(t, "Function did not panic")
		}
	}()
	fn()
}

// CustomRequire is require.Assertions, but with an Equal that recurses into
// structs, slices and maps comparing decimal-ish fields (anything with an
// Equal(T) bool method) by value instead of by internal representation, and
// treating two NaN floats as equal. Plain decimal.Decimal deep-equality is
// representation-sensitive (1 and 1.0 carry different exponents), which makes
// require.Equal too strict for values built via separate code paths.
type CustomRequire struct {
	t *testing.T
}

func NewCustomRequire(t *testing.T) CustomRequire {
	return CustomRequire{t}
}

// LinesEqual compares two multi-line strings line by line, so a mismatch
// failure points at the offending line instead of dumping the whole blob.
func (c CustomRequire) LinesEqual(expected string, actual string) {
	expLines := strings.Split(expected, "\n")
	actLines := strings.Split(actual, "\n")
	require.Equal(c.t, len(expLines), len(actLines), "line count differs")
	for i := range expLines {
		require.Equal(c.t, expLines[i], actLines[i], "line %d differs", i+1)
	}
}

func (c CustomRequire) Equal(expected interface{}, actual interface{}, msgAndArgs ...interface{}) {
	if !deepValueEqual(reflect.ValueOf(expected), reflect.ValueOf(actual)) {
		require.Equal(c.t, expected, actual, msgAndArgs...)
	}
}

func deepValueEqual(expected, actual reflect.Value) bool {
	if !expected.IsValid() || !actual.IsValid() {
		return expected.IsValid() == actual.IsValid()
	}
	if expected.Type() != actual.Type() {
		return false
	}
	if !expected.CanInterface() {
		// Unexported field with no Equal method in scope; nothing safe to
		// compare it by, so don't let it fail the whole comparison.
		return true
	}

	if m := expected.MethodByName("Equal"); m.IsValid() {
		mt := m.Type()
		if mt.NumIn() == 1 && mt.NumOut() == 1 && mt.Out(0).Kind() == reflect.Bool &&
			expected.Type().AssignableTo(mt.In(0)) {
			return m.Call([]reflect.Value{actual})[0].Bool()
		}
	}

	switch expected.Kind() {
	case reflect.Float32, reflect.Float64:
		e, a := expected.Float(), actual.Float()
		if math.IsNaN(e) && math.IsNaN(a) {
			return true
		}
		return e == a
	case reflect.Ptr:
		if expected.IsNil() || actual.IsNil() {
			return expected.IsNil() == actual.IsNil()
		}
		return deepValueEqual(expected.Elem(), actual.Elem())
	case reflect.Interface:
		if expected.IsNil() || actual.IsNil() {
			return expected.IsNil() == actual.IsNil()
		}
		return deepValueEqual(expected.Elem(), actual.Elem())
	case reflect.Struct:
		for i := 0; i < expected.NumField(); i++ {
			if !deepValueEqual(expected.Field(i), actual.Field(i)) {
				return false
			}
		}
		return true
	case reflect.Slice, reflect.Array:
		if expected.Kind() == reflect.Slice {
			if expected.IsNil() != actual.IsNil() {
				return false
			}
		}
		if expected.Len() != actual.Len() {
			return false
		}
		for i := 0; i < expected.Len(); i++ {
			if !deepValueEqual(expected.Index(i), actual.Index(i)) {
				return false
			}
		}
		return true
	case reflect.Map:
		if expected.IsNil() != actual.IsNil() {
			return false
		}
		if expected.Len() != actual.Len() {
			return false
		}
		iter := expected.MapRange()
		for iter.Next() {
			av := actual.MapIndex(iter.Key())
			if !av.IsValid() || !deepValueEqual(iter.Value(), av) {
				return false
			}
		}
		return true
	default:
		return reflect.DeepEqual(expected.Interface(), actual.Interface())
	}
}
