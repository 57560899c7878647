package validation

import "reflect"

// walkStrings calls fn for every string value reachable from v by
// recursively descending into structs, maps, slices, arrays, and
// pointers. It is used to apply injection/control-character/length
// checks "in any string field" per spec.md §4.E.2 without requiring
// message bodies to implement a validation interface.
func walkStrings(v any, fn func(s string)) {
	if v == nil {
		return
	}
	walkValue(reflect.ValueOf(v), fn)
}

func walkValue(rv reflect.Value, fn func(s string)) {
	switch rv.Kind() {
	case reflect.Invalid:
		return
	case reflect.String:
		fn(rv.String())
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return
		}
		walkValue(rv.Elem(), fn)
	case reflect.Struct:
		for i := 0; i < rv.NumField(); i++ {
			field := rv.Field(i)
			if !field.CanInterface() {
				continue
			}
			walkValue(field, fn)
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			walkValue(rv.Index(i), fn)
		}
	case reflect.Map:
		for _, key := range rv.MapKeys() {
			walkValue(rv.MapIndex(key), fn)
		}
	}
}
