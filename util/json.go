// util/json.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package util

import (
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"strings"
)

func UnmarshalJSON[T any](r io.Reader, out *T) error {
	// Unfortunately we need the contents as an array of bytes so that we
	// can issue reasonable errors.
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	return UnmarshalJSONBytes(b, out)
}

// Unmarshal the bytes into the given type but go through some efforts to
// return useful error messages when the JSON is invalid...
func UnmarshalJSONBytes[T any](b []byte, out *T) error {
	err := json.Unmarshal(b, out)
	if err == nil {
		return nil
	}

	decodeOffset := func(offset int64) (line, char int) {
		line, char = 1, 1
		for i := 0; i < int(offset) && i < len(b); i++ {
			if b[i] == '\n' {
				line++
				char = 1
			} else {
				char++
			}
		}
		return
	}

	switch jerr := err.(type) {
	case *json.SyntaxError:
		line, char := decodeOffset(jerr.Offset)
		return fmt.Errorf("Error at line %d, character %d: %w", line, char, jerr)

	case *json.UnmarshalTypeError:
		line, char := decodeOffset(jerr.Offset)
		return fmt.Errorf("Error at line %d, character %d: %s value for %s.%s invalid for type %s",
			line, char, jerr.Value, jerr.Struct, jerr.Field, jerr.Type.String())

	default:
		return err
	}
}

///////////////////////////////////////////////////////////////////////////

// CheckJSON checks whether the provided JSON is syntactically valid and
// then typechecks it with respect to the provided type T, reporting
// misspelled or unexpected object keys.
func CheckJSON[T any](contents []byte, e *ErrorLogger) {
	var items any
	if err := UnmarshalJSONBytes(contents, &items); err != nil {
		e.Error(err)
		return
	}

	ty := reflect.TypeOf((*T)(nil)).Elem()
	structTypeCache := make(map[reflect.Type]map[string]reflect.Type)
	typeCheckJSON(items, ty, structTypeCache, e)
}

func typeCheckJSON(json any, ty reflect.Type, structTypeCache map[reflect.Type]map[string]reflect.Type, e *ErrorLogger) {
	for ty.Kind() == reflect.Ptr {
		ty = ty.Elem()
	}

	switch ty.Kind() {
	case reflect.Array, reflect.Slice:
		if array, ok := json.([]any); ok {
			for i, item := range array {
				e.Push(fmt.Sprintf("[%d]", i))
				typeCheckJSON(item, ty.Elem(), structTypeCache, e)
				e.Pop()
			}
		} else if _, ok := json.(string); !ok {
			// Point2LL is an array type that is JSON encoded as a string,
			// so strings are accepted for arrays here.
			e.ErrorString("unexpected data format provided for object: %s", reflect.TypeOf(json))
		}

	case reflect.Map:
		if m, ok := json.(map[string]any); ok {
			for k, v := range m {
				e.Push(k)
				typeCheckJSON(v, ty.Elem(), structTypeCache, e)
				e.Pop()
			}
		} else {
			e.ErrorString("unexpected data format provided for object: %s", reflect.TypeOf(json))
		}

	case reflect.Struct:
		items, ok := json.(map[string]any)
		if !ok {
			e.ErrorString("unexpected data format provided for object: %s", reflect.TypeOf(json))
			return
		}

		types, ok := structTypeCache[ty]
		if !ok {
			types = make(map[string]reflect.Type)
			for _, field := range reflect.VisibleFields(ty) {
				if jtag, ok := field.Tag.Lookup("json"); ok {
					name, _, _ := strings.Cut(jtag, ",")
					types[name] = field.Type
				}
			}
			structTypeCache[ty] = types
		}

		for _, item := range SortedMapKeys(items) {
			if ty, ok := types[item]; ok {
				e.Push(item)
				typeCheckJSON(items[item], ty, structTypeCache, e)
				e.Pop()
			} else {
				e.ErrorString("The entry %q is not an expected JSON object. Is it misspelled?", item)
			}
		}
	}
}
