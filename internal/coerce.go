package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/lychee-technology/pim"
)

func toInt64ForColumn(value any) (int64, error) {
	switch v := value.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case uint:
		if uint64(v) > math.MaxInt64 {
			return 0, fmt.Errorf("%d overflows int64", v)
		}
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case float64:
		// 1<<63 is exactly representable, MaxInt64 is not.
		if math.IsNaN(v) || math.IsInf(v, 0) || v < math.MinInt64 || v >= 1<<63 {
			return 0, fmt.Errorf("cannot convert %v to int64", v)
		}
		return int64(v), nil
	case float32:
		return toInt64ForColumn(float64(v))
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case json.Number:
		return parseInt64(string(v))
	case string:
		return parseInt64(v)
	default:
		return 0, fmt.Errorf("cannot convert %T to int64", value)
	}
}

// parseInt64 accepts integer and decimal text. Decimals are truncated and
// anything outside the int64 range is an error.
func parseInt64(text string) (int64, error) {
	s := strings.TrimSpace(text)
	i, err := strconv.ParseInt(s, 10, 64)
	if err == nil {
		return i, nil
	}
	if errors.Is(err, strconv.ErrRange) {
		return 0, fmt.Errorf("%q overflows int64", text)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("cannot convert %q to int64", text)
	}
	return toInt64ForColumn(f)
}

func toFloat64ForColumn(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int8:
		return float64(v), nil
	case int16:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint:
		return float64(v), nil
	case uint32:
		return float64(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case json.Number:
		return v.Float64()
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("cannot convert %q to float64", v)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("cannot convert %T to float64", value)
	}
}

// isTruthy follows the loose emptiness rules used for checkbox values:
// nil, false, zero numbers, "", "0" and empty collections are false.
func isTruthy(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != "" && v != "0"
	case json.Number:
		f, err := v.Float64()
		return err != nil || f != 0
	case float64:
		return v != 0
	case float32:
		return v != 0
	case int:
		return v != 0
	case int64:
		return v != 0
	case int32:
		return v != 0
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() > 0
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return false
		}
		return isTruthy(rv.Elem().Interface())
	}
	return true
}

func isEmptyValue(value any) bool {
	return !isTruthy(value)
}

// scalarString renders a scalar the way it is written into a string column.
func scalarString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		if v {
			return "1"
		}
		return ""
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case fmt.Stringer:
		return v.String()
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprint(value)
	}
	return string(data)
}

// textForColumn stores strings verbatim and JSON-encodes anything else.
func textForColumn(value any) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "", false
	case string:
		return v, true
	}
	data, err := json.Marshal(value)
	if err != nil {
		return "", false
	}
	return string(data), true
}

// decodeList accepts a list or a JSON-encoded list. Anything else yields nil.
func decodeList(value any) []any {
	switch v := value.(type) {
	case []any:
		return v
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out
	case string:
		var out []any
		if err := json.Unmarshal([]byte(v), &out); err != nil {
			return nil
		}
		return out
	}
	return nil
}

// decodeJSON decodes a stored JSON document. Malformed input yields nil.
func decodeJSON(text string) any {
	var out any
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil
	}
	return out
}

func setInt(dst *pim.Field[int64], value any) {
	i, err := toInt64ForColumn(value)
	if err != nil || value == nil {
		dst.SetNull()
		return
	}
	dst.Set(i)
}

func setFloat(dst *pim.Field[float64], value any) {
	f, err := toFloat64ForColumn(value)
	if err != nil || value == nil {
		dst.SetNull()
		return
	}
	dst.Set(f)
}

func setString(dst *pim.Field[string], value any) {
	if value == nil {
		dst.SetNull()
		return
	}
	dst.Set(scalarString(value))
}

func copyString(dst *pim.Field[string], src pim.Field[string]) {
	if v, ok := src.Get(); ok {
		dst.Set(v)
		return
	}
	dst.SetNull()
}

// anyOf lifts a stored column into an API value. Absent columns read as null.
func anyOf[T any](src pim.Field[T]) pim.Field[any] {
	if v, ok := src.Get(); ok {
		return pim.Some[any](v)
	}
	return pim.Null[any]()
}

func stringOf(src pim.Field[string]) pim.Field[string] {
	if v, ok := src.Get(); ok {
		return pim.Some(v)
	}
	return pim.Null[string]()
}

func stringsOf(value any) []string {
	list, ok := value.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s := scalarString(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}
