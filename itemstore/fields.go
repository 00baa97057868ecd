package itemstore

import (
	"strconv"
	"strings"
	"time"

	"github.com/fundwit/go-commons/types"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func (f Fields) String(key string) string {
	switch v := f[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case types.ID:
		return v.String()
	case time.Time:
		return v.Format(time.RFC3339Nano)
	default:
		if n, ok := toInt64(v); ok {
			return strconv.FormatInt(n, 10)
		}
		if b, ok := v.(bool); ok {
			return strconv.FormatBool(b)
		}
	}
	return ""
}

func (f Fields) Int(key string) int {
	n, _ := toInt64(f[key])
	return int(n)
}

func (f Fields) ID(key string) types.ID {
	switch v := f[key].(type) {
	case types.ID:
		return v
	case uint64:
		return types.ID(v)
	case string:
		id, _ := types.ParseID(v)
		return id
	case []byte:
		id, _ := types.ParseID(string(v))
		return id
	}
	n, _ := toInt64(f[key])
	return types.ID(n)
}

func (f Fields) Bool(key string) bool {
	switch v := f[key].(type) {
	case bool:
		return v
	case string:
		return parseBoolText(v)
	case []byte:
		return parseBoolText(string(v))
	}
	n, ok := toInt64(f[key])
	return ok && n != 0
}

// Time returns nil when the field is absent, null or unparsable.
func (f Fields) Time(key string) *time.Time {
	t, ok := toTime(f[key])
	if !ok {
		return nil
	}
	return &t
}

func parseBoolText(s string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	return err == nil && b
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	case types.ID:
		return int64(n), true
	case float32:
		return int64(n), true
	case float64:
		return int64(n), true
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		return i, err == nil
	case []byte:
		i, err := strconv.ParseInt(strings.TrimSpace(string(n)), 10, 64)
		return i, err == nil
	}
	return 0, false
}

func toTime(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, !t.IsZero()
	case *time.Time:
		if t == nil || t.IsZero() {
			return time.Time{}, false
		}
		return *t, true
	case string:
		return parseTimeText(t)
	case []byte:
		return parseTimeText(string(t))
	}
	return time.Time{}, false
}

func parseTimeText(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
