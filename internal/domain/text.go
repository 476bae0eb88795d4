package domain

import (
	"fmt"

	"github.com/eleven-am/triggerflow/internal/xjson"
)

func Stringify(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return "null"
	case fmt.Stringer:
		return t.String()
	}
	data, err := xjson.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

func Summarize(v interface{}, limit int) string {
	if limit <= 0 {
		limit = DefaultSummaryLimit
	}
	text := Stringify(v)
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	if limit <= 3 {
		return string(runes[:limit])
	}
	return string(runes[:limit-3]) + "..."
}
