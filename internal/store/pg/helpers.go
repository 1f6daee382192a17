package pg

import (
	"encoding/json"
	"time"
)

// --- Nullable helpers ---

func nilStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// --- JSON helpers ---

func jsonOrNull(v any) any {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}

func marshalStringSlice(arr []string) any {
	if arr == nil {
		return nil
	}
	return jsonOrNull(arr)
}

func unmarshalStringSlice(data []byte, dest *[]string) {
	if len(data) == 0 {
		return
	}
	json.Unmarshal(data, dest)
}

func nowUnix() int64 {
	return time.Now().Unix()
}
