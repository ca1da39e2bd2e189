package cache

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"
)

const keyNamespace = "identity"

// Result kinds distinguish single-row lookups from list queries so that
// list entries can be swept by prefix without touching point entries.
const (
	KindOne  = "one"
	KindList = "list"
)

// Key derives a deterministic cache key for a query. The operation name and
// a canonical encoding of its arguments are digested with xxhash so that
// structurally equal queries always map to the same key.
func Key(model, kind, op string, args map[string]any) string {
	return fmt.Sprintf("%s:%s:%s:%016x", keyNamespace, model, kind, digest(op, args))
}

// Prefix returns the key prefix covering every entry of a model, or of a
// single result kind within a model when kind is non-empty.
func Prefix(model, kind string) string {
	if kind == "" {
		return fmt.Sprintf("%s:%s:", keyNamespace, model)
	}
	return fmt.Sprintf("%s:%s:%s:", keyNamespace, model, kind)
}

// CounterKey derives a key for a rate or lockout counter scoped to a
// subject, for example a client IP and email pair.
func CounterKey(scope string, parts ...string) string {
	h := xxhash.New()
	for _, p := range parts {
		_, _ = h.WriteString(p)
		_, _ = h.WriteString("\x00")
	}
	return fmt.Sprintf("%s:%s:%016x", keyNamespace, scope, h.Sum64())
}

func digest(op string, args map[string]any) uint64 {
	h := xxhash.New()
	_, _ = h.WriteString(op)
	_, _ = h.WriteString("|")

	// Map iteration order is random, so encode entries sorted by key.
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v, err := json.Marshal(args[k])
		if err != nil {
			v = []byte(fmt.Sprintf("%v", args[k]))
		}
		_, _ = h.WriteString(k)
		_, _ = h.WriteString("=")
		_, _ = h.Write(v)
		_, _ = h.WriteString("|")
	}
	return h.Sum64()
}
