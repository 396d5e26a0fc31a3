package avutil

import (
	"strings"

	"github.com/asticode/go-astiav"
)

// Dictionary is astiav's ordered string-to-string map, used to pass codec
// and container options. Its native behavior is an assumed primitive per
// spec.md; this file adds the configurable-separator parse/serialize
// helpers and the case/prefix lookups spec.md §3 requires but astiav does
// not expose directly.
type Dictionary = astiav.Dictionary

// NewDictionary allocates an empty Dictionary.
func NewDictionary() *Dictionary {
	return astiav.NewDictionary()
}

// ParseDictionary parses s into a new Dictionary using keySep to split
// each key=value pair and pairSep to split pairs from one another, e.g.
// ParseDictionary("a=1:b=2", "=", ":").
func ParseDictionary(s string, keySep, pairSep string) (*Dictionary, error) {
	d := astiav.NewDictionary()
	if s == "" {
		return d, nil
	}
	for _, pair := range strings.Split(s, pairSep) {
		if pair == "" {
			continue
		}
		kv := strings.SplitN(pair, keySep, 2)
		if len(kv) != 2 {
			return nil, Newf("avutil", KindInvalidArgument, "malformed dictionary pair %q", pair)
		}
		d.Set(kv[0], kv[1], 0)
	}
	return d, nil
}

// DictionaryString serializes d back to "key=value" pairs joined by
// pairSep, in insertion order.
func DictionaryString(d *Dictionary, keySep, pairSep string) string {
	if d == nil {
		return ""
	}
	var b strings.Builder
	first := true
	for _, e := range d.All() {
		if !first {
			b.WriteString(pairSep)
		}
		first = false
		b.WriteString(e.Key())
		b.WriteString(keySep)
		b.WriteString(e.Value())
	}
	return b.String()
}

// Lookup finds a value by key, optionally case-insensitively.
func Lookup(d *Dictionary, key string, caseInsensitive bool) (string, bool) {
	if d == nil {
		return "", false
	}
	for _, e := range d.All() {
		if e.Key() == key || (caseInsensitive && strings.EqualFold(e.Key(), key)) {
			return e.Value(), true
		}
	}
	return "", false
}

// LookupPrefix returns all entries whose key starts with prefix.
func LookupPrefix(d *Dictionary, prefix string) map[string]string {
	out := map[string]string{}
	if d == nil {
		return out
	}
	for _, e := range d.All() {
		if strings.HasPrefix(e.Key(), prefix) {
			out[e.Key()] = e.Value()
		}
	}
	return out
}
