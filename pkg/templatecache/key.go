package templatecache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Key identifies one rendered template variant. Identical inputs always
// produce the same key string regardless of context map iteration order, so
// the key is safe to use across processes and restarts.
type Key struct {
	Event    string
	Channel  string
	TenantID string
	Locale   string
	Version  int
	Context  map[string]any
}

// KeyPrefix is the namespace every cache key starts with.
const KeyPrefix = "template:"

// String renders the stable wire format:
//
//	template:{event}:{channel}:{tenant|"global"}:{locale}:{contextHash}:v{version}
//
// The version suffix is omitted for version zero (unversioned templates).
func (k Key) String() string {
	tenant := k.TenantID
	if tenant == "" {
		tenant = "global"
	}

	var b strings.Builder
	b.WriteString(KeyPrefix)
	b.WriteString(k.Event)
	b.WriteByte(':')
	b.WriteString(k.Channel)
	b.WriteByte(':')
	b.WriteString(tenant)
	b.WriteByte(':')
	b.WriteString(k.Locale)
	b.WriteByte(':')
	b.WriteString(hashContext(k.Context))
	if k.Version > 0 {
		fmt.Fprintf(&b, ":v%d", k.Version)
	}
	return b.String()
}

// EventPrefix returns the invalidation prefix covering every variant of one
// event key, e.g. all channels, tenants and locales of "order.shipped".
func EventPrefix(event string) string {
	return KeyPrefix + event + ":"
}

// hashContext produces a deterministic digest of the context map: keys are
// sorted lexicographically and each pair is folded in as "key=value".
func hashContext(context map[string]any) string {
	if len(context) == 0 {
		return "empty"
	}

	keys := make([]string, 0, len(context))
	for key := range context {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, key := range keys {
		fmt.Fprintf(h, "%s=%v\n", key, context[key])
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}
