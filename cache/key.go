package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/justSteve/coding-agent-session-search/model"
)

// Key builds the composite cache key described in spec §4.6:
// v<CACHE_KEY_VERSION>|<SCHEMA_HASH>|<sanitized_query>|<filters_fingerprint>.
func Key(schemaHash, rawQuery, filtersFingerprint string) string {
	return fmt.Sprintf("v%d|%s|%s|%s", CacheKeyVersion, schemaHash, SanitizeQuery(rawQuery), filtersFingerprint)
}

// SanitizeQuery normalizes a raw query string for use in a cache key:
// trimmed and lowercased, collapsing internal whitespace runs. This is
// distinct from tokenization — it's a stable cache-key surface form, not
// the query actually parsed and executed.
func SanitizeQuery(q string) string {
	fields := strings.Fields(strings.ToLower(q))
	return strings.Join(fields, " ")
}

// FiltersFingerprint computes a stable digest over the filter set (spec
// §4.6): sorted agents/workspaces/session-paths, the source scope, and
// the created_at range.
func FiltersFingerprint(f model.Filters) string {
	agents := sortedCopy(f.Agents)
	workspaces := sortedCopy(f.Workspaces)
	paths := sortedCopy(f.SessionPaths)

	var b strings.Builder
	b.WriteString("a=")
	b.WriteString(strings.Join(agents, ","))
	b.WriteString("|w=")
	b.WriteString(strings.Join(workspaces, ","))
	b.WriteString("|p=")
	b.WriteString(strings.Join(paths, ","))
	b.WriteString("|src=")
	b.WriteString(sourceScopeString(f.Source))
	b.WriteString("|from=")
	b.WriteString(strconv.FormatInt(f.CreatedFrom, 10))
	b.WriteString("|to=")
	b.WriteString(strconv.FormatInt(f.CreatedTo, 10))

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])[:16]
}

func sourceScopeString(s model.SourceScope) string {
	switch s.Kind {
	case model.SourceScopeLocal:
		return "local"
	case model.SourceScopeRemote:
		return "remote"
	case model.SourceScopeSourceID:
		return "source_id:" + s.SourceID
	default:
		return "all"
	}
}

func sortedCopy(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}
