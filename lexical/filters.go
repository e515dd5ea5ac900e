package lexical

import "github.com/justSteve/coding-agent-session-search/model"

// matchesFilters applies the Must-clause filters (agent, workspace,
// source, created_at range) described in spec §4.10 step 2. Session-path
// filters are intentionally excluded here: they are applied
// post-retrieval by the façade, never indexed (spec §9).
func matchesFilters(d *model.Document, f model.Filters) bool {
	if len(f.Agents) > 0 && !containsString(f.Agents, d.Agent) {
		return false
	}
	if len(f.Workspaces) > 0 && !containsString(f.Workspaces, d.Workspace) {
		return false
	}
	if !matchesSourceScope(d, f.Source) {
		return false
	}
	if f.CreatedFrom != 0 && d.CreatedAtMs < f.CreatedFrom {
		return false
	}
	if f.CreatedTo != 0 && d.CreatedAtMs > f.CreatedTo {
		return false
	}
	return true
}

func matchesSourceScope(d *model.Document, scope model.SourceScope) bool {
	switch scope.Kind {
	case model.SourceScopeAll:
		return true
	case model.SourceScopeLocal:
		return d.OriginKind == model.OriginLocal
	case model.SourceScopeRemote:
		return d.OriginKind == model.OriginRemote
	case model.SourceScopeSourceID:
		return d.SourceID == scope.SourceID
	default:
		return true
	}
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
