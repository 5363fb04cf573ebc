package store

// PruningPolicy enforces per-kind retention rules. It is advisory: it runs
// from its own call path (a CLI pass or an opportunistic sweep), never
// inside a caller-initiated write transaction, so writes never contend
// with pruning.
type PruningPolicy struct {
	Rules map[string]RetentionRule
}

// Apply runs every active rule against the store and returns deletions per
// kind. A failing kind is logged and skipped; the remaining kinds still
// run.
func (p *PruningPolicy) Apply(st Store, logger Logger) map[string]int {
	deleted := make(map[string]int)
	for kind, rule := range p.Rules {
		if !rule.Active() {
			continue
		}
		n, err := st.PruneKind(kind, rule)
		if err != nil {
			logger.Warn("pruning failed", "kind", kind, "error", err)
			continue
		}
		if n > 0 {
			logger.Info("pruned records", "kind", kind, "deleted", n)
		}
		deleted[kind] = n
	}
	return deleted
}
