package taxonomy

import (
	"slices"

	"github.com/samber/lo"
)

// CustomSkills returns the stored skills that are not taxonomy identifiers,
// in their stored order, without duplicates.
func (t *Taxonomy) CustomSkills(stored []string) []string {
	return lo.Uniq(lo.Reject(stored, func(s string, _ int) bool {
		return s == "" || t.Contains(s)
	}))
}

// ResolveOptions returns the selectable target-skill options for role: the
// role's mapped skills (or the full flattened set for an unknown role) unioned
// with the stored custom skills, sorted and without duplicates.
//
// Stored taxonomy skills that fall outside the role mapping are kept as
// options too, so every stored selection stays selectable after a role change.
func (t *Taxonomy) ResolveOptions(role string, stored []string) []string {
	base, ok := t.roleSkills[role]
	if !ok {
		base = t.flattened
	}
	return sortedUnion(base, t.CustomSkills(stored), t.storedKnown(stored))
}

// CurrentSkillOptions returns the selectable current-skill options: the full
// flattened set unioned with stored custom skills. It does not depend on role.
func (t *Taxonomy) CurrentSkillOptions(stored []string) []string {
	return sortedUnion(t.flattened, t.CustomSkills(stored))
}

func (t *Taxonomy) storedKnown(stored []string) []string {
	return lo.Filter(stored, func(s string, _ int) bool {
		return t.Contains(s)
	})
}

func sortedUnion(lists ...[]string) []string {
	out := lo.Union(lists...)
	slices.Sort(out)
	return out
}
