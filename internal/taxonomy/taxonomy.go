package taxonomy

import (
	"fmt"
	"slices"
	"sync"
)

// UnselectedRole is the sentinel role shown before the user picks a target.
// It maps to the full flattened skill set.
const UnselectedRole = "Select Target Role"

// Category is a named, ordered group of skills.
type Category struct {
	Name   string   `json:"name"`
	Skills []string `json:"skills"`
}

// Taxonomy is the immutable skill taxonomy plus the role → skill mapping.
// All accessors return copies so a shared instance cannot be mutated.
type Taxonomy struct {
	categories []Category
	flattened  []string
	known      map[string]struct{}
	roleSkills map[string][]string
}

// New builds a Taxonomy. Every skill referenced by roleSkills must be a
// flattened identifier of one of the categories.
func New(categories []Category, roleSkills map[string][]string) (*Taxonomy, error) {
	t := &Taxonomy{
		known:      make(map[string]struct{}),
		roleSkills: make(map[string][]string, len(roleSkills)+1),
	}

	for _, c := range categories {
		t.categories = append(t.categories, Category{Name: c.Name, Skills: slices.Clone(c.Skills)})
		for _, s := range c.Skills {
			id := Identifier(c.Name, s)
			if _, dup := t.known[id]; dup {
				return nil, fmt.Errorf("duplicate taxonomy identifier %q", id)
			}
			t.known[id] = struct{}{}
			t.flattened = append(t.flattened, id)
		}
	}

	for role, skills := range roleSkills {
		for _, s := range skills {
			if _, ok := t.known[s]; !ok {
				return nil, fmt.Errorf("role %q references unknown skill %q", role, s)
			}
		}
		t.roleSkills[role] = slices.Clone(skills)
	}
	t.roleSkills[UnselectedRole] = slices.Clone(t.flattened)

	return t, nil
}

// Identifier formats a taxonomy identifier ("Category: Skill").
func Identifier(category, skill string) string {
	return category + ": " + skill
}

// Categories returns the categories in declaration order.
func (t *Taxonomy) Categories() []Category {
	out := make([]Category, len(t.categories))
	for i, c := range t.categories {
		out[i] = Category{Name: c.Name, Skills: slices.Clone(c.Skills)}
	}
	return out
}

// Flattened returns every "Category: Skill" identifier in category order.
func (t *Taxonomy) Flattened() []string {
	return slices.Clone(t.flattened)
}

// Contains reports whether skill is a taxonomy identifier.
func (t *Taxonomy) Contains(skill string) bool {
	_, ok := t.known[skill]
	return ok
}

// RoleSkills returns the skills mapped to role and whether a mapping exists.
func (t *Taxonomy) RoleSkills(role string) ([]string, bool) {
	s, ok := t.roleSkills[role]
	if !ok {
		return nil, false
	}
	return slices.Clone(s), true
}

var (
	defaultOnce sync.Once
	defaultTax  *Taxonomy
)

// Default returns the built-in taxonomy. It panics if the built-in tables are
// inconsistent, which would be a programming error.
func Default() *Taxonomy {
	defaultOnce.Do(func() {
		t, err := New(defaultCategories, defaultRoleSkills)
		if err != nil {
			panic(fmt.Sprintf("taxonomy: invalid built-in tables: %v", err))
		}
		defaultTax = t
	})
	return defaultTax
}
