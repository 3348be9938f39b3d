// Package access derives what a member may do from the capability set of the
// position they hold.
//
// Capabilities are resolved once, when a position is created or renamed, and
// stored with the position. Request-time checks never look at position titles.
package access

import (
	"strings"

	"github.com/protomem/district-tasks/internal/model"
	"golang.org/x/exp/slices"
)

type Capability string

const (
	Leader       Capability = "leader"
	Deputy       Capability = "deputy"
	DistrictHead Capability = "district_head"
)

var Capabilities = []Capability{Leader, Deputy, DistrictHead}

const (
	leaderMarker      = "руководитель"
	deputyMarker      = "заместитель"
	DistrictHeadTitle = "руководитель районного отделения"
)

type Set []Capability

func (s Set) Has(c Capability) bool {
	return slices.Contains(s, c)
}

func (s Set) Strings() []string {
	out := make([]string, 0, len(s))
	for _, c := range s {
		out = append(out, string(c))
	}
	return out
}

// Parse keeps known capabilities and drops duplicates; unknown names are reported.
func Parse(names []string) (Set, []string) {
	var (
		set     Set
		unknown []string
	)
	for _, name := range names {
		c := Capability(strings.ToLower(strings.TrimSpace(name)))
		switch {
		case !slices.Contains(Capabilities, c):
			unknown = append(unknown, name)
		case !set.Has(c):
			set = append(set, c)
		}
	}
	return set, unknown
}

// Resolve maps a position title to capabilities. The markers are matched
// independently, so "заместитель руководителя ..." is both a deputy and a
// leader.
func Resolve(title string) Set {
	t := strings.ToLower(strings.TrimSpace(title))

	var set Set
	if strings.Contains(t, leaderMarker) {
		set = append(set, Leader)
	}
	if strings.Contains(t, deputyMarker) {
		set = append(set, Deputy)
	}
	if t == DistrictHeadTitle {
		set = append(set, DistrictHead)
	}
	return set
}

// Subject is the acting member as seen by the predicates.
type Subject struct {
	UserID       model.ID
	DistrictID   *model.ID
	HasPosition  bool
	Capabilities Set
}

func SubjectOf(u model.User) Subject {
	s := Subject{UserID: u.ID, DistrictID: u.DistrictID}
	if u.Position != nil {
		s.HasPosition = true
		s.Capabilities, _ = Parse(u.Position.Capabilities)
	}
	return s
}

func (s Subject) has(c Capability) bool {
	return s.HasPosition && s.Capabilities.Has(c)
}

func (s Subject) IsLeader() bool { return s.has(Leader) }

func (s Subject) IsDeputy() bool { return s.has(Deputy) }

func (s Subject) CanCreateTask() bool { return s.IsLeader() || s.IsDeputy() }

func (s Subject) CanViewMembers() bool { return s.IsLeader() || s.IsDeputy() }

// OwnsDistrict reports whether the subject leads the given district.
func (s Subject) OwnsDistrict(district *model.ID) bool {
	return s.IsLeader() && model.SameDistrict(s.DistrictID, district)
}

// CanManageTask gates edit and delete. Only district tasks of the leader's own
// district are mutable; every other type is immutable here.
func (s Subject) CanManageTask(t model.Task) bool {
	return t.Type == model.TaskDistrict && s.OwnsDistrict(t.DistrictID)
}

func (s Subject) CanManageMember(target model.User) bool {
	return s.OwnsDistrict(target.DistrictID)
}

func (s Subject) CanUploadTeamPhoto() bool {
	return s.IsLeader() && s.DistrictID != nil
}

// CanDeleteDistrict is always false: districts are reference data.
func (s Subject) CanDeleteDistrict() bool { return false }
