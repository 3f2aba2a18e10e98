package access

import (
	"sort"
	"strings"

	accessDatamodel "github.com/frahmantamala/loan-desk/internal/core/datamodel/access"
)

// Action is an opaque action identifier. New actions need no code change in
// the evaluator; the constants below are the ones the desk itself checks.
type Action string

const (
	ActionCheckout         Action = "checkout"
	ActionCheckin          Action = "checkin"
	ActionViewReservations Action = "view_reservations"
	ActionManageFlags      Action = "manage_flags"
	ActionManageRoles      Action = "manage_roles"
)

func ParseAction(s string) Action {
	return Action(strings.TrimSpace(s))
}

type ActionSet map[Action]struct{}

func NewActionSet(actions ...Action) ActionSet {
	set := make(ActionSet, len(actions))
	for _, a := range actions {
		set[a] = struct{}{}
	}
	return set
}

func (s ActionSet) Has(a Action) bool {
	_, ok := s[a]
	return ok
}

func (s ActionSet) Add(actions ...Action) {
	for _, a := range actions {
		s[a] = struct{}{}
	}
}

func (s ActionSet) Remove(actions ...Action) {
	for _, a := range actions {
		delete(s, a)
	}
}

// Union returns a new set; neither operand is modified.
func (s ActionSet) Union(other ActionSet) ActionSet {
	out := make(ActionSet, len(s)+len(other))
	for a := range s {
		out[a] = struct{}{}
	}
	for a := range other {
		out[a] = struct{}{}
	}
	return out
}

func (s ActionSet) Sorted() []Action {
	out := make([]Action, 0, len(s))
	for a := range s {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s ActionSet) clone() ActionSet {
	return s.Union(nil)
}

type PermissionFlag struct {
	ID          string
	Name        string
	Description string
	Actions     ActionSet
}

func (f *PermissionFlag) Allows(a Action) bool {
	return f.Actions.Has(a)
}

func (f *PermissionFlag) ToResponse() FlagResponse {
	return FlagResponse{
		ID:          f.ID,
		Name:        f.Name,
		Description: f.Description,
		Actions:     f.Actions.Sorted(),
	}
}

func ToDataModel(f *PermissionFlag) *accessDatamodel.PermissionFlag {
	actions := make([]accessDatamodel.FlagAction, 0, len(f.Actions))
	for _, a := range f.Actions.Sorted() {
		actions = append(actions, accessDatamodel.FlagAction{FlagID: f.ID, Action: string(a)})
	}
	return &accessDatamodel.PermissionFlag{
		ID:          f.ID,
		Name:        f.Name,
		Description: f.Description,
		Actions:     actions,
	}
}

func FromDataModel(f *accessDatamodel.PermissionFlag) *PermissionFlag {
	set := make(ActionSet, len(f.Actions))
	for _, a := range f.Actions {
		set[Action(a.Action)] = struct{}{}
	}
	return &PermissionFlag{
		ID:          f.ID,
		Name:        f.Name,
		Description: f.Description,
		Actions:     set,
	}
}

func toStrings(actions []Action) []string {
	out := make([]string, 0, len(actions))
	for _, a := range actions {
		out = append(out, string(a))
	}
	return out
}
