// Package policy decides whether a principal may perform an action on a
// resource. Every function here is pure and safe for concurrent use.
package policy

import (
	"fmt"

	"github.com/Mishari713/BMS/apperrors"
	"github.com/Mishari713/BMS/models"
)

type Action string

const (
	ActionRead   Action = "read"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

type ResourceKind string

const (
	ResourceBook ResourceKind = "book"
	ResourceUser ResourceKind = "user"
)

// OwnerOnlyMessage is returned when a non-owner tries to change a book.
const OwnerOnlyMessage = "Only the owner can modify this book."

var (
	anyRole    = []models.RoleName{models.RoleAdmin, models.RoleAuthor, models.RoleUser}
	publishers = []models.RoleName{models.RoleAdmin, models.RoleAuthor}
	adminOnly  = []models.RoleName{models.RoleAdmin}
)

// Book update/delete is open to every role at the gate; ownership decides.
var requiredRoles = map[ResourceKind]map[Action][]models.RoleName{
	ResourceBook: {
		ActionRead:   anyRole,
		ActionCreate: publishers,
		ActionUpdate: anyRole,
		ActionDelete: anyRole,
	},
	ResourceUser: {
		ActionRead:   adminOnly,
		ActionCreate: adminOnly,
		ActionUpdate: adminOnly,
		ActionDelete: adminOnly,
	},
}

// RequiredRoles returns the roles of which the caller needs at least one.
// Unknown pairs require ADMIN.
func RequiredRoles(kind ResourceKind, action Action) []models.RoleName {
	if roles, ok := requiredRoles[kind][action]; ok {
		return roles
	}
	return adminOnly
}

// Principal is the authenticated caller of one request.
type Principal struct {
	Username string
	Roles    []models.RoleName
}

func (p Principal) HasRole(role models.RoleName) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func (p Principal) HasAnyRole(roles ...models.RoleName) bool {
	for _, r := range roles {
		if p.HasRole(r) {
			return true
		}
	}
	return false
}

func (p Principal) IsAdmin() bool {
	return p.HasRole(models.RoleAdmin)
}

// Target is a snapshot of the resource an action is aimed at. Collection
// actions (list, create) use Collection.
type Target struct {
	Kind  ResourceKind
	ID    uint
	Found bool
	Owner string
}

// Collection targets the resource kind as a whole.
func Collection(kind ResourceKind) Target {
	return Target{Kind: kind, Found: true}
}

// BookTarget builds the target for book id; a nil book means it was not found.
func BookTarget(id uint, book *models.Book) Target {
	t := Target{Kind: ResourceBook, ID: id}
	if book != nil {
		t.Found = true
		t.Owner = book.OwnerUsername()
	}
	return t
}

// UserTarget builds the target for user id; a nil user means it was not found.
func UserTarget(id uint, user *models.User) Target {
	t := Target{Kind: ResourceUser, ID: id}
	if user != nil {
		t.Found = true
		t.Owner = user.Username
	}
	return t
}

// Decision is the outcome of Authorize. Kind and Reason are set on denial.
type Decision struct {
	Allowed bool
	Kind    apperrors.Kind
	Reason  string
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(kind apperrors.Kind, reason string) Decision {
	return Decision{Kind: kind, Reason: reason}
}

// Err converts a denial into an AppError, nil when allowed.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return apperrors.New(d.Kind, d.Reason)
}

// RequireAnyRole is the pre-dispatch role gate.
func RequireAnyRole(p Principal, roles ...models.RoleName) error {
	if len(roles) == 0 || p.HasAnyRole(roles...) {
		return nil
	}
	return apperrors.Forbidden()
}

// Authorize applies, in order: the role gate, the not-found check for
// targeted actions, and the ownership gate for book update/delete.
func Authorize(p Principal, action Action, target Target) Decision {
	if !p.HasAnyRole(RequiredRoles(target.Kind, action)...) {
		return deny(apperrors.KindForbidden, apperrors.ForbiddenMessage)
	}

	if !target.Found {
		return deny(apperrors.KindNotFound, notFoundReason(target))
	}

	if target.Kind == ResourceBook && (action == ActionUpdate || action == ActionDelete) {
		if p.IsAdmin() {
			return allow()
		}
		if target.Owner == "" || target.Owner != p.Username {
			return deny(apperrors.KindUnauthorized, OwnerOnlyMessage)
		}
	}
	return allow()
}

func notFoundReason(t Target) string {
	switch t.Kind {
	case ResourceBook:
		return fmt.Sprintf("Book id : %d doesn't exists", t.ID)
	case ResourceUser:
		return fmt.Sprintf("User id: %d doesn't exists", t.ID)
	default:
		return fmt.Sprintf("%s %d doesn't exists", t.Kind, t.ID)
	}
}
