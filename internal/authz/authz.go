// Package authz centralises every permission rule in one decision table.
// Services ask Authorize(principal, action, target) instead of checking
// roles at call sites.
package authz

import (
	"github.com/campusops/ta-scheduler-api/internal/models"
	"github.com/campusops/ta-scheduler-api/pkg/config"
	appErrors "github.com/campusops/ta-scheduler-api/pkg/errors"
)

// Action enumerates every guarded mutation or privileged read.
type Action string

const (
	ActionEditOwnProfile     Action = "edit_own_profile"
	ActionEditOtherProfile   Action = "edit_other_profile"
	ActionChangeRole         Action = "change_role"
	ActionCreateUser         Action = "create_user"
	ActionDeleteUser         Action = "delete_user"
	ActionManageSemester     Action = "manage_semester"
	ActionManageCourse       Action = "manage_course"
	ActionManageSection      Action = "manage_section"
	ActionManageAssignment   Action = "manage_assignment"
	ActionViewPrivateProfile Action = "view_private_profile"
)

// Principal is the authenticated actor making a request.
type Principal struct {
	ID       string
	Username string
	Role     models.UserRole
}

// Target carries the attributes of the entity being acted on that the rule
// table needs. Zero value for actions without a target.
type Target struct {
	UserID   string
	UserRole models.UserRole

	// CourseInstructorIDs holds the instructors of record for the course a
	// section belongs to. Consulted only for ActionManageSection when the
	// instructor self-service policy is enabled.
	CourseInstructorIDs []string
}

// Engine evaluates the rule table. The instructor self-service extension is
// a policy flag, not a baked-in rule.
type Engine struct {
	instructorManagesOwnSections bool
}

// NewEngine builds an Engine from policy configuration.
func NewEngine(policy config.PolicyConfig) *Engine {
	return &Engine{instructorManagesOwnSections: policy.InstructorManagesOwnSections}
}

// Authorize returns nil when the principal may perform the action, or a
// PERMISSION_DENIED error with a human-readable reason.
func (e *Engine) Authorize(p Principal, action Action, t Target) error {
	switch action {
	case ActionChangeRole:
		if p.Role != models.RoleAdmin {
			return deny("only admins may change user roles")
		}
		if t.UserID == p.ID {
			return deny("admins may not change their own role")
		}
		if t.UserRole == models.RoleAdmin {
			return deny("admins may not change another admin's role")
		}
		return nil

	case ActionEditOwnProfile:
		if t.UserID != "" && t.UserID != p.ID {
			return deny("profile does not belong to the requesting user")
		}
		return nil

	case ActionEditOtherProfile:
		if p.Role != models.RoleAdmin {
			return deny("only admins may edit another user's profile")
		}
		return nil

	case ActionCreateUser:
		if p.Role != models.RoleAdmin {
			return deny("only admins may create users")
		}
		return nil

	case ActionDeleteUser:
		if p.Role != models.RoleAdmin {
			return deny("only admins may delete users")
		}
		return nil

	case ActionManageSemester:
		if p.Role != models.RoleAdmin {
			return deny("only admins may manage semesters")
		}
		return nil

	case ActionManageCourse:
		if p.Role != models.RoleAdmin {
			return deny("only admins may manage courses")
		}
		return nil

	case ActionManageAssignment:
		if p.Role != models.RoleAdmin {
			return deny("only admins may manage assignments")
		}
		return nil

	case ActionManageSection:
		if p.Role == models.RoleAdmin {
			return nil
		}
		if e.instructorManagesOwnSections && p.Role == models.RoleInstructor {
			for _, id := range t.CourseInstructorIDs {
				if id == p.ID {
					return nil
				}
			}
			return deny("instructors may only manage sections of their own courses")
		}
		return deny("only admins may manage sections")

	case ActionViewPrivateProfile:
		if p.Role != models.RoleAdmin {
			return deny("only admins may view private profile fields")
		}
		return nil
	}

	return deny("unknown action")
}

func deny(reason string) error {
	return appErrors.Clone(appErrors.ErrPermissionDenied, reason)
}
