package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusops/ta-scheduler-api/internal/models"
	"github.com/campusops/ta-scheduler-api/pkg/config"
	appErrors "github.com/campusops/ta-scheduler-api/pkg/errors"
)

func newEngine(instructorSections bool) *Engine {
	return NewEngine(config.PolicyConfig{InstructorManagesOwnSections: instructorSections})
}

func TestChangeRoleRules(t *testing.T) {
	engine := newEngine(false)

	admin := Principal{ID: "a1", Role: models.RoleAdmin}
	ta := Principal{ID: "t1", Role: models.RoleTA}

	// Non-admins may never change a role, including their own.
	err := engine.Authorize(ta, ActionChangeRole, Target{UserID: "t1", UserRole: models.RoleTA})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrPermissionDenied))

	// Admins may not change their own role.
	err = engine.Authorize(admin, ActionChangeRole, Target{UserID: "a1", UserRole: models.RoleAdmin})
	require.Error(t, err)

	// Admins may not change another admin's role.
	err = engine.Authorize(admin, ActionChangeRole, Target{UserID: "a2", UserRole: models.RoleAdmin})
	require.Error(t, err)

	// Admins may change a non-admin's role.
	require.NoError(t, engine.Authorize(admin, ActionChangeRole, Target{UserID: "t1", UserRole: models.RoleTA}))
}

func TestProfileEditRules(t *testing.T) {
	engine := newEngine(false)

	instructor := Principal{ID: "i1", Role: models.RoleInstructor}
	admin := Principal{ID: "a1", Role: models.RoleAdmin}

	require.NoError(t, engine.Authorize(instructor, ActionEditOwnProfile, Target{UserID: "i1"}))
	require.Error(t, engine.Authorize(instructor, ActionEditOwnProfile, Target{UserID: "i2"}))

	require.Error(t, engine.Authorize(instructor, ActionEditOtherProfile, Target{UserID: "i2"}))
	require.NoError(t, engine.Authorize(admin, ActionEditOtherProfile, Target{UserID: "i2"}))
}

func TestAdminOnlyActions(t *testing.T) {
	engine := newEngine(false)

	for _, action := range []Action{ActionCreateUser, ActionDeleteUser, ActionManageSemester, ActionManageCourse, ActionManageAssignment, ActionViewPrivateProfile} {
		require.NoError(t, engine.Authorize(Principal{ID: "a1", Role: models.RoleAdmin}, action, Target{}), string(action))
		require.Error(t, engine.Authorize(Principal{ID: "t1", Role: models.RoleTA}, action, Target{}), string(action))
		require.Error(t, engine.Authorize(Principal{ID: "i1", Role: models.RoleInstructor}, action, Target{}), string(action))
	}
}

func TestManageSectionPolicyFlag(t *testing.T) {
	instructor := Principal{ID: "i1", Role: models.RoleInstructor}
	target := Target{CourseInstructorIDs: []string{"i1", "i9"}}

	// Flag off: admin only.
	strict := newEngine(false)
	require.Error(t, strict.Authorize(instructor, ActionManageSection, target))
	require.NoError(t, strict.Authorize(Principal{ID: "a1", Role: models.RoleAdmin}, ActionManageSection, target))

	// Flag on: the instructor of record may manage, others may not.
	relaxed := newEngine(true)
	require.NoError(t, relaxed.Authorize(instructor, ActionManageSection, target))
	require.Error(t, relaxed.Authorize(Principal{ID: "i2", Role: models.RoleInstructor}, ActionManageSection, target))
	require.Error(t, relaxed.Authorize(Principal{ID: "t1", Role: models.RoleTA}, ActionManageSection, target))
}

func TestUnknownActionDenied(t *testing.T) {
	engine := newEngine(false)
	err := engine.Authorize(Principal{ID: "a1", Role: models.RoleAdmin}, Action("bogus"), Target{})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrPermissionDenied))
}
