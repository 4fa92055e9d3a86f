package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/campusops/ta-scheduler-api/internal/authz"
	"github.com/campusops/ta-scheduler-api/internal/models"
	"github.com/campusops/ta-scheduler-api/internal/repository"
	"github.com/campusops/ta-scheduler-api/pkg/config"
	appErrors "github.com/campusops/ta-scheduler-api/pkg/errors"
)

var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9]+$`)
	namePattern     = regexp.MustCompile(`^[a-zA-Z][a-zA-Z '-]*$`)
	phonePattern    = regexp.MustCompile(`^[0-9]{10}$`)
)

type userRepository interface {
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	ExistsByUsername(ctx context.Context, username, excludeID string) (bool, error)
	ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error)
	Search(ctx context.Context, query string) ([]models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	DeleteCascade(ctx context.Context, id string) error
	CoursesAssigned(ctx context.Context, userID string) ([]models.CourseRef, error)
}

type taAssignmentReader interface {
	ListLabAssignmentsByTA(ctx context.Context, taID string) ([]models.TALabAssignmentDetail, error)
	ListCourseAssignmentsByTA(ctx context.Context, taID string) ([]models.TACourseAssignmentDetail, error)
}

// SaveUserRequest represents payload for creating or updating a user.
// Password is consumed on create only; updates go through the dedicated
// change-password flow.
type SaveUserRequest struct {
	Username    string          `json:"username"`
	FirstName   string          `json:"first_name"`
	LastName    string          `json:"last_name"`
	Email       string          `json:"email"`
	Password    string          `json:"password,omitempty"`
	Role        models.UserRole `json:"role"`
	Phone       *string         `json:"phone"`
	Address     *string         `json:"address"`
	OfficeHours *string         `json:"office_hours"`
}

// UserService orchestrates account management and profile aggregation.
type UserService struct {
	users       userRepository
	assignments taAssignmentReader
	sections    sectionLister
	engine      *authz.Engine
	cache       cacheStore
	cacheCfg    config.CacheConfig
	strictQuery bool
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewUserService constructs a UserService.
func NewUserService(users userRepository, assignments taAssignmentReader, sections sectionLister, engine *authz.Engine, cache cacheStore, cacheCfg config.CacheConfig, policy config.PolicyConfig, validate *validator.Validate, logger *zap.Logger) *UserService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{
		users:       users,
		assignments: assignments,
		sections:    sections,
		engine:      engine,
		cache:       cache,
		cacheCfg:    cacheCfg,
		strictQuery: policy.StrictUserSearch,
		validator:   validate,
		logger:      logger,
	}
}

func profileCacheKey(username string, private bool) string {
	variant := "public"
	if private {
		variant = "private"
	}
	return fmt.Sprintf("user_profile:%s:%s", username, variant)
}

// GetProfile returns the role-appropriate projection of a user. Admin
// requesters additionally receive the private contact fields; TA targets
// carry their assignment extension.
func (s *UserService) GetProfile(ctx context.Context, principal authz.Principal, username string) (*models.UserProfile, error) {
	private := s.engine.Authorize(principal, authz.ActionViewPrivateProfile, authz.Target{}) == nil

	cacheKey := profileCacheKey(username, private)
	if s.cacheCfg.Enabled && s.cache != nil {
		var cached models.UserProfile
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			return &cached, nil
		}
	}

	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	courses, err := s.users.CoursesAssigned(ctx, user.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assigned courses")
	}

	profile := &models.UserProfile{
		Name:            user.DisplayName(),
		Username:        user.Username,
		Email:           user.Email,
		Role:            user.Role,
		OfficeHours:     user.OfficeHours,
		CoursesAssigned: courses,
	}
	if private {
		profile.Address = user.Address
		profile.Phone = user.Phone
	}
	if user.Role == models.RoleTA {
		if err := s.attachTAExtension(ctx, user.ID, profile); err != nil {
			return nil, err
		}
	}

	if s.cacheCfg.Enabled && s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, profile, s.cacheCfg.ProfileTTL); err != nil {
			s.logger.Warn("failed to cache user profile", zap.Error(err))
		}
	}
	return profile, nil
}

// attachTAExtension adds lab section numbers and per-course assignment
// details. The primary instructor of a course is the instructor of its
// lowest-numbered section that has one.
func (s *UserService) attachTAExtension(ctx context.Context, taID string, profile *models.UserProfile) error {
	labs, err := s.assignments.ListLabAssignmentsByTA(ctx, taID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lab assignments")
	}
	courseAssignments, err := s.assignments.ListCourseAssignmentsByTA(ctx, taID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course assignments")
	}

	labNumbers := make([]int, 0, len(labs))
	labsByCourse := make(map[string][]int)
	for _, lab := range labs {
		labNumbers = append(labNumbers, lab.SectionNumber)
		labsByCourse[lab.CourseID] = append(labsByCourse[lab.CourseID], lab.SectionNumber)
	}
	sort.Ints(labNumbers)
	profile.LabAssignments = labNumbers

	refs := make([]models.TACourseRef, 0, len(courseAssignments))
	for _, assignment := range courseAssignments {
		ref := models.TACourseRef{
			CourseRef: models.CourseRef{CourseCode: assignment.CourseCode, CourseName: assignment.CourseName},
			IsGrader:  assignment.GraderStatus,
		}
		sections, err := s.sections.ListCourseSections(ctx, assignment.CourseID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course sections")
		}
		// Sections arrive in storage insertion order, so pick the
		// lowest-numbered one explicitly.
		var primary *models.CourseSectionDetail
		for i := range sections {
			if sections[i].InstructorUsername == nil {
				continue
			}
			if primary == nil || sections[i].SectionNumber < primary.SectionNumber {
				primary = &sections[i]
			}
		}
		if primary != nil {
			name := ""
			if primary.InstructorFirstName != nil {
				name = *primary.InstructorFirstName
			}
			if primary.InstructorLastName != nil {
				name = strings.TrimSpace(name + " " + *primary.InstructorLastName)
			}
			ref.Instructor = &models.UserRef{Name: name, Username: *primary.InstructorUsername}
		}
		numbers := append([]int(nil), labsByCourse[assignment.CourseID]...)
		sort.Ints(numbers)
		ref.AssignedLabSections = numbers
		refs = append(refs, ref)
	}
	profile.CourseAssignments = refs
	return nil
}

// Save creates a user or updates the one identified by existingUsername.
// Usernames are immutable; role changes run through the dedicated rule.
func (s *UserService) Save(ctx context.Context, principal authz.Principal, req SaveUserRequest, existingUsername string) (*models.User, error) {
	if existingUsername == "" {
		return s.create(ctx, principal, req)
	}
	return s.update(ctx, principal, req, existingUsername)
}

func (s *UserService) create(ctx context.Context, principal authz.Principal, req SaveUserRequest) (*models.User, error) {
	if err := s.engine.Authorize(principal, authz.ActionCreateUser, authz.Target{}); err != nil {
		return nil, err
	}
	if req.Username == "" || req.FirstName == "" || req.LastName == "" || req.Email == "" || req.Password == "" {
		return nil, appErrors.Clone(appErrors.ErrMissingField, "username, name, email and password are required")
	}
	if !req.Role.Valid() {
		return nil, appErrors.Clone(appErrors.ErrInvalidFormat, "role must be Instructor, TA or Admin")
	}
	if err := s.validateFields(req); err != nil {
		return nil, err
	}
	if len(req.Password) < 8 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "password must be at least 8 characters")
	}

	if taken, err := s.users.ExistsByUsername(ctx, req.Username, ""); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check username")
	} else if taken {
		return nil, appErrors.Clone(appErrors.ErrDuplicateField, "username is already taken")
	}
	if taken, err := s.users.ExistsByEmail(ctx, req.Email, ""); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
	} else if taken {
		return nil, appErrors.Clone(appErrors.ErrDuplicateField, "email is already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		Username:     req.Username,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		PasswordHash: string(hash),
		Role:         req.Role,
		Phone:        req.Phone,
		Address:      req.Address,
		OfficeHours:  req.OfficeHours,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrDuplicateField, "username or email is already taken")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}
	return user, nil
}

func (s *UserService) update(ctx context.Context, principal authz.Principal, req SaveUserRequest, existingUsername string) (*models.User, error) {
	user, err := s.users.FindByUsername(ctx, existingUsername)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	if req.Username != "" && req.Username != user.Username {
		return nil, appErrors.Clone(appErrors.ErrValidation, "username cannot be changed")
	}

	// Role changes are ruled on first so a denied change never falls
	// through to a plain profile edit.
	target := authz.Target{UserID: user.ID, UserRole: user.Role}
	if req.Role != "" && req.Role != user.Role {
		if !req.Role.Valid() {
			return nil, appErrors.Clone(appErrors.ErrInvalidFormat, "role must be Instructor, TA or Admin")
		}
		if err := s.engine.Authorize(principal, authz.ActionChangeRole, target); err != nil {
			return nil, err
		}
	}
	editAction := authz.ActionEditOtherProfile
	if principal.ID == user.ID {
		editAction = authz.ActionEditOwnProfile
	}
	if err := s.engine.Authorize(principal, editAction, target); err != nil {
		return nil, err
	}

	if req.FirstName != "" {
		user.FirstName = req.FirstName
	}
	if req.LastName != "" {
		user.LastName = req.LastName
	}
	if req.Email != "" {
		user.Email = req.Email
	}
	if req.Role != "" {
		user.Role = req.Role
	}
	if req.Phone != nil {
		user.Phone = req.Phone
	}
	if req.Address != nil {
		user.Address = req.Address
	}
	if req.OfficeHours != nil {
		user.OfficeHours = req.OfficeHours
	}

	if err := s.validateFields(SaveUserRequest{
		Username:  user.Username,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Email:     user.Email,
		Phone:     user.Phone,
	}); err != nil {
		return nil, err
	}

	if taken, err := s.users.ExistsByEmail(ctx, user.Email, user.ID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
	} else if taken {
		return nil, appErrors.Clone(appErrors.ErrDuplicateField, "email is already registered")
	}

	if err := s.users.Update(ctx, user); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrDuplicateField, "email is already registered")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update user")
	}

	s.invalidateProfile(ctx, user.Username)
	return user, nil
}

func (s *UserService) validateFields(req SaveUserRequest) error {
	if !usernamePattern.MatchString(req.Username) {
		return appErrors.Clone(appErrors.ErrInvalidFormat, "username may only contain letters and digits")
	}
	if !namePattern.MatchString(req.FirstName) || !namePattern.MatchString(req.LastName) {
		return appErrors.Clone(appErrors.ErrInvalidFormat, "names may only contain letters, spaces, hyphens and apostrophes")
	}
	if err := s.validator.Var(req.Email, "required,email"); err != nil {
		return appErrors.Clone(appErrors.ErrInvalidFormat, "email address is not valid")
	}
	if req.Phone != nil && *req.Phone != "" && !phonePattern.MatchString(*req.Phone) {
		return appErrors.Clone(appErrors.ErrInvalidFormat, "phone must be exactly 10 digits")
	}
	return nil
}

// Delete removes a user and every record referencing them.
func (s *UserService) Delete(ctx context.Context, principal authz.Principal, username string) error {
	if err := s.engine.Authorize(principal, authz.ActionDeleteUser, authz.Target{}); err != nil {
		return err
	}
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	// The cascade silently detaches the user from their sections, so the
	// overviews of every assigned course go stale. Capture them first.
	courses, err := s.users.CoursesAssigned(ctx, user.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assigned courses")
	}
	if err := s.users.DeleteCascade(ctx, user.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete user")
	}
	s.invalidateProfile(ctx, user.Username)
	if s.cache != nil {
		for _, course := range courses {
			if err := s.cache.DeleteByPattern(ctx, fmt.Sprintf("course_overview:*:%s", course.CourseCode)); err != nil {
				s.logger.Warn("failed to invalidate course overview cache", zap.Error(err))
			}
		}
	}
	return nil
}

// Search returns lightweight refs for users whose username or name matches
// the query. With strict search disabled an empty query returns everyone.
func (s *UserService) Search(ctx context.Context, query string) ([]models.UserRef, error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" && s.strictQuery {
		return nil, appErrors.Clone(appErrors.ErrValidation, "search query is required")
	}
	users, err := s.users.Search(ctx, trimmed)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to search users")
	}
	refs := make([]models.UserRef, 0, len(users))
	for i := range users {
		refs = append(refs, models.UserRef{Name: users[i].DisplayName(), Username: users[i].Username})
	}
	return refs, nil
}

func (s *UserService) invalidateProfile(ctx context.Context, username string) {
	invalidateProfileKeys(ctx, s.cache, s.logger, username)
}

// invalidateProfileKeys drops both projections of a cached profile. Shared
// with the section service, whose assignment mutations change profiles too.
func invalidateProfileKeys(ctx context.Context, cache cacheStore, logger *zap.Logger, username string) {
	if cache == nil {
		return
	}
	for _, private := range []bool{true, false} {
		if err := cache.Delete(ctx, profileCacheKey(username, private)); err != nil {
			logger.Warn("failed to invalidate profile cache", zap.Error(err))
		}
	}
}
