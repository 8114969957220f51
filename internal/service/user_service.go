package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/flextime-hq/flextime-api/internal/models"
	appErrors "github.com/flextime-hq/flextime-api/pkg/errors"
)

type userRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
	CreateAuditLog(ctx context.Context, entry *models.AuditLog) error
}

// CreateUserRequest is the admin payload for provisioning an account.
// Students require a grade; staff accounts must not carry one.
type CreateUserRequest struct {
	Email    string  `json:"email" validate:"required,email"`
	Password string  `json:"password" validate:"required,min=6"`
	FullName string  `json:"full_name" validate:"required,max=120"`
	Role     string  `json:"role" validate:"required,oneof=ADMIN TEACHER STUDENT"`
	Grade    *int    `json:"grade,omitempty" validate:"omitempty,min=9,max=12"`
	Homeroom *string `json:"homeroom,omitempty" validate:"omitempty,max=20"`
}

// UpdateUserRequest mutates an existing account.
type UpdateUserRequest struct {
	FullName *string `json:"full_name,omitempty" validate:"omitempty,max=120"`
	Role     *string `json:"role,omitempty" validate:"omitempty,oneof=ADMIN TEACHER STUDENT"`
	Grade    *int    `json:"grade,omitempty" validate:"omitempty,min=9,max=12"`
	Homeroom *string `json:"homeroom,omitempty" validate:"omitempty,max=20"`
	Active   *bool   `json:"active,omitempty"`
}

// UserService manages accounts.
type UserService struct {
	repo      userRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService builds the service.
func NewUserService(repo userRepository, validate *validator.Validate, logger *zap.Logger) *UserService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{repo: repo, validator: validate, logger: logger}
}

// Get returns one user.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// List returns users matching the filter plus pagination metadata.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return users, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Create provisions a new account.
func (s *UserService) Create(ctx context.Context, actor *models.JWTClaims, req CreateUserRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid user payload")
	}

	role := models.UserRole(req.Role)
	if role == models.RoleStudent && req.Grade == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "students require a grade level")
	}
	if role != models.RoleStudent && req.Grade != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "only students carry a grade level")
	}

	if _, err := s.repo.FindByEmail(ctx, req.Email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email is already in use")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: string(hash),
		FullName:     req.FullName,
		Role:         role,
		Grade:        req.Grade,
		Homeroom:     req.Homeroom,
		Active:       true,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}

	s.writeAudit(ctx, actor, models.AuditActionUserCreate, user.ID)
	return user, nil
}

// Update mutates an existing account.
func (s *UserService) Update(ctx context.Context, actor *models.JWTClaims, id string, req UpdateUserRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid user payload")
	}

	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.FullName != nil {
		user.FullName = *req.FullName
	}
	if req.Role != nil {
		user.Role = models.UserRole(*req.Role)
	}
	if req.Grade != nil {
		user.Grade = req.Grade
	}
	if req.Homeroom != nil {
		user.Homeroom = req.Homeroom
	}
	if req.Active != nil {
		user.Active = *req.Active
	}
	if user.Role == models.RoleStudent && user.Grade == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "students require a grade level")
	}
	if user.Role != models.RoleStudent {
		user.Grade = nil
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update user")
	}

	s.writeAudit(ctx, actor, models.AuditActionUserUpdate, user.ID)
	return user, nil
}

// Delete removes an account and all of its dependent rows. Admins cannot
// delete themselves.
func (s *UserService) Delete(ctx context.Context, actor *models.JWTClaims, id string) error {
	if actor.UserID == id {
		return appErrors.Clone(appErrors.ErrValidation, "you cannot delete your own account")
	}

	if _, err := s.Get(ctx, id); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete user")
	}

	s.writeAudit(ctx, actor, models.AuditActionUserDelete, id)
	return nil
}

func (s *UserService) writeAudit(ctx context.Context, actor *models.JWTClaims, action, resourceID string) {
	actorID := actor.UserID
	entry := &models.AuditLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   "user",
		ResourceID: &resourceID,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.repo.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Sugar().Warnw("failed to write audit log", "action", action, "error", err)
	}
}
