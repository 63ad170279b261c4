package auth

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/angelmondragon/pos-backend/internal/users"
	pkgAuth "github.com/angelmondragon/pos-backend/pkg/auth"
	"github.com/angelmondragon/pos-backend/pkg/db"
	"github.com/angelmondragon/pos-backend/pkg/db/models"
	"github.com/angelmondragon/pos-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/pos-backend/pkg/errors"
	"github.com/angelmondragon/pos-backend/pkg/security"
)

// RegisterService creates operator accounts.
type RegisterService interface {
	// Register lets an admin create a cashier or another admin.
	Register(ctx context.Context, actor pkgAuth.Actor, req RegisterRequest) (*users.UserDTO, error)
	// Bootstrap creates the first admin and refuses once any user exists.
	Bootstrap(ctx context.Context, req RegisterRequest) (*users.UserDTO, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// RegisterServiceParams packages the dependencies for the registration flow.
type RegisterServiceParams struct {
	DB     txRunner
	Hasher *security.Hasher
}

type registerService struct {
	db     txRunner
	hasher *security.Hasher
}

// NewRegisterService builds a registration service with the provided dependencies.
func NewRegisterService(params RegisterServiceParams) (RegisterService, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "database client required")
	}
	if params.Hasher == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "password hasher required")
	}
	return &registerService{db: params.DB, hasher: params.Hasher}, nil
}

func (s *registerService) Register(ctx context.Context, actor pkgAuth.Actor, req RegisterRequest) (*users.UserDTO, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only admins can register users")
	}
	return s.create(ctx, req, false)
}

func (s *registerService) Bootstrap(ctx context.Context, req RegisterRequest) (*users.UserDTO, error) {
	req.Role = string(enums.UserRoleAdmin)
	return s.create(ctx, req, true)
}

func (s *registerService) create(ctx context.Context, req RegisterRequest, firstOnly bool) (*users.UserDTO, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	firstName := strings.TrimSpace(req.FirstName)
	lastName := strings.TrimSpace(req.LastName)
	if firstName == "" || lastName == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "first_name and last_name are required")
	}
	role, err := enums.ParseUserRole(strings.ToLower(strings.TrimSpace(req.Role)))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid role")
	}

	passwordHash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid password")
	}

	var created *users.UserDTO
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		userRepo := users.NewRepository(tx)

		if firstOnly {
			exists, err := userRepo.HasUsers(ctx)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check existing users")
			}
			if exists {
				return pkgerrors.New(pkgerrors.CodeConflict, "bootstrap already completed")
			}
		}

		taken, err := userRepo.EmailTaken(ctx, email)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check user email")
		}
		if taken {
			return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		}

		if req.DefaultLocationID != nil {
			ok, err := userRepo.LocationExists(ctx, *req.DefaultLocationID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check location")
			}
			if !ok {
				return pkgerrors.Newf(pkgerrors.CodeNotFound, "location %s not found", *req.DefaultLocationID)
			}
		}

		user, err := userRepo.Create(ctx, users.CreateUserDTO{
			Email:             email,
			PasswordHash:      passwordHash,
			FirstName:         firstName,
			LastName:          lastName,
			Role:              role,
			DefaultLocationID: req.DefaultLocationID,
		})
		if err != nil {
			if db.IsUniqueViolation(err, models.EmailConstraint, models.EmailColumn) {
				return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user")
		}

		created = users.FromModel(user)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}
