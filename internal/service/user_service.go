package service

import (
	"context"
	"strings"

	"koydenal/internal/models"
	"koydenal/internal/repository"
	"koydenal/internal/validation"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// RegisterInput is a new account request.
type RegisterInput struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required"`
	FullName string `json:"full_name" validate:"required,min=3,max=120"`
	Phone    string `json:"phone" validate:"omitempty,trmobile"`
	Address  string `json:"address" validate:"max=500"`
}

// UserService manages accounts and their profiles.
type UserService struct {
	users      repository.UserRepository
	bcryptCost int
}

func NewUserService(users repository.UserRepository) *UserService {
	return &UserService{users: users, bcryptCost: bcrypt.DefaultCost}
}

// Register creates a pending user profile with a hashed password.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.FullName = strings.TrimSpace(in.FullName)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Address = strings.TrimSpace(in.Address)
	if err := validation.Struct(&in); err != nil {
		return nil, err
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, err
	}

	existing, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewConflictError("Bu e-posta adresi zaten kayıtlı")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	user := &models.User{
		Email:    in.Email,
		Password: string(hash),
		FullName: in.FullName,
		Phone:    validation.NormalizePhone(in.Phone),
		Address:  in.Address,
		Role:     models.RoleUser,
		Status:   models.StatusPending,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) Profile(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.users.GetByID(ctx, id)
}
