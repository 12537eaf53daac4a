// Package usecase contains the business logic of the referral service.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/invito-app/invito/internal/domain"
	"github.com/invito-app/invito/internal/repository"
)

type UserService struct {
	repo *repository.UserRepository
}

func NewUserService(repo *repository.UserRepository) *UserService {
	return &UserService{repo: repo}
}

type CreateUserInput struct {
	UserName string
	Email    string
	RefCode  string // referral code of an existing user, optional
}

type UpdateUserInput struct {
	UserName *string
	Email    *string
}

// CreateUser registers a user. When a referral code is supplied it must
// belong to an existing user, whose added_by_ref_code counter is then
// incremented. Every new user gets a fresh referral code of their own.
func (s *UserService) CreateUser(ctx context.Context, input CreateUserInput) (*domain.User, error) {
	if input.RefCode != "" {
		owner, err := s.repo.FindByRefCode(ctx, input.RefCode)
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrRefCodeNotFound, input.RefCode)
		}
		if err != nil {
			return nil, err
		}

		if err = s.repo.IncrementReferralCount(ctx, owner.ID); err != nil {
			return nil, err
		}
	}

	if _, err := s.repo.FindByEmail(ctx, input.Email); err == nil {
		return nil, domain.ErrDuplicateEmail
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}

	now := time.Now().UTC().Truncate(time.Second)
	user := &domain.User{
		ID:             uuid.NewString(),
		Email:          input.Email,
		UserName:       input.UserName,
		RefCode:        generateRefCode(input.UserName),
		AddedByRefCode: 0,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		slog.ErrorContext(ctx, "failed to create user",
			"operation", "create_user",
			"user_name", input.UserName,
			"error", err,
		)
		return nil, err
	}

	return user, nil
}

func (s *UserService) ListUsers(ctx context.Context, page, limit int) ([]domain.User, error) {
	if limit <= 0 {
		limit = 10
	}
	if page <= 0 {
		page = 1
	}

	return s.repo.List(ctx, limit, (page-1)*limit)
}

func (s *UserService) GetUserByName(ctx context.Context, userName string) (*domain.User, error) {
	return s.repo.FindByUserName(ctx, userName)
}

func (s *UserService) UpdateUser(ctx context.Context, id string, input UpdateUserInput) (*domain.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Email != nil {
		user.Email = *input.Email
	}
	if input.UserName != nil {
		user.UserName = *input.UserName
	}
	user.UpdatedAt = time.Now().UTC().Truncate(time.Second)

	if err = s.repo.Update(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

func (s *UserService) DeleteUser(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// generateRefCode builds a short shareable code: up to three leading runes
// of the user name plus the first four characters of a fresh UUID.
func generateRefCode(userName string) string {
	prefix := []rune(userName)
	if len(prefix) > 3 {
		prefix = prefix[:3]
	}

	return string(prefix) + uuid.NewString()[:4]
}
