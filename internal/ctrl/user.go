package ctrl

import (
	"context"
	"errors"
	"fmt"

	"github.com/gomarket-app/backend/internal/config"
	"github.com/gomarket-app/backend/internal/dto"
	md "github.com/gomarket-app/backend/internal/models"
	"github.com/gomarket-app/backend/internal/repo"
	"github.com/gomarket-app/backend/internal/repo/s3"
	"github.com/google/uuid"
	"github.com/opentracing/opentracing-go"
	"go.uber.org/zap"
)

type userCtrl interface {
	IsUserExist(ctx context.Context, email string) (*dto.ExistsUserResponse, error)
	ListUsers(
		ctx context.Context,
		page, size int,
		filters map[string]any,
	) (*dto.PaginatedUserResponse, error)
	GetUserByID(ctx context.Context, userID uuid.UUID) (*md.User, error)
	CreateUser(
		ctx context.Context,
		req *dto.CreateUserRequest,
		file *s3.UploadFileRequest,
	) (*dto.CreateUserResponse, error)
	UpdateUser(
		ctx context.Context,
		id uuid.UUID,
		req *dto.UpdateUserRequest,
		file *s3.UploadFileRequest,
	) error
	DeleteUser(ctx context.Context, userID uuid.UUID) error
}

type userRepo interface {
	ListUsers(
		ctx context.Context,
		page, size int,
		filters map[string]any,
	) (*dto.PaginatedUserResponse, error)
	GetUserByID(ctx context.Context, userID uuid.UUID) (*md.User, error)
	GetUserByEmail(ctx context.Context, email string) (*md.User, error)
	CreateUser(ctx context.Context, req *dto.CreateUserRequest) (uuid.UUID, error)
	UpdateUser(ctx context.Context, id uuid.UUID, req *dto.UpdateUserRequest) error
	DeleteUser(ctx context.Context, userID uuid.UUID) error
}

const (
	userCacheKey = "user:%v"
	userPattern  = "user*"
)

func (c *Controller) IsUserExist(
	ctx context.Context,
	email string,
) (*dto.ExistsUserResponse, error) {
	const op = "users.IsUserExist.ctrl"

	span, ctx := opentracing.StartSpanFromContext(ctx, op)
	defer span.Finish()

	res := &dto.ExistsUserResponse{Exists: false}

	_, err := c.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return res, nil
		}
		return nil, err
	}

	res.Exists = true

	return res, nil
}

func (c *Controller) ListUsers(
	ctx context.Context,
	page, size int,
	filters map[string]any,
) (*dto.PaginatedUserResponse, error) {
	const op = "users.ListUsers.ctrl"

	span, ctx := opentracing.StartSpanFromContext(ctx, op)
	defer span.Finish()

	return c.repo.ListUsers(ctx, page, size, filters)
}

func (c *Controller) GetUserByID(ctx context.Context, userID uuid.UUID) (*md.User, error) {
	const op = "users.GetUserByID.ctrl"

	span, ctx := opentracing.StartSpanFromContext(ctx, op)
	defer span.Finish()

	cached := &md.User{}
	key := fmt.Sprintf(userCacheKey, userID)
	if err := c.cache.GetToStruct(ctx, key, cached); err == nil {
		return cached, nil
	}

	res, err := c.repo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	c.cache.Set(ctx, config.DefaultCacheTime, key, res)
	return res, nil
}

func (c *Controller) CreateUser(
	ctx context.Context,
	req *dto.CreateUserRequest,
	file *s3.UploadFileRequest,
) (*dto.CreateUserResponse, error) {
	const op = "users.CreateUser.ctrl"

	span, ctx := opentracing.StartSpanFromContext(ctx, op)
	defer span.Finish()

	hashed, err := c.pwd.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	req.Password = hashed

	if file != nil {
		url, err := c.files.UploadFile(ctx, file)
		if err != nil {
			return nil, err
		}
		req.Avatar = url
	}

	id, err := c.repo.CreateUser(ctx, req)
	if err != nil {
		if errors.Is(err, repo.ErrAlreadyExists) {
			return nil, ErrAlreadyExists
		}
		return nil, err
	}

	c.cache.InvalidateKeysByPattern(ctx, userPattern)
	return &dto.CreateUserResponse{ID: id}, nil
}

func (c *Controller) UpdateUser(
	ctx context.Context,
	id uuid.UUID,
	req *dto.UpdateUserRequest,
	file *s3.UploadFileRequest,
) error {
	const op = "users.UpdateUser.ctrl"

	span, ctx := opentracing.StartSpanFromContext(ctx, op)
	defer span.Finish()

	if file != nil {
		url, err := c.files.UploadFile(ctx, file)
		if err != nil {
			return err
		}
		req.Avatar = url
	}

	err := c.repo.UpdateUser(ctx, id, req)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}

	c.cache.Delete(ctx, fmt.Sprintf(userCacheKey, id))
	return nil
}

func (c *Controller) DeleteUser(ctx context.Context, userID uuid.UUID) error {
	const op = "users.DeleteUser.ctrl"

	span, ctx := opentracing.StartSpanFromContext(ctx, op)
	defer span.Finish()

	if err := c.repo.RevokeUserTokens(ctx, userID); err != nil {
		zap.L().Warn(
			"failed to revoke tokens of deleted user",
			zap.String("op", op),
			zap.String("userID", userID.String()),
			zap.Error(err),
		)
	}

	err := c.repo.DeleteUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}

	c.cache.Delete(ctx, fmt.Sprintf(userCacheKey, userID))
	return nil
}
