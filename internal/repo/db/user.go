package db

import (
	"context"
	"database/sql"
	"errors"
	"math"

	"github.com/gomarket-app/backend/internal/config"
	"github.com/gomarket-app/backend/internal/dto"
	md "github.com/gomarket-app/backend/internal/models"
	"github.com/gomarket-app/backend/internal/repo"
	"github.com/google/uuid"
	"github.com/opentracing/opentracing-go"
)

func (r *Repository) ListUsers(
	ctx context.Context,
	page, size int,
	filters map[string]any,
) (*dto.PaginatedUserResponse, error) {
	const op = "users.ListUsers.repo"

	span, ctx := opentracing.StartSpanFromContext(ctx, op)
	defer span.Finish()

	ctx, cancel := context.WithTimeout(ctx, config.DBTimeout)
	defer cancel()

	q, err := buildUserListQuery(ctx, page, size, filters)
	if err != nil {
		return nil, err
	}

	var count int64
	if err = r.conn.GetContext(ctx, &count, q.countQ, q.countArgs...); err != nil {
		return nil, err
	}

	res := make([]*md.User, 0, size)
	if err = r.conn.SelectContext(ctx, &res, q.dataQ, q.dataArgs...); err != nil {
		return nil, err
	}

	totalPages := int(math.Ceil(float64(count) / float64(size)))
	return &dto.PaginatedUserResponse{
		Data:        res,
		Count:       count,
		TotalPages:  totalPages,
		CurrentPage: page,
		HasNextPage: page < totalPages,
	}, nil
}

func (r *Repository) GetUserByID(ctx context.Context, userID uuid.UUID) (*md.User, error) {
	const op = "users.GetUserByID.repo"

	span, ctx := opentracing.StartSpanFromContext(ctx, op)
	defer span.Finish()

	ctx, cancel := context.WithTimeout(ctx, config.DBTimeout)
	defer cancel()

	res := &md.User{}
	err := r.conn.GetContext(ctx, res, userGetByIDQ, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repo.ErrNotFound
		}
		return nil, err
	}

	return res, nil
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*md.User, error) {
	const op = "users.GetUserByEmail.repo"

	span, ctx := opentracing.StartSpanFromContext(ctx, op)
	defer span.Finish()

	ctx, cancel := context.WithTimeout(ctx, config.DBTimeout)
	defer cancel()

	res := &md.User{}
	err := r.conn.GetContext(ctx, res, userGetByEmailQ, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repo.ErrNotFound
		}
		return nil, err
	}

	return res, nil
}

func (r *Repository) CreateUser(ctx context.Context, req *dto.CreateUserRequest) (uuid.UUID, error) {
	const op = "users.CreateUser.repo"

	span, ctx := opentracing.StartSpanFromContext(ctx, op)
	defer span.Finish()

	ctx, cancel := context.WithTimeout(ctx, config.DBTimeout)
	defer cancel()

	var id uuid.UUID
	err := r.conn.GetContext(
		ctx, &id, userCreateQ,
		req.Name,
		req.Password,
		req.Email,
		req.Avatar,
		req.IsActive,
		req.IsEmail,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return uuid.Nil, repo.ErrAlreadyExists
		}
		return uuid.Nil, err
	}

	return id, nil
}

func (r *Repository) UpdateUser(ctx context.Context, id uuid.UUID, req *dto.UpdateUserRequest) error {
	const op = "users.UpdateUser.repo"

	span, ctx := opentracing.StartSpanFromContext(ctx, op)
	defer span.Finish()

	ctx, cancel := context.WithTimeout(ctx, config.DBTimeout)
	defer cancel()

	res, err := r.conn.ExecContext(
		ctx, userUpdateQ,
		req.Name,
		req.Email,
		req.Avatar,
		req.IsActive,
		req.IsEmail,
		id,
	)
	if err != nil {
		return err
	}

	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return repo.ErrNotFound
	}

	return nil
}

func (r *Repository) DeleteUser(ctx context.Context, userID uuid.UUID) error {
	const op = "users.DeleteUser.repo"

	span, ctx := opentracing.StartSpanFromContext(ctx, op)
	defer span.Finish()

	ctx, cancel := context.WithTimeout(ctx, config.DBTimeout)
	defer cancel()

	res, err := r.conn.ExecContext(ctx, userDeleteQ, userID)
	if err != nil {
		return err
	}

	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return repo.ErrNotFound
	}

	return nil
}
