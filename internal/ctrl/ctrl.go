package ctrl

import (
	"context"
	"io"
	"time"

	"github.com/gomarket-app/backend/internal/auth"
	"github.com/gomarket-app/backend/internal/auth/jwt"
	"github.com/gomarket-app/backend/internal/repo/s3"
)

type AppRepo interface {
	authRepo
	userRepo
}

type AppCtrl interface {
	authCtrl
	userCtrl
}

type CacheService interface {
	io.Closer
	GetToStruct(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, t time.Duration, key string, val any)
	Delete(ctx context.Context, key string)
	InvalidateKeysByPattern(ctx context.Context, pattern string)
}

type EmailService interface {
	SendWelcome(toEmail, name string) error
}

// CSRFHook is an optional verification step consulted before rotation
// and logout are honored. Defense-in-depth; not part of the rotation
// state machine.
type CSRFHook func(ctx context.Context) error

type Controller struct {
	au    jwt.Port
	pwd   auth.PasswordService
	repo  AppRepo
	cache CacheService
	files s3.Service
	email EmailService
	csrf  CSRFHook
}

type Option func(*Controller)

func WithCSRFHook(hook CSRFHook) Option {
	return func(c *Controller) {
		c.csrf = hook
	}
}

func New(
	au jwt.Port,
	pwd auth.PasswordService,
	repo AppRepo,
	cache CacheService,
	files s3.Service,
	email EmailService,
	opts ...Option,
) *Controller {
	c := &Controller{
		au:    au,
		pwd:   pwd,
		repo:  repo,
		cache: cache,
		files: files,
		email: email,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}
