package command

import (
	"context"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"marketplace/domain"
)

// UserStore is the write-store slice the user handlers need.
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	InsertUser(ctx context.Context, u domain.User) error
	TouchUserLogin(ctx context.Context, id string, at time.Time) error
}

type UserService struct {
	store     UserStore
	publisher EventPublisher
	logger    *log.Logger
	now       func() time.Time
}

func NewUserService(store UserStore, pub EventPublisher, logger *log.Logger) *UserService {
	return &UserService{store: store, publisher: pub, logger: logger, now: nowUTC}
}

func (s *UserService) RegisterHandlers(r *Registry) {
	r.Register(domain.CmdRegisterUser, s.RegisterUser)
	r.Register(domain.CmdLoginUser, s.LoginUser)
}

func (s *UserService) RegisterUser(ctx context.Context, env domain.CommandEnvelope) (Result, error) {
	var data domain.RegisterUserData
	if err := sonic.Unmarshal(env.Command.Data, &data); err != nil {
		return Result{}, domain.Invalid("data", err.Error())
	}
	if strings.TrimSpace(data.Name) == "" {
		return Result{}, domain.Invalid("name", "must not be empty")
	}
	if !strings.Contains(data.Email, "@") {
		return Result{}, domain.Invalid("email", "malformed address")
	}
	if existing, err := s.store.GetUserByEmail(ctx, data.Email); err != nil {
		return Result{}, err
	} else if existing != nil {
		return Result{}, domain.Invalid("email", "already registered")
	}

	u := domain.User{
		ID:        uuid.NewString(),
		Name:      data.Name,
		Email:     data.Email,
		CreatedAt: s.now(),
	}
	if err := s.store.InsertUser(ctx, u); err != nil {
		return Result{}, err
	}
	return emit(ctx, s.publisher, domain.AggregateUser, u.ID, domain.UserRegistered, 1, domain.UserRegisteredData{
		Name:  u.Name,
		Email: u.Email,
	})
}

func (s *UserService) LoginUser(ctx context.Context, env domain.CommandEnvelope) (Result, error) {
	var data domain.LoginUserData
	if err := sonic.Unmarshal(env.Command.Data, &data); err != nil {
		return Result{}, domain.Invalid("data", err.Error())
	}
	u, err := s.store.GetUserByEmail(ctx, data.Email)
	if err != nil {
		return Result{}, err
	}
	if u == nil {
		return Result{}, domain.ErrNotFound
	}

	at := s.now()
	if err := s.store.TouchUserLogin(ctx, u.ID, at); err != nil {
		return Result{}, err
	}
	s.logger.WithField("userId", u.ID).Debug("login recorded")
	return emit(ctx, s.publisher, domain.AggregateUser, u.ID, domain.UserLoggedIn, 1, domain.UserLoggedInData{
		Email:      u.Email,
		LoggedInAt: at.UnixMilli(),
	})
}
