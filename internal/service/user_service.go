package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"docqa-go/internal/model"
	"docqa-go/internal/repository"
	"docqa-go/pkg/hash"
	"docqa-go/pkg/log"
	"docqa-go/pkg/token"
)

const msgInvalidCredentials = "Invalid email or password"

var validate = validator.New()

// UserService 接口定义了所有与用户相关的业务操作。
type UserService interface {
	Register(ctx context.Context, username, email, password string) (*model.UserSummary, error)
	Login(ctx context.Context, email, password string) (*model.UserSummary, string, error)
	GetProfile(ctx context.Context, tokenString string) (*model.User, error)
	Logout(ctx context.Context, tokenString string) error
	ListUsers(ctx context.Context) ([]model.UserSummary, error)
}

// userService 是 UserService 接口的实现。
type userService struct {
	userRepo   repository.UserRepository
	denylist   repository.TokenDenylist
	jwtManager *token.JWTManager
	now        func() time.Time
}

// NewUserService 创建一个新的 UserService 实例。denylist 为 nil 时登出只做校验。
func NewUserService(userRepo repository.UserRepository, denylist repository.TokenDenylist, jwtManager *token.JWTManager) UserService {
	return &userService{
		userRepo:   userRepo,
		denylist:   denylist,
		jwtManager: jwtManager,
		now:        time.Now,
	}
}

// Register 处理用户注册的业务逻辑。
func (s *userService) Register(ctx context.Context, username, email, password string) (*model.UserSummary, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if err := validate.Var(username, "required,min=3,max=15"); err != nil {
		return nil, newError(ErrBadRequest, "Username must be between 3 and 15 characters")
	}
	if err := validate.Var(email, "required,email"); err != nil {
		return nil, newError(ErrBadRequest, "A valid email address is required")
	}
	if err := validate.Var(password, "required,min=6"); err != nil {
		return nil, newError(ErrBadRequest, "Password must be at least 6 characters")
	}

	// 1. 先检查邮箱，再检查用户名
	if _, err := s.userRepo.FindByEmail(ctx, email); err == nil {
		return nil, newError(ErrConflict, "Email already registered!")
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if _, err := s.userRepo.FindByUsername(ctx, username); err == nil {
		return nil, newError(ErrConflict, "Username already taken!")
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	// 2. 对密码进行哈希处理
	hashedPassword, err := hash.HashPassword(password)
	if err != nil {
		return nil, err
	}

	// 3. 写入；并发注册时由唯一索引兜底
	user := &model.User{
		Username:  username,
		Email:     email,
		Password:  hashedPassword,
		CreatedAt: s.now().UTC(),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, newError(ErrConflict, "Email or username already registered!")
		}
		return nil, err
	}

	log.Infof("User '%s' registered with email '%s'", username, email)
	summary := user.Summary()
	return &summary, nil
}

// Login 校验邮箱和密码，成功后签发 access token。
func (s *userService) Login(ctx context.Context, email, password string) (*model.UserSummary, string, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, "", newError(ErrBadRequest, "Email and password are required")
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, "", newError(ErrUnauthorized, msgInvalidCredentials)
	}
	if err != nil {
		return nil, "", err
	}
	if !hash.CheckPasswordHash(password, user.Password) {
		return nil, "", newError(ErrUnauthorized, msgInvalidCredentials)
	}

	accessToken, err := s.jwtManager.GenerateToken(user.Email)
	if err != nil {
		return nil, "", err
	}
	summary := user.Summary()
	return &summary, accessToken, nil
}

// GetProfile 校验 token 并返回其 subject 对应的用户。
func (s *userService) GetProfile(ctx context.Context, tokenString string) (*model.User, error) {
	claims, err := s.jwtManager.VerifyToken(tokenString)
	if err != nil {
		return nil, newError(ErrUnauthorized, "Could not validate credentials")
	}
	if s.denylist != nil {
		revoked, err := s.denylist.Contains(ctx, tokenString)
		if err != nil {
			return nil, err
		}
		if revoked {
			return nil, newError(ErrUnauthorized, "Token has been revoked")
		}
	}

	user, err := s.userRepo.FindByEmail(ctx, claims.Subject)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, newError(ErrUnauthorized, "User no longer exists")
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Logout 处理用户登出逻辑，将 token 加入 Redis 黑名单直到其自然过期。
func (s *userService) Logout(ctx context.Context, tokenString string) error {
	claims, err := s.jwtManager.VerifyToken(tokenString)
	if err != nil {
		return newError(ErrUnauthorized, "Could not validate credentials")
	}
	if s.denylist == nil {
		return nil
	}
	return s.denylist.Add(ctx, tokenString, s.jwtManager.Remaining(claims))
}

// ListUsers 返回所有用户的公开信息。
func (s *userService) ListUsers(ctx context.Context) ([]model.UserSummary, error) {
	users, err := s.userRepo.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.UserSummary, 0, len(users))
	for i := range users {
		out = append(out, users[i].Summary())
	}
	return out, nil
}
