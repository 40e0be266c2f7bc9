package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"caixapdv/internal/apperrors"
	"caixapdv/internal/config"
	"caixapdv/internal/dto"
	"caixapdv/internal/model"
	"caixapdv/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Roles, from least to most privileged.
const (
	RoleOperator = "operator"
	RoleManager  = "manager"
	RoleAdmin    = "admin"
)

const bcryptCost = 12

type AuthService interface {
	Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*dto.LoginResponse, error)
	CreateUser(ctx context.Context, req dto.CreateUserRequest) (*dto.UserResponse, error)
}

type authService struct {
	repo repository.UserRepository
	cfg  *config.Config
}

func NewAuthService(repo repository.UserRepository, cfg *config.Config) AuthService {
	return &authService{repo: repo, cfg: cfg}
}

var errBadCredentials = fmt.Errorf("credenciais inválidas: %w", apperrors.ErrUnauthorized)

func (s *authService) Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error) {
	user, err := s.repo.FindByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, errBadCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, errBadCredentials
	}
	return s.issue(user)
}

func (s *authService) Refresh(ctx context.Context, refreshToken string) (*dto.LoginResponse, error) {
	token, err := jwt.Parse(refreshToken, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("refresh token inválido ou expirado: %w", apperrors.ErrUnauthorized)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("claims inválidas: %w", apperrors.ErrUnauthorized)
	}
	if typ, _ := claims["typ"].(string); typ != dto.TokenRefresh {
		return nil, fmt.Errorf("token não é de renovação: %w", apperrors.ErrUnauthorized)
	}
	userIDStr, _ := claims["user_id"].(string)
	uid, err := uuid.Parse(userIDStr)
	if err != nil {
		return nil, fmt.Errorf("token mal formado: %w", apperrors.ErrUnauthorized)
	}

	user, err := s.repo.FindByID(ctx, uid)
	if err != nil || !user.Active {
		return nil, fmt.Errorf("usuário não encontrado ou inativo: %w", apperrors.ErrUnauthorized)
	}
	return s.issue(user)
}

func (s *authService) CreateUser(ctx context.Context, req dto.CreateUserRequest) (*dto.UserResponse, error) {
	if req.Role != RoleAdmin && strings.TrimSpace(req.StoreID) == "" {
		return nil, fmt.Errorf("loja obrigatória para o perfil %s: %w", req.Role, apperrors.ErrValidation)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		return nil, err
	}
	user := &model.User{
		Username:     strings.TrimSpace(req.Username),
		Name:         strings.TrimSpace(req.Name),
		Email:        req.Email,
		PasswordHash: string(hash),
		Role:         req.Role,
		StoreID:      strings.TrimSpace(req.StoreID),
		Active:       true,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}
	resp := userToResponse(user)
	return &resp, nil
}

func (s *authService) issue(user *model.User) (*dto.LoginResponse, error) {
	accessToken, err := s.generateToken(user, dto.TokenAccess, time.Duration(s.cfg.JWTExpirationHours)*time.Hour)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.generateToken(user, dto.TokenRefresh, time.Duration(s.cfg.JWTRefreshHours)*time.Hour)
	if err != nil {
		return nil, err
	}
	return &dto.LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "bearer",
		ExpiresIn:    s.cfg.JWTExpirationHours * 3600,
		User:         userToResponse(user),
	}, nil
}

func (s *authService) generateToken(user *model.User, typ string, duration time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id":  user.ID.String(),
		"username": user.Username,
		"name":     user.Name,
		"role":     user.Role,
		"store_id": user.StoreID,
		"typ":      typ,
		"exp":      now.Add(duration).Unix(),
		"iat":      now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWTSecret))
}

func userToResponse(u *model.User) dto.UserResponse {
	return dto.UserResponse{
		ID:       u.ID.String(),
		Username: u.Username,
		Name:     u.Name,
		Email:    u.Email,
		Role:     u.Role,
		StoreID:  u.StoreID,
		Active:   u.Active,
	}
}
