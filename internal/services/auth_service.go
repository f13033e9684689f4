package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"caffemacao/internal/models"
	"caffemacao/internal/repositories"
	"caffemacao/pkg/apperror"
)

// Claims is the verified content of an access token.
type Claims struct {
	UserID    string
	Role      models.Role
	TokenID   string
	ExpiresAt time.Time
}

// RegisterInput is the data needed to open a customer account.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Phone    string
}

// AuthService handles business logic for authentication and authorization.
type AuthService struct {
	userRepo  repositories.UserRepository
	tokens    repositories.TokenStore // nil disables revocation
	jwtSecret []byte
	tokenTTL  time.Duration
	log       *zap.Logger
	now       func() time.Time
}

// NewAuthService creates a new AuthService. tokens may be nil, in which case
// Logout is accepted but tokens stay valid until they expire.
func NewAuthService(userRepo repositories.UserRepository, tokens repositories.TokenStore, jwtSecret string, tokenTTL time.Duration, log *zap.Logger) *AuthService {
	return &AuthService{
		userRepo:  userRepo,
		tokens:    tokens,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
		log:       log,
		now:       time.Now,
	}
}

// Register creates a customer account with a bcrypt-hashed password.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if existing, err := s.userRepo.GetByEmail(ctx, email); err == nil && existing != nil {
		return nil, apperror.Conflict("email '%s' already registered", email)
	} else if err != nil && !apperror.Is(err, apperror.KindNotFound) {
		return nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperror.Internal(err, "failed to hash password")
	}

	user := &models.User{
		Name:     strings.TrimSpace(in.Name),
		Email:    email,
		Password: string(hashed),
		Role:     models.RoleUser,
		Phone:    in.Phone,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	s.log.Info("user registered", zap.String("user_id", user.ID))
	return user, nil
}

// Login authenticates a user and returns a signed JWT.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if apperror.Is(err, apperror.KindNotFound) {
			return "", nil, apperror.Unauthorized("invalid credentials")
		}
		return "", nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", nil, apperror.Unauthorized("invalid credentials")
	}

	token, err := s.issueToken(user)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

func (s *AuthService) issueToken(user *models.User) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": user.ID,
		"role":    string(user.Role),
		"jti":     uuid.New().String(),
		"exp":     now.Add(s.tokenTTL).Unix(),
		"iat":     now.Unix(),
	})

	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", apperror.Internal(err, "failed to generate token")
	}
	return signed, nil
}

// ValidateToken parses and validates a JWT, rejecting revoked tokens and
// tokens of deleted users. The returned role is the user's current role, not
// the one signed into the token.
func (s *AuthService) ValidateToken(ctx context.Context, tokenString string) (*Claims, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return nil, err
	}

	if s.tokens != nil {
		revoked, err := s.tokens.IsRevoked(ctx, claims.TokenID)
		if err != nil {
			return nil, err
		}
		if revoked {
			return nil, apperror.Unauthorized("invalid token: token has been revoked")
		}
	}

	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		if apperror.Is(err, apperror.KindNotFound) {
			return nil, apperror.Unauthorized("invalid token: user no longer exists")
		}
		return nil, err
	}
	if user.Role != claims.Role {
		s.log.Debug("role changed since token was issued",
			zap.String("user_id", user.ID),
			zap.String("token_role", string(claims.Role)),
			zap.String("role", string(user.Role)))
		claims.Role = user.Role
	}
	return claims, nil
}

func (s *AuthService) parse(tokenString string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		s.log.Debug("token validation failed", zap.Error(err))
		return nil, apperror.Unauthorized("invalid token: %v", err)
	}

	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, apperror.Unauthorized("invalid token")
	}

	userID, _ := mc["user_id"].(string)
	role, _ := mc["role"].(string)
	jti, _ := mc["jti"].(string)
	exp, _ := mc["exp"].(float64)
	if userID == "" || jti == "" || !models.Role(role).Valid() {
		return nil, apperror.Unauthorized("invalid token: missing claims")
	}

	return &Claims{
		UserID:    userID,
		Role:      models.Role(role),
		TokenID:   jti,
		ExpiresAt: time.Unix(int64(exp), 0),
	}, nil
}

// Logout revokes the token until it would have expired.
func (s *AuthService) Logout(ctx context.Context, tokenString string) error {
	claims, err := s.ValidateToken(ctx, tokenString)
	if err != nil {
		return err
	}
	if s.tokens == nil {
		s.log.Warn("token revocation disabled, logout is client side only", zap.String("user_id", claims.UserID))
		return nil
	}
	return s.tokens.Revoke(ctx, claims.TokenID, claims.ExpiresAt.Sub(s.now()))
}

// EnsureAdmin creates the back-office account, or promotes an existing user
// with that email to admin.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password string) error {
	user, err := s.userRepo.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if user.IsAdmin() {
			return nil
		}
		user.Role = models.RoleAdmin
		if err := s.userRepo.Update(ctx, user); err != nil {
			return err
		}
		s.log.Info("promoted user to admin", zap.String("user_id", user.ID))
		return nil
	case !apperror.Is(err, apperror.KindNotFound):
		return err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return apperror.Internal(err, "failed to hash password")
	}
	admin := &models.User{
		Name:     "Administrator",
		Email:    email,
		Password: string(hashed),
		Role:     models.RoleAdmin,
	}
	if err := s.userRepo.Create(ctx, admin); err != nil {
		return err
	}
	s.log.Info("admin account created", zap.String("user_id", admin.ID))
	return nil
}
