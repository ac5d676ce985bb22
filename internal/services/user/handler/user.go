package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"storefront-system/internal/database/models"
	"storefront-system/internal/domain"
	sysutils "storefront-system/internal/utils"
)

const (
	USER_CACHE_PREFIX = "user:"
	CACHE_TTL_MEDIUM  = 30 * time.Minute

	MinPasswordLength = 8
)

type RegisterRequest struct {
	Name                 string
	Email                string
	Password             string
	PasswordConfirmation string
	Role                 string
}

// Session is an issued token together with the user it belongs to.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      *models.User
}

// --- Handler ---
type UserHandler struct {
	db     *gorm.DB
	redis  *redis.Client
	jwt    *sysutils.JWTManager
	logger *zap.Logger
}

func NewUserHandler(db *gorm.DB, redisClient *redis.Client, jwt *sysutils.JWTManager, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		db:     db,
		redis:  redisClient,
		jwt:    jwt,
		logger: logger,
	}
}

func (s *UserHandler) InvalidateUserCaches(ctx context.Context, userIDs ...int64) {
	if s.redis == nil {
		return
	}
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, fmt.Sprintf("%s%d", USER_CACHE_PREFIX, id))
	}
	if len(keys) == 0 {
		return
	}
	if err := s.redis.Del(ctx, keys...).Err(); err != nil {
		s.logger.Warn("invalidate user cache", zap.Int64s("user_ids", userIDs), zap.Error(err))
	}
}

// --- Authentication & Registration ---

// Register creates a user whose username is derived from the e-mail local part.
func (s *UserHandler) Register(ctx context.Context, req RegisterRequest) (*Session, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	name := strings.TrimSpace(req.Name)

	fields := map[string][]string{}
	if name == "" {
		fields["name"] = []string{"This field is required."}
	}
	if email == "" || !strings.Contains(email, "@") {
		fields["email"] = []string{"Enter a valid email address."}
	}
	if len(req.Password) < MinPasswordLength {
		fields["password"] = []string{fmt.Sprintf("This password is too short. It must contain at least %d characters.", MinPasswordLength)}
	}
	if len(fields) > 0 {
		return nil, domain.NewValidation("Registration failed").WithField("errors", fields)
	}
	if req.Password != req.PasswordConfirmation {
		return nil, domain.NewValidation(domain.MsgPasswordsMismatch)
	}

	role := domain.RoleUser
	if req.Role != "" {
		role = domain.Role(req.Role)
		if !role.IsValid() {
			return nil, domain.NewValidationf("\"%s\" is not a valid choice.", req.Role).
				WithField("role", []string{fmt.Sprintf("\"%s\" is not a valid choice.", req.Role)})
		}
	}

	pwHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.Wrap(err, "hash password")
	}

	var user models.User
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
			return errors.Wrap(err, "check email")
		}
		if count > 0 {
			return domain.NewValidation(domain.MsgEmailExists).
				WithField("email", []string{domain.MsgEmailExists})
		}

		username, err := uniqueUsername(tx, email)
		if err != nil {
			return err
		}

		user = models.User{
			Username:  username,
			Email:     email,
			Password:  string(pwHash),
			Firstname: name,
			Role:      role,
			IsActive:  true,
		}
		return errors.Wrap(tx.Create(&user).Error, "create user")
	})
	if err != nil {
		return nil, err
	}

	token, exp, err := s.jwt.GenerateToken(user.ID, user.Username, user.Role)
	if err != nil {
		return nil, errors.Wrap(err, "generate token")
	}

	s.logger.Info("user registered", zap.Int64("user_id", user.ID), zap.String("username", user.Username))
	return &Session{Token: token, ExpiresAt: exp, User: &user}, nil
}

func uniqueUsername(tx *gorm.DB, email string) (string, error) {
	base := email
	if at := strings.Index(email, "@"); at > 0 {
		base = email[:at]
	}

	username := base
	for counter := 1; ; counter++ {
		var count int64
		if err := tx.Model(&models.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
			return "", errors.Wrap(err, "check username")
		}
		if count == 0 {
			return username, nil
		}
		username = fmt.Sprintf("%s%d", base, counter)
	}
}

func (s *UserHandler) Login(ctx context.Context, email, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, domain.NewValidation("Must include email and password.")
	}

	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewUnauthorized(domain.MsgInvalidCredentials)
		}
		return nil, errors.Wrap(err, "get user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, domain.NewUnauthorized(domain.MsgInvalidCredentials)
	}
	if !user.IsActive {
		return nil, domain.NewPermission(domain.MsgUserInactive)
	}

	token, exp, err := s.jwt.GenerateToken(user.ID, user.Username, user.Role)
	if err != nil {
		return nil, errors.Wrap(err, "generate token")
	}

	now := time.Now()
	if err := s.db.WithContext(ctx).Model(&user).Update("last_login", now).Error; err != nil {
		s.logger.Warn("update last login", zap.Int64("user_id", user.ID), zap.Error(err))
	}
	user.LastLogin = &now

	s.InvalidateUserCaches(ctx, user.ID)
	return &Session{Token: token, ExpiresAt: exp, User: &user}, nil
}

// --- User Management ---

// GetUser serves the profile of id, through the redis cache when one is configured.
func (s *UserHandler) GetUser(ctx context.Context, id int64) (*models.User, error) {
	cacheKey := fmt.Sprintf("%s%d", USER_CACHE_PREFIX, id)
	if s.redis != nil {
		if raw, err := s.redis.Get(ctx, cacheKey).Bytes(); err == nil {
			var cached models.User
			if json.Unmarshal(raw, &cached) == nil {
				return &cached, nil
			}
		}
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFound(domain.MsgUserNotFound)
		}
		return nil, errors.Wrap(err, "get user")
	}

	if s.redis != nil {
		cached := user
		cached.Password = ""
		if raw, err := json.Marshal(cached); err == nil {
			if err := s.redis.Set(ctx, cacheKey, raw, CACHE_TTL_MEDIUM).Err(); err != nil {
				s.logger.Warn("user cache set", zap.String("key", cacheKey), zap.Error(err))
			}
		}
	}
	return &user, nil
}

func (s *UserHandler) ListUsers(ctx context.Context, actor domain.Actor) ([]models.User, error) {
	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}
	var users []models.User
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&users).Error; err != nil {
		return nil, errors.Wrap(err, "list users")
	}
	return users, nil
}
