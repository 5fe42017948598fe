package service

import (
	"errors"

	"mizupay/config"
	"mizupay/internal/auth"
	"mizupay/internal/domain"
	"mizupay/internal/models"
	"mizupay/internal/repository"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrEmailExists  = errors.New("email already registered")
	ErrInvalidCreds = errors.New("invalid email or password")
)

type AuthService struct {
	cfg      *config.Config
	userRepo *repository.UserRepository
}

func NewAuthService(cfg *config.Config, userRepo *repository.UserRepository) *AuthService {
	return &AuthService{cfg: cfg, userRepo: userRepo}
}

func (s *AuthService) Register(email, password string) (*models.User, auth.TokenPair, error) {
	_, err := s.userRepo.GetByEmail(email)
	if err == nil {
		return nil, auth.TokenPair{}, ErrEmailExists
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, auth.TokenPair{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, auth.TokenPair{}, err
	}
	u := &models.User{
		Email:        email,
		PasswordHash: string(hash),
		Role:         domain.RoleUser,
	}
	if err := s.userRepo.Create(u); err != nil {
		return nil, auth.TokenPair{}, err
	}
	pair, err := auth.MintPair(&s.cfg.JWT, u.ID, u.Email, u.Role)
	return u, pair, err
}

func (s *AuthService) Login(email, password string) (*models.User, auth.TokenPair, error) {
	u, err := s.userRepo.GetByEmail(email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, auth.TokenPair{}, ErrInvalidCreds
		}
		return nil, auth.TokenPair{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, auth.TokenPair{}, ErrInvalidCreds
	}
	pair, err := auth.MintPair(&s.cfg.JWT, u.ID, u.Email, u.Role)
	return u, pair, err
}

// LoginWithGoogle creates or finds a user by Google ID and returns user,
// tokens and an isNew flag. An existing email account gets the Google ID
// linked instead of a duplicate row.
func (s *AuthService) LoginWithGoogle(googleID, email, avatarURL string) (*models.User, auth.TokenPair, bool, error) {
	u, err := s.userRepo.GetByGoogleID(googleID)
	if err == nil {
		pair, err := auth.MintPair(&s.cfg.JWT, u.ID, u.Email, u.Role)
		return u, pair, false, err
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, auth.TokenPair{}, false, err
	}
	existing, _ := s.userRepo.GetByEmail(email)
	if existing != nil {
		gid := googleID
		existing.GoogleID = &gid
		if avatarURL != "" {
			existing.AvatarURL = avatarURL
		}
		if err := s.userRepo.Update(existing); err != nil {
			return nil, auth.TokenPair{}, false, err
		}
		pair, err := auth.MintPair(&s.cfg.JWT, existing.ID, existing.Email, existing.Role)
		return existing, pair, false, err
	}
	gid := googleID
	u = &models.User{
		Email:     email,
		Role:      domain.RoleUser,
		GoogleID:  &gid,
		AvatarURL: avatarURL,
	}
	if err := s.userRepo.Create(u); err != nil {
		return nil, auth.TokenPair{}, false, err
	}
	pair, err := auth.MintPair(&s.cfg.JWT, u.ID, u.Email, u.Role)
	return u, pair, true, err
}

// Refresh validates a refresh token and mints a new access/refresh pair.
func (s *AuthService) Refresh(refreshToken string) (*models.User, auth.TokenPair, error) {
	id, err := auth.ParseRefreshToken(&s.cfg.JWT, refreshToken)
	if err != nil {
		return nil, auth.TokenPair{}, err
	}
	u, err := s.userRepo.GetByID(id)
	if err != nil {
		return nil, auth.TokenPair{}, auth.ErrInvalidToken
	}
	pair, err := auth.MintPair(&s.cfg.JWT, u.ID, u.Email, u.Role)
	return u, pair, err
}
