package service

import (
	"context"
	"fmt"
	"regexp"

	"golang.org/x/crypto/bcrypt"

	"shadownet-chat/internal/auth"
	"shadownet-chat/internal/domain"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// aliasAdjectives and aliasNouns feed the anonymous display-name generator.
// Real names and handles never enter the system; every account gets an alias
// like "SilentGhost42" at registration.
var aliasAdjectives = []string{
	"Silent", "Hidden", "Masked", "Phantom", "Shadow", "Hollow",
	"Drifting", "Veiled", "Quiet", "Pale", "Stray", "Lunar",
}

var aliasNouns = []string{
	"Ghost", "Raven", "Fox", "Wisp", "Echo", "Cipher",
	"Specter", "Moth", "Owl", "Shade", "Signal", "Ember",
}

var avatarColors = []string{
	"#7c3aed", "#db2777", "#0891b2", "#059669", "#d97706", "#dc2626",
}

type AuthService struct {
	userRepo domain.UserRepository
	tokens   *auth.JWTManager
}

func NewAuthService(userRepo domain.UserRepository, tokens *auth.JWTManager) *AuthService {
	return &AuthService{
		userRepo: userRepo,
		tokens:   tokens,
	}
}

// Register creates an account keyed by email. The public-facing identity (a
// generated alias plus avatar color) is assigned server-side; callers never
// pick their own name.
func (s *AuthService) Register(ctx context.Context, email, password string) (*domain.User, error) {
	if !emailRegex.MatchString(email) || len(email) > 255 {
		return nil, domain.ErrInvalidInput
	}
	if len(password) < 8 || len(password) > 100 {
		return nil, domain.ErrInvalidInput
	}

	if _, err := s.userRepo.GetByEmail(ctx, email); err == nil {
		return nil, domain.ErrEmailExists
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	if err != nil {
		return nil, err
	}

	name, err := s.generateAlias(ctx)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Email:        email,
		PasswordHash: string(hashedPassword),
		DisplayName:  name,
		AvatarColor:  avatarColors[randIntn(len(avatarColors))],
		Role:         domain.RoleUser,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

// Login checks credentials and issues a signed token carrying the alias.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return "", nil, domain.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword(
		[]byte(user.PasswordHash), []byte(password),
	); err != nil {
		return "", nil, domain.ErrInvalidCredentials
	}

	token, err := s.tokens.Generate(user)
	if err != nil {
		return "", nil, err
	}

	return token, user, nil
}

func (s *AuthService) GetUserByID(ctx context.Context, userID string) (*domain.User, error) {
	return s.userRepo.GetByID(ctx, userID)
}

// generateAlias draws names until one is free. Collisions are rare; after a
// bounded number of draws a numeric suffix widens the space.
func (s *AuthService) generateAlias(ctx context.Context) (string, error) {
	for attempt := 0; attempt < 10; attempt++ {
		name := fmt.Sprintf("%s%s%d",
			aliasAdjectives[randIntn(len(aliasAdjectives))],
			aliasNouns[randIntn(len(aliasNouns))],
			randIntn(100))
		if attempt >= 5 {
			name = fmt.Sprintf("%s%d", name, randIntn(10000))
		}
		if _, err := s.userRepo.GetByDisplayName(ctx, name); err != nil {
			return name, nil
		}
	}
	return "", domain.ErrNameExists
}
