package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/ghostbadfame/CRM-Chase-local/config"
	"github.com/ghostbadfame/CRM-Chase-local/models"

	"github.com/dgrijalva/jwt-go"
	"golang.org/x/crypto/bcrypt"
)

const tokenTTL = 24 * time.Hour

var jwtSecret = []byte(config.LoadConfig().JWTKey)

// SetJWTSecret replaces the signing key loaded at start-up.
func SetJWTSecret(key string) {
	jwtSecret = []byte(key)
}

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword reports whether password matches the stored bcrypt hash.
func VerifyPassword(password, hashedPassword string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)) == nil
}

// GenerateToken signs a session token for user.
func GenerateToken(user *models.User, now time.Time) (string, error) {
	claims := jwt.MapClaims{
		"id":       user.ID.Hex(),
		"username": user.Username,
		"email":    user.Email,
		"empNo":    user.EmpNo,
		"userType": user.UserType,
		"role":     string(user.Role),
		"exp":      now.Add(tokenTTL).Unix(),
		"iat":      now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(jwtSecret)
	if err != nil {
		Logger.Error().Err(err).Msg("sign token failed")
		return "", err
	}
	return tokenString, nil
}

// ParseToken validates tokenString against the current time and returns its
// claims.
func ParseToken(tokenString string) (jwt.MapClaims, error) {
	return ParseTokenAt(tokenString, time.Now())
}

// ParseTokenAt validates tokenString as of now.
func ParseTokenAt(tokenString string, now time.Time) (jwt.MapClaims, error) {
	parser := &jwt.Parser{SkipClaimsValidation: true}
	token, err := parser.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if !claims.VerifyExpiresAt(now.Unix(), true) {
		return nil, errors.New("token is expired")
	}
	if !claims.VerifyIssuedAt(now.Unix(), false) {
		return nil, errors.New("token used before issued")
	}
	return claims, nil
}

// ActingUserFromClaims converts verified token claims into the session principal.
func ActingUserFromClaims(claims jwt.MapClaims) (*models.ActingUser, error) {
	str := func(key string) string {
		v, _ := claims[key].(string)
		return v
	}

	user := &models.ActingUser{
		ID:       str("id"),
		Email:    str("email"),
		Username: str("username"),
		EmpNo:    str("empNo"),
		UserType: str("userType"),
		Role:     models.UserRole(str("role")),
	}
	if user.ID == "" || user.Email == "" || user.Role == "" {
		return nil, errors.New("token is missing required claims")
	}
	return user, nil
}
