package register

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// BcryptCost is the work factor used for credential hashes.
var BcryptCost = 12

// HashPassword will generate a password hash
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	return string(h), err
}

// ComparePasswordAndHash will validate the given cleartext password
// matches the hashed password
func ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatchedHashAndPassword
		}
		return err
	}
	return nil
}

// ProvisionalPasswordHash generates an opaque placeholder credential so an
// account row is never saved with an empty password hash. The cleartext is
// random and discarded; nobody can log in with it.
func ProvisionalPasswordHash() string {
	pwd := uuid.New()

	h, err := HashPassword(pwd.String())
	if err != nil {
		return ProvisionalPasswordHash()
	}

	return h
}

// ProvisionalUsername derives a placeholder username with a random
// collision-free suffix. Accounts keep it until profile completion.
func ProvisionalUsername() string {
	suffix := strings.Split(uuid.NewString(), "-")[0]
	return "account-" + suffix
}

type bcryptHasher struct{}

// NewPasswordHasher returns the default bcrypt-backed hasher
func NewPasswordHasher() PasswordHasher {
	return bcryptHasher{}
}

func (bcryptHasher) HashPassword(password string) (string, error) {
	return HashPassword(password)
}

func (bcryptHasher) ComparePasswordAndHash(password, hash string) error {
	return ComparePasswordAndHash(password, hash)
}
