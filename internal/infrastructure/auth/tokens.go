// Package auth verifies bearer tokens of the form "name.secret" against
// bcrypt hashes configured per name.
package auth

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const vehiclePrefix = "vehicle:"

var ErrInvalidToken = errors.New("invalid token")

// Principal is the caller identified by a token.
type Principal struct {
	Name string
	// VehicleID is set for vehicle principals, which may only act on their
	// own vehicle.
	VehicleID string
}

func (p Principal) IsOperator() bool {
	return p.VehicleID == ""
}

// CanAccessVehicle reports whether the principal may touch vehicleID.
func (p Principal) CanAccessVehicle(vehicleID string) bool {
	return p.IsOperator() || p.VehicleID == vehicleID
}

// Verifier checks tokens against configured hashes. A verifier with no
// hashes is disabled and accepts every request as an operator.
type Verifier struct {
	hashes map[string]string
}

func NewVerifier(hashes map[string]string) *Verifier {
	copied := make(map[string]string, len(hashes))
	for k, v := range hashes {
		copied[k] = v
	}
	return &Verifier{hashes: copied}
}

func (v *Verifier) Enabled() bool {
	return len(v.hashes) > 0
}

// Verify returns the principal for token.
func (v *Verifier) Verify(token string) (*Principal, error) {
	if !v.Enabled() {
		return &Principal{Name: "anonymous"}, nil
	}
	idx := strings.LastIndex(token, ".")
	if idx <= 0 || idx == len(token)-1 {
		return nil, ErrInvalidToken
	}
	name, secret := token[:idx], token[idx+1:]
	hash, ok := v.hashes[name]
	if !ok {
		return nil, ErrInvalidToken
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) != nil {
		return nil, ErrInvalidToken
	}
	p := &Principal{Name: name}
	if strings.HasPrefix(name, vehiclePrefix) {
		p.VehicleID = strings.TrimPrefix(name, vehiclePrefix)
	}
	return p, nil
}

// HashSecret returns the bcrypt hash to configure for secret.
func HashSecret(secret string) (string, error) {
	if secret == "" {
		return "", errors.New("secret is required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
