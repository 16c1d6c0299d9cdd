package crypto

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// NewUID returns a human-readable account identifier such as STUD-48291034.
func NewUID(role string) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(100000000))
	if err != nil {
		return "", err
	}
	prefix := "TEACH"
	if role == "student" {
		prefix = "STUD"
	}
	return fmt.Sprintf("%s-%08d", prefix, n.Int64()), nil
}

// NewJoiningCode returns a six digit batch joining code.
func NewJoiningCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
