package services

import (
	"crypto/rand"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/pkg/errors"

	"github.com/wadjakorntonsri/shortly/pkg/ports"
)

// Code generation strategies.
const (
	CodeStrategyRandom = "random"
	CodeStrategyHash   = "hash"
)

const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RandomCodeGenerator draws base62 codes from crypto/rand.
type RandomCodeGenerator struct {
	Length int
}

func (g RandomCodeGenerator) Generate(_ string, _ int) (string, error) {
	return generateShortCode(g.Length)
}

// HashCodeGenerator takes the leading hex digits of sha1(url). Retries
// salt the input with the attempt number.
type HashCodeGenerator struct {
	Length int
}

func (g HashCodeGenerator) Generate(url string, attempt int) (string, error) {
	input := url
	if attempt > 0 {
		input = fmt.Sprintf("%s#%d", url, attempt)
	}
	sum := sha1.Sum([]byte(input))
	return hex.EncodeToString(sum[:])[:g.Length], nil
}

// NewCodeGenerator returns the generator for strategy.
func NewCodeGenerator(strategy string, length int) (ports.CodeGenerator, error) {
	if length < 1 {
		return nil, errors.Errorf("code length must be positive, got %d", length)
	}
	switch strategy {
	case "", CodeStrategyRandom:
		return RandomCodeGenerator{Length: length}, nil
	case CodeStrategyHash:
		if length > sha1.Size*2 {
			return nil, errors.Errorf("hash codes are at most %d characters, got %d", sha1.Size*2, length)
		}
		return HashCodeGenerator{Length: length}, nil
	default:
		return nil, errors.Errorf("unknown code strategy %q", strategy)
	}
}

func generateShortCode(length int) (string, error) {
	b := make([]byte, length)
	for i := range b {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		b[i] = charset[num.Int64()]
	}
	return string(b), nil
}
