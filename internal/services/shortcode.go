// Package services – short-code generation
//
// This file implements the public short-code generator for moments. Codes are
// human-shareable labels, not secrets, so a non-cryptographic uniform draw is
// sufficient; collision resistance comes from the retry loop plus the unique
// index on moments.short_code.
package services

import (
	"context"
	"math/rand"

	"gorm.io/gorm"

	"github.com/veiled-app/moments-backend/internal/repo"
)

// codeAlphabet is the 62-symbol alphabet codes are drawn from.
const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

const (
	// DefaultCodeLength is the short-code length used when none is configured.
	DefaultCodeLength = 6
	// DefaultCodeMaxAttempts bounds the generate-and-check loop so latency
	// stays bounded under adversarial load.
	DefaultCodeMaxAttempts = 20
)

// CodeGenerator produces globally unique short codes by drawing candidates and
// checking them against the store. The check-then-insert sequence is not
// atomic against concurrent generators; callers must treat a duplicate-key
// insert (repo.IsDuplicate) as a signal to ask for a fresh candidate.
type CodeGenerator struct {
	DB          *gorm.DB
	Length      int
	MaxAttempts int

	// randFn is a seam for tests; nil means the package-level math/rand source.
	randFn func(n int) string
}

func (g *CodeGenerator) length() int {
	if g.Length > 0 {
		return g.Length
	}
	return DefaultCodeLength
}

func (g *CodeGenerator) maxAttempts() int {
	if g.MaxAttempts > 0 {
		return g.MaxAttempts
	}
	return DefaultCodeMaxAttempts
}

func (g *CodeGenerator) draw() string {
	if g.randFn != nil {
		return g.randFn(g.length())
	}
	return randomCode(g.length())
}

// randomCode draws n symbols uniformly from codeAlphabet.
func randomCode(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = codeAlphabet[rand.Intn(len(codeAlphabet))]
	}
	return string(b)
}

// Generate returns a candidate short code that is unused at the time of the
// check. It retries up to MaxAttempts before failing with
// ErrCodeSpaceExhausted. Storage errors from the existence check propagate
// unwrapped.
func (g *CodeGenerator) Generate(ctx context.Context) (string, error) {
	for i := 0; i < g.maxAttempts(); i++ {
		code := g.draw()
		exists, err := repo.ShortCodeExists(ctx, g.DB, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", ErrCodeSpaceExhausted
}
