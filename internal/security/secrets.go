package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math"
	"strings"
)

const (
	// RecommendedSecretLength is the length below which a webhook secret is
	// reported as weak.
	RecommendedSecretLength = 32

	// MinEntropy is the Shannon entropy (bits per character) below which a
	// secret is reported as weak.
	MinEntropy = 3.0

	// generatedSecretBytes encodes to 64 hex characters
	generatedSecretBytes = 32
)

var placeholderSecrets = []string{
	"replace",
	"changeme",
	"topsecret",
	"password",
	"github-webhook",
	"your-webhook-secret",
}

// SecretWarnings lists the reasons secret looks weak. An empty secret yields
// no warnings; whether a secret is required is the caller's decision.
func SecretWarnings(secret string) []string {
	if secret == "" {
		return nil
	}

	var warnings []string

	if len(secret) < RecommendedSecretLength {
		warnings = append(warnings, fmt.Sprintf("secret is short (%d characters, recommended at least %d)", len(secret), RecommendedSecretLength))
	}

	lower := strings.ToLower(secret)
	for _, p := range placeholderSecrets {
		if strings.Contains(lower, p) {
			warnings = append(warnings, "secret looks like a placeholder value")
			break
		}
	}

	if isSequential(secret) {
		warnings = append(warnings, "secret is mostly sequential characters")
	}

	if entropy := calculateEntropy(secret); entropy < MinEntropy {
		warnings = append(warnings, fmt.Sprintf("secret has low entropy (%.2f < %.2f)", entropy, MinEntropy))
	}

	return warnings
}

// IsWeakSecret reports whether SecretWarnings has anything to say.
func IsWeakSecret(secret string) bool {
	return len(SecretWarnings(secret)) > 0
}

// GenerateSecret creates a random hex secret suitable for WEBHOOK_SECRET.
func GenerateSecret() (string, error) {
	buf := make([]byte, generatedSecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// calculateEntropy computes the Shannon entropy of s in bits per character.
func calculateEntropy(s string) float64 {
	if len(s) == 0 {
		return 0
	}

	freq := make(map[rune]int)
	total := 0
	for _, c := range s {
		freq[c]++
		total++
	}

	var entropy float64
	length := float64(total)
	for _, count := range freq {
		p := float64(count) / length
		entropy -= p * math.Log2(p)
	}

	return entropy
}

// isSequential reports whether more than 70% of adjacent characters step by one.
func isSequential(s string) bool {
	if len(s) < 4 {
		return false
	}

	sequential := 0
	for i := 1; i < len(s); i++ {
		if s[i] == s[i-1]+1 || s[i] == s[i-1]-1 {
			sequential++
		}
	}

	return float64(sequential) > float64(len(s))*0.7
}
