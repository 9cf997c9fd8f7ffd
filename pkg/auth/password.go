package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// MinIdentityProofLength is the shortest identity proof accepted on LGPD requests
const MinIdentityProofLength = 10

// HashIdentityProof hashes an identity proof (document number, selfie reference...)
// so that only a verifier is kept at rest. The proof is pre-digested with SHA-256
// because bcrypt rejects inputs longer than 72 bytes.
func HashIdentityProof(proof string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword(proofDigest(proof), bcrypt.DefaultCost)
	return string(bytes), err
}

// VerifyIdentityProof compares a plain proof with a stored hash
func VerifyIdentityProof(proof, hash string) bool {
	if hash == "" {
		return false
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), proofDigest(proof))
	return err == nil
}

// ValidIdentityProof checks the minimum proof length
func ValidIdentityProof(proof string) bool {
	return len(strings.TrimSpace(proof)) >= MinIdentityProofLength
}

func proofDigest(proof string) []byte {
	sum := sha256.Sum256([]byte(strings.TrimSpace(proof)))
	return []byte(hex.EncodeToString(sum[:]))
}
