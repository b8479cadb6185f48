package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// fingerprint derives a stable cache key from the applicant's feature
// set. Identity fields are excluded, so two applicants with identical
// features share score cache entries.
func fingerprint(profile *domain.ApplicantProfile) string {
	// json.Marshal sorts map keys, which keeps the digest stable.
	data, err := json.Marshal(profile.Features())
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
