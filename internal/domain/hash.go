package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Fingerprint returns the first 8 hex chars of the SHA-256 of v's JSON form.
func Fingerprint(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:8]
}

// InputFingerprint hashes the fields that identify a composition request for
// feedback matching: notes, materials and options.
func InputFingerprint(in ComposeInput) string {
	return Fingerprint(struct {
		Notes     string    `json:"notes"`
		Materials Materials `json:"m"`
		Options   []string  `json:"o"`
	}{in.CustomerNotes, in.CalcSummary.Materials, in.CalcSummary.Options})
}
