package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"

	"github.com/mohammad-safakhou/deckray/models"
)

// Fingerprint deterministically identifies a cacheable ingestion request.
// It hashes the normalized address, the lowercased identity and whether a
// passphrase was supplied — never the passphrase itself — so identical
// requests collide and differing credentials do not.
func Fingerprint(req models.IngestRequest) string {
	passPresent := "0"
	if req.Passphrase != "" {
		passPresent = "1"
	}
	payload := fmt.Sprintf("%s\n%s\n%s",
		normalizeAddress(req.Address),
		strings.ToLower(strings.TrimSpace(req.IdentityEmail)),
		passPresent,
	)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

func normalizeAddress(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	if u.Path != "/" {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}
	return u.String()
}
