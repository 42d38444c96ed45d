package ingest

import (
	"testing"

	"github.com/mohammad-safakhou/deckray/models"
)

func TestFingerprintNormalizesAddress(t *testing.T) {
	a := Fingerprint(models.IngestRequest{Address: "https://DocSend.example/s/abc123/"})
	b := Fingerprint(models.IngestRequest{Address: "https://docsend.example/s/abc123#view"})
	if a != b {
		t.Fatalf("host case, trailing slash and fragment must not change the fingerprint")
	}
	c := Fingerprint(models.IngestRequest{Address: "https://docsend.example/s/other"})
	if a == c {
		t.Fatalf("different decks collided")
	}
}

func TestFingerprintIdentityCaseInsensitive(t *testing.T) {
	a := Fingerprint(models.IngestRequest{Address: "https://docsend.example/s/abc", IdentityEmail: "Analyst@Fund.example"})
	b := Fingerprint(models.IngestRequest{Address: "https://docsend.example/s/abc", IdentityEmail: " analyst@fund.example "})
	if a != b {
		t.Fatalf("identity email must be compared case and space insensitively")
	}
	c := Fingerprint(models.IngestRequest{Address: "https://docsend.example/s/abc", IdentityEmail: "other@fund.example"})
	if a == c {
		t.Fatalf("different identities collided")
	}
}

func TestFingerprintPassphrasePresenceOnly(t *testing.T) {
	none := Fingerprint(models.IngestRequest{Address: "https://docsend.example/s/abc"})
	one := Fingerprint(models.IngestRequest{Address: "https://docsend.example/s/abc", Passphrase: "hunter2"})
	two := Fingerprint(models.IngestRequest{Address: "https://docsend.example/s/abc", Passphrase: "swordfish"})
	if none == one {
		t.Fatalf("passphrase presence must change the fingerprint")
	}
	if one != two {
		t.Fatalf("passphrase value must not leak into the fingerprint")
	}
}
