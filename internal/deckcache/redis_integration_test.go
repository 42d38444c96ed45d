package deckcache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/mohammad-safakhou/deckray/models"
)

func startRedis(t *testing.T, ctx context.Context) (testcontainers.Container, string, string) {
	t.Helper()
	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
	}
	rd, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Fatalf("failed to start redis: %v", err)
	}
	port, err := rd.MappedPort(ctx, "6379")
	if err != nil {
		_ = rd.Terminate(ctx)
		t.Fatalf("failed to get mapped port: %v", err)
	}
	host, err := rd.Host(ctx)
	if err != nil {
		_ = rd.Terminate(ctx)
		t.Fatalf("failed to get host: %v", err)
	}
	return rd, host, port.Port()
}

func TestRedisStoreIntegration(t *testing.T) {
	if os.Getenv("DECKRAY_INTEGRATION") == "" {
		t.Skip("set DECKRAY_INTEGRATION=1 to run dockerised integration tests")
	}
	ctx := context.Background()
	rd, host, port := startRedis(t, ctx)
	defer func() { _ = rd.Terminate(ctx) }()

	client, err := Conn(ctx, host, port, "", 0, 5*time.Second)
	if err != nil {
		t.Fatalf("redis conn: %v", err)
	}
	store := NewRedis(client)

	result := models.DeckResult{
		Fingerprint:    "fp-integration",
		TotalPages:     3,
		ProcessedPages: 3,
		Success:        true,
		AssembledText:  "Slide A\n<pagebreak>\nSlide B\n<pagebreak>\nSlide C",
	}

	ok, err := store.PutIfAbsent(ctx, result.Fingerprint, result, time.Minute)
	if err != nil || !ok {
		t.Fatalf("first insert should win: ok=%v err=%v", ok, err)
	}
	ok, err = store.PutIfAbsent(ctx, result.Fingerprint, models.DeckResult{Fingerprint: result.Fingerprint}, time.Minute)
	if err != nil || ok {
		t.Fatalf("second insert must lose: ok=%v err=%v", ok, err)
	}

	entry, found, err := store.Get(ctx, result.Fingerprint)
	if err != nil || !found {
		t.Fatalf("expected entry: found=%v err=%v", found, err)
	}
	if entry.Result.AssembledText != result.AssembledText {
		t.Fatalf("round trip mismatch: %+v", entry.Result)
	}

	if _, found, _ := store.Get(ctx, "missing"); found {
		t.Fatalf("unexpected hit for missing fingerprint")
	}
}
