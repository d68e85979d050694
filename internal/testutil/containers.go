// Package testutil starts throwaway service containers for integration tests.
// Each helper skips the test when the address is not given by environment
// and docker is unavailable or -short is set.
package testutil

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// PostgresDSN returns STEPFLOW_TEST_POSTGRES_DSN or the DSN of a new
// postgres:16 container.
func PostgresDSN(t *testing.T) string {
	t.Helper()
	if dsn := os.Getenv("STEPFLOW_TEST_POSTGRES_DSN"); dsn != "" {
		return dsn
	}
	endpoint := start(t, "postgres:16", "5432/tcp",
		wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		map[string]string{
			"POSTGRES_USER":     "stepflow",
			"POSTGRES_PASSWORD": "stepflow",
			"POSTGRES_DB":       "stepflow_test",
		})
	return fmt.Sprintf("postgres://stepflow:stepflow@%s/stepflow_test?sslmode=disable", endpoint)
}

// MongoURI returns STEPFLOW_TEST_MONGO_URI or the URI of a new mongo:7 container.
func MongoURI(t *testing.T) string {
	t.Helper()
	if uri := os.Getenv("STEPFLOW_TEST_MONGO_URI"); uri != "" {
		return uri
	}
	endpoint := start(t, "mongo:7", "27017/tcp", wait.ForLog("Waiting for connections"), nil)
	return fmt.Sprintf("mongodb://%s", endpoint)
}

// RedisURL returns STEPFLOW_TEST_REDIS_URL or the URL of a new redis:7 container.
func RedisURL(t *testing.T) string {
	t.Helper()
	if url := os.Getenv("STEPFLOW_TEST_REDIS_URL"); url != "" {
		return url
	}
	endpoint := start(t, "redis:7", "6379/tcp", wait.ForLog("Ready to accept connections"), nil)
	return fmt.Sprintf("redis://%s/0", endpoint)
}

func start(t *testing.T, image, port string, ready wait.Strategy, env map[string]string) string {
	t.Helper()
	if testing.Short() {
		t.Skipf("skipping %s container in short mode", image)
	}

	// Give generous timeout in CI environments
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	opts := []testcontainers.ContainerCustomizer{
		testcontainers.WithExposedPorts(port),
		testcontainers.WithWaitStrategy(
			wait.ForAll(
				wait.ForListeningPort(port),
				ready,
			).WithDeadline(2 * time.Minute),
		),
	}
	if env != nil {
		opts = append(opts, testcontainers.WithEnv(env))
	}

	c, err := testcontainers.Run(ctx, image, opts...)
	testcontainers.CleanupContainer(t, c)
	if err != nil {
		t.Skipf("cannot start %s container: %v", image, err)
	}

	endpoint, err := c.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("container endpoint: %v", err)
	}
	return endpoint
}
