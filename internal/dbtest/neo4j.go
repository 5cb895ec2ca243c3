package dbtest

import (
	"context"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/testcontainers/testcontainers-go"
	neo4jtest "github.com/testcontainers/testcontainers-go/modules/neo4j"
)

// Neo4jImage is the image of the Neo4j container. Catalogs live in their own
// named databases, which only the enterprise edition can create.
//
// See <https://hub.docker.com/_/neo4j> for more images.
const Neo4jImage = "docker.io/neo4j:5-enterprise"

// Port of the HTTP endpoint serving Neo4j Browser.
const neo4jHTTP = nat.Port("7474/tcp")

// A Neo4j is a disposable Neo4j server reserved for a single test.
type Neo4j struct {
	// Driver is connected to the server and closed during test cleanup.
	Driver neo4j.DriverWithContext
	// Database is a fresh database name, unique to the test. It does not exist
	// until the test creates it.
	Database string
}

// SetupNeo4j spins up a Neo4j container for the calling test. The test is
// skipped in short mode, and otherwise marked parallel.
//
// Failed tests keep their container alive for inspection when the Inspect flag
// is set.
func SetupNeo4j(tb testing.TB) Neo4j {
	tb.Helper()

	if testing.Short() {
		tb.Skip("Skipping container-based test in short mode...")
	}
	if t, ok := tb.(*testing.T); ok {
		t.Parallel()
	}

	ctx := context.Background()

	container, err := neo4jtest.Run(ctx, Neo4jImage, containerOptions(tb,
		neo4jtest.WithoutAuthentication(),
		neo4jtest.WithAcceptCommercialLicenseAgreement(),
	)...)
	tb.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			tb.Error("Encountered an error during cleanup; terminate container:", err)
		}
	})
	if err != nil {
		tb.Fatal("Failed to run neo4j container:", err)
	}

	boltURL, err := container.BoltUrl(ctx)
	if err != nil {
		tb.Fatal("Failed to get bolt url:", err)
	}
	httpEndpoint, err := container.PortEndpoint(ctx, neo4jHTTP, "http")
	if err != nil {
		tb.Fatal("Failed to get http endpoint:", err)
	}

	driver, err := neo4j.NewDriverWithContext(boltURL, neo4j.NoAuth())
	if err != nil {
		tb.Fatal("Failed to open neo4j driver:", err)
	}
	tb.Cleanup(func() {
		if err := driver.Close(ctx); err != nil {
			tb.Error("Encountered an error during cleanup while closing the neo4j driver:", err)
		}
	})

	if err := verifyConnectivity(tb, ctx, driver); err != nil {
		tb.Fatalf("Failed to establish a connection with the remote neo4j server: %v", err)
	}

	// Cleanups run in reverse order, so this one blocks before the container is
	// terminated.
	tb.Cleanup(func() {
		if tb.Failed() && *Inspect {
			tb.Logf("Container %v is still running for inspection (Ctrl+C to terminate)...", container.GetContainerID())
			tb.Logf("HTTP URL = %s/browser?preselectAuthMethod=%s&dbms=%s", httpEndpoint, url.QueryEscape("[NO_AUTH]"), url.QueryEscape(boltURL))
			waitForInspection()
		}
	})

	return Neo4j{Driver: driver, Database: "test-" + uuid.NewString()}
}

// verifyConnectivity retries a few times, because the container may report
// ready before Bolt accepts connections.
func verifyConnectivity(tb testing.TB, ctx context.Context, driver neo4j.DriverWithContext) error {
	tb.Helper()

	const attempts = 6
	const pause = 100 * time.Millisecond

	var err error
	for r := range attempts {
		if r > 0 {
			tb.Logf("Retrying [%d/%d] connection to neo4j: %v", r, attempts-1, err)
			select {
			case <-time.After(pause):
			case <-ctx.Done():
				return fmt.Errorf("retry pause interrupted: %w", ctx.Err())
			}
		}
		if err = driver.VerifyConnectivity(ctx); err == nil {
			return nil
		}
	}
	return err
}
