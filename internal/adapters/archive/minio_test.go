package archive_test

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/DanielPopoola/etterlatte-settlement/internal/adapters/archive"
	"github.com/DanielPopoola/etterlatte-settlement/internal/config"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestMinioArchive_Store(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping minio integration test in short mode")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "minio/minio:RELEASE.2024-06-13T22-53-53Z",
			ExposedPorts: []string{"9000/tcp"},
			Cmd:          []string{"server", "/data"},
			Env: map[string]string{
				"MINIO_ROOT_USER":     "minioadmin",
				"MINIO_ROOT_PASSWORD": "minioadmin",
			},
			WaitingFor: wait.ForHTTP("/minio/health/live").WithPort("9000/tcp").
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	defer func() { _ = container.Terminate(ctx) }()

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "9000")
	require.NoError(t, err)

	client, err := archive.NewMinioClient(config.MinioConfig{
		Endpoint:  fmt.Sprintf("%s:%s", host, port.Port()),
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
	})
	require.NoError(t, err)

	a := archive.NewMinioArchive(client, "avstemming")
	require.NoError(t, a.EnsureBucket(ctx))
	require.NoError(t, a.EnsureBucket(ctx), "second call finds the bucket")

	name := "GRENSESNITT/2024-03-15/run-1-001.xml"
	require.NoError(t, a.Store(ctx, name, []byte("<avstemmingsdata/>")))

	obj, err := client.GetObject(ctx, "avstemming", name, minio.GetObjectOptions{})
	require.NoError(t, err)
	defer obj.Close()
	body, err := io.ReadAll(obj)
	require.NoError(t, err)
	assert.Equal(t, "<avstemmingsdata/>", string(body))
}

func TestDiscard(t *testing.T) {
	assert.NoError(t, archive.Discard{}.Store(context.Background(), "x", nil))
}
