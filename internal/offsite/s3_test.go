package offsite

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/mariaback/internal/config"
)

func TestObjectKey(t *testing.T) {
	key := ObjectKey("db1.example.com", "/var/backups/mariadb/db1.example.com/shop-18-01-2026-1.sql.gz")
	assert.Equal(t, "db1.example.com/shop-18-01-2026-1.sql.gz", key)
}

func TestNewUploader_DisabledWithoutBucket(t *testing.T) {
	assert.Nil(t, NewUploader(zerolog.Nop(), config.Offsite{}))
}

func TestNewUploader_Enabled(t *testing.T) {
	u := NewUploader(zerolog.Nop(), config.Offsite{
		Endpoint:  "http://127.0.0.1:9000",
		Region:    "us-east-1",
		Bucket:    "backups",
		AccessKey: "minio",
		SecretKey: "minio123",
		PathStyle: true,
	})
	require.NotNil(t, u)
}
