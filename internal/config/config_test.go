package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("UPLOAD_URL_TTL", "not-a-duration")
	t.Setenv("ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("SEND_BURST", "3")

	cfg := Load()

	assert.Equal(t, "9090", cfg.ServerPort)
	assert.Equal(t, 5*time.Minute, cfg.UploadURLTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 3, cfg.SendBurst)
	assert.Equal(t, 60, cfg.SendRatePerMinute)
}

func TestStorageEnabled(t *testing.T) {
	cfg := &Config{StorageEndpoint: "https://r2.example", StorageAccessKey: "k"}
	assert.False(t, cfg.StorageEnabled())

	cfg.StorageSecretKey = "s"
	assert.True(t, cfg.StorageEnabled())
}

func TestIsProduction(t *testing.T) {
	t.Setenv("ENV", "Production")
	assert.True(t, Load().IsProduction())
}
