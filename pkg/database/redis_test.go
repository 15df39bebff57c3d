package database

import (
	"strings"
	"testing"
	"time"

	"quiz_platform_backend/internal/config"
)

func TestInitRedisReportsUnreachableAddress(t *testing.T) {
	cfg := &config.RedisConfig{Host: "127.0.0.1", Port: 1, DialTimeoutSeconds: 1}

	start := time.Now()
	rdb, err := InitRedis(cfg)
	if err == nil {
		rdb.Close()
		t.Fatal("expected an error for a closed port")
	}
	if !strings.Contains(err.Error(), "127.0.0.1:1") {
		t.Fatalf("error should name the address: %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatal("ping did not honour the dial timeout")
	}
}
