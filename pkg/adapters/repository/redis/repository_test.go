package redis

import (
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	redisClient "github.com/gomodule/redigo/redis"
	"github.com/wadjakorntonsri/portfolio-views/pkg/adapters/repository/storetest"
	"github.com/wadjakorntonsri/portfolio-views/pkg/ports"
)

// Needs a reachable server, e.g. TEST_REDIS_URL=redis://localhost:6379/15
func TestRedisRepository(t *testing.T) {
	rawURL := os.Getenv("TEST_REDIS_URL")
	if rawURL == "" {
		t.Skip("TEST_REDIS_URL not set")
	}

	storetest.Run(t, func(t *testing.T) ports.VisitorStore {
		// A unique prefix per test keeps runs isolated without FLUSHDB.
		prefix := fmt.Sprintf("viewstest:%s:%d:", strings.ReplaceAll(t.Name(), "/", "_"), time.Now().UnixNano())
		repo, err := NewRedisRepository(rawURL, prefix)
		if err != nil {
			t.Fatalf("Failed to connect: %v", err)
		}
		t.Cleanup(func() { cleanup(t, rawURL, prefix) })
		return repo
	})
}

func cleanup(t *testing.T, rawURL, prefix string) {
	repo, err := NewRedisRepository(rawURL, prefix)
	if err != nil {
		return
	}
	defer repo.Close()

	conn := repo.pool.Get()
	defer conn.Close()
	ips, _ := redisClient.Strings(conn.Do("SMEMBERS", repo.setKey()))
	for _, ip := range ips {
		conn.Do("DEL", repo.visitorKey(ip))
	}
	conn.Do("DEL", repo.setKey(), repo.totalKey(), repo.lastVisitKey())
}

func TestKeyLayout(t *testing.T) {
	repo := &RedisRepository{prefix: DefaultPrefix}
	if got := repo.visitorKey("1.2.3.4"); got != "views:visitor:1.2.3.4" {
		t.Errorf("visitorKey = %q", got)
	}
	if got := repo.totalKey(); got != "views:total_views" {
		t.Errorf("totalKey = %q", got)
	}
}
