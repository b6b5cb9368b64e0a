package harbor

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/harborbank/harbor/config"
	"github.com/harborbank/harbor/database"
	redis_db "github.com/harborbank/harbor/internal/redis-db"
)

// Harbor is the service layer. Everything the API and workers do goes
// through it.
type Harbor struct {
	queue      *Queue
	redis      redis.UniversalClient
	datasource database.IDataSource
	sessions   *SessionCache
}

func NewHarbor(db database.IDataSource) (*Harbor, error) {
	configuration, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	redisClient, err := redis_db.NewRedisClient([]string{fmt.Sprintf("redis://%s", configuration.Redis.Dns)}, configuration.Redis.SkipTLSVerify)
	if err != nil {
		return nil, err
	}
	sessions, err := NewSessionCache(configuration.SessionTTL())
	if err != nil {
		return nil, err
	}
	newQueue := NewQueue(configuration)
	return &Harbor{
		datasource: db,
		queue:      newQueue,
		redis:      redisClient.Client(),
		sessions:   sessions,
	}, nil
}

// Sessions exposes the session cache to the API middleware.
func (h *Harbor) Sessions() *SessionCache {
	return h.sessions
}
