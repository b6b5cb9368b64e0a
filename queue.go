package harbor

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"log"

	"github.com/hibiken/asynq"

	"github.com/harborbank/harbor/config"
	redis_db "github.com/harborbank/harbor/internal/redis-db"
	"github.com/harborbank/harbor/model"
)

// Queue hands transfers to the asynq workers.
type Queue struct {
	Client    *asynq.Client
	Inspector *asynq.Inspector
}

// TransferPayload is the task body for a queued transfer.
type TransferPayload struct {
	Data model.Transfer
}

func NewQueue(conf *config.Configuration) *Queue {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns, conf.Redis.SkipTLSVerify)
	if err != nil {
		log.Fatalf("Error parsing Redis URL: %v", err)
	}

	queueOptions := asynq.RedisClientOpt{Addr: redisOption.Addr, Password: redisOption.Password, DB: redisOption.DB, TLSConfig: redisOption.TLSConfig}
	client := asynq.NewClient(queueOptions)
	inspector := asynq.NewInspector(queueOptions)
	return &Queue{
		Client:    client,
		Inspector: inspector,
	}
}

// Enqueue routes a transfer onto one of the hashed transfer queues. All
// transfers from the same source account land on the same queue, so work on
// one account is processed serially.
func (q *Queue) Enqueue(ctx context.Context, transfer *model.Transfer) error {
	payload, err := json.Marshal(TransferPayload{Data: *transfer})
	if err != nil {
		return err
	}

	cnf, err := config.Fetch()
	if err != nil {
		return err
	}

	queueName := transferQueueName(transfer.FromAccountID, cnf.Queue.TransferQueue, cnf.Queue.NumberOfQueues)
	task := asynq.NewTask(queueName, payload, asynq.TaskID(transfer.Reference), asynq.Queue(queueName))

	info, err := q.Client.EnqueueContext(ctx, task, asynq.MaxRetry(cnf.Queue.MaxRetryAttempts))
	if err != nil {
		log.Println(err, info)
		return err
	}
	log.Printf(" [*] Successfully enqueued transfer: %+v", transfer.Reference)
	return nil
}

func transferQueueName(accountID, prefix string, queues int) string {
	hasher := fnv.New32a()
	_, _ = hasher.Write([]byte(accountID))
	index := int(hasher.Sum32()) % queues
	if index < 0 {
		index += queues
	}
	return fmt.Sprintf("%s_%d", prefix, index+1)
}
