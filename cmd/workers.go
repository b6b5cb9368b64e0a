package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/harborbank/harbor"
	"github.com/harborbank/harbor/config"
	"github.com/harborbank/harbor/internal/apierror"
	redis_db "github.com/harborbank/harbor/internal/redis-db"
)

// processTransfer executes a queued transfer. Business rejections (bad input,
// insufficient funds, frozen accounts) are recorded as REJECTED rows and the
// task is acknowledged. A duplicate reference on this path means the transfer
// already landed on an earlier delivery, so it is acknowledged too. Anything
// else is returned so asynq retries it.
func (h *harborInstance) processTransfer(ctx context.Context, t *asynq.Task) error {
	var payload harbor.TransferPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		logrus.Error(err)
		return err
	}
	transfer := payload.Data

	_, err := h.harbor.RecordTransfer(ctx, &transfer)
	if err != nil {
		if apierror.Is(err, apierror.ErrDuplicateReference) {
			logrus.Infof("Transfer %s already recorded, acknowledging redelivery", transfer.Reference)
			return nil
		}
		if harbor.IsBusinessRejection(err) {
			if _, rejectErr := h.harbor.RejectTransfer(ctx, &transfer, err); rejectErr != nil {
				return rejectErr
			}
			logrus.Infof("Transfer %s rejected: %v", transfer.Reference, err)
			return nil
		}

		logrus.Infof("Transfer %s pushed back for retry due to error: %v", transfer.Reference, err)
		return err
	}

	log.Println(" [*] Transfer Processed", transfer.Reference)
	return nil
}

func initializeQueues() map[string]int {
	cfg, err := config.Fetch()
	if err != nil {
		log.Printf("Error fetching config, using defaults: %v", err)
		return nil
	}

	queues := make(map[string]int)
	for i := 1; i <= cfg.Queue.NumberOfQueues; i++ {
		queueName := fmt.Sprintf("%s_%d", cfg.Queue.TransferQueue, i)
		queues[queueName] = 1
	}
	return queues
}

func initializeWorkerServer(conf *config.Configuration, queues map[string]int) (*asynq.Server, error) {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns, conf.Redis.SkipTLSVerify)
	if err != nil {
		return nil, fmt.Errorf("error parsing Redis URL: %v", err)
	}

	return asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:      redisOption.Addr,
			Password:  redisOption.Password,
			DB:        redisOption.DB,
			TLSConfig: redisOption.TLSConfig,
		},
		asynq.Config{
			Concurrency: 1,
			Queues:      queues,
		},
	), nil
}

func initializeTaskHandlers(h *harborInstance, mux *asynq.ServeMux) {
	cfg, err := config.Fetch()
	if err != nil {
		log.Printf("Error fetching config, using defaults: %v", err)
		return
	}

	for i := 1; i <= cfg.Queue.NumberOfQueues; i++ {
		queueName := fmt.Sprintf("%s_%d", cfg.Queue.TransferQueue, i)
		mux.HandleFunc(queueName, h.processTransfer)
	}
}

// workerCommands returns the Cobra command that starts the transfer workers.
func workerCommands(h *harborInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workers",
		Short: "start harbor workers",
		Run: func(cmd *cobra.Command, args []string) {
			conf, err := config.Fetch()
			if err != nil {
				log.Fatal("Error fetching config:", err)
			}

			queues := initializeQueues()

			srv, err := initializeWorkerServer(conf, queues)
			if err != nil {
				log.Fatal("Error initializing worker server:", err)
			}

			mux := asynq.NewServeMux()
			initializeTaskHandlers(h, mux)

			if err := srv.Run(mux); err != nil {
				log.Fatalf("Error running worker server: %v", err)
			}
		},
	}

	return cmd
}
