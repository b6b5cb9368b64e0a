package harbor

import (
	"log"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"

	"github.com/harborbank/harbor/config"
	"github.com/harborbank/harbor/database"
)

func newTestHarbor(t *testing.T) (*Harbor, sqlmock.Sqlmock) {
	t.Helper()
	mr := miniredis.RunT(t)
	config.MockConfig(&config.Configuration{
		ProjectName: "Harbor Test",
		DataSource:  config.DataSourceConfig{Dns: "postgres://localhost"},
		Redis:       config.RedisConfig{Dns: mr.Addr()},
		Queue: config.QueueConfig{
			TransferQueue:    "new:transfer",
			NumberOfQueues:   20,
			MaxRetryAttempts: 3,
		},
		Session:        config.SessionConfig{TTLHours: 24},
		Reconciliation: config.ReconciliationConfig{PendingPaymentWindowHours: 72},
	})

	db, mock, err := sqlmock.New()
	if err != nil {
		log.Printf("an error '%s' was not expected when opening a stub database connection", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})

	h, err := NewHarbor(&database.Datasource{Conn: db})
	if err != nil {
		t.Fatalf("Error creating Harbor instance: %s", err)
	}
	return h, mock
}
