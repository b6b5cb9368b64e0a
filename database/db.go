package database

import (
	"database/sql"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/harborbank/harbor/cache"
	"github.com/harborbank/harbor/config"
)

// Declare a package-level variable to hold the singleton instance.
// Ensure the instance is not accessible outside the package.
var instance *Datasource
var once sync.Once

type Datasource struct {
	Conn  *sql.DB
	Cache cache.Cache
}

func NewDataSource(configuration *config.Configuration) (IDataSource, error) {
	con, err := GetDBConnection(configuration)
	if err != nil {
		return nil, err
	}
	return con, nil
}

// GetDBConnection provides a global access point to the instance and initializes it if it's not already.
func GetDBConnection(configuration *config.Configuration) (*Datasource, error) {
	var err error
	once.Do(func() {
		con, errConn := ConnectDB(configuration.DataSource.Dns)
		if errConn != nil {
			err = errConn
			return
		}
		instance = &Datasource{Conn: con, Cache: nil}
	})
	if err != nil {
		return nil, err
	}
	return instance, nil
}

func ConnectDB(dns string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dns)
	if err != nil {
		return nil, err
	}
	err = db.Ping()
	if err != nil {
		log.Printf("database connection error: %v", err)
		return nil, err
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates the schema. Idempotent; safe to run on every boot.
func Migrate(db *sql.DB) error {
	migrations := []func(*sql.DB) error{
		createIdentityTable,
		createAccountTable,
		createTransactionTable,
		createLoanTable,
		createAuditLogTable,
	}
	for _, m := range migrations {
		if err := m(db); err != nil {
			return err
		}
	}
	return nil
}

func createIdentityTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS identities (
			id SERIAL PRIMARY KEY,
			identity_id TEXT NOT NULL UNIQUE,
			first_name TEXT NOT NULL,
			last_name TEXT NOT NULL,
			email_address TEXT NOT NULL UNIQUE,
			phone_number TEXT,
			role TEXT NOT NULL CHECK (role IN ('customer', 'admin')),
			approval_status TEXT NOT NULL CHECK (approval_status IN ('PENDING', 'APPROVED', 'REJECTED')),
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			meta_data JSONB
		)
	`)
	if err != nil {
		log.Printf("error creating identities table: %v", err)
	}
	return err
}

func createAccountTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS accounts (
			id SERIAL PRIMARY KEY,
			account_id TEXT NOT NULL UNIQUE,
			identity_id TEXT NOT NULL REFERENCES identities(identity_id),
			name TEXT NOT NULL,
			number TEXT NOT NULL UNIQUE,
			currency TEXT NOT NULL,
			balance NUMERIC(20, 4) NOT NULL DEFAULT 0 CHECK (balance >= 0),
			status TEXT NOT NULL CHECK (status IN ('PENDING', 'ACTIVE', 'FROZEN', 'CLOSED')),
			version BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			meta_data JSONB
		)
	`)
	if err != nil {
		log.Printf("error creating accounts table: %v", err)
	}
	return err
}

func createTransactionTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS transactions (
			id SERIAL PRIMARY KEY,
			transaction_id TEXT NOT NULL UNIQUE,
			parent_transaction TEXT,
			reference TEXT NOT NULL UNIQUE,
			type TEXT NOT NULL,
			status TEXT NOT NULL,
			amount NUMERIC(20, 4) NOT NULL,
			from_account TEXT,
			to_account TEXT,
			identity_id TEXT NOT NULL REFERENCES identities(identity_id),
			description TEXT,
			balance_before NUMERIC(20, 4),
			balance_after NUMERIC(20, 4),
			hash TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			meta_data JSONB
		)
	`)
	if err != nil {
		log.Printf("error creating transactions table: %v", err)
	}
	return err
}

func createLoanTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS loans (
			id SERIAL PRIMARY KEY,
			loan_id TEXT NOT NULL UNIQUE,
			identity_id TEXT NOT NULL REFERENCES identities(identity_id),
			account_id TEXT NOT NULL REFERENCES accounts(account_id),
			principal NUMERIC(20, 4) NOT NULL,
			annual_rate NUMERIC(8, 4) NOT NULL,
			term_months INT NOT NULL,
			monthly_payment NUMERIC(20, 4) NOT NULL,
			status TEXT NOT NULL CHECK (status IN ('PENDING', 'APPROVED', 'REJECTED', 'CLOSED')),
			purpose TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			meta_data JSONB
		)
	`)
	if err != nil {
		log.Printf("error creating loans table: %v", err)
	}
	return err
}

func createAuditLogTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS audit_logs (
			id SERIAL PRIMARY KEY,
			audit_id TEXT NOT NULL UNIQUE,
			actor_id TEXT NOT NULL,
			action TEXT NOT NULL,
			target_id TEXT,
			details JSONB,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		log.Printf("error creating audit_logs table: %v", err)
	}
	return err
}

// GenerateUUIDWithSuffix mirrors model.GenerateUUIDWithSuffix for callers that
// only import the database package.
func GenerateUUIDWithSuffix(module string) string {
	return fmt.Sprintf("%s_%s", module, uuid.New().String())
}
