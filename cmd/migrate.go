package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/harborbank/harbor/config"
	"github.com/harborbank/harbor/database"
)

// migrateCommands creates the command for applying the schema. The schema
// statements are idempotent, so running this repeatedly is safe.
func migrateCommands(_ *harborInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "apply harbor schema",
		Run: func(cmd *cobra.Command, args []string) {
			cnf, err := config.Fetch()
			if err != nil {
				log.Printf("Error fetching config: %v", err)
				return
			}

			db, err := database.ConnectDB(cnf.DataSource.Dns)
			if err != nil {
				log.Printf("Error connecting to database: %v", err)
				return
			}

			if err := database.Migrate(db); err != nil {
				log.Printf("Error migrating: %v", err)
				return
			}
			fmt.Println("Schema applied!")
		},
	}

	return cmd
}
