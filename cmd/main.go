package main

import (
	"fmt"
	"log"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/harborbank/harbor"
	"github.com/harborbank/harbor/config"
	"github.com/harborbank/harbor/database"
	"github.com/harborbank/harbor/internal/notification"
)

// Harbor represents the CLI application, encapsulating the root Cobra command.
type Harbor struct {
	cmd *cobra.Command
}

// harborInstance holds the running service and its configuration, shared by
// every subcommand.
type harborInstance struct {
	harbor *harbor.Harbor
	cnf    *config.Configuration
}

// recoverPanic handles any panics during program execution and logs the error.
func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun loads the configuration and initializes the service instance before
// any subcommand executes.
func preRun(app *harborInstance) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := config.InitConfig("harbor.json")
		if err != nil {
			log.Fatal("error loading config", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}

		newHarbor, err := setupHarbor(cnf)
		if err != nil {
			notification.NotifyError(err)
			log.Fatal(err)
		}

		app.harbor = newHarbor
		app.cnf = cnf

		return nil
	}
}

// setupHarbor connects the data source and builds the service from it.
func setupHarbor(cfg *config.Configuration) (*harbor.Harbor, error) {
	db, err := database.NewDataSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("error getting datasource: %v", err)
	}

	newHarbor, err := harbor.NewHarbor(db)
	if err != nil {
		return nil, fmt.Errorf("error creating harbor: %v", err)
	}
	return newHarbor, nil
}

// NewCLI creates the command-line interface for the application.
func NewCLI() *Harbor {
	var configFile string
	h := &harborInstance{}

	var rootCmd = &cobra.Command{
		Use:   "harbor",
		Short: "Retail banking service",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./harbor.json", "Configuration file for harbor")

	rootCmd.PersistentPreRunE = preRun(h)

	rootCmd.AddCommand(serverCommands(h))
	rootCmd.AddCommand(workerCommands(h))
	rootCmd.AddCommand(migrateCommands(h))

	return &Harbor{cmd: rootCmd}
}

// executeCLI runs the root command, handling any errors that occur during execution.
func (w Harbor) executeCLI() {
	if err := w.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	defer recoverPanic()

	cli := NewCLI()
	cli.executeCLI()
}
