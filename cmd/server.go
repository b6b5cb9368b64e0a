package main

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/harborbank/harbor/api"
	"github.com/harborbank/harbor/config"
)

func initializeRouter(h *harborInstance) *gin.Engine {
	return api.NewAPI(h.harbor).Router()
}

func startServer(router *gin.Engine, cfg config.ServerConfig) error {
	log.Printf("Starting server on http://localhost:%s", cfg.Port)
	return router.Run(":" + cfg.Port)
}

// serverCommands returns the Cobra command responsible for starting the HTTP server.
func serverCommands(h *harborInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "start harbor server",
		Run: func(cmd *cobra.Command, args []string) {
			router := initializeRouter(h)

			cfg, err := config.Fetch()
			if err != nil {
				log.Fatal(err)
			}

			if err := startServer(router, cfg.Server); err != nil {
				log.Fatal(err)
			}
		},
	}

	return cmd
}
