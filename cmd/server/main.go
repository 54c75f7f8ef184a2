package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"

	"github.com/workdeck/workdeck/internal/server"
	"github.com/workdeck/workdeck/internal/server/config"
)

func main() {

	// optional .env for local development
	_ = godotenv.Load()

	ctx := context.Background()
	cfg := config.LoadConfig()

	app, err := server.NewApp(ctx, cfg)
	if err != nil {
		log.Printf("%v", err)
		return
	}

	app.Run(ctx)
}
