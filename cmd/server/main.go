package main

import (
	"context"
	"log"

	"github.com/dmitrijs2005/taskcamp/internal/server"
	"github.com/dmitrijs2005/taskcamp/internal/server/config"
	"github.com/joho/godotenv"
)

func main() {

	// .env is optional; real environment variables take precedence
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	ctx := context.Background()
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	app, err := server.NewApp(ctx, cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer app.Close()

	if err := app.Run(ctx); err != nil {
		log.Printf("%v", err)
	}
}
