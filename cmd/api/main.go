package main

import (
	"context"
	"log"
	"os"

	"github.com/viralforge/storefront/internal/app/bootstrap"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/default.yaml"
	}
	r, err := bootstrap.NewRuntime(context.Background(), configPath)
	if err != nil {
		log.Fatal(err)
	}
	if err := r.RunAPI(context.Background()); err != nil {
		log.Fatal(err)
	}
}
