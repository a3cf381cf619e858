package main

import (
	"log"

	"github.com/podusowski/walkers/internal/app"
	"github.com/podusowski/walkers/pkg/config"
)

func main() {
	cfg, err := config.New()
	if err != nil {
		log.Fatalln("failed to load config: ", err)
	}

	app.Run(cfg)
}
