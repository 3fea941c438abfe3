package main

import (
	"context"
	"flag"
	"log"

	"github.com/singlebase/singlebase-go/config"
	"github.com/singlebase/singlebase-go/internal/cli"
)

func main() {
	configFile := flag.String("config", "", "path to a JSON config file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("%v", err)
	}

	app, err := cli.NewApp(cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	app.Run(context.Background())
}
