package main

import (
	"flag"
	"log"

	"github.com/jt828/go-span-tracing/internal/bootstrap"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	direction := flag.String("direction", "up", "migration direction: up or down")
	steps := flag.Int("steps", 0, "number of steps to migrate (0 = all)")
	flag.Parse()

	cfg, err := bootstrap.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.Database.DSN == "" {
		log.Fatal("database.dsn is required (SPANTRACE_DATABASE_DSN)")
	}

	if err := bootstrap.Migrate(cfg.Database.DSN, *direction, *steps); err != nil {
		log.Fatal(err)
	}

	log.Println("migration completed")
}
