package main

import (
	"flag"
	"log"
	"strings"

	"github.com/joho/godotenv"

	"github.com/sonique-audio/sonique/internal/service"
	"github.com/sonique-audio/sonique/internal/storage"
)

var (
	port           int
	dbPath         string
	workers        int
	allowedOrigins string
)

func init() {
	flag.IntVar(&port, "port", 8080, "HTTP server port")
	flag.StringVar(&dbPath, "db", "", "Path to SQLite database (env: SONIQUE_DB_PATH)")
	flag.IntVar(&workers, "workers", 0, "Concurrent scoring workers (0 = number of CPUs)")
	flag.StringVar(&allowedOrigins, "origins", "*", "Comma-separated list of allowed CORS origins (use * for all)")
}

func main() {
	_ = godotenv.Load()
	flag.Parse()

	if dbPath == "" {
		dbPath = storage.DefaultPath()
	}

	var origins []string
	if allowedOrigins == "*" {
		origins = []string{"*"}
	} else {
		origins = strings.Split(allowedOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
	}

	svc, err := service.New(
		service.WithDBPath(dbPath),
		service.WithWorkers(workers),
	)
	if err != nil {
		log.Fatalf("Failed to create service: %v", err)
	}
	defer svc.Close()

	config := &ServerConfig{
		Port:           port,
		DBPath:         dbPath,
		AllowedOrigins: origins,
	}

	server := NewServer(svc, config)
	if err := server.Start(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
