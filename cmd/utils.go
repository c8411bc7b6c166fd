package cmd

import (
	"context"
	"errors"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
)

func LoadEnvFile() {
	var configPath string

	flag.StringVar(&configPath, "env", "", "path to load env from")
	flag.Parse()

	if configPath == "" {
		log.Printf("no env file specified, using os.Environ only")
		return
	}

	log.Printf("loading env from file %s", configPath)
	err := godotenv.Load(configPath)
	if err != nil {
		log.Fatalf("error loading .env file '%s': %v", configPath, err)
	}
}

// RunServer serves on ln until a signal arrives on quit, then waits up to
// drainTimeout for in-flight requests. It only returns once the drain is over,
// so callers may release whatever the handlers use afterwards.
func RunServer(server *http.Server, ln net.Listener, quit <-chan os.Signal, drainTimeout time.Duration) error {
	done := make(chan error, 1)
	go func() {
		<-quit
		log.Println("Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		defer cancel()

		done <- server.Shutdown(ctx)
	}()

	if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return <-done
}
