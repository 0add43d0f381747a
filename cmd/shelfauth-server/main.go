// Command shelfauth-server serves the /user authentication routes.
//
// Configuration is read from the environment; see internal/app.Config.
// Without REDIS_ADDR it runs against an in-process miniredis.
package main

import (
	"context"
	"log"

	"github.com/MrEthical07/shelfauth/internal/app"
)

func main() {
	cfg := app.LoadConfig()

	application, err := app.New(context.Background(), cfg)
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}

	if err := application.Run(); err != nil {
		log.Fatalf("application error: %v", err)
	}
}
