//go:build lambda

package main

import (
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"team-optimizer/internal/catalog"
	"team-optimizer/internal/config"
	"team-optimizer/internal/engine"
	"team-optimizer/internal/logging"
)

// The Lambda build reads configuration from TEAMOPT_* variables only and
// always uses the embedded catalog.
func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	log, _, err := logging.New(logging.Config{Level: cfg.Log.Level, Format: "json"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	cat, err := catalog.Default()
	if err != nil {
		log.Error("load catalog", "error", err)
		os.Exit(1)
	}
	lambda.Start(functionURLHandler(engine.New(cat, cfg, engine.WithLogger(log))))
}
