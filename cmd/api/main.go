package main

import (
	"os"
)

//go:generate go run github.com/swaggo/swag/cmd/swag@v1.16.6 init -g main.go -d ./,../../internal/handlers,../../internal/models,../../internal/service -o ../../docs

// @title Proposal Review API
// @version 1.0
// @description Assignment and reputation engine for proposal review: reviewers request work, complete reviews and peer reviews, and earn reputation points.

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	if err := rootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
