package main

import (
	"tripreport/cmd/handlers"
	"tripreport/internal/logger"
)

func main() {
	logger.Init()
	handlers.Execute()
}
