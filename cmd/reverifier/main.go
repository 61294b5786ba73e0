package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/openrounds/roundsx/app/reverifier"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	defer cancel()

	app := reverifier.Initialize(ctx)

	app.Start(ctx)
}
