package main

import (
	"context"
	"time"

	"github.com/niksmo/repair-shop/config"
	"github.com/niksmo/repair-shop/internal/app"
	"github.com/niksmo/repair-shop/pkg/sigctx"
)

const closeTimeout = 5 * time.Second

func main() {
	sigCtx, closeApp := sigctx.NotifyContext()
	defer closeApp()

	cfg := config.Load()
	cfg.Print()

	repairShop := app.New(sigCtx, cfg)

	repairShop.Run(closeApp)

	<-sigCtx.Done()
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	repairShop.Close(ctx)
}
