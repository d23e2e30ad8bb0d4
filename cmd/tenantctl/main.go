// Command tenantctl provisions tenants and rotates their API keys.
//
//	tenantctl --config env.yaml create --name acme --config-json '{"plan":"pro"}'
//	tenantctl --config env.yaml rotate --id 6f1c...
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(openService).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
