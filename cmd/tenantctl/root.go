package main

import (
	"context"
	"fmt"
	"time"

	"sentinel/config"
	"sentinel/internals/modules/tenant"
	"sentinel/internals/security"
	"sentinel/pkg/db"
	"sentinel/pkg/logger"

	"github.com/spf13/cobra"
)

// serviceOpener builds the tenant service from the config file. The returned
// func releases whatever it opened.
type serviceOpener func(ctx context.Context, cfgPath string) (*tenant.Service, func(), error)

func newRootCmd(open serviceOpener) *cobra.Command {
	var (
		cfgPath string
		svc     *tenant.Service
		release func()
	)

	root := &cobra.Command{
		Use:   "tenantctl",
		Short: "Provision sentinel tenants and manage their API keys",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			svc, release, err = open(cmd.Context(), cfgPath)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if release != nil {
				release()
			}
		},
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "env.yaml", "path to the service config file")

	service := func() *tenant.Service { return svc }
	root.AddCommand(newCreateCmd(service), newRotateCmd(service))
	return root
}

func openService(ctx context.Context, cfgPath string) (*tenant.Service, func(), error) {
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return nil, nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	log := logger.Nop()
	pool, err := db.ConnectToDB(ctx, cfg.DB, log)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}

	cipher, err := security.NewCipher(cfg.Security.EncryptionKey)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("encryption key: %w", err)
	}

	svc := tenant.NewService(tenant.NewRepository(pool, log), cipher, security.NewTokenService(cfg.Auth), log)
	return svc, pool.Close, nil
}
