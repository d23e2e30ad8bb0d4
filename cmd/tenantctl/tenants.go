package main

import (
	"encoding/json"
	"fmt"

	"sentinel/internals/modules/tenant"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newCreateCmd(service func() *tenant.Service) *cobra.Command {
	var name, rawCfg string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a tenant and print its one-time API key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var tenantCfg map[string]any
			if err := json.Unmarshal([]byte(rawCfg), &tenantCfg); err != nil {
				return fmt.Errorf("config-json: %w", err)
			}

			t, key, err := service().Create(cmd.Context(), name, tenantCfg)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "tenant_id: %s\napi_key:   %s\n", t.ID, key)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "tenant name")
	cmd.Flags().StringVar(&rawCfg, "config-json", "{}", "tenant configuration as a JSON object")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newRotateCmd(service func() *tenant.Service) *cobra.Command {
	var rawID string

	cmd := &cobra.Command{
		Use:   "rotate",
		Short: "Replace a tenant's API key, the old one stops working",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(rawID)
			if err != nil {
				return fmt.Errorf("id: %w", err)
			}

			key, err := service().RotateAPIKey(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "api_key: %s\n", key)
			return nil
		},
	}
	cmd.Flags().StringVar(&rawID, "id", "", "tenant id")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}
