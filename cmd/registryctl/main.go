package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jacksonlee411/registry-console/internal/bootstrap"
	"github.com/jacksonlee411/registry-console/internal/config"
	"github.com/jacksonlee411/registry-console/internal/logging"
	activitytypes "github.com/jacksonlee411/registry-console/modules/activity/domain/types"
	registryservices "github.com/jacksonlee411/registry-console/modules/registry/services"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app is the state shared by every subcommand once the root pre-run has
// loaded configuration and opened the stores.
type app struct {
	configFile string
	actorEmail string
	cfg        config.Config
	stack      *bootstrap.Stack
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:          "registryctl",
		Short:        "Operate the public-health registries from the command line",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(a.configFile)
			if err != nil {
				return err
			}
			if err := logging.Init(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr()); err != nil {
				return err
			}
			st, err := bootstrap.Open(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			a.cfg, a.stack = cfg, st
			return nil
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if a.stack == nil {
				return nil
			}
			return a.stack.Close(context.Background())
		},
	}
	root.PersistentFlags().StringVarP(&a.configFile, "config", "c", os.Getenv("CONFIG_FILE"), "optional YAML config file")
	root.PersistentFlags().StringVar(&a.actorEmail, "actor", "registryctl@localhost", "email recorded in the activity log")

	root.AddCommand(
		newSeedAccessCmd(a),
		newImportCmd(a),
		newExportCmd(a),
		newDeleteAllCmd(a),
	)
	return root
}

func (a *app) actor() activitytypes.Actor {
	return activitytypes.Actor{UserID: "registryctl", Email: a.actorEmail, Name: "registryctl"}
}

func (a *app) registry(name string) (*registryservices.Service, error) {
	svc, ok := a.stack.Catalog.Get(name)
	if !ok {
		return nil, fmt.Errorf("unknown registry %q (expected one of %v)", name, a.stack.Catalog.Names())
	}
	return svc, nil
}

func newSeedAccessCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seed-access",
		Short: "Create the system roles that are missing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			n, err := a.stack.SeedAccess(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %d roles\n", n)
			return nil
		},
	}
}
