// Command automation-client connects a set of demo handlers to the
// automation platform.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vinayprograms/automationkit/client"
	"github.com/vinayprograms/automationkit/config"
	"github.com/vinayprograms/automationkit/logging"
	"github.com/vinayprograms/automationkit/registry"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "automation-client",
		Short:         "Run command and event handlers for the automation platform",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to automation.toml (default: ./automation.toml, then ~/.config/automation/automation.toml)")

	root.AddCommand(runCmd())
	root.AddCommand(registrationCmd())
	root.AddCommand(versionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	cfg, _, err := config.Load()
	return cfg, err
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Connect to the platform and handle requests until terminated",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			reg, err := demoRegistry()
			if err != nil {
				return err
			}

			log := logging.New()
			log.SetLevel(logging.ParseLevel(cfg.Logging.Level))
			log.SetJSON(cfg.Logging.JSON)

			c, err := client.New(cfg, reg, client.WithLogger(log))
			if err != nil {
				return err
			}
			c.RegisterShutdownHooks()
			c.Shutdown().HandleSignals()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go func() {
				<-c.Shutdown().Done()
				cancel()
			}()

			return c.Run(ctx)
		},
	}
}

func registrationCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "registration",
		Short: "Print the registration payload announced to the platform",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			reg, err := demoRegistry()
			if err != nil {
				return err
			}
			payload, err := reg.Payload(cfg.Name, cfg.Version, cfg.Workspaces)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(payload))
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the client name and version",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", cfg.Name, cfg.Version)
			return nil
		},
	}
}

func demoRegistry() (*registry.Registry, error) {
	reg := registry.New()

	hello, err := helloWorld()
	if err != nil {
		return nil, err
	}
	if err := reg.RegisterCommand(hello); err != nil {
		return nil, err
	}

	push, err := onPush()
	if err != nil {
		return nil, err
	}
	if err := reg.RegisterEvent(push); err != nil {
		return nil, err
	}
	return reg, nil
}
