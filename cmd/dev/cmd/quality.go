package cmd

import (
	"fmt"
	"log/slog"

	"github.com/gophertribe/devtool/test"
	"github.com/spf13/cobra"
)

func TestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Run unit tests",
		Long: `Run the unit tests of every package.

They need no hardware: the sensors, the bus controller and the LED ports are
simulated, so this is what CI runs.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			slog.Info("running cube unit tests")
			if err := test.Test(); err != nil {
				return fmt.Errorf("cube unit tests failed: %w", err)
			}
			return nil
		},
	}
}

func LintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lint",
		Short: "Run linters",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := test.Lint(); err != nil {
				return fmt.Errorf("lint failed: %w", err)
			}
			return nil
		},
	}
}

func IntegrationTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "integration-test",
		Short: "Run tests against attached hardware",
		Long: `Run the integration tests.

They expect the sensors on a real bus, either the board's own I2C controller or
an MCP2221 bridge plugged in over USB (see: cube usb detect).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			slog.Info("running cube integration tests, sensors must be attached")
			if err := test.Integ(); err != nil {
				return fmt.Errorf("cube integration tests failed: %w", err)
			}
			return nil
		},
	}
}
