package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"
)

// SimCmd runs the built binary against the simulated bus and display so the
// control loop can be watched without hardware.
func SimCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sim",
		Short: "Run the cube on simulated sensors",
		Long: `Run dist/cube with the sim bus and the sim display.

Examples:
  # red card, two swipes
  dev sim --color red --gestures up,left

  # faster loop for demos
  dev sim --fast`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(binary); err != nil {
				return fmt.Errorf("%s not built, run dev build first: %w", binary, err)
			}
			color, err := cmd.Flags().GetString("color")
			if err != nil {
				return fmt.Errorf("could not get color flag: %w", err)
			}
			gestures, err := cmd.Flags().GetStringSlice("gestures")
			if err != nil {
				return fmt.Errorf("could not get gestures flag: %w", err)
			}
			fast, err := cmd.Flags().GetBool("fast")
			if err != nil {
				return fmt.Errorf("could not get fast flag: %w", err)
			}

			env := append(os.Environ(),
				"CUBE_BUS_ADAPTER=sim",
				"CUBE_DISPLAY_BACKEND=sim",
				"CUBE_SIM_COLOR="+color,
				"CUBE_SIM_GESTURES="+strings.Join(gestures, ","),
			)
			if fast {
				env = append(env,
					"CUBE_LOOP_COLOR_SETTLE=100ms",
					"CUBE_LOOP_GESTURE_POLL=200ms",
					"CUBE_LOOP_AFTER_DETECT=100ms",
					"CUBE_LOOP_AFTER_ANIMATION=100ms",
					"CUBE_DISPLAY_HOLD=50ms",
				)
			}
			runArgs := []string{"run"}
			if debug, _ := cmd.Flags().GetBool("debug"); debug {
				runArgs = append([]string{"--verbose"}, runArgs...)
			}
			slog.Info("starting simulated cube", "color", color, "gestures", gestures)
			run := exec.CommandContext(cmd.Context(), binary, runArgs...)
			run.Env = env
			run.Stdout = os.Stdout
			run.Stderr = os.Stderr
			if err := run.Run(); err != nil {
				return fmt.Errorf("simulated cube failed: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().String("color", "red", "color the simulated sensor reports")
	cmd.Flags().StringSlice("gestures", []string{"up", "down", "right", "left"}, "swipes queued on the simulated gesture sensor")
	cmd.Flags().Bool("fast", false, "shorten every loop delay")
	return cmd
}
