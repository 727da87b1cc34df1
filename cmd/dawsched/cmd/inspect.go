package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Print the built-in demo pattern's derived layout",
	RunE:  runInspect,
}

func runInspect(cmd *cobra.Command, args []string) error {
	pattern := buildDemoPattern()
	fmt.Printf("pattern %q: %d steps\n", pattern.ID, pattern.LengthSteps)
	for instrumentID, notes := range pattern.Data {
		fmt.Printf("  %s:\n", instrumentID)
		for _, n := range notes {
			fmt.Printf("    step=%-5.1f pitch=%-3d duration=%-4s velocity=%.2f\n", n.StartStep, n.Pitch, n.DurationSpec, n.Velocity)
		}
	}
	return nil
}
