package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/quivermath/quiver/internal/version"
)

// VersionCmd represents the version command
var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show Quiver version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("quiver %s\n", version.Version)
		fmt.Printf("Platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		fmt.Printf("Go: %s\n", runtime.Version())
	},
}
