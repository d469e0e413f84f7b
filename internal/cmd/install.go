package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/orangehq/orange/internal/config"
)

var installCmd = &cobra.Command{
	Use:     "install",
	GroupID: GroupOps,
	Short:   "Seed $ORANGE_HOME with a default configuration",
	Args:    cobra.NoArgs,
	RunE:    runInstall,
}

func init() {
	rootCmd.AddCommand(installCmd)
}

func runInstall(cmd *cobra.Command, args []string) error {
	home, err := config.Home()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(home, 0755); err != nil {
		return fmt.Errorf("creating orange home: %w", err)
	}

	configPath := home + "/config.json"
	if _, err := config.Load(configPath); err == nil {
		fmt.Printf("config already exists at %s\n", configPath)
		return nil
	}

	cfg := config.Default(home)
	if err := config.Save(configPath, cfg); err != nil {
		return err
	}

	fmt.Printf("seeded %s\n", configPath)
	fmt.Println("next steps:")
	fmt.Println("  orange project add /path/to/repo")
	fmt.Println("  orange task create my-feature \"implement the thing\"")
	return nil
}
