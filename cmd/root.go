package cmd

import (
	"fmt"
	"os"

	"github.com/ferreirogomes/starnotary/config"
	"github.com/spf13/cobra"
)

var compositor = config.NewCompositor()

var rootCmd = &cobra.Command{
	Use:   "starnotary",
	Short: "StarNotary registry",
	Long:  "Registro de estrelas com mercado, trocas e liquidação na Solana",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := compositor.LoadEnv(compositor.CMDLine.EnvFile); err != nil {
			return err
		}
		return compositor.LoadConf(compositor.CMDLine.ConfigPath)
	},
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&compositor.CMDLine.ConfigPath, "config", "c", "./config.yaml", "Path to configuration file")
	flags.StringVar(&compositor.CMDLine.EnvFile, "env-file", ".env", "Path to .env file")
	flags.BoolVarP(&compositor.CMDLine.Debug, "debug", "d", false, "Set debug log level")
}

// Execute roda o comando raiz.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
