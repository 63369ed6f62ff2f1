// iam es el binario del servidor: serve, migraciones, reaper one-shot, seed
// y utilidades de operación.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/iam/internal/config"
	"github.com/dropDatabas3/iam/internal/observability/logger"
)

var version = "dev"

type globals struct {
	configPath string
	envFiles   []string
	cfg        *config.Config
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globals{}

	root := &cobra.Command{
		Use:           "iam",
		Short:         "Servidor OAuth2 (authorization code + refresh rotation)",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// .env es opcional; las variables del sistema ganan
			for _, f := range g.envFiles {
				_ = godotenv.Load(f)
			}
			cfg, err := config.Load(g.configPath)
			if err != nil {
				return err
			}
			g.cfg = cfg
			logger.Init(logger.Config{
				Env:         cfg.App.Env,
				Level:       cfg.App.LogLevel,
				ServiceName: cfg.App.Name,
				Version:     version,
			})
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync()
		},
	}

	root.PersistentFlags().StringVar(&g.configPath, "config", os.Getenv("IAM_CONFIG"), "Ruta al YAML de configuración (env IAM_CONFIG)")
	root.PersistentFlags().StringSliceVar(&g.envFiles, "env-file", []string{".env"}, "Archivos .env a cargar antes de la config")

	root.AddCommand(
		newServeCmd(g),
		newMigrateCmd(g),
		newReapCmd(g),
		newSeedCmd(g),
		newHashPasswordCmd(),
	)
	return root
}
