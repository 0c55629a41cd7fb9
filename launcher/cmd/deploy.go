package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/finsight/finsight/launcher/deploy"
	"github.com/finsight/finsight/launcher/process"
)

var (
	deployDirFlag     string
	deployInstallFlag string
	deployServerFlag  string
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Install dependencies and run the server on 0.0.0.0:$PORT",
	Long: `Hosting entrypoint. Fails before doing anything when the service directory
is missing, installs dependencies inside it, then runs the server bound to
0.0.0.0 and to $PORT (8000 when unset).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		runner := process.NewExecRunner(logger)
		runner.Stdout = cmd.OutOrStdout()
		runner.Stderr = cmd.ErrOrStderr()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return deploy.Run(ctx, &deploy.Options{
			Dir:     deployDirFlag,
			Install: deployInstallFlag,
			Server:  deployServerFlag,
			Runner:  runner,
			Logger:  logger,
		})
	},
}

func init() {
	rootCmd.AddCommand(deployCmd)
	deployCmd.Flags().StringVar(&deployDirFlag, "dir", deploy.DefaultDir, "Service directory")
	deployCmd.Flags().StringVar(&deployInstallFlag, "install", deploy.DefaultInstall, "Dependency installation command (empty to skip)")
	deployCmd.Flags().StringVar(&deployServerFlag, "server", deploy.DefaultServer, "Server command; --host and --port are appended")
}
