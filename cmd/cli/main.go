package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/absmach/fedcoord"
	"github.com/absmach/fedcoord/cli"
	"github.com/absmach/fedcoord/pkg/sdk"
	"github.com/spf13/cobra"
)

const (
	defCoordinatorURL  = "http://localhost:9090"
	defTLSVerification = false
	envCoordinatorURL  = "FEDCOORD_COORDINATOR_URL"
)

func main() {
	var (
		coordinatorURL string
		configFile     string
	)

	rootCmd := &cobra.Command{
		Use:   "fedcoord-cli",
		Short: "Federated learning coordinator CLI",
		Long:  `fedcoord-cli talks to a federated learning coordinator as an operator or as a participant.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			sdkConf := sdk.Config{
				CoordinatorURL:  defCoordinatorURL,
				TLSVerification: defTLSVerification,
			}
			if configFile != "" {
				fc, err := fedcoord.LoadConfig(configFile)
				if err != nil {
					return err
				}
				if err := fc.SDK.Apply(&sdkConf); err != nil {
					return err
				}
			}
			if url, ok := os.LookupEnv(envCoordinatorURL); ok && url != "" {
				sdkConf.CoordinatorURL = url
			}
			if cmd.Flags().Changed("coordinator-url") {
				sdkConf.CoordinatorURL = coordinatorURL
			}
			cli.SetSDK(sdk.NewSDK(sdkConf))

			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&coordinatorURL, "coordinator-url", "u", defCoordinatorURL, "Coordinator URL")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to a TOML config file")

	rootCmd.AddCommand(cli.NewStatusCmd())
	rootCmd.AddCommand(cli.NewParticipantsCmd())
	rootCmd.AddCommand(cli.NewWeightsCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Fatal(err)
	}
}
