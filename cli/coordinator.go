package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/absmach/fedcoord/pkg/fl"
	"github.com/spf13/cobra"
)

var (
	weightsOut string
	decodeOut  bool
)

func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Coordinator status",
		Long:  `Show the coordinator state, round and progress of the current round.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 0 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			st, err := fsdk.Status(cmd.Context())
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, st)
		},
	}
}

func NewWeightsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "weights [get|upload]",
		Short: "Model weights",
		Long:  `Download global weights and upload local ones.`,
	}

	getCmd := &cobra.Command{
		Use:   "get [round]",
		Short: "Get global weights",
		Long: `Download the global weights of a round, or of the current round when none is given.

Examples:
  fedcoord-cli weights get --decode
  fedcoord-cli weights get 3 --out round-3.cbor`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) > 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}
			round := -1
			if len(args) == 1 {
				r, err := parseRound(args[0])
				if err != nil {
					logErrorCmd(*cmd, err)

					return
				}
				round = r
			}

			blob, err := fsdk.GlobalWeights(cmd.Context(), round)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}

			switch {
			case decodeOut:
				w, err := fl.DecodeWeights(blob)
				if err != nil {
					logErrorCmd(*cmd, err)

					return
				}
				logJSONCmd(*cmd, w)
			case weightsOut != "":
				if err := os.WriteFile(weightsOut, blob, 0o644); err != nil {
					logErrorCmd(*cmd, err)

					return
				}
				logOKCmd(*cmd)
			default:
				fmt.Fprintf(cmd.OutOrStdout(), "%d bytes of %s, use --decode or --out\n", len(blob), fl.ContentType)
			}
		},
	}
	getCmd.Flags().StringVar(&weightsOut, "out", "", "Write the CBOR weights to this file")
	getCmd.Flags().BoolVar(&decodeOut, "decode", false, "Print the decoded weights as JSON")

	uploadCmd := &cobra.Command{
		Use:   "upload <id> <round> <file>",
		Short: "Upload local weights",
		Long: `Upload CBOR encoded weights for a round. Use "-" to read them from stdin.

Examples:
  fedcoord-cli weights upload hospital-a 0 local.cbor`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 3 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}
			round, err := parseRound(args[1])
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}

			var blob []byte
			if args[2] == "-" {
				blob, err = io.ReadAll(cmd.InOrStdin())
			} else {
				blob, err = os.ReadFile(args[2])
			}
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}

			if err := fsdk.UploadWeights(cmd.Context(), args[0], round, blob); err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logOKCmd(*cmd)
		},
	}

	cmd.AddCommand(getCmd, uploadCmd)

	return cmd
}
