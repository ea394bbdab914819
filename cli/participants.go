package cli

import (
	"log/slog"
	"os"
	"time"

	"github.com/0x6flab/namegenerator"
	"github.com/absmach/fedcoord/coordinator"
	"github.com/absmach/fedcoord/pkg/fl"
	"github.com/absmach/fedcoord/pkg/sdk"
	"github.com/spf13/cobra"
)

var fsdk sdk.SDK

func SetSDK(s sdk.SDK) {
	fsdk = s
}

var (
	heartbeatState    string
	heartbeatRound    int
	weightsRef        string
	numSamples        int
	runSamples        = 100
	heartbeatInterval = 5 * time.Second
	retryInterval     = 10 * time.Second
	echoStep          = 0.1
	echoSize          = 10
	disconnectOnExit  = true
)

func NewParticipantsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "participants [rendezvous|heartbeat|start|end|disconnect|run]",
		Short: "Participants",
		Long:  `Join the federation, report liveness, take part in rounds and leave.`,
	}

	rendezvousCmd := &cobra.Command{
		Use:   "rendezvous [id]",
		Short: "Rendezvous with the coordinator",
		Long: `Register a participant. Without an id the coordinator assigns one.

Examples:
  fedcoord-cli participants rendezvous
  fedcoord-cli participants rendezvous hospital-a`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) > 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}
			var id string
			if len(args) == 1 {
				id = args[0]
			}

			res, err := fsdk.Rendezvous(cmd.Context(), id)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, res)
		},
	}

	heartbeatCmd := &cobra.Command{
		Use:   "heartbeat <id>",
		Short: "Send a heartbeat",
		Long:  `Send a heartbeat and print the coordinator state.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}
			state, err := coordinator.ParseState(heartbeatState)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}

			res, err := fsdk.Heartbeat(cmd.Context(), args[0], state, heartbeatRound)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, res)
		},
	}
	heartbeatCmd.Flags().StringVar(&heartbeatState, "state", "STANDBY", "State the participant believes the coordinator is in")
	heartbeatCmd.Flags().IntVar(&heartbeatRound, "round", 0, "Round the participant believes the coordinator is in")

	startCmd := &cobra.Command{
		Use:   "start <id>",
		Short: "Start a training round",
		Long:  `Fetch the training parameters of the current round.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			params, err := fsdk.StartTrainingRound(cmd.Context(), args[0])
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, params)
		},
	}

	endCmd := &cobra.Command{
		Use:   "end <id>",
		Short: "End a training round",
		Long: `Submit an update for weights uploaded before with "weights upload".

Examples:
  fedcoord-cli participants end hospital-a --samples 600`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			err := fsdk.EndTrainingRound(cmd.Context(), args[0], coordinator.UpdateRequest{
				WeightsRef: weightsRef,
				NumSamples: numSamples,
			})
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logOKCmd(*cmd)
		},
	}
	endCmd.Flags().StringVar(&weightsRef, "weights-ref", "", "Storage key of the uploaded weights")
	endCmd.Flags().IntVar(&numSamples, "samples", 0, "Number of training samples used")

	disconnectCmd := &cobra.Command{
		Use:   "disconnect <id>",
		Short: "Leave the federation",
		Long:  `Remove a participant from the coordinator.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			if err := fsdk.Disconnect(cmd.Context(), args[0]); err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logOKCmd(*cmd)
		},
	}

	runCmd := &cobra.Command{
		Use:   "run [id]",
		Short: "Run a participant",
		Long: `Run a participant that trains with an echo trainer until the coordinator finishes.
Without an id a random name is used.

Examples:
  fedcoord-cli participants run
  fedcoord-cli participants run hospital-a --samples 600 --heartbeat-interval 2s`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) > 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}
			id := namegenerator.NewGenerator().Generate()
			if len(args) == 1 {
				id = args[0]
			}

			logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
			trainer := sdk.EchoTrainer{
				Initial:    fl.Weights{{Shape: []int{echoSize}, Data: make([]float64, echoSize)}},
				Step:       echoStep,
				NumSamples: runSamples,
			}
			p := sdk.NewParticipant(fsdk, trainer, sdk.ParticipantConfig{
				ID:                id,
				HeartbeatInterval: heartbeatInterval,
				RetryInterval:     retryInterval,
				Disconnect:        disconnectOnExit,
			}, logger)

			if err := p.Run(cmd.Context()); err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logOKCmd(*cmd)
		},
	}
	runCmd.Flags().IntVar(&runSamples, "samples", runSamples, "Number of samples reported per round")
	runCmd.Flags().DurationVar(&heartbeatInterval, "heartbeat-interval", heartbeatInterval, "Heartbeat interval")
	runCmd.Flags().DurationVar(&retryInterval, "retry-interval", retryInterval, "Wait between rendezvous attempts while the coordinator is full")
	runCmd.Flags().Float64Var(&echoStep, "step", echoStep, "Amount the echo trainer adds to every weight per epoch")
	runCmd.Flags().IntVar(&echoSize, "size", echoSize, "Number of weights the echo trainer starts from when there is no global model")
	runCmd.Flags().BoolVar(&disconnectOnExit, "disconnect", disconnectOnExit, "Disconnect from the coordinator on exit")

	cmd.AddCommand(rendezvousCmd, heartbeatCmd, startCmd, endCmd, disconnectCmd, runCmd)

	return cmd
}
