package sdk

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/absmach/fedcoord/coordinator"
	pkgerrors "github.com/absmach/fedcoord/pkg/errors"
)

const (
	CTJSON string = "application/json"
	CTCBOR string = "application/cbor"

	defaultTimeout = 30 * time.Second
)

var ErrUnexpectedResponse = errors.New("unexpected response from coordinator")

type SDK interface {
	// Rendezvous registers a participant. Pass an empty id to have the
	// coordinator assign one.
	//
	// example:
	//  res, _ := sdk.Rendezvous(ctx, "")
	//  if res.Reply == coordinator.Later {
	//    // retry after a while
	//  }
	//  fmt.Println(res.ParticipantID)
	Rendezvous(ctx context.Context, participantID string) (coordinator.RendezvousResult, error)

	// Heartbeat reports liveness along with the state and round the
	// participant believes the coordinator is in.
	//
	// example:
	//  hb, _ := sdk.Heartbeat(ctx, "b1d10738-c5d7-4ff1-8f4d-b9328ce6f040", coordinator.StateStandby, 0)
	//  fmt.Println(hb.State, hb.Round)
	Heartbeat(ctx context.Context, participantID string, state coordinator.State, round int) (coordinator.HeartbeatResult, error)

	// StartTrainingRound fetches the training parameters of the current round.
	//
	// example:
	//  params, _ := sdk.StartTrainingRound(ctx, "b1d10738-c5d7-4ff1-8f4d-b9328ce6f040")
	//  fmt.Println(params.Epochs, params.EpochBase)
	StartTrainingRound(ctx context.Context, participantID string) (coordinator.TrainingParams, error)

	// EndTrainingRound submits an update whose weights were uploaded before.
	//
	// example:
	//  err := sdk.EndTrainingRound(ctx, "b1d10738-c5d7-4ff1-8f4d-b9328ce6f040", coordinator.UpdateRequest{
	//    NumSamples: 600,
	//  })
	EndTrainingRound(ctx context.Context, participantID string, req coordinator.UpdateRequest) error

	// UploadWeights stores CBOR encoded weights for a round.
	//
	// example:
	//  blob, _ := fl.EncodeWeights(weights)
	//  err := sdk.UploadWeights(ctx, "b1d10738-c5d7-4ff1-8f4d-b9328ce6f040", 0, blob)
	UploadWeights(ctx context.Context, participantID string, round int, blob []byte) error

	// GlobalWeights downloads the global model of a round. A negative round
	// selects the current one.
	//
	// example:
	//  blob, _ := sdk.GlobalWeights(ctx, -1)
	//  weights, _ := fl.DecodeWeights(blob)
	GlobalWeights(ctx context.Context, round int) ([]byte, error)

	// Disconnect removes a participant from the coordinator.
	Disconnect(ctx context.Context, participantID string) error

	// Status returns a snapshot of the coordinator.
	Status(ctx context.Context) (coordinator.Status, error)
}

type fedSDK struct {
	coordinatorURL string
	client         *http.Client
}

type Config struct {
	CoordinatorURL  string
	TLSVerification bool
	Timeout         time.Duration
}

func NewSDK(cfg Config) SDK {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	return &fedSDK{
		coordinatorURL: cfg.CoordinatorURL,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: !cfg.TLSVerification,
				},
			},
		},
	}
}

type participantReq struct {
	ParticipantID string `json:"participant_id,omitempty"`
}

type heartbeatReq struct {
	ParticipantID string            `json:"participant_id"`
	State         coordinator.State `json:"state"`
	Round         int               `json:"round"`
}

type endRoundReq struct {
	ParticipantID string `json:"participant_id"`
	coordinator.UpdateRequest
}

func (sdk *fedSDK) Rendezvous(ctx context.Context, participantID string) (coordinator.RendezvousResult, error) {
	var res coordinator.RendezvousResult
	err := sdk.postJSON(ctx, "/rendezvous", participantReq{ParticipantID: participantID}, &res)

	return res, err
}

func (sdk *fedSDK) Heartbeat(ctx context.Context, participantID string, state coordinator.State, round int) (coordinator.HeartbeatResult, error) {
	var res coordinator.HeartbeatResult
	err := sdk.postJSON(ctx, "/heartbeat", heartbeatReq{ParticipantID: participantID, State: state, Round: round}, &res)

	return res, err
}

func (sdk *fedSDK) StartTrainingRound(ctx context.Context, participantID string) (coordinator.TrainingParams, error) {
	var res coordinator.TrainingParams
	err := sdk.postJSON(ctx, "/rounds/start", participantReq{ParticipantID: participantID}, &res)

	return res, err
}

func (sdk *fedSDK) EndTrainingRound(ctx context.Context, participantID string, req coordinator.UpdateRequest) error {
	return sdk.postJSON(ctx, "/rounds/end", endRoundReq{ParticipantID: participantID, UpdateRequest: req}, nil)
}

func (sdk *fedSDK) UploadWeights(ctx context.Context, participantID string, round int, blob []byte) error {
	url := fmt.Sprintf("%s/participants/%s/rounds/%d/weights", sdk.coordinatorURL, participantID, round)
	_, err := sdk.processRequest(ctx, http.MethodPut, url, CTCBOR, blob, http.StatusCreated)

	return err
}

func (sdk *fedSDK) GlobalWeights(ctx context.Context, round int) ([]byte, error) {
	url := sdk.coordinatorURL + "/weights"
	if round >= 0 {
		url = fmt.Sprintf("%s/%d", url, round)
	}

	return sdk.processRequest(ctx, http.MethodGet, url, "", nil, http.StatusOK)
}

func (sdk *fedSDK) Disconnect(ctx context.Context, participantID string) error {
	url := sdk.coordinatorURL + "/participants/" + participantID
	_, err := sdk.processRequest(ctx, http.MethodDelete, url, "", nil, http.StatusNoContent)

	return err
}

func (sdk *fedSDK) Status(ctx context.Context) (coordinator.Status, error) {
	body, err := sdk.processRequest(ctx, http.MethodGet, sdk.coordinatorURL+"/status", "", nil, http.StatusOK)
	if err != nil {
		return coordinator.Status{}, err
	}

	var st coordinator.Status
	if err := json.Unmarshal(body, &st); err != nil {
		return coordinator.Status{}, err
	}

	return st, nil
}

func (sdk *fedSDK) postJSON(ctx context.Context, endpoint string, req, res any) error {
	data, err := json.Marshal(req)
	if err != nil {
		return err
	}

	body, err := sdk.processRequest(ctx, http.MethodPost, sdk.coordinatorURL+endpoint, CTJSON, data, http.StatusOK)
	if err != nil {
		return err
	}
	if res == nil {
		return nil
	}

	return json.Unmarshal(body, res)
}

func (sdk *fedSDK) processRequest(ctx context.Context, method, reqURL, contentType string, data []byte, expectedRespCode int) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, reqURL, bytes.NewReader(data))
	if err != nil {
		return []byte{}, err
	}

	if contentType != "" {
		req.Header.Add("Content-Type", contentType)
	}

	resp, err := sdk.client.Do(req)
	if err != nil {
		return []byte{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return []byte{}, err
	}

	if resp.StatusCode != expectedRespCode {
		return []byte{}, decodeError(resp.StatusCode, body)
	}

	return body, nil
}

// decodeError turns an error response back into the sentinel the
// coordinator returned.
func decodeError(status int, body []byte) error {
	var res struct {
		Err string `json:"error"`
	}
	msg := http.StatusText(status)
	if err := json.Unmarshal(body, &res); err == nil && res.Err != "" {
		msg = res.Err
	}

	var sentinel error
	switch status {
	case http.StatusForbidden:
		sentinel = pkgerrors.ErrPermissionDenied
	case http.StatusPreconditionFailed:
		sentinel = pkgerrors.ErrFailedPrecondition
	case http.StatusConflict:
		sentinel = pkgerrors.ErrAlreadyExists
	case http.StatusBadGateway:
		sentinel = pkgerrors.ErrStorage
	case http.StatusNotFound:
		sentinel = pkgerrors.ErrNotFound
	case http.StatusRequestEntityTooLarge:
		sentinel = pkgerrors.ErrTooLarge
	case http.StatusBadRequest, http.StatusUnsupportedMediaType:
		sentinel = pkgerrors.ErrMalformedEntity
	default:
		return fmt.Errorf("%w: status %d: %s", ErrUnexpectedResponse, status, msg)
	}

	return fmt.Errorf("%w: %s", sentinel, msg)
}
