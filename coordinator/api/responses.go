package api

import (
	"net/http"

	"github.com/absmach/fedcoord/coordinator"
	"github.com/absmach/supermq"
)

var (
	_ supermq.Response = (*rendezvousRes)(nil)
	_ supermq.Response = (*heartbeatRes)(nil)
	_ supermq.Response = (*trainingParamsRes)(nil)
	_ supermq.Response = (*endRoundRes)(nil)
	_ supermq.Response = (*uploadWeightsRes)(nil)
	_ supermq.Response = (*removeParticipantRes)(nil)
	_ supermq.Response = (*statusRes)(nil)
)

type rendezvousRes struct {
	coordinator.RendezvousResult
}

func (r rendezvousRes) Code() int {
	return http.StatusOK
}

func (r rendezvousRes) Headers() map[string]string {
	return map[string]string{}
}

func (r rendezvousRes) Empty() bool {
	return false
}

type heartbeatRes struct {
	coordinator.HeartbeatResult
}

func (r heartbeatRes) Code() int {
	return http.StatusOK
}

func (r heartbeatRes) Headers() map[string]string {
	return map[string]string{}
}

func (r heartbeatRes) Empty() bool {
	return false
}

type trainingParamsRes struct {
	coordinator.TrainingParams
}

func (r trainingParamsRes) Code() int {
	return http.StatusOK
}

func (r trainingParamsRes) Headers() map[string]string {
	return map[string]string{}
}

func (r trainingParamsRes) Empty() bool {
	return false
}

type endRoundRes struct{}

func (r endRoundRes) Code() int {
	return http.StatusOK
}

func (r endRoundRes) Headers() map[string]string {
	return map[string]string{}
}

func (r endRoundRes) Empty() bool {
	return false
}

type uploadWeightsRes struct {
	location string
}

func (r uploadWeightsRes) Code() int {
	return http.StatusCreated
}

func (r uploadWeightsRes) Headers() map[string]string {
	return map[string]string{
		"Location": r.location,
	}
}

func (r uploadWeightsRes) Empty() bool {
	return true
}

// weightsRes is written as raw CBOR rather than JSON.
type weightsRes struct {
	weights []byte
}

type removeParticipantRes struct{}

func (r removeParticipantRes) Code() int {
	return http.StatusNoContent
}

func (r removeParticipantRes) Headers() map[string]string {
	return map[string]string{}
}

func (r removeParticipantRes) Empty() bool {
	return true
}

type statusRes struct {
	coordinator.Status
}

func (r statusRes) Code() int {
	return http.StatusOK
}

func (r statusRes) Headers() map[string]string {
	return map[string]string{}
}

func (r statusRes) Empty() bool {
	return false
}
