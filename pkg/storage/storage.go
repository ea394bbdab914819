package storage

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

const (
	participantsPrefix = "participants"
	globalPrefix       = "global"
	roundsSegment      = "/rounds/"
)

// WeightStorage holds opaque weight blobs addressed by key.
type WeightStorage interface {
	Write(ctx context.Context, key string, blob []byte) error
	// Read returns errors.ErrNotFound when nothing is stored under key.
	Read(ctx context.Context, key string) ([]byte, error)
}

// LocalWeightsKey addresses the weights a participant trained in a round.
func LocalWeightsKey(participantID string, round int) string {
	return fmt.Sprintf("%s/%s/rounds/%d", participantsPrefix, participantID, round)
}

// ParseLocalWeightsKey splits a key built by LocalWeightsKey into its
// participant ID and round.
func ParseLocalWeightsKey(key string) (string, int, bool) {
	rest, ok := strings.CutPrefix(key, participantsPrefix+"/")
	if !ok {
		return "", 0, false
	}
	i := strings.LastIndex(rest, roundsSegment)
	if i <= 0 {
		return "", 0, false
	}
	round, err := strconv.Atoi(rest[i+len(roundsSegment):])
	if err != nil || round < 0 {
		return "", 0, false
	}

	return rest[:i], round, true
}

// GlobalWeightsKey addresses the global model that round starts from.
func GlobalWeightsKey(round int) string {
	return fmt.Sprintf("%s/%d", globalPrefix, round)
}
