package policy_test

import (
	"github.com/justapithecus/rawzeo/record"
)

// env builds an envelope of kind at offset.
func env(kind record.Kind, offset int64) record.Envelope {
	return record.Envelope{Kind: kind, Offset: offset, Data: map[string]any{}}
}

func offsets(envs []record.Envelope) []int64 {
	out := make([]int64, len(envs))
	for i, e := range envs {
		out[i] = e.Offset
	}
	return out
}
