package basic

import (
	"errors"
	"math"
	"math/rand"

	"github.com/park285/tafl-htp-bot/internal/presets"
)

// SelectCandidate picks among the first PrimaryChoices candidates by weight.
// Candidates must be sorted best first. A forced candidate inside the window wins outright.
func SelectCandidate(p presets.Preset, candidates []Candidate, r *rand.Rand) (Candidate, error) {
	if len(candidates) == 0 {
		return Candidate{}, errors.New("no candidates to choose from")
	}
	if err := presets.Validate(p); err != nil {
		return Candidate{}, err
	}

	primaryLimit := p.PrimaryChoices
	if primaryLimit > len(candidates) {
		primaryLimit = len(candidates)
	}

	for i := 0; i < primaryLimit; i++ {
		if candidates[i].Forced {
			return candidates[i], nil
		}
	}

	totalWeight := 0.0
	for i := 0; i < primaryLimit; i++ {
		totalWeight += p.CandidateWeights[i]
	}
	if totalWeight == 0 {
		return Candidate{}, errors.New("candidate weights sum to zero")
	}

	threshold := r.Float64() * totalWeight
	index := 0
	for i := 0; i < primaryLimit; i++ {
		threshold -= p.CandidateWeights[i]
		if threshold <= 0 {
			index = i
			break
		}
	}
	return candidates[index], nil
}

// jitter returns score moved by up to ±noise.
func jitter(score, noise int, r *rand.Rand) int {
	if noise <= 0 || score >= mateBand || score <= -mateBand {
		return score
	}
	return saturatingAdd(score, r.Intn(2*noise+1)-noise)
}

func saturatingAdd(a, b int) int {
	sum := int64(a) + int64(b)
	if sum > math.MaxInt {
		return math.MaxInt
	}
	if sum < math.MinInt {
		return math.MinInt
	}
	return int(sum)
}
