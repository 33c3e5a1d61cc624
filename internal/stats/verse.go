// Package stats contains statistics calculations and reporting.
package stats

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/verte-zerg/versetype/internal/model"
)

const (
	pauseThresholdMs = 3000
	pausePenaltyMs   = 1000
	minDurationMs    = 1000
	maxPlausibleWPM  = 300
	lettersPerWord   = 5.0
)

// ParseTypingData decodes and validates a TypingData JSON document.
func ParseTypingData(raw []byte) (model.TypingData, error) {
	var doc struct {
		UserActions  *[]model.TypingAction `json:"userActions"`
		UserNodes    *[]model.Word         `json:"userNodes"`
		CorrectNodes *[]model.Word         `json:"correctNodes"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return model.TypingData{}, fmt.Errorf("%w: %v", model.ErrInvalidTypingData, err)
	}
	if doc.UserActions == nil || doc.UserNodes == nil || doc.CorrectNodes == nil {
		return model.TypingData{}, fmt.Errorf("%w: userActions, userNodes and correctNodes are required", model.ErrInvalidTypingData)
	}
	data := model.TypingData{
		UserActions:  *doc.UserActions,
		UserNodes:    *doc.UserNodes,
		CorrectNodes: *doc.CorrectNodes,
	}
	if err := data.Validate(); err != nil {
		return model.TypingData{}, err
	}
	return data, nil
}

// StatsFromJSON computes verse stats from raw TypingData JSON.
// Malformed input yields nil, like any other untrustworthy data.
func StatsFromJSON(raw []byte) *model.VerseStats {
	data, err := ParseTypingData(raw)
	if err != nil {
		return nil
	}
	return CalculateStatsForVerse(data)
}

// CalculateStatsForVerse derives WPM and accuracy for one typed verse.
// It returns nil when the recorded actions cannot be trusted.
func CalculateStatsForVerse(data model.TypingData) *model.VerseStats {
	if data.Validate() != nil {
		return nil
	}
	actions := ValidActionsAfterReset(data.UserActions)
	if len(actions) < 2 {
		return nil
	}
	durationMs := EffectiveDuration(actions)
	if durationMs < minDurationMs {
		return nil
	}
	correctLetters := flattenLetters(data.CorrectNodes)
	if len(correctLetters) == 0 {
		return nil
	}
	minutes := float64(durationMs) / 60000.0
	wpm := int(math.Round((float64(len(correctLetters)) / lettersPerWord) / minutes))
	if wpm > maxPlausibleWPM {
		return nil
	}
	return &model.VerseStats{
		WPM:               wpm,
		Accuracy:          CalculateAccuracy(actions, correctLetters),
		CorrectedAccuracy: CalculateCorrectedAccuracy(flattenLetters(data.UserNodes), correctLetters),
	}
}

// ValidActionsAfterReset returns the actions recorded after the last
// deleteSoftLineBackward. Without a reset the input is returned unchanged.
func ValidActionsAfterReset(actions []model.TypingAction) []model.TypingAction {
	for i := len(actions) - 1; i >= 0; i-- {
		if actions[i].Type == model.ActionDeleteSoftLineBackward {
			return actions[i+1:]
		}
	}
	return actions
}

// EffectiveDuration sums the gaps between consecutive actions in
// milliseconds. Gaps longer than the pause threshold count as one second.
func EffectiveDuration(actions []model.TypingAction) int64 {
	if len(actions) < 2 {
		return 0
	}
	var total int64
	for i := 1; i < len(actions); i++ {
		gap := actions[i].DateTime.Sub(actions[i-1].DateTime).Milliseconds()
		if gap > pauseThresholdMs {
			gap = pausePenaltyMs
		}
		total += gap
	}
	return total
}

type replayOp int

const (
	opInsert replayOp = iota
	opDeleteChar
	opDeleteWord
	opIgnore
)

func replayOpFor(t model.ActionType) replayOp {
	switch t {
	case model.ActionInsertText:
		return opInsert
	case model.ActionDeleteContentBackward:
		return opDeleteChar
	case model.ActionDeleteWordBackward:
		return opDeleteWord
	default:
		return opIgnore
	}
}

// replayState is the accumulator of the keystroke replay.
type replayState struct {
	position  int
	correct   int
	incorrect int
	typed     []string // one entry per character, not per key
}

func (s replayState) apply(action model.TypingAction, correctLetters []string) replayState {
	switch replayOpFor(action.Type) {
	case opInsert:
		if s.position < len(correctLetters) && action.Key == correctLetters[s.position] {
			s.correct++
		} else {
			s.incorrect++
		}
		for _, r := range action.Key {
			s.typed = append(s.typed, string(r))
		}
		s.position++
	case opDeleteChar:
		s.position = max(0, s.position-1)
		if len(s.typed) > 0 {
			s.typed = s.typed[:len(s.typed)-1]
		}
	case opDeleteWord:
		removed := trailingWordLength(s.typed)
		s.typed = s.typed[:len(s.typed)-removed]
		s.position = max(0, s.position-removed)
	}
	return s
}

// trailingWordLength counts the typed characters after the last space.
// A trailing space itself is never removed.
func trailingWordLength(typed []string) int {
	for i := len(typed) - 1; i >= 0; i-- {
		if typed[i] == " " {
			return len(typed) - 1 - i
		}
	}
	return len(typed)
}

// CalculateAccuracy replays keystrokes against the expected letters and
// returns the share of correct insertions. Corrections do not erase a miss.
func CalculateAccuracy(actions []model.TypingAction, correctLetters []string) int {
	if len(correctLetters) == 0 {
		return 0
	}
	var state replayState
	for _, action := range actions {
		state = state.apply(action, correctLetters)
	}
	scored := state.correct + state.incorrect
	if scored == 0 {
		return 100
	}
	return int(math.Round(float64(state.correct) / float64(scored) * 100))
}

// CalculateCorrectedAccuracy compares the final typed letters with the
// expected letters position by position. Extra typed letters are ignored.
func CalculateCorrectedAccuracy(userLetters, correctLetters []string) int {
	if len(correctLetters) == 0 {
		return 0
	}
	matches := 0
	for i, expected := range correctLetters {
		if i < len(userLetters) && userLetters[i] == expected {
			matches++
		}
	}
	return int(math.Round(float64(matches) / float64(len(correctLetters)) * 100))
}

func flattenLetters(words []model.Word) []string {
	count := 0
	for _, w := range words {
		count += len(w.Letters)
	}
	letters := make([]string, 0, count)
	for _, w := range words {
		letters = append(letters, w.Letters...)
	}
	return letters
}
