package stats

import (
	"strings"
	"testing"
	"time"

	"github.com/verte-zerg/versetype/internal/model"
)

var base = time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

func at(ms int) time.Time {
	return base.Add(time.Duration(ms) * time.Millisecond)
}

func insert(key string, ms int) model.TypingAction {
	return model.TypingAction{Type: model.ActionInsertText, Key: key, DateTime: at(ms)}
}

func action(kind model.ActionType, ms int) model.TypingAction {
	return model.TypingAction{Type: kind, DateTime: at(ms)}
}

func letters(s string) []string {
	return strings.Split(s, "")
}

func words(text string) []model.Word {
	var out []model.Word
	for _, w := range strings.Split(text, " ") {
		out = append(out, model.Word{Letters: letters(w)})
	}
	return out
}

// typeSteadily inserts each letter of text, spreading them evenly from
// startMs to endMs.
func typeSteadily(text string, startMs, endMs int) []model.TypingAction {
	keys := letters(text)
	step := 0
	if len(keys) > 1 {
		step = (endMs - startMs) / (len(keys) - 1)
	}
	actions := make([]model.TypingAction, 0, len(keys))
	for i, k := range keys {
		ms := startMs + i*step
		if i == len(keys)-1 {
			ms = endMs
		}
		actions = append(actions, insert(k, ms))
	}
	return actions
}

func TestValidActionsAfterResetWithoutReset(t *testing.T) {
	actions := typeSteadily("abc", 0, 200)
	got := ValidActionsAfterReset(actions)
	if len(got) != len(actions) {
		t.Fatalf("expected %d actions, got %d", len(actions), len(got))
	}
	for i := range actions {
		if got[i] != actions[i] {
			t.Fatalf("action %d changed: %+v", i, got[i])
		}
	}
}

func TestValidActionsAfterResetUsesLastReset(t *testing.T) {
	actions := []model.TypingAction{
		insert("x", 0),
		action(model.ActionDeleteSoftLineBackward, 100),
		insert("y", 200),
		action(model.ActionDeleteSoftLineBackward, 300),
		insert("a", 400),
		insert("b", 500),
	}
	got := ValidActionsAfterReset(actions)
	if len(got) != 2 || got[0].Key != "a" || got[1].Key != "b" {
		t.Fatalf("unexpected suffix: %+v", got)
	}
}

func TestStatsNilWhenResetLeavesTooFewActions(t *testing.T) {
	actions := append(typeSteadily("abcdefghij", 0, 5000), action(model.ActionDeleteSoftLineBackward, 5100), insert("a", 5200))
	data := model.TypingData{UserActions: actions, UserNodes: words("abcdefghij"), CorrectNodes: words("abcdefghij")}
	if got := CalculateStatsForVerse(data); got != nil {
		t.Fatalf("expected nil stats, got %+v", got)
	}
}

func TestEffectiveDuration(t *testing.T) {
	cases := []struct {
		name    string
		actions []model.TypingAction
		want    int64
	}{
		{name: "empty", want: 0},
		{name: "single", actions: []model.TypingAction{insert("a", 0)}, want: 0},
		{name: "long pause capped", actions: []model.TypingAction{insert("a", 0), insert("b", 10000)}, want: 1000},
		{name: "threshold kept", actions: []model.TypingAction{insert("a", 0), insert("b", 3000)}, want: 3000},
		{
			name: "mixed",
			actions: []model.TypingAction{
				insert("a", 0),
				insert("b", 500),
				insert("c", 5500),
				insert("d", 8500),
				insert("e", 8501),
			},
			want: 500 + 1000 + 3000 + 1,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := EffectiveDuration(tc.actions); got != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, got)
			}
		})
	}
}

func TestCalculateAccuracy(t *testing.T) {
	expected := letters("hello")
	cases := []struct {
		name    string
		actions []model.TypingAction
		want    int
	}{
		{name: "all correct", actions: typeSteadily("hello", 0, 400), want: 100},
		{name: "all incorrect", actions: typeSteadily("xxxxx", 0, 400), want: 0},
		{name: "three of five", actions: typeSteadily("hexxo", 0, 400), want: 60},
		{
			name: "correction does not forgive",
			actions: []model.TypingAction{
				insert("h", 0),
				insert("x", 100),
				action(model.ActionDeleteContentBackward, 200),
				insert("e", 300),
				insert("l", 400),
				insert("l", 500),
				insert("o", 600),
			},
			want: 83,
		},
		{name: "no scored keystrokes", actions: []model.TypingAction{action(model.ActionDeleteContentBackward, 0)}, want: 100},
		{name: "typing past the end", actions: typeSteadily("hellooo", 0, 600), want: 71},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CalculateAccuracy(tc.actions, expected); got != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, got)
			}
		})
	}
}

func TestCalculateAccuracyEmptyExpectedIsZero(t *testing.T) {
	if got := CalculateAccuracy(typeSteadily("abc", 0, 200), nil); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

func TestDeleteWordBackwardRewindsPosition(t *testing.T) {
	expected := letters("ab cd")
	actions := []model.TypingAction{
		insert("a", 0),
		insert("b", 100),
		insert(" ", 200),
		insert("x", 300),
		insert("y", 400),
		action(model.ActionDeleteWordBackward, 500),
		insert("c", 600),
		insert("d", 700),
	}
	// a b space c d scored correct, x y scored incorrect.
	if got := CalculateAccuracy(actions, expected); got != 71 {
		t.Fatalf("expected 71, got %d", got)
	}
}

func TestDeleteWordBackwardWithoutSpaceClearsAll(t *testing.T) {
	state := replayState{}
	for _, a := range typeSteadily("abc", 0, 200) {
		state = state.apply(a, letters("abc"))
	}
	state = state.apply(action(model.ActionDeleteWordBackward, 300), letters("abc"))
	if state.position != 0 || len(state.typed) != 0 {
		t.Fatalf("expected empty state, got %+v", state)
	}
	if state.correct != 3 {
		t.Fatalf("counters must survive deletion, got %+v", state)
	}
}

func TestMultiCharacterKeyIsDeletedPerCharacter(t *testing.T) {
	expected := letters("x abc")
	state := replayState{}
	for _, a := range []model.TypingAction{
		insert("x", 0),
		insert(" ", 100),
		insert("ab", 200),
		action(model.ActionDeleteContentBackward, 300),
	} {
		state = state.apply(a, expected)
	}
	if strings.Join(state.typed, "") != "x a" || state.position != 2 {
		t.Fatalf("delete-char must drop one character, got %+v", state)
	}
	state = state.apply(action(model.ActionDeleteWordBackward, 400), expected)
	if strings.Join(state.typed, "") != "x " || state.position != 1 {
		t.Fatalf("delete-word must count characters, got %+v", state)
	}
}

func TestCalculateCorrectedAccuracy(t *testing.T) {
	if got := CalculateCorrectedAccuracy(letters("hello"), letters("hello")); got != 100 {
		t.Fatalf("expected 100, got %d", got)
	}
	if got := CalculateCorrectedAccuracy(letters("help"), letters("hello")); got != 60 {
		t.Fatalf("expected 60, got %d", got)
	}
	if got := CalculateCorrectedAccuracy(letters("hellooo"), letters("hello")); got != 100 {
		t.Fatalf("expected extra letters to be ignored, got %d", got)
	}
	if got := CalculateCorrectedAccuracy(letters("abc"), nil); got != 0 {
		t.Fatalf("expected 0 for empty expected text, got %d", got)
	}
}

func TestCalculateStatsForVerseSteadyTyping(t *testing.T) {
	data := model.TypingData{
		UserActions:  typeSteadily("abcdefghij", 0, 2000),
		UserNodes:    words("abcdefghij"),
		CorrectNodes: words("abcdefghij"),
	}
	got := CalculateStatsForVerse(data)
	if got == nil {
		t.Fatalf("expected stats")
	}
	if got.WPM != 60 || got.Accuracy != 100 || got.CorrectedAccuracy != 100 {
		t.Fatalf("unexpected stats: %+v", got)
	}
}

func TestCalculateStatsForVerseAfterReset(t *testing.T) {
	actions := []model.TypingAction{
		insert("z", 0),
		insert("z", 100),
		action(model.ActionDeleteSoftLineBackward, 200),
	}
	actions = append(actions, typeSteadily("abcdefghij", 1000, 4000)...)
	data := model.TypingData{
		UserActions:  actions,
		UserNodes:    words("abcdefghij"),
		CorrectNodes: words("abcdefghij"),
	}
	got := CalculateStatsForVerse(data)
	if got == nil {
		t.Fatalf("expected stats")
	}
	if got.WPM != 40 {
		t.Fatalf("expected 40 wpm, got %d", got.WPM)
	}
	if got.Accuracy != 100 {
		t.Fatalf("keystrokes before the reset must be ignored, got %d", got.Accuracy)
	}
}

func TestCalculateStatsForVersePauseCounted(t *testing.T) {
	// 9 gaps: 8 of 125 ms, then a 10 s pause credited as 1000 ms.
	actions := typeSteadily("abcdefghi", 0, 1000)
	actions = append(actions, insert("j", 11000))
	data := model.TypingData{UserActions: actions, UserNodes: words("abcdefghij"), CorrectNodes: words("abcdefghij")}
	if d := EffectiveDuration(actions); d != 2000 {
		t.Fatalf("expected 2000 ms effective duration, got %d", d)
	}
	got := CalculateStatsForVerse(data)
	if got == nil || got.WPM != 60 {
		t.Fatalf("expected 60 wpm, got %+v", got)
	}
}

func TestCalculateStatsForVerseRejectsUntrustworthyData(t *testing.T) {
	cases := []struct {
		name string
		data model.TypingData
	}{
		{
			name: "too short",
			data: model.TypingData{UserActions: typeSteadily("abcdefghij", 0, 900), CorrectNodes: words("abcdefghij")},
		},
		{
			name: "no expected letters",
			data: model.TypingData{UserActions: typeSteadily("abcdefghij", 0, 2000)},
		},
		{
			name: "implausible speed",
			data: model.TypingData{
				UserActions:  typeSteadily("abcdefghij", 0, 1000),
				CorrectNodes: words(strings.Repeat("a", 300)),
			},
		},
		{
			name: "unknown action",
			data: model.TypingData{
				UserActions:  []model.TypingAction{insert("a", 0), {Type: "paste", DateTime: at(2000)}},
				CorrectNodes: words("a"),
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CalculateStatsForVerse(tc.data); got != nil {
				t.Fatalf("expected nil stats, got %+v", got)
			}
		})
	}
}

func TestStatsFromJSON(t *testing.T) {
	raw := `{
		"userActions": [
			{"type": "insertText", "key": "a", "datetime": "2024-03-10T09:00:00Z"},
			{"type": "insertText", "key": "b", "datetime": "2024-03-10T09:00:01Z"},
			{"type": "insertText", "key": "x", "datetime": "2024-03-10T09:00:02Z"},
			{"type": "deleteContentBackward", "datetime": "2024-03-10T09:00:02.500Z"},
			{"type": "insertText", "key": "c", "datetime": "2024-03-10T09:00:03Z"}
		],
		"userNodes": [{"letters": ["a", "b", "c"]}],
		"correctNodes": [{"letters": ["a", "b", "c"]}]
	}`
	got := StatsFromJSON([]byte(raw))
	if got == nil {
		t.Fatalf("expected stats")
	}
	if got.WPM != 12 || got.Accuracy != 75 || got.CorrectedAccuracy != 100 {
		t.Fatalf("unexpected stats: %+v", got)
	}
}

func TestStatsFromJSONMalformed(t *testing.T) {
	inputs := []string{
		`not json`,
		`{"userActions": [], "userNodes": []}`,
		`{"userActions": [{"type": "insertText", "key": "a"}], "userNodes": [], "correctNodes": []}`,
	}
	for _, raw := range inputs {
		if got := StatsFromJSON([]byte(raw)); got != nil {
			t.Fatalf("expected nil for %q, got %+v", raw, got)
		}
	}
}
