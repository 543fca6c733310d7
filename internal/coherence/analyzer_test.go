package coherence

import (
	"testing"

	"github.com/proseforge/redline/internal/narrative"
)

func testBible() *narrative.Bible {
	return &narrative.Bible{
		Title: "The Harbor Lights",
		Tone:  "melancholy",
		Characters: []narrative.Character{
			{ID: "mara", Name: "Mara", Aliases: []string{"the lighthouse keeper"}},
			{ID: "tomas", Name: "Tomas Voss", Aliases: []string{"Tomas"}},
		},
	}
}

func TestAnalyzeCharacters(t *testing.T) {
	b := testBible()

	t.Run("roster name", func(t *testing.T) {
		a := Analyze(0, "Mara watched the water rise over the dock.", b)
		if len(a.Characters) != 1 || a.Characters[0] != "Mara" {
			t.Errorf("characters = %v, want [Mara]", a.Characters)
		}
	})

	t.Run("alias resolves to canonical name", func(t *testing.T) {
		a := Analyze(0, "The boat belonged to Tomas, everyone knew that.", b)
		if len(a.Characters) != 1 || a.Characters[0] != "Tomas Voss" {
			t.Errorf("characters = %v, want [Tomas Voss]", a.Characters)
		}
	})

	t.Run("unknown proper name reported", func(t *testing.T) {
		a := Analyze(0, "She handed the ledger to Quillon, and Quillon frowned.", b)
		if len(a.Characters) != 1 || a.Characters[0] != "Quillon" {
			t.Errorf("characters = %v, want [Quillon]", a.Characters)
		}
	})

	t.Run("sentence-initial words are not names", func(t *testing.T) {
		a := Analyze(0, "Rain fell all day. Nothing moved on the water.", b)
		if len(a.Characters) != 0 {
			t.Errorf("characters = %v, want none", a.Characters)
		}
	})
}

func TestAnalyzeSignals(t *testing.T) {
	b := testBible()

	t.Run("time marker", func(t *testing.T) {
		a := Analyze(2, "The next morning she found the door open.", b)
		if a.TimeMarker == "" {
			t.Error("expected a time marker")
		}
	})

	t.Run("scene guess", func(t *testing.T) {
		a := Analyze(0, "The dock creaked under the weight of the boat tied to the pier.", b)
		if a.Scene != "harbor" {
			t.Errorf("scene = %q, want harbor", a.Scene)
		}
	})

	t.Run("emotion", func(t *testing.T) {
		a := Analyze(0, "Panic took her; she froze, afraid to breathe.", b)
		if a.Emotion != "tense" {
			t.Errorf("emotion = %q, want tense", a.Emotion)
		}
	})

	t.Run("actions", func(t *testing.T) {
		a := Analyze(0, "He grabbed the rope and ran for the stairs.", b)
		if len(a.Actions) < 2 {
			t.Errorf("actions = %v, want grabbed and ran", a.Actions)
		}
	})

	t.Run("transition cue", func(t *testing.T) {
		a := Analyze(1, "Meanwhile, across the bay, the storm gathered.", b)
		if !a.Transition {
			t.Error("expected transition cue")
		}
		a = Analyze(1, "The storm gathered across the bay.", b)
		if a.Transition {
			t.Error("did not expect transition cue")
		}
	})

	t.Run("empty input", func(t *testing.T) {
		a := Analyze(5, "   ", b)
		if a.Index != 5 || len(a.Characters) != 0 || a.Scene != "" {
			t.Errorf("unexpected analysis for blank text: %+v", a)
		}
	})
}
