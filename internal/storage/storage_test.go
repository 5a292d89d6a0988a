package storage

import (
	"strings"
	"testing"
)

func TestKeyHelpers(t *testing.T) {
	if got := SlideImageKey("deck-1", 3, 0); got != "decks/deck-1/slides/3/images/0.png" {
		t.Errorf("SlideImageKey = %q", got)
	}
	if got := SlideRenderKey("deck-1", 3); got != "decks/deck-1/slides/3/slide.png" {
		t.Errorf("SlideRenderKey = %q", got)
	}
}

func TestArtifactKeysLiveUnderSweepPrefix(t *testing.T) {
	prefix := deckArtifactPrefix("deck-1")
	keys := []string{
		SlideImageKey("deck-1", 1, 0),
		SlideImageKey("deck-1", 12, 4),
		SlideRenderKey("deck-1", 1),
	}
	for _, key := range keys {
		if !strings.HasPrefix(key, prefix) {
			t.Errorf("key %q escapes sweep prefix %q", key, prefix)
		}
	}
}

func TestSweepPrefixIsDeckScoped(t *testing.T) {
	// A deck's sweep must never be able to list a sibling deck's artifacts.
	if strings.HasPrefix(SlideRenderKey("deck-12", 1), deckArtifactPrefix("deck-1")) {
		t.Error("sweep prefix for deck-1 matches artifacts of deck-12")
	}
}
