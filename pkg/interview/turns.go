package interview

import (
	"strings"
	"time"
)

const (
	// InterTurnPause separates consecutive sentences of one reply.
	InterTurnPause = 800 * time.Millisecond
	// FinalTurnPause trails the last sentence, leaving the candidate room
	// to start answering.
	FinalTurnPause = 2 * time.Second
)

// SplitTurns decomposes a reply into sentence-bounded turns. Every turn
// keeps its terminating punctuation; each turn carries InterTurnPause except
// the final one, which carries FinalTurnPause. Text without any sentence
// terminator becomes a single turn.
func SplitTurns(text string) []Turn {
	sentences := splitSentences(text)
	turns := make([]Turn, 0, len(sentences))
	for i, s := range sentences {
		pause := InterTurnPause
		if i == len(sentences)-1 {
			pause = FinalTurnPause
		}
		turns = append(turns, Turn{Text: s, PauseAfter: pause})
	}
	return turns
}

func splitSentences(text string) []string {
	var out []string
	var b strings.Builder
	runes := []rune(strings.TrimSpace(text))

	flush := func() {
		s := strings.TrimSpace(b.String())
		if s != "" {
			out = append(out, s)
		}
		b.Reset()
	}

	for i, r := range runes {
		b.WriteRune(r)
		if r != '.' && r != '?' && r != '!' {
			continue
		}
		// Consume runs of terminators ("..." or "?!") as one boundary.
		if i+1 < len(runes) {
			next := runes[i+1]
			if next == '.' || next == '?' || next == '!' {
				continue
			}
			// A terminator followed by a non-space is mid-token (e.g.
			// "3.14", "e.g."), not a sentence boundary.
			if next != ' ' && next != '\n' && next != '\t' {
				continue
			}
		}
		flush()
	}
	flush()

	if len(out) == 0 {
		return nil
	}
	return out
}
