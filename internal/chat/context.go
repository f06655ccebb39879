package chat

import (
	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog/log"

	"github.com/taskpilot/internal/reasoning"
	"github.com/taskpilot/pkg/models"
)

// Assembler reconstructs the bounded history for one reasoning call. It is
// pure given its inputs: no I/O, deterministic, independently testable.
type Assembler struct {
	budget int
	count  func(string) int
}

// NewAssembler creates an assembler with the given token budget. Token
// counting uses the cl100k_base encoding; if the encoding is unavailable the
// assembler falls back to a chars/4 estimate so turns never fail on
// tokenizer availability.
func NewAssembler(budget int) *Assembler {
	count := estimateTokens
	if enc, err := tiktoken.GetEncoding("cl100k_base"); err == nil {
		count = func(s string) int {
			return len(enc.Encode(s, nil, nil))
		}
	} else {
		log.Warn().Err(err).Msg("tiktoken encoding unavailable, using character estimate")
	}
	return &Assembler{budget: budget, count: count}
}

// Assemble bounds history to the token budget. The newest message (the
// user's current input, last in history) is never dropped. Older messages
// are dropped oldest-first in user+assistant pairs to preserve turn
// structure, and the head of the result is never an orphaned assistant
// message. The returned flag reports whether anything was dropped.
func (a *Assembler) Assemble(history []models.Message) ([]models.Message, bool) {
	msgs := make([]models.Message, len(history))
	copy(msgs, history)

	truncated := false
	for len(msgs) > 1 && a.totalTokens(msgs) > a.budget {
		drop := 1
		if len(msgs) > 2 && msgs[0].Role == models.RoleUser && msgs[1].Role == models.RoleAssistant {
			drop = 2
		}
		msgs = msgs[drop:]
		truncated = true
	}

	// A reply with no preceding user message would break turn structure.
	for len(msgs) > 1 && msgs[0].Role == models.RoleAssistant {
		msgs = msgs[1:]
		truncated = true
	}

	return msgs, truncated
}

func (a *Assembler) totalTokens(msgs []models.Message) int {
	total := a.count(reasoning.SystemPrompt)
	for _, m := range msgs {
		total += a.count(m.Content)
	}
	return total
}

func estimateTokens(s string) int {
	return len(s)/4 + 1
}
