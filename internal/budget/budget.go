// Package budget estimates token counts for prompts sent to the generative
// model and trims retrieved context to fit a budget. Backends use different
// tokenizers, so estimation is a character heuristic: 1 token ≈ 4 characters.
package budget

import (
	"github.com/cloudwego/eino/schema"
)

const (
	charsPerToken = 4

	// DefaultMaxContextTokens is the default input budget in tokens.
	// Fits 8k-context models with room for the answer.
	DefaultMaxContextTokens = 6000

	// blockSeparatorTokens accounts for the blank line between blocks.
	blockSeparatorTokens = 1
)

// Estimate returns a rough token count for s.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// EstimateMessages returns the estimated total token count for msgs,
// summing role and content plus a small per-message overhead.
func EstimateMessages(msgs []*schema.Message) int {
	total := 0
	for _, m := range msgs {
		total += 4
		total += Estimate(string(m.Role))
		total += Estimate(m.Content)
	}
	return total
}

// FitBlocks returns how many leading blocks fit in maxTokens alongside the
// fixed prompt text. Blocks are ranked, so trimming always drops from the
// tail. maxTokens <= 0 disables the budget. The first block is kept even
// when it alone exceeds the budget, so a question with evidence never loses
// all of it.
func FitBlocks(fixed string, blocks []string, maxTokens int) int {
	if maxTokens <= 0 || len(blocks) == 0 {
		return len(blocks)
	}
	used := Estimate(fixed)
	for i, b := range blocks {
		used += Estimate(b) + blockSeparatorTokens
		if used > maxTokens {
			return max(i, 1)
		}
	}
	return len(blocks)
}
