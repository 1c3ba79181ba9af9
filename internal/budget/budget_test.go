package budget

import (
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
)

func Test_Estimate(t *testing.T) {
	t.Parallel()
	cases := []struct {
		input string
		want  int
	}{
		{"", 0},
		{"a", 1},
		{"abcd", 1},
		{"abcdefgh", 2},
		{strings.Repeat("x", 400), 100},
	}
	for _, tc := range cases {
		if got := Estimate(tc.input); got != tc.want {
			t.Errorf("Estimate(%q) = %d, want %d", tc.input, got, tc.want)
		}
	}
}

func Test_EstimateMessages(t *testing.T) {
	t.Parallel()
	msgs := []*schema.Message{schema.UserMessage("hello world")}
	// 4 overhead + Estimate("user")=1 + Estimate("hello world")=2
	if got := EstimateMessages(msgs); got != 7 {
		t.Errorf("EstimateMessages = %d, want 7", got)
	}
}

func Test_FitBlocks_Disabled(t *testing.T) {
	t.Parallel()
	blocks := []string{strings.Repeat("a", 4000), strings.Repeat("b", 4000)}
	if got := FitBlocks("", blocks, 0); got != 2 {
		t.Errorf("FitBlocks with no budget = %d, want 2", got)
	}
}

func Test_FitBlocks_DropsTail(t *testing.T) {
	t.Parallel()
	blocks := []string{
		strings.Repeat("a", 400), // 100 tokens
		strings.Repeat("b", 400),
		strings.Repeat("c", 400),
	}
	// fixed 40 tokens + two blocks (2*101) = 242 fits in 250; the third does not.
	if got := FitBlocks(strings.Repeat("f", 160), blocks, 250); got != 2 {
		t.Errorf("FitBlocks = %d, want 2", got)
	}
}

func Test_FitBlocks_KeepsFirstBlock(t *testing.T) {
	t.Parallel()
	blocks := []string{strings.Repeat("a", 4000)}
	if got := FitBlocks("", blocks, 10); got != 1 {
		t.Errorf("FitBlocks = %d, want 1", got)
	}
}
