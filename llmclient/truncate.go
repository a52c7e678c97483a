package llmclient

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// budgetedTokenizer wraps tiktoken-go the way the teacher's
// llm/tokenizer.TiktokenTokenizer does: lazy-initialized encoding, model
// name kept only for the encoding lookup.
type budgetedTokenizer struct {
	encoding string
	enc      *tiktoken.Tiktoken
	once     sync.Once
	initErr  error
}

func newBudgetedTokenizer(model string) *budgetedTokenizer {
	encoding := "cl100k_base"
	switch model {
	case "gpt-4o", "gpt-4o-mini":
		encoding = "o200k_base"
	}
	return &budgetedTokenizer{encoding: encoding}
}

func (t *budgetedTokenizer) init() error {
	t.once.Do(func() {
		enc, err := tiktoken.GetEncoding(t.encoding)
		if err != nil {
			t.initErr = fmt.Errorf("llmclient: init tiktoken encoding %s: %w", t.encoding, err)
			return
		}
		t.enc = enc
	})
	return t.initErr
}

func (t *budgetedTokenizer) count(text string) (int, error) {
	if err := t.init(); err != nil {
		return 0, err
	}
	return len(t.enc.Encode(text, nil, nil)), nil
}

// truncateHeadTail keeps the first budget/2 and the last budget-budget/2
// characters of text and drops the middle, replacing it with a marker.
// Deterministic: the same transcript always truncates to the same result,
// unlike a summarizing truncation.
func (t *budgetedTokenizer) truncateHeadTail(text string, budget int) (string, error) {
	if budget <= 0 {
		return text, nil
	}

	chars := []rune(text)
	if len(chars) <= budget {
		return text, nil
	}

	headCount := budget / 2
	tailCount := budget - headCount
	head := string(chars[:headCount])
	tail := string(chars[len(chars)-tailCount:])
	return head + "\n...[truncated]...\n" + tail, nil
}
