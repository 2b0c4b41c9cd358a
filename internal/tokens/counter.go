// Package tokens counts chat tokens so that conversation history sent to the
// language model stays within a budget.
package tokens

import (
	"strings"

	"github.com/tiktoken-go/tokenizer"

	"github.com/tjfontaine/jarvis/internal/core/ports"
)

// Per-message overhead of the chat format: 3 tokens of framing plus 1 for
// the role.
const (
	tokensPerMessage = 3
	tokensPerRole    = 1
)

// Counter counts tokens with the tiktoken encoding of one model.
type Counter struct {
	codec tokenizer.Codec
}

// NewCounter returns a counter for model. Unknown models use o200k_base.
func NewCounter(model string) *Counter {
	codec, err := tokenizer.ForModel(mapModelName(model))
	if err != nil {
		codec, err = tokenizer.Get(modelToEncoding(model))
	}
	if err != nil {
		return &Counter{}
	}
	return &Counter{codec: codec}
}

// Count returns the number of tokens in text. Without a codec it estimates
// four bytes per token.
func (c *Counter) Count(text string) int {
	if c.codec == nil {
		return (len(text) + 3) / 4
	}
	ids, _, err := c.codec.Encode(text)
	if err != nil {
		return (len(text) + 3) / 4
	}
	return len(ids)
}

// CountMessage includes the chat framing overhead.
func (c *Counter) CountMessage(m ports.ChatMessage) int {
	return tokensPerMessage + tokensPerRole + c.Count(m.Content)
}

// Trim drops the oldest messages until the rest fit in budget. The newest
// message is always kept. A budget <= 0 disables trimming.
func (c *Counter) Trim(msgs []ports.ChatMessage, budget int) []ports.ChatMessage {
	if budget <= 0 || len(msgs) == 0 {
		return msgs
	}

	total := 0
	start := len(msgs)
	for i := len(msgs) - 1; i >= 0; i-- {
		n := c.CountMessage(msgs[i])
		if total+n > budget && i < len(msgs)-1 {
			break
		}
		total += n
		start = i
	}
	return msgs[start:]
}

// mapModelName maps a model string to tokenizer.Model
func mapModelName(model string) tokenizer.Model {
	model = strings.ToLower(model)

	switch {
	case model == "gpt-5-mini" || strings.HasPrefix(model, "gpt-5-mini-"):
		return tokenizer.GPT5Mini
	case model == "gpt-5-nano" || strings.HasPrefix(model, "gpt-5-nano-"):
		return tokenizer.GPT5Nano
	case strings.HasPrefix(model, "gpt-5"):
		return tokenizer.GPT5
	case strings.HasPrefix(model, "gpt-4.1") || strings.HasPrefix(model, "gpt-41"):
		return tokenizer.GPT41
	case strings.HasPrefix(model, "gpt-4o"):
		return tokenizer.GPT4o
	case strings.HasPrefix(model, "gpt-4"):
		return tokenizer.GPT4
	case strings.HasPrefix(model, "gpt-3.5"):
		return tokenizer.GPT35Turbo
	default:
		return tokenizer.Model(model)
	}
}

// modelToEncoding maps model names to encoding names for fallback.
//
// Encoding reference:
// - O200kBase: GPT-5, GPT-4.1, GPT-4o and newer models
// - Cl100kBase: GPT-4, GPT-3.5-turbo
func modelToEncoding(model string) tokenizer.Encoding {
	model = strings.ToLower(model)

	switch {
	case strings.HasPrefix(model, "gpt-4o"), strings.HasPrefix(model, "gpt-4.1"):
		return tokenizer.O200kBase
	case strings.HasPrefix(model, "gpt-4"), strings.HasPrefix(model, "gpt-3.5"):
		return tokenizer.Cl100kBase
	default:
		// Local and future models: o200k_base is the closest guess.
		return tokenizer.O200kBase
	}
}
