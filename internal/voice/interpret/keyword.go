package interpret

import (
	"context"
	"sort"
	"strings"
)

// KeywordInterpreter classifies transcripts by keyword membership over the
// merged locale packs. Matching priority is fixed: product intents first,
// then order intents, then navigation. All methods are safe for concurrent
// use; the interpreter is immutable after construction.
type KeywordInterpreter struct {
	vocab merged
}

// New builds a KeywordInterpreter from the given packs. With no packs the
// built-in defaults are used.
func New(packs []KeywordPack) *KeywordInterpreter {
	if len(packs) == 0 {
		packs = DefaultPacks()
	}
	return &KeywordInterpreter{vocab: mergePacks(packs)}
}

/// Interpret classifies text into exactly one Command. It never fails: text
// that matches nothing yields IntentUnknown.
func (k *KeywordInterpreter) Interpret(_ context.Context, text string) Command {
	lower := strings.ToLower(text)

	// A product keyword claims the utterance outright: without a create or
	// search keyword alongside it the command is unknown, never a fall
	// through to order or navigation matching.
	if containsAny(lower, k.vocab.product) {
		if containsAny(lower, k.vocab.create) {
			return Command{
				Intent:         IntentCreateProduct,
				Parameters:     map[string]string{},
				SpokenResponse: "Let's create a new product",
			}
		}
		if containsAny(lower, k.vocab.search) {
			params := map[string]string{}
			if cat, ok := k.MatchCategory(lower); ok {
				params["category"] = cat
			}
			return Command{
				Intent:         IntentSearchProducts,
				Parameters:     params,
				SpokenResponse: "Searching for products",
			}
		}
		return Command{
			Intent:         IntentUnknown,
			Parameters:     map[string]string{},
			SpokenResponse: "I didn't understand that",
		}
	}

	if containsAny(lower, k.vocab.order) {
		if containsAny(lower, k.vocab.accept) {
			return Command{
				Intent:         IntentAcceptOrder,
				Parameters:     map[string]string{},
				SpokenResponse: "Order accepted",
			}
		}
		if containsAny(lower, k.vocab.decline) {
			return Command{
				Intent:         IntentDeclineOrder,
				Parameters:     map[string]string{},
				SpokenResponse: "Order declined",
			}
		}
	}

	if containsAny(lower, k.vocab.goTo) {
		params := map[string]string{}
		response := "I understood your request"
		for _, place := range sortedKeys(k.vocab.destinations) {
			if strings.Contains(lower, place) {
				params["path"] = k.vocab.destinations[place]
				response = "Navigating to " + place
				break
			}
		}
		return Command{
			Intent:         IntentNavigate,
			Parameters:     params,
			SpokenResponse: response,
		}
	}

	return Command{
		Intent:         IntentUnknown,
		Parameters:     map[string]string{},
		SpokenResponse: "I didn't understand that",
	}
}

// MatchCategory finds the canonical category named in text, if any.
// Keys are checked in sorted order so results are deterministic when a
// transcript happens to name more than one.
func (k *KeywordInterpreter) MatchCategory(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, key := range sortedKeys(k.vocab.categories) {
		if strings.Contains(lower, key) {
			return k.vocab.categories[key], true
		}
	}
	return "", false
}

// MatchUnit finds the canonical quantity unit named in text, if any.
func (k *KeywordInterpreter) MatchUnit(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, key := range sortedKeys(k.vocab.units) {
		if strings.Contains(lower, key) {
			return k.vocab.units[key], true
		}
	}
	return "", false
}

// deliveryOrder fixes the order options appear in MatchDelivery results.
var deliveryOrder = []string{"PICKUP", "COURIER", "LOCAL"}

// MatchDelivery returns every delivery option named in text, in a fixed
// canonical order. Multiple options may match ("pickup or courier").
func (k *KeywordInterpreter) MatchDelivery(text string) []string {
	lower := strings.ToLower(text)
	named := map[string]bool{}
	for key, option := range k.vocab.delivery {
		if strings.Contains(lower, key) {
			named[option] = true
		}
	}
	var options []string
	for _, option := range deliveryOrder {
		if named[option] {
			options = append(options, option)
		}
	}
	return options
}

// IsYes reports whether text affirms a yes/no question.
func (k *KeywordInterpreter) IsYes(text string) bool {
	return containsAny(strings.ToLower(text), k.vocab.yes)
}

// IsNo reports whether text rejects a yes/no question.
func (k *KeywordInterpreter) IsNo(text string) bool {
	return containsAny(strings.ToLower(text), k.vocab.no)
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
