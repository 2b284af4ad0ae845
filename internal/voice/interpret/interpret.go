// Package interpret turns free transcript text into structured commands.
//
// The interpreter is deliberately simple: lower-cased keyword membership
// checked in a fixed priority order (product intents, then order intents,
// then navigation). It is total: every input string, including the empty
// string, yields exactly one Command and never an error. This keeps the
// conversation flows fully testable with exact expected outputs.
package interpret

import "context"

// Intent identifies what the speaker wants to do.
type Intent string

const (
	IntentNavigate       Intent = "NAVIGATE"
	IntentCreateProduct  Intent = "CREATE_PRODUCT"
	IntentSearchProducts Intent = "SEARCH_PRODUCTS"
	IntentAcceptOrder    Intent = "ACCEPT_ORDER"
	IntentDeclineOrder   Intent = "DECLINE_ORDER"
	IntentUnknown        Intent = "UNKNOWN"
	IntentError          Intent = "ERROR"
)

// Command is the structured result of interpreting one transcript.
type Command struct {
	Intent Intent `json:"intent"`
	// Parameters depend on the intent: "path" for NAVIGATE,
	// "category" for SEARCH_PRODUCTS.
	Parameters map[string]string `json:"parameters"`
	// SpokenResponse is read aloud to acknowledge the command.
	SpokenResponse string `json:"spoken_response"`
}

// Interpreter converts transcript text into a Command. Implementations must
// be total: they return a Command with IntentUnknown or IntentError rather
// than failing, so callers can follow an at-most-once-per-utterance
// discipline without error branches.
type Interpreter interface {
	Interpret(ctx context.Context, text string) Command
}

// ProductDetails holds structured fields extracted from a free-text
// product description.
type ProductDetails struct {
	Name        string
	Description string
	Category    string
	Price       int
	Quantity    int
	Unit        string
}
