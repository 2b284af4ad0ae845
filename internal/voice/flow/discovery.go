package flow

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/Avaneesh27/Haathse-Marketplace/internal/voice/interpret"
)

// SearchResult is one product a buyer can browse by voice.
type SearchResult struct {
	ID     string
	Name   string
	Price  int
	Unit   string
	Seller string
	Phone  string
}

// Searcher finds products for a spoken query.
type Searcher interface {
	Search(ctx context.Context, query string) ([]SearchResult, error)
}

// Discovery is the buyer-side conversation: search, browse the result list
// with next/previous, inspect details, contact the seller, place an order.
type Discovery struct {
	*Flow
	results []SearchResult
	index   int
}

// Results returns the current result list.
func (d *Discovery) Results() []SearchResult { return d.results }

// Index returns the browse cursor position.
func (d *Discovery) Index() int { return d.index }

func (d *Discovery) current() (SearchResult, bool) {
	if d.index < 0 || d.index >= len(d.results) {
		return SearchResult{}, false
	}
	return d.results[d.index], true
}

// NewDiscovery builds the product discovery conversation.
func NewDiscovery(k *interpret.KeywordInterpreter, search Searcher, submit Submitter, spk Speaker, language string, logger *log.Logger) *Discovery {
	d := &Discovery{}

	steps := []Step{
		{
			ID:  "search",
			Ask: func(f *Flow) string { return "What are you looking for?" },
			Handle: func(ctx context.Context, f *Flow, in Input) Directive {
				query := strings.TrimSpace(in.Transcript)
				if query == "" {
					return Retry("I didn't catch that. What would you like to find?")
				}
				results, err := search.Search(ctx, query)
				if err != nil {
					return Retry("I couldn't search right now. Please try again.")
				}
				if len(results) == 0 {
					return Hold(fmt.Sprintf("I found nothing for %s. Try different words.", query))
				}
				d.results = results
				d.index = 0
				f.SetField("query", query)
				return Goto("browse", fmt.Sprintf("I found %d products.", len(results)))
			},
		},
		{
			ID: "browse",
			Ask: func(f *Flow) string {
				item, ok := d.current()
				if !ok {
					return "Say search to look for something else."
				}
				return fmt.Sprintf(
					"Item %d of %d: %s, %d rupees, from %s. Say next, previous, details, or stop.",
					d.index+1, len(d.results), item.Name, item.Price, item.Seller,
				)
			},
			Handle: func(ctx context.Context, f *Flow, in Input) Directive {
				switch {
				case has(in.Transcript, "next", "अगला", "आगे"):
					if d.index >= len(d.results)-1 {
						return Hold("You're at the last item.")
					}
					d.index++
					return Hold("")
				case has(in.Transcript, "previous", "पिछला", "पीछे"):
					if d.index == 0 {
						return Hold("You're already at the first item.")
					}
					d.index--
					return Hold("")
				case has(in.Transcript, "detail", "विवरण") || k.IsYes(in.Transcript):
					return Goto("detail", "")
				case has(in.Transcript, "stop", "cancel", "बंद", "रुको"):
					return Complete("Okay. Come back any time.")
				}
				return Hold("Say next, previous, details, or stop.")
			},
		},
		{
			ID: "detail",
			Ask: func(f *Flow) string {
				item, ok := d.current()
				if !ok {
					return "Say back to return to the list."
				}
				return fmt.Sprintf(
					"%s, %d rupees per %s, sold by %s. Say contact to reach the seller, buy to place an order, or back.",
					item.Name, item.Price, orPiece(item.Unit), item.Seller,
				)
			},
			Handle: func(ctx context.Context, f *Flow, in Input) Directive {
				switch {
				case has(in.Transcript, "contact", "संपर्क", "call", "फोन"):
					return Goto("contact", "")
				case has(in.Transcript, "buy", "order", "खरीद", "आदेश") || k.IsYes(in.Transcript):
					return Goto("confirm", "")
				case has(in.Transcript, "back", "वापस"):
					return Goto("browse", "")
				}
				return Hold("Say contact, buy, or back.")
			},
		},
		{
			ID: "contact",
			Ask: func(f *Flow) string {
				item, ok := d.current()
				if !ok || item.Phone == "" {
					return "The seller has no contact number listed. Say back to return."
				}
				return fmt.Sprintf(
					"You can reach %s at %s. Say buy to place an order, or back.",
					item.Seller, spacedDigits(item.Phone),
				)
			},
			Handle: func(ctx context.Context, f *Flow, in Input) Directive {
				switch {
				case has(in.Transcript, "buy", "order", "खरीद"):
					return Goto("confirm", "")
				case has(in.Transcript, "back", "वापस"):
					return Goto("browse", "")
				}
				return Hold("Say buy or back.")
			},
		},
		{
			ID: "confirm",
			Ask: func(f *Flow) string {
				item, ok := d.current()
				if !ok {
					return "Say back to return to the list."
				}
				return fmt.Sprintf("Place an order for %s at %d rupees? Say yes to confirm, or no to cancel.", item.Name, item.Price)
			},
			Handle: func(ctx context.Context, f *Flow, in Input) Directive {
				item, ok := d.current()
				if !ok {
					return Goto("browse", "")
				}
				switch {
				case k.IsYes(in.Transcript):
					fields := map[string]string{
						"product_id":   item.ID,
						"product_name": item.Name,
						"price":        strconv.Itoa(item.Price),
					}
					if err := submit.Submit(ctx, fields); err != nil {
						return Retry("I couldn't place the order. Say yes to try again.")
					}
					return Complete(fmt.Sprintf("Order placed for %s. The seller will be notified.", item.Name))
				case k.IsNo(in.Transcript):
					return Goto("browse", "Order cancelled.")
				}
				return Retry("Please say yes to confirm, or no to cancel.")
			},
		},
	}

	d.Flow = newFlow(
		"discovery",
		"",
		language,
		"search",
		steps,
		spk,
		logger,
	)
	return d
}

func orPiece(unit string) string {
	if unit == "" {
		return "piece"
	}
	return unit
}
