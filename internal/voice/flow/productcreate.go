package flow

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/Avaneesh27/Haathse-Marketplace/internal/voice/interpret"
)

// Product creation field keys.
const (
	FieldProductName = "product_name"
	FieldDescription = "description"
	FieldPhoto       = "photo"
	FieldPrice       = "price"
	FieldQuantity    = "quantity"
	FieldUnit        = "unit"
	FieldCategory    = "category"
	FieldDelivery    = "delivery"
)

// NewProductCreation builds the seller listing conversation. The free-text
// description is mined for name, price, quantity, unit, and category; steps
// whose data was already extracted are skipped rather than re-asked.
func NewProductCreation(k *interpret.KeywordInterpreter, submit Submitter, spk Speaker, language string, logger *log.Logger) *Flow {
	steps := []Step{
		{
			ID: "description",
			Ask: func(f *Flow) string {
				return "Describe your product in one sentence: its name, price, quantity, and what kind of product it is."
			},
			Handle: func(ctx context.Context, f *Flow, in Input) Directive {
				text := strings.TrimSpace(in.Transcript)
				if text == "" {
					return Retry("I didn't catch that. Please describe your product.")
				}
				f.SetField(FieldDescription, text)
				d := k.ExtractProductDetails(text)
				if d.Name != "" {
					f.SetField(FieldProductName, d.Name)
				} else {
					f.SetField(FieldProductName, text)
				}
				if d.Price > 0 {
					f.SetField(FieldPrice, strconv.Itoa(d.Price))
				}
				if d.Quantity > 0 {
					f.SetField(FieldQuantity, strconv.Itoa(d.Quantity))
				}
				if d.Unit != "" {
					f.SetField(FieldUnit, d.Unit)
				}
				if d.Category != "" {
					f.SetField(FieldCategory, d.Category)
				}
				return Advance(fmt.Sprintf("Got it, %s.", f.Field(FieldProductName)))
			},
		},
		{
			ID: "photo",
			Ask: func(f *Flow) string {
				return "Now take a photo of your product with the camera button, then say done. Or say skip."
			},
			Handle: func(ctx context.Context, f *Flow, in Input) Directive {
				switch {
				case has(in.Transcript, "skip", "छोड़"):
					return Advance("Okay, no photo for now.")
				case has(in.Transcript, "done", "taken", "हो गया") || k.IsYes(in.Transcript):
					f.SetField(FieldPhoto, "attached")
					return Advance("Photo added.")
				}
				return Retry("Say done when the photo is taken, or skip to continue without one.")
			},
			Fallback: func(f *Flow) Directive {
				return Advance("Let's continue without a photo.")
			},
		},
		{
			ID:   "price",
			Skip: func(f *Flow) bool { return f.Field(FieldPrice) != "" },
			Ask:  func(f *Flow) string { return "What price do you want, in rupees?" },
			Handle: func(ctx context.Context, f *Flow, in Input) Directive {
				run := interpret.FirstDigitRun(in.Transcript)
				if run == "" {
					return Retry("Please say the price as a number, like 450 rupees.")
				}
				f.SetField(FieldPrice, run)
				return Advance(run + " rupees.")
			},
		},
		{
			ID:   "quantity",
			Skip: func(f *Flow) bool { return f.Field(FieldQuantity) != "" },
			Ask:  func(f *Flow) string { return "How many do you have, and in what unit? For example, 10 kg or 5 pieces." },
			Handle: func(ctx context.Context, f *Flow, in Input) Directive {
				run := interpret.FirstDigitRun(in.Transcript)
				if run == "" {
					return Retry("Please say the quantity as a number.")
				}
				f.SetField(FieldQuantity, run)
				if u, ok := k.MatchUnit(in.Transcript); ok {
					f.SetField(FieldUnit, u)
				}
				return Advance("")
			},
		},
		{
			ID:   "category",
			Skip: func(f *Flow) bool { return f.Field(FieldCategory) != "" },
			Ask: func(f *Flow) string {
				return "What kind of product is this? Handicraft, food, agriculture, textiles, or art?"
			},
			Handle: func(ctx context.Context, f *Flow, in Input) Directive {
				if c, ok := k.MatchCategory(in.Transcript); ok {
					f.SetField(FieldCategory, c)
					return Advance("")
				}
				f.SetField(FieldCategory, "other")
				return Advance("I'll list it under other products.")
			},
		},
		{
			ID: "delivery",
			Ask: func(f *Flow) string {
				return "How will buyers get it? Say pickup, courier, local delivery, or any mix."
			},
			Handle: func(ctx context.Context, f *Flow, in Input) Directive {
				opts := k.MatchDelivery(in.Transcript)
				if len(opts) == 0 {
					opts = []string{"PICKUP"}
					f.SetField(FieldDelivery, strings.Join(opts, ","))
					return Advance("I'll set it to pickup for now.")
				}
				f.SetField(FieldDelivery, strings.Join(opts, ","))
				return Advance("")
			},
		},
		{
			ID: "review",
			Ask: func(f *Flow) string {
				unit := f.Field(FieldUnit)
				if unit == "" {
					unit = "piece"
				}
				return fmt.Sprintf(
					"Ready to list: %s, %s rupees, %s %s, category %s, delivery by %s. Shall I publish it? Say yes or no.",
					f.Field(FieldProductName), orUnset(f.Field(FieldPrice)), orUnset(f.Field(FieldQuantity)), unit,
					f.Field(FieldCategory), strings.ToLower(f.Field(FieldDelivery)),
				)
			},
			Handle: func(ctx context.Context, f *Flow, in Input) Directive {
				switch {
				case k.IsYes(in.Transcript):
					if err := submit.Submit(ctx, f.Fields()); err != nil {
						return Retry("I couldn't publish the listing. Say yes to try again.")
					}
					return Complete("Your product is live on HaathSe. Buyers can find it now.")
				case k.IsNo(in.Transcript):
					return Restart("No problem, let's describe the product again.")
				}
				return Retry("Please say yes to publish, or no to start over.")
			},
		},
	}

	return newFlow(
		"product_create",
		"Let's list a new product.",
		language,
		"description",
		steps,
		spk,
		logger,
	)
}

func orUnset(v string) string {
	if v == "" {
		return "not set"
	}
	return v
}
