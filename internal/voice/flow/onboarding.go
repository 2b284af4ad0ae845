package flow

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/Avaneesh27/Haathse-Marketplace/internal/voice/interpret"
)

// Onboarding field keys.
const (
	FieldLanguage = "language"
	FieldName     = "name"
	FieldVillage  = "village"
	FieldDistrict = "district"
	FieldRole     = "role"
	FieldPhone    = "phone"
	FieldAadhaar  = "aadhaar_last4"
)

// NewOnboarding builds the account setup conversation: language, name,
// village, district, role, phone, Aadhaar last-4, then a review and submit.
func NewOnboarding(k *interpret.KeywordInterpreter, submit Submitter, spk Speaker, language string, logger *log.Logger) *Flow {
	steps := []Step{
		{
			ID:  "language",
			Ask: func(f *Flow) string { return "Which language would you like to use? Say Hindi or English." },
			Handle: func(ctx context.Context, f *Flow, in Input) Directive {
				switch {
				case has(in.Transcript, "hindi", "हिंदी", "हिन्दी"):
					f.SetField(FieldLanguage, "hi")
					return Advance("ठीक है, हम हिंदी में बात करेंगे।")
				case has(in.Transcript, "english", "अंग्रेज़ी"):
					f.SetField(FieldLanguage, "en")
					return Advance("Okay, we will continue in English.")
				}
				return Retry("Please say Hindi or English.")
			},
			Fallback: func(f *Flow) Directive {
				f.SetField(FieldLanguage, "en")
				return Advance("I'll continue in English for now.")
			},
		},
		{
			ID:  "name",
			Ask: func(f *Flow) string { return "What is your name?" },
			Handle: func(ctx context.Context, f *Flow, in Input) Directive {
				name := strings.TrimSpace(stripNamePrefix(in.Transcript))
				if name == "" {
					return Retry("I didn't catch that. Please say your name.")
				}
				f.SetField(FieldName, name)
				return Advance(fmt.Sprintf("Nice to meet you, %s.", name))
			},
		},
		{
			ID:  "village",
			Ask: func(f *Flow) string { return "Which village are you from?" },
			Handle: func(ctx context.Context, f *Flow, in Input) Directive {
				v := strings.TrimSpace(in.Transcript)
				if v == "" {
					return Retry("Please say the name of your village.")
				}
				f.SetField(FieldVillage, v)
				return Advance("")
			},
		},
		{
			ID:  "district",
			Ask: func(f *Flow) string { return "And which district is that in?" },
			Handle: func(ctx context.Context, f *Flow, in Input) Directive {
				d := strings.TrimSpace(in.Transcript)
				if d == "" {
					return Retry("Please say your district.")
				}
				f.SetField(FieldDistrict, d)
				return Advance("")
			},
		},
		{
			ID:  "role",
			Ask: func(f *Flow) string { return "Do you want to sell your products, or buy from others?" },
			Handle: func(ctx context.Context, f *Flow, in Input) Directive {
				switch {
				case has(in.Transcript, "sell", "विक्रेता", "बेच"):
					f.SetField(FieldRole, "seller")
					return Advance("Great, I'll set you up as a seller.")
				case has(in.Transcript, "buy", "खरीद"):
					f.SetField(FieldRole, "buyer")
					return Advance("Great, I'll set you up as a buyer.")
				}
				return Retry("Please say sell or buy.")
			},
			Fallback: func(f *Flow) Directive {
				f.SetField(FieldRole, "buyer")
				return Advance("I'll set you up as a buyer. You can change this later.")
			},
		},
		{
			ID:  "phone",
			Ask: func(f *Flow) string { return "Please say your 10 digit mobile number." },
			Handle: func(ctx context.Context, f *Flow, in Input) Directive {
				run := interpret.FirstDigitRun(in.Transcript)
				if len(run) != 10 {
					return Retry("That doesn't look like a 10 digit number. Please say all 10 digits of your mobile number.")
				}
				f.SetField(FieldPhone, run)
				return Advance("Phone number " + spacedDigits(run) + ". Got it.")
			},
		},
		{
			ID:  "aadhaar",
			Ask: func(f *Flow) string { return "Please say the last 4 digits of your Aadhaar number." },
			Handle: func(ctx context.Context, f *Flow, in Input) Directive {
				digits := interpret.Digits(in.Transcript)
				if len(digits) < 4 {
					return Retry("I need 4 digits. Please say the last 4 digits of your Aadhaar.")
				}
				last4 := digits[len(digits)-4:]
				f.SetField(FieldAadhaar, last4)
				return Advance("Aadhaar ending in " + spacedDigits(last4) + ".")
			},
		},
		{
			ID: "review",
			Ask: func(f *Flow) string {
				return fmt.Sprintf(
					"Let me confirm. Name %s, from %s in %s district, joining as a %s. Mobile %s, Aadhaar ending %s. Is that correct? Say yes or no.",
					f.Field(FieldName), f.Field(FieldVillage), f.Field(FieldDistrict), f.Field(FieldRole),
					spacedDigits(f.Field(FieldPhone)), spacedDigits(f.Field(FieldAadhaar)),
				)
			},
			Handle: func(ctx context.Context, f *Flow, in Input) Directive {
				switch {
				case k.IsYes(in.Transcript):
					if err := submit.Submit(ctx, f.Fields()); err != nil {
						return Retry("Something went wrong saving your account. Say yes to try again.")
					}
					return Complete(fmt.Sprintf("Welcome to HaathSe, %s! Your account is ready.", f.Field(FieldName)))
				case k.IsNo(in.Transcript):
					return Restart("Okay, let's start over from the beginning.")
				}
				return Retry("Please say yes to confirm, or no to start over.")
			},
		},
	}

	return newFlow(
		"onboarding",
		"Welcome to HaathSe, the voice marketplace. Let's set up your account.",
		language,
		"language",
		steps,
		spk,
		logger,
	)
}

var namePrefixes = []string{"my name is", "i am", "this is", "मेरा नाम"}

func stripNamePrefix(t string) string {
	t = strings.TrimSpace(t)
	lower := strings.ToLower(t)
	for _, p := range namePrefixes {
		if strings.HasPrefix(lower, p) {
			return strings.TrimSpace(t[len(p):])
		}
	}
	return t
}

// spacedDigits reads digits back one at a time, the way a person would
// confirm a number over the phone.
func spacedDigits(s string) string {
	if s == "" {
		return ""
	}
	parts := make([]string, 0, len(s))
	for _, r := range s {
		parts = append(parts, string(r))
	}
	return strings.Join(parts, " ")
}

func has(t string, keywords ...string) bool {
	lower := strings.ToLower(t)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
