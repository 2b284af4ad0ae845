package interpret

import "testing"

func TestFirstDigitRun(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"450 rupees", "450"},
		{"price is 1200, quantity 5", "1200"},
		{"no numbers here", ""},
		{"", ""},
		{"9876543210", "9876543210"},
		{"मेरा नंबर ९८७६५४३२१० है", "9876543210"},
		{"४५० rupees", "450"},
	}
	for _, tt := range tests {
		if got := FirstDigitRun(tt.text); got != tt.want {
			t.Errorf("FirstDigitRun(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestDigits(t *testing.T) {
	if got := Digits("my number is 98765 432 10 please"); got != "9876543210" {
		t.Errorf("Digits = %q, want 9876543210", got)
	}
	if got := Digits("none"); got != "" {
		t.Errorf("Digits = %q, want empty", got)
	}
	if got := Digits("आधार के आखिरी अंक १२३४ हैं"); got != "1234" {
		t.Errorf("Digits = %q, want 1234", got)
	}
}

func TestExtractProductDetails(t *testing.T) {
	k := New(nil)

	tests := []struct {
		name string
		text string
		want ProductDetails
	}{
		{
			name: "full description",
			text: "Handcrafted Pottery Bowl, 450 rupees, 5 pieces, handicraft",
			want: ProductDetails{
				Name:     "Handcrafted Pottery Bowl",
				Price:    450,
				Quantity: 5,
				Unit:     "piece",
				Category: "handicraft",
			},
		},
		{
			name: "hindi category and units",
			text: "शहद, 350, 10 kg, खाद्य",
			want: ProductDetails{
				Name:     "शहद",
				Price:    350,
				Quantity: 10,
				Unit:     "kg",
				Category: "food",
			},
		},
		{
			name: "name only",
			text: "Embroidered wall hanging",
			want: ProductDetails{
				Name: "Embroidered wall hanging",
			},
		},
		{
			name: "price without quantity",
			text: "Cotton saree, 550 rupees",
			want: ProductDetails{
				Name:  "Cotton saree",
				Price: 550,
			},
		},
		{
			name: "empty",
			text: "",
			want: ProductDetails{},
		},
		{
			name: "numeric leading segment has no name",
			text: "450, 5 pieces",
			want: ProductDetails{
				Price:    450,
				Quantity: 5,
				Unit:     "piece",
			},
		},
		{
			name: "devanagari numerals",
			text: "मिट्टी का दीपक, ४५० rupees, ५ piece",
			want: ProductDetails{
				Name:     "मिट्टी का दीपक",
				Price:    450,
				Quantity: 5,
				Unit:     "piece",
			},
		},
		{
			name: "devanagari numeric leading segment has no name",
			text: "४५०, ५ piece",
			want: ProductDetails{
				Price:    450,
				Quantity: 5,
				Unit:     "piece",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := k.ExtractProductDetails(tt.text)
			if got.Name != tt.want.Name {
				t.Errorf("Name = %q, want %q", got.Name, tt.want.Name)
			}
			if got.Price != tt.want.Price {
				t.Errorf("Price = %d, want %d", got.Price, tt.want.Price)
			}
			if got.Quantity != tt.want.Quantity {
				t.Errorf("Quantity = %d, want %d", got.Quantity, tt.want.Quantity)
			}
			if got.Unit != tt.want.Unit {
				t.Errorf("Unit = %q, want %q", got.Unit, tt.want.Unit)
			}
			if got.Category != tt.want.Category {
				t.Errorf("Category = %q, want %q", got.Category, tt.want.Category)
			}
		})
	}
}
