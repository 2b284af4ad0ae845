package interpret

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// KeywordPack holds the keyword vocabulary for one locale. Packs for all
// configured locales are merged before matching, so a Hindi speaker mixing
// in English words (or vice versa) still matches.
type KeywordPack struct {
	Locale string `yaml:"locale"`

	Product []string `yaml:"product"`
	Create  []string `yaml:"create"`
	Search  []string `yaml:"search"`
	Order   []string `yaml:"order"`
	Accept  []string `yaml:"accept"`
	Decline []string `yaml:"decline"`
	GoTo    []string `yaml:"go_to"`

	// Destinations maps a spoken place name to a route path.
	Destinations map[string]string `yaml:"destinations"`
	// Categories maps a spoken word to a canonical product category.
	Categories map[string]string `yaml:"categories"`
	// Units maps a spoken word to a canonical quantity unit.
	Units map[string]string `yaml:"units"`
	// Delivery maps a spoken word to a delivery option code.
	Delivery map[string]string `yaml:"delivery"`

	Yes []string `yaml:"yes"`
	No  []string `yaml:"no"`
}

// DefaultPacks returns the built-in English and Hindi vocabularies, mirroring
// the languages the marketplace launched with.
func DefaultPacks() []KeywordPack {
	return []KeywordPack{englishPack(), hindiPack()}
}

func englishPack() KeywordPack {
	return KeywordPack{
		Locale:  "en-IN",
		Product: []string{"product"},
		Create:  []string{"create", "add"},
		Search:  []string{"search", "find"},
		Order:   []string{"order"},
		Accept:  []string{"accept"},
		Decline: []string{"decline", "reject"},
		GoTo:    []string{"go to", "navigate"},
		Destinations: map[string]string{
			"home":    "/",
			"profile": "/profile",
			"seller":  "/seller/dashboard",
			"buyer":   "/buyer/dashboard",
		},
		Categories: map[string]string{
			"handicraft":  "handicraft",
			"food":        "food",
			"agriculture": "agriculture",
			"textile":     "textiles",
			"art":         "art",
			"other":       "other",
		},
		Units: map[string]string{
			"kg":    "kg",
			"kilo":  "kg",
			"gram":  "gram",
			"liter": "liter",
			"litre": "liter",
			"dozen": "dozen",
			"piece": "piece",
			"item":  "piece",
		},
		Delivery: map[string]string{
			"pickup":     "PICKUP",
			"collection": "PICKUP",
			"post":       "COURIER",
			"courier":    "COURIER",
			"local":      "LOCAL",
			"door":       "LOCAL",
		},
		Yes: []string{"yes", "correct"},
		No:  []string{"no", "wrong"},
	}
}

func hindiPack() KeywordPack {
	return KeywordPack{
		Locale:  "hi-IN",
		Product: []string{"उत्पाद"},
		Create:  []string{"बनाओ", "जोड़ें"},
		Search:  []string{"खोजें", "ढूंढें"},
		Order:   []string{"आदेश"},
		Accept:  []string{"स्वीकार"},
		Decline: []string{"अस्वीकार"},
		GoTo:    []string{"जाओ"},
		Destinations: map[string]string{
			"घर":      "/",
			"प्रोफाइल": "/profile",
			"विक्रेता": "/seller/dashboard",
			"खरीदार":  "/buyer/dashboard",
		},
		Categories: map[string]string{
			"हस्तशिल्प": "handicraft",
			"खाद्य":     "food",
			"कृषि":      "agriculture",
			"कपड़ा":     "textiles",
			"कला":       "art",
			"अन्य":      "other",
		},
		Delivery: map[string]string{
			"स्वयं":    "PICKUP",
			"खुद":      "PICKUP",
			"डाक":      "COURIER",
			"कूरियर":   "COURIER",
			"स्थानीय":  "LOCAL",
			"द्वार":    "LOCAL",
		},
		Yes: []string{"हां", "सही"},
		No:  []string{"नहीं", "गलत"},
	}
}

// LoadPacks reads additional keyword packs from a yaml file. The file holds a
// list of KeywordPack documents; loaded packs are appended to the built-in
// defaults so deployments can add locales without rebuilding.
func LoadPacks(path string) ([]KeywordPack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keyword packs: %w", err)
	}

	var file struct {
		Packs []KeywordPack `yaml:"packs"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse keyword packs: %w", err)
	}

	for i, p := range file.Packs {
		if p.Locale == "" {
			return nil, fmt.Errorf("keyword pack %d: missing locale", i)
		}
	}

	return append(DefaultPacks(), file.Packs...), nil
}

// merged flattens a set of packs into single lookup vocabularies.
type merged struct {
	product, create, search  []string
	order, accept, decline   []string
	goTo, yes, no            []string
	destinations, categories map[string]string
	units, delivery          map[string]string
}

func mergePacks(packs []KeywordPack) merged {
	m := merged{
		destinations: map[string]string{},
		categories:   map[string]string{},
		units:        map[string]string{},
		delivery:     map[string]string{},
	}
	for _, p := range packs {
		m.product = append(m.product, p.Product...)
		m.create = append(m.create, p.Create...)
		m.search = append(m.search, p.Search...)
		m.order = append(m.order, p.Order...)
		m.accept = append(m.accept, p.Accept...)
		m.decline = append(m.decline, p.Decline...)
		m.goTo = append(m.goTo, p.GoTo...)
		m.yes = append(m.yes, p.Yes...)
		m.no = append(m.no, p.No...)
		for k, v := range p.Destinations {
			m.destinations[k] = v
		}
		for k, v := range p.Categories {
			m.categories[k] = v
		}
		for k, v := range p.Units {
			m.units[k] = v
		}
		for k, v := range p.Delivery {
			m.delivery[k] = v
		}
	}
	return m
}
