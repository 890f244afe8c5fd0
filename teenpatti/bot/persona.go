package bot

// PersonalityProfile defines the tunable parameters for a RuleBrain.
type PersonalityProfile struct {
	Aggression float64 `json:"aggression"` // 0.0–1.0: tendency to raise vs call
	Tightness  float64 `json:"tightness"`  // 0.0–1.0: fold threshold width
	Curiosity  float64 `json:"curiosity"`  // 0.0–1.0: how early the bot peeks at its cards
	Randomness float64 `json:"randomness"` // 0.0–1.0: decision noise
}

// Persona defines a named bot character.
type Persona struct {
	ID      string             `json:"id"`
	Name    string             `json:"name"`
	Tagline string             `json:"tagline"`
	Brain   PersonalityProfile `json:"brain"`
}

// DefaultPersonas is the built-in roster, rotated through as bots spawn.
var DefaultPersonas = []*Persona{
	{
		ID:      "raju",
		Name:    "Raju",
		Tagline: "plays every hand blind until the pot gets scary",
		Brain:   PersonalityProfile{Aggression: 0.3, Tightness: 0.3, Curiosity: 0.2, Randomness: 0.4},
	},
	{
		ID:      "meena",
		Name:    "Meena",
		Tagline: "peeks early, folds anything below a pair",
		Brain:   PersonalityProfile{Aggression: 0.4, Tightness: 0.8, Curiosity: 0.9, Randomness: 0.2},
	},
	{
		ID:      "vikram",
		Name:    "Vikram",
		Tagline: "raises first, thinks later",
		Brain:   PersonalityProfile{Aggression: 0.9, Tightness: 0.2, Curiosity: 0.6, Randomness: 0.5},
	},
	{
		ID:      "lakshmi",
		Name:    "Lakshmi",
		Tagline: "patient, punishes loose raisers",
		Brain:   PersonalityProfile{Aggression: 0.6, Tightness: 0.6, Curiosity: 0.7, Randomness: 0.1},
	},
}
