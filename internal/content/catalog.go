package content

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/pefman/ai-fight-club/internal/engine"
	"github.com/pefman/ai-fight-club/internal/models"
)

//go:embed default.yaml
var defaultYAML []byte

// Catalog is the static game content: what players rate, pick and answer.
type Catalog struct {
	Traits     []models.Trait     `yaml:"traits" json:"traits" validate:"min=1,dive"`
	Attitudes  []models.Attitude  `yaml:"attitudes" json:"attitudes" validate:"min=1,dive"`
	FocusAreas []models.FocusArea `yaml:"focus_areas" json:"focus_areas" validate:"min=1,dive"`
	Challenges []models.Challenge `yaml:"challenges" json:"-" validate:"dive"`
	Rivals     []models.Rival     `yaml:"rivals" json:"-" validate:"min=1,dive"`

	challengeIdx map[string]*models.Challenge // focus|round
}

// Default returns the embedded catalog.
func Default() (*Catalog, error) { return Parse(defaultYAML) }

// Load reads a catalog file, or the embedded default when path is empty.
func Load(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read content %s: %w", path, err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse content: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	c.index()
	return &c, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field rules and cross references: unique ids, challenges
// pointing at known focus areas, parseable rival ranges.
func (c *Catalog) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid content: %w", err)
	}
	if err := unique("trait", len(c.Traits), func(i int) string { return c.Traits[i].ID }); err != nil {
		return err
	}
	if err := unique("attitude", len(c.Attitudes), func(i int) string { return c.Attitudes[i].ID }); err != nil {
		return err
	}
	if err := unique("focus area", len(c.FocusAreas), func(i int) string { return c.FocusAreas[i].ID }); err != nil {
		return err
	}
	if err := unique("challenge", len(c.Challenges), func(i int) string { return c.Challenges[i].ID }); err != nil {
		return err
	}
	if err := unique("rival", len(c.Rivals), func(i int) string { return c.Rivals[i].ID }); err != nil {
		return err
	}
	slots := map[string]string{}
	for _, ch := range c.Challenges {
		if c.Focus(ch.FocusID) == nil {
			return fmt.Errorf("invalid content: challenge %q references unknown focus %q", ch.ID, ch.FocusID)
		}
		key := slotKey(ch.FocusID, ch.Round)
		if prev, ok := slots[key]; ok {
			return fmt.Errorf("invalid content: challenges %q and %q share focus %q round %d", prev, ch.ID, ch.FocusID, ch.Round)
		}
		slots[key] = ch.ID
	}
	for _, rv := range c.Rivals {
		if _, _, ok := engine.ParseRange(rv.ScoreRange); !ok {
			return fmt.Errorf("invalid content: rival %q has bad score_range %q", rv.ID, rv.ScoreRange)
		}
	}
	return nil
}

func unique(what string, n int, id func(int) string) error {
	seen := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		k := strings.ToLower(id(i))
		if seen[k] {
			return fmt.Errorf("invalid content: duplicate %s id %q", what, id(i))
		}
		seen[k] = true
	}
	return nil
}

func slotKey(focus string, round int) string {
	return fmt.Sprintf("%s|%d", strings.ToLower(focus), round)
}

func (c *Catalog) index() {
	c.challengeIdx = make(map[string]*models.Challenge, len(c.Challenges))
	for i := range c.Challenges {
		ch := &c.Challenges[i]
		c.challengeIdx[slotKey(ch.FocusID, ch.Round)] = ch
	}
}

// Challenge returns a copy of the catalog challenge for a focus area and round, or nil.
func (c *Catalog) Challenge(focusID string, round int) *models.Challenge {
	if c.challengeIdx == nil {
		c.index()
	}
	ch, ok := c.challengeIdx[slotKey(focusID, round)]
	if !ok {
		return nil
	}
	cp := *ch
	return &cp
}

func (c *Catalog) Focus(id string) *models.FocusArea {
	for i := range c.FocusAreas {
		if strings.EqualFold(c.FocusAreas[i].ID, id) {
			return &c.FocusAreas[i]
		}
	}
	return nil
}

func (c *Catalog) Trait(id string) *models.Trait {
	for i := range c.Traits {
		if c.Traits[i].ID == id {
			return &c.Traits[i]
		}
	}
	return nil
}

func (c *Catalog) Attitude(id string) *models.Attitude {
	for i := range c.Attitudes {
		if c.Attitudes[i].ID == id {
			return &c.Attitudes[i]
		}
	}
	return nil
}

// TraitIDs lists trait ids in catalog order.
func (c *Catalog) TraitIDs() []string {
	out := make([]string, 0, len(c.Traits))
	for _, t := range c.Traits {
		out = append(out, t.ID)
	}
	return out
}

func (c *Catalog) FocusIDs() []string {
	out := make([]string, 0, len(c.FocusAreas))
	for _, f := range c.FocusAreas {
		out = append(out, f.ID)
	}
	return out
}

// Missing lists focus/round slots that have no authored challenge and will be generated.
func (c *Catalog) Missing() []string {
	var out []string
	for _, f := range c.FocusAreas {
		for r := 1; r <= models.Rounds; r++ {
			if c.Challenge(f.ID, r) == nil {
				out = append(out, fmt.Sprintf("%s round %d", f.ID, r))
			}
		}
	}
	return out
}
