package chess

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/park285/cheese-engine/internal/eval"
)

var ErrUnknownPreset = errors.New("unknown chess preset")

type DifficultyPreset struct {
	Name             string    `yaml:"name"`
	Threads          int       `yaml:"threads"`
	HashMB           int       `yaml:"hash_mb"`
	MoveTimeMillis   int       `yaml:"move_time_ms"`
	NodeCap          int       `yaml:"node_cap"`
	DepthCap         int       `yaml:"depth_cap"`
	MultiPV          int       `yaml:"multipv"`
	PrimaryChoices   int       `yaml:"primary_choices"`
	CandidateWeights []float64 `yaml:"candidate_weights"`
	EvalNoise        int       `yaml:"eval_noise"`
	QuiescenceDepth  int       `yaml:"quiescence_depth"`
	QuiescenceChecks bool      `yaml:"quiescence_checks"`
	// UseClock lets a game clock in the request override MoveTimeMillis.
	UseClock           bool                `yaml:"use_clock"`
	Eval               eval.Config         `yaml:"eval"`
	OpeningPreferences []OpeningPreference `yaml:"opening_preferences"`
}

// OpeningPreference steers black replies towards a repertoire line once white
// has played a prefix of WhiteMoves.
type OpeningPreference struct {
	Name             string   `yaml:"name"`
	Color            string   `yaml:"color"`
	WhiteMoves       []string `yaml:"white_moves"`
	BlackMoves       []string `yaml:"black_moves"`
	Probability      float64  `yaml:"probability"`
	WeightMultiplier float64  `yaml:"weight_multiplier"`
	Force            bool     `yaml:"force"`
}

var presetMu sync.RWMutex

var defaultOpeningPreferences = []OpeningPreference{
	{
		Name:             "sicilian-mainline",
		Color:            "black",
		WhiteMoves:       []string{"e2e4", "g1f3", "d2d4", "f3d4"},
		BlackMoves:       []string{"c7c5", "d7d6", "c5d4", "g8f6"},
		Probability:      0.45,
		WeightMultiplier: 2.0,
		Force:            true,
	},
	{
		Name:             "berlin-mainline",
		Color:            "black",
		WhiteMoves:       []string{"e2e4", "g1f3", "f1b5", "e1g1"},
		BlackMoves:       []string{"e7e5", "b8c6", "g8f6", "f8e7"},
		Probability:      0.45,
		WeightMultiplier: 2.0,
		Force:            true,
	},
	{
		Name:             "kings-indian-classical",
		Color:            "black",
		WhiteMoves:       []string{"d2d4", "c2c4", "g1f3", "e2e4"},
		BlackMoves:       []string{"g8f6", "g7g6", "f8g7", "d7d6"},
		Probability:      0.4,
		WeightMultiplier: 2.0,
		Force:            true,
	},
	{
		Name:             "english-caro-structure",
		Color:            "black",
		WhiteMoves:       []string{"c2c4", "g1f3", "d2d4"},
		BlackMoves:       []string{"c7c6", "d7d5", "g8f6", "e7e6"},
		Probability:      0.7,
		WeightMultiplier: 2.0,
		Force:            true,
	},
}

func cloneOpeningPreferences(prefs []OpeningPreference) []OpeningPreference {
	if len(prefs) == 0 {
		return nil
	}
	out := make([]OpeningPreference, len(prefs))
	for i, p := range prefs {
		out[i] = p.clone()
	}
	return out
}

func (op OpeningPreference) clone() OpeningPreference {
	dup := op
	dup.WhiteMoves = append([]string(nil), op.WhiteMoves...)
	dup.BlackMoves = append([]string(nil), op.BlackMoves...)
	return dup
}

func (p DifficultyPreset) clone() DifficultyPreset {
	dup := p
	dup.CandidateWeights = append([]float64(nil), p.CandidateWeights...)
	dup.OpeningPreferences = cloneOpeningPreferences(p.OpeningPreferences)
	return dup
}

const defaultThreads = 1
const forlv8 = 4

// Lower levels see less: shallow caps, fewer evaluation terms and noisy
// candidate choice.
var DefaultPresets = map[string]DifficultyPreset{
	"level1": {
		Name:               "level1",
		Threads:            defaultThreads,
		HashMB:             8,
		MoveTimeMillis:     20,
		DepthCap:           1,
		MultiPV:            5,
		PrimaryChoices:     3,
		CandidateWeights:   []float64{0.5, 0.3, 0.2},
		EvalNoise:          80,
		QuiescenceDepth:    2,
		Eval:               eval.Config{},
		OpeningPreferences: cloneOpeningPreferences(defaultOpeningPreferences),
	},
	"level2": {
		Name:               "level2",
		Threads:            defaultThreads,
		HashMB:             8,
		MoveTimeMillis:     60,
		DepthCap:           2,
		MultiPV:            5,
		PrimaryChoices:     3,
		CandidateWeights:   []float64{0.6, 0.3, 0.1},
		EvalNoise:          60,
		QuiescenceDepth:    4,
		Eval:               eval.Config{Hanging: true},
		OpeningPreferences: cloneOpeningPreferences(defaultOpeningPreferences),
	},
	"level3": {
		Name:               "level3",
		Threads:            defaultThreads,
		HashMB:             16,
		MoveTimeMillis:     80,
		DepthCap:           3,
		MultiPV:            5,
		PrimaryChoices:     3,
		CandidateWeights:   []float64{0.7, 0.2, 0.1},
		EvalNoise:          45,
		QuiescenceDepth:    4,
		Eval:               eval.Config{Hanging: true},
		OpeningPreferences: cloneOpeningPreferences(defaultOpeningPreferences),
	},
	"level4": {
		Name:               "level4",
		Threads:            defaultThreads,
		HashMB:             16,
		MoveTimeMillis:     140,
		DepthCap:           4,
		MultiPV:            5,
		PrimaryChoices:     3,
		CandidateWeights:   []float64{0.65, 0.25, 0.1},
		EvalNoise:          30,
		QuiescenceDepth:    6,
		Eval:               eval.Config{Hanging: true, Center: true},
		OpeningPreferences: cloneOpeningPreferences(defaultOpeningPreferences),
	},
	"level5": {
		Name:               "level5",
		Threads:            defaultThreads,
		HashMB:             32,
		MoveTimeMillis:     200,
		DepthCap:           5,
		MultiPV:            5,
		PrimaryChoices:     3,
		CandidateWeights:   []float64{0.7, 0.2, 0.1},
		EvalNoise:          25,
		QuiescenceDepth:    8,
		Eval:               eval.DefaultConfig(),
		OpeningPreferences: cloneOpeningPreferences(defaultOpeningPreferences),
	},
	"level6": {
		Name:               "level6",
		Threads:            2,
		HashMB:             64,
		MoveTimeMillis:     300,
		DepthCap:           6,
		MultiPV:            2,
		PrimaryChoices:     2,
		CandidateWeights:   []float64{0.8, 0.2},
		EvalNoise:          10,
		QuiescenceDepth:    8,
		Eval:               eval.DefaultConfig(),
		OpeningPreferences: cloneOpeningPreferences(defaultOpeningPreferences),
	},
	"level7": {
		Name:               "level7",
		Threads:            2,
		HashMB:             96,
		MoveTimeMillis:     500,
		DepthCap:           8,
		MultiPV:            2,
		PrimaryChoices:     2,
		CandidateWeights:   []float64{0.85, 0.15},
		EvalNoise:          5,
		QuiescenceDepth:    8,
		QuiescenceChecks:   true,
		UseClock:           true,
		Eval:               eval.DefaultConfig(),
		OpeningPreferences: cloneOpeningPreferences(defaultOpeningPreferences),
	},
	"level8": {
		Name:               "level8",
		Threads:            forlv8,
		HashMB:             128,
		MoveTimeMillis:     1000,
		MultiPV:            1,
		PrimaryChoices:     1,
		CandidateWeights:   []float64{1.0},
		QuiescenceDepth:    8,
		QuiescenceChecks:   true,
		UseClock:           true,
		Eval:               eval.DefaultConfig(),
		OpeningPreferences: cloneOpeningPreferences(defaultOpeningPreferences),
	},
}

func GetPreset(name string) (DifficultyPreset, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case "beginner":
		name = "level1"
	case "intermediate":
		name = "level5"
	case "advanced":
		name = "level7"
	case "master":
		name = "level8"
	}
	presetMu.RLock()
	p, ok := DefaultPresets[name]
	presetMu.RUnlock()
	if ok {
		return p.clone(), nil
	}
	return DifficultyPreset{}, fmt.Errorf("%w: %s", ErrUnknownPreset, name)
}

// PresetNames lists the registered presets in name order.
func PresetNames() []string {
	presetMu.RLock()
	defer presetMu.RUnlock()
	names := make([]string, 0, len(DefaultPresets))
	for name := range DefaultPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type presetFile struct {
	Presets []yaml.Node `yaml:"presets"`
}

// LoadPresetFile merges presets from a YAML file into DefaultPresets. An entry
// naming an existing preset only overrides the fields it sets; other entries
// register new presets. Nothing is applied unless every entry validates.
func LoadPresetFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read preset file %q: %w", path, err)
	}
	var file presetFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("decode preset file %q: %w", path, err)
	}

	presetMu.Lock()
	defer presetMu.Unlock()

	merged := make(map[string]DifficultyPreset, len(file.Presets))
	for i := range file.Presets {
		node := &file.Presets[i]
		var head struct {
			Name string `yaml:"name"`
		}
		if err := node.Decode(&head); err != nil {
			return fmt.Errorf("preset file %q entry %d: %w", path, i, err)
		}
		name := strings.ToLower(strings.TrimSpace(head.Name))
		if name == "" {
			return fmt.Errorf("preset file %q entry %d: name required", path, i)
		}
		base, ok := merged[name]
		if !ok {
			base = DefaultPresets[name].clone()
		}
		if err := node.Decode(&base); err != nil {
			return fmt.Errorf("preset file %q entry %s: %w", path, name, err)
		}
		base.Name = name
		if err := ValidatePreset(base); err != nil {
			return fmt.Errorf("preset file %q entry %s: %w", path, name, err)
		}
		merged[name] = base
	}
	for name, p := range merged {
		DefaultPresets[name] = p
	}
	return nil
}

// RegisterPreset validates p and stores it under its lowercased name,
// replacing any preset of that name.
func RegisterPreset(p DifficultyPreset) error {
	p.Name = strings.ToLower(strings.TrimSpace(p.Name))
	if p.Name == "" {
		return fmt.Errorf("preset name required")
	}
	if err := ValidatePreset(p); err != nil {
		return fmt.Errorf("preset %s: %w", p.Name, err)
	}
	presetMu.Lock()
	DefaultPresets[p.Name] = p.clone()
	presetMu.Unlock()
	return nil
}

func SetPresetOpeningPreferences(name string, prefs []OpeningPreference) error {
	presetMu.Lock()
	defer presetMu.Unlock()

	preset, ok := DefaultPresets[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPreset, name)
	}

	if err := validateOpeningPreferences(prefs); err != nil {
		return err
	}

	preset.OpeningPreferences = cloneOpeningPreferences(prefs)
	DefaultPresets[name] = preset
	return nil
}

func validateOpeningPreferences(prefs []OpeningPreference) error {
	for _, pref := range prefs {
		if err := validateOpeningPreference(pref); err != nil {
			return err
		}
	}
	return nil
}

func validateOpeningPreference(pref OpeningPreference) error {
	name := strings.TrimSpace(pref.Name)
	if name == "" {
		return fmt.Errorf("opening preference name required")
	}
	if len(pref.WhiteMoves) == 0 {
		return fmt.Errorf("opening preference %s must define white move triggers", name)
	}
	if len(pref.BlackMoves) == 0 {
		return fmt.Errorf("opening preference %s must define black move sequence", name)
	}
	color := strings.ToLower(strings.TrimSpace(pref.Color))
	if color == "" {
		color = "black"
	}
	if color != "black" {
		return fmt.Errorf("opening preference %s only supports black openings", name)
	}
	if pref.Probability <= 0 || pref.Probability > 1 {
		return fmt.Errorf("opening preference %s must have probability in (0,1]", name)
	}
	if pref.WeightMultiplier <= 0 || math.IsNaN(pref.WeightMultiplier) || math.IsInf(pref.WeightMultiplier, 0) {
		return fmt.Errorf("opening preference %s must have positive finite weight multiplier", name)
	}
	for i, mv := range pref.WhiteMoves {
		if strings.TrimSpace(mv) == "" {
			return fmt.Errorf("opening preference %s has empty white move at index %d", name, i)
		}
	}
	for i, mv := range pref.BlackMoves {
		if strings.TrimSpace(mv) == "" {
			return fmt.Errorf("opening preference %s has empty black move at index %d", name, i)
		}
	}
	return nil
}

func ValidatePreset(p DifficultyPreset) error {
	switch {
	case p.Threads <= 0:
		return fmt.Errorf("threads must be > 0: %d", p.Threads)
	case p.HashMB <= 0:
		return fmt.Errorf("hash size must be > 0: %d", p.HashMB)
	case p.MultiPV <= 0:
		return fmt.Errorf("multipv must be > 0: %d", p.MultiPV)
	case p.PrimaryChoices <= 0:
		return fmt.Errorf("primary choices must be > 0: %d", p.PrimaryChoices)
	case p.PrimaryChoices > p.MultiPV:
		return fmt.Errorf("primary choices (%d) must not exceed multipv (%d)", p.PrimaryChoices, p.MultiPV)
	case len(p.CandidateWeights) == 0:
		return fmt.Errorf("candidate weights must not be empty")
	case len(p.CandidateWeights) < p.PrimaryChoices:
		return fmt.Errorf("candidate weights (%d) must cover primary choices (%d)", len(p.CandidateWeights), p.PrimaryChoices)
	}

	sum := 0.0
	for i := 0; i < p.PrimaryChoices; i++ {
		w := p.CandidateWeights[i]
		if w < 0 {
			return fmt.Errorf("candidate weight at index %d is negative: %f", i, w)
		}
		sum += w
	}
	if sum == 0 {
		return fmt.Errorf("candidate weights sum to zero")
	}
	if p.MoveTimeMillis < 0 {
		return fmt.Errorf("move time must be >= 0: %d", p.MoveTimeMillis)
	}
	if p.NodeCap < 0 {
		return fmt.Errorf("node cap must be >= 0: %d", p.NodeCap)
	}
	if p.DepthCap < 0 {
		return fmt.Errorf("depth cap must be >= 0: %d", p.DepthCap)
	}
	if p.MoveTimeMillis == 0 && p.NodeCap == 0 && p.DepthCap == 0 {
		return fmt.Errorf("preset %s does not define search limits", p.Name)
	}
	if p.EvalNoise < 0 {
		return fmt.Errorf("eval noise must be >= 0: %d", p.EvalNoise)
	}
	if p.QuiescenceDepth < 0 {
		return fmt.Errorf("quiescence depth must be >= 0: %d", p.QuiescenceDepth)
	}
	return validateOpeningPreferences(p.OpeningPreferences)
}
