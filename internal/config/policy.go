package config

import (
	"fmt"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/keshon/moonz/internal/mind"
)

// PolicyFile is the optional TOML file that tunes content rules and the
// persona without a rebuild.
//
//	[validation]
//	banned_phrases = ["delve", "synergy"]
//	max_length = 180
//
//	[persona]
//	topics = ["tech trends", "reality TV"]
type PolicyFile struct {
	Validation struct {
		ForbiddenPatterns []string `koanf:"forbidden_patterns"`
		BannedPhrases     []string `koanf:"banned_phrases"`
		MinLength         int      `koanf:"min_length"`
		MaxLength         int      `koanf:"max_length"`
		BioMaxLength      int      `koanf:"bio_max_length"`
		QualityThreshold  int      `koanf:"quality_threshold"`
	} `koanf:"validation"`

	Persona struct {
		Name         string   `koanf:"name"`
		Topics       []string `koanf:"topics"`
		Catchphrases []string `koanf:"catchphrases"`
	} `koanf:"persona"`
}

func policyDefaults() map[string]interface{} {
	p := mind.DefaultPolicy()
	persona := mind.DefaultPersona()
	return map[string]interface{}{
		"validation.forbidden_patterns": mind.DefaultForbiddenPatterns,
		"validation.banned_phrases":     mind.DefaultBannedPhrases,
		"validation.min_length":         p.MinLength,
		"validation.max_length":         p.MaxLength,
		"validation.bio_max_length":     p.Bounds(mind.ContentBio).Max,
		"validation.quality_threshold":  p.QualityThreshold,
		"persona.name":                  persona.Name,
		"persona.topics":                persona.Topics,
		"persona.catchphrases":          persona.Catchphrases,
	}
}

// LoadPolicy reads path over the built-in defaults. An empty path yields
// the defaults.
func LoadPolicy(path string) (*PolicyFile, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(policyDefaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("error loading policy defaults: %w", err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: error loading policy file %s: %w", ErrSetup, path, err)
		}
	}

	var pf PolicyFile
	if err := k.Unmarshal("", &pf); err != nil {
		return nil, fmt.Errorf("%w: error unmarshalling policy: %w", ErrSetup, err)
	}
	return &pf, nil
}

// ValidationPolicy compiles the file into the rules the validator applies.
func (pf *PolicyFile) ValidationPolicy() (mind.ValidationPolicy, error) {
	v := pf.Validation
	patterns, err := mind.CompilePatterns(v.ForbiddenPatterns)
	if err != nil {
		return mind.ValidationPolicy{}, fmt.Errorf("%w: %w", ErrSetup, err)
	}
	if v.MinLength < 1 || v.MaxLength < v.MinLength {
		return mind.ValidationPolicy{}, fmt.Errorf("%w: length bounds [%d, %d] are invalid", ErrSetup, v.MinLength, v.MaxLength)
	}

	p := mind.DefaultPolicy()
	p.ForbiddenPatterns = patterns
	p.BannedPhrases = v.BannedPhrases
	p.MinLength = v.MinLength
	p.MaxLength = v.MaxLength
	p.QualityThreshold = v.QualityThreshold
	p.LengthOverrides = map[mind.ContentType]mind.LengthBounds{
		mind.ContentBio: {Min: v.MinLength, Max: v.BioMaxLength},
	}
	return p, nil
}

// Apply overrides the persona fields the file sets.
func (pf *PolicyFile) Apply(p *mind.Persona) {
	if pf.Persona.Name != "" {
		p.Name = pf.Persona.Name
	}
	if len(pf.Persona.Topics) > 0 {
		p.Topics = pf.Persona.Topics
	}
	if len(pf.Persona.Catchphrases) > 0 {
		p.Catchphrases = pf.Persona.Catchphrases
	}
}
