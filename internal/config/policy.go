package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Policy captures the hand-tuned constants of the operator: the risky-verb
// list, the phrase vocabularies, fuzzy-matching thresholds and audio tuning.
// These are policy, not semantics; deployments override them via a YAML file.
type Policy struct {
	Risk   RiskPolicy   `yaml:"risk"`
	Phrase PhrasePolicy `yaml:"phrases"`
	Match  MatchPolicy  `yaml:"match"`
	Audio  AudioPolicy  `yaml:"audio"`
	Limits LimitPolicy  `yaml:"limits"`
	Batch  BatchPolicy  `yaml:"batch"`
}

// RiskPolicy lists commit-type verbs whose presence in an action label marks
// the action as requiring explicit confirmation.
type RiskPolicy struct {
	Verbs []string `yaml:"verbs"`
}

type PhrasePolicy struct {
	Wake    []string `yaml:"wake"`
	Stop    []string `yaml:"stop"`
	Confirm []string `yaml:"confirm"`
	Cancel  []string `yaml:"cancel"`
}

// MatchPolicy tunes fuzzy matching of spoken answers against option labels
// and field names.
type MatchPolicy struct {
	// MinFieldScore is the minimum normalized overlap for a field-label
	// match to count; below it the fill is reported as ambiguous or missed.
	MinFieldScore float64 `yaml:"min_field_score"`
}

type AudioPolicy struct {
	SpeechThreshold float64       `yaml:"speech_threshold"`
	MinRecordTime   time.Duration `yaml:"min_record_time"`
	SilenceWindow   time.Duration `yaml:"silence_window"`
	RestartDelay    time.Duration `yaml:"restart_delay"`
	MaxRestarts     int           `yaml:"max_restarts"`
}

// LimitPolicy caps page-map payload sizes. Extract caps bound what the page
// side ships; Model caps bound what is forwarded to the decision service.
type LimitPolicy struct {
	ExtractActions  int `yaml:"extract_actions"`
	ExtractFields   int `yaml:"extract_fields"`
	ExtractSections int `yaml:"extract_sections"`
	ModelActions    int `yaml:"model_actions"`
	ModelFields     int `yaml:"model_fields"`
	ModelSections   int `yaml:"model_sections"`
	SnippetLen      int `yaml:"snippet_len"`
}

type BatchPolicy struct {
	InterFieldDelay time.Duration `yaml:"inter_field_delay"`
}

// Default returns the compiled-in policy.
func Default() *Policy {
	return &Policy{
		Risk: RiskPolicy{
			Verbs: []string{
				"submit", "pay", "buy", "purchase", "order", "checkout",
				"delete", "remove", "confirm", "transfer", "send", "book",
				"subscribe", "unsubscribe", "cancel order", "place order",
				"sign out", "log out",
			},
		},
		Phrase: PhrasePolicy{
			Wake:    []string{"hey operator", "hey browser", "okay operator"},
			Stop:    []string{"stop listening", "stop recording", "that's all"},
			Confirm: []string{"yes", "confirm", "do it", "go ahead", "proceed", "yes please"},
			Cancel:  []string{"no", "cancel", "stop", "never mind", "don't"},
		},
		Match: MatchPolicy{
			MinFieldScore: 0.5,
		},
		Audio: AudioPolicy{
			SpeechThreshold: 0.02,
			MinRecordTime:   600 * time.Millisecond,
			SilenceWindow:   1500 * time.Millisecond,
			RestartDelay:    300 * time.Millisecond,
			MaxRestarts:     0, // unlimited
		},
		Limits: LimitPolicy{
			ExtractActions:  60,
			ExtractFields:   30,
			ExtractSections: 15,
			ModelActions:    40,
			ModelFields:     30,
			ModelSections:   10,
			SnippetLen:      240,
		},
		Batch: BatchPolicy{
			InterFieldDelay: 400 * time.Millisecond,
		},
	}
}

// Load reads a YAML policy file over the defaults. A missing path returns
// the defaults unchanged.
func Load(path string) (*Policy, error) {
	p := Default()
	if path == "" {
		return p, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return p, nil
		}
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("parse policy file %s: %w", path, err)
	}
	return p, nil
}
