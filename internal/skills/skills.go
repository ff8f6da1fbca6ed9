// ABOUTME: Keyword-scored skill library for prompt augmentation
// ABOUTME: Skills are loaded from YAML and ranked against the inbound message

package skills

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Skill is a reusable prompt fragment activated by keywords.
type Skill struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
	Prompt   string   `yaml:"prompt"`
}

// Library holds the loaded skill set.
type Library struct {
	skills []Skill
}

// Load reads a skill library from a YAML file:
//
//	skills:
//	  - name: deploy
//	    keywords: [deploy, release, rollout]
//	    prompt: "When discussing deploys, always state the rollback plan."
func Load(path string) (*Library, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading skills file: %w", err)
	}

	var doc struct {
		Skills []Skill `yaml:"skills"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing skills file: %w", err)
	}

	for i, s := range doc.Skills {
		if s.Name == "" {
			return nil, fmt.Errorf("skill %d: name is required", i)
		}
		if s.Prompt == "" {
			return nil, fmt.Errorf("skill %q: prompt is required", s.Name)
		}
	}

	return &Library{skills: doc.Skills}, nil
}

// NewLibrary builds a library from in-memory skills (used in tests).
func NewLibrary(skills []Skill) *Library {
	return &Library{skills: skills}
}

// Select returns up to n skills whose keywords appear in the message,
// highest score first. Score is the number of distinct matching keywords;
// skills with no match are excluded. Ties keep library order.
func (l *Library) Select(message string, n int) []Skill {
	if l == nil || n <= 0 {
		return nil
	}

	lower := strings.ToLower(message)

	type scored struct {
		skill Skill
		score int
		index int
	}
	var matches []scored
	for i, s := range l.skills {
		score := 0
		for _, kw := range s.Keywords {
			if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
				score++
			}
		}
		if score > 0 {
			matches = append(matches, scored{skill: s, score: score, index: i})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		return matches[i].index < matches[j].index
	})

	if len(matches) > n {
		matches = matches[:n]
	}
	selected := make([]Skill, len(matches))
	for i, m := range matches {
		selected[i] = m.skill
	}
	return selected
}
