// Package model defines the data structures of the smgr parameter file:
// repository and destination paths, studies, cases and their compare,
// script and post-processing directives.
package model

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the root of the smgr parameter file.
type Config struct {
	Repository  string  `yaml:"repository"`
	Destination string  `yaml:"destination"`
	Studies     []Study `yaml:"studies"`
}

// Study groups the cases sharing one repository subdirectory.
type Study struct {
	Label   string    `yaml:"label"`
	Status  Flag      `yaml:"status"`
	Cases   []Case    `yaml:"cases"`
	PostPro []PostPro `yaml:"postpro,omitempty"`
}

// Case is the configuration of one solver invocation unit.
type Case struct {
	Label      string   `yaml:"label"`
	Status     Flag     `yaml:"status"`
	Compute    Flag     `yaml:"compute"`
	Post       Flag     `yaml:"post"`
	Compare    Flag     `yaml:"compare"`
	RunID      string   `yaml:"run_id,omitempty"`
	NProcs     int      `yaml:"n_procs,omitempty"`
	Depends    string   `yaml:"depends,omitempty"`
	Tags       []string `yaml:"tags,omitempty"`
	Parametric string   `yaml:"parametric,omitempty"`
	Notebook   string   `yaml:"notebook,omitempty"`
	KwArgs     string   `yaml:"kw_args,omitempty"`

	Compares []CompareDirective `yaml:"compares,omitempty"`
	Prepro   []Script           `yaml:"prepro,omitempty"`
	Scripts  []Script           `yaml:"scripts,omitempty"`
	Inputs   []Input            `yaml:"inputs,omitempty"`
}

// CompareDirective configures one checkpoint comparison for a case.
// Empty Repo/Dest means the result directory is discovered automatically.
type CompareDirective struct {
	Status    Flag   `yaml:"status"`
	Repo      string `yaml:"repo,omitempty"`
	Dest      string `yaml:"dest,omitempty"`
	Threshold string `yaml:"threshold,omitempty"`
	Args      string `yaml:"args,omitempty"`
}

// Script configures one external pre- or post-run script.
type Script struct {
	Status Flag   `yaml:"status"`
	Name   string `yaml:"name"`
	Args   string `yaml:"args,omitempty"`
	Repo   string `yaml:"repo,omitempty"`
	Dest   string `yaml:"dest,omitempty"`
}

// PostPro configures one study-level post-processing script.
type PostPro struct {
	Status Flag    `yaml:"status"`
	Name   string  `yaml:"name"`
	Args   string  `yaml:"args,omitempty"`
	Inputs []Input `yaml:"inputs,omitempty"`
}

// Input declares a result file to attach to the detailed report.
type Input struct {
	File string `yaml:"file"`
	Repo string `yaml:"repo,omitempty"`
	Dest string `yaml:"dest,omitempty"`
	Tex  Flag   `yaml:"tex,omitempty"`
}

// Load reads and validates an smgr parameter file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read smgr file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse smgr file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid smgr file %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate checks structural coherence of the parameter file. Path
// existence is checked later by the orchestrator, which may override
// repository and destination from the command line first.
func (c *Config) Validate() error {
	seenStudy := make(map[string]bool)
	for i := range c.Studies {
		s := &c.Studies[i]
		if s.Label == "" {
			return fmt.Errorf("study #%d has no label", i+1)
		}
		if seenStudy[s.Label] {
			return fmt.Errorf("duplicate study label %q", s.Label)
		}
		seenStudy[s.Label] = true

		seenCase := make(map[string]bool)
		for j := range s.Cases {
			cs := &s.Cases[j]
			if cs.Label == "" {
				return fmt.Errorf("study %s: case #%d has no label", s.Label, j+1)
			}
			if seenCase[cs.Label] && cs.RunID == "" {
				return fmt.Errorf("study %s: duplicate case label %q without distinct run_id",
					s.Label, cs.Label)
			}
			seenCase[cs.Label] = true
			if cs.NProcs < 0 {
				return fmt.Errorf("study %s: case %s: negative n_procs", s.Label, cs.Label)
			}
		}
	}
	return nil
}

// StudiesOn returns the studies whose status is on.
func (c *Config) StudiesOn() []*Study {
	var out []*Study
	for i := range c.Studies {
		if c.Studies[i].Status.OrDefault(FlagOn).IsOn() {
			out = append(out, &c.Studies[i])
		}
	}
	return out
}

// CasesOn returns the cases of s whose status is on.
func (s *Study) CasesOn() []*Case {
	var out []*Case
	for i := range s.Cases {
		if s.Cases[i].Status.OrDefault(FlagOn).IsOn() {
			out = append(out, &s.Cases[i])
		}
	}
	return out
}

// HasTags reports whether the case carries every tag of want.
func (c *Case) HasTags(want []string) bool {
	if len(want) == 0 {
		return true
	}
	if len(c.Tags) == 0 {
		return false
	}
	set := make(map[string]bool, len(c.Tags))
	for _, t := range c.Tags {
		set[t] = true
	}
	for _, t := range want {
		if !set[t] {
			return false
		}
	}
	return true
}

// HasAnyTag reports whether the case carries at least one tag of avoid.
func (c *Case) HasAnyTag(avoid []string) bool {
	if len(avoid) == 0 || len(c.Tags) == 0 {
		return false
	}
	set := make(map[string]bool, len(c.Tags))
	for _, t := range c.Tags {
		set[t] = true
	}
	for _, t := range avoid {
		if set[t] {
			return true
		}
	}
	return false
}
