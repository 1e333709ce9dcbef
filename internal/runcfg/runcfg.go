// Package runcfg reads the solver's run.cfg file, a fixed-name INI file
// present at the root of a case. Its setup section declares coupled
// multi-domain runs; each coupled domain may carry its own section naming
// the solver that computes it.
package runcfg

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/ini.v1"
)

// FileName is fixed by the solver contract.
const FileName = "run.cfg"

// Solvers understood for coupled subdomains. Domains computed by anything
// else (e.g. an external coupler) are not created by studymanager.
const (
	SolverSaturne = "code_saturne"
	SolverNeptune = "neptune_cfd"
)

// Domain is one coupled subdomain declaration.
type Domain struct {
	Name   string
	Solver string
}

// RunConf is a parsed run.cfg.
type RunConf struct {
	path string
	file *ini.File
}

// Load parses the run.cfg at path.
func Load(path string) (*RunConf, error) {
	f, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return &RunConf{path: path, file: f}, nil
}

// LoadIfExists parses the run.cfg at path, returning nil without error when
// the file is absent (the case is then a plain single-domain case).
func LoadIfExists(path string) (*RunConf, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, nil
	}
	return Load(path)
}

// IsCoupled reports whether the setup section declares coupled domains.
func (rc *RunConf) IsCoupled() bool {
	return len(rc.CoupledDomains()) > 0
}

// CoupledDomains returns the declared subdomains in declaration order.
// The solver of a domain defaults to code_saturne when its section is
// absent or silent.
func (rc *RunConf) CoupledDomains() []Domain {
	key := rc.file.Section("setup").Key("coupled_domains").String()
	if key == "" {
		return nil
	}

	var domains []Domain
	for _, name := range splitList(key) {
		solver := SolverSaturne
		if sec, err := rc.file.GetSection(name); err == nil {
			if s := sec.Key("solver").String(); s != "" {
				solver = strings.ToLower(s)
			}
		}
		domains = append(domains, Domain{Name: name, Solver: solver})
	}
	return domains
}

// SubdomainNames returns the coupled domains handled by a supported CFD
// solver, in declaration order.
func (rc *RunConf) SubdomainNames() []string {
	var names []string
	for _, d := range rc.CoupledDomains() {
		if d.Solver == SolverSaturne || d.Solver == SolverNeptune {
			names = append(names, d.Name)
		}
	}
	return names
}

// splitList splits the colon- or comma-separated domain list used by the
// solver configuration.
func splitList(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ':' || r == ','
	})
	var out []string
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
