package generate

import (
	"fmt"
	"sort"

	"github.com/Masterminds/semver/v3"
	"github.com/pelletier/go-toml"

	"github.com/paiml/depyler-sub004/prelude"
)

// Crate is an external crate a generated file depends on.
type Crate struct {
	Name string

	// Version is the Cargo version requirement.
	Version string

	// Features are the crate features that must be enabled.
	Features []string

	// tested is the release the prelude and the lowered code are known to
	// build against.  Pins that exclude it are reported.
	tested string
}

// featureCrates maps the features that pull in an external crate.
var featureCrates = map[prelude.Feature]Crate{
	prelude.Chrono:    {Name: "chrono", Version: "0.4", tested: "0.4.38"},
	prelude.Regex:     {Name: "regex", Version: "1", tested: "1.10.6"},
	prelude.Tokio:     {Name: "tokio", Version: "1", Features: []string{"full"}, tested: "1.40.0"},
	prelude.Hex:       {Name: "hex", Version: "0.4", tested: "0.4.3"},
	prelude.Digest:    {Name: "sha2", Version: "0.10", tested: "0.10.8"},
	prelude.CSV:       {Name: "csv", Version: "1.3", tested: "1.3.0"},
	prelude.SerdeJSON: {Name: "serde_json", Version: "1", tested: "1.0.128"},
	prelude.Rand:      {Name: "rand", Version: "0.8", tested: "0.8.5"},
	prelude.Clap:      {Name: "clap", Version: "4", Features: []string{"derive"}, tested: "4.5.17"},
}

// CratesFor returns the crates required by the closure of needs sorted by
// name.
func CratesFor(needs prelude.Set) []Crate {
	var crates []Crate
	for _, f := range needs.Closure().Features() {
		if c, ok := featureCrates[f]; ok {
			crates = append(crates, c)
		}
	}

	sort.Slice(crates, func(i, j int) bool {
		return crates[i].Name < crates[j].Name
	})

	return crates
}

// ApplyPins replaces the version requirements of crates by the pinned ones.
// Every pin must be a valid version constraint.  The returned warnings name
// the pins that exclude the release pyrs was tested with.
func ApplyPins(crates []Crate, pins map[string]string) ([]Crate, []string, error) {
	var warnings []string

	out := make([]Crate, len(crates))
	for i, c := range crates {
		out[i] = c

		pin, ok := pins[c.Name]
		if !ok {
			continue
		}

		constraint, err := semver.NewConstraint(pin)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid version pin `%s` for crate `%s`: %w", pin, c.Name, err)
		}

		if c.tested != "" {
			if v, err := semver.NewVersion(c.tested); err == nil && !constraint.Check(v) {
				warnings = append(warnings, fmt.Sprintf("pin `%s` for crate `%s` excludes tested release %s", pin, c.Name, c.tested))
			}
		}

		out[i].Version = pin
	}

	return out, warnings, nil
}

// -----------------------------------------------------------------------------

// DependencyTree builds the `[dependencies]` table of a Cargo manifest.
// Crates without features are written as plain version strings.
func DependencyTree(crates []Crate) (*toml.Tree, error) {
	tree, err := toml.TreeFromMap(map[string]interface{}{})
	if err != nil {
		return nil, err
	}

	for _, c := range crates {
		if len(c.Features) == 0 {
			tree.SetPath([]string{"dependencies", c.Name}, c.Version)
			continue
		}

		features := make([]interface{}, len(c.Features))
		for i, f := range c.Features {
			features[i] = f
		}

		tree.SetPath([]string{"dependencies", c.Name, "version"}, c.Version)
		tree.SetPath([]string{"dependencies", c.Name, "features"}, features)
	}

	return tree, nil
}

// DependencyTable renders the `[dependencies]` table of crates.
func DependencyTable(crates []Crate) (string, error) {
	tree, err := DependencyTree(crates)
	if err != nil {
		return "", err
	}

	return tree.ToTomlString()
}

// Manifest renders a complete Cargo manifest for a binary crate named name.
func Manifest(name string, crates []Crate) (string, error) {
	tree, err := DependencyTree(crates)
	if err != nil {
		return "", err
	}

	tree.SetPath([]string{"package", "name"}, name)
	tree.SetPath([]string{"package", "version"}, "0.1.0")
	tree.SetPath([]string{"package", "edition"}, "2021")

	return tree.ToTomlString()
}
