package config

import (
	"errors"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/Masterminds/semver/v3"
	"github.com/pelletier/go-toml"

	"github.com/paiml/depyler-sub004/common"
	"github.com/paiml/depyler-sub004/lower"
	"github.com/paiml/depyler-sub004/report"
)

// tomlProject represents a project as it is encoded in TOML.
type tomlProject struct {
	Name        string            `toml:"name"`
	PyrsVersion string            `toml:"pyrs-version"`
	Mode        string            `toml:"mode,omitempty"`
	Trace       bool              `toml:"trace"`
	Jobs        int               `toml:"jobs,omitempty"`
	OutDir      string            `toml:"out-dir,omitempty"`
	Crates      map[string]string `toml:"crates,omitempty"`
}

// Project is the validated configuration of a directory of HIR files.
type Project struct {
	// Root is the directory containing the configuration file.
	Root string

	// Name is the project name.  It also names the generated Cargo package.
	Name string

	// Mode is the async translation mode.
	Mode lower.Mode

	// Trace enables decision tracing.
	Trace bool

	// Jobs is the number of files transpiled concurrently.
	Jobs int

	// OutDir is the directory generated files are written to.  It is
	// absolute.
	OutDir string

	// Pins maps crate names to version constraints that override the
	// default requirements.
	Pins map[string]string
}

// Default returns the configuration used for a directory without a
// configuration file.
func Default(dir string) *Project {
	return &Project{
		Root:   dir,
		Name:   sanitizeName(filepath.Base(dir)),
		Mode:   lower.ModeAsync,
		Jobs:   common.DefaultJobs,
		OutDir: dir,
		Pins:   make(map[string]string),
	}
}

// Find loads the configuration of the directory containing path.  A
// missing configuration file is not an error: the defaults are used.
func Find(path string) (*Project, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	dir := abs
	if fi, err := os.Stat(abs); err != nil || !fi.IsDir() {
		dir = filepath.Dir(abs)
	}

	proj, err := Load(dir)
	if errors.Is(err, os.ErrNotExist) {
		return Default(dir), nil
	}

	return proj, err
}

// Load loads and validates the configuration file of the directory dir.
func Load(dir string) (*Project, error) {
	cfgPath := filepath.Join(dir, common.ConfigFileName)

	// open file
	f, err := os.Open(cfgPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	// unmarshal the contents
	buff, err := ioutil.ReadAll(f)
	if err != nil {
		return nil, err
	}

	tp := &tomlProject{}
	if err := toml.Unmarshal(buff, tp); err != nil {
		return nil, fmt.Errorf("error parsing %s: %w", cfgPath, err)
	}

	proj := Default(dir)
	if err := validateProject(proj, tp, cfgPath); err != nil {
		return nil, err
	}

	return proj, nil
}

// validateProject checks the decoded configuration and moves it into proj.
func validateProject(proj *Project, tp *tomlProject, cfgPath string) error {
	if tp.Name == "" {
		return fmt.Errorf("missing project name in %s", cfgPath)
	}

	if !IsValidIdentifier(tp.Name) {
		return fmt.Errorf("project name `%s` must be a valid identifier", tp.Name)
	}
	proj.Name = tp.Name

	if tp.PyrsVersion == "" {
		report.ReportCompileWarning("", cfgPath, nil, "no pyrs-version specified; assuming v%s", common.PyrsVersion)
	} else if err := checkToolVersion(tp.PyrsVersion); err != nil {
		return fmt.Errorf("project `%s`: %w", tp.Name, err)
	}

	mode, ok := lower.ParseMode(tp.Mode)
	if !ok {
		return fmt.Errorf("unknown mode `%s`: expected `async` or `realtime`", tp.Mode)
	}
	proj.Mode = mode

	proj.Trace = tp.Trace

	switch {
	case tp.Jobs < 0:
		return fmt.Errorf("jobs must be positive, got %d", tp.Jobs)
	case tp.Jobs > 0:
		proj.Jobs = tp.Jobs
	}

	if tp.OutDir != "" {
		if filepath.IsAbs(tp.OutDir) {
			proj.OutDir = filepath.Clean(tp.OutDir)
		} else {
			proj.OutDir = filepath.Join(proj.Root, tp.OutDir)
		}
	}

	for name, pin := range tp.Crates {
		if _, err := semver.NewConstraint(pin); err != nil {
			return fmt.Errorf("invalid version pin `%s` for crate `%s`: %w", pin, name, err)
		}

		proj.Pins[name] = pin
	}

	return nil
}

// checkToolVersion tests that the running pyrs satisfies the version
// constraint of a project.
func checkToolVersion(constraint string) error {
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return fmt.Errorf("invalid pyrs-version `%s`: %w", constraint, err)
	}

	v := semver.MustParse(common.PyrsVersion)
	if !c.Check(v) {
		return fmt.Errorf("pyrs v%s does not satisfy the required version `%s`", common.PyrsVersion, constraint)
	}

	return nil
}

// -----------------------------------------------------------------------------

// Init writes a new configuration file for a project named name into dir.
func Init(dir, name string) error {
	if !IsValidIdentifier(name) {
		return errors.New("project name must be a valid identifier")
	}

	cfgPath := filepath.Join(dir, common.ConfigFileName)
	if _, err := os.Stat(cfgPath); err == nil {
		return fmt.Errorf("%s already exists", cfgPath)
	}

	tp := &tomlProject{
		Name:        name,
		PyrsVersion: "^" + common.PyrsVersion,
		Mode:        lower.ModeAsync.String(),
		Jobs:        common.DefaultJobs,
	}

	// encode and save the configuration
	f, err := os.Create(cfgPath)
	if err != nil {
		return fmt.Errorf("error creating configuration file: %s", err.Error())
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(tp); err != nil {
		return fmt.Errorf("error encoding TOML %s", err.Error())
	}

	return nil
}

// IsValidIdentifier returns whether name can be used as a project (and
// Cargo package) name.
func IsValidIdentifier(name string) bool {
	if name == "" {
		return false
	}

	for i, c := range name {
		switch {
		case c == '_', 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z':
		case '0' <= c && c <= '9' || c == '-':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}

	return true
}

// sanitizeName derives a project name from a directory name.
func sanitizeName(name string) string {
	out := []rune(name)
	for i, c := range out {
		if !IsValidIdentifier(string(c)) && !(i > 0 && (c >= '0' && c <= '9' || c == '-')) {
			out[i] = '_'
		}
	}

	if len(out) == 0 || !IsValidIdentifier(string(out)) {
		return "pyrs_project"
	}

	return string(out)
}
