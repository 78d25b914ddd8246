package dircontext

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

const manifestMaxBytes = 512

// manifest describes a project file whose summary helps the model pick
// the right build or run command.
type manifest struct {
	file    string
	label   string
	extract func(string) string
}

var manifests = []manifest{
	{"package.json", "package.json scripts", packageScripts},
	{"Makefile", "Makefile targets", makeTargets},
	{"Cargo.toml", "Cargo.toml", cargoNames},
	{"pyproject.toml", "pyproject.toml", pyprojectName},
	{"go.mod", "go.mod", goModule},
}

func gatherManifests(dir string, out map[string]string) {
	for _, m := range manifests {
		data, err := os.ReadFile(filepath.Join(dir, m.file))
		if err != nil {
			continue
		}
		if v := m.extract(string(data)); v != "" {
			out[m.label] = truncate(v, manifestMaxBytes)
		}
	}
}

func packageScripts(content string) string {
	var pkg struct {
		Scripts map[string]string `json:"scripts"`
	}
	if err := json.Unmarshal([]byte(content), &pkg); err != nil || len(pkg.Scripts) == 0 {
		return ""
	}
	names := make([]string, 0, len(pkg.Scripts))
	for name := range pkg.Scripts {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + ": " + pkg.Scripts[name]
	}
	return strings.Join(parts, ", ")
}

// makeTargets lists explicit targets, skipping recipes, comments, special
// targets and variable assignments.
func makeTargets(content string) string {
	var targets []string
	seen := make(map[string]bool)
	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || line[0] == '\t' || line[0] == '#' || line[0] == '.' {
			continue
		}
		idx := strings.IndexByte(line, ':')
		if idx <= 0 || (idx+1 < len(line) && line[idx+1] == '=') {
			continue
		}
		target := strings.TrimSpace(line[:idx])
		if strings.ContainsAny(target, "$%=") || seen[target] {
			continue
		}
		seen[target] = true
		targets = append(targets, target)
	}
	return strings.Join(targets, ", ")
}

func cargoNames(content string) string {
	var cargo struct {
		Package struct {
			Name string `toml:"name"`
		} `toml:"package"`
		Bin []struct {
			Name string `toml:"name"`
		} `toml:"bin"`
	}
	if _, err := toml.Decode(content, &cargo); err != nil {
		return ""
	}
	var parts []string
	if cargo.Package.Name != "" {
		parts = append(parts, fmt.Sprintf("package %q", cargo.Package.Name))
	}
	for _, bin := range cargo.Bin {
		if bin.Name != "" {
			parts = append(parts, fmt.Sprintf("bin %q", bin.Name))
		}
	}
	return strings.Join(parts, ", ")
}

func pyprojectName(content string) string {
	var py struct {
		Project struct {
			Name    string            `toml:"name"`
			Scripts map[string]string `toml:"scripts"`
		} `toml:"project"`
	}
	if _, err := toml.Decode(content, &py); err != nil || py.Project.Name == "" {
		return ""
	}
	out := fmt.Sprintf("project %q", py.Project.Name)
	if len(py.Project.Scripts) > 0 {
		names := make([]string, 0, len(py.Project.Scripts))
		for name := range py.Project.Scripts {
			names = append(names, name)
		}
		sort.Strings(names)
		out += ", scripts " + strings.Join(names, " ")
	}
	return out
}

func goModule(content string) string {
	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "module ") {
			return line
		}
	}
	return ""
}

// lockfiles maps lockfile names to package managers, most specific first.
var lockfiles = []struct {
	file    string
	manager string
}{
	{"pnpm-lock.yaml", "pnpm"},
	{"yarn.lock", "yarn"},
	{"bun.lockb", "bun"},
	{"package-lock.json", "npm"},
	{"Cargo.lock", "cargo"},
	{"poetry.lock", "poetry"},
	{"uv.lock", "uv"},
}

// detectPackageManager checks cwd first, then the git root.
func detectPackageManager(cwd, gitRoot string) string {
	for _, dir := range []string{cwd, gitRoot} {
		if dir == "" {
			continue
		}
		for _, lf := range lockfiles {
			if _, err := os.Stat(filepath.Join(dir, lf.file)); err == nil {
				return lf.manager
			}
		}
	}
	return ""
}
