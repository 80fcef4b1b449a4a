// Package collector derives prompt context from a checked-out repository.
//
// Collection is deterministic and read-only: no network calls, no writes.
// It detects the project type from build manifests, renders a depth-bounded
// directory tree summary, excerpts the README, and lists key configuration
// files and likely entry points. Unreadable subdirectories are skipped, never
// fatal.
package collector

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// defaultSkipDirs are directories excluded from every walk. They hold
// dependencies, build output, or VCS data and never inform the wiki.
var defaultSkipDirs = map[string]bool{
	".git":         true,
	".svn":         true,
	".hg":          true,
	"node_modules": true,
	"vendor":       true,
	".venv":        true,
	"venv":         true,
	"__pycache__":  true,
	".idea":        true,
	".vscode":      true,
	".cache":       true,
	"dist":         true,
	"build":        true,
	".next":        true,
	"target":       true,
}

// SkipDir reports whether a directory name is excluded from walks.
func SkipDir(name string) bool {
	return defaultSkipDirs[name]
}

const (
	defaultMaxDepth        = 4
	defaultReadmeMaxLength = 4000
	defaultMaxEntryPoints  = 10
	maxEntriesPerDir       = 30
)

// Context is the collected repository context used to build prompts.
type Context struct {
	ProjectType   string
	DirectoryTree string
	ReadmeExcerpt string
	KeyFiles      []string
	EntryPoints   []string
}

// Options bounds collection. Zero values select defaults.
type Options struct {
	MaxDepth        int
	ReadmeMaxLength int
	MaxEntryPoints  int
}

func (o *Options) withDefaults() Options {
	out := *o
	if out.MaxDepth <= 0 {
		out.MaxDepth = defaultMaxDepth
	}
	if out.ReadmeMaxLength <= 0 {
		out.ReadmeMaxLength = defaultReadmeMaxLength
	}
	if out.MaxEntryPoints <= 0 {
		out.MaxEntryPoints = defaultMaxEntryPoints
	}
	return out
}

// signature maps a build manifest to an ecosystem. Ordered by priority:
// the first match names the primary ecosystem, later matches extend a
// composite type ("go+nodejs" for a backend+frontend monorepo).
type signature struct {
	manifest string
	project  string
}

var signatures = []signature{
	{"go.mod", "go"},
	{"Cargo.toml", "rust"},
	{"pom.xml", "java"},
	{"build.gradle", "java"},
	{"build.gradle.kts", "java"},
	{"package.json", "nodejs"},
	{"pyproject.toml", "python"},
	{"requirements.txt", "python"},
	{"setup.py", "python"},
	{"Gemfile", "ruby"},
	{"composer.json", "php"},
	{"mix.exs", "elixir"},
	{"CMakeLists.txt", "cpp"},
	{"Makefile", "make"},
}

// entryPointGlobs lists likely entry-point locations per ecosystem.
var entryPointGlobs = map[string][]string{
	"go":     {"main.go", "cmd/*/main.go"},
	"rust":   {"src/main.rs", "src/bin/*.rs"},
	"java":   {"src/main/java/**"},
	"nodejs": {"index.js", "src/index.js", "src/index.ts", "src/main.ts", "src/app.ts"},
	"python": {"main.py", "app.py", "src/main.py", "manage.py"},
	"ruby":   {"main.rb", "app.rb", "config.ru"},
	"php":    {"index.php", "public/index.php"},
}

// keyFileNames are configuration files worth surfacing when present.
var keyFileNames = []string{
	"Dockerfile", "docker-compose.yml", "docker-compose.yaml",
	"Makefile", ".env.example", "config.yaml", "config.yml",
	"tsconfig.json", ".golangci.yml",
}

// Collect walks workingDir and returns the repository context.
func Collect(workingDir string, opts Options) (*Context, error) {
	info, err := os.Stat(workingDir)
	if err != nil {
		return nil, fmt.Errorf("stat working directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("working directory %s is not a directory", workingDir)
	}
	o := opts.withDefaults()

	ctx := &Context{
		ProjectType:   detectProjectType(workingDir),
		DirectoryTree: renderTree(workingDir, o.MaxDepth),
		ReadmeExcerpt: readmeExcerpt(workingDir, o.ReadmeMaxLength),
		KeyFiles:      keyFiles(workingDir),
		EntryPoints:   entryPoints(workingDir, detectProjectType(workingDir), o.MaxEntryPoints),
	}
	return ctx, nil
}

// detectProjectType matches filesystem signatures in priority order and
// joins distinct ecosystems into a composite type.
func detectProjectType(dir string) string {
	var types []string
	seen := map[string]bool{}
	for _, sig := range signatures {
		if seen[sig.project] {
			continue
		}
		if _, err := os.Stat(filepath.Join(dir, sig.manifest)); err == nil {
			types = append(types, sig.project)
			seen[sig.project] = true
		}
	}
	// "make" alone carries no signal next to a real ecosystem.
	if len(types) > 1 {
		filtered := types[:0]
		for _, t := range types {
			if t != "make" {
				filtered = append(filtered, t)
			}
		}
		types = filtered
	}
	if len(types) == 0 {
		return "unknown"
	}
	return strings.Join(types, "+")
}

// renderTree returns an indented directory listing bounded by maxDepth.
// Directories come before files at each level; unreadable directories are
// skipped silently.
func renderTree(dir string, maxDepth int) string {
	var b strings.Builder
	writeTreeLevel(&b, dir, "", 0, maxDepth)
	return b.String()
}

func writeTreeLevel(b *strings.Builder, dir, indent string, depth, maxDepth int) {
	if depth >= maxDepth {
		return
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].IsDir() != entries[j].IsDir() {
			return entries[i].IsDir()
		}
		return entries[i].Name() < entries[j].Name()
	})

	shown := 0
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") && name != ".github" {
			continue
		}
		if e.IsDir() && defaultSkipDirs[name] {
			continue
		}
		if shown >= maxEntriesPerDir {
			fmt.Fprintf(b, "%s...\n", indent)
			break
		}
		shown++
		if e.IsDir() {
			fmt.Fprintf(b, "%s%s/\n", indent, name)
			writeTreeLevel(b, filepath.Join(dir, name), indent+"  ", depth+1, maxDepth)
		} else {
			fmt.Fprintf(b, "%s%s\n", indent, name)
		}
	}
}

// readmeExcerpt returns the first maxLen bytes of the README, truncated on a
// rune boundary. Empty when no README exists.
func readmeExcerpt(dir string, maxLen int) string {
	for _, name := range []string{"README.md", "README.rst", "README.txt", "README", "readme.md"} {
		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		text := string(content)
		if len(text) <= maxLen {
			return text
		}
		runes := []rune(text)
		if len(runes) > maxLen {
			runes = runes[:maxLen]
		}
		return string(runes) + "\n... (truncated)"
	}
	return ""
}

// keyFiles lists manifests and notable config files present at the root.
func keyFiles(dir string) []string {
	var files []string
	for _, sig := range signatures {
		if _, err := os.Stat(filepath.Join(dir, sig.manifest)); err == nil {
			files = append(files, sig.manifest)
		}
	}
	for _, name := range keyFileNames {
		if containsString(files, name) {
			continue
		}
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			files = append(files, name)
		}
	}
	return files
}

// entryPoints globs for likely entry points of each detected ecosystem,
// capped at maxN total.
func entryPoints(dir, projectType string, maxN int) []string {
	var points []string
	for _, eco := range strings.Split(projectType, "+") {
		globs, ok := entryPointGlobs[eco]
		if !ok {
			continue
		}
		for _, pattern := range globs {
			matches, err := filepath.Glob(filepath.Join(dir, pattern))
			if err != nil {
				continue
			}
			sort.Strings(matches)
			for _, m := range matches {
				rel, err := filepath.Rel(dir, m)
				if err != nil {
					continue
				}
				if info, err := os.Stat(m); err != nil || info.IsDir() {
					continue
				}
				if containsString(points, rel) {
					continue
				}
				points = append(points, rel)
				if len(points) >= maxN {
					return points
				}
			}
		}
	}
	return points
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
