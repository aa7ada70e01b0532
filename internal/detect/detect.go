// Package detect sniffs a working directory for project tooling so task
// prompts can mention the commands available there.
package detect

import (
	"os"

	"github.com/gobwas/glob"
)

// rule maps a manifest filename pattern to the hint shown to the agent.
// Rules are ordered by specificity; the first match wins.
type rule struct {
	pattern glob.Glob
	hint    string
}

var rules = []rule{
	{glob.MustCompile("[Jj]ustfile", '/'), "A justfile is present; run `just --list` to see available recipes."},
	{glob.MustCompile("Makefile", '/'), "A Makefile is present; check its targets for build and test commands."},
	{glob.MustCompile("go.mod", '/'), "This is a Go module; verify with `go build ./...` and `go test ./...`."},
	{glob.MustCompile("Cargo.toml", '/'), "This is a Cargo project; verify with `cargo check` and `cargo test`."},
	{glob.MustCompile("package.json", '/'), "This is a Node project; check package.json scripts for test and build commands."},
	{glob.MustCompile("pyproject.toml", '/'), "This is a Python project; check pyproject.toml for the test runner."},
	{glob.MustCompile("*.gemspec", '/'), "This is a Ruby gem; verify with `bundle exec rake`."},
	{glob.MustCompile("pom.xml", '/'), "This is a Maven project; verify with `mvn test`."},
	{glob.MustCompile("build.gradle*", '/'), "This is a Gradle project; verify with `./gradlew test`."},
}

// ToolHint inspects the top-level entries of dir and returns a one-line
// hint about the project's tooling, or "" when nothing is recognized.
// Detection failures are deliberately silent; the hint is optional.
func ToolHint(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}

	for _, r := range rules {
		for _, name := range names {
			if r.pattern.Match(name) {
				return r.hint
			}
		}
	}
	return ""
}
