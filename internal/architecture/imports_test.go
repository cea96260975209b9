package architecture_test

import (
	"bufio"
	"fmt"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

type importViolation struct {
	file string
	imp  string
	rule string
}

// walkImports calls check for every import of every .go file under internal/
// and cmd/, with the file path relative to the module root.
func walkImports(t *testing.T, check func(rel, imp string, test bool) string) []importViolation {
	t.Helper()
	start, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	root, err := findModuleRoot(start)
	if err != nil {
		t.Fatalf("find module root: %v", err)
	}
	fset := token.NewFileSet()
	var violations []importViolation
	for _, dir := range []string{"internal", "cmd"} {
		walkErr := filepath.WalkDir(filepath.Join(root, dir), func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !strings.HasSuffix(path, ".go") {
				return nil
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			rel = filepath.ToSlash(rel)
			f, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
			if err != nil {
				return err
			}
			test := strings.HasSuffix(rel, "_test.go")
			for _, spec := range f.Imports {
				imp, err := strconv.Unquote(spec.Path.Value)
				if err != nil {
					continue
				}
				if rule := check(rel, imp, test); rule != "" {
					violations = append(violations, importViolation{file: rel, imp: imp, rule: rule})
				}
			}
			return nil
		})
		if walkErr != nil {
			t.Fatalf("walk %s/: %v", dir, walkErr)
		}
	}
	return violations
}

func report(t *testing.T, title string, violations []importViolation) {
	t.Helper()
	if len(violations) == 0 {
		return
	}
	var b strings.Builder
	b.WriteString(title + ":\n")
	for _, v := range violations {
		fmt.Fprintf(&b, "- %s imports %q (%s)\n", v.file, v.imp, v.rule)
	}
	t.Fatal(b.String())
}

func TestImportBoundaries(t *testing.T) {
	start, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	root, err := findModuleRoot(start)
	if err != nil {
		t.Fatalf("find module root: %v", err)
	}
	modulePath, err := readModulePath(filepath.Join(root, "go.mod"))
	if err != nil {
		t.Fatalf("read module path: %v", err)
	}

	violations := walkImports(t, func(rel, imp string, test bool) string {
		for _, bad := range disallowedImports(modulePath, layerFor(rel), test) {
			if strings.HasPrefix(imp, bad) {
				return "disallowed: " + bad
			}
		}
		return ""
	})
	report(t, "import boundary violations", violations)
}

// TestDriversStayInTheirPackages keeps storage and transport drivers behind
// the packages that wrap them.
func TestDriversStayInTheirPackages(t *testing.T) {
	owners := map[string][]string{
		"github.com/neo4j/neo4j-go-driver": {"internal/platform/neo4jdb/", "internal/data/graph/"},
		"github.com/redis/go-redis":        {"internal/platform/rootlock/"},
		"gorm.io/":                         {"internal/data/", "internal/pkg/dbctx/"},
		"github.com/jackc/pgx":             {"internal/data/"},
		"github.com/gin-gonic/gin":         {"internal/http/", "internal/app/"},
		"github.com/spf13/cobra":           {"cmd/mdrctl/"},
	}
	violations := walkImports(t, func(rel, imp string, _ bool) string {
		for driver, allowed := range owners {
			if !strings.HasPrefix(imp, driver) {
				continue
			}
			for _, prefix := range allowed {
				if strings.HasPrefix(rel, prefix) {
					return ""
				}
			}
			return "only " + strings.Join(allowed, ", ")
		}
		return ""
	})
	report(t, "driver imports outside their owning packages", violations)
}

func layerFor(rel string) string {
	switch {
	case strings.HasPrefix(rel, "internal/domain/"):
		return "domain"
	case strings.HasPrefix(rel, "internal/platform/"):
		return "platform"
	case strings.HasPrefix(rel, "internal/observability/"):
		return "platform"
	case strings.HasPrefix(rel, "internal/data/"):
		return "data"
	case strings.HasPrefix(rel, "internal/modules/"):
		return "modules"
	case strings.HasPrefix(rel, "internal/http/"):
		return "http"
	default:
		return ""
	}
}

func disallowedImports(modulePath, layer string, test bool) []string {
	in := func(pkgs ...string) []string {
		out := make([]string, 0, len(pkgs))
		for _, p := range pkgs {
			out = append(out, modulePath+"/internal/"+p+"/")
		}
		return out
	}
	switch layer {
	case "domain":
		return in("data", "modules", "http", "app", "platform", "observability")
	case "platform":
		return in("data", "modules", "http", "app")
	case "data":
		return in("modules", "http", "app")
	case "modules":
		if test {
			return in("http", "app")
		}
		return in("http", "app", "data")
	case "http":
		if test {
			return in("app")
		}
		return in("app", "data")
	default:
		return nil
	}
}

func findModuleRoot(start string) (string, error) {
	dir := start
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found from %s", start)
		}
		dir = parent
	}
}

func readModulePath(goModPath string) (string, error) {
	f, err := os.Open(goModPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		if !strings.HasPrefix(line, "module ") {
			continue
		}
		mp := strings.TrimSpace(strings.TrimPrefix(line, "module "))
		if mp == "" {
			return "", fmt.Errorf("empty module path in %s", goModPath)
		}
		return mp, nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("module path not found in %s", goModPath)
}
