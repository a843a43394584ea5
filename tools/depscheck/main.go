package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
)

type packageInfo struct {
	ImportPath string
	Imports    []string
}

// rule forbids packages under scope from importing anything with one of the
// listed prefixes.
type rule struct {
	scope     string
	forbidden []string
}

var rules = []rule{
	{
		scope: "./internal/world/...",
		forbidden: []string{
			"puppet-arena/server/internal/sim",
			"puppet-arena/server/internal/agents",
			"puppet-arena/server/internal/net",
			"github.com/gorilla/websocket",
			"net/http",
		},
	},
	{
		scope: "./internal/sim/...",
		forbidden: []string{
			"puppet-arena/server/internal/net",
			"github.com/gorilla/websocket",
			"net/http",
		},
	},
	{
		scope: "./internal/agents/...",
		forbidden: []string{
			"puppet-arena/server/internal/sim",
			"puppet-arena/server/internal/net",
		},
	},
}

func main() {
	var violations []string
	for _, r := range rules {
		found, err := check(r)
		if err != nil {
			fmt.Fprintf(os.Stderr, "depscheck: %v\n", err)
			os.Exit(1)
		}
		violations = append(violations, found...)
	}

	if len(violations) > 0 {
		sort.Strings(violations)
		fmt.Fprintln(os.Stderr, "depscheck: found forbidden imports:")
		for _, violation := range violations {
			fmt.Fprintf(os.Stderr, "  %s\n", violation)
		}
		os.Exit(1)
	}
}

func check(r rule) ([]string, error) {
	cmd := exec.Command("go", "list", "-json", r.scope)
	cmd.Env = os.Environ()
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			os.Stderr.Write(exitErr.Stderr)
		}
		return nil, fmt.Errorf("failed to list %s: %w", r.scope, err)
	}

	decoder := json.NewDecoder(bytes.NewReader(output))
	var violations []string
	for {
		var pkg packageInfo
		if err := decoder.Decode(&pkg); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to decode package info: %w", err)
		}
		for _, imp := range pkg.Imports {
			for _, prefix := range r.forbidden {
				if imp == prefix || strings.HasPrefix(imp, prefix+"/") {
					violations = append(violations, fmt.Sprintf("%s -> %s", pkg.ImportPath, imp))
				}
			}
		}
	}
	return violations, nil
}
