package prompt

import (
	"bytes"
	"regexp"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// safeVars are variables whose assigned values carry no secrets and help the model.
var safeVars = map[string]bool{
	"HOME": true, "USER": true, "PWD": true, "OLDPWD": true,
	"SHELL": true, "PATH": true, "LANG": true, "TERM": true,
	"EDITOR": true, "PAGER": true, "HOSTNAME": true, "LOGNAME": true,
	"TMPDIR": true, "XDG_CONFIG_HOME": true, "XDG_DATA_HOME": true,
	"XDG_RUNTIME_DIR": true, "DISPLAY": true, "SHLVL": true,
	"COLUMNS": true, "LINES": true, "LC_ALL": true, "LC_CTYPE": true,
}

// RedactCommand replaces values typed into variable assignments with ***.
// Variable references such as $PROJECT_DIR are kept: their values live in
// the environment and never reach the model, and the model needs the
// reference to suggest a runnable command. A command with nothing to
// redact is returned unchanged.
func RedactCommand(cmd string) string {
	if !strings.Contains(cmd, "=") {
		return cmd
	}

	parser := syntax.NewParser(syntax.Variant(syntax.LangBash), syntax.KeepComments(true))
	prog, err := parser.Parse(strings.NewReader(cmd), "")
	if err != nil {
		return regexRedact(cmd)
	}

	changed := false
	syntax.Walk(prog, func(node syntax.Node) bool {
		if n, ok := node.(*syntax.Assign); ok {
			if n.Name != nil && !safeVars[n.Name.Value] && n.Value != nil {
				n.Value.Parts = []syntax.WordPart{&syntax.Lit{Value: "***"}}
				changed = true
			}
		}
		return true
	})
	if !changed {
		return cmd
	}

	var buf bytes.Buffer
	printer := syntax.NewPrinter(syntax.Indent(0))
	if err := printer.Print(&buf, prog); err != nil {
		return regexRedact(cmd)
	}
	return strings.TrimRight(buf.String(), "\n")
}

// reAssign matches NAME=value at the start of a word.
var reAssign = regexp.MustCompile(`(^|[\s;&|(])([A-Za-z_][A-Za-z0-9_]*)=(\S+)`)

// regexRedact handles commands the shell parser rejects, such as a failed
// command with unbalanced quotes.
func regexRedact(cmd string) string {
	return reAssign.ReplaceAllStringFunc(cmd, func(m string) string {
		sub := reAssign.FindStringSubmatch(m)
		if safeVars[sub[2]] {
			return m
		}
		return sub[1] + sub[2] + "=***"
	})
}
