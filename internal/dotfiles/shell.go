package dotfiles

import (
	"fmt"
	"strings"
)

// Shell selects an init script dialect.
type Shell string

const (
	ShellPosix Shell = "posix"
	ShellBash  Shell = "bash"
	ShellZsh   Shell = "zsh"
	ShellFish  Shell = "fish"
	ShellXonsh Shell = "xonsh"
)

// Shells lists the supported dialects.
var Shells = []Shell{ShellPosix, ShellBash, ShellZsh, ShellFish, ShellXonsh}

// ParseShell maps a shell name to its dialect.
func ParseShell(name string) (Shell, error) {
	for _, s := range Shells {
		if string(s) == name {
			return s, nil
		}
	}
	return "", fmt.Errorf("unsupported shell %q", name)
}

// RenderAliases formats aliases as init lines for shell, one per line in
// the given order, without a trailing newline.
func RenderAliases(shell Shell, aliases []Alias) string {
	lines := make([]string, 0, len(aliases))
	for _, a := range aliases {
		switch shell {
		case ShellFish:
			lines = append(lines, fmt.Sprintf("alias %s %s", a.Name, fishQuote(a.Value)))
		case ShellXonsh:
			lines = append(lines, fmt.Sprintf("aliases['%s'] = %s", a.Name, pythonQuote(a.Value)))
		default:
			lines = append(lines, fmt.Sprintf("alias %s=%s", a.Name, posixQuote(a.Value)))
		}
	}
	return strings.Join(lines, "\n")
}

// RenderVars formats vars as init lines for shell.
func RenderVars(shell Shell, vars []Var) string {
	lines := make([]string, 0, len(vars))
	for _, v := range vars {
		switch shell {
		case ShellFish:
			flag := "-g"
			if v.Export {
				flag = "-gx"
			}
			lines = append(lines, fmt.Sprintf("set %s %s %s", flag, v.Name, fishQuote(v.Value)))
		case ShellXonsh:
			if v.Export {
				lines = append(lines, fmt.Sprintf("$%s = %s", v.Name, pythonQuote(v.Value)))
			} else {
				lines = append(lines, fmt.Sprintf("%s = %s", v.Name, pythonQuote(v.Value)))
			}
		default:
			line := fmt.Sprintf("%s=%s", v.Name, posixQuote(v.Value))
			if v.Export {
				line = "export " + line
			}
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// posixQuote wraps v in single quotes. A value that is already wrapped is
// left alone so users can store pre-quoted values.
func posixQuote(v string) string {
	if len(v) >= 2 && strings.HasPrefix(v, "'") && strings.HasSuffix(v, "'") {
		return v
	}
	return "'" + strings.ReplaceAll(v, "'", `'\''`) + "'"
}

func fishQuote(v string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}

func pythonQuote(v string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", `\n`)
	return "'" + r.Replace(v) + "'"
}
