// Package flagx lets independent parts of a binary read their own flags
// from one command line without tripping over each other's.
package flagx

import (
	"flag"
	"io"
	"strings"
)

// name strips the leading dashes of a flag token and any "=value" suffix.
func name(arg string) string {
	n := strings.TrimLeft(arg, "-")
	if i := strings.IndexByte(n, '='); i >= 0 {
		n = n[:i]
	}
	return n
}

func isFlag(arg string) bool {
	return len(arg) > 1 && arg[0] == '-'
}

// FilterArgs returns the subset of args made of the flags listed in allowed
// together with their values. Both "-c conf.json" and "--config=conf.json"
// forms are kept. One or two leading dashes are equivalent, as they are for
// the flag package. Everything after a bare "--" is ignored.
//
// The result is never nil.
func FilterArgs(args []string, allowed []string) []string {
	keep := make(map[string]struct{}, len(allowed))
	for _, f := range allowed {
		keep[name(f)] = struct{}{}
	}

	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			break
		}
		if !isFlag(arg) {
			continue
		}
		if _, ok := keep[name(arg)]; !ok {
			continue
		}

		out = append(out, arg)
		if strings.Contains(arg, "=") {
			continue
		}
		// a following non-flag token is this flag's value
		if i+1 < len(args) && !isFlag(args[i+1]) && args[i+1] != "--" {
			out = append(out, args[i+1])
			i++
		}
	}
	return out
}

// ConfigFile returns the path given with -c or -config, or "" when neither
// is present. The last occurrence wins.
func ConfigFile(args []string) string {
	var path string

	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&path, "config", "", "path to JSON config file")
	fs.StringVar(&path, "c", "", "path to JSON config file (short)")
	_ = fs.Parse(FilterArgs(args, []string{"-c", "-config"}))

	return path
}
