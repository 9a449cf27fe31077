// Package flagx holds helpers for parsing a component's own flags out of a
// shared os.Args without tripping over flags that belong to someone else.
package flagx

import (
	"flag"
	"strings"
)

// FilterArgs keeps only the allowed flags (and their values) from args.
//
// Both "-f value" and "-f=value" forms are recognised. A value is taken from
// the following argument only when that argument does not start with "-".
// The result is never nil.
func FilterArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[f] = struct{}{}
	}

	filtered := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if strings.HasPrefix(arg, "-") && strings.Contains(arg, "=") {
			name, _, _ := strings.Cut(arg, "=")
			if _, ok := allowed[name]; ok {
				filtered = append(filtered, arg)
			}
			continue
		}

		if _, ok := allowed[arg]; ok {
			filtered = append(filtered, arg)
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				filtered = append(filtered, args[i+1])
				i++
			}
		}
	}

	return filtered
}

// lookupString parses a single string flag known under several names and
// returns its last value, or def when it is absent.
func lookupString(args []string, def string, names ...string) string {
	dashed := make([]string, 0, len(names))
	for _, n := range names {
		dashed = append(dashed, "-"+n, "--"+n)
	}

	value := def
	fs := flag.NewFlagSet("lookup", flag.ContinueOnError)
	fs.SetOutput(discard{})
	for _, n := range names {
		fs.StringVar(&value, n, def, "")
	}
	_ = fs.Parse(FilterArgs(args, dashed))
	return value
}

// ConfigFilePath returns the JSON config path given by -c or -config, or ""
// when none was passed.
func ConfigFilePath(args []string) string {
	return lookupString(args, "", "c", "config")
}

// EnvFilePath returns the dotenv file given by -env, defaulting to ".env".
func EnvFilePath(args []string) string {
	return lookupString(args, ".env", "env")
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
