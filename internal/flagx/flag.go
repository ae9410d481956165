// Package flagx lets several components parse their own flags out of one
// command line.
package flagx

import (
	"flag"
	"io"
	"os"
	"strings"
)

// FilterArgs returns the arguments that belong to allowedFlags, together
// with their values.
//
// A flag may be written with one or two dashes whatever form allowedFlags
// uses, as the flag package accepts both. Values are taken from "-f=value"
// or from the next argument when it does not start with a dash. Parsing
// stops at a bare "--".
func FilterArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[flagName(f)] = struct{}{}
	}

	filtered := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			break
		}
		if !strings.HasPrefix(arg, "-") {
			continue
		}

		name, _, hasValue := strings.Cut(arg, "=")
		if _, ok := allowed[flagName(name)]; !ok {
			continue
		}

		filtered = append(filtered, arg)
		if !hasValue && i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			filtered = append(filtered, args[i+1])
			i++
		}
	}

	return filtered
}

func flagName(f string) string {
	return strings.TrimLeft(f, "-")
}

// ConfigFileFlag inspects command-line arguments and extracts the config
// file path provided via the -c or -config flags.
//
// If neither is present, an empty string is returned.
func ConfigFileFlag() string {
	return ConfigFileFlagFrom(os.Args[1:])
}

// ConfigFileFlagFrom is ConfigFileFlag over explicit args. A later flag
// wins over an earlier one.
func ConfigFileFlagFrom(args []string) string {
	var config string

	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&config, "config", "", "Path to config file")
	fs.StringVar(&config, "c", "", "Path to config file (short)")
	_ = fs.Parse(FilterArgs(args, []string{"-c", "-config"}))

	return config
}
