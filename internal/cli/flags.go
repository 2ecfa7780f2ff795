package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const (
	toggleFlagTypeName      = "toggle"
	toggleAcceptedLiterals  = "true, false, yes, no, on, off, 1, 0"
	invalidToggleFlagFormat = "invalid value %q for --%s; accepted values: %s"
)

var toggleLiterals = map[string]bool{
	"true": true, "t": true, "1": true, "yes": true, "y": true, "on": true,
	"false": false, "f": false, "0": false, "no": false, "n": false, "off": false,
}

func parseToggleLiteral(input string) (bool, bool) {
	value, known := toggleLiterals[strings.ToLower(strings.TrimSpace(input))]
	return value, known
}

// toggleFlag is a boolean flag that also accepts its value as the next
// argument, so "--copy no" works like "--copy=false".
type toggleFlag struct {
	target *bool
	name   string
}

func (flag *toggleFlag) Set(input string) error {
	if strings.TrimSpace(input) == "" {
		*flag.target = true
		return nil
	}
	value, known := parseToggleLiteral(input)
	if !known {
		return fmt.Errorf(invalidToggleFlagFormat, input, flag.name, toggleAcceptedLiterals)
	}
	*flag.target = value
	return nil
}

func (flag *toggleFlag) String() string {
	if flag == nil || flag.target == nil {
		return strconv.FormatBool(false)
	}
	return strconv.FormatBool(*flag.target)
}

func (flag *toggleFlag) Type() string {
	return toggleFlagTypeName
}

func registerToggleFlag(flagSet *pflag.FlagSet, target *bool, name string, defaultValue bool, usage string) {
	*target = defaultValue
	flagSet.Var(&toggleFlag{target: target, name: name}, name, usage)
	registered := flagSet.Lookup(name)
	registered.DefValue = strconv.FormatBool(defaultValue)
	registered.NoOptDefVal = strconv.FormatBool(true)
}

// joinToggleArguments rewrites "--name literal" into "--name=literal" for every
// toggle flag known to command or its descendants. Arguments after "--" are untouched.
func joinToggleArguments(command *cobra.Command, arguments []string) []string {
	toggleNames := map[string]struct{}{}
	collectToggleNames(command, toggleNames)
	if len(toggleNames) == 0 {
		return arguments
	}
	joined := make([]string, 0, len(arguments))
	for position := 0; position < len(arguments); position++ {
		argument := arguments[position]
		if argument == "--" {
			return append(joined, arguments[position:]...)
		}
		name := strings.TrimPrefix(argument, "--")
		_, isToggle := toggleNames[name]
		if isToggle && name != argument && position+1 < len(arguments) {
			if _, known := parseToggleLiteral(arguments[position+1]); known {
				joined = append(joined, argument+"="+arguments[position+1])
				position++
				continue
			}
		}
		joined = append(joined, argument)
	}
	return joined
}

func collectToggleNames(command *cobra.Command, target map[string]struct{}) {
	record := func(flag *pflag.Flag) {
		if flag.Value.Type() == toggleFlagTypeName {
			target[flag.Name] = struct{}{}
		}
	}
	command.PersistentFlags().VisitAll(record)
	command.Flags().VisitAll(record)
	for _, child := range command.Commands() {
		collectToggleNames(child, target)
	}
}
