package browser

import "strings"

// SplitFlag splits a Chromium command-line switch such as "--lang=en" or
// "no-zygote" into its bare name and value. Boolean switches have an empty
// value.
func SplitFlag(arg string) (name, value string) {
	arg = strings.TrimLeft(strings.TrimSpace(arg), "-")
	if i := strings.IndexByte(arg, '='); i >= 0 {
		return arg[:i], arg[i+1:]
	}
	return arg, ""
}

// NormalizeFlag renders arg in the "--name[=value]" form.
func NormalizeFlag(arg string) string {
	name, value := SplitFlag(arg)
	if value == "" {
		return "--" + name
	}
	return "--" + name + "=" + value
}
