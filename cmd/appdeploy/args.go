// cmd/appdeploy/args.go - command line normalisation

package main

import "strings"

// switchAliases maps the PowerShell-style switches packagers already use in
// deployment scripts onto the long flags.
var switchAliases = map[string]string{
	"deploymenttype":         "deployment-type",
	"deploymode":             "deploy-mode",
	"allowrebootpassthru":    "allow-reboot-pass-through",
	"allowrebootpassthrough": "allow-reboot-pass-through",
	"disablelogging":         "disable-logging",
}

// normalizeArgs rewrites -DeploymentType Uninstall and /DeployMode:Silent
// style arguments into --deployment-type Uninstall and --deploy-mode=Silent.
// Anything else is passed through unchanged.
func normalizeArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for _, arg := range args {
		if strings.HasPrefix(arg, "--") || len(arg) < 3 || (arg[0] != '-' && arg[0] != '/') {
			out = append(out, arg)
			continue
		}
		name, value, hasValue := strings.Cut(arg[1:], ":")
		long, ok := switchAliases[strings.ToLower(name)]
		if !ok {
			out = append(out, arg)
			continue
		}
		if hasValue {
			out = append(out, "--"+long+"="+value)
		} else {
			out = append(out, "--"+long)
		}
	}
	return out
}
