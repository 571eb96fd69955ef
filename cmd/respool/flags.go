package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"

	"github.com/guileen/respool/config"
)

const flagGroupAnnotation = "group"

type cliSettings struct {
	configPath string
	mode       string
	borrowers  int
	requests   int

	capacity  int
	onFull    string
	limit     string
	adminAddr string
	address   string
}

// parseFlags parses args into settings. help is true when usage was requested.
func parseFlags(fs *pflag.FlagSet, args []string) (settings cliSettings, help bool, err error) {
	fs.SortFlags = false

	fs.StringVarP(&settings.configPath, "config", "c", "", "TOML configuration file")
	fs.StringVarP(&settings.mode, "mode", "m", "conn", "Demo to run: conn, batch or net")
	fs.IntVarP(&settings.borrowers, "borrowers", "b", 4, "Number of concurrent borrowers")
	fs.IntVarP(&settings.requests, "requests", "n", 6, "Resources acquired by the example, and per borrower")
	printHelp := fs.BoolP("help", "h", false, "Show this help message")

	poolSection := "Pool Options"
	fs.IntVar(&settings.capacity, "capacity", config.DefaultCapacity, "Idle resources kept (live resources with --limit live)")
	addFlagToHelpGroup(fs, "capacity", poolSection)
	fs.StringVar(&settings.onFull, "on-full", "discard", "Release policy for a full pool: discard, error, evict_oldest")
	addFlagToHelpGroup(fs, "on-full", poolSection)
	fs.StringVar(&settings.limit, "limit", "idle", "What capacity bounds: idle or live")
	addFlagToHelpGroup(fs, "limit", poolSection)

	serviceSection := "Service Options"
	fs.StringVar(&settings.adminAddr, "admin-addr", "", "Serve the admin API on this address until interrupted. Empty disables it")
	addFlagToHelpGroup(fs, "admin-addr", serviceSection)
	fs.StringVar(&settings.address, "address", "", "Address dialed by the net demo")
	addFlagToHelpGroup(fs, "address", serviceSection)

	if err = fs.Parse(args); err != nil {
		return settings, false, err
	}
	return settings, *printHelp, nil
}

// apply overrides cfg with the flags given on the command line
func (s cliSettings) apply(fs *pflag.FlagSet, cfg *config.Config) {
	if fs.Changed("capacity") {
		cfg.Pool.Capacity = s.capacity
	}
	if fs.Changed("on-full") {
		cfg.Pool.OnFull = s.onFull
	}
	if fs.Changed("limit") {
		cfg.Pool.Limit = s.limit
	}
	if fs.Changed("admin-addr") {
		cfg.Admin.Listen = s.adminAddr
		cfg.Admin.Enabled = s.adminAddr != ""
	}
	if fs.Changed("address") {
		cfg.Network.Address = s.address
	}
}

func addFlagToHelpGroup(fs *pflag.FlagSet, flagName string, helpGroupName string) {
	lookupFlag := fs.Lookup(flagName)
	if lookupFlag == nil {
		panic("unknown flag: " + flagName)
	}
	if lookupFlag.Annotations == nil {
		lookupFlag.Annotations = map[string][]string{}
	}
	lookupFlag.Annotations[flagGroupAnnotation] = []string{helpGroupName}
}

func cliUsage(fs *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, "Usage: %s [flags]\n\n", filepath.Base(os.Args[0]))

	// Group flags by annotation, default to "General Options"
	groups := make(map[string][]*pflag.Flag)
	var order []string
	var longestName int
	fs.VisitAll(func(f *pflag.Flag) {
		group := "General Options"
		if a := f.Annotations[flagGroupAnnotation]; len(a) > 0 {
			group = a[0]
		}
		if _, ok := groups[group]; !ok {
			order = append(order, group)
		}
		groups[group] = append(groups[group], f)
		longestName = max(longestName, len(f.Name)+1)
	})

	for _, group := range order {
		fmt.Fprintf(os.Stderr, "%s:\n", group)
		for _, f := range groups[group] {
			padding := strings.Repeat(" ", longestName-len(f.Name))
			def := f.DefValue
			if def == "" {
				def = `""`
			}
			fmt.Fprintf(os.Stderr, "\t--%s%s %s (default: %s)\n", f.Name, padding, f.Usage, def)
		}
		fmt.Fprintln(os.Stderr)
	}
}
