package cli

import (
	"fmt"

	"dynaccess/internal/config"
	"dynaccess/pkg/dynaccess"
)

// PrintSettings prints the effective settings in a human-readable format
func PrintSettings(settings *config.Settings) {
	fmt.Printf("\n=== dynaccess Configuration ===\n\n")
	fmt.Printf("Mapping file:    %s\n", settings.Mapping)
	fmt.Printf("Container:       %s\n", orDash(settings.Container))
	fmt.Printf("Nameserver:      %s\n", orDash(settings.Nameserver))
	fmt.Printf("Resolve timeout: %s\n", settings.ResolveTimeout.Std())
	fmt.Printf("DB timeout:      %s\n", settings.Database.Timeout.Std())
	if settings.Database.Complete() {
		fmt.Printf("Database:        %s@%s:%d/%s\n",
			settings.Database.User, settings.Database.Host, settings.Database.Port, settings.Database.Name)
	} else {
		fmt.Printf("Database:        discovered from container env\n")
	}
	fmt.Println()
}

// PrintMapping prints the tracked domains and their last-known IPs
func PrintMapping(m dynaccess.Mapping) {
	if len(m) == 0 {
		fmt.Println("No tracked domains yet (empty mapping)")
		return
	}

	fmt.Printf("Tracked domains (%d total):\n", len(m))
	for _, domain := range m.Domains() {
		fmt.Printf("  %s -> %s\n", domain, m[domain])
	}
	fmt.Println()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
