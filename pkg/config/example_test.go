package config_test

import (
	"fmt"

	"github.com/ajitpratap0/roast/pkg/config"
	"github.com/ajitpratap0/roast/pkg/settings"
)

// ExampleDefault demonstrates the configuration used when nothing is set.
func ExampleDefault() {
	cfg := config.Default()

	fmt.Printf("Codec: %s\n", cfg.Storage.Compression)
	fmt.Printf("Log every: %d\n", cfg.Selector.LogEvery)
	fmt.Printf("Treemap output: %s\n", cfg.Treemap.OutputName)

	// Output:
	// Codec: snappy
	// Log every: 10000
	// Treemap output: events
}

// ExampleFromSettings shows that defaults are recorded in the store.
func ExampleFromSettings() {
	s := settings.New()
	s.Set(config.KeySelectorLogEvery, 500, settings.LevelUser)

	cfg := config.FromSettings(s)
	level, _ := s.LevelOf(config.KeyTreemapOutputName)

	fmt.Printf("Log every: %d\n", cfg.Selector.LogEvery)
	fmt.Printf("Saved default level: %s\n", level)

	// Output:
	// Log every: 500
	// Saved default level: local
}

// ExampleConfig_Validate shows how to validate a configuration before a
// run starts.
func ExampleConfig_Validate() {
	cfg := config.Default()
	cfg.Storage.Compression = "rar"

	if err := cfg.Validate(); err != nil {
		fmt.Println("invalid")
	}

	// Output:
	// invalid
}
