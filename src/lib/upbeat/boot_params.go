package upbeat

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// BootParams is what the kernel is told at boot. On the board these come
// from the bootloader; hosted they come from JOY_* environment variables.
type BootParams struct {
	Console       string `envconfig:"CONSOLE" default:"stdout"`
	LogLevel      string `envconfig:"LOG_LEVEL" default:"info"`
	BoardRevision string `envconfig:"BOARD_REVISION" default:"a02082"`
	Ticks         int    `envconfig:"TICKS" default:"16"`
	Quanta        uint32 `envconfig:"QUANTA" default:"500000"`
	MaxFamilies   int    `envconfig:"MAX_FAMILIES" default:"64"`
	Pages         uint32 `envconfig:"PAGES" default:"256"`
	StackPages    uint32 `envconfig:"STACK_PAGES" default:"1"`
	HeapPages     uint32 `envconfig:"HEAP_PAGES" default:"1"`
}

const envPrefix = "JOY"

// LoadBootParams reads JOY_* from the environment.
func LoadBootParams() (*BootParams, error) {
	var p BootParams
	if err := envconfig.Process(envPrefix, &p); err != nil {
		return nil, fmt.Errorf("failed to load boot params: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// DefaultBootParams matches the defaults in the struct tags.
func DefaultBootParams() *BootParams {
	return &BootParams{
		Console:       "stdout",
		LogLevel:      "info",
		BoardRevision: "a02082",
		Ticks:         16,
		Quanta:        500000,
		MaxFamilies:   64,
		Pages:         256,
		StackPages:    1,
		HeapPages:     1,
	}
}

func (p *BootParams) Validate() error {
	switch {
	case p.Pages == 0 || p.Pages%64 != 0:
		return fmt.Errorf("JOY_PAGES must be a non-zero multiple of 64, got %d", p.Pages)
	case p.MaxFamilies < 1:
		return fmt.Errorf("JOY_MAX_FAMILIES must be at least 1, got %d", p.MaxFamilies)
	case p.StackPages == 0 || p.HeapPages == 0:
		return fmt.Errorf("a family needs at least one stack and one heap page")
	case p.StackPages+p.HeapPages > p.Pages:
		return fmt.Errorf("a family needs %d pages but only %d exist", p.StackPages+p.HeapPages, p.Pages)
	case p.Ticks < 0:
		return fmt.Errorf("JOY_TICKS can't be negative, got %d", p.Ticks)
	}
	return nil
}
