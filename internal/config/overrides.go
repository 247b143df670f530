package config

import "strings"

// Overrides carries command-line values. Nil fields leave the loaded value
// in place.
type Overrides struct {
	Game        *string
	GameArgs    *[]string
	Provider    *string
	Model       *string
	MaxTurns    *int
	MaxRetries  *int
	LogLevel    *string
	LogDir      *string
	Temperature *float64
	LoopDetect  *bool
	ContextKind *string
	MaxMessages *int
}

// Apply overlays o onto c. Flags win over every file.
func (c *Config) Apply(o Overrides) {
	if o.Game != nil {
		c.Game = strings.TrimSpace(*o.Game)
	}
	if o.GameArgs != nil {
		c.GameArgs = append([]string(nil), (*o.GameArgs)...)
	}
	if o.Provider != nil {
		c.Provider = normalizeKey(*o.Provider)
	}
	if o.Model != nil {
		c.Model = strings.TrimSpace(*o.Model)
	}
	if o.MaxTurns != nil {
		c.MaxTurns = *o.MaxTurns
	}
	if o.MaxRetries != nil {
		c.MaxRetries = *o.MaxRetries
	}
	if o.LogLevel != nil {
		c.LogLevel = normalizeKey(*o.LogLevel)
	}
	if o.LogDir != nil {
		c.LogDir = strings.TrimSpace(*o.LogDir)
	}
	if o.Temperature != nil {
		temp := *o.Temperature
		c.Temperature = &temp
	}
	if o.LoopDetect != nil {
		c.LoopDetection.Enabled = *o.LoopDetect
	}
	if o.ContextKind != nil {
		c.Context.Kind = contextKind(*o.ContextKind)
	}
	if o.MaxMessages != nil {
		c.Context.MaxMessages = *o.MaxMessages
	}
}
