// Package avatar is the boundary to the image generation collaborator. The
// server only builds prompts and hands them to a Generator.
package avatar

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"puppet-arena/server/internal/world"
)

const (
	basePrompt     = "A sock puppet with a dark gothic background."
	detailedLength = 100
)

var ErrEmptyPrompt = errors.New("avatar: prompt is required")

// Generator turns a prompt into an image URL.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Placeholder returns a fixed URL for every prompt. It stands in when no
// image backend is configured.
type Placeholder struct {
	URL string
}

func (p Placeholder) Generate(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyPrompt
	}
	if p.URL == "" {
		return world.DefaultAvatarURL, nil
	}
	return p.URL, nil
}

// PromptFor describes a puppet's look. A nil config yields the generic prompt.
func PromptFor(cfg *world.AvatarConfig) string {
	if cfg == nil {
		return basePrompt
	}
	var b strings.Builder
	fmt.Fprintf(&b, "A %s sockpuppet with a %s pattern, %s", orDefault(cfg.Material, "wool"), orDefault(cfg.Pattern, "plain"), orDefault(cfg.Eyes, "button eyes"))
	if accessories := strings.TrimSpace(cfg.Accessories); accessories != "" && !strings.EqualFold(accessories, "none") {
		fmt.Fprintf(&b, ", and %s", accessories)
	}
	b.WriteString(". Dark avatar 3D realistic sockpuppet with haunted gothic background.")
	return b.String()
}

// Enhance appends styling instructions. Short prompts get the longer suffix.
func Enhance(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if len(prompt) > detailedLength {
		return prompt + ". High quality digital art style for a game avatar, vibrant lighting, character portrait."
	}
	return prompt + ". High quality digital art style for a game avatar, detailed character portrait, vibrant colors, dynamic lighting, fantasy game art style, isolated on dark background."
}

func orDefault(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}
