package story

import (
	"encoding/json"
	"fmt"
	"strings"
)

func validateOutline(payload []byte) error {
	var outline Outline
	if err := json.Unmarshal(payload, &outline); err != nil {
		return fmt.Errorf("decode outline: %w", err)
	}
	if strings.TrimSpace(outline.Title) == "" {
		return fmt.Errorf("outline missing title")
	}
	if len(outline.Acts) == 0 {
		return fmt.Errorf("outline has no acts")
	}
	return nil
}

func validateCast(payload []byte) error {
	var cast Cast
	if err := json.Unmarshal(payload, &cast); err != nil {
		return fmt.Errorf("decode cast: %w", err)
	}
	if len(cast.Characters) == 0 {
		return fmt.Errorf("cast has no characters")
	}
	for i, member := range cast.Characters {
		if strings.TrimSpace(member.Name) == "" {
			return fmt.Errorf("cast member %d missing name", i)
		}
	}
	return nil
}

func validateProfile(payload []byte) error {
	var profile Profile
	if err := json.Unmarshal(payload, &profile); err != nil {
		return fmt.Errorf("decode profile: %w", err)
	}
	if strings.TrimSpace(profile.Name) == "" {
		return fmt.Errorf("profile missing name")
	}
	if strings.TrimSpace(profile.Motivation) == "" {
		return fmt.Errorf("profile missing motivation")
	}
	return nil
}

func validateSetting(payload []byte) error {
	var setting Setting
	if err := json.Unmarshal(payload, &setting); err != nil {
		return fmt.Errorf("decode setting: %w", err)
	}
	if strings.TrimSpace(setting.World) == "" {
		return fmt.Errorf("setting missing world")
	}
	return nil
}

func validateTheme(payload []byte) error {
	var theme Theme
	if err := json.Unmarshal(payload, &theme); err != nil {
		return fmt.Errorf("decode theme: %w", err)
	}
	if strings.TrimSpace(theme.Statement) == "" {
		return fmt.Errorf("theme missing statement")
	}
	return nil
}

func validateDocument(payload []byte) error {
	var doc Document
	if err := json.Unmarshal(payload, &doc); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	if strings.TrimSpace(doc.Title) == "" {
		return fmt.Errorf("document missing title")
	}
	if len(doc.Chapters) == 0 {
		return fmt.Errorf("document has no chapters")
	}
	return nil
}
