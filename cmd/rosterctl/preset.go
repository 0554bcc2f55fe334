package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/kingrea/roster/internal/employee"
	"github.com/kingrea/roster/internal/prompt"
)

type keyValueFlag map[string]string

func (kv *keyValueFlag) String() string {
	if kv == nil || len(*kv) == 0 {
		return ""
	}
	var pairs []string
	for key, value := range *kv {
		pairs = append(pairs, fmt.Sprintf("%s=%s", key, value))
	}
	return strings.Join(pairs, ", ")
}

func (kv *keyValueFlag) Set(value string) error {
	parts := strings.SplitN(value, "=", 2)
	if len(parts) != 2 {
		return fmt.Errorf("expected key=value, got %q", value)
	}
	key := strings.TrimSpace(parts[0])
	if key == "" {
		return fmt.Errorf("field name is empty in %q", value)
	}
	if *kv == nil {
		*kv = keyValueFlag{}
	}
	(*kv)[key] = parts[1]
	return nil
}

// fields resolves the keys to form fields, keyed by label.
func (kv keyValueFlag) fields() (map[string]string, error) {
	out := make(map[string]string, len(kv))
	for key, value := range kv {
		field, ok := employee.ParseField(key)
		if !ok {
			return nil, fmt.Errorf("unknown field %q (want name, hireDate or jobDescription)", key)
		}
		out[field.Label()] = value
	}
	return out, nil
}

// presetDriver answers field prompts from -set values and confirmations
// from -yes, falling through to the terminal for everything else. Each
// preset answers once so a rejected value is asked for again.
type presetDriver struct {
	prompt.Driver
	answers map[string]string
	yes     bool
}

func newPresetDriver(next prompt.Driver, answers map[string]string, yes bool) *presetDriver {
	if answers == nil {
		answers = map[string]string{}
	}
	return &presetDriver{Driver: next, answers: answers, yes: yes}
}

func (d *presetDriver) take(label string) (string, bool) {
	value, ok := d.answers[label]
	if ok {
		delete(d.answers, label)
	}
	return value, ok
}

func (d *presetDriver) Input(ctx context.Context, cfg prompt.InputConfig) (string, error) {
	if value, ok := d.take(cfg.Message); ok {
		return value, nil
	}
	return d.Driver.Input(ctx, cfg)
}

func (d *presetDriver) TextArea(ctx context.Context, cfg prompt.TextAreaConfig) (string, error) {
	if value, ok := d.take(cfg.Message); ok {
		return value, nil
	}
	return d.Driver.TextArea(ctx, cfg)
}

func (d *presetDriver) Confirm(ctx context.Context, cfg prompt.ConfirmConfig) (bool, error) {
	if d.yes {
		return true, nil
	}
	return d.Driver.Confirm(ctx, cfg)
}
