package types

import (
	"strings"
	"testing"
)

func TestParseDomain(t *testing.T) {
	for _, d := range Domains() {
		got, err := ParseDomain(string(d))
		if err != nil {
			t.Fatalf("ParseDomain(%q) returned error: %v", d, err)
		}
		if got != d {
			t.Errorf("ParseDomain(%q) = %q, want %q", d, got, d)
		}
	}

	_, err := ParseDomain("cooking")
	if err == nil {
		t.Fatal("ParseDomain(\"cooking\") should fail")
	}
	// The rejection message must spell out every valid value.
	for _, d := range Domains() {
		if !strings.Contains(err.Error(), string(d)) {
			t.Errorf("error %q missing valid value %q", err.Error(), d)
		}
	}
}

func TestParseStrategy(t *testing.T) {
	if _, err := ParseStrategy("trial-and-error"); err != nil {
		t.Fatalf("ParseStrategy(trial-and-error) = %v", err)
	}
	_, err := ParseStrategy("guess")
	if err == nil {
		t.Fatal("ParseStrategy(\"guess\") should fail")
	}
	for _, s := range Strategies() {
		if !strings.Contains(err.Error(), string(s)) {
			t.Errorf("error %q missing valid value %q", err.Error(), s)
		}
	}
}

func TestParseRootCauseCategory(t *testing.T) {
	if _, err := ParseRootCauseCategory("wrong-assumption"); err != nil {
		t.Fatalf("ParseRootCauseCategory(wrong-assumption) = %v", err)
	}
	_, err := ParseRootCauseCategory("bad-luck")
	if err == nil {
		t.Fatal("ParseRootCauseCategory(\"bad-luck\") should fail")
	}
	for _, c := range RootCauseCategories() {
		if !strings.Contains(err.Error(), string(c)) {
			t.Errorf("error %q missing valid value %q", err.Error(), c)
		}
	}
}

func TestParseAxis(t *testing.T) {
	tests := []struct {
		in      string
		want    Axis
		wantErr bool
	}{
		{"full", AxisFull, false},
		{"strategy", AxisStrategy, false},
		{"surprise", AxisSurprise, false},
		{"root_cause", AxisRootCause, false},
		{"rootcause", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseAxis(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseAxis(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseAxis(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTierWeights(t *testing.T) {
	tests := []struct {
		tier ConfidenceTier
		want float64
	}{
		{TierGold, 1.0},
		{TierSilver, 0.8},
		{TierBronze, 0.5},
		{TierAbandoned, 0.2},
		{ConfidenceTier("unknown"), 0.5},
		{ConfidenceTier(""), 0.5},
	}
	for _, tt := range tests {
		if got := tt.tier.Weight(); got != tt.want {
			t.Errorf("Weight(%q) = %v, want %v", tt.tier, got, tt.want)
		}
	}
}

func TestDeriveTier(t *testing.T) {
	lesson := &Lesson{WhatWorked: "bisecting", Takeaway: "check env first"}
	empty := &Lesson{}

	tests := []struct {
		name   string
		status OutcomeStatus
		lesson *Lesson
		want   ConfidenceTier
	}{
		{"confirmed", OutcomeConfirmed, nil, TierGold},
		{"confirmed with lesson", OutcomeConfirmed, lesson, TierGold},
		{"falsified with takeaway", OutcomeFalsified, lesson, TierSilver},
		{"falsified without lesson", OutcomeFalsified, nil, TierBronze},
		{"falsified empty lesson", OutcomeFalsified, empty, TierBronze},
		{"abandoned", OutcomeAbandoned, nil, TierAbandoned},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveTier(tt.status, tt.lesson); got != tt.want {
				t.Errorf("DeriveTier(%s) = %q, want %q", tt.status, got, tt.want)
			}
		})
	}
}

func TestSchemaSetsMatchValidatorSets(t *testing.T) {
	// Validator-facing slices are the single source for schema enums; a
	// mismatch in counts means a constant was added to one side only.
	if len(Domains()) != 9 {
		t.Errorf("Domains() has %d entries, want 9", len(Domains()))
	}
	if len(Strategies()) != 9 {
		t.Errorf("Strategies() has %d entries, want 9", len(Strategies()))
	}
	if len(RootCauseCategories()) != 9 {
		t.Errorf("RootCauseCategories() has %d entries, want 9", len(RootCauseCategories()))
	}
	if len(Axes()) != 4 {
		t.Errorf("Axes() has %d entries, want 4", len(Axes()))
	}
}
