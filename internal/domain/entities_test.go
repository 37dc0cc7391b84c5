package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestPlatformValid(t *testing.T) {
	for _, p := range KnownPlatforms {
		if !p.Valid() {
			t.Fatalf("платформа %q должна поддерживаться", p)
		}
	}
	for _, p := range []Platform{"vimeo", "", "Youtube"} {
		if p.Valid() {
			t.Fatalf("платформа %q не должна поддерживаться", p)
		}
	}
}

func TestPublicationConfigValidate(t *testing.T) {
	cases := []struct {
		name   string
		cfg    PublicationConfig
		hasErr bool
	}{
		{
			name: "daily с одним временем",
			cfg:  PublicationConfig{Frequency: FrequencyDaily, Times: []string{"14:00"}, Timezone: "UTC"},
		},
		{
			name:   "daily с двумя временами",
			cfg:    PublicationConfig{Frequency: FrequencyDaily, Times: []string{"08:00", "14:00"}, Timezone: "UTC"},
			hasErr: true,
		},
		{
			name: "multiple-daily с двумя временами",
			cfg:  PublicationConfig{Frequency: FrequencyMultipleDaily, Times: []string{"08:00", "16:00"}, Timezone: "Europe/Moscow"},
		},
		{
			name:   "multiple-daily с одним временем",
			cfg:    PublicationConfig{Frequency: FrequencyMultipleDaily, Times: []string{"08:00"}, Timezone: "UTC"},
			hasErr: true,
		},
		{
			name: "every-x-days с интервалом",
			cfg:  PublicationConfig{Frequency: FrequencyEveryXDays, Times: []string{"09:00"}, Interval: 2, Timezone: "UTC"},
		},
		{
			name:   "every-x-days без интервала",
			cfg:    PublicationConfig{Frequency: FrequencyEveryXDays, Times: []string{"09:00"}, Timezone: "UTC"},
			hasErr: true,
		},
		{
			name:   "время вне диапазона",
			cfg:    PublicationConfig{Frequency: FrequencyDaily, Times: []string{"24:00"}, Timezone: "UTC"},
			hasErr: true,
		},
		{
			name:   "время не в формате HH:MM",
			cfg:    PublicationConfig{Frequency: FrequencyDaily, Times: []string{"9:00"}, Timezone: "UTC"},
			hasErr: true,
		},
		{
			name:   "неизвестный часовой пояс",
			cfg:    PublicationConfig{Frequency: FrequencyDaily, Times: []string{"09:00"}, Timezone: "Луна/Кратер"},
			hasErr: true,
		},
		{
			name:   "неизвестная частота",
			cfg:    PublicationConfig{Frequency: "weekly", Times: []string{"09:00"}, Timezone: "UTC"},
			hasErr: true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.hasErr {
				if !errors.Is(err, ErrInvalidConfig) {
					t.Fatalf("ожидали ErrInvalidConfig, получили %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("не ожидали ошибку: %v", err)
			}
		})
	}
}

func TestHashtagPattern(t *testing.T) {
	valid := []string{"#video", "#Shorts", "#tag_1", "#2024"}
	for _, tag := range valid {
		if !HashtagPattern.MatchString(tag) {
			t.Fatalf("тег %q должен проходить шаблон", tag)
		}
	}
	invalid := []string{"video", "#", "#с пробелом", "#кириллица", "#a-b", "##x"}
	for _, tag := range invalid {
		if HashtagPattern.MatchString(tag) {
			t.Fatalf("тег %q не должен проходить шаблон", tag)
		}
	}
}

func TestIsTransient(t *testing.T) {
	base := errors.New("сбой")
	if !IsTransient(NewTransient(base)) {
		t.Fatalf("NewTransient должен давать временную ошибку")
	}
	if IsTransient(NewTerminal(base)) {
		t.Fatalf("NewTerminal должен давать окончательную ошибку")
	}
	if IsTransient(base) {
		t.Fatalf("непомеченная ошибка не считается временной")
	}
	wrapped := fmt.Errorf("обёртка: %w", NewTransient(base))
	if !IsTransient(wrapped) {
		t.Fatalf("признак должен сохраняться через обёртки")
	}
	if !errors.Is(NewTransient(fmt.Errorf("%w: детали", ErrInvalidURL)), ErrInvalidURL) {
		t.Fatalf("исходная ошибка должна раскрываться через Unwrap")
	}
}
