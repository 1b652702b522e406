package models

import (
	"testing"
	"time"
)

func TestMessageValidate(t *testing.T) {
	m := Message{Speaker: "me", Body: "went hiking", Category: CategoryExperience, Origin: OriginHuman, CreatedAt: time.Now()}
	if err := m.Validate(); err != nil {
		t.Errorf("Expected valid message, got error: %v", err)
	}
}

func TestMessageValidateEmptySpeaker(t *testing.T) {
	m := Message{Body: "hi", Category: CategoryIdea, Origin: OriginHuman}
	if err := m.Validate(); err != ErrEmptySpeaker {
		t.Errorf("Expected ErrEmptySpeaker, got %v", err)
	}
}

func TestMessageValidateBadCategory(t *testing.T) {
	m := Message{Speaker: "me", Body: "hi", Category: Category("diary"), Origin: OriginHuman}
	if err := m.Validate(); err != ErrInvalidCategory {
		t.Errorf("Expected ErrInvalidCategory, got %v", err)
	}
}

func TestMessageValidateBadOrigin(t *testing.T) {
	m := Message{Speaker: "me", Body: "hi", Category: CategoryIdea, Origin: Origin("robot")}
	if err := m.Validate(); err != ErrInvalidOrigin {
		t.Errorf("Expected ErrInvalidOrigin, got %v", err)
	}
}

func TestIsValidCategory(t *testing.T) {
	valid := []Category{CategoryExperience, CategoryIdea, CategoryGratitude, CategoryReflection, CategoryUncategorized}
	for _, c := range valid {
		if !IsValidCategory(c) {
			t.Errorf("Expected %q to be valid", c)
		}
	}
	if IsValidCategory(Category("mood")) {
		t.Error("Expected unknown category to be invalid")
	}
}

func TestReminderPrefValidate(t *testing.T) {
	p := ReminderPref{SessionID: "abc", Hour: 18, Minute: 0, Timezone: "America/New_York"}
	if err := p.Validate(); err != nil {
		t.Errorf("Expected valid pref, got error: %v", err)
	}
}

func TestReminderPrefValidateErrors(t *testing.T) {
	cases := []struct {
		name string
		pref ReminderPref
		want error
	}{
		{"missing session", ReminderPref{Hour: 8}, ErrEmptySessionID},
		{"hour too large", ReminderPref{SessionID: "abc", Hour: 24}, ErrInvalidReminderTime},
		{"minute negative", ReminderPref{SessionID: "abc", Hour: 8, Minute: -1}, ErrInvalidReminderTime},
	}
	for _, tc := range cases {
		if err := tc.pref.Validate(); err != tc.want {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
	bad := ReminderPref{SessionID: "abc", Hour: 8, Timezone: "Mars/Olympus"}
	if err := bad.Validate(); err == nil {
		t.Error("Expected error for invalid timezone")
	}
}

func TestActionBuilders(t *testing.T) {
	say := Say("hello")
	if say.Type != ActionSay || say.Body != "hello" {
		t.Errorf("Unexpected say action: %+v", say)
	}
	media := ShowMedia("https://example.com/cat.gif")
	if media.Type != ActionShowMedia || media.URL != "https://example.com/cat.gif" {
		t.Errorf("Unexpected media action: %+v", media)
	}
}
