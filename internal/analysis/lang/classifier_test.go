package lang

import "testing"

func TestDetectArabic(t *testing.T) {
	cases := []string{
		"مرحبا",
		"أين صالة الصلاة؟",
		"السلام عليكم",
	}
	for _, text := range cases {
		if got := Detect(text); got != Arabic {
			t.Fatalf("Detect(%q) = %s, want Arabic", text, got)
		}
	}
}

func TestDetectEnglish(t *testing.T) {
	cases := []string{
		"Where are the prayer rooms?",
		"hello",
		"Gate 42, please.",
		"",
		"1234 !?",
	}
	for _, text := range cases {
		if got := Detect(text); got != English {
			t.Fatalf("Detect(%q) = %s, want English", text, got)
		}
	}
}

func TestDetectMixedTextIsArabic(t *testing.T) {
	// One Arabic character anywhere classifies the whole text.
	if got := Detect("flight رحلة at 10pm"); got != Arabic {
		t.Fatalf("mixed text classified as %s, want Arabic", got)
	}
}

func TestDetectIsDeterministic(t *testing.T) {
	text := "مرحبا hello"
	first := Detect(text)
	for i := 0; i < 10; i++ {
		if got := Detect(text); got != first {
			t.Fatalf("Detect changed answer between calls: %s then %s", first, got)
		}
	}
}

func TestDetectPresentationForms(t *testing.T) {
	// Arabic presentation forms (FB50-FDFF, FE70-FEFF) count as Arabic.
	if got := Detect("ﻻ"); got != Arabic {
		t.Fatalf("presentation form classified as %s, want Arabic", got)
	}
}
