package generator

import "testing"

func TestApprovalClassifiers(t *testing.T) {
	cases := []struct {
		feedback  string
		substring bool
		word      bool
	}{
		{"APPROVED", true, true},
		{"Looks great. APPROVED.", true, true},
		{"UNAPPROVED: text is blurry", true, false},
		{"approved", false, false},
		{"The logo is cut off on the left edge.", false, false},
		{"", false, false},
	}
	sub := NewApprovalClassifier("substring", "APPROVED")
	word := NewApprovalClassifier("word", "APPROVED")
	for _, tc := range cases {
		if got := sub.Approved(tc.feedback); got != tc.substring {
			t.Errorf("substring(%q) = %v, want %v", tc.feedback, got, tc.substring)
		}
		if got := word.Approved(tc.feedback); got != tc.word {
			t.Errorf("word(%q) = %v, want %v", tc.feedback, got, tc.word)
		}
	}
}

func TestCostAccumulatorNeverDecreases(t *testing.T) {
	var c CostAccumulator
	p := DefaultPricing()
	c.AddImage(p)
	c.AddUsage(p, Usage{PromptTokens: 2000, CompletionTokens: 1000})
	c.Add(-5)
	if got := FormatCost(c.Total()); got != "0.0650" {
		t.Fatalf("total = %s, want 0.0650", got)
	}
}

func TestCleanRewrite(t *testing.T) {
	cases := map[string]string{
		`  "Ship faster"  `: "Ship faster",
		`'Ship faster'`:     "Ship faster",
		`""Nested""`:        `"Nested"`,
		`"Mismatched'`:      `"Mismatched'`,
		`Plain text`:        "Plain text",
		`"`:                 `"`,
	}
	for in, want := range cases {
		if got := CleanRewrite(in); got != want {
			t.Errorf("CleanRewrite(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDecodeImage(t *testing.T) {
	img, err := DecodeImage(DataURL("image/jpeg", []byte("jpeg-bytes")))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if img.MimeType != "image/jpeg" || string(img.Data) != "jpeg-bytes" {
		t.Fatalf("unexpected image %+v", img)
	}
	if _, err := DecodeImage("not base64!"); err == nil {
		t.Fatalf("expected error for invalid base64")
	}
	if _, err := DecodeImage(""); err == nil {
		t.Fatalf("expected error for empty input")
	}
}
