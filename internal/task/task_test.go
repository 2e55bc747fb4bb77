package task

import "testing"

func TestParseType(t *testing.T) {
	tests := []struct {
		in   string
		want Type
	}{
		{"generate", GenerateFromDescription},
		{"1", GenerateFromDescription},
		{"Explain", Explain},
		{" 2 ", Explain},
		{"complete", Complete},
		{"3", Complete},
		{"DEBUG", Debug},
		{"4", Debug},
	}
	for _, tt := range tests {
		got, err := ParseType(tt.in)
		if err != nil {
			t.Errorf("ParseType(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseType(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseType_Invalid(t *testing.T) {
	for _, in := range []string{"", "5", "refactor"} {
		if _, err := ParseType(in); err == nil {
			t.Errorf("ParseType(%q) expected error", in)
		}
	}
}

func TestTypeStringRoundTrip(t *testing.T) {
	for _, typ := range All {
		got, err := ParseType(typ.String())
		if err != nil {
			t.Fatalf("ParseType(%q): %v", typ.String(), err)
		}
		if got != typ {
			t.Errorf("round trip %v -> %v", typ, got)
		}
	}
}

func TestRequestValidate(t *testing.T) {
	if err := (Request{Type: Explain, Input: "print('hi')"}).Validate(); err != nil {
		t.Errorf("valid request rejected: %v", err)
	}
	if err := (Request{Type: Explain, Input: "   "}).Validate(); err == nil {
		t.Error("blank input accepted")
	}
	if err := (Request{Type: Type(9), Input: "x"}).Validate(); err == nil {
		t.Error("unknown type accepted")
	}
}

func TestStageString(t *testing.T) {
	if Received.String() != "received" || Done.String() != "done" {
		t.Errorf("unexpected stage names %q %q", Received, Done)
	}
}

func TestIsSentinel(t *testing.T) {
	for _, s := range []string{SentinelGenerationUnavailable, SentinelNoOutput} {
		if !IsSentinel(s) {
			t.Errorf("IsSentinel(%q) = false", s)
		}
	}
	for _, s := range []string{"", "def f(): pass", SentinelPromptUnavailable} {
		if IsSentinel(s) {
			t.Errorf("IsSentinel(%q) = true", s)
		}
	}
}
