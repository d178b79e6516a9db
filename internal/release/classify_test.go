package release

import "testing"

func TestClassify(t *testing.T) {
	t.Parallel()
	tests := []struct {
		id   string
		want Category
	}{
		{id: "1.21.2", want: CategoryRelease},
		{id: "1.21", want: CategoryRelease},
		{id: "24w10a", want: CategorySnapshot},
		{id: "24W10A", want: CategorySnapshot},
		{id: "1.21-pre1", want: CategoryPreRelease},
		{id: "1.21-PRE2", want: CategoryPreRelease},
		{id: "1.21-rc.2", want: CategoryReleaseCandidate},
		{id: "1.20.5-rc1", want: CategoryReleaseCandidate},
		{id: "whatever", want: CategoryUnknown},
		{id: "", want: CategoryUnknown},
		{id: "1.21.2.4", want: CategoryUnknown},
		{id: "24w10", want: CategoryUnknown},
		{id: "24w10ab", want: CategoryUnknown},
		{id: "b1.7.3", want: CategoryUnknown},
		{id: "3D Shareware v1.34", want: CategoryUnknown},
		// "pre" wins over everything else, including an "rc" marker.
		{id: "rc-pre", want: CategoryPreRelease},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.id, func(t *testing.T) {
			t.Parallel()
			if got := Classify(tt.id); got != tt.want {
				t.Fatalf("Classify(%q) = %q, want %q", tt.id, got, tt.want)
			}
		})
	}
}

func TestClassifyIsTotal(t *testing.T) {
	t.Parallel()
	inputs := []string{"\x00", "....", "-", "w", "1.", ".1", "🙂", "1.21-", "pre", "RC", "  1.21  "}
	valid := map[Category]bool{
		CategoryRelease:          true,
		CategorySnapshot:         true,
		CategoryPreRelease:       true,
		CategoryReleaseCandidate: true,
		CategoryUnknown:          true,
	}
	for _, in := range inputs {
		got := Classify(in)
		if !valid[got] {
			t.Fatalf("Classify(%q) returned %q outside the category set", in, got)
		}
		if again := Classify(in); again != got {
			t.Fatalf("Classify(%q) not deterministic: %q then %q", in, got, again)
		}
	}
}

func TestParseCategory(t *testing.T) {
	t.Parallel()
	for _, s := range []string{"release", "snapshot", "pre_release", "Release-Candidate", "unknown"} {
		if _, ok := ParseCategory(s); !ok {
			t.Fatalf("ParseCategory(%q) not recognised", s)
		}
	}
	if c, ok := ParseCategory("beta"); ok || c != CategoryUnknown {
		t.Fatalf("ParseCategory(beta) = %q, %v", c, ok)
	}
	if CategoryReleaseCandidate.Label() != "Release Candidate" {
		t.Fatalf("unexpected label %q", CategoryReleaseCandidate.Label())
	}
}
