package timekey

import "testing"

func TestNormalize_Scenario(t *testing.T) {
	got, err := Normalize("28/Feb/2015:12:30:23")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := "2015-02-28T12:30:23"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestNormalize_AllMonths(t *testing.T) {
	cases := map[string]string{
		"01/Jan/2020:00:00:00": "2020-01-01T00:00:00",
		"15/Jun/2020:08:09:10": "2020-06-15T08:09:10",
		"31/Dec/2020:23:59:59": "2020-12-31T23:59:59",
	}
	for in, want := range cases {
		got, err := Normalize(in)
		if err != nil {
			t.Fatalf("Normalize(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalize_Malformed(t *testing.T) {
	cases := []string{
		"",
		"28/Feb/2015",
		"28/Xyz/2015:12:30:23",
		"2015-02-28T12:30:23",
		"XX/Feb/2015:12:30:23",
	}
	for _, in := range cases {
		if _, err := Normalize(in); err == nil {
			t.Errorf("Normalize(%q): expected error, got nil", in)
		}
	}
}
