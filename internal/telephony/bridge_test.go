package telephony

import "testing"

func TestValidDestination(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"+15551234567", true},
		{"15551234567", true},
		{"(555) 123-4567", true},
		{"555.123.4567", true},
		{"client:operator-12", true},
		{"client: desk-phone ", true},
		{"", false},
		{"client:", false},
		{"client:   ", false},
		{"sip:agent@example.com", false},
		{"not a number", false},
		{"+1555123456789012345678901", false},
		{"12", false},
	}
	for _, tc := range cases {
		if got := ValidDestination(tc.in); got != tc.want {
			t.Errorf("ValidDestination(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestClientName(t *testing.T) {
	if got := ClientName("client:desk-1"); got != "desk-1" {
		t.Fatalf("expected desk-1, got %q", got)
	}
}

func TestRedactIdentity(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"operator-42", "ope********"},
		{"ab", "***"},
		{"", "***"},
	}
	for _, tc := range cases {
		if got := RedactIdentity(tc.in); got != tc.want {
			t.Errorf("RedactIdentity(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
