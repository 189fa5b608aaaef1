package utils

import "testing"

func TestNormalizeInstallment(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"1", "1"},
		{"01", "1"},
		{"001", "1"},
		{" 01 ", "1"},
		{"1/3", "13"},
		{"0", "0"},
		{"00", "0"},
		{"", ""},
		{"A", ""},
		{"A-02", "2"},
		{"10", "10"},
		{"010", "10"},
	}
	for _, c := range cases {
		if got := NormalizeInstallment(c.in); got != c.want {
			t.Errorf("NormalizeInstallment(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestSameInstallment(t *testing.T) {
	if !SameInstallment("01", "1") {
		t.Error("01 and 1 must compare equal")
	}
	if !SameInstallment("1", "01") {
		t.Error("1 and 01 must compare equal")
	}
	if SameInstallment("1", "2") {
		t.Error("1 and 2 must not compare equal")
	}
	if SameInstallment("10", "1") {
		t.Error("10 and 1 must not compare equal")
	}
}
