package utils

import (
	"errors"
	"testing"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr error
	}{
		{"9.99", "9.99", nil},
		{" 10 ", "10", nil},
		{"0.01", "0.01", nil},
		{"", "", ErrPriceRequired},
		{"abc", "", ErrPriceInvalid},
		{"0", "", ErrPriceOutOfRange},
		{"-5", "", ErrPriceOutOfRange},
		{"1.999", "", ErrPriceTooPrecise},
		{"99999999999999999", "", ErrPriceOutOfRange},
	}

	for _, tc := range tests {
		got, err := ParsePrice(tc.in)
		if tc.wantErr != nil {
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("ParsePrice(%q): expected %v, got %v", tc.in, tc.wantErr, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParsePrice(%q): unexpected error %v", tc.in, err)
			continue
		}
		if got.String() != tc.want {
			t.Errorf("ParsePrice(%q) = %s, want %s", tc.in, got.String(), tc.want)
		}
	}
}
