package validation

import (
	"fmt"
	"strconv"
	"testing"
)

func TestIsraeliID(t *testing.T) {
	tests := []struct {
		tz    string
		valid bool
	}{
		{"000000018", true},
		{"123456782", true},
		{"123456789", false},
		{"12345678", false},
		{"1234567820", false},
		{"12345678a", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsraeliID(tt.tz); got.Valid != tt.valid {
			t.Errorf("IsraeliID(%q) = %v, want %v (%s)", tt.tz, got.Valid, tt.valid, got.Message)
		}
	}
}

func TestIsraeliIDExactlyOneCheckDigit(t *testing.T) {
	prefixes := []string{"00000000", "12345678", "99999999", "31415926", "20202020", "87654321"}
	for i := 0; i < 200; i++ {
		prefixes = append(prefixes, fmt.Sprintf("%08d", i*499979%100000000))
	}

	for _, prefix := range prefixes {
		passes := 0
		for d := 0; d <= 9; d++ {
			if IsraeliID(prefix + strconv.Itoa(d)).Valid {
				passes++
			}
		}
		if passes != 1 {
			t.Fatalf("prefix %s: %d check digits pass, want exactly 1", prefix, passes)
		}
	}
}

func TestIDCheckDigit(t *testing.T) {
	if _, ok := IDCheckDigit("1234"); ok {
		t.Fatal("short prefix accepted")
	}
	d, ok := IDCheckDigit("12345678")
	if !ok || d != 2 {
		t.Fatalf("IDCheckDigit(12345678) = %d, %v; want 2, true", d, ok)
	}
}

func TestPassword(t *testing.T) {
	for _, p := range []string{"1234", "12345678", "00000"} {
		if !Password(p).Valid {
			t.Errorf("Password(%q) rejected", p)
		}
	}
	for _, p := range []string{"123", "123456789", "12a4", "", " 1234"} {
		if Password(p).Valid {
			t.Errorf("Password(%q) accepted", p)
		}
	}
}

func TestAmount(t *testing.T) {
	for _, a := range []string{"-5", "0", "1000000", "abc", "", "1+1", "2*3", "1e3", "0x10", "__import__('os')", "150.5", "99999999999999999999"} {
		if Amount(a).Valid {
			t.Errorf("Amount(%q) accepted", a)
		}
	}

	for _, a := range []string{"1", "150", "999999", "150.00", "150*0", "0007"} {
		if !Amount(a).Valid {
			t.Errorf("Amount(%q) rejected: %s", a, Amount(a).Message)
		}
	}
}

func TestAmountFullRange(t *testing.T) {
	for i := 1; i <= MaxAmount; i++ {
		v, res := ParseAmount(strconv.Itoa(i))
		if !res.Valid || v != int64(i) {
			t.Fatalf("ParseAmount(%d) = %d, %v", i, v, res)
		}
	}
}

func TestName(t *testing.T) {
	valid := []string{"Dani", "דני כהן", "  Moshe Levi  ", "ab"}
	invalid := []string{"a", "", "Dani3", "Dani!", "דני.", string(make([]rune, 51))}

	for _, n := range valid {
		if !Name(n).Valid {
			t.Errorf("Name(%q) rejected: %s", n, Name(n).Message)
		}
	}
	for _, n := range invalid {
		if Name(n).Valid {
			t.Errorf("Name(%q) accepted", n)
		}
	}

	long := ""
	for i := 0; i < 51; i++ {
		long += "א"
	}
	if Name(long).Valid {
		t.Error("51 letter name accepted")
	}
}

func TestYears(t *testing.T) {
	const year = 2026

	tests := []struct {
		name  string
		fn    func(string, int) Result
		value string
		valid bool
	}{
		{"open lower bound", OpenYear, "2000", true},
		{"open 2010", OpenYear, "2010", true},
		{"open current", OpenYear, "2026", true},
		{"open too early", OpenYear, "1999", false},
		{"open future", OpenYear, "2027", false},
		{"open garbage", OpenYear, "20x0", false},
		{"birth lower bound", BirthYear, "1976", true},
		{"birth too old", BirthYear, "1975", false},
		{"birth future", BirthYear, "2027", false},
		{"birth signed", BirthYear, "+2000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(tt.value, year); got.Valid != tt.valid {
				t.Errorf("got %v, want %v", got.Valid, tt.valid)
			}
		})
	}
}

func TestSpeech(t *testing.T) {
	if Speech("   ").Valid {
		t.Error("blank transcript accepted")
	}
	if !Speech("ייעוץ עסקי").Valid {
		t.Error("transcript rejected")
	}
}
