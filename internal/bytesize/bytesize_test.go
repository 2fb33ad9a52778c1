package bytesize

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    ByteSize
		wantErr bool
	}{
		{"plain zero", "0", 0, false},
		{"plain bytes", "1024", 1024, false},
		{"bytes suffix", "1024B", 1024, false},
		{"kibibytes", "1Ki", 1024, false},
		{"mebibytes", "5Mi", 5 * 1024 * 1024, false},
		{"mebibytes MiB", "5MiB", 5 * 1024 * 1024, false},
		{"gibibytes", "5Gi", 5 * 1024 * 1024 * 1024, false},
		{"megabytes decimal", "100MB", 100 * 1000 * 1000, false},
		{"case insensitive", "1gi", 1024 * 1024 * 1024, false},
		{"whitespace", "  1Gi ", 1024 * 1024 * 1024, false},
		{"float", "1.5Mi", ByteSize(1.5 * 1024 * 1024), false},

		{"empty", "", 0, true},
		{"garbage", "abc", 0, true},
		{"unknown unit", "1XB", 0, true},
		{"negative", "-1", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("Parse(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestUnmarshalText(t *testing.T) {
	var b ByteSize
	if err := b.UnmarshalText([]byte("512Ki")); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if b != 512*1024 {
		t.Errorf("expected 512Ki, got %d", b)
	}
}

func TestString(t *testing.T) {
	tests := []struct {
		in   ByteSize
		want string
	}{
		{100, "100B"},
		{2 * KiB, "2.00KiB"},
		{5 * MiB, "5.00MiB"},
		{GiB, "1.00GiB"},
	}
	for _, tt := range tests {
		if got := tt.in.String(); got != tt.want {
			t.Errorf("String(%d) = %q, want %q", uint64(tt.in), got, tt.want)
		}
	}
}
