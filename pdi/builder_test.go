package pdi

import "testing"

func TestBitsToBytes(t *testing.T) {
	tests := []struct{ bits, want int }{
		{0, 0}, {1, 1}, {7, 1}, {8, 1}, {9, 2}, {16, 2}, {17, 3},
	}
	for _, tc := range tests {
		if got := bitsToBytes(tc.bits); got != tc.want {
			t.Errorf("bitsToBytes(%d)=%d want %d", tc.bits, got, tc.want)
		}
	}
}

func TestSumBitLength(t *testing.T) {
	mappings := []PDOMapping{
		{Entries: []PDOEntry{{BitLength: 8}, {BitLength: 8}}},
		{Entries: []PDOEntry{{BitLength: 16}}},
	}
	if got := sumBitLength(mappings); got != 32 {
		t.Errorf("sumBitLength=%d want 32", got)
	}
	if got := sumBitLength(nil); got != 0 {
		t.Errorf("sumBitLength(nil)=%d want 0", got)
	}
}
