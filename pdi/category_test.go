package pdi

import "testing"

func TestParsePDOCategorySingleMapping(t *testing.T) {
	// One PDO (index 0x1A00, 2 entries, SM index 3) with two 1-byte entries.
	words := []uint16{
		0x1A00, 0x0302 /* entryCount=2, smIndex=3 */, 0x0000, 0x0000,
		0x6000, 0x0001, 0x0000, 8, // entry 0: index 0x6000, subindex 1, 8 bits
		0x6001, 0x0001, 0x0000, 16, // entry 1: index 0x6001, subindex 1, 16 bits
	}
	mappings := parsePDOCategory(words)
	if len(mappings) != 1 {
		t.Fatalf("got %d mappings, want 1", len(mappings))
	}
	m := mappings[0]
	if m.PDOIndex != 0x1A00 {
		t.Errorf("PDOIndex = %#x, want 0x1A00", m.PDOIndex)
	}
	if m.SyncManagerIndex != 3 {
		t.Errorf("SyncManagerIndex = %d, want 3", m.SyncManagerIndex)
	}
	if len(m.Entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(m.Entries))
	}
	if m.BitLength() != 24 {
		t.Errorf("BitLength() = %d, want 24", m.BitLength())
	}
}

func TestParsePDOCategoryMultipleMappings(t *testing.T) {
	words := []uint16{
		0x1600, 0x0001, 0, 0, // PDO 1: 1 entry, SM 0
		0x7000, 0, 0, 8,
		0x1601, 0x0001, 0, 0, // PDO 2: 1 entry, SM 0
		0x7010, 0, 0, 32,
	}
	mappings := parsePDOCategory(words)
	if len(mappings) != 2 {
		t.Fatalf("got %d mappings, want 2", len(mappings))
	}
	if mappings[0].BitLength() != 8 || mappings[1].BitLength() != 32 {
		t.Errorf("unexpected bit lengths: %d, %d", mappings[0].BitLength(), mappings[1].BitLength())
	}
}

func TestParsePDOCategoryEmpty(t *testing.T) {
	if got := parsePDOCategory(nil); len(got) != 0 {
		t.Errorf("expected no mappings for empty input, got %d", len(got))
	}
}

func TestParsePDOCategoryTruncatedEntryStopsCleanly(t *testing.T) {
	// Header claims 2 entries but only one full entry follows.
	words := []uint16{
		0x1A00, 0x0002, 0, 0,
		0x6000, 0, 0, 8,
	}
	mappings := parsePDOCategory(words)
	if len(mappings) != 1 {
		t.Fatalf("got %d mappings, want 1", len(mappings))
	}
	if len(mappings[0].Entries) != 1 {
		t.Errorf("got %d entries, want 1 (truncated)", len(mappings[0].Entries))
	}
}
