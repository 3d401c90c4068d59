package pdi

import (
	"context"

	"github.com/soypat/ethercat/subdevice"
)

// PDOEntry is one object dictionary entry mapped into a PDO, as
// reported by a TxPDO/RxPDO EEPROM category (or, in a fuller
// implementation, an SDO read of 0x1A00.../0x1600...).
type PDOEntry struct {
	Index     uint16
	SubIndex  uint8
	BitLength uint16
}

// PDOMapping is one PDO (a named group of entries assigned to a
// SyncManager), as found in a TxPDO (0x0032) or RxPDO (0x0033) EEPROM
// category.
type PDOMapping struct {
	PDOIndex         uint16
	SyncManagerIndex uint8
	Entries          []PDOEntry
}

// BitLength returns the total bit length of every entry in this
// mapping.
func (m PDOMapping) BitLength() int {
	n := 0
	for _, e := range m.Entries {
		n += int(e.BitLength)
	}
	return n
}

// Scanner reads a SubDevice's EEPROM category table to discover its
// PDO mappings, the EEPROM-only path spec §4.5 allows alongside an SDO
// read of 0x1C12/0x1C13 and 0x1600.../0x1A00... (left as the
// ObjectDictionaryReader extension point below, per the explicit
// Non-goal on CoE convenience wrappers beyond what the core needs).
type Scanner struct {
	EEPROM subdevice.EEPROM
}

// ObjectDictionaryReader is the SDO-based alternative to EEPROM
// category scanning for PDO discovery. No implementation is provided
// in this core; a caller with a mailbox/CoE stack can supply one.
type ObjectDictionaryReader interface {
	ReadPDOAssignment(ctx context.Context, configuredAddr uint16, index uint16) ([]PDOMapping, error)
}

// ScanPDOs walks the EEPROM category table of the SubDevice at
// configuredAddr and returns every PDO mapping found in the named
// category (CategoryTxPDO or CategoryRxPDO).
func (s Scanner) ScanPDOs(ctx context.Context, configuredAddr uint16, category uint16) ([]PDOMapping, error) {
	var mappings []PDOMapping
	word := uint32(categoryStartWord)
	for {
		hdr := make([]uint16, 2)
		if err := s.EEPROM.ReadWords(ctx, configuredAddr, word, hdr); err != nil {
			return nil, err
		}
		catType, catLen := hdr[0], hdr[1]
		if catType == CategoryEnd {
			break
		}
		if catType == category {
			body := make([]uint16, catLen)
			if err := s.EEPROM.ReadWords(ctx, configuredAddr, word+2, body); err != nil {
				return nil, err
			}
			mappings = append(mappings, parsePDOCategory(body)...)
		}
		word += 2 + uint32(catLen)
	}
	return mappings, nil
}

// parsePDOCategory decodes a TxPDO/RxPDO category body: a sequence of
// PDOs, each a 4-word header (index, entry-count/SM-index packed,
// name index, flags) followed by entry-count 4-word entries (index,
// sub-index/name packed, data-type, bit length).
func parsePDOCategory(words []uint16) []PDOMapping {
	var out []PDOMapping
	i := 0
	for i+4 <= len(words) {
		pdoIndex := words[i]
		entryCount := uint8(words[i+1] & 0xff)
		smIndex := uint8(words[i+1] >> 8)
		i += 4
		m := PDOMapping{PDOIndex: pdoIndex, SyncManagerIndex: smIndex}
		for e := 0; e < int(entryCount) && i+4 <= len(words); e++ {
			m.Entries = append(m.Entries, PDOEntry{
				Index:     words[i],
				SubIndex:  uint8(words[i+1] & 0xff),
				BitLength: words[i+3],
			})
			i += 4
		}
		out = append(out, m)
	}
	return out
}
