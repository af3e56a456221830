package vif

// tableMode tracks which VIFE lookup table governs bytes following the
// leading VIF, selected by the EN 13757-3 "linear extension" indicator
// VIFs (0x7D/0xFD switches to table FD, 0x7B/0xFB to table FB).
type tableMode int

const (
	tableNone tableMode = iota
	tableFD
	tableFB
)

// Entry is one byte of a VIF/VIFE chain together with its resolved
// quantity/unit, if known. Ok is false for a primary-table miss (a
// reserved or not-yet-catalogued code, which is a warning-level condition,
// not a parse failure) and is never false after a successful Parse call
// for an FD/FB table entry, since those misses abort parsing entirely.
type Entry struct {
	Raw byte
	Info
	Ok bool
}

// ParseVIFEChain reads the leading VIF byte and any VIFE continuation
// bytes from the front of b. A miss in the FD or FB extension tables is a
// hard parse error (those tables are closed enumerations); a miss against
// the primary table surfaces as Ok=false on that Entry without aborting,
// since many primary codes are legitimately reserved or manufacturer
// specific. Grounded on original_source/tests/vif_tests.rs's
// test_vife_parsing_edge_cases.
func ParseVIFEChain(b []byte) ([]Entry, []byte, error) {
	if len(b) == 0 {
		return nil, nil, truncated("vif.ParseVIFEChain", "no VIF byte")
	}
	first := b[0]
	rest := b[1:]

	mode := tableNone
	switch first & 0x7F {
	case 0x7D:
		mode = tableFD
	case 0x7B:
		mode = tableFB
	}

	info, ok := LookupPrimary(first)
	entries := []Entry{{Raw: first, Info: info, Ok: ok}}

	extending := first&0x80 != 0
	for i := 0; extending; i++ {
		if i >= maxVIFE {
			return nil, nil, malformed("vif.ParseVIFEChain", "exceeded %d VIFE extensions", maxVIFE)
		}
		if len(rest) == 0 {
			return nil, nil, truncated("vif.ParseVIFEChain", "extension bit set but no VIFE byte")
		}
		vife := rest[0]
		rest = rest[1:]

		var einfo Info
		var eok bool
		switch mode {
		case tableFD:
			einfo, eok = LookupVIFE_FD(vife)
			if !eok {
				return nil, nil, malformed("vif.ParseVIFEChain", "undefined FD-table VIFE 0x%02X", vife)
			}
		case tableFB:
			einfo, eok = LookupVIFE_FB(vife)
			if !eok {
				return nil, nil, malformed("vif.ParseVIFEChain", "undefined FB-table VIFE 0x%02X", vife)
			}
		default:
			einfo, eok = Info{}, false
		}
		entries = append(entries, Entry{Raw: vife, Info: einfo, Ok: eok})
		extending = vife&0x80 != 0
	}

	return entries, rest, nil
}

// Record is one fully decoded DIF/VIFE/value triple.
type Record struct {
	DIF     DIFInfo
	VIF     []Entry
	Value   Value
	Scaled  float64 // Value.Numeric * the leading VIF's Exponent, when numeric and not a string
	Primary Info
}

// ParseRecord decodes one complete data record (DIF chain, VIF/VIFE chain,
// and the value they describe) from the front of b, returning whatever
// bytes remain.
func ParseRecord(b []byte) (Record, []byte, error) {
	dif, rest, err := ParseDIFChain(b)
	if err != nil {
		return Record{}, nil, err
	}
	if dif.DataField == DataSpecial {
		// Idle filler / manufacturer-specific block marker: no VIF, no value.
		return Record{DIF: dif}, rest, nil
	}

	vifChain, rest, err := ParseVIFEChain(rest)
	if err != nil {
		return Record{}, nil, err
	}

	var raw []byte
	if dif.DataField == DataLVAR {
		raw, _, err = SplitLVAR(rest)
		if err != nil {
			return Record{}, nil, err
		}
		rest = rest[1+len(raw):]
	} else {
		n := DataLength(dif.DataField)
		if len(rest) < n {
			return Record{}, nil, truncated("vif.ParseRecord", "value needs %d bytes, have %d", n, len(rest))
		}
		raw = rest[:n]
		rest = rest[n:]
	}

	value, err := DecodeValue(dif.DataField, raw)
	if err != nil {
		return Record{}, nil, err
	}

	rec := Record{DIF: dif, VIF: vifChain, Value: value, Primary: vifChain[0].Info}
	if !value.IsString {
		rec.Scaled = value.Numeric * vifChain[0].Exponent
	}
	return rec, rest, nil
}
