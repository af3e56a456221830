package vif

import "time"

// DateTime is a decoded EN 13757-3 compound date/time field. Invalid and
// DST report the flag bits the wire format carries alongside the calendar
// fields; callers decide whether an invalid reading should be discarded.
type DateTime struct {
	Time    time.Time
	Invalid bool
	DST     bool
}

// windowYear applies the standard two-digit-year century window: 0-79
// maps to 2000-2079, 80-99 to 1980-1999.
func windowYear(y int) int {
	if y < 80 {
		return 2000 + y
	}
	return 1900 + y
}

// DecodeTypeG decodes a 2-byte "Type G" date (day/month/year, no time).
func DecodeTypeG(b []byte) (DateTime, error) {
	if len(b) < 2 {
		return DateTime{}, truncated("vif.DecodeTypeG", "need 2 bytes, have %d", len(b))
	}
	day := int(b[0] & 0x1F)
	month := int(b[1] & 0x0F)
	year := windowYear(int((b[0]&0xE0)>>5) | int((b[1]&0xF0)>>1))
	if day == 0 || month == 0 {
		return DateTime{Invalid: true}, nil
	}
	return DateTime{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}, nil
}

// DecodeTypeF decodes a 4-byte "Type F" date+time (minute resolution).
func DecodeTypeF(b []byte) (DateTime, error) {
	if len(b) < 4 {
		return DateTime{}, truncated("vif.DecodeTypeF", "need 4 bytes, have %d", len(b))
	}
	minute := int(b[0] & 0x3F)
	invalid := b[0]&0x80 != 0
	hour := int(b[1] & 0x1F)
	dst := b[1]&0x80 != 0
	day := int(b[2] & 0x1F)
	month := int(b[3] & 0x0F)
	year := windowYear(int((b[2]&0xE0)>>5) | int((b[3]&0xF0)>>1))

	if invalid || day == 0 || month == 0 {
		return DateTime{Invalid: true, DST: dst}, nil
	}
	return DateTime{
		Time: time.Date(year, time.Month(month), day, hour, minute, 0, 0, time.UTC),
		DST:  dst,
	}, nil
}

// DecodeTypeJ decodes a 2-byte "Type J" time-of-day (no date).
func DecodeTypeJ(b []byte) (DateTime, error) {
	if len(b) < 2 {
		return DateTime{}, truncated("vif.DecodeTypeJ", "need 2 bytes, have %d", len(b))
	}
	minute := int(b[0] & 0x3F)
	hour := int(b[1] & 0x1F)
	return DateTime{Time: time.Date(0, 1, 1, hour, minute, 0, 0, time.UTC)}, nil
}

// DecodeTypeI decodes a 4-byte "Type I" extended date+time, identical in
// layout to Type F plus no additional fields this package surfaces
// (EN 13757-3's Type I adds a leap-year/accuracy flag in some profiles that
// no retrieved source exercises; treated as Type F). See DESIGN.md.
func DecodeTypeI(b []byte) (DateTime, error) {
	return DecodeTypeF(b)
}

// DecodeTypeM decodes a 6-byte "Type M" compound date+time with seconds.
func DecodeTypeM(b []byte) (DateTime, error) {
	if len(b) < 6 {
		return DateTime{}, truncated("vif.DecodeTypeM", "need 6 bytes, have %d", len(b))
	}
	second := int(b[0] & 0x3F)
	minute := int(b[1] & 0x3F)
	hour := int(b[2] & 0x1F)
	day := int(b[3] & 0x1F)
	month := int(b[4] & 0x0F)
	year := windowYear(int((b[3]&0xE0)>>5) | int((b[4]&0xF0)>>1))
	if day == 0 || month == 0 {
		return DateTime{Invalid: true}, nil
	}
	return DateTime{Time: time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC)}, nil
}

func (dt DateTime) String() string {
	if dt.Invalid {
		return "invalid"
	}
	return dt.Time.Format(time.RFC3339)
}
