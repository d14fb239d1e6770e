package dataset

import "strings"

// Source and derived column names of the patient extract.
const (
	ColPatientID    = "patient_id"
	ColGivenName    = "given_name"
	ColSurname      = "surname"
	ColStreetNumber = "street_number"
	ColAddress1     = "address_1"
	ColSuburb       = "suburb"
	ColPostcode     = "postcode"
	ColState        = "state"
	ColDateOfBirth  = "date_of_birth"
	ColAge          = "age"

	ColFullName     = "full_name"
	ColFullAddress  = "full_address"
	ColLocalisation = "localisation"
	ColBornAge      = "born_age"
)

// PreparePatients fills nulls with empty strings and derives the composite
// grouping columns used by the deduplication passes:
//
//	born_age      "<date_of_birth> <age>"
//	localisation  "<postcode> <state> <suburb>"
//	full_address  "<street_number> <address_1>"
//	full_name     "<surname> <given_name>"
//
// Source columns that are missing contribute an empty string.
func PreparePatients(ds *Dataset) *Dataset {
	out := ds.FillNull(String(""))

	text := func(r Record, col string) string {
		return integralText(r.Get(col))
	}

	out = out.WithColumn(ColBornAge, func(r Record) Value {
		return String(text(r, ColDateOfBirth) + " " + text(r, ColAge))
	})
	if out.HasColumn(ColStreetNumber) {
		out = out.WithColumn(ColStreetNumber, func(r Record) Value {
			n := text(r, ColStreetNumber)
			if n == "0" {
				n = ""
			}
			return String(n)
		})
	}
	out = out.WithColumn(ColLocalisation, func(r Record) Value {
		return String(text(r, ColPostcode) + " " + text(r, ColState) + " " + text(r, ColSuburb))
	})
	out = out.WithColumn(ColFullAddress, func(r Record) Value {
		return String(text(r, ColStreetNumber) + " " + text(r, ColAddress1))
	})
	out = out.WithColumn(ColFullName, func(r Record) Value {
		return String(text(r, ColSurname) + " " + text(r, ColGivenName))
	})
	return out
}

// integralText renders whole numbers without a fractional part, including
// numeric strings such as "19870312.0" produced by float-typed extracts.
func integralText(v Value) string {
	s := v.Text()
	if trimmed, ok := strings.CutSuffix(s, ".0"); ok && trimmed != "" && isDigits(trimmed) {
		return trimmed
	}
	if s == "nan" {
		return ""
	}
	return s
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
