package datev

import (
	"sync"

	"github.com/ginjaninja78/sepacetamol/internal/validation"
)

// word is the Unicode word class of the DATEV format description: letters,
// marks, digits and connector punctuation.
const word = `\p{L}\p{M}\p{N}\p{Pc}`

// patterns referenced by the pattern=<name> tags of Header and Booking.
var patterns = map[string]string{
	"timestamp":   `^20[0-9]{2}(0[1-9]|1[0-2])(0[1-9]|[12][0-9]|3[01])(2[0-3]|[01][0-9])[0-5][0-9][0-5][0-9][0-9]{3}$`,
	"date":        `^20[0-9]{2}(0[1-9]|1[0-2])(0[1-9]|[12][0-9]|3[01])$`,
	"word2":       `^[` + word + `]{1,2}$`,
	"word25":      `^[` + word + `]{1,25}$`,
	"designation": `^[` + word + `.\-/ ]{0,30}$`,
	"initials":    `^([A-Z]{2}){1,2}$`,
	"currency":    `^[A-Z]{3}$`,
	"chart":       `^([0-9]{2}){0,2}$`,
	"format_name": `^(Buchungsstapel|Wiederkehrende Buchungen|Debitoren/Kreditoren|Sachkontenbeschriftungen|Zahlungsbedingungen|Diverse Adressen)$`,
	"amount":      `^[0-9]{1,10},[0-9]{2}$`,
	"rate":        `^[1-9][0-9]{0,3},[0-9]{2,6}$`,
	"ddmm":        `^[0-9]{4}$`,
	"belegfeld1":  `^[` + word + `$%\-/]{0,36}$`,
	"belegfeld2":  `^[` + word + `$%\-/]{0,12}$`,
	"discount":    `^[1-9][0-9]{0,7},[0-9]{2}$`,
}

var engine = sync.OnceValue(func() *validation.Engine {
	return validation.New(patterns)
})
