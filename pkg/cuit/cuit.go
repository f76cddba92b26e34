// Package cuit validates Argentine tax identifiers (CUIL for individuals,
// CUIT for organizations) using the AFIP mod-11 check digit scheme.
package cuit

// Valid category prefixes. CUIL covers individuals, CUIT covers
// organizations; prefixes 23 and 33 are reissue categories with relaxed
// check digit rules.
var (
	prefijosCUIL = map[int]bool{20: true, 23: true, 24: true, 27: true}
	prefijosCUIT = map[int]bool{30: true, 33: true, 34: true}
)

// EsValidoCUIL reports whether n is a structurally valid CUIL: 11 digits,
// individual category prefix, and a correct mod-11 check digit.
func EsValidoCUIL(n uint64) bool {
	return esValido(n, prefijosCUIL)
}

// EsValidoCUIT reports whether n is a structurally valid CUIT for an
// organization.
func EsValidoCUIT(n uint64) bool {
	return esValido(n, prefijosCUIT)
}

func esValido(n uint64, prefijos map[int]bool) bool {
	// Exactly 11 digits: 2 prefix, 8 document, 1 check.
	if n < 10_000_000_000 || n > 99_999_999_999 {
		return false
	}

	var digitos [11]int
	for i := 10; i >= 0; i-- {
		digitos[i] = int(n % 10)
		n /= 10
	}

	prefijo := digitos[0]*10 + digitos[1]
	if !prefijos[prefijo] {
		return false
	}
	verificador := digitos[10]

	// Weighted sum over the first ten digits, weights cycling 2..7 starting
	// at the digit immediately left of the check digit and moving left.
	suma := 0
	peso := 2
	for i := 9; i >= 0; i-- {
		suma += digitos[i] * peso
		peso++
		if peso > 7 {
			peso = 2
		}
	}

	switch resto := suma % 11; resto {
	case 1:
		// AFIP never issues numbers whose remainder is 1.
		return false
	case 0:
		if verificador == 0 {
			return true
		}
		return verificadorExcepcional(prefijo, verificador)
	default:
		if verificador == 11-resto {
			return true
		}
		return verificadorExcepcional(prefijo, verificador)
	}
}

// verificadorExcepcional covers the reissue categories: numbers under prefix
// 23 may carry check digits 3, 4 or 9, and under 33 check digits 3 or 9,
// regardless of the computed digit.
func verificadorExcepcional(prefijo, verificador int) bool {
	switch prefijo {
	case 23:
		return verificador == 3 || verificador == 4 || verificador == 9
	case 33:
		return verificador == 3 || verificador == 9
	default:
		return false
	}
}
