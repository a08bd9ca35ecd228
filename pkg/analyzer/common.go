package analyzer

import "strings"

// commonPasswords is a small built-in list of passwords seen at the top
// of public breach corpora. Matching is case-insensitive and also
// catches single-digit-suffix variants like "password1".
var commonPasswords = map[string]struct{}{
	"password":    {},
	"passwort":    {},
	"passw0rd":    {},
	"p@ssword":    {},
	"p@ssw0rd":    {},
	"123456":      {},
	"1234567":     {},
	"12345678":    {},
	"123456789":   {},
	"1234567890":  {},
	"qwerty":      {},
	"qwertyuiop":  {},
	"azerty":      {},
	"abc123":      {},
	"111111":      {},
	"000000":      {},
	"letmein":     {},
	"welcome":     {},
	"iloveyou":    {},
	"admin":       {},
	"root":        {},
	"login":       {},
	"master":      {},
	"monkey":      {},
	"dragon":      {},
	"sunshine":    {},
	"princess":    {},
	"football":    {},
	"baseball":    {},
	"superman":    {},
	"batman":      {},
	"trustno1":    {},
	"shadow":      {},
	"michael":     {},
	"jennifer":    {},
	"hunter2":     {},
	"secret":      {},
	"whatever":    {},
	"freedom":     {},
	"starwars":    {},
	"pokemon":     {},
	"computer":    {},
	"internet":    {},
	"samsung":     {},
	"google":      {},
	"hello123":    {},
	"changeme":    {},
	"password123": {},
	"default":     {},
	"test":        {},
	"test123":     {},
	"guest":       {},
	"temp":        {},
	"summer":      {},
	"winter":      {},
	"spring":      {},
	"autumn":      {},
}

// isCommonPassword reports whether the password, lower-cased and with
// an optional trailing digit stripped, appears on the built-in list.
func isCommonPassword(password string) bool {
	lower := strings.ToLower(password)
	if _, ok := commonPasswords[lower]; ok {
		return true
	}
	if len(lower) > 1 {
		last := lower[len(lower)-1]
		if last >= '0' && last <= '9' {
			if _, ok := commonPasswords[lower[:len(lower)-1]]; ok {
				return true
			}
		}
	}
	return false
}
