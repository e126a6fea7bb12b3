package check

// Regular expressions (RE2 syntax, anchored) used by the Contains* builders.
const (
	PatternEmail = `^[a-zA-Z0-9.!#$%&'*+/=?^_` + "`" + `{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)+$`

	PatternURL = `^(?:https?|ftp)://[^\s/$.?#][^\s]*$`

	// Visa, MasterCard, Discover (16 digits in groups of four) and
	// American Express (15 digits).
	PatternCreditCard = `^(?:4\d{3}|5[1-5]\d{2}|6011|65\d{2})(?:[ -]?\d{4}){3}$|^3[47]\d{2}[ -]?\d{6}[ -]?\d{5}$`

	PatternSocialSecurityNumberUS = `^\d{3}-\d{2}-\d{4}$`
)
