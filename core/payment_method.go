package core

import (
	"strings"
)

const (
	FieldNumber      = "number"
	FieldExpiryMonth = "expiry_month"
	FieldExpiryYear  = "expiry_year"
	FieldToken       = "id"
)

// Card is a clear card payment method.
type Card struct {
	Number         string
	ExpMonth       string
	ExpYear        string
	CVN            string
	CardHolderName string
	Versions       []Version
}

func (c Card) HasThreeDSData() bool {
	return len(c.MissingThreeDSFields()) == 0
}

func (c Card) MissingThreeDSFields() []string {
	missing := make([]string, 0, 3)
	if strings.TrimSpace(c.Number) == "" {
		missing = append(missing, FieldNumber)
	}
	if strings.TrimSpace(c.ExpMonth) == "" {
		missing = append(missing, FieldExpiryMonth)
	}
	if strings.TrimSpace(c.ExpYear) == "" {
		missing = append(missing, FieldExpiryYear)
	}
	return missing
}

func (c Card) IdentifyingFields() map[string]any {
	fields := map[string]any{}
	if number := strings.TrimSpace(c.Number); number != "" {
		fields[FieldNumber] = number
	}
	if month := strings.TrimSpace(c.ExpMonth); month != "" {
		fields[FieldExpiryMonth] = padExpiry(month)
	}
	if year := strings.TrimSpace(c.ExpYear); year != "" {
		fields[FieldExpiryYear] = shortExpiryYear(year)
	}
	if cvn := strings.TrimSpace(c.CVN); cvn != "" {
		fields["cvv"] = cvn
	}
	if name := strings.TrimSpace(c.CardHolderName); name != "" {
		fields["name"] = name
	}
	return fields
}

func (c Card) SupportedVersions() []Version {
	if len(c.Versions) == 0 {
		return []Version{VersionOne, VersionTwo}
	}
	return append([]Version(nil), c.Versions...)
}

// TokenizedCard references a card stored by the gateway.
type TokenizedCard struct {
	Token          string
	CardHolderName string
}

func (c TokenizedCard) HasThreeDSData() bool {
	return strings.TrimSpace(c.Token) != ""
}

func (c TokenizedCard) MissingThreeDSFields() []string {
	if c.HasThreeDSData() {
		return nil
	}
	return []string{FieldNumber, FieldExpiryMonth, FieldExpiryYear}
}

func (c TokenizedCard) IdentifyingFields() map[string]any {
	fields := map[string]any{}
	if token := strings.TrimSpace(c.Token); token != "" {
		fields[FieldToken] = token
	}
	if name := strings.TrimSpace(c.CardHolderName); name != "" {
		fields["name"] = name
	}
	return fields
}

// Tokens are only issued for 3DS2 capable gateways.
func (TokenizedCard) SupportedVersions() []Version {
	return []Version{VersionTwo}
}

func padExpiry(month string) string {
	if len(month) == 1 {
		return "0" + month
	}
	return month
}

func shortExpiryYear(year string) string {
	if len(year) == 4 {
		return year[2:]
	}
	return year
}

var (
	_ PaymentMethodSource = Card{}
	_ PaymentMethodSource = TokenizedCard{}
	_ VersionCapable      = Card{}
	_ VersionCapable      = TokenizedCard{}
)
