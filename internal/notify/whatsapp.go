package notify

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidPhone is returned when a phone number has too few digits for a WhatsApp link.
var ErrInvalidPhone = errors.New("invalid phone number")

const brazilCountryCode = "55"

// WhatsAppNumber reduces phone to the international digits wa.me expects.
// Local numbers (DDD + 8 or 9 digits) get the Brazil country code.
func WhatsAppNumber(phone string) (string, error) {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := strings.TrimLeft(b.String(), "0")
	switch {
	case len(digits) == 10 || len(digits) == 11:
		return brazilCountryCode + digits, nil
	case len(digits) >= 12 && len(digits) <= 15:
		return digits, nil
	}
	return "", ErrInvalidPhone
}

// WhatsAppLink returns a wa.me deep link to phone with text prefilled.
func WhatsAppLink(phone, text string) (string, error) {
	number, err := WhatsAppNumber(phone)
	if err != nil {
		return "", err
	}
	u := url.URL{Scheme: "https", Host: "wa.me", Path: "/" + number}
	if text != "" {
		u.RawQuery = url.Values{"text": {text}}.Encode()
	}
	return u.String(), nil
}

// WhatsAppMessage is the text the store sends a customer about their order.
func WhatsAppMessage(s Summary) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Olá, %s! Aqui é da loja sobre o seu pedido #%s.\n\n", firstName(s.CustomerName), s.Reference)
	for _, it := range s.Items {
		if it.Color != "" {
			fmt.Fprintf(&sb, "• %dx %s (%s)\n", it.Quantity, it.Name, it.Color)
		} else {
			fmt.Fprintf(&sb, "• %dx %s\n", it.Quantity, it.Name)
		}
	}
	fmt.Fprintf(&sb, "\nTotal: %s\n", FormatBRL(s.Total))
	fmt.Fprintf(&sb, "Status: %s", StatusLabel(s.Status))
	if s.TrackingCode != "" {
		fmt.Fprintf(&sb, "\nRastreio: %s", s.TrackingCode)
	}
	return sb.String()
}

func firstName(name string) string {
	if f := strings.Fields(name); len(f) > 0 {
		return f[0]
	}
	return name
}
