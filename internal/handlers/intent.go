package handlers

import "strings"

type cardIntent struct {
	Recipient string
	Message   string
}

// parseCardArgs reads "<recipient> | <message>". Without a separator the
// whole text names the recipient.
func parseCardArgs(args string) cardIntent {
	recipient, message, _ := strings.Cut(args, "|")
	return cardIntent{
		Recipient: strings.TrimSpace(recipient),
		Message:   strings.TrimSpace(message),
	}
}

// cardCaption reports whether a photo caption carries a /card command and
// returns its arguments. Captions have no command entities, so the text is
// matched directly.
func cardCaption(caption string) (string, bool) {
	caption = strings.TrimSpace(caption)
	if !strings.HasPrefix(caption, "/") {
		return "", false
	}

	cmd, args, _ := strings.Cut(caption[1:], " ")
	if at := strings.IndexByte(cmd, '@'); at >= 0 {
		cmd = cmd[:at]
	}
	if !strings.EqualFold(cmd, "card") {
		return "", false
	}
	return strings.TrimSpace(args), true
}
