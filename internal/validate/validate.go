package validate

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const MaxStatusLen = 500

// Host checks a user-supplied instance hostname. A scheme is allowed so the
// client can be pointed at plain-HTTP test servers.
func Host(host string) error {
	host = strings.TrimSpace(host)
	switch {
	case host == "":
		return errors.New("empty instance hostname")
	case strings.ContainsAny(host, " \t"):
		return errors.New("instance hostname contains whitespace")
	}
	return nil
}

// StatusContent checks the text of a status before it is sent. The 500 rune
// limit matches the default configuration of most instances; servers with a
// higher limit still accept shorter posts.
func StatusContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return errors.New("empty status")
	}
	if l := utf8.RuneCountInString(content); l > MaxStatusLen {
		return fmt.Errorf("status too long; max %d characters, got %d", MaxStatusLen, l)
	}
	return nil
}
