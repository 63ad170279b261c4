package sales

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"
)

const (
	ticketSuffixLen = 10
	// Crockford base32: no I, L, O or U.
	ticketAlphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"
)

// TicketGenerator returns a new candidate ticket number for a sale created at now.
// Uniqueness is enforced by the database; callers retry on collision.
type TicketGenerator func(now time.Time) (string, error)

// NewTicketGenerator yields tickets shaped PREFIX-YYYYMMDD-XXXXXXXXXX.
func NewTicketGenerator(prefix string) TicketGenerator {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if prefix == "" {
		prefix = "TKT"
	}
	return func(now time.Time) (string, error) {
		suffix, err := randomSuffix(ticketSuffixLen)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s-%s-%s", prefix, now.UTC().Format("20060102"), suffix), nil
	}
}

func randomSuffix(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	for i, b := range buf {
		buf[i] = ticketAlphabet[b&31]
	}
	return string(buf), nil
}
