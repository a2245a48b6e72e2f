package checkout

import (
	"strconv"
	"time"

	"github.com/gofrs/uuid"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	base36          = "0123456789abcdefghijklmnopqrstuvwxyz"
	keyDisplayLimit = 20
)

var wonPrinter = message.NewPrinter(language.Korean)

// NewCorrelationID returns ORDER_{epoch millis}_{9 base36 chars}.
func NewCorrelationID(now time.Time) string {
	u := uuid.Must(uuid.NewV4())
	suffix := make([]byte, 9)
	for i := range suffix {
		suffix[i] = base36[int(u[i])%len(base36)]
	}
	return "ORDER_" + strconv.FormatInt(now.UnixMilli(), 10) + "_" + string(suffix)
}

// FormatWon renders a KRW amount with thousands grouping, e.g. ₩5,000.
func FormatWon(amount int64) string {
	return wonPrinter.Sprintf("₩%d", amount)
}

// TruncateKey renders a payment key for display: at most its first 20 characters, always followed by an ellipsis.
func TruncateKey(key string) string {
	r := []rune(key)
	if len(r) > keyDisplayLimit {
		r = r[:keyDisplayLimit]
	}
	return string(r) + "..."
}
