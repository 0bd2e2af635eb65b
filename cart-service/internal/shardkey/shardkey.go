// Package shardkey derives the partition key under which a terminal's
// transaction logs for one calendar day are co-located.
package shardkey

import (
	"strconv"
	"strings"
	"time"
)

const dateLayout = "20060102"

// Generate returns "{tenant}_{store}_{terminal}_{yyyymmdd}" using the calendar
// date of generatedAt in its own location.
func Generate(tenantID, storeCode string, terminalNo int, generatedAt time.Time) string {
	var b strings.Builder
	b.Grow(len(tenantID) + len(storeCode) + 16)
	b.WriteString(tenantID)
	b.WriteByte('_')
	b.WriteString(storeCode)
	b.WriteByte('_')
	b.WriteString(strconv.Itoa(terminalNo))
	b.WriteByte('_')
	b.WriteString(generatedAt.Format(dateLayout))
	return b.String()
}
