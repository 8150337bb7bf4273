package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TTL windows for the two lock granularities. The fine lock absorbs duplicate
// client-side triggers; the coarse lock absorbs broker redeliveries. The
// coarse window intentionally outlives the worst-case retry schedule
// (5 attempts, 1s base, x2 backoff).
const (
	FineTTL   = 5 * time.Minute
	CoarseTTL = 30 * time.Minute
)

// ReviewFingerprint identifies "the same review of the same data": requester,
// context, session and the answered item set, order-independent.
func ReviewFingerprint(requesterID uuid.UUID, contextID int64, sessionKey string, itemIDs []uuid.UUID) string {
	ids := make([]string, 0, len(itemIDs))
	for _, id := range itemIDs {
		ids = append(ids, id.String())
	}
	sort.Strings(ids)

	raw := fmt.Sprintf("review|%s|%d|%s|%s", requesterID, contextID, strings.TrimSpace(sessionKey), strings.Join(ids, ","))
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// CoarseKey guards the external generator across redeliveries. When the
// caller supplied an idempotency token, that token wins; otherwise the key
// degrades to requester+context per use case.
func CoarseKey(useCase string, requesterID uuid.UUID, contextID int64, token string) string {
	if t := strings.TrimSpace(token); t != "" {
		return fmt.Sprintf("gen:%s:%s", useCase, t)
	}
	return fmt.Sprintf("gen:%s:%s:%d", useCase, requesterID, contextID)
}
