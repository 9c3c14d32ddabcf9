package mailbox

import (
	"context"
	"errors"
	"strings"
	"time"
)

// MaxRecords is how many deliveries a mailbox keeps, newest first.
const MaxRecords = 100

var (
	ErrInvalidFID = errors.New("fid is required")
	ErrConflict   = errors.New("mailbox changed concurrently, retries exhausted")
)

type Record struct {
	IPFSHash string `json:"ipfsHash"`
	SentAt   int64  `json:"sentAt"` // unix milliseconds
	Read     bool   `json:"read"`
}

type Store interface {
	Send(ctx context.Context, recipientFID, ipfsHash string) (Record, error)
	List(ctx context.Context, userFID string) ([]Record, error)
	// MarkRead flags every record whose hash is in hashes and returns how
	// many records matched.
	MarkRead(ctx context.Context, userFID string, hashes []string) (int, error)
}

func Key(fid string) string {
	return "mailbox:" + fid
}

func newRecord(now time.Time, ipfsHash string) Record {
	return Record{IPFSHash: ipfsHash, SentAt: now.UnixMilli()}
}

func normalizeFID(fid string) (string, error) {
	fid = strings.TrimSpace(fid)
	if fid == "" {
		return "", ErrInvalidFID
	}
	return fid, nil
}

func hashSet(hashes []string) map[string]struct{} {
	set := make(map[string]struct{}, len(hashes))
	for _, h := range hashes {
		if h = strings.TrimSpace(h); h != "" {
			set[h] = struct{}{}
		}
	}
	return set
}
