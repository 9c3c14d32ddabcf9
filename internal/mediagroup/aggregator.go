package mediagroup

import (
	"fmt"
	"sync"
	"time"
)

// Telegram delivers an album as separate messages sharing a media group id.
// The aggregator buffers them until the group goes quiet.

type Item struct {
	ChatID       int64
	UserID       int64
	SenderName   string
	MediaGroupID string
	Caption      string
	FileID       string
}

type Group struct {
	ChatID     int64
	UserID     int64
	SenderName string
	Caption    string
	FileIDs    []string
}

type Options struct {
	Debounce time.Duration
	// MaxFiles caps how many photos of one album are kept.
	MaxFiles int
	OnFlush  func(Group)
}

type Aggregator struct {
	mu       sync.Mutex
	debounce time.Duration
	maxFiles int
	onFlush  func(Group)
	groups   map[string]*pendingGroup
}

type pendingGroup struct {
	group Group
	timer *time.Timer
}

func New(opts Options) *Aggregator {
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = 1200 * time.Millisecond
	}

	return &Aggregator{
		debounce: debounce,
		maxFiles: opts.MaxFiles,
		onFlush:  opts.OnFlush,
		groups:   make(map[string]*pendingGroup),
	}
}

func (a *Aggregator) Add(item Item) {
	if item.MediaGroupID == "" || item.FileID == "" {
		return
	}

	key := makeKey(item.ChatID, item.MediaGroupID)

	a.mu.Lock()
	defer a.mu.Unlock()

	pg, ok := a.groups[key]
	if !ok {
		pg = &pendingGroup{
			group: Group{
				ChatID:     item.ChatID,
				UserID:     item.UserID,
				SenderName: item.SenderName,
				Caption:    item.Caption,
				FileIDs:    []string{item.FileID},
			},
		}
		a.groups[key] = pg
	} else {
		if a.maxFiles <= 0 || len(pg.group.FileIDs) < a.maxFiles {
			pg.group.FileIDs = append(pg.group.FileIDs, item.FileID)
		}
		if item.Caption != "" {
			pg.group.Caption = item.Caption
		}
	}

	if pg.timer != nil {
		pg.timer.Stop()
	}
	pg.timer = time.AfterFunc(a.debounce, func() {
		a.flush(key)
	})
}

// Pending reports how many albums are still buffered.
func (a *Aggregator) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.groups)
}

func (a *Aggregator) flush(key string) {
	a.mu.Lock()
	pg, ok := a.groups[key]
	if !ok {
		a.mu.Unlock()
		return
	}
	delete(a.groups, key)
	group := pg.group
	onFlush := a.onFlush
	a.mu.Unlock()

	if onFlush != nil {
		onFlush(group)
	}
}

func makeKey(chatID int64, mediaGroupID string) string {
	return fmt.Sprintf("%d:%s", chatID, mediaGroupID)
}
