package service

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"yello-auth/internal/event"
	"yello-auth/internal/model"
	"yello-auth/pkg/apierror"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 200
)

// AuditService appends auth events to a JSON lines file and answers admin
// queries over it.
type AuditService struct {
	filePath string
	mu       sync.Mutex
	logger   *slog.Logger
}

func NewAuditService(filePath string, logger *slog.Logger) (*AuditService, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return nil, fmt.Errorf("prepare audit directory: %w", err)
	}

	f, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("initialize audit file: %w", err)
	}
	_ = f.Close()

	return &AuditService{filePath: filePath, logger: logger}, nil
}

// Start subscribes to bus before returning and records every auth event
// until ctx ends.
func (s *AuditService) Start(ctx context.Context, bus event.Bus) {
	events, unsubscribe := bus.Subscribe()
	go s.consume(ctx, events, unsubscribe)
}

func (s *AuditService) consume(ctx context.Context, events <-chan event.Event, unsubscribe func()) {
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			if strings.HasPrefix(string(e.Type), "auth.") {
				s.Record(e)
			}
		}
	}
}

func (s *AuditService) Record(e event.Event) {
	if s == nil {
		return
	}

	data, err := json.Marshal(model.AuditEntry{
		Type:       string(e.Type),
		ActorID:    e.ActorID,
		OccurredAt: e.Timestamp,
		Payload:    e.Payload,
	})
	if err != nil {
		s.logger.Error("Audit service: failed to encode entry", "type", e.Type, "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		s.logger.Error("Audit service: failed to open audit file", "error", err)
		return
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		s.logger.Error("Audit service: failed to append entry", "error", err)
	}
}

// Query returns matching entries newest first.
func (s *AuditService) Query(query model.AuditQuery) ([]model.AuditEntry, model.Meta, error) {
	if query.Page < 1 {
		query.Page = 1
	}
	if query.Limit <= 0 {
		query.Limit = defaultAuditLimit
	}
	if query.Limit > maxAuditLimit {
		query.Limit = maxAuditLimit
	}

	from, err := parseOptionalAuditTime(query.From)
	if err != nil {
		return nil, model.Meta{}, apierror.BadRequest("invalid 'from' datetime format", query.From)
	}

	to, err := parseOptionalAuditTime(query.To)
	if err != nil {
		return nil, model.Meta{}, apierror.BadRequest("invalid 'to' datetime format", query.To)
	}

	typ := strings.ToLower(strings.TrimSpace(query.Type))
	actorID := strings.TrimSpace(query.ActorID)

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.filePath)
	if err != nil {
		return nil, model.Meta{}, fmt.Errorf("open audit file: %w", err)
	}
	defer f.Close()

	type dated struct {
		entry model.AuditEntry
		at    time.Time
	}

	items := make([]dated, 0, 128)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var entry model.AuditEntry
		if json.Unmarshal([]byte(line), &entry) != nil {
			continue
		}

		if typ != "" && strings.ToLower(entry.Type) != typ {
			continue
		}
		if actorID != "" && entry.ActorID != actorID {
			continue
		}

		at, err := parseAuditTime(entry.OccurredAt)
		if err != nil {
			continue
		}
		if !from.IsZero() && at.Before(from) {
			continue
		}
		if !to.IsZero() && at.After(to) {
			continue
		}

		items = append(items, dated{entry: entry, at: at})
	}
	if err := scanner.Err(); err != nil {
		return nil, model.Meta{}, fmt.Errorf("scan audit file: %w", err)
	}

	sort.SliceStable(items, func(i int, j int) bool {
		return items[i].at.After(items[j].at)
	})

	total := len(items)
	start := min((query.Page-1)*query.Limit, total)
	end := min(start+query.Limit, total)

	page := make([]model.AuditEntry, 0, end-start)
	for _, item := range items[start:end] {
		page = append(page, item.entry)
	}

	meta := model.Meta{
		Page:       query.Page,
		Limit:      query.Limit,
		Total:      total,
		TotalPages: (total + query.Limit - 1) / query.Limit,
	}
	return page, meta, nil
}

func parseOptionalAuditTime(raw string) (time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, nil
	}
	return parseAuditTime(trimmed)
}

func parseAuditTime(raw string) (time.Time, error) {
	value, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, err
	}
	return value.UTC(), nil
}
