package db

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/modelpark/registry/pkg/asset"
	"github.com/modelpark/registry/pkg/registry"
)

// EventStore implements registry.EventStore on GORM. Events are append-only;
// nothing here updates or deletes rows.
type EventStore struct {
	db *gorm.DB
}

// NewEventStore creates an event store over an open database handle.
func NewEventStore(db *gorm.DB) *EventStore {
	return &EventStore{db: db}
}

var _ registry.EventStore = (*EventStore)(nil)

// Append persists one event.
func (s *EventStore) Append(ctx context.Context, ev *asset.Event) error {
	record, err := toEventRecord(ev)
	if err != nil {
		return registry.Internal("encode event", err)
	}
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		return registry.DatabaseError("append event", err)
	}
	return nil
}

// AppendBatch persists events in order within one transaction.
func (s *EventStore) AppendBatch(ctx context.Context, evs []*asset.Event) error {
	if len(evs) == 0 {
		return nil
	}
	records := make([]*EventRecord, len(evs))
	for i, ev := range evs {
		record, err := toEventRecord(ev)
		if err != nil {
			return registry.Internal("encode event", err)
		}
		records[i] = record
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, record := range records {
			if err := tx.Create(record).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return registry.DatabaseError("append event batch", err)
	}
	return nil
}

func (s *EventStore) buildQuery(ctx context.Context, q registry.EventQuery) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&EventRecord{})
	if q.AssetID != nil {
		query = query.Where("asset_id = ?", q.AssetID.String())
	}
	if len(q.Names) > 0 {
		query = query.Where("event_name IN ?", q.Names)
	}
	if q.Actor != "" {
		query = query.Where("actor = ?", q.Actor)
	}
	if q.After != nil {
		query = query.Where("timestamp > ?", *q.After)
	}
	if q.Before != nil {
		query = query.Where("timestamp < ?", *q.Before)
	}
	return query
}

// Query returns one page of matching events, newest first.
func (s *EventStore) Query(ctx context.Context, q registry.EventQuery) (*registry.EventResults, error) {
	q = q.Normalize()
	query := s.buildQuery(ctx, q)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, registry.DatabaseError("count events", err)
	}

	var records []EventRecord
	err := query.Order("timestamp DESC").Order("id DESC").
		Limit(q.Limit).Offset(q.Offset).Find(&records).Error
	if err != nil {
		return nil, registry.DatabaseError("query events", err)
	}

	events := make([]*asset.Event, 0, len(records))
	for i := range records {
		ev, err := records[i].toDomain()
		if err != nil {
			return nil, registry.Internal("decode event", err)
		}
		events = append(events, ev)
	}
	return &registry.EventResults{
		Events: events,
		Total:  total,
		Limit:  q.Limit,
		Offset: q.Offset,
	}, nil
}

// AssetEvents returns the newest events for one asset, newest first.
func (s *EventStore) AssetEvents(ctx context.Context, id asset.ID, limit int) ([]*asset.Event, error) {
	results, err := s.Query(ctx, registry.EventQuery{AssetID: &id, Limit: limit})
	if err != nil {
		return nil, err
	}
	return results.Events, nil
}

// LatestEvent returns the most recent event for an asset, or nil when there
// is none.
func (s *EventStore) LatestEvent(ctx context.Context, id asset.ID) (*asset.Event, error) {
	var record EventRecord
	err := s.db.WithContext(ctx).
		Where("asset_id = ?", id.String()).
		Order("timestamp DESC").Order("id DESC").
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, registry.DatabaseError("latest event", err)
	}
	ev, err := record.toDomain()
	if err != nil {
		return nil, registry.Internal("decode event", err)
	}
	return ev, nil
}

// CountEvents returns the total number of stored events.
func (s *EventStore) CountEvents(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&EventRecord{}).Count(&count).Error; err != nil {
		return 0, registry.DatabaseError("count events", err)
	}
	return count, nil
}

// CountByType returns per-name event counts.
func (s *EventStore) CountByType(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		EventName string
		Count     int64
	}
	err := s.db.WithContext(ctx).Model(&EventRecord{}).
		Select("event_name, COUNT(*) as count").Group("event_name").Scan(&rows).Error
	if err != nil {
		return nil, registry.DatabaseError("count events by type", err)
	}
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.EventName] = row.Count
	}
	return counts, nil
}

// HealthCheck pings the database.
func (s *EventStore) HealthCheck(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Exec("SELECT 1").Error; err != nil {
		return registry.DatabaseError("health check", err)
	}
	return nil
}
