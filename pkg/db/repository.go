package db

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/modelpark/registry/pkg/asset"
	"github.com/modelpark/registry/pkg/registry"
)

// Repository implements registry.Repository on GORM.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a repository over an open database handle.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

var _ registry.Repository = (*Repository)(nil)

// isDuplicate detects unique constraint violations across drivers. GORM's
// error translation covers postgres and mysql; the message checks cover
// sqlite builds without translation.
func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "Duplicate entry") ||
		strings.Contains(msg, "duplicate key value")
}

// Create persists the asset with its tags and dependency edges in one
// transaction.
func (r *Repository) Create(ctx context.Context, a *asset.Asset) error {
	record, err := toAssetRecord(a)
	if err != nil {
		return registry.Internal("encode asset", err)
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(record).Error; err != nil {
			return err
		}
		for _, tag := range a.Metadata.Tags {
			if err := tx.Create(&AssetTagRecord{AssetID: record.ID, Tag: tag}).Error; err != nil {
				return err
			}
		}
		for i, ref := range a.Dependencies {
			dep := toDependencyRecord(record.ID, ref, "", i)
			if err := tx.Create(&dep).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if isDuplicate(err) {
			return registry.AlreadyExists(a.Metadata.Name, a.Metadata.Version.String())
		}
		return registry.DatabaseError("create asset", err)
	}
	return nil
}

func (r *Repository) loadAsset(ctx context.Context, record *AssetRecord) (*asset.Asset, error) {
	var tags []AssetTagRecord
	if err := r.db.WithContext(ctx).Where("asset_id = ?", record.ID).Order("tag ASC").Find(&tags).Error; err != nil {
		return nil, registry.DatabaseError("load asset tags", err)
	}
	var deps []AssetDependencyRecord
	if err := r.db.WithContext(ctx).Where("asset_id = ?", record.ID).Order("position ASC").Find(&deps).Error; err != nil {
		return nil, registry.DatabaseError("load asset dependencies", err)
	}
	a, err := record.toDomain(tags, deps)
	if err != nil {
		return nil, registry.Internal("decode asset", err)
	}
	return a, nil
}

// FindByID returns the asset or a KindNotFound error.
func (r *Repository) FindByID(ctx context.Context, id asset.ID) (*asset.Asset, error) {
	var record AssetRecord
	err := r.db.WithContext(ctx).Where("id = ?", id.String()).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, registry.NotFound("asset %s not found", id)
		}
		return nil, registry.DatabaseError("find asset by id", err)
	}
	return r.loadAsset(ctx, &record)
}

// FindByNameAndVersion returns the asset or a KindNotFound error.
func (r *Repository) FindByNameAndVersion(ctx context.Context, name, version string) (*asset.Asset, error) {
	var record AssetRecord
	err := r.db.WithContext(ctx).Where("name = ? AND version = ?", name, version).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, registry.NotFound("asset %s@%s not found", name, version)
		}
		return nil, registry.DatabaseError("find asset by name and version", err)
	}
	return r.loadAsset(ctx, &record)
}

// FindByIDs returns the assets that exist; missing IDs are skipped.
func (r *Repository) FindByIDs(ctx context.Context, ids []asset.ID) ([]*asset.Asset, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = id.String()
	}
	var records []AssetRecord
	if err := r.db.WithContext(ctx).Where("id IN ?", raw).Find(&records).Error; err != nil {
		return nil, registry.DatabaseError("find assets by ids", err)
	}
	assets := make([]*asset.Asset, 0, len(records))
	for i := range records {
		a, err := r.loadAsset(ctx, &records[i])
		if err != nil {
			return nil, err
		}
		assets = append(assets, a)
	}
	return assets, nil
}

var sortColumns = map[registry.SortField]string{
	registry.SortByCreatedAt: "created_at",
	registry.SortByUpdatedAt: "updated_at",
	registry.SortByName:      "name",
	registry.SortByVersion:   "version",
	registry.SortBySize:      "size_bytes",
}

// Search returns one page of assets matching the query.
func (r *Repository) Search(ctx context.Context, q registry.SearchQuery) (*registry.SearchResults, error) {
	q = q.Normalize()

	query := r.db.WithContext(ctx).Model(&AssetRecord{})
	if q.Text != "" {
		pattern := "%" + q.Text + "%"
		query = query.Where("name LIKE ? OR description LIKE ?", pattern, pattern)
	}
	if len(q.Types) > 0 {
		types := make([]string, len(q.Types))
		for i, t := range q.Types {
			types[i] = t.String()
		}
		query = query.Where("asset_type IN ?", types)
	}
	for _, tag := range q.Tags {
		query = query.Where(
			"id IN (SELECT asset_id FROM asset_tags WHERE tag = ?)", tag)
	}
	if q.Author != "" {
		query = query.Where("author = ?", q.Author)
	}
	if q.StorageBackend != "" {
		query = query.Where("storage_kind = ?", q.StorageBackend)
	}
	if len(q.Statuses) > 0 {
		statuses := make([]string, len(q.Statuses))
		for i, s := range q.Statuses {
			statuses[i] = s.String()
		}
		query = query.Where("status IN ?", statuses)
	} else if !q.IncludeDeprecated {
		query = query.Where("status <> ?", asset.StatusDeprecated.String())
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, registry.DatabaseError("count search results", err)
	}

	column, ok := sortColumns[q.SortBy]
	if !ok {
		return nil, registry.InvalidInput("unknown sort field %q", string(q.SortBy))
	}
	direction := "DESC"
	if q.Order == registry.SortAsc {
		direction = "ASC"
	}

	var records []AssetRecord
	err := query.Order(column + " " + direction).Order("id ASC").
		Limit(q.Limit).Offset(q.Offset).Find(&records).Error
	if err != nil {
		return nil, registry.DatabaseError("search assets", err)
	}

	assets := make([]*asset.Asset, 0, len(records))
	for i := range records {
		a, err := r.loadAsset(ctx, &records[i])
		if err != nil {
			return nil, err
		}
		assets = append(assets, a)
	}
	return &registry.SearchResults{
		Assets: assets,
		Total:  total,
		Limit:  q.Limit,
		Offset: q.Offset,
	}, nil
}

// Update replaces the asset's row and rewrites its tag and edge rows in one
// transaction.
func (r *Repository) Update(ctx context.Context, a *asset.Asset) error {
	record, err := toAssetRecord(a)
	if err != nil {
		return registry.Internal("encode asset", err)
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&AssetRecord{}).Where("id = ?", record.ID).
			Select("*").Omit("id", "created_at").Updates(record)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		if err := tx.Where("asset_id = ?", record.ID).Delete(&AssetTagRecord{}).Error; err != nil {
			return err
		}
		for _, tag := range a.Metadata.Tags {
			if err := tx.Create(&AssetTagRecord{AssetID: record.ID, Tag: tag}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("asset_id = ?", record.ID).Delete(&AssetDependencyRecord{}).Error; err != nil {
			return err
		}
		for i, ref := range a.Dependencies {
			dep := toDependencyRecord(record.ID, ref, "", i)
			if err := tx.Create(&dep).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return registry.NotFound("asset %s not found", a.ID)
		}
		if isDuplicate(err) {
			return registry.AlreadyExists(a.Metadata.Name, a.Metadata.Version.String())
		}
		return registry.DatabaseError("update asset", err)
	}
	return nil
}

// Delete removes the asset and its tag and edge rows.
func (r *Repository) Delete(ctx context.Context, id asset.ID) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ?", id.String()).Delete(&AssetRecord{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		if err := tx.Where("asset_id = ?", id.String()).Delete(&AssetTagRecord{}).Error; err != nil {
			return err
		}
		return tx.Where("asset_id = ?", id.String()).Delete(&AssetDependencyRecord{}).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return registry.NotFound("asset %s not found", id)
		}
		return registry.DatabaseError("delete asset", err)
	}
	return nil
}

// ListVersions returns every registered version of a name, unordered.
func (r *Repository) ListVersions(ctx context.Context, name string) ([]*asset.Asset, error) {
	var records []AssetRecord
	if err := r.db.WithContext(ctx).Where("name = ?", name).Find(&records).Error; err != nil {
		return nil, registry.DatabaseError("list versions", err)
	}
	assets := make([]*asset.Asset, 0, len(records))
	for i := range records {
		a, err := r.loadAsset(ctx, &records[i])
		if err != nil {
			return nil, err
		}
		assets = append(assets, a)
	}
	return assets, nil
}

// ListDependencies returns the asset's direct references in declaration
// order.
func (r *Repository) ListDependencies(ctx context.Context, id asset.ID) ([]asset.Reference, error) {
	var deps []AssetDependencyRecord
	err := r.db.WithContext(ctx).Where("asset_id = ?", id.String()).Order("position ASC").Find(&deps).Error
	if err != nil {
		return nil, registry.DatabaseError("list dependencies", err)
	}
	refs := make([]asset.Reference, 0, len(deps))
	for _, dep := range deps {
		ref, err := dep.toReference()
		if err != nil {
			return nil, registry.Internal("decode dependency", err)
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// ListReverseDependencies returns the assets with a direct edge to the given
// one.
func (r *Repository) ListReverseDependencies(ctx context.Context, id asset.ID) ([]*asset.Asset, error) {
	var records []AssetRecord
	err := r.db.WithContext(ctx).
		Where("id IN (SELECT asset_id FROM asset_dependencies WHERE dependency_id = ?)", id.String()).
		Find(&records).Error
	if err != nil {
		return nil, registry.DatabaseError("list reverse dependencies", err)
	}
	assets := make([]*asset.Asset, 0, len(records))
	for i := range records {
		a, err := r.loadAsset(ctx, &records[i])
		if err != nil {
			return nil, err
		}
		assets = append(assets, a)
	}
	return assets, nil
}

func (r *Repository) assetExists(ctx context.Context, id asset.ID) error {
	var count int64
	err := r.db.WithContext(ctx).Model(&AssetRecord{}).Where("id = ?", id.String()).Count(&count).Error
	if err != nil {
		return registry.DatabaseError("check asset exists", err)
	}
	if count == 0 {
		return registry.NotFound("asset %s not found", id)
	}
	return nil
}

// AddTag attaches a tag, ignoring duplicates.
func (r *Repository) AddTag(ctx context.Context, id asset.ID, tag string) error {
	if err := r.assetExists(ctx, id); err != nil {
		return err
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&AssetTagRecord{AssetID: id.String(), Tag: tag}).Error
	if err != nil && !isDuplicate(err) {
		return registry.DatabaseError("add tag", err)
	}
	return nil
}

// RemoveTag detaches a tag if present.
func (r *Repository) RemoveTag(ctx context.Context, id asset.ID, tag string) error {
	if err := r.assetExists(ctx, id); err != nil {
		return err
	}
	err := r.db.WithContext(ctx).
		Where("asset_id = ? AND tag = ?", id.String(), tag).
		Delete(&AssetTagRecord{}).Error
	if err != nil {
		return registry.DatabaseError("remove tag", err)
	}
	return nil
}

// GetTags returns the asset's tags, sorted.
func (r *Repository) GetTags(ctx context.Context, id asset.ID) ([]string, error) {
	if err := r.assetExists(ctx, id); err != nil {
		return nil, err
	}
	var tags []string
	err := r.db.WithContext(ctx).Model(&AssetTagRecord{}).
		Where("asset_id = ?", id.String()).Order("tag ASC").Pluck("tag", &tags).Error
	if err != nil {
		return nil, registry.DatabaseError("get tags", err)
	}
	return tags, nil
}

// ListAllTags returns every distinct tag in the registry, sorted.
func (r *Repository) ListAllTags(ctx context.Context) ([]string, error) {
	var tags []string
	err := r.db.WithContext(ctx).Model(&AssetTagRecord{}).
		Distinct("tag").Order("tag ASC").Pluck("tag", &tags).Error
	if err != nil {
		return nil, registry.DatabaseError("list all tags", err)
	}
	return tags, nil
}

// AddDependency appends a dependency edge with an optional version
// constraint.
func (r *Repository) AddDependency(ctx context.Context, id asset.ID, dep asset.Reference, constraint string) error {
	if err := r.assetExists(ctx, id); err != nil {
		return err
	}
	var maxPosition int
	err := r.db.WithContext(ctx).Model(&AssetDependencyRecord{}).
		Where("asset_id = ?", id.String()).
		Select("COALESCE(MAX(position), -1)").Scan(&maxPosition).Error
	if err != nil {
		return registry.DatabaseError("add dependency", err)
	}
	record := toDependencyRecord(id.String(), dep, constraint, maxPosition+1)
	if err := r.db.WithContext(ctx).Create(&record).Error; err != nil {
		return registry.DatabaseError("add dependency", err)
	}
	return nil
}

// RemoveDependency removes a dependency edge.
func (r *Repository) RemoveDependency(ctx context.Context, id asset.ID, dep asset.Reference) error {
	if err := r.assetExists(ctx, id); err != nil {
		return err
	}
	query := r.db.WithContext(ctx).Where("asset_id = ?", id.String())
	if depID, ok := dep.ByID(); ok {
		query = query.Where("dependency_id = ?", depID.String())
	} else if name, version, ok := dep.ByNameVersion(); ok {
		query = query.Where("dependency_name = ? AND dependency_version = ?", name, version)
	}
	if err := query.Delete(&AssetDependencyRecord{}).Error; err != nil {
		return registry.DatabaseError("remove dependency", err)
	}
	return nil
}

// CountAssets returns the total number of registered assets.
func (r *Repository) CountAssets(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&AssetRecord{}).Count(&count).Error; err != nil {
		return 0, registry.DatabaseError("count assets", err)
	}
	return count, nil
}

// CountByType returns per-type asset counts.
func (r *Repository) CountByType(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		AssetType string
		Count     int64
	}
	err := r.db.WithContext(ctx).Model(&AssetRecord{}).
		Select("asset_type, COUNT(*) as count").Group("asset_type").Scan(&rows).Error
	if err != nil {
		return nil, registry.DatabaseError("count assets by type", err)
	}
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.AssetType] = row.Count
	}
	return counts, nil
}

// HealthCheck pings the database.
func (r *Repository) HealthCheck(ctx context.Context) error {
	if err := r.db.WithContext(ctx).Exec("SELECT 1").Error; err != nil {
		return registry.DatabaseError("health check", err)
	}
	return nil
}
