package catalog

import (
	"context"
	"fmt"

	"github.com/Masterminds/semver/v3"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Roles seeded on install.
const (
	RoleManager = "product_manager"
	RoleUser    = "product_user"
	RolePublic  = "product_public"
)

// DefaultCategory is given to products that existed before categories did.
const DefaultCategory = "uncategorized"

var rolePermissions = map[string][]string{
	RoleManager: {"view", "add", "change", "delete"},
	RoleUser:    {"view", "add", "change"},
	RolePublic:  {"view"},
}

var categoryVersion = semver.MustParse("1.2.0")

type hooks struct {
	log *zap.Logger
}

func (h hooks) install(ctx context.Context, tx *gorm.DB) error {
	if err := seedRoles(tx); err != nil {
		return err
	}
	h.log.Info("Product roles and permissions seeded")
	return nil
}

func (h hooks) uninstall(ctx context.Context, tx *gorm.DB) error {
	for _, role := range []string{RoleManager, RoleUser, RolePublic} {
		res := tx.Where("role = ?", role).Delete(&RolePermission{})
		if res.Error != nil {
			return fmt.Errorf("delete role %s: %w", role, res.Error)
		}
		if res.RowsAffected == 0 {
			h.log.Warn("Role does not exist", zap.String("role", role))
			continue
		}
		h.log.Info("Deleted role", zap.String("role", role))
	}
	return nil
}

// upgrade re-seeds roles and backfills categories when crossing 1.2.0. The
// config remembers the version the data was last migrated to.
func (h hooks) upgrade(ctx context.Context, tx *gorm.DB, config datatypes.JSONMap) (datatypes.JSONMap, error) {
	previous := "0.0.0"
	if v, ok := config["version"].(string); ok && v != "" {
		previous = v
	}
	from, err := semver.NewVersion(previous)
	if err != nil {
		return nil, fmt.Errorf("stored version %q: %w", previous, err)
	}
	to := semver.MustParse(Version)

	if err := seedRoles(tx); err != nil {
		return nil, err
	}

	if from.LessThan(categoryVersion) && !to.LessThan(categoryVersion) {
		res := tx.Model(&Product{}).Where("category IS NULL").Update("category", DefaultCategory)
		if res.Error != nil {
			return nil, fmt.Errorf("backfill product categories: %w", res.Error)
		}
		h.log.Info("Backfilled product categories", zap.Int64("products", res.RowsAffected))
	}

	config["previous_version"] = previous
	config["version"] = Version
	h.log.Info("Catalog upgraded", zap.String("from", previous), zap.String("to", Version))
	return config, nil
}

// seedRoles makes sure every role holds its permissions. It is safe to rerun.
func seedRoles(tx *gorm.DB) error {
	for role, perms := range rolePermissions {
		for _, perm := range perms {
			grant := RolePermission{Role: role, Permission: perm}
			if err := tx.Where(grant).FirstOrCreate(&grant).Error; err != nil {
				return fmt.Errorf("grant %s to %s: %w", perm, role, err)
			}
		}
	}
	return nil
}
