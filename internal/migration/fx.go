package migration

import (
	auditdomain "github.com/marketlane/backoffice/internal/audit/domain"
	ruledomain "github.com/marketlane/backoffice/internal/rule/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// Module creates the schema on startup so the back office is usable out of
// the box for local and self-hosted environments.
var Module = fx.Module("migrations",
	fx.Invoke(Run),
)

func Run(conn *gorm.DB) error {
	if err := conn.AutoMigrate(
		&ruledomain.Rule{},
		&ruledomain.RuleHistory{},
		&auditdomain.AuditLog{},
	); err != nil {
		return err
	}

	return ensureOverlapGuard(conn)
}

// ensureOverlapGuard installs the store-side safety net for concurrent
// writers: the in-process conflict check is a user-facing pre-check, and two
// requests for the same scope can both pass it before either persists. On
// PostgreSQL an exclusion constraint rejects the loser; other dialects rely
// on transaction isolation alone.
func ensureOverlapGuard(conn *gorm.DB) error {
	if conn.Dialector.Name() != "postgres" {
		return nil
	}

	if err := conn.Exec(`CREATE EXTENSION IF NOT EXISTS btree_gist`).Error; err != nil {
		return err
	}

	return conn.Exec(`
		DO $$ BEGIN
			ALTER TABLE rules ADD CONSTRAINT ex_rules_scope_window
				EXCLUDE USING gist (
					family WITH =,
					coalesce(scope_key, '') WITH =,
					coalesce(category_id, '') WITH =,
					tstzrange(effective_from, coalesce(effective_to, 'infinity'), '[)') WITH &&
				) WHERE (is_active);
		EXCEPTION
			WHEN duplicate_object THEN NULL;
		END $$;
	`).Error
}
