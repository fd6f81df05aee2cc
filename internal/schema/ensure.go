package schema

import (
	"fmt"

	"github.com/gocql/gocql"
)

// Session is the minimal surface EnsureSchema needs; satisfied by
// *gocql.Session.
type Session interface {
	Query(stmt string, values ...interface{}) *gocql.Query
}

// EnsureSchema creates the keyspace (if absent) and every declared table at
// every rollup level, plus both work-queue tables and the full-text
// side-table. This is a direct generalization of the teacher's
// StoreManager.populateSchema, which did the same thing for a single
// carbon-metric table family.
func EnsureSchema(session Session, catalog *Catalog, keyspace, strategy, createOpts string, numLevels int, levelTTLSeconds []int, workQueueTTLSeconds []int) error {
	if err := ensureKeyspace(session, keyspace, strategy, createOpts); err != nil {
		return err
	}

	for level := 0; level < numLevels; level++ {
		for _, t := range catalog.Tables() {
			if t.IsSummary {
				if err := session.Query(CreateTableDDL(keyspace, t, VariantOverall, level, levelTTLSeconds[level])).Exec(); err != nil {
					return fmt.Errorf("create table for kind %s level %d: %w", t.Kind, level, err)
				}
				continue
			}
			for _, variant := range []Variant{VariantOverall, VariantTransaction} {
				if err := session.Query(CreateTableDDL(keyspace, t, variant, level, levelTTLSeconds[level])).Exec(); err != nil {
					return fmt.Errorf("create table for kind %s variant %s level %d: %w", t.Kind, variant, level, err)
				}
			}
		}
	}

	for level := 1; level < numLevels; level++ {
		if err := session.Query(CreateNeedsRollupDDL(keyspace, level, workQueueTTLSeconds[level])).Exec(); err != nil {
			return fmt.Errorf("create needs_rollup table for level %d: %w", level, err)
		}
	}
	if err := session.Query(CreateNeedsRollupFromChildDDL(keyspace, workQueueTTLSeconds[1])).Exec(); err != nil {
		return fmt.Errorf("create needs_rollup_from_child table: %w", err)
	}

	if err := session.Query(CreateFullTextDDL(keyspace, levelTTLSeconds[0])).Exec(); err != nil {
		return fmt.Errorf("create full_query_text table: %w", err)
	}

	return nil
}

func ensureKeyspace(session Session, keyspace, strategy, createOpts string) error {
	var existing string
	// A KEYSPACE query against system_schema is used as the existence
	// probe, matching the teacher's use of KeyspaceMetadata: cheap, and
	// side-effect free if the keyspace is absent.
	err := session.Query(`SELECT keyspace_name FROM system_schema.keyspaces WHERE keyspace_name = ?`, keyspace).
		Scan(&existing)
	if err == nil {
		return nil
	}
	if err != gocql.ErrNotFound {
		return fmt.Errorf("probe keyspace %q: %w", keyspace, err)
	}

	opts := ""
	if createOpts != "" {
		opts = "," + createOpts
	}
	stmt := fmt.Sprintf(
		`CREATE KEYSPACE IF NOT EXISTS %s WITH replication = {'class':'%s'%s}`,
		keyspace, strategy, opts)
	if err := session.Query(stmt).Exec(); err != nil {
		return fmt.Errorf("create keyspace %q: %w", keyspace, err)
	}
	return nil
}
