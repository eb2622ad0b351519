package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/askdb/askdb/internal/config"
	"github.com/askdb/askdb/internal/errors"
)

// Store serves the schema catalog artifacts produced by the external
// catalog build. The light catalog is held in memory; detailed table
// schemas are read from disk on first use and cached. The whole snapshot
// is replaced atomically on Reload, so concurrent pipeline runs never
// observe a half-refreshed catalog.
type Store struct {
	cfg config.CatalogConfig

	mu   sync.RWMutex
	snap *snapshot
}

type snapshot struct {
	version int
	entries []Entry
	byName  map[string]Entry
	edges   []RelationshipEdge

	schemaMu sync.Mutex
	schemas  map[string]*TableSchema
}

// NewStore creates a catalog store for the given artifact directory.
func NewStore(cfg config.CatalogConfig) *Store {
	return &Store{cfg: cfg}
}

// Load reads the light catalog and relationship list. It must be called
// before the store is used; Reload may be called at any time after.
func (s *Store) Load() error {
	snap, err := s.buildSnapshot()
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()

	return nil
}

// Reload is an alias of Load that reads better at call sites reacting to
// a catalog-refresh signal.
func (s *Store) Reload() error {
	return s.Load()
}

func (s *Store) buildSnapshot() (*snapshot, error) {
	lightPath := filepath.Join(s.cfg.Dir, s.cfg.LightFile)

	data, err := os.ReadFile(lightPath)
	if err != nil {
		return nil, errors.Wrapf(err, errors.KindCatalog, "failed to read light catalog %s", lightPath)
	}

	var doc lightCatalogDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(err, errors.KindCatalog, "failed to parse light catalog %s", lightPath)
	}

	if len(doc.Tables) == 0 {
		return nil, errors.Newf(errors.KindCatalog, "light catalog %s contains no tables", lightPath)
	}

	snap := &snapshot{
		version: doc.Version,
		entries: doc.Tables,
		byName:  make(map[string]Entry, len(doc.Tables)),
		schemas: make(map[string]*TableSchema),
	}

	for _, entry := range doc.Tables {
		snap.byName[strings.ToLower(entry.TableName)] = entry
	}

	sort.Slice(snap.entries, func(i, j int) bool {
		return snap.entries[i].TableName < snap.entries[j].TableName
	})

	// The relationship list is optional; older catalog builds omit it.
	relPath := filepath.Join(s.cfg.Dir, "relationships.yaml")
	if relData, err := os.ReadFile(relPath); err == nil {
		var relDoc relationshipsDoc
		if err := yaml.Unmarshal(relData, &relDoc); err != nil {
			return nil, errors.Wrapf(err, errors.KindCatalog, "failed to parse %s", relPath)
		}

		snap.edges = relDoc.Edges
	}

	return snap, nil
}

func (s *Store) current() (*snapshot, error) {
	s.mu.RLock()
	snap := s.snap
	s.mu.RUnlock()

	if snap == nil {
		return nil, errors.New(errors.KindCatalog, "catalog not loaded")
	}

	return snap, nil
}

// Version returns the version stamped on the loaded catalog artifact.
func (s *Store) Version() int {
	snap, err := s.current()
	if err != nil {
		return 0
	}

	return snap.version
}

// Light returns every light catalog entry, ordered by table name.
func (s *Store) Light() ([]Entry, error) {
	snap, err := s.current()
	if err != nil {
		return nil, err
	}

	return snap.entries, nil
}

// Entry looks up a single light catalog entry by table name.
func (s *Store) Entry(tableName string) (Entry, bool) {
	snap, err := s.current()
	if err != nil {
		return Entry{}, false
	}

	entry, ok := snap.byName[strings.ToLower(tableName)]

	return entry, ok
}

// TableSchema returns the detailed schema for one table, reading the
// per-table artifact on first access.
func (s *Store) TableSchema(tableName string) (*TableSchema, error) {
	snap, err := s.current()
	if err != nil {
		return nil, err
	}

	key := strings.ToLower(tableName)

	if _, known := snap.byName[key]; !known {
		return nil, errors.Newf(errors.KindCatalog, "table %q is not in the catalog", tableName)
	}

	snap.schemaMu.Lock()
	defer snap.schemaMu.Unlock()

	if schema, ok := snap.schemas[key]; ok {
		return schema, nil
	}

	path := filepath.Join(s.cfg.Dir, s.cfg.TablesDir, key+".yaml")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.KindCatalog, "failed to read table schema %s", path)
	}

	var schema TableSchema
	if err := yaml.Unmarshal(data, &schema); err != nil {
		return nil, errors.Wrapf(err, errors.KindCatalog, "failed to parse table schema %s", path)
	}

	if schema.TableName == "" {
		schema.TableName = key
	}

	snap.schemas[key] = &schema

	return &schema, nil
}

// Schemas loads the detailed schemas for a set of referenced tables.
// Names not present in the catalog are returned in missing rather than
// failing the whole lookup; the evaluation stage degrades gracefully.
func (s *Store) Schemas(tableNames []string) (schemas []*TableSchema, missing []string, err error) {
	for _, name := range tableNames {
		schema, schemaErr := s.TableSchema(name)
		if schemaErr != nil {
			if errors.IsKind(schemaErr, errors.KindCatalog) {
				missing = append(missing, name)
				continue
			}

			return nil, nil, schemaErr
		}

		schemas = append(schemas, schema)
	}

	return schemas, missing, nil
}

// Relationships returns the table relationship edges. When the catalog
// build omitted the edge list, edges are derived from the foreign keys of
// schemas loaded so far.
func (s *Store) Relationships() []RelationshipEdge {
	snap, err := s.current()
	if err != nil {
		return nil
	}

	if len(snap.edges) > 0 {
		return snap.edges
	}

	snap.schemaMu.Lock()
	defer snap.schemaMu.Unlock()

	var derived []RelationshipEdge

	for _, schema := range snap.schemas {
		for _, fk := range schema.ForeignKeys {
			derived = append(derived, RelationshipEdge{
				TableA: schema.TableName,
				FieldA: fk.Field,
				TableB: fk.RefTable,
				FieldB: fk.RefField,
			})
		}
	}

	return derived
}

// FormatLight renders the light catalog for the generation prompt.
func FormatLight(entries []Entry) string {
	var sb strings.Builder

	for _, entry := range entries {
		sb.WriteString(fmt.Sprintf("- %s: %s", entry.TableName, entry.Description))

		if len(entry.KeyFields) > 0 {
			sb.WriteString(fmt.Sprintf(" (key fields: %s)", strings.Join(entry.KeyFields, ", ")))
		}

		sb.WriteString("\n")
	}

	return sb.String()
}

// FormatSchemas renders detailed table schemas for the evaluation prompt.
func FormatSchemas(schemas []*TableSchema) string {
	var sb strings.Builder

	for _, schema := range schemas {
		sb.WriteString(fmt.Sprintf("Table: %s\n", schema.TableName))
		sb.WriteString("Columns:\n")

		for _, field := range schema.Fields {
			nullable := "not null"
			if field.Nullable {
				nullable = "nullable"
			}

			sb.WriteString(fmt.Sprintf("  - %s (%s, %s)", field.Name, field.Type, nullable))

			if field.Notes != "" {
				sb.WriteString(" - " + field.Notes)
			}

			sb.WriteString("\n")
		}

		if len(schema.ForeignKeys) > 0 {
			sb.WriteString("Foreign keys:\n")

			for _, fk := range schema.ForeignKeys {
				sb.WriteString(fmt.Sprintf("  - %s -> %s.%s\n", fk.Field, fk.RefTable, fk.RefField))
			}
		}

		if schema.BusinessRules != "" {
			sb.WriteString("Business rules: " + strings.TrimSpace(schema.BusinessRules) + "\n")
		}

		sb.WriteString("\n")
	}

	return sb.String()
}

// FormatRelationships renders relationship edges for the evaluation prompt.
func FormatRelationships(edges []RelationshipEdge) string {
	var sb strings.Builder

	for _, edge := range edges {
		sb.WriteString(fmt.Sprintf("- %s.%s = %s.%s\n", edge.TableA, edge.FieldA, edge.TableB, edge.FieldB))
	}

	return sb.String()
}
