package catalog

// Entry is one row of the light catalog: just enough to scope the first
// generation prompt without loading the full schema.
type Entry struct {
	TableName   string   `yaml:"table" json:"table_name"`
	Description string   `yaml:"description" json:"description"`
	KeyFields   []string `yaml:"key_fields" json:"key_fields"`
}

// Field describes a single column in a detailed table schema.
type Field struct {
	Name     string `yaml:"name" json:"name"`
	Type     string `yaml:"type" json:"type"`
	Nullable bool   `yaml:"nullable" json:"nullable"`
	Notes    string `yaml:"notes,omitempty" json:"notes,omitempty"`
}

// ForeignKey links a field to its target table.field.
type ForeignKey struct {
	Field    string `yaml:"field" json:"field"`
	RefTable string `yaml:"ref_table" json:"ref_table"`
	RefField string `yaml:"ref_field" json:"ref_field"`
}

// TableSchema is the full description of one table, loaded lazily by name.
type TableSchema struct {
	TableName     string       `yaml:"table" json:"table_name"`
	Fields        []Field      `yaml:"fields" json:"fields"`
	ForeignKeys   []ForeignKey `yaml:"foreign_keys,omitempty" json:"foreign_keys,omitempty"`
	BusinessRules string       `yaml:"business_rules,omitempty" json:"business_rules,omitempty"`
}

// RelationshipEdge is one edge of the table relationship graph. Used only
// as documentation context for evaluation, never to auto-join.
type RelationshipEdge struct {
	TableA string `yaml:"table_a" json:"table_a"`
	FieldA string `yaml:"field_a" json:"field_a"`
	TableB string `yaml:"table_b" json:"table_b"`
	FieldB string `yaml:"field_b" json:"field_b"`
}

// lightCatalogDoc is the on-disk shape of the light catalog artifact.
type lightCatalogDoc struct {
	Version int     `yaml:"version"`
	Tables  []Entry `yaml:"tables"`
}

// relationshipsDoc is the on-disk shape of the optional relationship list.
type relationshipsDoc struct {
	Edges []RelationshipEdge `yaml:"edges"`
}
