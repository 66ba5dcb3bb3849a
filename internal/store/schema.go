package store

const schema = `
CREATE TABLE IF NOT EXISTS package_mappings (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    source_family TEXT NOT NULL,
    source_package TEXT NOT NULL,
    target_family TEXT NOT NULL,
    target_package TEXT NOT NULL,
    confidence REAL NOT NULL DEFAULT 1.0,
    origin TEXT NOT NULL DEFAULT 'seed',
    updated_at TEXT NOT NULL,
    UNIQUE(source_family, source_package, target_family)
);

CREATE INDEX IF NOT EXISTS idx_source ON package_mappings(source_family, source_package);
CREATE INDEX IF NOT EXISTS idx_target ON package_mappings(target_family);
`
