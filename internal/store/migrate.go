package store

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/GuiaBolso/darwin"
)

//go:embed sql/*.sql
var sqlFiles embed.FS

// Migrate applies the embedded sql/NNN_description.sql scripts in version order.
func Migrate(db *sql.DB) error {
	migrations, err := loadMigrations(sqlFiles, "sql")
	if err != nil {
		return err
	}
	driver := darwin.NewGenericDriver(db, darwin.SqliteDialect{})
	return darwin.New(driver, migrations, nil).Migrate()
}

func loadMigrations(fsys fs.FS, dir string) ([]darwin.Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	migrations := make([]darwin.Migration, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		version, desc, err := parseMigrationName(e.Name())
		if err != nil {
			return nil, err
		}
		script, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", e.Name(), err)
		}
		migrations = append(migrations, darwin.Migration{
			Version:     version,
			Description: desc,
			Script:      string(script),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// parseMigrationName splits "001_init.sql" into (1, "init").
func parseMigrationName(name string) (float64, string, error) {
	base := strings.TrimSuffix(name, ".sql")
	num, desc, ok := strings.Cut(base, "_")
	if !ok {
		return 0, "", fmt.Errorf("migration %q: want NNN_description.sql", name)
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil || v <= 0 {
		return 0, "", fmt.Errorf("migration %q: bad version", name)
	}
	return v, strings.ReplaceAll(desc, "_", " "), nil
}
