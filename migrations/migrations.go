// Package migrations embeds the SQL schema scripts.
package migrations

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

//go:embed *.sql
var files embed.FS

// Direction selects the up or down scripts
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// Migration is one embedded script
type Migration struct {
	Name string
	SQL  string
}

// Load returns the scripts for dir: ascending for up, descending for down
func Load(dir Direction) ([]Migration, error) {
	if dir != Up && dir != Down {
		return nil, fmt.Errorf("unknown migration direction %q", dir)
	}

	names, err := fs.Glob(files, "*."+string(dir)+".sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	if dir == Down {
		sort.Sort(sort.Reverse(sort.StringSlice(names)))
	}

	migrations := make([]Migration, 0, len(names))
	for _, name := range names {
		body, err := files.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", name, err)
		}
		migrations = append(migrations, Migration{
			Name: strings.TrimSuffix(name, "."+string(dir)+".sql"),
			SQL:  string(body),
		})
	}
	return migrations, nil
}
